package pipeline

import "strings"

type DetectResult struct {
	IsRoster bool
	Score    float64
	Reason   string
}

var detectKeywords = []string{"absen", "siswa", "kelas", "peserta", "daftar", "roster", "student"}

// DetectRoster scores whether a message carries a class roster.
func DetectRoster(subject, text, html string, attachmentNames []string, marker string) DetectResult {
	subject = strings.ToLower(subject)
	lowerText := strings.ToLower(text)
	lowerHTML := strings.ToLower(html)

	score := 0.0
	if marker != "" && (strings.Contains(text, marker) || strings.Contains(html, marker)) {
		score += 0.5
	}

	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(lowerText, kw) || strings.Contains(lowerHTML, kw) {
			score += 0.1
		}
	}

	pipeRows := countPipeRows(text)
	if pipeRows >= 3 {
		score += 0.3
	} else if pipeRows > 0 {
		score += 0.1
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
			score += 0.25
			break
		}
	}

	if strings.Contains(lowerHTML, "<table") {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}

	isRoster := score >= 0.45
	reason := "rules_negative"
	if isRoster {
		reason = "rules_positive"
	}

	return DetectResult{IsRoster: isRoster, Score: score, Reason: reason}
}

func countPipeRows(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, columnSeparator) && strings.Count(line, columnSeparator) >= minRowFields-1 {
			count++
		}
	}
	return count
}
