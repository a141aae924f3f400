package pipeline

import (
	"bytes"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"rosterimport/internal"
)

var reSpaces = regexp.MustCompile(`\s+`)

type EmailExtraction struct {
	Records         []internal.Record
	Subject         string
	Text            string
	HTML            string
	AttachmentNames []string
}

// ExtractRecordsFromEmailRaw parses a raw RFC 5322 message. The plain-text body
// is tried first, the HTML body only when the text yields nothing, and every
// spreadsheet attachment is imported after the body records.
func ExtractRecordsFromEmailRaw(raw []byte, opts Options) (EmailExtraction, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailExtraction{}, err
	}

	out := EmailExtraction{
		Records: make([]internal.Record, 0),
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	if env.Text != "" {
		out.Records = append(out.Records, ParseRoster(env.Text, opts)...)
	}
	if len(out.Records) == 0 && env.HTML != "" {
		text, err := htmlToRosterText(env.HTML, opts.SectionMarker)
		if err == nil {
			out.Records = append(out.Records, ParseRoster(text, opts)...)
		}
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.AttachmentNames = append(out.AttachmentNames, filename)

		if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
			extra, err := parseXLSX(att.Content, opts)
			if err == nil {
				out.Records = append(out.Records, extra...)
			}
		}
	}

	return out, nil
}

// htmlToRosterText rewrites every <table> as a marker line plus a markdown
// table so the positional row parser applies unchanged. The label is the text
// of the table caption, or of the element right before the table.
func htmlToRosterText(html, marker string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() == 0 {
			return
		}

		b.WriteString(marker)
		b.WriteString(tableLabel(table, marker))
		b.WriteString("*\n")

		rows.Each(func(i int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.ReplaceAll(normalizeSpaces(cell.Text()), columnSeparator, " "))
			})
			b.WriteString(markdownRow(cells))
			if i == 0 {
				b.WriteString(alignmentRow(len(cells)))
			}
		})
		b.WriteString("\n")
	})

	return b.String(), nil
}

func tableLabel(table *goquery.Selection, marker string) string {
	label := normalizeSpaces(table.Find("caption").First().Text())
	if prev := table.Prev(); label == "" && !prev.Is("table") {
		label = normalizeSpaces(prev.Text())
	}
	icon := strings.TrimSpace(strings.TrimSuffix(marker, emphasis))
	label = strings.TrimPrefix(label, marker)
	if icon != "" {
		label = strings.TrimPrefix(label, icon)
	}
	return strings.TrimSpace(strings.ReplaceAll(label, emphasis, ""))
}

func markdownRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |\n"
}

func alignmentRow(n int) string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = ":---:"
	}
	return markdownRow(cells)
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

type rosterColumns struct {
	ordinal, name, email, number, group int
}

// parseXLSX imports sheets whose first row names the columns. Sheets without
// a name column are ignored; a missing group column falls back to the sheet
// name and a missing ordinal column to the 1-based data row.
func parseXLSX(content []byte, opts Options) ([]internal.Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.Record{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		cols := inferRosterColumns(normalizeCells(rows[0]))
		if cols.name < 0 {
			continue
		}

		dataRow := 0
		for _, row := range rows[1:] {
			cells := normalizeCells(row)
			name := pickCell(cells, cols.name)
			if name == "" {
				continue
			}
			dataRow++

			tableRow := internal.TableRow{
				Ordinal:           pickCell(cells, cols.ordinal),
				Name:              name,
				Email:             pickCell(cells, cols.email),
				ParticipantNumber: pickCell(cells, cols.number),
			}
			if tableRow.Ordinal == "" {
				tableRow.Ordinal = strconv.Itoa(dataRow)
			}
			if tableRow.Email == "" {
				tableRow.Email = internal.MissingValue
			}
			if tableRow.ParticipantNumber == "" {
				tableRow.ParticipantNumber = internal.MissingValue
			}

			label := pickCell(cells, cols.group)
			if label == "" {
				label = sheet
			}
			out = append(out, NormalizeRow(tableRow, label, opts.PlaceholderDomain))
		}
	}

	return out, nil
}

// inferRosterColumns resolves each column once: name first, then the rest
// among the headers not yet taken, so "Nama Peserta" is the name column and
// never the participant number. Exact header matches win over substrings.
func inferRosterColumns(headers []string) rosterColumns {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(h))
	}

	taken := map[int]bool{}
	pick := func(keys ...string) int {
		idx := findHeaderIndex(norm, keys, taken)
		if idx >= 0 {
			taken[idx] = true
		}
		return idx
	}

	cols := rosterColumns{}
	cols.name = pick("nama", "name")
	cols.email = pick("email", "e-mail")
	cols.number = pick("peserta", "participant")
	cols.group = pick("kelas", "class", "group")
	cols.ordinal = pick("absen", "ordinal")
	if cols.ordinal < 0 {
		for i, h := range norm {
			if !taken[i] && (h == "no" || h == "no." || h == "#") {
				cols.ordinal = i
				break
			}
		}
	}
	return cols
}

func findHeaderIndex(headers []string, keys []string, taken map[int]bool) int {
	for i, h := range headers {
		if !taken[i] && slices.Contains(keys, h) {
			return i
		}
	}
	for i, h := range headers {
		if taken[i] {
			continue
		}
		for _, key := range keys {
			if strings.Contains(h, key) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
