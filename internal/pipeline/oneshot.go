package pipeline

import (
	"fmt"
	"io"
	"os"

	"rosterimport/internal"
)

// ExtractRecordsFromInput reads input completely and returns its records.
// For file-based types input is a path; "-" reads standard input.
func ExtractRecordsFromInput(inputType internal.InputType, input string, opts Options) ([]internal.Record, error) {
	switch inputType {
	case "", internal.InputEmbedded:
		return ParseRoster(EmbeddedRoster(), opts), nil
	case internal.InputMarkdown:
		blob, err := readInput(input)
		if err != nil {
			return nil, err
		}
		return ParseRoster(string(blob), opts), nil
	case internal.InputEmail:
		blob, err := readInput(input)
		if err != nil {
			return nil, err
		}
		extraction, err := ExtractRecordsFromEmailRaw(blob, opts)
		if err != nil {
			return nil, err
		}
		return extraction.Records, nil
	case internal.InputHTML:
		blob, err := readInput(input)
		if err != nil {
			return nil, err
		}
		text, err := htmlToRosterText(string(blob), opts.SectionMarker)
		if err != nil {
			return nil, err
		}
		return ParseRoster(text, opts), nil
	case internal.InputPDF:
		blob, err := readInput(input)
		if err != nil {
			return nil, err
		}
		text, err := pdfText(blob)
		if err != nil {
			return nil, err
		}
		return ParseRoster(text, opts), nil
	case internal.InputXLSX:
		blob, err := readInput(input)
		if err != nil {
			return nil, err
		}
		return parseXLSX(blob, opts)
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}

func readInput(input string) ([]byte, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if input == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(input)
}
