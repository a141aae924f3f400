package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"rosterimport/internal"
)

const jsonIndent = "    "

// EncodeRecordsJSON renders records as an indented JSON array. Output is a
// pure function of records, so equal inputs give byte-identical files.
func EncodeRecordsJSON(records []internal.Record) ([]byte, error) {
	if records == nil {
		records = []internal.Record{}
	}
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportRecordsToJSON overwrites outputPath with the encoded records.
func ExportRecordsToJSON(records []internal.Record, outputPath string) error {
	blob, err := EncodeRecordsJSON(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(outputPath, blob, 0o644)
}

func ReadRecordsJSON(path string) ([]internal.Record, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []internal.Record
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

var xlsxHeaders = []string{"name", "email", "participant_number", "group_label"}

func ExportRecordsToXLSX(records []internal.Record, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value string) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellStr(sheet, cell, value)
		}

		set(1, rec.Name)
		set(2, rec.Email)
		set(3, rec.ParticipantNumber)
		set(4, rec.GroupLabel)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
