// Package importer decodes the CSV and JSON files written by the CAD add-in
// into typed records.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"p9e.in/lppsync/models"
)

// Delimiter is the field separator of add-in CSV files.
const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is the outcome of decoding one file.
type Result struct {
	Records  []*models.Record
	Warnings []string
	Encoding string
	// DWGSource is the drawing file named at the top of a JSON export.
	DWGSource string
}

// Decode converts raw file bytes to text. UTF-8 (with or without BOM) is
// tried first; other input is read as Windows-1252 when it uses the
// 0x80-0x9F range and as Latin-1 otherwise.
func Decode(b []byte) (string, string, error) {
	if bytes.HasPrefix(b, utf8BOM) {
		b = b[len(utf8BOM):]
		if utf8.Valid(b) {
			return string(b), "utf-8-sig", nil
		}
	} else if utf8.Valid(b) {
		return string(b), "utf-8", nil
	}

	dec, name := charmap.ISO8859_1.NewDecoder(), "latin-1"
	for _, c := range b {
		if c >= 0x80 && c <= 0x9F {
			dec, name = charmap.Windows1252.NewDecoder(), "cp1252"
			break
		}
	}
	out, err := dec.Bytes(b)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return string(out), name, nil
}

// ReadCSV reads a semicolon-delimited export. The first row holds the
// headers, which go through the alias table. Fully blank rows are dropped;
// rows without a layout name are kept for the caller to report.
func ReadCSV(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	text, enc, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Result{Encoding: enc}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = models.CanonicalField(h)
	}

	res := &Result{Encoding: enc}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		if blank(row) {
			continue
		}
		if len(row) > len(fields) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: %d values for %d columns, extra values ignored", line, len(row), len(fields)))
		}

		rec := &models.Record{}
		for i, v := range row {
			if i >= len(fields) {
				break
			}
			rec.Set(fields[i], v)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
