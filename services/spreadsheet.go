package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseSpreadsheet reads a supplier file into raw rows keyed by the
// original (trimmed) header names. CSV (including .txt exports, comma,
// semicolon or tab separated) and XLSX are supported, chosen by file
// extension. Ragged rows are tolerated; fully empty rows are dropped.
func ParseSpreadsheet(filename string, r io.Reader) ([]string, []map[string]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return parseCSV(r)
	case ".xlsx", ".xlsm":
		return parseXLSX(r)
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q, expected .csv, .txt or .xlsx", filepath.Ext(filename))
	}
}

func parseCSV(r io.Reader) ([]string, []map[string]string, error) {
	br := bufio.NewReader(r)
	sample, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(sample)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	headers := trimHeaders(header)

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read CSV row %d: %w", len(rows)+2, err)
		}
		if row, ok := buildRow(headers, record); ok {
			rows = append(rows, row)
		}
	}
	return headers, rows, nil
}

// detectDelimiter counts the candidate separators in the first line and
// picks the most frequent one. Dutch and German exports favor semicolons.
func detectDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	delim := ','
	best := 0
	for _, cand := range []rune{',', ';', '\t'} {
		if n := bytes.Count(sample, []byte(string(cand))); n > best {
			delim = cand
			best = n
		}
	}
	return delim
}

func parseXLSX(r io.Reader) ([]string, []map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("XLSX file has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read XLSX sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("XLSX sheet %q is empty", sheets[0])
	}

	headers := trimHeaders(all[0])
	var rows []map[string]string
	for _, record := range all[1:] {
		if row, ok := buildRow(headers, record); ok {
			rows = append(rows, row)
		}
	}
	return headers, rows, nil
}

func trimHeaders(header []string) []string {
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// buildRow zips one record onto the headers, reporting false for rows with
// no content at all.
func buildRow(headers, record []string) (map[string]string, bool) {
	row := make(map[string]string, len(headers))
	empty := true
	for i, h := range headers {
		if h == "" {
			continue
		}
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		row[h] = v
		if v != "" {
			empty = false
		}
	}
	return row, !empty
}
