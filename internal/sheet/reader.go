// Package sheet converts uploaded spreadsheets into input records and match
// results back into spreadsheets.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	domerrors "github.com/garyellow/region-matcher/internal/errors"
	"github.com/garyellow/region-matcher/internal/matcher"
)

// Format is a supported spreadsheet format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// MaxBytes caps how much of an upload is read.
const MaxBytes = 32 << 20

// DetectFormat picks the format from a file name's extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", domerrors.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Table is the parsed content of an upload.
type Table struct {
	Sheet   string                `json:"sheet"`
	Records []matcher.InputRecord `json:"records"`
	// Rows holds the 1-based sheet row of each record.
	Rows []int `json:"rows"`
	// Blank counts data rows dropped for having no content.
	Blank int `json:"blank"`
}

// Read parses r in the given format.
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatCSV:
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", domerrors.ErrUnsupportedFormat, format)
	}
}

// ReadXLSX parses the first worksheet of a workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(io.LimitReader(r, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domerrors.ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domerrors.ErrInvalidInput)
	}
	name := sheets[0]
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, domerrors.NewSheetError(name, 0, err)
	}
	return parseRows(name, rows, inputAliases)
}

// ReadCSV parses a CSV file. UTF-8 with or without a byte order mark is
// read as is; anything else is decoded as GB18030.
func ReadCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		raw, err = simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode csv: %v", domerrors.ErrInvalidInput, err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, domerrors.NewSheetError("csv", line, fmt.Errorf("%w: %v", domerrors.ErrInvalidInput, err))
		}
		rows = append(rows, row)
	}
	return parseRows("csv", rows, inputAliases)
}

// parseRows treats the first non-empty row as the header.
func parseRows(sheet string, rows [][]string, aliases map[field][]string) (*Table, error) {
	headerAt := slices.IndexFunc(rows, func(row []string) bool {
		return slices.ContainsFunc(row, func(c string) bool { return headerKey(c) != "" })
	})
	if headerAt < 0 {
		return nil, domerrors.NewSheetError(sheet, 0, domerrors.ErrEmptyUpload)
	}

	cols, ok := mapHeader(rows[headerAt], aliases)
	if !ok {
		return nil, domerrors.NewSheetError(sheet, headerAt+1,
			fmt.Errorf("%w: no recognized column in header %q", domerrors.ErrInvalidInput, rows[headerAt]))
	}

	t := &Table{Sheet: sheet}
	for i, row := range rows[headerAt+1:] {
		rec := cols.record(row)
		if rec.IsBlank() {
			t.Blank++
			continue
		}
		t.Records = append(t.Records, rec)
		t.Rows = append(t.Rows, headerAt+i+2)
	}
	return t, nil
}
