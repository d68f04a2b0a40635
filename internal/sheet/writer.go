package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	domerrors "github.com/garyellow/region-matcher/internal/errors"
	"github.com/garyellow/region-matcher/internal/matcher"
)

// Result sheet names.
const (
	ResultSheet  = "匹配结果"
	SummarySheet = "汇总"
)

const (
	colMatchedProvinceName = "匹配省份名称"
	colMatchedProvinceCode = "匹配省份编码"
	colMatchedCityName     = "匹配地市名称"
	colMatchedCityCode     = "匹配地市编码"
	colMatchedDistrictName = "匹配区县名称"
	colMatchedDistrictCode = "匹配区县编码"
)

// ResultHeader is the fixed column order of an exported result.
var ResultHeader = []string{
	"参考省份编码", "参考省份名称",
	"参考地市编码", "参考地市名称",
	"参考区县编码", "参考区县名称",
	colMatchedProvinceName, colMatchedProvinceCode,
	colMatchedCityName, colMatchedCityCode,
	colMatchedDistrictName, colMatchedDistrictCode,
	"匹配记录序号", "匹配得分", "匹配方式", "置信度", "需人工确认",
}

var methodLabels = map[matcher.Method]string{
	matcher.MethodCode:  "编码匹配",
	matcher.MethodExact: "名称精确匹配",
	matcher.MethodFuzzy: "名称模糊匹配",
	matcher.MethodNone:  "未匹配",
}

var confidenceLabels = map[matcher.Confidence]string{
	matcher.ConfidenceHigh:   "高",
	matcher.ConfidenceMedium: "中",
	matcher.ConfidenceLow:    "低",
	matcher.ConfidenceNone:   "无",
}

// MethodLabel returns the display label for m.
func MethodLabel(m matcher.Method) string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return string(m)
}

// ConfidenceLabel returns the display label for c.
func ConfidenceLabel(c matcher.Confidence) string {
	if l, ok := confidenceLabels[c]; ok {
		return l
	}
	return string(c)
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

// resultRow flattens one output row in ResultHeader order. Codes stay
// strings so that leading zeros survive. The record position is 1-based
// and empty when nothing matched.
func resultRow(o matcher.OutputRecord) []any {
	position := ""
	if o.MatchedRecordIndex >= 0 && o.Confidence != matcher.ConfidenceNone {
		position = strconv.Itoa(o.MatchedRecordIndex + 1)
	}
	return []any{
		o.ProvinceCode, o.ProvinceName,
		o.CityCode, o.CityName,
		o.DistrictCode, o.DistrictName,
		o.MatchedProvinceName, o.MatchedProvinceCode,
		o.MatchedCityName, o.MatchedCityCode,
		o.MatchedDistrictName, o.MatchedDistrictCode,
		position, o.Score,
		MethodLabel(o.Method), ConfidenceLabel(o.Confidence), yesNo(o.NeedsConfirmation),
	}
}

// WriteXLSX writes rows as a workbook with a result sheet and a summary
// sheet.
func WriteXLSX(w io.Writer, rows []matcher.OutputRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ResultSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sw, err := f.NewStreamWriter(ResultSheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(ResultHeader), 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	header := make([]any, len(ResultHeader))
	for i, h := range ResultHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, o := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, resultRow(o)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}

	if err := writeSummary(f, matcher.Summarize(rows), bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s matcher.Summary, style int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	lines := [][]any{
		{"项目", "数量"},
		{"参考条目总数", s.Total},
		{"已匹配", s.Matched},
		{"需人工确认", s.NeedsConfirmation},
		{"平均得分", s.AverageScore},
	}
	for _, m := range []matcher.Method{matcher.MethodCode, matcher.MethodExact, matcher.MethodFuzzy, matcher.MethodNone} {
		lines = append(lines, []any{MethodLabel(m), s.ByMethod[m]})
	}
	for _, c := range []matcher.Confidence{matcher.ConfidenceHigh, matcher.ConfidenceMedium, matcher.ConfidenceLow, matcher.ConfidenceNone} {
		lines = append(lines, []any{"置信度" + ConfidenceLabel(c), s.ByConfidence[c]})
	}

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &line); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", style); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 20)
}

// WriteCSV writes rows as UTF-8 CSV with a byte order mark, which
// spreadsheet tools need to detect the encoding.
func WriteCSV(w io.Writer, rows []matcher.OutputRecord) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	for _, o := range rows {
		vals := resultRow(o)
		rec := make([]string, len(vals))
		for i, v := range vals {
			switch v := v.(type) {
			case string:
				rec[i] = v
			case float64:
				rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				rec[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMatched reads the matched-record columns back from an exported
// workbook, one InputRecord per result row. Rows without a match come back
// as zero records so positions line up with the export.
func ReadMatched(r io.Reader) ([]matcher.InputRecord, error) {
	f, err := excelize.OpenReader(io.LimitReader(r, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domerrors.ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ResultSheet)
	if err != nil {
		return nil, domerrors.NewSheetError(ResultSheet, 0, err)
	}
	if len(rows) == 0 {
		return nil, domerrors.NewSheetError(ResultSheet, 0, domerrors.ErrEmptyUpload)
	}
	cols, ok := mapHeader(rows[0], matchedAliases)
	if !ok {
		return nil, domerrors.NewSheetError(ResultSheet, 1,
			fmt.Errorf("%w: not a result workbook", domerrors.ErrInvalidInput))
	}

	out := make([]matcher.InputRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, cols.record(row))
	}
	return out, nil
}
