package sheet

import (
	"strings"

	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/stringutil"
)

// field is one InputRecord column.
type field int

const (
	fieldProvinceName field = iota
	fieldProvinceCode
	fieldCityName
	fieldCityCode
	fieldDistrictName
	fieldDistrictCode
	fieldCount
)

// inputAliases lists the accepted header labels per field: the Chinese
// label used by provincial data exports and the snake_case key used by
// machine-generated files.
var inputAliases = map[field][]string{
	fieldProvinceName: {"省份名称", "省名称", "省份", "省", "province_name", "province"},
	fieldProvinceCode: {"省份编码", "省编码", "省份代码", "省代码", "province_code"},
	fieldCityName:     {"地市名称", "城市名称", "市名称", "地市", "城市", "市", "city_name", "city"},
	fieldCityCode:     {"地市编码", "城市编码", "市编码", "地市代码", "城市代码", "city_code"},
	fieldDistrictName: {"区县名称", "区县", "县区", "区", "县", "district_name", "district", "county"},
	fieldDistrictCode: {"区县编码", "区县代码", "district_code", "county_code"},
}

// matchedAliases reads the matched-record columns of an exported result.
var matchedAliases = map[field][]string{
	fieldProvinceName: {colMatchedProvinceName},
	fieldProvinceCode: {colMatchedProvinceCode},
	fieldCityName:     {colMatchedCityName},
	fieldCityCode:     {colMatchedCityCode},
	fieldDistrictName: {colMatchedDistrictName},
	fieldDistrictCode: {colMatchedDistrictCode},
}

// headerKey folds a header cell for alias lookup: invisible characters,
// case, spaces, dashes and underscores do not matter.
func headerKey(s string) string {
	s = strings.ToLower(stringutil.CleanCell(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, s)
}

// columnMap holds, per field, the column index it is read from or -1.
type columnMap [fieldCount]int

// mapHeader resolves header cells against aliases. The first column matching
// a field wins. ok is false when no column matched at all.
func mapHeader(header []string, aliases map[field][]string) (columnMap, bool) {
	lookup := make(map[string]field)
	for f, names := range aliases {
		for _, n := range names {
			lookup[headerKey(n)] = f
		}
	}

	var cols columnMap
	for i := range cols {
		cols[i] = -1
	}
	found := false
	for i, cell := range header {
		f, ok := lookup[headerKey(cell)]
		if !ok || cols[f] >= 0 {
			continue
		}
		cols[f] = i
		found = true
	}
	return cols, found
}

// record builds an InputRecord from one data row. Short rows are padded.
func (cols columnMap) record(row []string) matcher.InputRecord {
	cell := func(f field) string {
		i := cols[f]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return matcher.InputRecord{
		ProvinceName: stringutil.CleanCell(cell(fieldProvinceName)),
		ProvinceCode: stringutil.CleanCode(cell(fieldProvinceCode)),
		CityName:     stringutil.CleanCell(cell(fieldCityName)),
		CityCode:     stringutil.CleanCode(cell(fieldCityCode)),
		DistrictName: stringutil.CleanCell(cell(fieldDistrictName)),
		DistrictCode: stringutil.CleanCode(cell(fieldDistrictCode)),
	}
}
