package matcher

import (
	"slices"
	"strings"

	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/sliceutil"
	"github.com/garyellow/region-matcher/internal/textsim"
)

// inputIndex maps codes and normalized names to positions in the batch
// input. It is built once per batch and read concurrently by the workers.
type inputIndex struct {
	records []InputRecord

	// byTuple holds the first record for each full code path.
	byTuple map[string]int

	byProvinceCode map[string][]int
	byCityCode     map[string][]int
	byDistrictCode map[string][]int

	byProvinceName map[string][]int
	byCityName     map[string][]int
	byDistrictName map[string][]int
}

// tupleKey joins a full code path. Province and city codes are required; the
// district code may be empty so that district-less leaves can still be
// looked up.
func tupleKey(province, city, district string) (string, bool) {
	if province == "" || city == "" {
		return "", false
	}
	return strings.Join([]string{province, city, district}, "\x00"), true
}

func newInputIndex(records []InputRecord, norm *textsim.Normalizer) *inputIndex {
	idx := &inputIndex{
		records:        records,
		byTuple:        make(map[string]int, len(records)),
		byProvinceCode: make(map[string][]int),
		byCityCode:     make(map[string][]int),
		byDistrictCode: make(map[string][]int),
		byProvinceName: make(map[string][]int),
		byCityName:     make(map[string][]int),
		byDistrictName: make(map[string][]int),
	}

	add := func(m map[string][]int, key string, i int) {
		if key != "" {
			m[key] = append(m[key], i)
		}
	}

	for i, r := range records {
		if key, ok := tupleKey(r.ProvinceCode, r.CityCode, r.DistrictCode); ok {
			if _, seen := idx.byTuple[key]; !seen {
				idx.byTuple[key] = i
			}
		}
		add(idx.byProvinceCode, r.ProvinceCode, i)
		add(idx.byCityCode, r.CityCode, i)
		add(idx.byDistrictCode, r.DistrictCode, i)
		add(idx.byProvinceName, norm.Normalize(r.ProvinceName), i)
		add(idx.byCityName, norm.Normalize(r.CityName), i)
		add(idx.byDistrictName, norm.Normalize(r.DistrictName), i)
	}
	return idx
}

// exact returns the record whose full code path equals the leaf's.
func (idx *inputIndex) exact(addr region.Address) (int, bool) {
	key, ok := tupleKey(addr.Province.Code, addr.City.Code, addr.District.Code)
	if !ok {
		return 0, false
	}
	i, ok := idx.byTuple[key]
	return i, ok
}

// candidates returns the input positions worth scoring for addr, in
// ascending order. Code lookups come first, district to province; when they
// yield fewer than minCodeCandidates records, records sharing a normalized
// name at any level are added.
func (idx *inputIndex) candidates(addr region.Address, norm *textsim.Normalizer) []int {
	var out []int
	if addr.HasDistrict() {
		out = append(out, idx.byDistrictCode[addr.District.Code]...)
	}
	out = append(out, idx.byCityCode[addr.City.Code]...)
	out = append(out, idx.byProvinceCode[addr.Province.Code]...)
	out = sliceutil.Deduplicate(out, identity)

	if len(out) < minCodeCandidates {
		if addr.HasDistrict() {
			out = append(out, idx.byDistrictName[norm.Normalize(addr.District.Name)]...)
		}
		out = append(out, idx.byCityName[norm.Normalize(addr.City.Name)]...)
		out = append(out, idx.byProvinceName[norm.Normalize(addr.Province.Name)]...)
		out = sliceutil.Deduplicate(out, identity)
	}

	slices.Sort(out)
	return out
}

func identity(i int) int { return i }
