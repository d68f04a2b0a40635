package matcher

import (
	"math"
	"strings"
)

// Method names how a match was established.
type Method string

const (
	MethodNone  Method = "none"
	MethodFuzzy Method = "fuzzy"
	MethodExact Method = "exact"
	MethodCode  Method = "code"
)

func (m Method) rank() int {
	switch m {
	case MethodCode:
		return 3
	case MethodExact:
		return 2
	case MethodFuzzy:
		return 1
	default:
		return 0
	}
}

// Stronger returns the higher-ranked of two methods under
// code > exact > fuzzy > none.
func (m Method) Stronger(other Method) Method {
	if other.rank() > m.rank() {
		return other
	}
	return m
}

// Confidence buckets a score for human review.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ConfidenceFor maps a score to its bucket: ≥0.9 high, ≥0.6 medium,
// >0 low, otherwise none.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	case score > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// NeedsConfirmation reports whether a result in this bucket should be
// reviewed by a person.
func (c Confidence) NeedsConfirmation() bool {
	return c == ConfidenceLow || c == ConfidenceNone
}

// InputRecord is one externally supplied address row. Any field may be empty.
type InputRecord struct {
	ProvinceName string `json:"province_name"`
	ProvinceCode string `json:"province_code"`
	CityName     string `json:"city_name"`
	CityCode     string `json:"city_code"`
	DistrictName string `json:"district_name"`
	DistrictCode string `json:"district_code"`
}

// IsBlank reports whether every field is empty after trimming.
func (r InputRecord) IsBlank() bool {
	for _, s := range []string{r.ProvinceName, r.ProvinceCode, r.CityName, r.CityCode, r.DistrictName, r.DistrictCode} {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// Weights are the per-level contributions to a total score. They sum to 1.
type Weights struct {
	Province float64
	City     float64
	District float64
}

var (
	// ForwardWeights apply when one input record is matched against the catalog.
	ForwardWeights = Weights{Province: 0.33, City: 0.33, District: 0.34}
	// BatchWeights apply when each catalog leaf looks for its input record.
	BatchWeights = Weights{Province: 0.25, City: 0.25, District: 0.5}
)

// Thresholds are the minimum similarities accepted as a fuzzy level match.
type Thresholds struct {
	Province float64
	City     float64
	District float64
}

// DefaultThresholds are used unless WithThresholds overrides them.
var DefaultThresholds = Thresholds{Province: 0.8, City: 0.8, District: 0.85}

// MatchResult is the best input record found for one catalog leaf.
type MatchResult struct {
	// Record is nil when nothing matched.
	Record *InputRecord
	// RecordIndex is Record's position in the batch input, or -1.
	RecordIndex       int
	Score             float64
	Method            Method
	Confidence        Confidence
	NeedsConfirmation bool
}

func noMatch() MatchResult {
	return MatchResult{
		RecordIndex:       -1,
		Method:            MethodNone,
		Confidence:        ConfidenceNone,
		NeedsConfirmation: true,
	}
}

func newResult(rec *InputRecord, index int, score float64, method Method) MatchResult {
	score = roundScore(score)
	if score <= 0 || rec == nil {
		return noMatch()
	}
	conf := ConfidenceFor(score)
	return MatchResult{
		Record:            rec,
		RecordIndex:       index,
		Score:             score,
		Method:            method,
		Confidence:        conf,
		NeedsConfirmation: conf.NeedsConfirmation(),
	}
}

// OutputRecord is one row of a batch result: a catalog leaf, flattened, and
// whatever input record matched it.
type OutputRecord struct {
	ProvinceCode string `json:"province_code"`
	ProvinceName string `json:"province_name"`
	CityCode     string `json:"city_code"`
	CityName     string `json:"city_name"`
	DistrictCode string `json:"district_code"`
	DistrictName string `json:"district_name"`

	MatchedProvinceName string `json:"matched_province_name"`
	MatchedProvinceCode string `json:"matched_province_code"`
	MatchedCityName     string `json:"matched_city_name"`
	MatchedCityCode     string `json:"matched_city_code"`
	MatchedDistrictName string `json:"matched_district_name"`
	MatchedDistrictCode string `json:"matched_district_code"`
	MatchedRecordIndex  int    `json:"matched_record_index"`

	Score             float64    `json:"score"`
	Method            Method     `json:"method"`
	Confidence        Confidence `json:"confidence"`
	NeedsConfirmation bool       `json:"needs_confirmation"`
}

// Matched returns the matched input fields as an InputRecord.
func (o OutputRecord) Matched() InputRecord {
	return InputRecord{
		ProvinceName: o.MatchedProvinceName,
		ProvinceCode: o.MatchedProvinceCode,
		CityName:     o.MatchedCityName,
		CityCode:     o.MatchedCityCode,
		DistrictName: o.MatchedDistrictName,
		DistrictCode: o.MatchedDistrictCode,
	}
}

// roundScore clamps to [0, 1] and rounds to four decimals.
func roundScore(s float64) float64 {
	s = math.Round(s*1e4) / 1e4
	return min(max(s, 0), 1)
}
