package matcher

import (
	"time"

	"github.com/garyellow/region-matcher/internal/region"
)

// ForwardResult is the best catalog entry found for one input record.
// Address holds only the levels that matched: a record whose district could
// not be placed still reports its province and city.
type ForwardResult struct {
	Address           region.Address `json:"address"`
	Score             float64        `json:"score"`
	Method            Method         `json:"method"`
	Confidence        Confidence     `json:"confidence"`
	NeedsConfirmation bool           `json:"needs_confirmation"`
}

// MatchRecord places a single input record in the catalog, level by level,
// using ForwardWeights. Each level searches only the children of the entry
// matched above it.
func (m *Matcher) MatchRecord(rec InputRecord) (ForwardResult, error) {
	if m == nil {
		return ForwardResult{}, ErrNotInitialized
	}
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordBatch("record", 1, 0, time.Since(start).Seconds())
		}
	}()

	w := ForwardWeights
	res := ForwardResult{Method: MethodNone}

	p, po := m.bestProvince(rec)
	if po.matched() {
		res.Address.Province = p
		res.Score += w.Province * po.similarity
		res.Method = res.Method.Stronger(po.method)

		c, co := m.bestCity(p, rec)
		if co.matched() {
			res.Address.City = c
			res.Score += w.City * co.similarity
			res.Method = res.Method.Stronger(co.method)

			d, do := m.bestDistrict(p, c, rec)
			if do.matched() {
				res.Address.District = d
				res.Score += w.District * do.similarity
				res.Method = res.Method.Stronger(do.method)
			}
		}
	}

	res.Score = roundScore(res.Score)
	res.Confidence = ConfidenceFor(res.Score)
	res.NeedsConfirmation = res.Confidence.NeedsConfirmation()
	if res.Score == 0 {
		res.Method = MethodNone
	}
	return res, nil
}

// better reports whether a beats b: higher similarity, then stronger method.
func better(a, b levelOutcome) bool {
	if a.similarity != b.similarity {
		return a.similarity > b.similarity
	}
	return a.method.rank() > b.method.rank()
}

func (m *Matcher) bestProvince(rec InputRecord) (region.Province, levelOutcome) {
	if p, ok := m.index.Province(rec.ProvinceCode); ok && rec.ProvinceCode != "" {
		return p, levelOutcome{similarity: 1, method: MethodCode}
	}
	var best region.Province
	bestOut := levelMiss
	for _, p := range m.index.AllProvinces() {
		o := m.compareLevel(p.Code, p.Name, rec.ProvinceCode, rec.ProvinceName, m.thresholds.Province)
		if o.matched() && better(o, bestOut) {
			best, bestOut = p, o
		}
	}
	return best, bestOut
}

func (m *Matcher) bestCity(p region.Province, rec InputRecord) (region.City, levelOutcome) {
	if c, ok := m.index.City(p.Code, rec.CityCode); ok && rec.CityCode != "" {
		return c, levelOutcome{similarity: 1, method: MethodCode}
	}
	var best region.City
	bestOut := levelMiss
	for _, c := range m.index.CitiesOf(p.Code) {
		o := m.compareLevel(c.Code, c.Name, rec.CityCode, rec.CityName, m.thresholds.City)
		if o.matched() && better(o, bestOut) {
			best, bestOut = c, o
		}
	}
	return best, bestOut
}

func (m *Matcher) bestDistrict(p region.Province, c region.City, rec InputRecord) (region.District, levelOutcome) {
	districts := m.index.DistrictsOf(p.Code, c.Code)
	if len(districts) == 0 {
		return region.District{}, m.compareDistrict(region.Address{Province: p, City: c}, &rec)
	}
	if d, ok := m.index.District(p.Code, c.Code, rec.DistrictCode); ok && rec.DistrictCode != "" {
		return d, levelOutcome{similarity: 1, method: MethodCode}
	}
	var best region.District
	bestOut := levelMiss
	for _, d := range districts {
		o := m.compareLevel(d.Code, d.Name, rec.DistrictCode, rec.DistrictName, m.thresholds.District)
		if o.matched() && better(o, bestOut) {
			best, bestOut = d, o
		}
	}
	return best, bestOut
}
