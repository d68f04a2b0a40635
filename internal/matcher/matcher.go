// Package matcher reconciles externally supplied address records against the
// reference catalog.
//
// Matching is staged per level, province then city then district, and a level
// is only compared once its parent matched:
//
//  1. code: both sides carry a code and the codes are equal
//  2. exact: the raw names are equal, or equal after textsim.Normalize
//  3. fuzzy: textsim similarity reaches the level's threshold
//
// Code and exact matches contribute the full level weight; fuzzy matches
// contribute weight × similarity. The overall method is the strongest method
// among the levels that contributed.
//
// A Matcher is an immutable value built from a catalog. It is safe for
// concurrent use; BatchMatch spreads its own work over a bounded worker pool.
package matcher

import (
	"errors"
	"runtime"

	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/metrics"
	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/textsim"
)

var (
	// ErrNilCatalog is returned by New when no catalog is given.
	ErrNilCatalog = errors.New("matcher: catalog is nil")
	// ErrNotInitialized is returned when a method is called on a nil Matcher.
	ErrNotInitialized = errors.New("matcher: not initialized")
)

const (
	defaultChunkSize = 256
	// minCodeCandidates is the candidate count below which name lookups are
	// added to the code lookups.
	minCodeCandidates = 10
)

// Matcher matches input records against one reference catalog.
type Matcher struct {
	catalog    *region.Catalog
	index      *region.Index
	norm       *textsim.Normalizer
	thresholds Thresholds
	workers    int
	chunkSize  int
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWorkers bounds how many chunks BatchMatch processes at once.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithChunkSize sets how many catalog leaves one worker handles per task.
func WithChunkSize(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithThresholds overrides the fuzzy acceptance thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Matcher) {
		m.thresholds = t
	}
}

// WithNormalizer shares a memoizing normalizer across matchers.
func WithNormalizer(n *textsim.Normalizer) Option {
	return func(m *Matcher) {
		if n != nil {
			m.norm = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics enables batch metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

// New builds a matcher for catalog. The catalog's index and leaf list are
// computed here so that the first batch does not pay for them.
func New(catalog *region.Catalog, opts ...Option) (*Matcher, error) {
	if catalog == nil {
		return nil, ErrNilCatalog
	}

	m := &Matcher{
		catalog:    catalog,
		thresholds: DefaultThresholds,
		workers:    runtime.GOMAXPROCS(0),
		chunkSize:  defaultChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.norm == nil {
		m.norm = textsim.NewNormalizer()
	}
	if m.log == nil {
		m.log = logger.Discard()
	}
	m.log = m.log.WithModule("matcher")

	m.index = region.NewIndex(catalog)

	m.log.WithFields(map[string]any{
		"version":   catalog.Version(),
		"addresses": len(catalog.Addresses()),
		"dropped":   len(catalog.Dropped),
	}).Info("Matcher ready")
	for _, path := range catalog.Dropped {
		m.log.WithField("path", path).Debug("Skipped malformed catalog entry")
	}

	return m, nil
}

// Catalog returns the catalog the matcher was built from.
func (m *Matcher) Catalog() *region.Catalog {
	return m.catalog
}

// Index returns the catalog index.
func (m *Matcher) Index() *region.Index {
	return m.index
}

// levelOutcome is the result of comparing one level.
type levelOutcome struct {
	similarity float64
	method     Method
}

func (o levelOutcome) matched() bool {
	return o.method != MethodNone
}

var levelMiss = levelOutcome{method: MethodNone}

// compareLevel applies the staged policy to one level. A code mismatch
// still falls through to the name comparison.
func (m *Matcher) compareLevel(refCode, refName, inCode, inName string, threshold float64) levelOutcome {
	if refCode != "" && inCode != "" && refCode == inCode {
		return levelOutcome{similarity: 1, method: MethodCode}
	}
	if refName == "" || inName == "" {
		return levelMiss
	}
	if refName == inName || m.norm.Normalize(refName) == m.norm.Normalize(inName) {
		return levelOutcome{similarity: 1, method: MethodExact}
	}
	if sim := m.norm.Similarity(refName, inName); sim >= threshold {
		return levelOutcome{similarity: sim, method: MethodFuzzy}
	}
	return levelMiss
}

// compareDistrict handles leaves without a district: an input record that
// also leaves the district blank agrees with it fully.
func (m *Matcher) compareDistrict(addr region.Address, rec *InputRecord) levelOutcome {
	if !addr.HasDistrict() {
		if rec.DistrictName == "" && rec.DistrictCode == "" {
			return levelOutcome{similarity: 1, method: MethodExact}
		}
		return levelMiss
	}
	return m.compareLevel(addr.District.Code, addr.District.Name, rec.DistrictCode, rec.DistrictName, m.thresholds.District)
}

// candidateScore is the weighted score of one input record for one leaf.
type candidateScore struct {
	score    float64
	method   Method
	district Method
}

// scoreCandidate accumulates level scores left to right. A level that fails
// stops accumulation, so a record never earns city or district weight under
// a province it does not share.
func (m *Matcher) scoreCandidate(addr region.Address, rec *InputRecord, w Weights) candidateScore {
	out := candidateScore{method: MethodNone, district: MethodNone}

	p := m.compareLevel(addr.Province.Code, addr.Province.Name, rec.ProvinceCode, rec.ProvinceName, m.thresholds.Province)
	if !p.matched() {
		return out
	}
	out.score += w.Province * p.similarity
	out.method = out.method.Stronger(p.method)

	c := m.compareLevel(addr.City.Code, addr.City.Name, rec.CityCode, rec.CityName, m.thresholds.City)
	if !c.matched() {
		out.score = roundScore(out.score)
		return out
	}
	out.score += w.City * c.similarity
	out.method = out.method.Stronger(c.method)

	if d := m.compareDistrict(addr, rec); d.matched() {
		out.score += w.District * d.similarity
		out.method = out.method.Stronger(d.method)
		out.district = d.method
	}
	out.score = roundScore(out.score)
	return out
}
