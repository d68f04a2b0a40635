package matcher

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/sliceutil"
)

// BatchMatch finds, for every leaf of the catalog, the best matching record
// in records.
//
// The result has exactly one row per catalog leaf, sorted by reference
// province, city and district name. Leaves without a plausible candidate get
// confidence none rather than an error. The order does not depend on chunk
// size or worker count.
//
// ctx is checked between chunks; a cancelled batch returns ctx.Err().
func (m *Matcher) BatchMatch(ctx context.Context, records []InputRecord) ([]OutputRecord, error) {
	if m == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	addrs := m.catalog.Addresses()
	idx := newInputIndex(records, m.norm)
	out := make([]OutputRecord, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, span := range sliceutil.ChunkBounds(len(addrs), m.chunkSize) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := span.Start; i < span.End; i++ {
				out[i] = toOutput(addrs[i], m.matchAddress(addrs[i], idx))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("matcher: batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("matcher: batch: %w", err)
	}

	SortOutput(out)

	elapsed := time.Since(start)
	summary := Summarize(out)
	m.log.WithFields(map[string]any{
		"records":            len(records),
		"addresses":          len(addrs),
		"matched":            summary.Matched,
		"needs_confirmation": summary.NeedsConfirmation,
		"duration_ms":        elapsed.Milliseconds(),
	}).InfoContext(ctx, "Batch matched")
	if m.metrics != nil {
		m.metrics.RecordBatch("batch", len(records), len(addrs), elapsed.Seconds())
		recordOutcomes(m.metrics, out)
	}

	return out, nil
}

// matchAddress finds the best record for one leaf.
//
// A full code path hit wins outright. Otherwise only the pruned candidate set
// is scored. Candidates whose district agreed by code or exact name form a
// preferred group: a weaker district match never displaces one of them even
// with a higher total. Ties keep the earliest record.
func (m *Matcher) matchAddress(addr region.Address, idx *inputIndex) MatchResult {
	if i, ok := idx.exact(addr); ok {
		return newResult(&idx.records[i], i, 1, MethodCode)
	}

	best := -1
	var bestScore candidateScore
	bestPreferred := false

	for _, i := range idx.candidates(addr, m.norm) {
		s := m.scoreCandidate(addr, &idx.records[i], BatchWeights)
		if s.score <= 0 {
			continue
		}
		preferred := s.district == MethodCode || s.district == MethodExact
		switch {
		case best < 0,
			preferred && !bestPreferred,
			preferred == bestPreferred && s.score > bestScore.score:
			best, bestScore, bestPreferred = i, s, preferred
		}
	}

	if best < 0 {
		return noMatch()
	}
	return newResult(&idx.records[best], best, bestScore.score, bestScore.method)
}

func toOutput(addr region.Address, r MatchResult) OutputRecord {
	o := OutputRecord{
		ProvinceCode:       addr.Province.Code,
		ProvinceName:       addr.Province.Name,
		CityCode:           addr.City.Code,
		CityName:           addr.City.Name,
		DistrictCode:       addr.District.Code,
		DistrictName:       addr.District.Name,
		MatchedRecordIndex: r.RecordIndex,
		Score:              r.Score,
		Method:             r.Method,
		Confidence:         r.Confidence,
		NeedsConfirmation:  r.NeedsConfirmation,
	}
	if r.Record != nil {
		o.MatchedProvinceName = r.Record.ProvinceName
		o.MatchedProvinceCode = r.Record.ProvinceCode
		o.MatchedCityName = r.Record.CityName
		o.MatchedCityCode = r.Record.CityCode
		o.MatchedDistrictName = r.Record.DistrictName
		o.MatchedDistrictCode = r.Record.DistrictCode
	}
	return o
}

// SortOutput orders rows by reference province, city and district name.
// The sort is stable, so rows with equal names keep catalog walk order.
func SortOutput(rows []OutputRecord) {
	slices.SortStableFunc(rows, func(a, b OutputRecord) int {
		return cmp.Or(
			cmp.Compare(a.ProvinceName, b.ProvinceName),
			cmp.Compare(a.CityName, b.CityName),
			cmp.Compare(a.DistrictName, b.DistrictName),
		)
	})
}
