package matcher

import "github.com/garyellow/region-matcher/internal/metrics"

// Summary counts batch outcomes.
type Summary struct {
	Total             int                `json:"total"`
	Matched           int                `json:"matched"`
	NeedsConfirmation int                `json:"needs_confirmation"`
	ByMethod          map[Method]int     `json:"by_method"`
	ByConfidence      map[Confidence]int `json:"by_confidence"`
	// AverageScore is taken over matched rows only.
	AverageScore float64 `json:"average_score"`
}

// Summarize counts rows by method and confidence.
func Summarize(rows []OutputRecord) Summary {
	s := Summary{
		Total:        len(rows),
		ByMethod:     make(map[Method]int, 4),
		ByConfidence: make(map[Confidence]int, 4),
	}
	var sum float64
	for _, r := range rows {
		s.ByMethod[r.Method]++
		s.ByConfidence[r.Confidence]++
		if r.NeedsConfirmation {
			s.NeedsConfirmation++
		}
		if r.Confidence != ConfidenceNone {
			s.Matched++
			sum += r.Score
		}
	}
	if s.Matched > 0 {
		s.AverageScore = roundScore(sum / float64(s.Matched))
	}
	return s
}

// recordOutcomes feeds method × confidence counts to the outcome counter.
func recordOutcomes(m *metrics.Metrics, rows []OutputRecord) {
	type key struct {
		method     Method
		confidence Confidence
	}
	counts := make(map[key]int)
	for _, r := range rows {
		counts[key{r.Method, r.Confidence}]++
	}
	for k, n := range counts {
		m.RecordOutcome(string(k.method), string(k.confidence), n)
	}
}
