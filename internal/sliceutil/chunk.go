package sliceutil

// Span is a half-open index range [Start, End).
type Span struct {
	Start, End int
}

// ChunkBounds splits [0, n) into consecutive spans of at most size elements.
// A size below 1 yields a single span covering everything.
func ChunkBounds(n, size int) []Span {
	if n <= 0 {
		return nil
	}
	if size < 1 || size >= n {
		return []Span{{0, n}}
	}

	spans := make([]Span, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		spans = append(spans, Span{start, min(start+size, n)})
	}
	return spans
}
