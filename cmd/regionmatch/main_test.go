package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/region-matcher/internal/data"
	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/sheet"
)

func TestDefaultOutput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"regions.csv", "regions-matched.xlsx"},
		{"dir/regions.xlsx", "dir/regions-matched.xlsx"},
		{"noext", "noext-matched.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, defaultOutput(tt.in))
		})
	}
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.csv")
	content := strings.Join([]string{
		"省份,地市,区县",
		"福建省,厦门市,思明区",
		",,",
		"吉林省,长春市,朝阳区",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_WritesWorkbook(t *testing.T) {
	t.Parallel()
	in := writeInput(t)

	summary, err := run(context.Background(), options{in: in, workers: 2, chunk: 8}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, data.CatalogLeaves, summary.Total)
	assert.GreaterOrEqual(t, summary.Matched, 2)

	f, err := os.Open(defaultOutput(in))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	matched, err := sheet.ReadMatched(f)
	require.NoError(t, err)
	require.Len(t, matched, data.CatalogLeaves)

	var names []string
	for _, r := range matched {
		if r.DistrictName != "" {
			names = append(names, r.DistrictName)
		}
	}
	assert.Contains(t, names, "思明区")
	assert.Contains(t, names, "朝阳区")
}

func TestRun_CSVOutput(t *testing.T) {
	t.Parallel()
	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "result.csv")

	_, err := run(context.Background(), options{in: in, out: out, chunk: 16}, logger.Discard())
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\ufeff"))
	assert.Equal(t, data.CatalogLeaves+1, strings.Count(string(raw), "\n"))
}

func TestRun_Rejects(t *testing.T) {
	t.Parallel()
	in := writeInput(t)

	tests := []struct {
		name string
		opts options
	}{
		{"unsupported input", options{in: "regions.pdf", chunk: 8}},
		{"unsupported output", options{in: in, out: "result.json", chunk: 8}},
		{"missing input", options{in: filepath.Join(t.TempDir(), "none.csv"), chunk: 8}},
		{"missing catalog", options{in: in, catalog: filepath.Join(t.TempDir(), "none.json"), chunk: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := run(context.Background(), tt.opts, logger.Discard())
			assert.Error(t, err)
		})
	}
}
