package matcher

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/region-matcher/internal/data"
	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/textsim"
)

func embeddedMatcher(t *testing.T, opts ...Option) *Matcher {
	t.Helper()
	c, err := region.EmbeddedSource{}.Load(context.Background())
	require.NoError(t, err)
	m, err := New(c, opts...)
	require.NoError(t, err)
	return m
}

// rowFor returns the output row for a reference district code.
func rowFor(t *testing.T, rows []OutputRecord, provinceCode, cityCode, districtCode string) OutputRecord {
	t.Helper()
	for _, r := range rows {
		if r.ProvinceCode == provinceCode && r.CityCode == cityCode && r.DistrictCode == districtCode {
			return r
		}
	}
	t.Fatalf("no row for %s/%s/%s", provinceCode, cityCode, districtCode)
	return OutputRecord{}
}

func TestNew_NilCatalog(t *testing.T) {
	t.Parallel()
	m, err := New(nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrNilCatalog)
}

func TestNilMatcher(t *testing.T) {
	t.Parallel()
	var m *Matcher

	_, err := m.BatchMatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = m.MatchRecord(InputRecord{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestBatchMatch_Scenarios(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	tests := []struct {
		name       string
		record     InputRecord
		wantScore  float64
		wantMethod Method
		wantConf   Confidence
	}{
		{
			name: "full code path short-circuits",
			record: InputRecord{
				ProvinceName: "福建", ProvinceCode: "1001",
				CityName: "厦门", CityCode: "2001",
				DistrictName: "思明", DistrictCode: "3007",
			},
			wantScore: 1, wantMethod: MethodCode, wantConf: ConfidenceHigh,
		},
		{
			name:      "exact names without codes",
			record:    InputRecord{ProvinceName: "福建省", CityName: "厦门市", DistrictName: "思明区"},
			wantScore: 1, wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name:      "district missing its suffix is exact tier",
			record:    InputRecord{ProvinceName: "福建省", CityName: "厦门市", DistrictName: "思明"},
			wantScore: 1, wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name: "code beats names at a contributing level",
			record: InputRecord{
				ProvinceCode: "1001",
				CityName:     "厦门市",
				DistrictName: "思明区",
			},
			wantScore: 1, wantMethod: MethodCode, wantConf: ConfidenceHigh,
		},
		{
			name: "foreign code does not veto a name match",
			record: InputRecord{
				ProvinceName: "福建省", ProvinceCode: "35",
				CityName: "厦门市", CityCode: "3502",
				DistrictName: "思明区", DistrictCode: "350203",
			},
			wantScore: 1, wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name:      "district mismatch keeps province and city weight",
			record:    InputRecord{ProvinceName: "福建", CityName: "厦门", DistrictName: "思明东"},
			wantScore: 0.5, wantMethod: MethodExact, wantConf: ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows, err := m.BatchMatch(context.Background(), []InputRecord{tt.record})
			require.NoError(t, err)

			row := rowFor(t, rows, "1001", "2001", "3007")
			assert.InDelta(t, tt.wantScore, row.Score, 1e-9)
			assert.Equal(t, tt.wantMethod, row.Method)
			assert.Equal(t, tt.wantConf, row.Confidence)
			assert.Equal(t, tt.wantConf.NeedsConfirmation(), row.NeedsConfirmation)
			assert.Equal(t, tt.record, row.Matched())
			assert.Equal(t, 0, row.MatchedRecordIndex)
		})
	}
}

func TestBatchMatch_NoSharedCodeOrName(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "四川省", ProvinceCode: "51", CityName: "成都市", CityCode: "5101", DistrictName: "锦江区", DistrictCode: "510104"},
	})
	require.NoError(t, err)

	row := rowFor(t, rows, "1001", "2001", "3007")
	assert.Equal(t, ConfidenceNone, row.Confidence)
	assert.Equal(t, MethodNone, row.Method)
	assert.Zero(t, row.Score)
	assert.True(t, row.NeedsConfirmation)
	assert.Equal(t, InputRecord{}, row.Matched())
	assert.Equal(t, -1, row.MatchedRecordIndex)
}

func TestBatchMatch_ParentGatesChildren(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	// right city and district under the wrong province
	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "湖北省", CityName: "厦门市", DistrictName: "思明区"},
	})
	require.NoError(t, err)

	row := rowFor(t, rows, "1001", "2001", "3007")
	assert.Equal(t, ConfidenceNone, row.Confidence)

	// right province, wrong city: only province weight
	rows, err = m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "福建省", CityName: "福州市", DistrictName: "思明区"},
	})
	require.NoError(t, err)

	row = rowFor(t, rows, "1001", "2001", "3007")
	assert.InDelta(t, 0.25, row.Score, 1e-9)
	assert.Equal(t, ConfidenceLow, row.Confidence)
}

func TestBatchMatch_DistrictlessLeaf(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "香港特别行政区", CityName: "香港"},
	})
	require.NoError(t, err)
	row := rowFor(t, rows, "1006", "2010", "")
	assert.InDelta(t, 1.0, row.Score, 1e-9)
	assert.Equal(t, MethodExact, row.Method)

	rows, err = m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "香港", CityName: "香港", DistrictName: "中西区"},
	})
	require.NoError(t, err)
	row = rowFor(t, rows, "1006", "2010", "")
	assert.InDelta(t, 0.5, row.Score, 1e-9)
	assert.Equal(t, ConfidenceLow, row.Confidence)
}

func TestBatchMatch_DistrictlessCodeTuple(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceCode: "1006", CityCode: "2010"},
	})
	require.NoError(t, err)
	row := rowFor(t, rows, "1006", "2010", "")
	assert.Equal(t, MethodCode, row.Method)
	assert.InDelta(t, 1.0, row.Score, 1e-9)
}

func TestBatchMatch_RepeatedDistrictNames(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "北京", CityName: "北京", DistrictName: "朝阳"},
		{ProvinceName: "吉林", CityName: "长春", DistrictName: "朝阳"},
	})
	require.NoError(t, err)

	beijing := rowFor(t, rows, "1004", "2007", "3025")
	changchun := rowFor(t, rows, "1005", "2008", "3027")
	assert.Equal(t, 0, beijing.MatchedRecordIndex)
	assert.Equal(t, 1, changchun.MatchedRecordIndex)
	assert.Equal(t, ConfidenceHigh, beijing.Confidence)
	assert.Equal(t, ConfidenceHigh, changchun.Confidence)
}

func TestBatchMatch_TieKeepsEarliestRecord(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rec := InputRecord{ProvinceName: "福建", CityName: "厦门", DistrictName: "湖里"}
	rows, err := m.BatchMatch(context.Background(), []InputRecord{
		{ProvinceName: "湖北", CityName: "武汉", DistrictName: "江岸"},
		rec,
		rec,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rowFor(t, rows, "1001", "2001", "3008").MatchedRecordIndex)
}

func TestBatchMatch_PreferredDistrictGroup(t *testing.T) {
	t.Parallel()

	c := region.NewCatalog()
	c.AddProvince("11", "黑龙江省")
	c.AddCity("11", "21", "哈尔滨市")
	c.AddDistrict("21", "31", "松花江沿岸新区")
	m, err := New(c)
	require.NoError(t, err)

	exactDistrict := InputRecord{ProvinceName: "黑龙江X", CityName: "哈尔滨", DistrictName: "松花江沿岸新区"}
	fuzzyDistrict := InputRecord{ProvinceName: "黑龙江省", CityName: "哈尔滨", DistrictName: "松花江沿岸新X"}

	// sanity: the fuzzy-district record scores higher on its own
	scoreExact := m.scoreCandidate(c.Addresses()[0], &exactDistrict, BatchWeights)
	scoreFuzzy := m.scoreCandidate(c.Addresses()[0], &fuzzyDistrict, BatchWeights)
	require.Greater(t, scoreFuzzy.score, scoreExact.score)
	require.Equal(t, MethodFuzzy, scoreFuzzy.district)

	rows, err := m.BatchMatch(context.Background(), []InputRecord{fuzzyDistrict, exactDistrict})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].MatchedRecordIndex)
	assert.InDelta(t, 0.9531, rows[0].Score, 1e-9)
	assert.Equal(t, MethodExact, rows[0].Method)
}

func TestBatchMatch_Completeness(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	for _, records := range [][]InputRecord{nil, {}, sampleRecords(t)} {
		rows, err := m.BatchMatch(context.Background(), records)
		require.NoError(t, err)
		assert.Len(t, rows, data.CatalogLeaves)

		seen := make(map[string]struct{})
		for _, r := range rows {
			key := strings.Join([]string{r.ProvinceCode, r.CityCode, r.DistrictCode}, "/")
			_, dup := seen[key]
			assert.False(t, dup, "leaf %s appears twice", key)
			seen[key] = struct{}{}
		}
	}
}

// sampleRecords derives a mixed input set from the embedded catalog: full
// codes, bare short names, and a few unrelated rows.
func sampleRecords(t *testing.T) []InputRecord {
	t.Helper()
	c, err := region.EmbeddedSource{}.Load(context.Background())
	require.NoError(t, err)

	var out []InputRecord
	for i, a := range c.Addresses() {
		switch i % 3 {
		case 0:
			out = append(out, InputRecord{
				ProvinceName: a.Province.Name, ProvinceCode: a.Province.Code,
				CityName: a.City.Name, CityCode: a.City.Code,
				DistrictName: a.District.Name, DistrictCode: a.District.Code,
			})
		case 1:
			out = append(out, InputRecord{
				ProvinceName: textsim.Normalize(a.Province.Name),
				CityName:     textsim.Normalize(a.City.Name),
				DistrictName: textsim.Normalize(a.District.Name),
			})
		}
	}
	return append(out,
		InputRecord{ProvinceName: "四川省", CityName: "成都市", DistrictName: "锦江区"},
		InputRecord{ProvinceName: "福建", CityName: "泉州", DistrictName: "丰泽"},
	)
}

func TestBatchMatch_DeterministicAcrossChunking(t *testing.T) {
	t.Parallel()
	records := sampleRecords(t)

	base, err := embeddedMatcher(t, WithWorkers(1), WithChunkSize(1000)).BatchMatch(context.Background(), records)
	require.NoError(t, err)
	assert.True(t, slices.IsSortedFunc(base, func(a, b OutputRecord) int {
		return strings.Compare(a.ProvinceName+"\x00"+a.CityName+"\x00"+a.DistrictName,
			b.ProvinceName+"\x00"+b.CityName+"\x00"+b.DistrictName)
	}))

	configs := []struct{ workers, chunk int }{{1, 1}, {2, 3}, {8, 5}, {4, 7}, {16, 2}}
	for _, cfg := range configs {
		m := embeddedMatcher(t, WithWorkers(cfg.workers), WithChunkSize(cfg.chunk))
		got, err := m.BatchMatch(context.Background(), records)
		require.NoError(t, err)
		assert.Equal(t, base, got, "workers=%d chunk=%d", cfg.workers, cfg.chunk)
	}
}

func TestBatchMatch_Cancelled(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t, WithChunkSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := m.BatchMatch(ctx, sampleRecords(t))
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBatchMatch_ScoresBounded(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	rows, err := m.BatchMatch(context.Background(), sampleRecords(t))
	require.NoError(t, err)
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Equal(t, ConfidenceFor(r.Score), r.Confidence)
		if r.Confidence == ConfidenceNone {
			assert.Equal(t, MethodNone, r.Method)
		}
	}
}
