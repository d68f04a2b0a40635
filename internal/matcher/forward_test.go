package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRecord(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	tests := []struct {
		name         string
		record       InputRecord
		wantDistrict string
		wantCity     string
		wantScore    float64
		wantMethod   Method
		wantConf     Confidence
	}{
		{
			name:         "short names",
			record:       InputRecord{ProvinceName: "福建", CityName: "厦门", DistrictName: "思明"},
			wantCity:     "2001",
			wantDistrict: "3007",
			wantScore:    1, wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name: "codes",
			record: InputRecord{
				ProvinceCode: "1001", CityCode: "2001", DistrictCode: "3007",
			},
			wantCity:     "2001",
			wantDistrict: "3007",
			wantScore:    1, wantMethod: MethodCode, wantConf: ConfidenceHigh,
		},
		{
			name:         "autonomous prefecture short form",
			record:       InputRecord{ProvinceName: "湖北", CityName: "恩施", DistrictName: "恩施市"},
			wantCity:     "2004",
			wantDistrict: "3016",
			wantScore:    1, wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name:       "unknown district keeps province and city",
			record:     InputRecord{ProvinceName: "福建省", CityName: "福州市", DistrictName: "不存在区"},
			wantCity:   "2002",
			wantScore:  0.66,
			wantMethod: MethodExact, wantConf: ConfidenceMedium,
		},
		{
			name:       "city without districts",
			record:     InputRecord{ProvinceName: "香港", CityName: "香港"},
			wantCity:   "2010",
			wantScore:  1,
			wantMethod: MethodExact, wantConf: ConfidenceHigh,
		},
		{
			name:       "unknown province",
			record:     InputRecord{ProvinceName: "四川省", CityName: "成都市", DistrictName: "锦江区"},
			wantScore:  0,
			wantMethod: MethodNone, wantConf: ConfidenceNone,
		},
		{
			name:       "blank record",
			record:     InputRecord{},
			wantScore:  0,
			wantMethod: MethodNone, wantConf: ConfidenceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := m.MatchRecord(tt.record)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCity, got.Address.City.Code)
			assert.Equal(t, tt.wantDistrict, got.Address.District.Code)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantConf, got.Confidence)
			assert.Equal(t, tt.wantConf.NeedsConfirmation(), got.NeedsConfirmation)
		})
	}
}

func TestMatchRecord_ChildrenScopedToParent(t *testing.T) {
	t.Parallel()
	m := embeddedMatcher(t)

	// 朝阳区 exists under both 北京市 and 长春市
	got, err := m.MatchRecord(InputRecord{ProvinceName: "吉林省", CityName: "长春市", DistrictName: "朝阳区"})
	require.NoError(t, err)
	assert.Equal(t, "3027", got.Address.District.Code)

	// a 长春 district code is not accepted under 北京
	got, err = m.MatchRecord(InputRecord{ProvinceName: "北京", CityName: "北京", DistrictCode: "3028"})
	require.NoError(t, err)
	assert.Empty(t, got.Address.District.Code)
	assert.InDelta(t, 0.66, got.Score, 1e-9)
}

func TestMatchRecord_FuzzyLevel(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds
	th.City = 0.7
	m := embeddedMatcher(t, WithThresholds(th))

	got, err := m.MatchRecord(InputRecord{ProvinceName: "广西", CityName: "桂林山", DistrictName: "阳朔"})
	require.NoError(t, err)

	// city similarity: prefix 2/3 → 2/3*0.95+0.1
	wantCity := 2.0/3.0*0.95 + 0.1
	assert.Equal(t, "2006", got.Address.City.Code)
	assert.Equal(t, "3022", got.Address.District.Code)
	assert.InDelta(t, 0.33+0.33*wantCity+0.34, got.Score, 1e-4)
	assert.Equal(t, MethodExact, got.Method)
	assert.Equal(t, ConfidenceHigh, got.Confidence)

	strict := embeddedMatcher(t)
	got, err = strict.MatchRecord(InputRecord{ProvinceName: "广西", CityName: "桂林山", DistrictName: "阳朔"})
	require.NoError(t, err)
	assert.Empty(t, got.Address.City.Code)
	assert.InDelta(t, 0.33, got.Score, 1e-9)
	assert.Equal(t, ConfidenceLow, got.Confidence)
}
