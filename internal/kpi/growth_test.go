package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vaxpulse/internal/contracts"
)

func mep(country, month string, total int64) contracts.MonthEndPoint {
	return contracts.MonthEndPoint{Country: country, Month: day(month), Total: total}
}

func rates(points []contracts.GrowthPoint) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = p.GrowthRate
	}
	return out
}

func TestGrowth_Wakanda(t *testing.T) {
	got := MonthlyGrowth([]contracts.DailyRecord{
		rec("Wakanda", "2023-01-10", 100),
		rec("Wakanda", "2023-01-25", 120),
		rec("Wakanda", "2023-02-05", 150),
	})

	require.Len(t, got, 2)
	assert.Nil(t, got[0].GrowthRate)
	require.NotNil(t, got[1].GrowthRate)
	assert.InDelta(t, 0.25, *got[1].GrowthRate, 1e-12)
	assert.Equal(t, int64(150), got[1].Total)
	assert.Equal(t, day("2023-02-01"), got[1].Month)
}

func TestGrowth_PreviousZeroIsNull(t *testing.T) {
	got := Growth([]contracts.MonthEndPoint{
		mep("Wakanda", "2023-01-01", 0),
		mep("Wakanda", "2023-02-01", 50),
	})

	require.Len(t, got, 2)
	assert.Nil(t, got[0].GrowthRate)
	assert.Nil(t, got[1].GrowthRate, "growth after a zero month must be null, not infinity")
}

func TestGrowth(t *testing.T) {
	tests := []struct {
		name   string
		points []contracts.MonthEndPoint
		want   []*float64
	}{
		{
			name:   "empty",
			points: nil,
			want:   []*float64{},
		},
		{
			name:   "single point",
			points: []contracts.MonthEndPoint{mep("Wakanda", "2023-01-01", 10)},
			want:   []*float64{nil},
		},
		{
			name: "decline kept negative",
			points: []contracts.MonthEndPoint{
				mep("Wakanda", "2023-01-01", 200),
				mep("Wakanda", "2023-02-01", 150),
			},
			want: []*float64{nil, contracts.Float64Ptr(-0.25)},
		},
		{
			name: "gap month uses previous point",
			points: []contracts.MonthEndPoint{
				mep("Wakanda", "2023-01-01", 100),
				mep("Wakanda", "2023-04-01", 300),
			},
			want: []*float64{nil, contracts.Float64Ptr(2)},
		},
		{
			name: "country boundary restarts series",
			points: []contracts.MonthEndPoint{
				mep("Atlantis", "2023-01-01", 100),
				mep("Wakanda", "2023-02-01", 300),
				mep("Wakanda", "2023-03-01", 330),
			},
			want: []*float64{nil, nil, contracts.Float64Ptr(0.1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rates(Growth(tt.points))
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				if tt.want[i] == nil {
					assert.Nil(t, got[i], "index %d", i)
					continue
				}
				require.NotNil(t, got[i], "index %d", i)
				assert.InDelta(t, *tt.want[i], *got[i], 1e-12, "index %d", i)
			}
		})
	}
}

func TestGrowth_PreservesLengthAndOrder(t *testing.T) {
	points := []contracts.MonthEndPoint{
		mep("Wakanda", "2023-01-01", 1),
		mep("Wakanda", "2023-02-01", 2),
		mep("Wakanda", "2023-03-01", 4),
	}

	got := Growth(points)

	require.Len(t, got, len(points))
	for i := range points {
		assert.Equal(t, points[i].Month, got[i].Month)
		assert.Equal(t, points[i].Total, got[i].Total)
	}
}
