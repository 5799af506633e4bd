package stats_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/service/stats"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestZScore(t *testing.T) {
	gt.True(t, near(stats.ZScore(0.05), 1.959964, 1e-5))
	gt.True(t, near(stats.ZScore(0.10), 1.644854, 1e-5))
}

func TestPoissonRate(t *testing.T) {
	t.Run("rate is deaths over person-time", func(t *testing.T) {
		r := stats.PoissonRate(10, 1000, 0.05)
		gt.Equal(t, r.Rate, 10.0/1000.0)
		gt.True(t, r.Lower < r.Rate)
		gt.True(t, r.Upper > r.Rate)
	})

	t.Run("exact bounds for ten deaths", func(t *testing.T) {
		// Garwood interval for D=10: [4.7954, 18.3904]
		r := stats.PoissonRate(10, 1, 0.05)
		gt.True(t, near(r.Lower, 4.7954, 1e-3))
		gt.True(t, near(r.Upper, 18.3904, 1e-3))
	})

	t.Run("interval narrows as deaths grow at a fixed rate", func(t *testing.T) {
		small := stats.PoissonRate(10, 1000, 0.05)
		large := stats.PoissonRate(1000, 100000, 0.05)
		gt.Equal(t, small.Rate, large.Rate)
		gt.True(t, (small.Upper-small.Lower) > (large.Upper-large.Lower))

		prev := math.Inf(1)
		for _, d := range []float64{1, 5, 25, 125, 625} {
			r := stats.PoissonRate(d, d*100, 0.05)
			width := r.Upper - r.Lower
			gt.True(t, width < prev)
			prev = width
		}
	})

	t.Run("zero deaths", func(t *testing.T) {
		r := stats.PoissonRate(0, 200, 0.05)
		gt.Equal(t, r.Rate, 0.0)
		gt.Equal(t, r.Lower, 0.0)
		gt.True(t, near(r.Upper, -math.Log(0.05)/200, 1e-12))
	})

	t.Run("zero person-time is undefined", func(t *testing.T) {
		r := stats.PoissonRate(3, 0, 0.05)
		gt.True(t, math.IsNaN(r.Rate))
		gt.True(t, math.IsNaN(r.Lower))
		gt.True(t, math.IsNaN(r.Upper))
		gt.False(t, r.IsDefined())
		gt.Equal(t, r.Deaths, 3.0)
	})

	t.Run("scaling to 100k person-years", func(t *testing.T) {
		r := stats.PoissonRate(1, 52, 0.05).PerHundredKYears()
		gt.True(t, near(r.Rate, 1e5, 1e-6))
	})
}

func TestCrudeSeries(t *testing.T) {
	s := &model.Series{
		Alive: []int64{100, 100, 90, 85},
		Dead:  []int64{0, 10, 5, 0},
	}

	out := stats.CrudeSeries(s, 1, model.PersonTimeStart, 0.05)
	gt.Equal(t, out.Start, 1)
	gt.Equal(t, len(out.Weekly), 3)
	gt.Equal(t, len(out.Cumulative), 3)

	gt.Equal(t, out.Weekly[0].Rate, 0.1)
	gt.Equal(t, out.Cumulative[1].Deaths, 15.0)
	gt.Equal(t, out.Cumulative[1].PersonTime, 190.0)
	gt.Equal(t, out.Cumulative[2].PersonTime, 275.0)

	mid := stats.CrudeSeries(s, 1, model.PersonTimeMidpoint, 0.05)
	gt.Equal(t, mid.Weekly[0].PersonTime, 95.0)
}
