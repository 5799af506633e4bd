package stats

import (
	"math"

	"github.com/mortality-lab/kcor/pkg/domain/model"
	"gonum.org/v1/gonum/stat/distuv"
)

// ZScore returns the two-sided standard normal critical value for alpha
func ZScore(alpha float64) float64 {
	return distuv.UnitNormal.Quantile(1 - alpha/2)
}

// PoissonRate estimates deaths per unit of person-time with an exact Poisson
// (gamma) confidence interval. A non-positive or undefined person-time yields
// NaN values. At zero deaths the lower bound is 0 and the upper bound is
// -ln(alpha)/PT.
func PoissonRate(deaths, personTime, alpha float64) model.RateEstimate {
	est := model.NaNRate()
	est.Deaths = deaths
	est.PersonTime = personTime
	if math.IsNaN(personTime) || personTime <= 0 || math.IsNaN(deaths) || deaths < 0 {
		return est
	}

	est.Rate = deaths / personTime
	if deaths == 0 {
		est.Lower = 0
		est.Upper = -math.Log(alpha) / personTime
		return est
	}

	// chi2.ppf(p, 2k)/2 is the gamma(k, 1) quantile
	lower := distuv.Gamma{Alpha: deaths, Beta: 1}
	upper := distuv.Gamma{Alpha: deaths + 1, Beta: 1}
	est.Lower = lower.Quantile(alpha/2) / personTime
	est.Upper = upper.Quantile(1-alpha/2) / personTime
	return est
}

// CrudeSeries computes weekly and cumulative crude rates of one stratum from
// week index start onward. Cumulative values accumulate deaths and person-time
// from start.
func CrudeSeries(s *model.Series, start int, mode model.PersonTimeMode, alpha float64) model.RateSeries {
	n := len(s.Alive) - start
	if n < 0 {
		n = 0
	}
	out := model.RateSeries{
		Key:        s.Key,
		Start:      start,
		Weekly:     make([]model.RateEstimate, 0, n),
		Cumulative: make([]model.RateEstimate, 0, n),
	}

	var cumDeaths, cumPT float64
	for i := start; i < len(s.Alive); i++ {
		d := float64(s.Dead[i])
		pt := mode.PersonTime(s.Alive[i], s.Dead[i])
		cumDeaths += d
		cumPT += pt
		out.Weekly = append(out.Weekly, PoissonRate(d, pt, alpha))
		out.Cumulative = append(out.Cumulative, PoissonRate(cumDeaths, cumPT, alpha))
	}
	return out
}
