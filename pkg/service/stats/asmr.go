package stats

import (
	"math"
	"sort"

	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
)

// Cell is the deaths and person-time of one birth-year stratum in one week
type Cell struct {
	BirthYear  int
	Deaths     float64
	PersonTime float64
}

// Standardizer computes direct age-standardized rates against a fixed
// standard population
type Standardizer struct {
	weights model.StandardWeights
	alpha   float64
	z       float64
}

// NewStandardizer creates a Standardizer. The weights are copied.
func NewStandardizer(weights model.StandardWeights, alpha float64) *Standardizer {
	return &Standardizer{
		weights: weights.Clone(),
		alpha:   alpha,
		z:       ZScore(alpha),
	}
}

// Weights returns a copy of the standard population
func (s *Standardizer) Weights() model.StandardWeights {
	return s.weights.Clone()
}

// Standardize combines birth-year cells into an age-standardized rate. Cells
// are summed per bucket before rates are taken; buckets with no person-time
// do not contribute to the weight total. The interval is rate ± z·se with the
// lower bound clamped at zero.
func (s *Standardizer) Standardize(cells []Cell) model.StandardizedRate {
	type bucketSum struct{ deaths, pt float64 }
	buckets := make(map[int]*bucketSum)
	for _, c := range cells {
		b, ok := s.weights.Bucket(c.BirthYear)
		if !ok {
			continue
		}
		sum, ok := buckets[b]
		if !ok {
			sum = &bucketSum{}
			buckets[b] = sum
		}
		sum.deaths += c.Deaths
		sum.pt += c.PersonTime
	}

	active := make([]int, 0, len(buckets))
	for b, sum := range buckets {
		if sum.pt > 0 {
			active = append(active, b)
		}
	}
	sort.Ints(active)

	result := model.StandardizedRate{RateEstimate: model.NaNRate(), Variance: math.NaN()}
	if len(active) == 0 {
		return result
	}

	n := len(active)
	counts := make([]float64, n)
	ws := make([]float64, n)
	rates := make([]float64, n)
	rateVars := make([]float64, n)
	deaths := make([]float64, n)
	pts := make([]float64, n)
	norm := s.weights.Normalize(active)
	for i, b := range active {
		sum := buckets[b]
		counts[i] = s.weights.Counts[b]
		ws[i] = norm[b]
		rates[i] = sum.deaths / sum.pt
		rateVars[i] = sum.deaths / (sum.pt * sum.pt)
		deaths[i] = sum.deaths
		pts[i] = sum.pt
	}

	rate := floats.Dot(ws, rates)
	variance := floats.Dot(floats.MulTo(make([]float64, n), ws, ws), rateVars)

	se := math.Sqrt(variance)
	result.Deaths = floats.Sum(deaths)
	result.PersonTime = floats.Sum(pts)
	result.Rate = rate
	result.Lower = math.Max(rate-s.z*se, 0)
	result.Upper = rate + s.z*se
	result.Variance = variance
	result.StandardPersonTime = floats.Sum(counts)
	result.Strata = len(active)
	return result
}

// Series standardizes one (sex, dose) group of a cohort table across birth
// years, weekly and cumulatively from week index start onward
func (s *Standardizer) Series(t *model.CohortTable, sex types.Sex, dose, start int, mode model.PersonTimeMode) model.StandardizedSeries {
	n := len(t.Weeks) - start
	if n < 0 {
		n = 0
	}
	out := model.StandardizedSeries{
		Key:        model.StratumKey{BirthYear: model.ASMRBirthYear, Sex: sex, Dose: dose},
		Start:      start,
		Weekly:     make([]model.StandardizedRate, 0, n),
		Cumulative: make([]model.StandardizedRate, 0, n),
	}

	series := make([]*model.Series, 0, len(t.BirthYears))
	for _, by := range t.BirthYears {
		if sr := t.Series(model.StratumKey{BirthYear: by, Sex: sex, Dose: dose}); sr != nil {
			series = append(series, sr)
		}
	}

	weekly := make([]Cell, len(series))
	cumulative := make([]Cell, len(series))
	for j, sr := range series {
		cumulative[j].BirthYear = sr.Key.BirthYear
	}

	for i := start; i < len(t.Weeks); i++ {
		for j, sr := range series {
			d := float64(sr.Dead[i])
			pt := mode.PersonTime(sr.Alive[i], sr.Dead[i])
			weekly[j] = Cell{BirthYear: sr.Key.BirthYear, Deaths: d, PersonTime: pt}
			cumulative[j].Deaths += d
			cumulative[j].PersonTime += pt
		}
		out.Weekly = append(out.Weekly, s.Standardize(weekly))
		out.Cumulative = append(out.Cumulative, s.Standardize(cumulative))
	}
	return out
}
