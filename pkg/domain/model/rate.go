package model

import "math"

// WeeksPerYear converts person-weeks to person-years
const WeeksPerYear = 52

// PerHundredThousand is the population base of reported rates
const PerHundredThousand = 1e5

// RateEstimate is a mortality rate with its confidence interval. Rate, Lower
// and Upper share the unit of the value they were derived from: deaths per
// person-week unless scaled.
type RateEstimate struct {
	Deaths     float64
	PersonTime float64
	Rate       float64
	Lower      float64
	Upper      float64
}

// NaNRate is an estimate with no defined value
func NaNRate() RateEstimate {
	nan := math.NaN()
	return RateEstimate{Rate: nan, Lower: nan, Upper: nan}
}

// IsDefined reports whether the rate is a finite number
func (r RateEstimate) IsDefined() bool {
	return !math.IsNaN(r.Rate) && !math.IsInf(r.Rate, 0)
}

// Scale multiplies the rate and its bounds by f
func (r RateEstimate) Scale(f float64) RateEstimate {
	r.Rate *= f
	r.Lower *= f
	r.Upper *= f
	return r
}

// PerHundredKYears rescales a per-person-week rate to deaths per 100,000 person-years
func (r RateEstimate) PerHundredKYears() RateEstimate {
	return r.Scale(WeeksPerYear * PerHundredThousand)
}

// StandardizedRate is an age-standardized rate. Deaths and PersonTime are the
// unweighted sums over the strata that contributed.
type StandardizedRate struct {
	RateEstimate
	Variance float64
	// StandardPersonTime is the sum of the weights of contributing buckets
	StandardPersonTime float64
	Strata             int
}

// LogVariance is the delta-method variance of the log rate
func (s StandardizedRate) LogVariance() float64 {
	if !s.IsDefined() || s.Rate <= 0 {
		return math.NaN()
	}
	return s.Variance / (s.Rate * s.Rate)
}
