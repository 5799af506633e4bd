package model

// RateSeries holds the crude weekly and cumulative rates of one stratum.
// Index i corresponds to week Start+i of the cohort table.
type RateSeries struct {
	Key        StratumKey
	Start      int
	Weekly     []RateEstimate
	Cumulative []RateEstimate
}

// StandardizedSeries holds the weekly and cumulative age-standardized rates of
// one (sex, dose) group. Index i corresponds to week Start+i of the cohort table.
type StandardizedSeries struct {
	Key        StratumKey
	Start      int
	Weekly     []StandardizedRate
	Cumulative []StandardizedRate
}

// EnrollmentResult is everything computed for one enrollment cohort. Crude
// and Standardized start at the enrollment week; StandardizedAll covers the
// whole week axis of the table.
type EnrollmentResult struct {
	Enrollment      Week
	Table           *CohortTable
	Crude           []RateSeries
	Standardized    []StandardizedSeries
	StandardizedAll []StandardizedSeries
	Hazards         []*HazardSeries
}

// Population is the cohort census at the first week of the table
func (r *EnrollmentResult) Population() int64 {
	var total int64
	for _, key := range r.Table.Keys() {
		if s := r.Table.Series(key); s != nil && len(s.Alive) > 0 {
			total += s.Alive[0]
		}
	}
	return total
}

// Summary reduces the result to its persisted form
func (r *EnrollmentResult) Summary() EnrollmentSummary {
	sum := EnrollmentSummary{
		Enrollment: r.Enrollment.String(),
		Weeks:      len(r.Table.Weeks),
		Strata:     len(r.Table.Keys()),
		Population: r.Population(),
		Deaths:     r.Table.TotalDeaths(),
		Series:     make([]SeriesSummary, 0, len(r.Hazards)),
	}
	for _, h := range r.Hazards {
		sum.Series = append(sum.Series, SummarizeSeries(h))
	}
	return sum
}
