package model

import (
	"math"
	"time"

	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// RunStatus is the lifecycle state of an analysis run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the persisted summary of one analysis run. The configuration is
// kept as the YAML it was resolved to.
type RunRecord struct {
	ID          types.RunID         `json:"id" firestore:"id"`
	Status      RunStatus           `json:"status" firestore:"status"`
	InputPath   string              `json:"input_path" firestore:"input_path"`
	OutputPath  string              `json:"output_path" firestore:"output_path"`
	ConfigYAML  string              `json:"config_yaml" firestore:"config_yaml"`
	Records     int                 `json:"records" firestore:"records"`
	Dropped     int                 `json:"dropped" firestore:"dropped"`
	Warnings    map[string]int      `json:"warnings" firestore:"warnings"`
	Enrollments []EnrollmentSummary `json:"enrollments" firestore:"enrollments"`
	Error       string              `json:"error,omitempty" firestore:"error"`
	StartedAt   time.Time           `json:"started_at" firestore:"started_at"`
	FinishedAt  time.Time           `json:"finished_at" firestore:"finished_at"`
}

// NewRunRecord starts a run record
func NewRunRecord(inputPath, outputPath string) *RunRecord {
	return &RunRecord{
		ID:         types.NewRunID(),
		Status:     RunStatusRunning,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Warnings:   map[string]int{},
		StartedAt:  time.Now().UTC(),
	}
}

// Finish marks the run as finished; a non-nil err marks it failed
func (r *RunRecord) Finish(err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusSucceeded
}

// Duration is the elapsed time of a finished run
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Copy returns a deep copy of the record
func (r *RunRecord) Copy() *RunRecord {
	c := *r
	c.Warnings = make(map[string]int, len(r.Warnings))
	for k, v := range r.Warnings {
		c.Warnings[k] = v
	}
	c.Enrollments = make([]EnrollmentSummary, len(r.Enrollments))
	for i, e := range r.Enrollments {
		e.Series = append([]SeriesSummary(nil), e.Series...)
		c.Enrollments[i] = e
	}
	return &c
}

// EnrollmentSummary summarizes one enrollment cohort of a run
type EnrollmentSummary struct {
	Enrollment string          `json:"enrollment" firestore:"enrollment"`
	Weeks      int             `json:"weeks" firestore:"weeks"`
	Strata     int             `json:"strata" firestore:"strata"`
	Population int64           `json:"population" firestore:"population"`
	Deaths     int64           `json:"deaths" firestore:"deaths"`
	Series     []SeriesSummary `json:"series" firestore:"series"`
}

// SeriesSummary is the final value of one hazard-ratio series. Undefined
// values are stored as nil.
type SeriesSummary struct {
	Name          string   `json:"name" firestore:"name"`
	BirthYear     string   `json:"birth_year" firestore:"birth_year"`
	Sex           string   `json:"sex" firestore:"sex"`
	TreatmentDose int      `json:"treatment_dose" firestore:"treatment_dose"`
	ReferenceDose int      `json:"reference_dose" firestore:"reference_dose"`
	Week          string   `json:"week,omitempty" firestore:"week"`
	KCOR          *float64 `json:"kcor" firestore:"kcor"`
	Lower         *float64 `json:"kcor_lcl" firestore:"kcor_lcl"`
	Upper         *float64 `json:"kcor_ucl" firestore:"kcor_ucl"`
	AnchorStart   string   `json:"anchor_start" firestore:"anchor_start"`
	AnchorEnd     string   `json:"anchor_end" firestore:"anchor_end"`
	Fallback      bool     `json:"anchor_fallback" firestore:"anchor_fallback"`
}

// OptionalFloat returns nil for NaN and infinities
func OptionalFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// SummarizeSeries reduces a hazard series to its final value
func SummarizeSeries(s *HazardSeries) SeriesSummary {
	sum := SeriesSummary{
		Name:          s.Name(),
		BirthYear:     s.Label(),
		Sex:           s.Sex.String(),
		TreatmentDose: s.TreatmentDose,
		ReferenceDose: s.ReferenceDose,
		AnchorStart:   s.Anchor.Start.String(),
		AnchorEnd:     s.Anchor.End.String(),
		Fallback:      s.Anchor.Fallback,
	}
	if p, ok := s.Final(); ok {
		sum.Week = p.Week.String()
		sum.KCOR = OptionalFloat(p.KCOR)
		sum.Lower = OptionalFloat(p.KCORLower)
		sum.Upper = OptionalFloat(p.KCORUpper)
	}
	return sum
}
