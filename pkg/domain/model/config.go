package model

import (
	"log/slog"
	"math"
	"runtime"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultEnrollments are the enrollment weeks analyzed when none are configured
var DefaultEnrollments = []string{"2021-13", "2021-24", "2021-41", "2022-06", "2022-47", "2024-01"}

// Registry column schemas
const (
	SchemaAuto    = ""
	SchemaEnglish = "english"
	SchemaCzech   = "czech"
)

// DetrendModel selects how the anchor-period baseline of the log rate ratio is estimated
type DetrendModel string

const (
	// DetrendFlat uses the anchor-period mean as a constant baseline
	DetrendFlat DetrendModel = "flat"
	// DetrendLinear fits a least-squares line over week offset and extrapolates it
	DetrendLinear DetrendModel = "linear"
)

// IsValid checks the model name
func (m DetrendModel) IsValid() bool {
	return m == DetrendFlat || m == DetrendLinear
}

// AnalysisConfig holds every parameter of a cohort analysis run. Load it over
// DefaultAnalysisConfig so that keys absent from a YAML file keep their defaults.
type AnalysisConfig struct {
	Enrollments           []string          `yaml:"enrollments"`
	MaxDose               int               `yaml:"max_dose"`
	StratifyBySex         bool              `yaml:"stratify_by_sex"`
	PersonTime            PersonTimeMode    `yaml:"person_time"`
	Alpha                 float64           `yaml:"alpha"`
	MaxInfection          int               `yaml:"max_infection"`
	ExcludeDoseAfterDeath bool              `yaml:"exclude_dose_after_death"`
	StandardPopulation    *StandardWeights  `yaml:"standard_population,omitempty"`
	Schema                string            `yaml:"schema"`
	Columns               map[string]string `yaml:"columns,omitempty"`
	Workers               int               `yaml:"workers"`
	KCOR                  KCORConfig        `yaml:"kcor"`
}

// KCORConfig controls the detrended hazard-ratio series
type KCORConfig struct {
	ReferenceDose       int          `yaml:"reference_dose"`
	Doses               []int        `yaml:"doses"`
	BirthYears          []int        `yaml:"birth_years,omitempty"`
	AllBirthYears       bool         `yaml:"all_birth_years"`
	IncludeASMR         bool         `yaml:"include_asmr"`
	Epsilon             float64      `yaml:"epsilon"`
	AnalysisOffsetWeeks int          `yaml:"analysis_offset_weeks"`
	HorizonWeeks        int          `yaml:"horizon_weeks"`
	Anchor              AnchorConfig `yaml:"anchor"`
}

// AnchorConfig locates the baseline window of the detrending model. Start and
// End are ISO weeks; when both are empty the ISO year preceding the enrollment
// year is used.
type AnchorConfig struct {
	Start               string       `yaml:"start,omitempty"`
	End                 string       `yaml:"end,omitempty"`
	FallbackOffsetWeeks int          `yaml:"fallback_offset_weeks"`
	FallbackWeeks       int          `yaml:"fallback_weeks"`
	Model               DetrendModel `yaml:"model"`
}

// DefaultAnalysisConfig returns the configuration of the reference analysis
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Enrollments:   slices.Clone(DefaultEnrollments),
		MaxDose:       MaxDoses,
		StratifyBySex: false,
		PersonTime:    PersonTimeStart,
		Alpha:         0.05,
		MaxInfection:  1,
		Schema:        SchemaAuto,
		Workers:       runtime.NumCPU(),
		KCOR: KCORConfig{
			ReferenceDose: 0,
			Doses:         []int{1, 2},
			IncludeASMR:   true,
			Epsilon:       1e-10,
			Anchor: AnchorConfig{
				FallbackOffsetWeeks: 52,
				FallbackWeeks:       52,
				Model:               DetrendFlat,
			},
		},
	}
}

// Weights returns the standard population, falling back to the built-in table
func (c *AnalysisConfig) Weights() StandardWeights {
	if c.StandardPopulation == nil {
		return DefaultStandardWeights()
	}
	return c.StandardPopulation.Clone()
}

// EnrollmentWeeks parses the configured enrollment weeks
func (c *AnalysisConfig) EnrollmentWeeks() ([]Week, error) {
	weeks := make([]Week, 0, len(c.Enrollments))
	for _, s := range c.Enrollments {
		w, err := ParseWeek(s)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid enrollment week", goerr.V("enrollment", s), goerr.T(TagInvalidConfig))
		}
		weeks = append(weeks, w)
	}
	return weeks, nil
}

// Validate validates the analysis configuration
func (c *AnalysisConfig) Validate() error {
	if len(c.Enrollments) == 0 {
		return goerr.New("at least one enrollment week is required", goerr.T(TagInvalidConfig))
	}
	weeks, err := c.EnrollmentWeeks()
	if err != nil {
		return err
	}
	seen := make(map[Week]bool, len(weeks))
	for _, w := range weeks {
		if seen[w] {
			return goerr.New("duplicate enrollment week", goerr.V("enrollment", w.String()), goerr.T(TagInvalidConfig))
		}
		seen[w] = true
	}

	if c.MaxDose < 1 || c.MaxDose > MaxDoses {
		return goerr.New("max dose out of range", goerr.V("max_dose", c.MaxDose), goerr.V("limit", MaxDoses), goerr.T(TagInvalidConfig))
	}
	if !c.PersonTime.IsValid() {
		return goerr.New("unknown person-time mode", goerr.V("person_time", c.PersonTime), goerr.T(TagInvalidConfig))
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return goerr.New("alpha must be in (0, 1)", goerr.V("alpha", c.Alpha), goerr.T(TagInvalidConfig))
	}
	if c.MaxInfection < 0 {
		return goerr.New("max infection must not be negative", goerr.V("max_infection", c.MaxInfection), goerr.T(TagInvalidConfig))
	}
	switch c.Schema {
	case SchemaAuto, SchemaEnglish, SchemaCzech:
	default:
		return goerr.New("unknown registry schema", goerr.V("schema", c.Schema), goerr.T(TagInvalidConfig))
	}
	if c.Workers < 1 {
		return goerr.New("workers must be positive", goerr.V("workers", c.Workers), goerr.T(TagInvalidConfig))
	}
	if c.StandardPopulation != nil {
		if err := c.StandardPopulation.Validate(); err != nil {
			return goerr.Wrap(err, "invalid standard population", goerr.T(TagInvalidConfig))
		}
	}
	if err := c.KCOR.validate(c.MaxDose); err != nil {
		return goerr.Wrap(err, "invalid kcor settings", goerr.T(TagInvalidConfig))
	}
	return nil
}

func (k *KCORConfig) validate(maxDose int) error {
	if k.ReferenceDose < 0 || k.ReferenceDose > maxDose {
		return goerr.New("reference dose out of range", goerr.V("reference_dose", k.ReferenceDose))
	}
	for _, d := range k.Doses {
		if d < 0 || d > maxDose {
			return goerr.New("treatment dose out of range", goerr.V("dose", d), goerr.V("max_dose", maxDose))
		}
		if d == k.ReferenceDose {
			return goerr.New("treatment dose equals reference dose", goerr.V("dose", d))
		}
	}
	if k.Epsilon < 0 || math.IsNaN(k.Epsilon) {
		return goerr.New("epsilon must not be negative", goerr.V("epsilon", k.Epsilon))
	}
	if k.AnalysisOffsetWeeks < 0 {
		return goerr.New("analysis offset must not be negative", goerr.V("analysis_offset_weeks", k.AnalysisOffsetWeeks))
	}
	if k.HorizonWeeks < 0 {
		return goerr.New("horizon must not be negative", goerr.V("horizon_weeks", k.HorizonWeeks))
	}
	return k.Anchor.validate()
}

func (a *AnchorConfig) validate() error {
	if !a.Model.IsValid() {
		return goerr.New("unknown detrend model", goerr.V("model", a.Model))
	}
	if (a.Start == "") != (a.End == "") {
		return goerr.New("anchor start and end must be set together", goerr.V("start", a.Start), goerr.V("end", a.End))
	}
	if a.Start != "" {
		start, err := ParseWeek(a.Start)
		if err != nil {
			return goerr.Wrap(err, "invalid anchor start")
		}
		end, err := ParseWeek(a.End)
		if err != nil {
			return goerr.Wrap(err, "invalid anchor end")
		}
		if end < start {
			return goerr.New("anchor end precedes start", goerr.V("start", a.Start), goerr.V("end", a.End))
		}
	}
	if a.FallbackOffsetWeeks < 0 || a.FallbackWeeks < 1 {
		return goerr.New("invalid fallback anchor window",
			goerr.V("fallback_offset_weeks", a.FallbackOffsetWeeks),
			goerr.V("fallback_weeks", a.FallbackWeeks))
	}
	return nil
}

// PrimaryAnchor returns the primary anchor window for an enrollment week
func (a *AnchorConfig) PrimaryAnchor(enrollment Week) (Week, Week, error) {
	if a.Start != "" {
		start, err := ParseWeek(a.Start)
		if err != nil {
			return 0, 0, goerr.Wrap(err, "invalid anchor start", goerr.T(TagInvalidConfig))
		}
		end, err := ParseWeek(a.End)
		if err != nil {
			return 0, 0, goerr.Wrap(err, "invalid anchor end", goerr.T(TagInvalidConfig))
		}
		return start, end, nil
	}

	year, _ := enrollment.ISO()
	first, err := ISOWeekMonday(year-1, 1)
	if err != nil {
		return 0, 0, err
	}
	// ISO week 1 of the enrollment year minus one week is the last week of the prior year
	next, err := ISOWeekMonday(year, 1)
	if err != nil {
		return 0, 0, err
	}
	return first.Week(), next.Week() - 1, nil
}

// LogValue implements slog.LogValuer
func (c *AnalysisConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("enrollments", c.Enrollments),
		slog.Int("max_dose", c.MaxDose),
		slog.Bool("stratify_by_sex", c.StratifyBySex),
		slog.String("person_time", string(c.PersonTime)),
		slog.Float64("alpha", c.Alpha),
		slog.Int("max_infection", c.MaxInfection),
		slog.Bool("exclude_dose_after_death", c.ExcludeDoseAfterDeath),
		slog.Bool("custom_standard_population", c.StandardPopulation != nil),
		slog.String("schema", c.Schema),
		slog.Int("workers", c.Workers),
		slog.Any("kcor_doses", c.KCOR.Doses),
		slog.Int("kcor_reference_dose", c.KCOR.ReferenceDose),
		slog.String("kcor_model", string(c.KCOR.Anchor.Model)),
	)
}
