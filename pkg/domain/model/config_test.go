package model_test

import (
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"gopkg.in/yaml.v3"
)

func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := model.DefaultAnalysisConfig()
	gt.NoError(t, cfg.Validate())

	weeks, err := cfg.EnrollmentWeeks()
	gt.NoError(t, err).Required()
	gt.Equal(t, len(weeks), 6)
	gt.Equal(t, weeks[1].String(), "2021-24")
	gt.Equal(t, weeks[5].String(), "2024-01")

	// defaults are independent copies
	cfg.Enrollments[0] = "1999-01"
	gt.Equal(t, model.DefaultEnrollments[0], "2021-13")
}

func TestPersonTimeMode(t *testing.T) {
	t.Run("default is the start-of-week census", func(t *testing.T) {
		cfg := model.DefaultAnalysisConfig()
		gt.Equal(t, cfg.PersonTime, model.PersonTimeStart)
		gt.Equal(t, cfg.PersonTime.PersonTime(100, 10), 100.0)
	})

	t.Run("modes", func(t *testing.T) {
		gt.Equal(t, model.PersonTimeMidpoint.PersonTime(100, 10), 95.0)
		gt.Equal(t, model.PersonTimeAliveHalfDead.PersonTime(100, 10), 105.0)
		gt.Equal(t, model.PersonTimeMidpoint.PersonTime(0, 4), 0.0)
	})

	t.Run("legacy mode is accepted", func(t *testing.T) {
		cfg := model.DefaultAnalysisConfig()
		cfg.PersonTime = model.PersonTimeAliveHalfDead
		gt.NoError(t, cfg.Validate())
	})
}

func TestAnalysisConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *model.AnalysisConfig)
	}{
		{"no enrollments", func(c *model.AnalysisConfig) { c.Enrollments = nil }},
		{"bad enrollment", func(c *model.AnalysisConfig) { c.Enrollments = []string{"2021-99"} }},
		{"duplicate enrollment", func(c *model.AnalysisConfig) { c.Enrollments = []string{"2021-24", "2021_24"} }},
		{"max dose zero", func(c *model.AnalysisConfig) { c.MaxDose = 0 }},
		{"max dose too large", func(c *model.AnalysisConfig) { c.MaxDose = 8 }},
		{"person time", func(c *model.AnalysisConfig) { c.PersonTime = "end" }},
		{"alpha", func(c *model.AnalysisConfig) { c.Alpha = 1 }},
		{"schema", func(c *model.AnalysisConfig) { c.Schema = "german" }},
		{"workers", func(c *model.AnalysisConfig) { c.Workers = 0 }},
		{"reference dose", func(c *model.AnalysisConfig) { c.KCOR.ReferenceDose = 9 }},
		{"treatment equals reference", func(c *model.AnalysisConfig) { c.KCOR.Doses = []int{0} }},
		{"treatment above max dose", func(c *model.AnalysisConfig) { c.MaxDose = 2; c.KCOR.Doses = []int{3} }},
		{"anchor half set", func(c *model.AnalysisConfig) { c.KCOR.Anchor.Start = "2020-01" }},
		{"anchor reversed", func(c *model.AnalysisConfig) {
			c.KCOR.Anchor.Start = "2020-20"
			c.KCOR.Anchor.End = "2020-10"
		}},
		{"detrend model", func(c *model.AnalysisConfig) { c.KCOR.Anchor.Model = "spline" }},
		{"fallback weeks", func(c *model.AnalysisConfig) { c.KCOR.Anchor.FallbackWeeks = 0 }},
		{"standard population", func(c *model.AnalysisConfig) {
			c.StandardPopulation = &model.StandardWeights{Minimum: 1900, Width: 5, Counts: map[int]float64{1902: 10}}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.DefaultAnalysisConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, model.TagInvalidConfig))
		})
	}
}

func TestAnalysisConfigYAML(t *testing.T) {
	data := []byte(`
enrollments: ["2021-24"]
stratify_by_sex: true
standard_population:
  minimum: 1940
  width: 10
  weights:
    1940: 5
    1950: 15
kcor:
  doses: [2]
  anchor:
    start: "2020-01"
    end: "2020-26"
`)
	cfg := model.DefaultAnalysisConfig()
	gt.NoError(t, yaml.Unmarshal(data, cfg)).Required()
	gt.NoError(t, cfg.Validate()).Required()

	gt.Equal(t, cfg.Enrollments, []string{"2021-24"})
	gt.True(t, cfg.StratifyBySex)
	gt.Equal(t, cfg.MaxDose, model.MaxDoses)
	gt.Equal(t, cfg.KCOR.Doses, []int{2})
	gt.Equal(t, cfg.KCOR.Epsilon, 1e-10)
	gt.Equal(t, cfg.KCOR.Anchor.Model, model.DetrendFlat)

	w := cfg.Weights()
	gt.Equal(t, w.Total(), 20.0)
	b, ok := w.Bucket(1957)
	gt.True(t, ok)
	gt.Equal(t, b, 1950)

	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	start, end, err := cfg.KCOR.Anchor.PrimaryAnchor(enroll)
	gt.NoError(t, err).Required()
	gt.Equal(t, start.String(), "2020-01")
	gt.Equal(t, end.String(), "2020-26")
}

func TestPrimaryAnchorDefault(t *testing.T) {
	cfg := model.DefaultAnalysisConfig()
	for enroll, want := range map[string][2]string{
		"2021-24": {"2020-01", "2020-53"},
		"2022-06": {"2021-01", "2021-52"},
	} {
		w, err := model.ParseWeek(enroll)
		gt.NoError(t, err).Required()
		start, end, err := cfg.KCOR.Anchor.PrimaryAnchor(w)
		gt.NoError(t, err).Required()
		gt.Equal(t, start.String(), want[0])
		gt.Equal(t, end.String(), want[1])
	}
}
