package stats_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"github.com/mortality-lab/kcor/pkg/service/stats"
)

func kcorConfig() model.KCORConfig {
	return model.DefaultAnalysisConfig().KCOR
}

// buildInput creates a weekly series running from first for n weeks with
// per-week deaths taken from the given functions
func buildInput(enroll, first model.Week, n int, deathsT, deathsR func(w model.Week) float64) stats.HazardInput {
	in := stats.HazardInput{
		Enrollment:    enroll,
		BirthYear:     model.ASMRBirthYear,
		Sex:           types.SexPooled,
		TreatmentDose: 2,
		ReferenceDose: 0,
	}
	for i := 0; i < n; i++ {
		w := first.Add(i)
		in.Weeks = append(in.Weeks, w)
		in.Treatment = append(in.Treatment, stats.CrudeArm(deathsT(w), 100000))
		in.Reference = append(in.Reference, stats.CrudeArm(deathsR(w), 100000))
	}
	return in
}

func constant(v float64) func(model.Week) float64 {
	return func(model.Week) float64 { return v }
}

func TestCrudeArm(t *testing.T) {
	a := stats.CrudeArm(4, 100)
	gt.Equal(t, a.Rate, 0.04)
	gt.Equal(t, a.LogVar, 0.25)

	z := stats.CrudeArm(0, 100)
	gt.Equal(t, z.Rate, 0.0)
	gt.True(t, math.IsNaN(z.LogVar))

	e := stats.CrudeArm(0, 0)
	gt.True(t, math.IsNaN(e.Rate))
}

func TestEstimateFlatInput(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()

	in := buildInput(enroll, first, 130, constant(150), constant(100))

	for _, anchor := range []model.AnchorConfig{
		{FallbackOffsetWeeks: 52, FallbackWeeks: 52, Model: model.DetrendFlat},
		{Start: "2020-10", End: "2020-20", FallbackOffsetWeeks: 52, FallbackWeeks: 52, Model: model.DetrendFlat},
		{Start: "2021-30", End: "2021-40", FallbackOffsetWeeks: 52, FallbackWeeks: 52, Model: model.DetrendLinear},
	} {
		cfg := kcorConfig()
		cfg.Anchor = anchor
		series, err := stats.NewEstimator(cfg, 0.05).Estimate(in)
		gt.NoError(t, err).Required()

		inWindow := 0
		for _, p := range series.Points {
			gt.True(t, near(p.LogRR, math.Log(1.5), 1e-6))
			gt.True(t, near(p.LogRRDetrended, 0, 1e-9))
			if p.InWindow {
				inWindow++
				gt.True(t, near(p.KCOR, 1, 1e-9))
				gt.True(t, near(p.KCORRaw, 1.5, 1e-6))
				gt.True(t, p.KCORLower < 1 && p.KCORUpper > 1)
			} else {
				gt.True(t, math.IsNaN(p.KCOR))
			}
		}
		gt.True(t, inWindow > 0)
	}
}

func TestEstimateAnchorSensitivity(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()

	// treatment matches reference until enrollment, then runs 1.5x higher
	diverging := func(w model.Week) float64 {
		if w < enroll {
			return 100
		}
		return 150
	}
	in := buildInput(enroll, first, 130, diverging, constant(100))

	t.Run("anchor before divergence keeps the effect", func(t *testing.T) {
		cfg := kcorConfig()
		series, err := stats.NewEstimator(cfg, 0.05).Estimate(in)
		gt.NoError(t, err).Required()

		year, _ := series.Anchor.Start.ISO()
		gt.Equal(t, year, 2020)
		gt.False(t, series.Anchor.Fallback)

		final, ok := series.Final()
		gt.True(t, ok)
		gt.True(t, near(final.KCOR, 1.5, 1e-6))
	})

	t.Run("anchor covering the divergence removes it", func(t *testing.T) {
		cfg := kcorConfig()
		cfg.Anchor.Start = "2021-24"
		cfg.Anchor.End = "2022-26"
		series, err := stats.NewEstimator(cfg, 0.05).Estimate(in)
		gt.NoError(t, err).Required()

		final, ok := series.Final()
		gt.True(t, ok)
		gt.True(t, near(final.KCOR, 1, 1e-6))
		gt.True(t, near(final.KCORRaw, 1.5, 1e-6))
	})
}

func TestEstimateWindow(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()
	in := buildInput(enroll, first, 130, constant(150), constant(100))

	cfg := kcorConfig()
	cfg.AnalysisOffsetWeeks = 2
	cfg.HorizonWeeks = 10
	series, err := stats.NewEstimator(cfg, 0.05).Estimate(in)
	gt.NoError(t, err).Required()

	count := 0
	for _, p := range series.Points {
		if p.InWindow {
			count++
			gt.True(t, p.Week >= enroll.Add(2))
			gt.True(t, p.Week <= enroll.Add(11))
		}
	}
	gt.Equal(t, count, 10)

	var cum float64
	for _, p := range series.Points {
		if p.InWindow {
			cum += p.Weight
			gt.True(t, near(p.CumWeight, cum, 1e-6))
		}
	}
}

func TestEstimateZeroWeightIsUndefined(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()
	in := buildInput(enroll, first, 130, constant(150), constant(100))

	// the treatment arm is empty for the first two analysis weeks
	for i, w := range in.Weeks {
		if w == enroll || w == enroll.Add(1) {
			in.Treatment[i] = stats.CrudeArm(0, 0)
		}
	}

	series, err := stats.NewEstimator(kcorConfig(), 0.05).Estimate(in)
	gt.NoError(t, err).Required()
	for _, p := range series.Points {
		switch p.Week {
		case enroll, enroll.Add(1):
			gt.True(t, p.InWindow)
			gt.True(t, math.IsNaN(p.LogRR))
			gt.True(t, math.IsNaN(p.KCOR))
			gt.Equal(t, p.CumWeight, 0.0)
		case enroll.Add(2):
			gt.True(t, near(p.KCOR, 1, 1e-9))
		}
	}
}

func TestEstimateMissingAnchor(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()

	// data starts at enrollment and ends long before the fallback window
	in := buildInput(enroll, enroll, 20, constant(150), constant(100))

	_, err = stats.NewEstimator(kcorConfig(), 0.05).Estimate(in)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagMissingAnchor))
	gt.S(t, err.Error()).Contains("anchor")

	values := goerr.Values(err)
	gt.Equal(t, values["series"], any("2021_24_BYASMR_D2v0"))
}

func TestEstimateFallbackAnchor(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()

	in := buildInput(enroll, enroll, 120, constant(150), constant(100))
	series, err := stats.NewEstimator(kcorConfig(), 0.05).Estimate(in)
	gt.NoError(t, err).Required()
	gt.True(t, series.Anchor.Fallback)
	gt.Equal(t, series.Anchor.Start, enroll.Add(52))
	gt.Equal(t, series.Anchor.End, enroll.Add(103))
}

func TestEstimateLinearModel(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()

	// log ratio drifts linearly with time and carries no treatment effect
	in := stats.HazardInput{Enrollment: enroll, Sex: types.SexPooled, TreatmentDose: 1}
	for i := 0; i < 130; i++ {
		w := first.Add(i)
		in.Weeks = append(in.Weeks, w)
		in.Reference = append(in.Reference, stats.CrudeArm(100, 100000))
		in.Treatment = append(in.Treatment, stats.CrudeArm(100*math.Exp(0.002*float64(i)), 100000))
	}

	cfg := kcorConfig()
	cfg.Anchor.Model = model.DetrendLinear
	series, err := stats.NewEstimator(cfg, 0.05).Estimate(in)
	gt.NoError(t, err).Required()
	gt.Equal(t, series.Anchor.Model, model.DetrendLinear)
	gt.True(t, near(series.Anchor.Slope, 0.002, 1e-6))

	final, ok := series.Final()
	gt.True(t, ok)
	gt.True(t, near(final.KCOR, 1, 1e-6))
}

func TestLogRatio(t *testing.T) {
	e := stats.NewEstimator(kcorConfig(), 0.05)

	t.Run("defined rates take no epsilon", func(t *testing.T) {
		v := e.LogRatio(stats.CrudeArm(150, 100000), stats.CrudeArm(100, 100000))
		gt.True(t, near(v, math.Log(1.5), 1e-12))
	})

	t.Run("zero deaths over defined person-time stay finite", func(t *testing.T) {
		v := e.LogRatio(stats.CrudeArm(0, 100000), stats.CrudeArm(100, 100000))
		gt.False(t, math.IsNaN(v))
		gt.False(t, math.IsInf(v, 0))
		gt.True(t, near(v, math.Log(1e-10/0.001), 1e-9))
	})

	t.Run("undefined arm stays NaN", func(t *testing.T) {
		gt.True(t, math.IsNaN(e.LogRatio(stats.CrudeArm(0, 0), stats.CrudeArm(100, 100000))))
		gt.True(t, math.IsNaN(e.LogRatio(stats.CrudeArm(100, 100000), stats.CrudeArm(0, 0))))
	})
}

func TestEstimateAnchorSkipsZeroDeathWeeks(t *testing.T) {
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()

	// the treatment arm records no deaths before enrollment and then matches
	// the reference exactly
	afterEnrollment := func(w model.Week) float64 {
		if w < enroll {
			return 0
		}
		return 100
	}

	t.Run("falls back past weeks without deaths", func(t *testing.T) {
		in := buildInput(enroll, first, 200, afterEnrollment, constant(100))
		series, err := stats.NewEstimator(kcorConfig(), 0.05).Estimate(in)
		gt.NoError(t, err).Required()

		gt.True(t, series.Anchor.Fallback)
		gt.Equal(t, series.Anchor.Start, enroll.Add(52))
		gt.True(t, near(series.Anchor.Intercept, 0, 1e-9))

		final, ok := series.Final()
		gt.True(t, ok)
		gt.True(t, near(final.KCOR, 1, 1e-9))

		// weeks without deaths are still reported
		gt.False(t, series.Points[0].InWindow)
		gt.True(t, near(series.Points[0].LogRR, math.Log(1e-10/0.001), 1e-9))
	})

	t.Run("fails when no window has deaths in both arms", func(t *testing.T) {
		in := buildInput(enroll, first, 120, afterEnrollment, constant(100))
		_, err := stats.NewEstimator(kcorConfig(), 0.05).Estimate(in)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagMissingAnchor))
	})
}
