package stats

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"gonum.org/v1/gonum/stat"
)

// Arm is one week of one arm of a hazard-ratio comparison. Rate is NaN when
// PersonTime is zero; LogVar is the variance of log(Rate), NaN when undefined.
type Arm struct {
	Deaths     float64
	PersonTime float64
	Rate       float64
	LogVar     float64
}

// CrudeArm builds an arm from raw counts. The log-rate variance is 1/D and
// requires at least one death.
func CrudeArm(deaths, personTime float64) Arm {
	arm := Arm{Deaths: deaths, PersonTime: personTime, Rate: math.NaN(), LogVar: math.NaN()}
	if personTime > 0 {
		arm.Rate = deaths / personTime
	}
	if deaths >= 1 {
		arm.LogVar = 1 / deaths
	}
	return arm
}

// StandardizedArm builds an arm from an age-standardized rate, with the
// delta-method log variance
func StandardizedArm(r model.StandardizedRate) Arm {
	return Arm{
		Deaths:     r.Deaths,
		PersonTime: r.PersonTime,
		Rate:       r.Rate,
		LogVar:     r.LogVariance(),
	}
}

// HazardInput is the week-aligned pair of arms of one stratum
type HazardInput struct {
	Enrollment    model.Week
	BirthYear     int
	Sex           types.Sex
	TreatmentDose int
	ReferenceDose int
	Weeks         []model.Week
	Treatment     []Arm
	Reference     []Arm
}

// Estimator computes detrended cumulative hazard ratios
type Estimator struct {
	cfg model.KCORConfig
	z   float64
}

// NewEstimator creates an Estimator. alpha sets the confidence level of the
// KCOR interval.
func NewEstimator(cfg model.KCORConfig, alpha float64) *Estimator {
	return &Estimator{cfg: cfg, z: ZScore(alpha)}
}

// Window returns the first and last week of the analysis window for an
// enrollment. A zero horizon extends the window to last.
func (e *Estimator) Window(enrollment, last model.Week) (model.Week, model.Week) {
	start := enrollment.Add(e.cfg.AnalysisOffsetWeeks)
	end := last
	if e.cfg.HorizonWeeks > 0 {
		if h := start.Add(e.cfg.HorizonWeeks - 1); h < end {
			end = h
		}
	}
	return start, end
}

// LogRatio is log(rT/rR). A zero rate over defined person-time is replaced
// by epsilon; an undefined rate propagates as NaN.
func (e *Estimator) LogRatio(t, r Arm) float64 {
	if math.IsNaN(t.Rate) || math.IsNaN(r.Rate) {
		return math.NaN()
	}
	return math.Log(e.guard(t.Rate) / e.guard(r.Rate))
}

func (e *Estimator) guard(rate float64) float64 {
	if rate == 0 {
		return e.cfg.Epsilon
	}
	return rate
}

// anchorable reports whether a week may enter the anchor fit. A week where
// either arm had no deaths only carries the epsilon ratio.
func anchorable(t, r Arm, logRR float64) bool {
	if math.IsNaN(logRR) || math.IsInf(logRR, 0) {
		return false
	}
	return t.Rate > 0 && r.Rate > 0
}

// Estimate detrends the weekly log rate ratio against its anchor-period
// baseline and accumulates the weighted KCOR over the analysis window. It
// fails with TagMissingAnchor when neither the primary nor the fallback
// anchor window holds a week in which both arms recorded deaths.
func (e *Estimator) Estimate(in HazardInput) (*model.HazardSeries, error) {
	if len(in.Treatment) != len(in.Weeks) || len(in.Reference) != len(in.Weeks) {
		return nil, goerr.New("arm length does not match week axis",
			goerr.V("weeks", len(in.Weeks)),
			goerr.V("treatment", len(in.Treatment)),
			goerr.V("reference", len(in.Reference)))
	}

	series := &model.HazardSeries{
		Enrollment:    in.Enrollment,
		BirthYear:     in.BirthYear,
		Sex:           in.Sex,
		TreatmentDose: in.TreatmentDose,
		ReferenceDose: in.ReferenceDose,
		Points:        make([]model.HazardPoint, len(in.Weeks)),
	}
	if len(in.Weeks) == 0 {
		return nil, goerr.New("hazard series has no weeks", goerr.V("series", series.Name()))
	}

	logRR := make([]float64, len(in.Weeks))
	usable := make([]bool, len(in.Weeks))
	for i := range in.Weeks {
		logRR[i] = e.LogRatio(in.Treatment[i], in.Reference[i])
		usable[i] = anchorable(in.Treatment[i], in.Reference[i], logRR[i])
	}

	winStart, winEnd := e.Window(in.Enrollment, in.Weeks[len(in.Weeks)-1])

	anchor, err := e.fitAnchor(in, series, logRR, usable, winStart)
	if err != nil {
		return nil, err
	}
	series.Anchor = anchor

	var sumW, sumWY, sumWRaw, sumW2V, sumWV float64
	for i, w := range in.Weeks {
		t, r := in.Treatment[i], in.Reference[i]
		p := model.HazardPoint{
			Week:        w,
			DeathsT:     t.Deaths,
			PersonTimeT: t.PersonTime,
			DeathsR:     r.Deaths,
			PersonTimeR: r.PersonTime,
			RateT:       t.Rate,
			RateR:       r.Rate,
			LogRR:       logRR[i],
			Weight:      math.Min(t.PersonTime, r.PersonTime),
			KCOR:        math.NaN(),
			KCORLower:   math.NaN(),
			KCORUpper:   math.NaN(),
			KCORRaw:     math.NaN(),
			InWindow:    w >= winStart && w <= winEnd,
		}
		p.LogRRDetrended = logRR[i] - anchor.Predict(int(w-winStart))

		if p.InWindow {
			if !math.IsNaN(p.LogRRDetrended) && !math.IsInf(p.LogRRDetrended, 0) && p.Weight > 0 {
				sumW += p.Weight
				sumWY += p.Weight * p.LogRRDetrended
				sumWRaw += p.Weight * p.LogRR
				if v := t.LogVar + r.LogVar; !math.IsNaN(v) {
					sumW2V += p.Weight * p.Weight * v
					sumWV += p.Weight
				}
			}
			p.CumWeight = sumW
			if sumW > 0 {
				logK := sumWY / sumW
				p.KCOR = math.Exp(logK)
				p.KCORRaw = math.Exp(sumWRaw / sumW)
				if sumWV > 0 {
					se := math.Sqrt(sumW2V / (sumWV * sumWV))
					p.KCORLower = math.Exp(logK - e.z*se)
					p.KCORUpper = math.Exp(logK + e.z*se)
				}
			}
		}
		series.Points[i] = p
	}

	return series, nil
}

func (e *Estimator) fitAnchor(in HazardInput, series *model.HazardSeries, logRR []float64, usable []bool, origin model.Week) (model.AnchorInfo, error) {
	primaryStart, primaryEnd, err := e.cfg.Anchor.PrimaryAnchor(in.Enrollment)
	if err != nil {
		return model.AnchorInfo{}, err
	}
	fallbackStart := origin.Add(e.cfg.Anchor.FallbackOffsetWeeks)
	fallbackEnd := fallbackStart.Add(e.cfg.Anchor.FallbackWeeks - 1)

	info := model.AnchorInfo{Start: primaryStart, End: primaryEnd, Model: e.cfg.Anchor.Model}
	xs, ys := anchorPoints(in.Weeks, logRR, usable, primaryStart, primaryEnd, origin)
	if len(ys) == 0 {
		info.Start, info.End, info.Fallback = fallbackStart, fallbackEnd, true
		xs, ys = anchorPoints(in.Weeks, logRR, usable, fallbackStart, fallbackEnd, origin)
	}
	if len(ys) == 0 {
		return model.AnchorInfo{}, goerr.New("no anchor data for detrending",
			goerr.V("series", series.Name()),
			goerr.V("birth_year", series.Label()),
			goerr.V("sex", in.Sex.String()),
			goerr.V("treatment_dose", in.TreatmentDose),
			goerr.V("reference_dose", in.ReferenceDose),
			goerr.V("primary_anchor", primaryStart.String()+".."+primaryEnd.String()),
			goerr.V("fallback_anchor", fallbackStart.String()+".."+fallbackEnd.String()),
			goerr.T(model.TagMissingAnchor))
	}

	info.Points = len(ys)
	if info.Model == model.DetrendLinear && len(ys) >= 2 && stat.Variance(xs, nil) > 0 {
		info.Intercept, info.Slope = stat.LinearRegression(xs, ys, nil, false)
		return info, nil
	}
	info.Model = model.DetrendFlat
	info.Intercept = stat.Mean(ys, nil)
	return info, nil
}

// anchorPoints collects the usable log ratios in [start, end] with their week
// offsets from origin
func anchorPoints(weeks []model.Week, logRR []float64, usable []bool, start, end, origin model.Week) ([]float64, []float64) {
	var xs, ys []float64
	for i, w := range weeks {
		if w < start || w > end || !usable[i] {
			continue
		}
		xs = append(xs, float64(w-origin))
		ys = append(ys, logRR[i])
	}
	return xs, ys
}
