package model

import (
	"fmt"
	"math"

	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// HazardPoint is one week of a detrended hazard-ratio series
type HazardPoint struct {
	Week           Week
	DeathsT        float64
	PersonTimeT    float64
	DeathsR        float64
	PersonTimeR    float64
	RateT          float64
	RateR          float64
	LogRR          float64
	LogRRDetrended float64
	Weight         float64
	CumWeight      float64
	KCOR           float64
	KCORLower      float64
	KCORUpper      float64
	KCORRaw        float64
	InWindow       bool
}

// RRDetrended is the detrended rate ratio of the week
func (p HazardPoint) RRDetrended() float64 {
	return math.Exp(p.LogRRDetrended)
}

// AnchorInfo records the baseline model a series was detrended with
type AnchorInfo struct {
	Start     Week
	End       Week
	Fallback  bool
	Model     DetrendModel
	Intercept float64
	Slope     float64
	Points    int
}

// Predict evaluates the baseline at a week offset from the analysis origin
func (a AnchorInfo) Predict(offset int) float64 {
	return a.Intercept + a.Slope*float64(offset)
}

// HazardSeries is the detrended cumulative hazard ratio of a treatment dose
// group against a reference dose group within one stratum
type HazardSeries struct {
	Enrollment    Week
	BirthYear     int
	Sex           types.Sex
	TreatmentDose int
	ReferenceDose int
	Anchor        AnchorInfo
	Points        []HazardPoint
}

// Label is the stratum label of the series
func (s *HazardSeries) Label() string {
	return BirthYearLabel(s.BirthYear)
}

// Name identifies the series as <enrollment>_BY<label>_D<t>v<r>[_<sex>]
func (s *HazardSeries) Name() string {
	name := fmt.Sprintf("%s_BY%s_D%dv%d", s.Enrollment.SheetName(), s.Label(), s.TreatmentDose, s.ReferenceDose)
	if s.Sex != types.SexPooled && s.Sex.IsValid() {
		name += "_" + s.Sex.String()
	}
	return name
}

// Final returns the last in-window point with a finite KCOR
func (s *HazardSeries) Final() (HazardPoint, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		p := s.Points[i]
		if p.InWindow && !math.IsNaN(p.KCOR) && !math.IsInf(p.KCOR, 0) {
			return p, true
		}
	}
	return HazardPoint{}, false
}
