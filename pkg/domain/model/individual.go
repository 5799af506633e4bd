package model

import "github.com/mortality-lab/kcor/pkg/domain/types"

// MaxDoses is the number of sequential dose date columns in the registry
const MaxDoses = 7

// UnknownBirthYear is the birth year of records without a parsable year
const UnknownBirthYear = -1

// Individual is one registry row reduced to the fields the cohort analysis needs
type Individual struct {
	Row       int32 // 1-based data row in the input file, for warnings
	BirthYear int16
	Sex       types.Sex
	Infection int8
	Doses     [MaxDoses]Day
	Death     Day
}

// NewIndividual returns an Individual with every date missing
func NewIndividual(row int) Individual {
	ind := Individual{
		Row:       int32(row),
		BirthYear: UnknownBirthYear,
		Sex:       types.SexOther,
		Death:     NoDay,
	}
	for i := range ind.Doses {
		ind.Doses[i] = NoDay
	}
	return ind
}

// HasDied reports whether a death date is recorded
func (p *Individual) HasDied() bool {
	return !p.Death.IsZero()
}

// ReferenceDay is the day at which the dose group is frozen: the enrollment
// day, or the death day for people who died before enrollment.
func (p *Individual) ReferenceDay(enrollment Day) Day {
	if p.HasDied() && p.Death < enrollment {
		return p.Death
	}
	return enrollment
}

// DoseGroupAt returns the dose group as of ref: the highest dose number whose
// date is on or before ref. A later dose dated on or before ref wins even when
// an earlier dose is missing or dated after it. Groups above maxDose collapse
// into maxDose.
func (p *Individual) DoseGroupAt(ref Day, maxDose int) int {
	group := 0
	for i, d := range p.Doses {
		if !d.IsZero() && d <= ref {
			group = i + 1
		}
	}
	if group > maxDose {
		group = maxDose
	}
	return group
}

// FirstDose returns the earliest recorded dose date
func (p *Individual) FirstDose() Day {
	first := NoDay
	for _, d := range p.Doses {
		if d.IsZero() {
			continue
		}
		if first.IsZero() || d < first {
			first = d
		}
	}
	return first
}
