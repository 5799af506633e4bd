package model

import (
	"sort"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// ASMRBirthYear is the pseudo birth year of age-standardized rows
const ASMRBirthYear = 0

// Birth-year labels written to the output workbook. Downstream spreadsheets
// match on these strings.
const (
	LabelASMR    = "ASMR"
	LabelUnknown = "UNK"
)

// BirthYearLabel renders a birth year the way the output workbook expects
func BirthYearLabel(year int) string {
	switch year {
	case UnknownBirthYear:
		return LabelUnknown
	case ASMRBirthYear:
		return LabelASMR
	default:
		return strconv.Itoa(year)
	}
}

// StratumKey identifies one weekly series within an enrollment cohort
type StratumKey struct {
	BirthYear int
	Sex       types.Sex
	Dose      int
}

// WeeklyStratumRecord is one (week, stratum) cell of a cohort table
type WeeklyStratumRecord struct {
	Week  Week
	Key   StratumKey
	Alive int64
	Dead  int64
}

// Series holds the alive and dead counts of one stratum, aligned to the
// week axis of its CohortTable.
type Series struct {
	Key   StratumKey
	Alive []int64
	Dead  []int64
}

// CohortTable is the dense weekly attrition table of one enrollment cohort.
// Every combination of birth year, sex and dose group has a series, even when
// its population is zero in all weeks.
type CohortTable struct {
	Enrollment Week
	Weeks      []Week
	BirthYears []int
	Sexes      []types.Sex
	MaxDose    int

	series map[StratumKey]*Series
}

// NewCohortTable allocates a dense, zeroed table covering first..last
func NewCohortTable(enrollment, first, last Week, birthYears []int, sexes []types.Sex, maxDose int) (*CohortTable, error) {
	if last < first {
		return nil, goerr.New("week range is empty",
			goerr.V("first", first.String()),
			goerr.V("last", last.String()))
	}
	if maxDose < 0 {
		return nil, goerr.New("max dose must not be negative", goerr.V("maxDose", maxDose))
	}

	years := append([]int(nil), birthYears...)
	sort.Ints(years)

	weeks := make([]Week, 0, int(last-first)+1)
	for w := first; w <= last; w++ {
		weeks = append(weeks, w)
	}

	t := &CohortTable{
		Enrollment: enrollment,
		Weeks:      weeks,
		BirthYears: years,
		Sexes:      append([]types.Sex(nil), sexes...),
		MaxDose:    maxDose,
		series:     make(map[StratumKey]*Series, len(years)*len(sexes)*(maxDose+1)),
	}
	for _, by := range t.BirthYears {
		for _, sex := range t.Sexes {
			for dose := 0; dose <= maxDose; dose++ {
				key := StratumKey{BirthYear: by, Sex: sex, Dose: dose}
				t.series[key] = &Series{
					Key:   key,
					Alive: make([]int64, len(weeks)),
					Dead:  make([]int64, len(weeks)),
				}
			}
		}
	}
	return t, nil
}

// Series returns the series for key, or nil when the key is outside the table
func (t *CohortTable) Series(key StratumKey) *Series {
	return t.series[key]
}

// Keys returns all stratum keys ordered by birth year, sex and dose
func (t *CohortTable) Keys() []StratumKey {
	keys := make([]StratumKey, 0, len(t.series))
	for _, by := range t.BirthYears {
		for _, sex := range t.Sexes {
			for dose := 0; dose <= t.MaxDose; dose++ {
				keys = append(keys, StratumKey{BirthYear: by, Sex: sex, Dose: dose})
			}
		}
	}
	return keys
}

// WeekIndex returns the position of w on the week axis
func (t *CohortTable) WeekIndex(w Week) (int, bool) {
	if len(t.Weeks) == 0 || w < t.Weeks[0] || w > t.Weeks[len(t.Weeks)-1] {
		return 0, false
	}
	return int(w - t.Weeks[0]), true
}

// EnrollmentIndex returns the index of the enrollment week
func (t *CohortTable) EnrollmentIndex() int {
	idx, _ := t.WeekIndex(t.Enrollment)
	return idx
}

// Records flattens the table into week-major records
func (t *CohortTable) Records() []WeeklyStratumRecord {
	keys := t.Keys()
	out := make([]WeeklyStratumRecord, 0, len(keys)*len(t.Weeks))
	for i, w := range t.Weeks {
		for _, key := range keys {
			s := t.series[key]
			out = append(out, WeeklyStratumRecord{Week: w, Key: key, Alive: s.Alive[i], Dead: s.Dead[i]})
		}
	}
	return out
}

// TotalDeaths sums deaths over all series
func (t *CohortTable) TotalDeaths() int64 {
	var total int64
	for _, s := range t.series {
		for _, d := range s.Dead {
			total += d
		}
	}
	return total
}

// PersonTimeMode selects how weekly person-time is derived from alive and dead
// counts. Alive is the census at the start of the week, so it already counts
// the week's decedents.
type PersonTimeMode string

const (
	// PersonTimeStart uses the population alive at the start of the week
	PersonTimeStart PersonTimeMode = "start"
	// PersonTimeMidpoint subtracts half of the week's deaths
	PersonTimeMidpoint PersonTimeMode = "midpoint"
	// PersonTimeAliveHalfDead adds half of the week's deaths to Alive, which
	// reproduces workbooks produced by the legacy rate scripts
	PersonTimeAliveHalfDead PersonTimeMode = "alive_plus_half_dead"
)

// IsValid checks the mode
func (m PersonTimeMode) IsValid() bool {
	switch m {
	case PersonTimeStart, PersonTimeMidpoint, PersonTimeAliveHalfDead:
		return true
	default:
		return false
	}
}

// PersonTime returns the person-weeks contributed by one week of a series
func (m PersonTimeMode) PersonTime(alive, dead int64) float64 {
	pt := float64(alive)
	switch m {
	case PersonTimeMidpoint:
		pt -= 0.5 * float64(dead)
	case PersonTimeAliveHalfDead:
		pt += 0.5 * float64(dead)
	}
	if pt < 0 {
		return 0
	}
	return pt
}
