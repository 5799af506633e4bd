package cohort

import (
	"context"
	"sort"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// Options configures the attrition builder
type Options struct {
	MaxDose               int
	StratifyBySex         bool
	MaxInfection          int
	ExcludeDoseAfterDeath bool
}

// OptionsFrom extracts builder options from an analysis configuration
func OptionsFrom(cfg *model.AnalysisConfig) Options {
	return Options{
		MaxDose:               cfg.MaxDose,
		StratifyBySex:         cfg.StratifyBySex,
		MaxInfection:          cfg.MaxInfection,
		ExcludeDoseAfterDeath: cfg.ExcludeDoseAfterDeath,
	}
}

// Builder turns per-individual registry records into weekly attrition tables
type Builder struct {
	opts Options
}

// New creates a Builder
func New(opts Options) *Builder {
	if opts.MaxDose <= 0 || opts.MaxDose > model.MaxDoses {
		opts.MaxDose = model.MaxDoses
	}
	return &Builder{opts: opts}
}

// Build produces the dense attrition table of one enrollment cohort. Each
// person is counted once at the first week in the stratum of their dose group
// at the reference day; deaths are counted at their death week and the alive
// series is derived by attrition.
func (b *Builder) Build(ctx context.Context, people []model.Individual, enrollment model.Week) (*model.CohortTable, error) {
	enrollDay := enrollment.Monday()

	first, last := enrollment, enrollment
	years := make(map[int]struct{})
	sexes := make(map[types.Sex]struct{})
	for i := range people {
		p := &people[i]
		years[int(p.BirthYear)] = struct{}{}
		sexes[b.sexOf(p)] = struct{}{}
		for _, d := range p.Doses {
			if d.IsZero() {
				continue
			}
			first, last = extend(first, last, d.Week())
		}
		if p.HasDied() {
			first, last = extend(first, last, p.Death.Week())
		}
	}

	table, err := model.NewCohortTable(enrollment, first, last, sortedYears(years), sortedSexes(sexes), b.opts.MaxDose)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to allocate cohort table", goerr.V("enrollment", enrollment.String()))
	}

	for i := range people {
		p := &people[i]
		key := model.StratumKey{
			BirthYear: int(p.BirthYear),
			Sex:       b.sexOf(p),
			Dose:      p.DoseGroupAt(p.ReferenceDay(enrollDay), b.opts.MaxDose),
		}
		s := table.Series(key)
		if s == nil {
			return nil, goerr.New("stratum missing from cohort table", goerr.V("key", key), goerr.V("row", p.Row))
		}
		s.Alive[0]++
		if p.HasDied() {
			idx, ok := table.WeekIndex(p.Death.Week())
			if !ok {
				return nil, goerr.New("death week outside cohort table", goerr.V("row", p.Row), goerr.V("death", p.Death.String()))
			}
			s.Dead[idx]++
		}
	}

	for _, key := range table.Keys() {
		applyAttrition(table.Series(key))
	}

	ctxlog.From(ctx).Debug("cohort table built",
		"enrollment", enrollment.String(),
		"first_week", first.String(),
		"last_week", last.String(),
		"weeks", len(table.Weeks),
		"birth_years", len(table.BirthYears),
		"people", len(people),
	)
	return table, nil
}

func (b *Builder) sexOf(p *model.Individual) types.Sex {
	if !b.opts.StratifyBySex {
		return types.SexPooled
	}
	return p.Sex
}

// applyAttrition derives alive[i] = max(alive[i-1] - dead[i-1], 0) from the census in alive[0]
func applyAttrition(s *model.Series) {
	for i := 1; i < len(s.Alive); i++ {
		v := s.Alive[i-1] - s.Dead[i-1]
		if v < 0 {
			v = 0
		}
		s.Alive[i] = v
	}
}

func extend(first, last, w model.Week) (model.Week, model.Week) {
	if w < first {
		first = w
	}
	if w > last {
		last = w
	}
	return first, last
}

func sortedYears(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for y := range set {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

var sexOrder = map[types.Sex]int{types.SexMale: 0, types.SexFemale: 1, types.SexOther: 2, types.SexPooled: 3}

func sortedSexes(set map[types.Sex]struct{}) []types.Sex {
	out := make([]types.Sex, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return sexOrder[out[i]] < sexOrder[out[j]] })
	if len(out) == 0 {
		out = append(out, types.SexPooled)
	}
	return out
}
