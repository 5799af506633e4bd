package usecase

import (
	"context"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"github.com/mortality-lab/kcor/pkg/service/cohort"
	"github.com/mortality-lab/kcor/pkg/service/stats"
)

// pipeline holds the per-run services shared by every enrollment worker. All
// of them are read-only after construction.
type pipeline struct {
	cfg          *model.AnalysisConfig
	builder      *cohort.Builder
	standardizer *stats.Standardizer
	estimator    *stats.Estimator
}

func newPipeline(cfg *model.AnalysisConfig) *pipeline {
	return &pipeline{
		cfg:          cfg,
		builder:      cohort.New(cohort.OptionsFrom(cfg)),
		standardizer: stats.NewStandardizer(cfg.Weights(), cfg.Alpha),
		estimator:    stats.NewEstimator(cfg.KCOR, cfg.Alpha),
	}
}

type groupKey struct {
	sex  types.Sex
	dose int
}

// analyze computes every output of one enrollment cohort
func (p *pipeline) analyze(ctx context.Context, people []model.Individual, enrollment model.Week) (*model.EnrollmentResult, error) {
	logger := ctxlog.From(ctx).With("enrollment", enrollment.String())
	ctx = ctxlog.With(ctx, logger)

	table, err := p.builder.Build(ctx, people, enrollment)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build cohort table", goerr.V("enrollment", enrollment.String()))
	}

	result := &model.EnrollmentResult{Enrollment: enrollment, Table: table}
	start := table.EnrollmentIndex()
	mode := p.cfg.PersonTime

	for _, key := range table.Keys() {
		result.Crude = append(result.Crude, stats.CrudeSeries(table.Series(key), start, mode, p.cfg.Alpha))
	}

	full := make(map[groupKey]model.StandardizedSeries)
	for _, sex := range table.Sexes {
		for dose := 0; dose <= table.MaxDose; dose++ {
			result.Standardized = append(result.Standardized, p.standardizer.Series(table, sex, dose, start, mode))
			all := p.standardizer.Series(table, sex, dose, 0, mode)
			result.StandardizedAll = append(result.StandardizedAll, all)
			full[groupKey{sex: sex, dose: dose}] = all
		}
	}

	hazards, err := p.hazards(ctx, table, full)
	if err != nil {
		return nil, err
	}
	result.Hazards = hazards

	logger.Info("enrollment analyzed",
		"weeks", len(table.Weeks),
		"strata", len(table.Keys()),
		"population", result.Population(),
		"deaths", table.TotalDeaths(),
		"hazard_series", len(hazards),
	)
	return result, nil
}

// hazards estimates one series per (stratum, sex, treatment dose) against the
// reference dose. The ASMR stratum comes first, then birth-year strata in
// ascending order.
func (p *pipeline) hazards(ctx context.Context, table *model.CohortTable, full map[groupKey]model.StandardizedSeries) ([]*model.HazardSeries, error) {
	kc := p.cfg.KCOR
	years := p.hazardBirthYears(ctx, table)

	var out []*model.HazardSeries
	for _, sex := range table.Sexes {
		for _, dose := range kc.Doses {
			if kc.IncludeASMR {
				in := stats.HazardInput{
					Enrollment:    table.Enrollment,
					BirthYear:     model.ASMRBirthYear,
					Sex:           sex,
					TreatmentDose: dose,
					ReferenceDose: kc.ReferenceDose,
					Weeks:         table.Weeks,
					Treatment:     standardizedArms(full[groupKey{sex: sex, dose: dose}]),
					Reference:     standardizedArms(full[groupKey{sex: sex, dose: kc.ReferenceDose}]),
				}
				h, err := p.estimator.Estimate(in)
				if err != nil {
					return nil, err
				}
				out = append(out, h)
			}

			for _, year := range years {
				in := stats.HazardInput{
					Enrollment:    table.Enrollment,
					BirthYear:     year,
					Sex:           sex,
					TreatmentDose: dose,
					ReferenceDose: kc.ReferenceDose,
					Weeks:         table.Weeks,
					Treatment:     p.crudeArms(table.Series(model.StratumKey{BirthYear: year, Sex: sex, Dose: dose})),
					Reference:     p.crudeArms(table.Series(model.StratumKey{BirthYear: year, Sex: sex, Dose: kc.ReferenceDose})),
				}
				h, err := p.estimator.Estimate(in)
				if err != nil {
					return nil, err
				}
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// hazardBirthYears selects the birth-year strata that get their own hazard
// series. Unknown birth years never do.
func (p *pipeline) hazardBirthYears(ctx context.Context, table *model.CohortTable) []int {
	kc := p.cfg.KCOR
	if kc.AllBirthYears {
		years := make([]int, 0, len(table.BirthYears))
		for _, y := range table.BirthYears {
			if y != model.UnknownBirthYear {
				years = append(years, y)
			}
		}
		return years
	}

	years := make([]int, 0, len(kc.BirthYears))
	for _, y := range kc.BirthYears {
		if !slices.Contains(table.BirthYears, y) {
			ctxlog.From(ctx).Warn("birth year not present in cohort, skipping hazard series", "birth_year", y)
			continue
		}
		years = append(years, y)
	}
	slices.Sort(years)
	return slices.Compact(years)
}

func (p *pipeline) crudeArms(s *model.Series) []stats.Arm {
	arms := make([]stats.Arm, len(s.Alive))
	for i := range s.Alive {
		arms[i] = stats.CrudeArm(float64(s.Dead[i]), p.cfg.PersonTime.PersonTime(s.Alive[i], s.Dead[i]))
	}
	return arms
}

func standardizedArms(s model.StandardizedSeries) []stats.Arm {
	arms := make([]stats.Arm, len(s.Weekly))
	for i, r := range s.Weekly {
		arms[i] = stats.StandardizedArm(r)
	}
	return arms
}
