package cohort

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/mortality-lab/kcor/pkg/domain/model"
)

// Inspect filters records that must not enter any cohort and records
// data-quality findings in report. Findings never drop a record except for
// duplicate infection records and, when enabled, records vaccinated after death.
func (b *Builder) Inspect(ctx context.Context, people []model.Individual, report *model.QualityReport) []model.Individual {
	report.Records += len(people)

	kept := make([]model.Individual, 0, len(people))
	for i := range people {
		p := &people[i]
		row := int(p.Row)

		if int(p.Infection) > b.opts.MaxInfection {
			report.Add(model.WarnDuplicateRecord, row)
			report.Dropped++
			continue
		}

		if p.BirthYear == model.UnknownBirthYear {
			report.Add(model.WarnUnknownBirthYear, row)
		}

		gap, outOfOrder := doseOrdering(p)
		if gap {
			report.Add(model.WarnDoseGap, row)
		}
		if outOfOrder {
			report.Add(model.WarnDoseOutOfOrder, row)
		}

		if p.HasDied() && doseAfterDeath(p) {
			report.Add(model.WarnDoseAfterDeath, row)
			if first := p.FirstDose(); b.opts.ExcludeDoseAfterDeath && first > p.Death {
				report.Add(model.WarnDroppedAfterDeath, row)
				report.Dropped++
				continue
			}
		}

		kept = append(kept, *p)
	}

	logger := ctxlog.From(ctx)
	for _, kind := range report.Kinds() {
		logger.Warn("data quality issue",
			"kind", kind,
			"count", report.Count(kind),
			"example_rows", report.Examples(kind),
		)
	}
	return kept
}

// doseOrdering reports a missing dose followed by a recorded one, and a
// recorded dose dated before an earlier-numbered dose
func doseOrdering(p *model.Individual) (gap, outOfOrder bool) {
	missing := false
	prev := model.NoDay
	for _, d := range p.Doses {
		if d.IsZero() {
			missing = true
			continue
		}
		if missing {
			gap = true
		}
		if !prev.IsZero() && d < prev {
			outOfOrder = true
		}
		prev = d
	}
	return gap, outOfOrder
}

func doseAfterDeath(p *model.Individual) bool {
	for _, d := range p.Doses {
		if !d.IsZero() && d > p.Death {
			return true
		}
	}
	return false
}
