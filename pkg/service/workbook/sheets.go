package workbook

import (
	"math"

	"github.com/mortality-lab/kcor/pkg/domain/model"
)

// Column headers are consumed by downstream spreadsheets and must not change.
var (
	attritionHeader = []string{"ISOweekDied", "DateDied", "YearOfBirth", "Sex", "Dose", "Alive", "Dead"}
	rateHeader      = []string{
		"DateDied", "ISOweekDied", "YearOfBirth", "Sex", "Dose",
		"deaths", "person_time", "CMR", "CMR_LCL", "CMR_UCL",
		"CUM_CMR", "CUM_CMR_LCL", "CUM_CMR_UCL", "cum_deaths", "cum_person_time",
	}
	hazardHeader = []string{
		"ISOweekDied", "DateDied", "Dead_T", "Alive_T", "Dead_R", "Alive_R",
		"CMR_T", "CMR_R", "log_RR", "log_RR_detrended", "RR_detrended",
		"weight", "cum_weight", "KCOR", "KCOR_LCL", "KCOR_UCL", "KCOR_raw", "in_window",
	}
	summaryHeader = []string{
		"Enrollment", "Series", "YearOfBirth", "Sex", "Dose_T", "Dose_R", "ISOweekDied",
		"KCOR", "KCOR_LCL", "KCOR_UCL", "anchor_start", "anchor_end", "anchor_fallback",
		"anchor_weeks", "model", "yhat_intercept", "yhat_slope",
	}
)

func (w *Writer) header(cols []string) []any {
	out := make([]any, 0, len(cols))
	for _, c := range cols {
		if c == "Sex" && !w.opts.BySex {
			continue
		}
		out = append(out, c)
	}
	return out
}

// stratumCells renders the YearOfBirth, [Sex] and Dose columns
func (w *Writer) stratumCells(key model.StratumKey) []any {
	if w.opts.BySex {
		return []any{model.BirthYearLabel(key.BirthYear), key.Sex.String(), key.Dose}
	}
	return []any{model.BirthYearLabel(key.BirthYear), key.Dose}
}

func (w *Writer) attritionRows(r *model.EnrollmentResult) [][]any {
	t := r.Table
	rows := [][]any{w.header(attritionHeader)}

	for _, key := range t.Keys() {
		s := t.Series(key)
		for i, wk := range t.Weeks {
			row := []any{wk.String(), wk.DateString()}
			row = append(row, w.stratumCells(key)...)
			row = append(row, s.Alive[i], s.Dead[i])
			rows = append(rows, row)
		}
	}

	total := w.opts.StandardPersonTime
	for _, std := range r.StandardizedAll {
		for i, est := range std.Weekly {
			wk := t.Weeks[std.Start+i]
			row := []any{wk.String(), wk.DateString()}
			row = append(row, w.stratumCells(std.Key)...)
			row = append(row, total)
			if est.IsDefined() {
				row = append(row, int64(math.Round(est.Rate*total)))
			} else {
				row = append(row, nil)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func (w *Writer) rateRows(r *model.EnrollmentResult) [][]any {
	t := r.Table
	rows := [][]any{w.header(rateHeader)}

	appendRow := func(key model.StratumKey, wk model.Week, weekly, cum model.RateEstimate) {
		weekly = weekly.PerHundredKYears()
		cum = cum.PerHundredKYears()
		row := []any{wk.DateString(), wk.String()}
		row = append(row, w.stratumCells(key)...)
		row = append(row,
			num(weekly.Deaths), num(weekly.PersonTime),
			num(weekly.Rate), num(weekly.Lower), num(weekly.Upper),
			num(cum.Rate), num(cum.Lower), num(cum.Upper),
			num(cum.Deaths), num(cum.PersonTime),
		)
		rows = append(rows, row)
	}

	for _, s := range r.Crude {
		for i := range s.Weekly {
			appendRow(s.Key, t.Weeks[s.Start+i], s.Weekly[i], s.Cumulative[i])
		}
	}
	for _, s := range r.Standardized {
		for i := range s.Weekly {
			appendRow(s.Key, t.Weeks[s.Start+i], s.Weekly[i].RateEstimate, s.Cumulative[i].RateEstimate)
		}
	}
	return rows
}

func hazardRows(h *model.HazardSeries) [][]any {
	rows := make([][]any, 0, len(h.Points)+1)
	header := make([]any, len(hazardHeader))
	for i, c := range hazardHeader {
		header[i] = c
	}
	rows = append(rows, header)

	scale := float64(model.WeeksPerYear * model.PerHundredThousand)
	for _, p := range h.Points {
		rows = append(rows, []any{
			p.Week.String(), p.Week.DateString(),
			num(p.DeathsT), num(p.PersonTimeT), num(p.DeathsR), num(p.PersonTimeR),
			num(p.RateT * scale), num(p.RateR * scale),
			num(p.LogRR), num(p.LogRRDetrended), num(p.RRDetrended()),
			num(p.Weight), num(p.CumWeight),
			num(p.KCOR), num(p.KCORLower), num(p.KCORUpper), num(p.KCORRaw),
			p.InWindow,
		})
	}
	return rows
}

func summaryRows(results []*model.EnrollmentResult) [][]any {
	header := make([]any, len(summaryHeader))
	for i, c := range summaryHeader {
		header[i] = c
	}
	rows := [][]any{header}

	for _, r := range results {
		for _, h := range r.Hazards {
			row := []any{r.Enrollment.String(), h.Name(), h.Label(), h.Sex.String(), h.TreatmentDose, h.ReferenceDose}
			if p, ok := h.Final(); ok {
				row = append(row, p.Week.String(), num(p.KCOR), num(p.KCORLower), num(p.KCORUpper))
			} else {
				row = append(row, nil, nil, nil, nil)
			}
			row = append(row,
				h.Anchor.Start.String(), h.Anchor.End.String(), h.Anchor.Fallback,
				h.Anchor.Points, string(h.Anchor.Model),
				num(h.Anchor.Intercept), num(h.Anchor.Slope),
			)
			rows = append(rows, row)
		}
	}
	return rows
}
