package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func render(w io.Writer, t *table.Table) error {
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return goerr.Wrap(err, "failed to write table")
	}
	return nil
}

// printSeries renders the final KCOR value of every series in a run
func printSeries(w io.Writer, run *model.RunRecord) error {
	t := newTable("Series", "Week", "KCOR", "95% CI", "Anchor")
	for _, e := range run.Enrollments {
		for _, s := range e.Series {
			anchor := s.AnchorStart + ".." + s.AnchorEnd
			if s.Fallback {
				anchor += " (fallback)"
			}
			t.Row(s.Name, s.Week, formatFloat(s.KCOR), formatCI(s.Lower, s.Upper), anchor)
		}
	}
	return render(w, t)
}

// printQuality renders the data-quality findings of an input file
func printQuality(w io.Writer, report *model.QualityReport) error {
	if _, err := fmt.Fprintf(w, "records: %d, dropped: %d\n", report.Records, report.Dropped); err != nil {
		return goerr.Wrap(err, "failed to write report")
	}

	t := newTable("Finding", "Count", "Example rows")
	for _, kind := range report.Kinds() {
		issue := report.Issues[kind]
		rows := make([]string, len(issue.Examples))
		for i, r := range issue.Examples {
			rows[i] = strconv.Itoa(r)
		}
		t.Row(string(kind), strconv.Itoa(issue.Count), strings.Join(rows, ", "))
	}
	return render(w, t)
}

// printRuns renders recorded runs, newest first
func printRuns(w io.Writer, runs []*model.RunRecord) error {
	t := newTable("ID", "Status", "Started", "Duration", "Input", "Records", "Series")
	for _, r := range runs {
		var series int
		for _, e := range r.Enrollments {
			series += len(e.Series)
		}
		t.Row(
			r.ID.String(),
			string(r.Status),
			r.StartedAt.Format(time.RFC3339),
			r.Duration().Round(time.Millisecond).String(),
			r.InputPath,
			strconv.Itoa(r.Records),
			strconv.Itoa(series),
		)
	}
	return render(w, t)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func formatCI(lower, upper *float64) string {
	if lower == nil || upper == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f..%.4f", *lower, *upper)
}
