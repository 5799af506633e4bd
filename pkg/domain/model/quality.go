package model

import (
	"log/slog"
	"slices"
	"sort"
)

// WarningKind classifies a data-quality finding
type WarningKind string

const (
	WarnDoseOutOfOrder    WarningKind = "dose_out_of_order"
	WarnDoseGap           WarningKind = "dose_gap"
	WarnDoseAfterDeath    WarningKind = "dose_after_death"
	WarnUnparsableDate    WarningKind = "unparsable_date"
	WarnUnknownBirthYear  WarningKind = "unknown_birth_year"
	WarnDuplicateRecord   WarningKind = "duplicate_record"
	WarnDroppedAfterDeath WarningKind = "dropped_dose_after_death"
)

// maxExamples bounds the example rows kept per warning kind
const maxExamples = 5

// QualityIssue counts one kind of finding and keeps a few example rows
type QualityIssue struct {
	Count    int
	Examples []int
}

// QualityReport aggregates data-quality findings of one input file. Findings
// never abort a run.
type QualityReport struct {
	Records int
	Dropped int
	Issues  map[WarningKind]*QualityIssue
}

// NewQualityReport returns an empty report
func NewQualityReport() *QualityReport {
	return &QualityReport{Issues: make(map[WarningKind]*QualityIssue)}
}

// Add records one finding for the given input row
func (q *QualityReport) Add(kind WarningKind, row int) {
	issue, ok := q.Issues[kind]
	if !ok {
		issue = &QualityIssue{}
		q.Issues[kind] = issue
	}
	issue.Count++
	if len(issue.Examples) < maxExamples {
		issue.Examples = append(issue.Examples, row)
	}
}

// Merge folds other into q
func (q *QualityReport) Merge(other *QualityReport) {
	if other == nil {
		return
	}
	q.Records += other.Records
	q.Dropped += other.Dropped
	for kind, src := range other.Issues {
		dst, ok := q.Issues[kind]
		if !ok {
			dst = &QualityIssue{}
			q.Issues[kind] = dst
		}
		dst.Count += src.Count
		for _, row := range src.Examples {
			if len(dst.Examples) >= maxExamples {
				break
			}
			dst.Examples = append(dst.Examples, row)
		}
	}
}

// Count returns the number of findings of a kind
func (q *QualityReport) Count(kind WarningKind) int {
	if issue, ok := q.Issues[kind]; ok {
		return issue.Count
	}
	return 0
}

// Kinds returns the recorded kinds in name order
func (q *QualityReport) Kinds() []WarningKind {
	kinds := make([]WarningKind, 0, len(q.Issues))
	for k := range q.Issues {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Counts returns the finding counts keyed by kind name
func (q *QualityReport) Counts() map[string]int {
	out := make(map[string]int, len(q.Issues))
	for k, v := range q.Issues {
		out[string(k)] = v.Count
	}
	return out
}

// LogValue implements slog.LogValuer
func (q *QualityReport) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("records", q.Records),
		slog.Int("dropped", q.Dropped),
	}
	for _, k := range q.Kinds() {
		attrs = append(attrs, slog.Int(string(k), q.Issues[k].Count))
	}
	return slog.GroupValue(attrs...)
}

// Examples returns a copy of the example rows of a kind
func (q *QualityReport) Examples(kind WarningKind) []int {
	if issue, ok := q.Issues[kind]; ok {
		return slices.Clone(issue.Examples)
	}
	return nil
}
