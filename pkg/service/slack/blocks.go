package slack

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/slack-go/slack"
)

// maxSeriesPerEnrollment limits the series listed per enrollment section.
// Slack rejects section text longer than 3000 characters.
const maxSeriesPerEnrollment = 12

// GetStatusEmoji returns emoji based on run status
func GetStatusEmoji(status model.RunStatus) string {
	switch status {
	case model.RunStatusSucceeded:
		return "✅"
	case model.RunStatusFailed:
		return "🚨"
	default:
		return "⏳"
	}
}

// BuildRunText builds the plain text fallback for a run notification
func BuildRunText(run *model.RunRecord) string {
	return fmt.Sprintf("%s KCOR run %s %s", GetStatusEmoji(run.Status), run.ID, run.Status)
}

// BuildRunBlocks builds the message blocks announcing a finished run
func BuildRunBlocks(run *model.RunRecord) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(
				slack.PlainTextType,
				fmt.Sprintf("%s KCOR run %s", GetStatusEmoji(run.Status), run.Status),
				true,
				false,
			),
		),
	}

	fields := []*slack.TextBlockObject{
		markdown(fmt.Sprintf("*Run ID:*\n`%s`", run.ID)),
		markdown(fmt.Sprintf("*Duration:*\n%s", run.Duration().Round(time.Millisecond))),
		markdown(fmt.Sprintf("*Input:*\n`%s`", run.InputPath)),
		markdown(fmt.Sprintf("*Output:*\n`%s`", run.OutputPath)),
		markdown(fmt.Sprintf("*Records:*\n%d", run.Records)),
		markdown(fmt.Sprintf("*Dropped:*\n%d", run.Dropped)),
	}
	blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))

	if run.Error != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(fmt.Sprintf("*Error:*\n```%s```", truncate(run.Error, 2800))),
			nil,
			nil,
		))
	}

	if warnings := formatWarnings(run.Warnings); warnings != "" {
		blocks = append(blocks, slack.NewContextBlock("warnings", markdown(warnings)))
	}

	for _, e := range run.Enrollments {
		blocks = append(blocks, slack.NewDividerBlock())
		blocks = append(blocks, slack.NewSectionBlock(markdown(formatEnrollment(e)), nil, nil))
	}

	return blocks
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func formatWarnings(warnings map[string]int) string {
	kinds := make([]string, 0, len(warnings))
	for kind, n := range warnings {
		if n > 0 {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		return ""
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %d", kind, warnings[kind]))
	}
	return "⚠️ " + strings.Join(parts, ", ")
}

func formatEnrollment(e model.EnrollmentSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Enrollment %s* (population %d, deaths %d, %d weeks)\n", e.Enrollment, e.Population, e.Deaths, e.Weeks)

	for i, s := range e.Series {
		if i == maxSeriesPerEnrollment {
			fmt.Fprintf(&b, "… and %d more series", len(e.Series)-i)
			break
		}
		fmt.Fprintf(&b, "• `%s`: %s\n", s.Name, formatKCOR(s))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatKCOR(s model.SeriesSummary) string {
	if s.KCOR == nil {
		return "KCOR undefined"
	}
	text := fmt.Sprintf("KCOR %.3f", *s.KCOR)
	if s.Lower != nil && s.Upper != nil {
		text += fmt.Sprintf(" (%.3f–%.3f)", *s.Lower, *s.Upper)
	}
	if s.Week != "" {
		text += " at " + s.Week
	}
	if s.Fallback {
		text += " _fallback anchor_"
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
