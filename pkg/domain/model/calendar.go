package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Day is a calendar date stored as days since 1970-01-01 (UTC). Individual
// records hold several of them, so the representation is kept to 4 bytes.
type Day int32

// NoDay marks a missing or unparsable date
const NoDay Day = math.MinInt32

const secondsPerDay = 24 * 60 * 60

// DayOf converts a time to its calendar day in UTC
func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Date builds a Day from a calendar date
func Date(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// IsZero reports whether the day is missing
func (d Day) IsZero() bool {
	return d == NoDay
}

// Time returns midnight UTC of the day
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Week returns the Monday-anchored week containing the day
func (d Day) Week() Week {
	return Week(floorDiv(int64(d)+3, 7))
}

// String renders the day as YYYY-MM-DD, or an empty string when missing
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(time.DateOnly)
}

// Week is a Monday-anchored week index. Week 0 starts on Monday 1969-12-29.
type Week int32

// Monday returns the first day of the week
func (w Week) Monday() Day {
	return Day(int64(w)*7 - 3)
}

// ISO returns the ISO-8601 year and week number
func (w Week) ISO() (year, week int) {
	return w.Monday().Time().ISOWeek()
}

// String renders the week as ISO YYYY-WW
func (w Week) String() string {
	y, n := w.ISO()
	return fmt.Sprintf("%04d-%02d", y, n)
}

// SheetName renders the week as YYYY_WW, the enrollment sheet naming
func (w Week) SheetName() string {
	return strings.ReplaceAll(w.String(), "-", "_")
}

// DateString renders the Monday of the week as YYYY-MM-DD
func (w Week) DateString() string {
	return w.Monday().String()
}

// Add returns the week n weeks later
func (w Week) Add(n int) Week {
	return w + Week(n)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var (
	isoWeekPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	junkPattern    = regexp.MustCompile(`[^0-9-]`)
)

// ISOWeekMonday returns the Monday of the given ISO year and week
func ISOWeekMonday(year, week int) (Day, error) {
	if week < 1 || week > 53 {
		return NoDay, goerr.New("ISO week out of range", goerr.V("year", year), goerr.V("week", week))
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)

	// week 53 only exists in long years
	if y, n := monday.ISOWeek(); y != year || n != week {
		return NoDay, goerr.New("ISO week does not exist", goerr.V("year", year), goerr.V("week", week))
	}
	return DayOf(monday), nil
}

// ParseWeek parses an ISO week such as "2021-24" or "2021_24"
func ParseWeek(s string) (Week, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	s = strings.TrimPrefix(strings.ReplaceAll(s, "W", ""), "-")
	m := isoWeekPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, goerr.New("invalid ISO week", goerr.V("value", s))
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	d, err := ISOWeekMonday(year, week)
	if err != nil {
		return 0, err
	}
	return d.Week(), nil
}

// ParseDay parses a registry date. ISO weeks ("YYYY-WW") resolve to their
// Monday; full dates ("YYYY-MM-DD") are taken as is. Characters other than
// digits and dashes are stripped first, as registry exports carry stray
// markers.
func ParseDay(s string) (Day, error) {
	s = junkPattern.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return NoDay, nil
	}

	if m := isoWeekPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		return ISOWeekMonday(year, week)
	}

	if datePattern.MatchString(s) {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return NoDay, goerr.Wrap(err, "invalid date", goerr.V("value", s))
		}
		return DayOf(t), nil
	}

	return NoDay, goerr.New("unrecognized date format", goerr.V("value", s))
}
