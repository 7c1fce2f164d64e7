// Package interval models half-open time windows [start, end) on a single
// calendar date.
//
// Comparisons always use the combined (date, time-of-day) value so two windows
// on different dates never overlap, and a window may not cross midnight: an
// end at or before the start is rejected. The special end time "24:00" closes
// a window at the end of its day.
package interval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"

	minutesPerDay = 24 * 60
)

// EndOfDay is the "24:00" time of day. It is valid only as an end time.
const EndOfDay TimeOfDay = minutesPerDay

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTime     = errors.New("invalid time of day")

	timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)
)

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Compare(o Date) int {
	a, b := d.dayNumber(), o.dayNumber()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the number of calendar days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.dayNumber() - d.dayNumber())
}

// dayNumber counts days since the Unix epoch; UTC avoids DST gaps.
func (d Date) dayNumber() int64 {
	return d.In(time.UTC).Unix() / 86400
}

// TimeOfDay is a number of minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24-hour form. "24:00" parses to EndOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return EndOfDay, nil
	}
	m := timeOfDayRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hours := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	minutes := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	return TimeOfDay(hours*60 + minutes), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// Interval is the half-open window [Start, End) on Date.
type Interval struct {
	Date  Date
	Start TimeOfDay
	End   TimeOfDay
}

// New builds an interval, rejecting empty, inverted and midnight-crossing windows.
func New(date Date, start, end TimeOfDay) (Interval, error) {
	if date.IsZero() {
		return Interval{}, fmt.Errorf("%w: date is required", ErrInvalidInterval)
	}
	if start < 0 || start >= EndOfDay {
		return Interval{}, fmt.Errorf("%w: start %s is outside the day", ErrInvalidInterval, start)
	}
	if end > EndOfDay {
		return Interval{}, fmt.Errorf("%w: end %s is outside the day", ErrInvalidInterval, end)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: end %s must be after start %s on the same date", ErrInvalidInterval, end, start)
	}
	return Interval{Date: date, Start: start, End: end}, nil
}

// Parse builds an interval from its wire form (ISO date, HH:MM, HH:MM).
// Every failure wraps ErrInvalidInterval.
func Parse(date, start, end string) (Interval, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start: %v", ErrInvalidInterval, err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end: %v", ErrInvalidInterval, err)
	}
	return New(d, s, e)
}

// Overlaps reports whether a and b share any instant. Back-to-back windows,
// where one ends exactly when the other starts, do not overlap.
func Overlaps(a, b Interval) bool {
	return a.startKey() < b.endKey() && b.startKey() < a.endKey()
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i, o)
}

// Covers reports whether sub lies entirely within i.
func (i Interval) Covers(sub Interval) bool {
	return i.startKey() <= sub.startKey() && sub.endKey() <= i.endKey()
}

// Contains reports whether the instant t falls in [start, end) when the
// interval is read in loc.
func (i Interval) Contains(t time.Time, loc *time.Location) bool {
	return !t.Before(i.StartsAt(loc)) && t.Before(i.EndsAt(loc))
}

func (i Interval) StartsAt(loc *time.Location) time.Time {
	return time.Date(i.Date.Year, i.Date.Month, i.Date.Day, 0, int(i.Start), 0, 0, loc)
}

func (i Interval) EndsAt(loc *time.Location) time.Time {
	return time.Date(i.Date.Year, i.Date.Month, i.Date.Day, 0, int(i.End), 0, 0, loc)
}

func (i Interval) Duration() time.Duration {
	return (i.End - i.Start).Duration()
}

// Compare orders intervals by (date, start) and then by end.
func (i Interval) Compare(o Interval) int {
	switch {
	case i.startKey() < o.startKey():
		return -1
	case i.startKey() > o.startKey():
		return 1
	case i.End < o.End:
		return -1
	case i.End > o.End:
		return 1
	}
	return 0
}

func (i Interval) Before(o Interval) bool {
	return i.Compare(o) < 0
}

// WithDate returns the same window moved to another date.
func (i Interval) WithDate(d Date) Interval {
	i.Date = d
	return i
}

func (i Interval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Date, i.Start, i.End)
}

func (i Interval) startKey() int64 {
	return i.Date.dayNumber()*minutesPerDay + int64(i.Start)
}

func (i Interval) endKey() int64 {
	return i.Date.dayNumber()*minutesPerDay + int64(i.End)
}
