// Package recurrence expands a seed date and a repeat rule into the extra
// calendar dates a slot should be copied onto.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/model"
	"strings"
)

type Kind string

const (
	None   Kind = "none"
	Daily  Kind = "daily"
	Weekly Kind = "weekly"
	Dates  Kind = "dates"
)

var (
	ErrInvalidRecurrenceCount = errors.New("recurrence count must be at least 1")
	ErrTooManyOccurrences     = errors.New("recurrence produces too many occurrences")
	ErrUnknownKind            = errors.New("unknown recurrence kind")
)

// Policy is a repeat rule. Count applies to Daily and Weekly and includes the
// seed occurrence; Dates applies to the Dates kind.
type Policy struct {
	Kind  Kind
	Count int
	Dates []interval.Date
}

func NoRepeat() Policy                      { return Policy{Kind: None} }
func EveryDay(n int) Policy                 { return Policy{Kind: Daily, Count: n} }
func EveryWeek(n int) Policy                { return Policy{Kind: Weekly, Count: n} }
func OnDates(dates ...interval.Date) Policy { return Policy{Kind: Dates, Dates: dates} }

func IsKnownKind(k string) bool {
	switch Kind(strings.ToLower(k)) {
	case None, Daily, Weekly, Dates, "":
		return true
	}
	return false
}

// FromRequest converts the wire form. A nil request means no recurrence.
func FromRequest(req *model.RecurrenceRequest) (Policy, error) {
	if req == nil {
		return NoRepeat(), nil
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	switch kind {
	case "", None:
		return NoRepeat(), nil
	case Daily, Weekly:
		return Policy{Kind: kind, Count: req.Count}, nil
	case Dates:
		dates := make([]interval.Date, 0, len(req.Dates))
		for _, raw := range req.Dates {
			d, err := interval.ParseDate(raw)
			if err != nil {
				return Policy{}, err
			}
			dates = append(dates, d)
		}
		return OnDates(dates...), nil
	}
	return Policy{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
}

type Expander struct {
	maxOccurrences int
}

// NewExpander returns an Expander that refuses rules producing more than
// maxOccurrences dates in total, seed included. Zero disables the cap.
func NewExpander(maxOccurrences int) *Expander {
	return &Expander{maxOccurrences: maxOccurrences}
}

// Expand returns the additional dates for p, sorted ascending and without
// duplicates. The seed date is never part of the result because the caller
// inserts it on its own. An empty explicit date set behaves like None.
func (e *Expander) Expand(seed interval.Date, p Policy) ([]interval.Date, error) {
	switch p.Kind {
	case None, "":
		return nil, nil
	case Daily:
		return e.stepped(seed, p.Count, 1)
	case Weekly:
		return e.stepped(seed, p.Count, 7)
	case Dates:
		return e.explicit(seed, p.Dates)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
}

func (e *Expander) stepped(seed interval.Date, count, stepDays int) ([]interval.Date, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRecurrenceCount, count)
	}
	if err := e.checkTotal(count); err != nil {
		return nil, err
	}

	dates := make([]interval.Date, 0, count-1)
	for i := 1; i < count; i++ {
		dates = append(dates, seed.AddDays(i*stepDays))
	}
	return dates, nil
}

func (e *Expander) explicit(seed interval.Date, set []interval.Date) ([]interval.Date, error) {
	if len(set) == 0 {
		return nil, nil
	}

	dates := make([]interval.Date, 0, len(set))
	for _, d := range set {
		if d == seed {
			continue
		}
		dates = append(dates, d)
	}
	slices.SortFunc(dates, interval.Date.Compare)
	dates = slices.Compact(dates)

	if err := e.checkTotal(len(dates) + 1); err != nil {
		return nil, err
	}
	return dates, nil
}

func (e *Expander) checkTotal(total int) error {
	if e.maxOccurrences > 0 && total > e.maxOccurrences {
		return fmt.Errorf("%w: %d requested, at most %d allowed", ErrTooManyOccurrences, total, e.maxOccurrences)
	}
	return nil
}
