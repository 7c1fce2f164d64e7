package recurrence

import (
	"errors"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/model"
	"testing"
)

func date(t *testing.T, s string) interval.Date {
	t.Helper()
	d, err := interval.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%s): %v", s, err)
	}
	return d
}

func assertDates(t *testing.T, got []interval.Date, expected ...string) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("expected %d dates %v, got %d: %v", len(expected), expected, len(got), got)
	}
	for i := range expected {
		if got[i].String() != expected[i] {
			t.Errorf("date %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestExpand_Daily(t *testing.T) {
	e := NewExpander(0)
	got, err := e.Expand(date(t, "2024-06-01"), EveryDay(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-06-02", "2024-06-03", "2024-06-04", "2024-06-05")
}

func TestExpand_Weekly(t *testing.T) {
	e := NewExpander(0)
	got, err := e.Expand(date(t, "2024-06-01"), EveryWeek(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-06-08", "2024-06-15")
}

func TestExpand_CountOfOneYieldsNothing(t *testing.T) {
	e := NewExpander(0)
	for _, p := range []Policy{EveryDay(1), EveryWeek(1)} {
		got, err := e.Expand(date(t, "2024-06-01"), p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p.Kind, err)
		}
		if len(got) != 0 {
			t.Errorf("%s: expected no extra dates, got %v", p.Kind, got)
		}
	}
}

func TestExpand_InvalidCount(t *testing.T) {
	e := NewExpander(0)
	for _, p := range []Policy{EveryDay(0), EveryWeek(-2)} {
		_, err := e.Expand(date(t, "2024-06-01"), p)
		if !errors.Is(err, ErrInvalidRecurrenceCount) {
			t.Errorf("%s(%d): expected ErrInvalidRecurrenceCount, got %v", p.Kind, p.Count, err)
		}
	}
}

func TestExpand_DailyAcrossMonthEnd(t *testing.T) {
	e := NewExpander(0)
	got, err := e.Expand(date(t, "2024-01-30"), EveryDay(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-01-31", "2024-02-01", "2024-02-02")
}

func TestExpand_ExplicitDates(t *testing.T) {
	e := NewExpander(0)
	seed := date(t, "2024-06-01")
	p := OnDates(
		date(t, "2024-06-20"),
		seed,
		date(t, "2024-06-03"),
		date(t, "2024-06-20"),
		date(t, "2024-05-30"),
	)

	got, err := e.Expand(seed, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-05-30", "2024-06-03", "2024-06-20")
}

func TestExpand_EmptyExplicitSetIsNone(t *testing.T) {
	e := NewExpander(0)
	got, err := e.Expand(date(t, "2024-06-01"), OnDates())
	if err != nil {
		t.Fatalf("expected empty set to behave like none, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no dates, got %v", got)
	}
}

func TestExpand_OccurrenceCap(t *testing.T) {
	e := NewExpander(7)

	if _, err := e.Expand(date(t, "2024-06-01"), EveryDay(7)); err != nil {
		t.Errorf("7 occurrences should be allowed, got %v", err)
	}
	if _, err := e.Expand(date(t, "2024-06-01"), EveryDay(8)); !errors.Is(err, ErrTooManyOccurrences) {
		t.Errorf("expected ErrTooManyOccurrences, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      *model.RecurrenceRequest
		expected Kind
		wantErr  error
	}{
		{"nil", nil, None, nil},
		{"empty kind", &model.RecurrenceRequest{}, None, nil},
		{"daily upper case", &model.RecurrenceRequest{Kind: "DAILY", Count: 3}, Daily, nil},
		{"weekly", &model.RecurrenceRequest{Kind: "weekly", Count: 2}, Weekly, nil},
		{"dates", &model.RecurrenceRequest{Kind: "dates", Dates: []string{"2024-06-02"}}, Dates, nil},
		{"unknown", &model.RecurrenceRequest{Kind: "monthly"}, "", ErrUnknownKind},
		{"bad date", &model.RecurrenceRequest{Kind: "dates", Dates: []string{"06/02/2024"}}, "", interval.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromRequest(tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Kind != tt.expected {
				t.Errorf("expected kind %s, got %s", tt.expected, p.Kind)
			}
		})
	}
}
