package interval

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, date, start, end string) Interval {
	t.Helper()
	iv, err := Parse(date, start, end)
	if err != nil {
		t.Fatalf("Parse(%s, %s, %s): %v", date, start, end, err)
	}
	return iv
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     [3]string
		expected bool
	}{
		{"identical", [3]string{"2024-06-01", "09:00", "10:00"}, [3]string{"2024-06-01", "09:00", "10:00"}, true},
		{"partial overlap", [3]string{"2024-06-01", "09:00", "10:00"}, [3]string{"2024-06-01", "09:30", "10:30"}, true},
		{"contained", [3]string{"2024-06-01", "09:00", "12:00"}, [3]string{"2024-06-01", "10:00", "11:00"}, true},
		{"back to back", [3]string{"2024-06-01", "09:00", "10:00"}, [3]string{"2024-06-01", "10:00", "11:00"}, false},
		{"disjoint", [3]string{"2024-06-01", "09:00", "10:00"}, [3]string{"2024-06-01", "11:00", "12:00"}, false},
		{"different dates same time", [3]string{"2024-06-01", "09:00", "10:00"}, [3]string{"2024-06-02", "09:00", "10:00"}, false},
		{"end of day against next morning", [3]string{"2024-06-01", "23:00", "24:00"}, [3]string{"2024-06-02", "00:00", "01:00"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustParse(t, tt.a[0], tt.a[1], tt.a[2])
			b := mustParse(t, tt.b[0], tt.b[1], tt.b[2])

			if got := Overlaps(a, b); got != tt.expected {
				t.Errorf("Overlaps(a, b) = %v, expected %v", got, tt.expected)
			}
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Errorf("Overlaps is not symmetric for %s and %s", a, b)
			}
		})
	}
}

func TestOverlaps_SymmetryAndBackToBackExhaustive(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	var windows []Interval
	for start := TimeOfDay(0); start < 6*60; start += 30 {
		for end := start + 30; end <= 6*60; end += 30 {
			iv, err := New(date, start, end)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			windows = append(windows, iv)
		}
	}

	for _, a := range windows {
		for _, b := range windows {
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("asymmetric overlap for %s and %s", a, b)
			}
			if a.End == b.Start && Overlaps(a, b) {
				t.Fatalf("back-to-back windows %s and %s reported as overlapping", a, b)
			}
		}
	}
}

func TestNew_RejectsInvalidWindows(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"equal start and end", "10:00", "10:00"},
		{"end before start", "11:00", "10:00"},
		{"crosses midnight", "23:00", "01:00"},
		{"start at end of day", "24:00", "24:00"},
		{"malformed start", "9:00", "10:00"},
		{"malformed end", "09:00", "10:60"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("2024-06-01", tt.start, tt.end)
			if !errors.Is(err, ErrInvalidInterval) {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}
}

func TestParse_MalformedDate(t *testing.T) {
	_, err := Parse("2024-13-01", "09:00", "10:00")
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected TimeOfDay
		wantErr  bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", EndOfDay, false},
		{"24:01", 0, true},
		{"7:00", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseTimeOfDay(%q) = %d, expected %d", tt.input, got, tt.expected)
		}
		if got.String() != tt.input {
			t.Errorf("String() = %q, expected %q", got.String(), tt.input)
		}
	}
}

func TestCoversAndContains(t *testing.T) {
	slot := mustParse(t, "2024-06-01", "09:00", "12:00")

	if !slot.Covers(mustParse(t, "2024-06-01", "09:00", "09:30")) {
		t.Error("expected slot to cover its first tick")
	}
	if !slot.Covers(mustParse(t, "2024-06-01", "11:30", "12:00")) {
		t.Error("expected slot to cover its last tick")
	}
	if slot.Covers(mustParse(t, "2024-06-01", "11:30", "12:30")) {
		t.Error("expected slot not to cover a window past its end")
	}
	if slot.Covers(mustParse(t, "2024-06-02", "09:00", "09:30")) {
		t.Error("expected slot not to cover another date")
	}

	loc := time.UTC
	if !slot.Contains(time.Date(2024, 6, 1, 9, 0, 0, 0, loc), loc) {
		t.Error("start instant must be contained")
	}
	if slot.Contains(time.Date(2024, 6, 1, 12, 0, 0, 0, loc), loc) {
		t.Error("end instant must not be contained")
	}
}

func TestEndOfDayEndsAtNextMidnight(t *testing.T) {
	iv := mustParse(t, "2024-06-01", "23:00", "24:00")
	expected := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	if !iv.EndsAt(time.UTC).Equal(expected) {
		t.Errorf("EndsAt = %v, expected %v", iv.EndsAt(time.UTC), expected)
	}
}

func TestDateArithmetic(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}

	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("leap day: got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("month rollover: got %s", got)
	}
	if got := d.DaysUntil(d.AddDays(30)); got != 30 {
		t.Errorf("DaysUntil = %d, expected 30", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d.AddDays(1)) {
		t.Error("ordering of consecutive dates is wrong")
	}
}

func TestCompareOrdersByDateThenStart(t *testing.T) {
	early := mustParse(t, "2024-06-01", "15:00", "16:00")
	later := mustParse(t, "2024-06-02", "08:00", "09:00")
	sameDayLater := mustParse(t, "2024-06-01", "16:00", "17:00")

	if !early.Before(later) {
		t.Error("earlier date must sort first")
	}
	if !early.Before(sameDayLater) {
		t.Error("earlier start must sort first on the same date")
	}
	if early.Compare(early) != 0 {
		t.Error("interval must compare equal to itself")
	}
}
