package timeutil

import (
	"testing"
	"time"
)

func TestToMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:05", 545, false},
		{"15:00", 900, false},
		{"23:59", 1439, false},
		{"9:30", 570, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"", 0, true},
		{"noon", 0, true},
		{"15:00xyz", 0, true},
		{"x15:00", 0, true},
		{"15:00:30", 0, true},
		{"15: 00", 0, true},
		{"1500", 0, true},
	}
	for _, tc := range cases {
		got, err := ToMinutes(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ToMinutes(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ToMinutes(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ToMinutes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFromMinutesWraps(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{545, "09:05"},
		{1439, "23:59"},
		{1440, "00:00"},
		{1500, "01:00"},
		{-30, "23:30"},
	}
	for _, tc := range cases {
		if got := FromMinutes(tc.in); got != tc.want {
			t.Errorf("FromMinutes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAddDuration(t *testing.T) {
	got, err := AddDuration("15:00", 30)
	if err != nil {
		t.Fatalf("AddDuration: %v", err)
	}
	if got != "15:30" {
		t.Fatalf("AddDuration(15:00, 30) = %q, want 15:30", got)
	}

	if _, err := AddDuration("late", 30); err == nil {
		t.Fatal("AddDuration with malformed start: expected error")
	}
}

func TestCrossesMidnight(t *testing.T) {
	if CrossesMidnight("15:00", 60) {
		t.Error("15:00 + 60min should not cross midnight")
	}
	if !CrossesMidnight("23:30", 45) {
		t.Error("23:30 + 45min should cross midnight")
	}
	if CrossesMidnight("23:00", 60) {
		t.Error("23:00 + 60min ends exactly at midnight, not past it")
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		sa, ea, sb, eb             int
		want                       bool
	}{
		{"disjoint", 540, 570, 600, 630, false},
		{"touching endpoints do not overlap", 540, 570, 570, 600, false},
		{"partial overlap", 540, 580, 570, 600, true},
		{"containment", 540, 660, 570, 600, true},
		{"identical", 540, 570, 540, 570, true},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.sa, tc.ea, tc.sb, tc.eb); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		// Overlap is symmetric.
		if got := Overlaps(tc.sb, tc.eb, tc.sa, tc.ea); got != tc.want {
			t.Errorf("%s (swapped): Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFormatForDisplay(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"00:15", "12:15 AM"},
		{"09:05", "9:05 AM"},
		{"12:00", "12:00 PM"},
		{"15:00", "3:00 PM"},
		{"23:59", "11:59 PM"},
		{"3:00 PM", "3:00 PM"},
		{"9:05 am", "9:05 am"},
	}
	for _, tc := range cases {
		if got := FormatForDisplay(tc.in); got != tc.want {
			t.Errorf("FormatForDisplay(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCombineDateClock(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := CombineDateClock(day, "15:00")
	if err != nil {
		t.Fatalf("CombineDateClock: %v", err)
	}
	want := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("CombineDateClock = %v, want %v", got, want)
	}
	if ClockOf(got) != "15:00" || DateOf(got) != "2024-01-02" {
		t.Fatalf("round trip mismatch: clock=%q date=%q", ClockOf(got), DateOf(got))
	}
}
