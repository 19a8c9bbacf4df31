package domain

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestGenerateOccurrenceStarts_Validation(t *testing.T) {
	seed := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rule    RecurrenceRule
		wantErr string
	}{
		{
			name:    "unsupported frequency",
			rule:    RecurrenceRule{Frequency: "daily", Count: intPtr(2)},
			wantErr: "unsupported recurrence frequency",
		},
		{
			name:    "missing termination",
			rule:    RecurrenceRule{Frequency: RecurrenceFrequencyWeekly},
			wantErr: "count or until is required",
		},
		{
			name:    "zero count",
			rule:    RecurrenceRule{Frequency: RecurrenceFrequencyWeekly, Count: intPtr(0)},
			wantErr: "count must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateOccurrenceStarts(seed, tt.rule, time.UTC)
			if err == nil {
				t.Fatalf("expected error")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGenerateOccurrenceStarts_WeeklyAndBiweekly(t *testing.T) {
	seed := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	weekly, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyWeekly, Count: intPtr(3)}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
	}
	if len(weekly) != len(want) {
		t.Fatalf("len(weekly) = %d, want %d", len(weekly), len(want))
	}
	for i := range want {
		if !weekly[i].Equal(want[i]) {
			t.Fatalf("weekly[%d] = %v, want %v", i, weekly[i], want[i])
		}
	}

	biweekly, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyBiweekly, Count: intPtr(2)}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	if len(biweekly) != 2 {
		t.Fatalf("len(biweekly) = %d, want 2", len(biweekly))
	}
	if !biweekly[1].Equal(time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("biweekly[1] = %v, want 2026-02-02 09:00", biweekly[1])
	}
}

func TestGenerateOccurrenceStarts_MonthlyKeepsNthWeekday(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	// 2026-03-10 is the second Tuesday of March.
	seed := time.Date(2026, 3, 10, 18, 30, 0, 0, loc)

	starts, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyMonthly, Count: intPtr(3)}, loc)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 4, 14, 18, 30, 0, 0, loc),
		time.Date(2026, 5, 12, 18, 30, 0, 0, loc),
		time.Date(2026, 6, 9, 18, 30, 0, 0, loc),
	}
	if len(starts) != len(want) {
		t.Fatalf("len(starts) = %d, want %d", len(starts), len(want))
	}
	for i := range want {
		if !starts[i].Equal(want[i]) {
			t.Fatalf("starts[%d] = %v, want %v", i, starts[i].In(loc), want[i])
		}
		if starts[i].In(loc).Weekday() != time.Tuesday {
			t.Fatalf("starts[%d] weekday = %v, want Tuesday", i, starts[i].In(loc).Weekday())
		}
	}
}

func TestGenerateOccurrenceStarts_MonthlyFallsBackToLastWeekday(t *testing.T) {
	// 2026-03-31 is the fifth Tuesday of March; April and May only have four.
	seed := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	starts, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyMonthly, Count: intPtr(3)}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 4, 28, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 26, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !starts[i].Equal(want[i]) {
			t.Fatalf("starts[%d] = %v, want %v", i, starts[i], want[i])
		}
	}
}

func TestGenerateOccurrenceStarts_MonthlyCrossesYearBoundary(t *testing.T) {
	// 2026-11-03 is the first Tuesday of November.
	seed := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)

	starts, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyMonthly, Count: intPtr(3)}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	last := starts[len(starts)-1]
	if want := time.Date(2027, 2, 2, 9, 0, 0, 0, time.UTC); !last.Equal(want) {
		t.Fatalf("last = %v, want %v", last, want)
	}
}

func TestGenerateOccurrenceStarts_RespectsUntilAndSafetyCap(t *testing.T) {
	seed := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)

	starts, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyWeekly, Count: intPtr(10), Until: &until}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	if len(starts) != 3 {
		t.Fatalf("len(starts) = %d, want 3 (until is inclusive)", len(starts))
	}

	farUntil := seed.AddDate(5, 0, 0)
	capped, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyWeekly, Until: &farUntil}, time.UTC)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	if len(capped) != MaxSeriesOccurrences {
		t.Fatalf("len(capped) = %d, want %d", len(capped), MaxSeriesOccurrences)
	}
}

func TestGenerateOccurrenceStarts_DSTMaintainsLocalHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	seed := time.Date(2026, 3, 1, 9, 0, 0, 0, loc)
	starts, err := GenerateOccurrenceStarts(seed, RecurrenceRule{Frequency: RecurrenceFrequencyWeekly, Count: intPtr(3)}, loc)
	if err != nil {
		t.Fatalf("GenerateOccurrenceStarts error: %v", err)
	}
	for _, s := range starts {
		if s.In(loc).Hour() != 9 {
			t.Fatalf("local hour = %d, want 9 (start=%v)", s.In(loc).Hour(), s)
		}
	}
}

func TestEventSibling_PreservesDurationAndFields(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	seed := Event{
		ID:          "seed",
		Name:        "Founders breakfast",
		StartTime:   start,
		EndTime:     &end,
		Description: "d",
		Notes:       "n",
		Type:        "Community",
		Status:      "Scheduled",
		URL:         "https://example.com",
		HostedBy:    []string{"p1", "p2"},
	}

	next := start.AddDate(0, 0, 7)
	sib := seed.Sibling(next, "series-1")
	if sib.ID != "" {
		t.Fatalf("sibling id = %q, want empty", sib.ID)
	}
	if sib.EndTime == nil || sib.EndTime.Sub(sib.StartTime) != 90*time.Minute {
		t.Fatalf("sibling duration not preserved: %v", sib.EndTime)
	}
	if sib.Name != seed.Name || sib.Type != seed.Type || sib.URL != seed.URL || len(sib.HostedBy) != 2 {
		t.Fatalf("descriptive fields not copied: %+v", sib)
	}
	if sib.RecurringSeriesID != "series-1" {
		t.Fatalf("series id = %q, want %q", sib.RecurringSeriesID, "series-1")
	}

	sib.HostedBy[0] = "changed"
	if seed.HostedBy[0] != "p1" {
		t.Fatalf("sibling hosts alias the seed's slice")
	}
}
