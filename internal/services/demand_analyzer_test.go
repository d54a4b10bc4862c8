package services

import (
	"context"
	"testing"
	"time"

	"restaurant_booking_backend/internal/models"
)

func stat(date string, hour, guests int) models.BookingStat {
	return models.BookingStat{
		BookingDate: date,
		StartMinute: hour * 60,
		EndMinute:   hour*60 + 120,
		GuestCount:  guests,
		Status:      models.BookingStatusCompleted,
	}
}

func TestCapacityFromStats(t *testing.T) {
	p := DefaultPricingParams()
	tests := []struct {
		name  string
		stats []models.BookingStat
		want  int
	}{
		{"no history uses the floor", nil, 40},
		{"small days use the floor", []models.BookingStat{stat("2025-06-01", 19, 10), stat("2025-06-01", 20, 10)}, 40},
		{"busiest day over peak utilisation", []models.BookingStat{
			stat("2025-06-01", 19, 30), stat("2025-06-01", 20, 30), stat("2025-06-02", 19, 20),
		}, 75},
		{"rounds up", []models.BookingStat{stat("2025-06-01", 19, 41)}, 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := capacityFromStats(tt.stats, p); got != tt.want {
				t.Errorf("capacityFromStats = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  string
	}{
		{"too few records", []string{"2025-05-01", "2025-05-30", "2025-05-31"}, TrendStable},
		{"single day", []string{"2025-05-01", "2025-05-01", "2025-05-01", "2025-05-01"}, TrendStable},
		{"growing", []string{"2025-05-01", "2025-05-25", "2025-05-28", "2025-05-31"}, TrendIncreasing},
		{"shrinking", []string{"2025-05-01", "2025-05-02", "2025-05-03", "2025-05-31"}, TrendDecreasing},
		{"even", []string{"2025-05-01", "2025-05-02", "2025-05-30", "2025-05-31"}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := make([]models.BookingStat, 0, len(tt.dates))
			for _, d := range tt.dates {
				stats = append(stats, stat(d, 19, 2))
			}
			if got := classifyTrend(stats, time.UTC); got != tt.want {
				t.Errorf("classifyTrend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSummarizeHistory(t *testing.T) {
	p := DefaultPricingParams()
	target := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC) // Saturday

	empty := summarizeHistory(nil, target, 19*60, p, time.UTC)
	if empty.TotalBookings != 0 || empty.TimeSlotPopularity != PopularityMedium || empty.Trend != TrendStable {
		t.Errorf("empty history = %+v, want neutral", empty)
	}
	if HistoricalFactor(empty).Value != 1.0 {
		t.Errorf("empty history factor = %v, want 1.0", HistoricalFactor(empty).Value)
	}

	stats := []models.BookingStat{
		stat("2025-05-03", 19, 4), // Saturdays
		stat("2025-05-10", 20, 4),
		stat("2025-05-17", 18, 2),
		stat("2025-05-24", 19, 6),
		stat("2025-05-31", 19, 2),
		stat("2025-05-06", 12, 2), // Tuesday lunch
	}
	got := summarizeHistory(stats, target, 19*60, p, time.UTC)
	if got.TotalBookings != 6 {
		t.Errorf("total = %d, want 6", got.TotalBookings)
	}
	if got.SameHourBookings != 5 || got.TimeSlotPopularity != PopularityHigh {
		t.Errorf("same hour = %d/%s, want 5/high", got.SameHourBookings, got.TimeSlotPopularity)
	}
	if got.SameWeekdayBookings != 5 || got.DayPopularity != PopularityHigh {
		t.Errorf("same weekday = %d/%s, want 5/high", got.SameWeekdayBookings, got.DayPopularity)
	}
	if len(got.PeakHours) == 0 || got.PeakHours[0] != 19 {
		t.Errorf("peak hours = %v, want 19 first", got.PeakHours)
	}
}

func TestAnalyzeExcludesToday(t *testing.T) {
	store := newMemStore()
	store.stats = []models.BookingStat{
		stat("2025-06-13", 19, 2),
		stat("2025-06-14", 19, 2),
	}
	clock := newTestClock(time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC))
	a := NewDemandAnalyzer(memBookingRepo{store}, NewPricingParamsStore(DefaultPricingParams()), time.UTC, clock.Now)

	got, err := a.Analyze(context.Background(), 1, "2025-06-20", 19*60)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalBookings != 1 {
		t.Errorf("total = %d, want only yesterday's booking", got.TotalBookings)
	}
}
