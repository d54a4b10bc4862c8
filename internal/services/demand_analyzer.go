package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jinzhu/now"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

// Popularity and trend classifications.
const (
	PopularityHigh   = "high"
	PopularityMedium = "medium"
	PopularityLow    = "low"

	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const (
	trendMinRecords   = 4
	trendUpperRatio   = 1.2
	trendLowerRatio   = 0.8
	peakHourCount     = 3
	sameHourTolerance = 1
)

// HistoricalInsights summarises past bookings around a target date and time.
type HistoricalInsights struct {
	TotalBookings       int     `json:"total_bookings"`
	SameHourBookings    int     `json:"same_hour_bookings"`
	SameWeekdayBookings int     `json:"same_weekday_bookings"`
	AverageOccupancy    float64 `json:"average_occupancy"`
	TimeSlotPopularity  string  `json:"time_slot_popularity"`
	DayPopularity       string  `json:"day_popularity"`
	Trend               string  `json:"trend"`
	PeakHours           []int   `json:"peak_hours"`
}

// DemandSnapshot is the current load of the restaurant around a requested slot.
type DemandSnapshot struct {
	BookedGuests      int     `json:"booked_guests"`
	EstimatedCapacity int     `json:"estimated_capacity"`
	OccupancyRate     float64 `json:"occupancy_rate"`
	HasData           bool    `json:"has_data"`
}

// DemandAnalyzer aggregates bookings into demand and history signals.
type DemandAnalyzer interface {
	Analyze(ctx context.Context, restaurantID int64, date string, startMinute int) (*HistoricalInsights, error)
	CurrentDemand(ctx context.Context, restaurantID int64, date string, startMinute int) (*DemandSnapshot, error)
	EstimateCapacity(ctx context.Context, restaurantID int64) (int, bool, error)
}

type demandAnalyzer struct {
	bookingRepo repositories.BookingRepository
	params      *PricingParamsStore
	loc         *time.Location
	now         func() time.Time
}

// NewDemandAnalyzer creates a DemandAnalyzer. clock may be nil.
func NewDemandAnalyzer(br repositories.BookingRepository, params *PricingParamsStore, loc *time.Location, clock func() time.Time) DemandAnalyzer {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &demandAnalyzer{bookingRepo: br, params: params, loc: loc, now: clock}
}

func (a *demandAnalyzer) today() time.Time {
	return now.With(a.now().In(a.loc)).BeginningOfDay()
}

// EstimateCapacity returns the max single-day guest total of the lookback window divided by the
// peak utilisation, floored. hasData is false when the window holds no bookings.
func (a *demandAnalyzer) EstimateCapacity(ctx context.Context, restaurantID int64) (int, bool, error) {
	p := a.params.Get()
	today := a.today()
	from := utils.DateString(today.AddDate(0, 0, -p.CapacityLookbackDays))
	to := utils.DateString(today)

	stats, err := a.bookingRepo.ListBookingStats(ctx, restaurantID, from, to)
	if err != nil {
		return p.CapacityFloor, false, fmt.Errorf("failed to load bookings for capacity estimate: %w", err)
	}
	return capacityFromStats(stats, p), len(stats) > 0, nil
}

func capacityFromStats(stats []models.BookingStat, p PricingParams) int {
	daily := map[string]int{}
	maxDaily := 0
	for _, s := range stats {
		daily[s.BookingDate] += s.GuestCount
		if daily[s.BookingDate] > maxDaily {
			maxDaily = daily[s.BookingDate]
		}
	}
	estimate := 0
	if p.PeakUtilization > 0 {
		estimate = int(math.Ceil(float64(maxDaily) / p.PeakUtilization))
	}
	if estimate < p.CapacityFloor {
		estimate = p.CapacityFloor
	}
	return estimate
}

// CurrentDemand sums guests of active bookings overlapping [start, start+duration) on date.
func (a *demandAnalyzer) CurrentDemand(ctx context.Context, restaurantID int64, date string, startMinute int) (*DemandSnapshot, error) {
	p := a.params.Get()
	active, err := a.bookingRepo.ListActiveBookings(ctx, restaurantID, date, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load active bookings: %w", err)
	}
	capacity, hasHistory, err := a.EstimateCapacity(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	endMinute := startMinute + int(p.BookingDuration/time.Minute)
	booked := 0
	for _, b := range active {
		if utils.RangesOverlap(b.StartMinute, b.EndMinute, startMinute, endMinute) {
			booked += b.GuestCount
		}
	}
	return &DemandSnapshot{
		BookedGuests:      booked,
		EstimatedCapacity: capacity,
		OccupancyRate:     float64(booked) / float64(capacity),
		HasData:           hasHistory || len(active) > 0,
	}, nil
}

// Analyze classifies past bookings relative to date and startMinute. Sparse history yields neutral values.
func (a *demandAnalyzer) Analyze(ctx context.Context, restaurantID int64, date string, startMinute int) (*HistoricalInsights, error) {
	p := a.params.Get()
	target, err := utils.ParseDate(date, a.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis date %q: %w", date, err)
	}

	today := a.today()
	from := utils.DateString(today.AddDate(0, 0, -p.HistoryLookbackDays))
	to := utils.DateString(today.AddDate(0, 0, -1))
	stats, err := a.bookingRepo.ListBookingStats(ctx, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}
	return summarizeHistory(stats, target, startMinute, p, a.loc), nil
}

func summarizeHistory(stats []models.BookingStat, target time.Time, startMinute int, p PricingParams, loc *time.Location) *HistoricalInsights {
	insights := &HistoricalInsights{
		TotalBookings:      len(stats),
		TimeSlotPopularity: PopularityMedium,
		DayPopularity:      PopularityMedium,
		Trend:              TrendStable,
		PeakHours:          []int{},
	}
	if len(stats) == 0 {
		return insights
	}

	targetHour := startMinute / 60
	hourCounts := map[int]int{}
	daily := map[string]int{}
	for _, s := range stats {
		hour := s.StartMinute / 60
		hourCounts[hour]++
		daily[s.BookingDate] += s.GuestCount

		if abs(hour-targetHour) <= sameHourTolerance {
			insights.SameHourBookings++
		}
		if d, err := utils.ParseDate(s.BookingDate, loc); err == nil && d.Weekday() == target.Weekday() {
			insights.SameWeekdayBookings++
		}
	}

	insights.TimeSlotPopularity = classifyPopularity(insights.SameHourBookings, p)
	insights.DayPopularity = classifyPopularity(insights.SameWeekdayBookings, p)
	insights.Trend = classifyTrend(stats, loc)
	insights.PeakHours = topHours(hourCounts, peakHourCount)

	capacity := capacityFromStats(stats, p)
	totalGuests := 0
	for _, g := range daily {
		totalGuests += g
	}
	insights.AverageOccupancy = math.Round(float64(totalGuests)/float64(len(daily))/float64(capacity)*100) / 100
	return insights
}

func classifyPopularity(count int, p PricingParams) string {
	switch {
	case count >= p.HighPopularityThreshold:
		return PopularityHigh
	case count >= p.MediumPopularityThreshold:
		return PopularityMedium
	default:
		return PopularityLow
	}
}

// classifyTrend compares booking volume in the earlier and later halves of the covered date span.
func classifyTrend(stats []models.BookingStat, loc *time.Location) string {
	if len(stats) < trendMinRecords {
		return TrendStable
	}
	dates := make([]time.Time, 0, len(stats))
	for _, s := range stats {
		if d, err := utils.ParseDate(s.BookingDate, loc); err == nil {
			dates = append(dates, d)
		}
	}
	if len(dates) < trendMinRecords {
		return TrendStable
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	first, last := dates[0], dates[len(dates)-1]
	if !last.After(first) {
		return TrendStable
	}
	mid := first.Add(last.Sub(first) / 2)

	earlier, later := 0, 0
	for _, d := range dates {
		if d.After(mid) {
			later++
		} else {
			earlier++
		}
	}
	switch {
	case float64(later) > float64(earlier)*trendUpperRatio:
		return TrendIncreasing
	case float64(later) < float64(earlier)*trendLowerRatio:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func topHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
