package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant_booking_backend/internal/models"
)

func newHolidayFixture(holidays ...models.Holiday) (HolidayService, *memHolidayRepo, *testClock) {
	repo := newMemHolidayRepo(holidays...)
	clock := newTestClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	return NewHolidayService(repo, nil, time.UTC, clock.Now), repo, clock
}

var songkran = models.Holiday{
	Date:             "2025-04-13",
	Name:             "Songkran",
	Type:             models.HolidayTypeNational,
	ImpactMultiplier: 1.8,
	BusinessImpact:   models.ImpactMajor,
	Strategy: models.HolidayStrategy{
		CoupleMultiplier: 1.3,
		FamilyMultiplier: 1.6,
		GroupMultiplier:  2.5,
	},
}

var makhaBucha = models.Holiday{
	Date:             "2025-02-12",
	Name:             "Makha Bucha",
	Type:             models.HolidayTypeReligious,
	ImpactMultiplier: 1.4,
	BusinessImpact:   models.ImpactMedium,
}

func TestCalculateHolidayFactor(t *testing.T) {
	tests := []struct {
		name        string
		date        string
		guests, cap int
		want        float64
		wantHoliday string
	}{
		{"couple table on the day", "2025-04-13", 2, 2, 1.3, "Songkran"},
		{"family table on the day", "2025-04-13", 4, 4, 1.6, "Songkran"},
		{"group multiplier capped at 2", "2025-04-13", 8, 10, 2.0, "Songkran"},
		{"day before major holiday is capped", "2025-04-12", 2, 4, 1.5, "Songkran"},
		{"two days before", "2025-04-11", 2, 4, 1.2, "Songkran"},
		{"day after", "2025-04-14", 2, 4, 0.95, "Songkran"},
		{"day before regular holiday", "2025-02-11", 2, 4, 1.2, "Makha Bucha"},
		{"three days before regular holiday", "2025-02-09", 2, 4, 1.1, "Makha Bucha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newHolidayFixture(songkran, makhaBucha)
			got := svc.CalculateHolidayFactor(context.Background(), tt.date, tt.guests, tt.cap)
			if diff := got.Factor - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("factor = %v, want %v (%s)", got.Factor, tt.want, got.Reason)
			}
			if got.Holiday == nil || got.Holiday.Name != tt.wantHoliday {
				t.Errorf("holiday = %+v, want %s", got.Holiday, tt.wantHoliday)
			}
		})
	}
}

func TestCalculateHolidayFactorNoHoliday(t *testing.T) {
	svc, _, _ := newHolidayFixture(songkran)
	got := svc.CalculateHolidayFactor(context.Background(), "2025-06-14", 2, 4)
	if got.Factor != 1.0 || got.Holiday != nil {
		t.Errorf("factor = %+v, want 1.0 with no holiday", got)
	}
}

func TestCalculateHolidayFactorLookupFailure(t *testing.T) {
	svc, repo, _ := newHolidayFixture(songkran)
	repo.err = errors.New("connection reset")
	got := svc.CalculateHolidayFactor(context.Background(), "2025-04-13", 2, 2)
	if got.Factor != 1.0 || got.Holiday != nil {
		t.Errorf("factor = %+v, want neutral on lookup failure", got)
	}
}

func TestGetHolidayForDateCachesMisses(t *testing.T) {
	svc, repo, clock := newHolidayFixture(songkran)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := svc.GetHolidayForDate(ctx, "2025-06-14")
		if err != nil || h != nil {
			t.Fatalf("lookup = %+v, %v; want nil, nil", h, err)
		}
	}
	if repo.calls != 1 {
		t.Errorf("repository calls = %d, want 1", repo.calls)
	}

	clock.Advance(25 * time.Hour)
	if _, err := svc.GetHolidayForDate(ctx, "2025-06-14"); err != nil {
		t.Fatal(err)
	}
	if repo.calls != 2 {
		t.Errorf("repository calls after expiry = %d, want 2", repo.calls)
	}
}

func TestUpsertHolidayValidatesAndClearsCache(t *testing.T) {
	svc, _, _ := newHolidayFixture()
	ctx := context.Background()

	if h, _ := svc.GetHolidayForDate(ctx, "2025-12-05"); h != nil {
		t.Fatalf("unexpected holiday %+v", h)
	}

	invalid := []models.Holiday{
		{Date: "05/12/2025", Name: "Father's Day", Type: models.HolidayTypeRoyal},
		{Date: "2025-12-05", Name: "", Type: models.HolidayTypeRoyal},
		{Date: "2025-12-05", Name: "Father's Day", Type: "festival"},
		{Date: "2025-12-05", Name: "Father's Day", Type: models.HolidayTypeRoyal, ImpactMultiplier: 2.5},
	}
	for _, h := range invalid {
		if _, err := svc.UpsertHoliday(ctx, h); !errors.Is(err, ErrHolidayValidation) {
			t.Errorf("UpsertHoliday(%+v) error = %v, want ErrHolidayValidation", h, err)
		}
	}

	saved, err := svc.UpsertHoliday(ctx, models.Holiday{Date: "2025-12-05", Name: "Father's Day", Type: models.HolidayTypeRoyal})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.ImpactMultiplier != 1.0 || saved.BusinessImpact != models.ImpactMedium {
		t.Errorf("defaults = %v/%s, want 1.0/medium", saved.ImpactMultiplier, saved.BusinessImpact)
	}
	h, err := svc.GetHolidayForDate(ctx, "2025-12-05")
	if err != nil || h == nil || h.Name != "Father's Day" {
		t.Errorf("lookup after upsert = %+v, %v", h, err)
	}

	if err := svc.DeleteHoliday(ctx, "2025-12-05"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteHoliday(ctx, "2025-12-05"); !errors.Is(err, ErrHolidayNotFound) {
		t.Errorf("second delete error = %v, want ErrHolidayNotFound", err)
	}
}
