package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"restaurant_booking_backend/internal/cache"
	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

var (
	ErrHolidayNotFound   = errors.New("holiday not found")
	ErrHolidayValidation = errors.New("holiday data validation error")
)

const (
	holidayCacheTTL       = 24 * time.Hour
	holidayProximityDays  = 3
	dayBeforeMajorShare   = 0.8
	dayBeforeMinorShare   = 0.5
	dayBeforeCap          = 1.5
	twoToThreeDaysShare   = 0.25
	dayAfterHolidayFactor = 0.95
	minHolidayMultiplier  = 1.0
	maxHolidayMultiplier  = 2.0
)

// HolidayFactor is the holiday multiplier for one booking date.
type HolidayFactor struct {
	Factor  float64         `json:"factor"`
	Holiday *models.Holiday `json:"holiday"`
	Reason  string          `json:"reason"`
}

// HolidayService looks up holidays and derives the holiday pricing factor.
type HolidayService interface {
	// GetHolidayForDate returns nil, nil when date is not a holiday.
	GetHolidayForDate(ctx context.Context, date string) (*models.Holiday, error)
	CalculateHolidayFactor(ctx context.Context, date string, guestCount, tableCapacity int) HolidayFactor
	ListHolidays(ctx context.Context, from, to string) ([]models.Holiday, error)
	UpsertHoliday(ctx context.Context, holiday models.Holiday) (*models.Holiday, error)
	DeleteHoliday(ctx context.Context, date string) error
	ClearCache()
	StartSweeper(ctx context.Context, interval time.Duration)
}

type holidayService struct {
	repo     repositories.HolidayRepository
	db       repositories.SQLExecutor
	byDate   *cache.TTLCache[string, *models.Holiday]
	nearDate *cache.TTLCache[string, []models.Holiday]
	loc      *time.Location
}

// NewHolidayService creates a HolidayService. clock may be nil.
func NewHolidayService(repo repositories.HolidayRepository, db repositories.SQLExecutor, loc *time.Location, clock cache.Clock) HolidayService {
	if loc == nil {
		loc = time.UTC
	}
	return &holidayService{
		repo:     repo,
		db:       db,
		byDate:   cache.NewTTLCache[string, *models.Holiday]("holiday", holidayCacheTTL, clock),
		nearDate: cache.NewTTLCache[string, []models.Holiday]("holiday-near", holidayCacheTTL, clock),
		loc:      loc,
	}
}

func (s *holidayService) GetHolidayForDate(ctx context.Context, date string) (*models.Holiday, error) {
	if h, ok := s.byDate.Get(date); ok {
		return h, nil
	}
	h, err := s.repo.GetByDate(ctx, date)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up holiday for %s: %w", date, err)
		}
		h = nil
	}
	s.byDate.Set(date, h)
	return h, nil
}

func (s *holidayService) holidaysNear(ctx context.Context, day time.Time) ([]models.Holiday, error) {
	key := utils.DateString(day)
	if list, ok := s.nearDate.Get(key); ok {
		return list, nil
	}
	from := utils.DateString(day.AddDate(0, 0, -holidayProximityDays))
	to := utils.DateString(day.AddDate(0, 0, holidayProximityDays))
	list, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays near %s: %w", key, err)
	}
	s.nearDate.Set(key, list)
	return list, nil
}

// CalculateHolidayFactor never fails: lookup errors are logged and yield a neutral factor.
func (s *holidayService) CalculateHolidayFactor(ctx context.Context, date string, guestCount, tableCapacity int) HolidayFactor {
	neutral := HolidayFactor{Factor: 1.0, Reason: "no holiday nearby"}

	day, err := utils.ParseDate(date, s.loc)
	if err != nil {
		utils.LogWarn("holiday factor: invalid date", map[string]interface{}{"date": date})
		return neutral
	}
	day = now.With(day).BeginningOfDay()

	holiday, err := s.GetHolidayForDate(ctx, date)
	if err != nil {
		utils.LogError(err, "holiday factor: lookup failed, using neutral factor")
		return neutral
	}
	if holiday != nil {
		tableType := models.ClassifyTable(guestCount, tableCapacity)
		m := clamp(holiday.MultiplierFor(tableType), minHolidayMultiplier, maxHolidayMultiplier)
		return HolidayFactor{
			Factor:  m,
			Holiday: holiday,
			Reason:  fmt.Sprintf("%s (%s table)", holiday.Name, tableType),
		}
	}

	near, err := s.holidaysNear(ctx, day)
	if err != nil {
		utils.LogError(err, "holiday factor: proximity lookup failed, using neutral factor")
		return neutral
	}

	var upcoming, previous *models.Holiday
	upcomingIn := math.MaxInt
	for i := range near {
		h := near[i]
		hd, err := utils.ParseDate(h.Date, s.loc)
		if err != nil {
			continue
		}
		diff := daysBetween(day, hd)
		if diff >= 1 && diff <= holidayProximityDays && diff < upcomingIn {
			upcoming, upcomingIn = &near[i], diff
		}
		if diff == -1 {
			previous = &near[i]
		}
	}

	if upcoming != nil {
		impact := clamp(upcoming.ImpactMultiplier, minHolidayMultiplier, maxHolidayMultiplier) - 1
		var f float64
		if upcomingIn == 1 {
			if upcoming.IsMajor() {
				f = math.Min(1+impact*dayBeforeMajorShare, dayBeforeCap)
			} else {
				f = 1 + impact*dayBeforeMinorShare
			}
			return HolidayFactor{Factor: f, Holiday: upcoming, Reason: "day before " + upcoming.Name}
		}
		f = 1 + impact*twoToThreeDaysShare
		return HolidayFactor{Factor: f, Holiday: upcoming, Reason: fmt.Sprintf("%d days before %s", upcomingIn, upcoming.Name)}
	}
	if previous != nil {
		return HolidayFactor{Factor: dayAfterHolidayFactor, Holiday: previous, Reason: "day after " + previous.Name}
	}
	return neutral
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func (s *holidayService) ListHolidays(ctx context.Context, from, to string) ([]models.Holiday, error) {
	if _, err := utils.ParseDate(from, s.loc); err != nil {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrHolidayValidation)
	}
	if _, err := utils.ParseDate(to, s.loc); err != nil {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrHolidayValidation)
	}
	holidays, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return holidays, nil
}

func (s *holidayService) UpsertHoliday(ctx context.Context, holiday models.Holiday) (*models.Holiday, error) {
	if _, err := utils.ParseDate(holiday.Date, s.loc); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrHolidayValidation)
	}
	if strings.TrimSpace(holiday.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrHolidayValidation)
	}
	if !models.IsValidHolidayType(string(holiday.Type)) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrHolidayValidation, holiday.Type)
	}
	if holiday.ImpactMultiplier == 0 {
		holiday.ImpactMultiplier = 1.0
	}
	if holiday.ImpactMultiplier < minHolidayMultiplier || holiday.ImpactMultiplier > maxHolidayMultiplier {
		return nil, fmt.Errorf("%w: impact_multiplier must be within [1.0, 2.0]", ErrHolidayValidation)
	}
	switch holiday.BusinessImpact {
	case "":
		holiday.BusinessImpact = models.ImpactMedium
	case models.ImpactLow, models.ImpactMedium, models.ImpactHigh, models.ImpactMajor:
	default:
		return nil, fmt.Errorf("%w: unknown business_impact %q", ErrHolidayValidation, holiday.BusinessImpact)
	}

	saved, err := s.repo.Upsert(ctx, s.db, &holiday)
	if err != nil {
		return nil, fmt.Errorf("failed to save holiday: %w", err)
	}
	s.ClearCache()
	return saved, nil
}

func (s *holidayService) DeleteHoliday(ctx context.Context, date string) error {
	if err := s.repo.DeleteByDate(ctx, s.db, date); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrHolidayNotFound
		}
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	s.ClearCache()
	return nil
}

// ClearCache drops all cached lookups.
func (s *holidayService) ClearCache() {
	s.byDate.Clear()
	s.nearDate.Clear()
}

func (s *holidayService) StartSweeper(ctx context.Context, interval time.Duration) {
	s.byDate.StartSweeper(ctx, interval)
	s.nearDate.StartSweeper(ctx, interval)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
