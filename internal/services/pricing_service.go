package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"restaurant_booking_backend/internal/cache"
	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

const fallbackConfidence = 0.1

// PricingService computes demand-responsive booking prices.
type PricingService interface {
	// CalculatePrice never fails. Internal errors produce a fallback result with Context.Error set.
	CalculatePrice(ctx context.Context, req models.PriceQuoteRequest) models.PricingResult
	Params() PricingParams
	SetParams(p PricingParams)
	ClearQuoteCache()
	StartSweeper(ctx context.Context, interval time.Duration)
}

type pricingService struct {
	analyzer  DemandAnalyzer
	holidays  HolidayService
	floorRepo repositories.FloorPlanRepository
	params    *PricingParamsStore
	quotes    *cache.TTLCache[string, models.PricingResult]
	loc       *time.Location
	now       func() time.Time
}

// NewPricingService creates a PricingService. floorRepo may be nil when table capacities are always supplied.
func NewPricingService(
	analyzer DemandAnalyzer,
	holidays HolidayService,
	floorRepo repositories.FloorPlanRepository,
	params *PricingParamsStore,
	loc *time.Location,
	clock func() time.Time,
) PricingService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &pricingService{
		analyzer:  analyzer,
		holidays:  holidays,
		floorRepo: floorRepo,
		params:    params,
		quotes:    cache.NewTTLCache[string, models.PricingResult]("price-quote", params.Get().QuoteCacheTTL, clock),
		loc:       loc,
		now:       clock,
	}
}

func (s *pricingService) Params() PricingParams { return s.params.Get() }

// SetParams replaces the live parameters and drops cached quotes computed with the old ones.
func (s *pricingService) SetParams(p PricingParams) {
	s.params.Set(p)
	s.quotes.SetTTL(p.QuoteCacheTTL)
	s.quotes.Clear()
}

func (s *pricingService) ClearQuoteCache() { s.quotes.Clear() }

func (s *pricingService) StartSweeper(ctx context.Context, interval time.Duration) {
	s.quotes.StartSweeper(ctx, interval)
}

func quoteKey(req models.PriceQuoteRequest) string {
	return fmt.Sprintf("%d|%s|%s|%s|%d", req.RestaurantID, req.TableID, req.Date, req.Time, req.GuestCount)
}

func (s *pricingService) CalculatePrice(ctx context.Context, req models.PriceQuoteRequest) (result models.PricingResult) {
	key := quoteKey(req)
	if cached, ok := s.quotes.Get(key); ok {
		return cached
	}

	defer func() {
		if r := recover(); r != nil {
			result = s.fallback(req, fmt.Errorf("pricing panic: %v", r))
		}
	}()

	res, err := s.calculate(ctx, req)
	if err != nil {
		return s.fallback(req, err)
	}
	s.quotes.Set(key, res)
	return res
}

func (s *pricingService) fallback(req models.PriceQuoteRequest, err error) models.PricingResult {
	utils.LogError(err, "pricing calculation failed, returning fallback price", map[string]interface{}{
		"restaurant_id": req.RestaurantID,
		"table_id":      req.TableID,
		"date":          req.Date,
		"time":          req.Time,
	})
	p := s.params.Get()
	neutral := models.NeutralFactor("fallback: pricing data unavailable")
	return models.PricingResult{
		Success:    false,
		BasePrice:  p.BasePrice,
		FinalPrice: p.BasePrice,
		Currency:   models.DefaultCurrency,
		Factors: models.PriceFactors{
			Demand: neutral, Temporal: neutral, Historical: neutral, Capacity: neutral, Holiday: neutral,
		},
		Context: models.PricingContext{
			RestaurantID:  req.RestaurantID,
			TableID:       req.TableID,
			Date:          req.Date,
			Time:          req.Time,
			GuestCount:    req.GuestCount,
			TableCapacity: req.TableCapacity,
			TableLocation: req.TableLocation,
			Error:         true,
			ErrorMessage:  "pricing data unavailable",
		},
		Confidence:   fallbackConfidence,
		CalculatedAt: s.now(),
		Message:      "Using base price",
	}
}

// recoverAsError converts a panic in fn into an error returned to the errgroup.
func recoverAsError(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: pricing panic: %v", name, r)
			}
		}()
		return fn()
	}
}

func (s *pricingService) calculate(ctx context.Context, req models.PriceQuoteRequest) (models.PricingResult, error) {
	p := s.params.Get()

	day, err := utils.ParseDate(req.Date, s.loc)
	if err != nil {
		return models.PricingResult{}, fmt.Errorf("invalid date %q: %w", req.Date, err)
	}
	startMinute, err := utils.ParseClock(req.Time)
	if err != nil {
		return models.PricingResult{}, err
	}
	if req.GuestCount <= 0 {
		req.GuestCount = 1
	}
	if req.TableCapacity <= 0 {
		if err := s.fillTable(ctx, &req); err != nil {
			return models.PricingResult{}, err
		}
	}

	var (
		demand  *DemandSnapshot
		history *HistoricalInsights
		holiday HolidayFactor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recoverAsError("demand context", func() error {
		d, err := s.analyzer.CurrentDemand(gctx, req.RestaurantID, req.Date, startMinute)
		if err != nil {
			return fmt.Errorf("demand context: %w", err)
		}
		demand = d
		return nil
	}))
	g.Go(recoverAsError("historical context", func() error {
		h, err := s.analyzer.Analyze(gctx, req.RestaurantID, req.Date, startMinute)
		if err != nil {
			return fmt.Errorf("historical context: %w", err)
		}
		history = h
		return nil
	}))
	g.Go(recoverAsError("holiday context", func() error {
		holiday = s.holidays.CalculateHolidayFactor(gctx, req.Date, req.GuestCount, req.TableCapacity)
		return nil
	}))
	if err := g.Wait(); err != nil {
		return models.PricingResult{}, err
	}

	slot := utils.AtClock(day, startMinute, s.loc)
	leadHours := slot.Sub(s.now()).Hours()
	weekend := isWeekend(day.Weekday())

	factors := models.PriceFactors{
		Demand:     DemandFactor(demand.OccupancyRate),
		Temporal:   TemporalFactor(day.Weekday(), startMinute, leadHours),
		Historical: HistoricalFactor(history),
		Capacity:   CapacityFactor(req.GuestCount, req.TableCapacity),
		Holiday: models.PriceFactor{
			Value:  holiday.Factor,
			Reason: holiday.Reason,
		},
	}
	if holiday.Holiday != nil {
		factors.Holiday.Details = map[string]interface{}{
			"holiday_date": holiday.Holiday.Date,
			"holiday_type": holiday.Holiday.Type,
		}
	}

	raw := float64(p.BasePrice) *
		factors.Demand.Value *
		factors.Temporal.Value *
		factors.Historical.Value *
		factors.Capacity.Value *
		factors.Holiday.Value
	final := int(math.Round(raw))
	if final < p.MinPrice {
		final = p.MinPrice
	}
	if final > p.MaxPrice {
		final = p.MaxPrice
	}

	pctx := models.PricingContext{
		RestaurantID:      req.RestaurantID,
		TableID:           req.TableID,
		Date:              req.Date,
		Time:              utils.FormatClock(startMinute),
		GuestCount:        req.GuestCount,
		TableCapacity:     req.TableCapacity,
		TableLocation:     req.TableLocation,
		OccupancyRate:     round2(demand.OccupancyRate),
		BookedGuests:      demand.BookedGuests,
		EstimatedCapacity: demand.EstimatedCapacity,
		LeadTimeHours:     round2(leadHours),
		IsWeekend:         weekend,
		HistoricalCount:   history.TotalBookings,
	}
	if holiday.Holiday != nil {
		pctx.HolidayName = holiday.Holiday.Name
	}

	return models.PricingResult{
		Success:      true,
		BasePrice:    p.BasePrice,
		FinalPrice:   final,
		Currency:     models.DefaultCurrency,
		Factors:      factors,
		Context:      pctx,
		Confidence:   confidenceScore(history, demand),
		CalculatedAt: s.now(),
	}, nil
}

func (s *pricingService) fillTable(ctx context.Context, req *models.PriceQuoteRequest) error {
	if s.floorRepo == nil {
		return errors.New("table capacity is required")
	}
	table, err := s.floorRepo.GetTable(ctx, req.RestaurantID, req.TableID)
	if err != nil {
		return fmt.Errorf("table %s lookup: %w", req.TableID, err)
	}
	req.TableCapacity = table.Capacity
	if req.TableLocation == "" {
		req.TableLocation = table.LocationOrEmpty()
	}
	return nil
}

// DemandFactor maps an occupancy rate to a tiered multiplier. It is monotonically non-decreasing.
func DemandFactor(occupancy float64) models.PriceFactor {
	var v float64
	var reason string
	switch {
	case occupancy >= 0.8:
		v, reason = 1.5, "very high demand"
	case occupancy >= 0.6:
		v, reason = 1.25, "high demand"
	case occupancy >= 0.4:
		v, reason = 1.1, "moderate demand"
	case occupancy >= 0.2:
		v, reason = 1.0, "normal demand"
	default:
		v, reason = 0.8, "low demand"
	}
	return models.PriceFactor{
		Value:   v,
		Reason:  reason,
		Details: map[string]interface{}{"occupancy_rate": round2(occupancy)},
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// TemporalFactor prices the time of day and the booking lead time.
func TemporalFactor(weekday time.Weekday, startMinute int, leadHours float64) models.PriceFactor {
	hour := startMinute / 60
	weekend := isWeekend(weekday)

	v, reason := 1.0, "regular hours"
	switch {
	case hour >= 18 && hour < 21:
		if weekend {
			v, reason = 1.4, "weekend dinner"
		} else {
			v, reason = 1.2, "weekday dinner"
		}
	case weekend && hour >= 11 && hour < 15:
		v, reason = 1.2, "weekend lunch"
	case !weekend && hour >= 11 && hour < 14:
		v, reason = 1.1, "weekday lunch"
	}

	details := map[string]interface{}{"weekend": weekend, "hour": hour}
	if leadHours >= 0 && leadHours < 4 {
		urgency := math.Min(1+(4-leadHours)*0.05, 1.2)
		v *= urgency
		reason += " with last-minute booking"
		details["urgency"] = round2(urgency)
	}
	return models.PriceFactor{Value: round2(v), Reason: reason, Details: details}
}

// HistoricalFactor prices slot popularity, volume trend and weekday popularity.
func HistoricalFactor(h *HistoricalInsights) models.PriceFactor {
	if h == nil || h.TotalBookings == 0 {
		return models.NeutralFactor("no historical data")
	}

	var v float64
	switch h.TimeSlotPopularity {
	case PopularityHigh:
		v = 1.2
	case PopularityMedium:
		v = 1.1
	default:
		v = 0.9
	}
	switch h.Trend {
	case TrendIncreasing:
		v *= 1.05
	case TrendDecreasing:
		v *= 0.95
	}
	switch h.DayPopularity {
	case PopularityHigh:
		v *= 1.05
	case PopularityLow:
		v *= 0.95
	}
	return models.PriceFactor{
		Value:  round2(v),
		Reason: fmt.Sprintf("%s popularity time slot, %s trend", h.TimeSlotPopularity, h.Trend),
		Details: map[string]interface{}{
			"same_hour_bookings":    h.SameHourBookings,
			"same_weekday_bookings": h.SameWeekdayBookings,
			"day_popularity":        h.DayPopularity,
		},
	}
}

// CapacityFactor prices table size against party size, clamped to [0.8, 1.4].
func CapacityFactor(guestCount, tableCapacity int) models.PriceFactor {
	v := 1.0
	reason := "standard table"
	switch {
	case tableCapacity > 0 && tableCapacity <= 2:
		v *= 1.3
		reason = "couple table premium"
	case tableCapacity >= 8:
		v *= 0.9
		reason = "large table discount"
	}
	utilization := 1.0
	if tableCapacity > 0 {
		utilization = float64(guestCount) / float64(tableCapacity)
		if utilization < 0.7 {
			v *= 1.15
			reason += ", under-utilized table"
		}
	}
	return models.PriceFactor{
		Value:   round2(clamp(v, 0.8, 1.4)),
		Reason:  reason,
		Details: map[string]interface{}{"utilization": round2(utilization)},
	}
}

func confidenceScore(h *HistoricalInsights, d *DemandSnapshot) float64 {
	c := 0.5
	if h != nil {
		switch {
		case h.TotalBookings >= 50:
			c += 0.3
		case h.TotalBookings >= 10:
			c += 0.2
		case h.TotalBookings > 0:
			c += 0.1
		}
	}
	if d != nil && d.HasData {
		c += 0.2
	}
	return round2(clamp(c, 0, 1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
