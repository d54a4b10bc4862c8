package services

import (
	"strconv"
	"sync"
	"time"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/pkg/utils"
)

// PricingParams are the tunable constants of the pricing engine and the demand analyzer.
type PricingParams struct {
	BasePrice                 int
	MinPrice                  int
	MaxPrice                  int
	CapacityLookbackDays      int
	PeakUtilization           float64
	CapacityFloor             int
	HighPopularityThreshold   int
	MediumPopularityThreshold int
	HistoryLookbackDays       int
	QuoteCacheTTL             time.Duration
	BookingDuration           time.Duration
}

// DefaultPricingParams returns the built-in defaults.
func DefaultPricingParams() PricingParams {
	return PricingParams{
		BasePrice:                 100,
		MinPrice:                  70,
		MaxPrice:                  200,
		CapacityLookbackDays:      30,
		PeakUtilization:           0.8,
		CapacityFloor:             40,
		HighPopularityThreshold:   5,
		MediumPopularityThreshold: 2,
		HistoryLookbackDays:       365,
		QuoteCacheTTL:             15 * time.Minute,
		BookingDuration:           2 * time.Hour,
	}
}

// WithSettings overlays application settings onto p. Unparsable or out-of-range values are ignored.
func (p PricingParams) WithSettings(settings []models.ApplicationSetting) PricingParams {
	for _, s := range settings {
		if s.SettingValue == nil {
			continue
		}
		raw := *s.SettingValue
		switch s.SettingKey {
		case models.SettingPricingBasePrice:
			setPositiveInt(&p.BasePrice, raw, s.SettingKey)
		case models.SettingPricingMinPrice:
			setPositiveInt(&p.MinPrice, raw, s.SettingKey)
		case models.SettingPricingMaxPrice:
			setPositiveInt(&p.MaxPrice, raw, s.SettingKey)
		case models.SettingPricingCapacityLookback:
			setPositiveInt(&p.CapacityLookbackDays, raw, s.SettingKey)
		case models.SettingPricingCapacityFloor:
			setPositiveInt(&p.CapacityFloor, raw, s.SettingKey)
		case models.SettingPricingHighPopularity:
			setPositiveInt(&p.HighPopularityThreshold, raw, s.SettingKey)
		case models.SettingPricingMediumPopularity:
			setPositiveInt(&p.MediumPopularityThreshold, raw, s.SettingKey)
		case models.SettingPricingQuoteCacheTTLMinute:
			var minutes int
			if setPositiveInt(&minutes, raw, s.SettingKey) {
				p.QuoteCacheTTL = time.Duration(minutes) * time.Minute
			}
		case models.SettingPricingPeakUtilization:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 || v > 1 {
				utils.LogWarn("ignoring invalid pricing setting", map[string]interface{}{"key": s.SettingKey, "value": raw})
				continue
			}
			p.PeakUtilization = v
		}
	}
	if p.MinPrice > p.MaxPrice {
		utils.LogWarn("pricing min_price above max_price, restoring defaults", map[string]interface{}{"min": p.MinPrice, "max": p.MaxPrice})
		d := DefaultPricingParams()
		p.MinPrice, p.MaxPrice = d.MinPrice, d.MaxPrice
	}
	return p
}

func setPositiveInt(dst *int, raw, key string) bool {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		utils.LogWarn("ignoring invalid pricing setting", map[string]interface{}{"key": key, "value": raw})
		return false
	}
	*dst = v
	return true
}

// PricingParamsStore shares the live parameters between the engine and the analyzer.
type PricingParamsStore struct {
	mu sync.RWMutex
	p  PricingParams
}

// NewPricingParamsStore creates a store holding p.
func NewPricingParamsStore(p PricingParams) *PricingParamsStore {
	return &PricingParamsStore{p: p}
}

// Get returns a copy of the current parameters.
func (s *PricingParamsStore) Get() PricingParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Set replaces the parameters.
func (s *PricingParamsStore) Set(p PricingParams) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}
