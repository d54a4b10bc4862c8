package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// HolidayType classifies a holiday.
type HolidayType string

const (
	HolidayTypeNational      HolidayType = "national"
	HolidayTypeReligious     HolidayType = "religious"
	HolidayTypeRoyal         HolidayType = "royal"
	HolidayTypeCultural      HolidayType = "cultural"
	HolidayTypeInternational HolidayType = "international"
	HolidayTypeCommercial    HolidayType = "commercial"
	HolidayTypeLocal         HolidayType = "local"
)

// IsValidHolidayType checks the seven supported classifications.
func IsValidHolidayType(t string) bool {
	switch HolidayType(t) {
	case HolidayTypeNational, HolidayTypeReligious, HolidayTypeRoyal, HolidayTypeCultural,
		HolidayTypeInternational, HolidayTypeCommercial, HolidayTypeLocal:
		return true
	}
	return false
}

// Business impact tiers.
const (
	ImpactLow    = "low"
	ImpactMedium = "medium"
	ImpactHigh   = "high"
	ImpactMajor  = "major"
)

// HolidayStrategy holds per-table-type multipliers.
type HolidayStrategy struct {
	CoupleMultiplier        float64 `json:"couple_multiplier"`
	FamilyMultiplier        float64 `json:"family_multiplier"`
	GroupMultiplier         float64 `json:"group_multiplier"`
	ExtendedPeakHours       bool    `json:"extended_peak_hours"`
	EarlyBookingRecommended bool    `json:"early_booking_recommended"`
}

// Value implements driver.Valuer.
func (s HolidayStrategy) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *HolidayStrategy) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Holiday is a calendar entry that influences pricing.
type Holiday struct {
	ID               int64           `json:"id" db:"id"`
	Date             string          `json:"date" db:"holiday_date" binding:"required"` // YYYY-MM-DD
	Name             string          `json:"name" db:"name" binding:"required"`
	Type             HolidayType     `json:"type" db:"holiday_type"`
	ImpactMultiplier float64         `json:"impact_multiplier" db:"impact_multiplier"`
	BusinessImpact   string          `json:"business_impact" db:"business_impact"`
	Strategy         HolidayStrategy `json:"pricing_strategy" db:"pricing_strategy"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsMajor reports whether the holiday has a high or major business impact.
func (h Holiday) IsMajor() bool {
	return h.BusinessImpact == ImpactHigh || h.BusinessImpact == ImpactMajor
}

// Table classifications used to pick a holiday multiplier.
const (
	TableTypeCouple = "couple"
	TableTypeFamily = "family"
	TableTypeGroup  = "group"
)

// ClassifyTable picks couple, group or family for a party on a table.
func ClassifyTable(guestCount, tableCapacity int) string {
	if guestCount <= 2 && tableCapacity <= 2 {
		return TableTypeCouple
	}
	if guestCount >= 6 || tableCapacity >= 8 {
		return TableTypeGroup
	}
	return TableTypeFamily
}

// MultiplierFor returns the strategy multiplier for a table type, defaulting to the impact multiplier.
func (h Holiday) MultiplierFor(tableType string) float64 {
	var m float64
	switch tableType {
	case TableTypeCouple:
		m = h.Strategy.CoupleMultiplier
	case TableTypeGroup:
		m = h.Strategy.GroupMultiplier
	default:
		m = h.Strategy.FamilyMultiplier
	}
	if m <= 0 {
		m = h.ImpactMultiplier
	}
	return m
}
