package models

import "time"

// ApplicationSetting represents a key-value pair for application configuration
type ApplicationSetting struct {
	ID           int64     `json:"id" db:"id"`
	SettingKey   string    `json:"setting_key" db:"setting_key" binding:"required"`
	SettingValue *string   `json:"setting_value,omitempty" db:"setting_value"`
	Description  *string   `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Setting keys read by the pricing engine. Values are decimal strings.
const (
	SettingPricingBasePrice           = "pricing.base_price"
	SettingPricingMinPrice            = "pricing.min_price"
	SettingPricingMaxPrice            = "pricing.max_price"
	SettingPricingCapacityLookback    = "pricing.capacity_lookback_days"
	SettingPricingPeakUtilization     = "pricing.peak_utilization"
	SettingPricingCapacityFloor       = "pricing.capacity_floor"
	SettingPricingHighPopularity      = "pricing.popularity_high_threshold"
	SettingPricingMediumPopularity    = "pricing.popularity_medium_threshold"
	SettingPricingQuoteCacheTTLMinute = "pricing.quote_cache_ttl_minutes"
)
