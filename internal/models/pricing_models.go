package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DefaultCurrency is attached to every pricing result.
const DefaultCurrency = "THB"

// PriceQuoteRequest is the input of a price quote.
type PriceQuoteRequest struct {
	RestaurantID  int64  `json:"restaurantId" binding:"required"`
	TableID       string `json:"tableId" binding:"required"`
	Date          string `json:"date" binding:"required"` // YYYY-MM-DD
	Time          string `json:"time" binding:"required"` // HH:MM[ AM/PM]
	GuestCount    int    `json:"guestCount"`
	TableCapacity int    `json:"tableCapacity"`
	TableLocation string `json:"tableLocation,omitempty"`
}

// PriceFactor is one multiplier of the pricing formula with its justification.
type PriceFactor struct {
	Value   float64                `json:"value"`
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NeutralFactor returns a multiplier of 1.0.
func NeutralFactor(reason string) PriceFactor {
	return PriceFactor{Value: 1.0, Reason: reason}
}

// PriceFactors groups the five named factors.
type PriceFactors struct {
	Demand     PriceFactor `json:"demand"`
	Temporal   PriceFactor `json:"temporal"`
	Historical PriceFactor `json:"historical"`
	Capacity   PriceFactor `json:"capacity"`
	Holiday    PriceFactor `json:"holiday"`
}

// PricingContext holds the inputs the factors were computed from.
type PricingContext struct {
	RestaurantID      int64   `json:"restaurantId"`
	TableID           string  `json:"tableId"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
	GuestCount        int     `json:"guestCount"`
	TableCapacity     int     `json:"tableCapacity"`
	TableLocation     string  `json:"tableLocation,omitempty"`
	OccupancyRate     float64 `json:"occupancyRate"`
	BookedGuests      int     `json:"bookedGuests"`
	EstimatedCapacity int     `json:"estimatedCapacity"`
	LeadTimeHours     float64 `json:"leadTimeHours"`
	IsWeekend         bool    `json:"isWeekend"`
	HistoricalCount   int     `json:"historicalBookings"`
	HolidayName       string  `json:"holidayName,omitempty"`
	Error             bool    `json:"error,omitempty"`
	ErrorMessage      string  `json:"errorMessage,omitempty"`
}

// PricingResult is the price breakdown returned by the pricing engine and
// stored as the pricing snapshot of a booking.
type PricingResult struct {
	Success      bool           `json:"success"`
	BasePrice    int            `json:"basePrice"`
	FinalPrice   int            `json:"finalPrice"`
	Currency     string         `json:"currency"`
	Factors      PriceFactors   `json:"factors"`
	Context      PricingContext `json:"context"`
	Confidence   float64        `json:"confidence"`
	CalculatedAt time.Time      `json:"calculatedAt"`
	Message      string         `json:"message,omitempty"`
}

// IsFallback reports whether the result was produced by the error path.
func (p PricingResult) IsFallback() bool {
	return p.Context.Error
}

// Value implements driver.Valuer.
func (p PricingResult) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *PricingResult) Scan(src interface{}) error {
	return scanJSON(src, p)
}
