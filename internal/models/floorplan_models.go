package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// Table occupancy projection values.
const (
	TableStatusAvailable = "available"
	TableStatusBooked    = "booked"
)

// Default opening hours when a restaurant has none configured for a weekday.
const (
	DefaultOpenTime  = "11:00"
	DefaultCloseTime = "22:00"
)

// DayHours is the opening window for one weekday.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// OpeningHours is keyed by lower-case English weekday name ("monday" ...).
type OpeningHours map[string]DayHours

// For returns the hours of the given weekday, falling back to the defaults.
func (o OpeningHours) For(day time.Weekday) DayHours {
	if h, ok := o[strings.ToLower(day.String())]; ok && (h.Closed || (h.Open != "" && h.Close != "")) {
		return h
	}
	return DayHours{Open: DefaultOpenTime, Close: DefaultCloseTime}
}

// Value implements driver.Valuer.
func (o OpeningHours) Value() (driver.Value, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *OpeningHours) Scan(src interface{}) error {
	return scanJSON(src, o)
}

// Restaurant is a venue that accepts bookings.
type Restaurant struct {
	ID                int64        `json:"id" db:"id"`
	Name              string       `json:"name" db:"name"`
	OpeningHours      OpeningHours `json:"opening_hours" db:"opening_hours"`
	FloorPlanImageURL *string      `json:"floor_plan_image_url,omitempty" db:"floor_plan_image_url"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// FloorPlanTable is a bookable table placed on a floor plan.
type FloorPlanTable struct {
	ID           int64     `json:"id" db:"id"`
	FloorPlanID  int64     `json:"floor_plan_id" db:"floor_plan_id"`
	RestaurantID int64     `json:"restaurant_id" db:"restaurant_id"`
	TableCode    string    `json:"table_id" db:"table_code"`
	ObjectID     *string   `json:"object_id,omitempty" db:"object_id"`
	Capacity     int       `json:"capacity" db:"capacity"`
	Location     *string   `json:"location,omitempty" db:"location"`
	Status       string    `json:"status" db:"status"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// LocationOrEmpty returns the table location or "".
func (t FloorPlanTable) LocationOrEmpty() string {
	if t.Location == nil {
		return ""
	}
	return *t.Location
}
