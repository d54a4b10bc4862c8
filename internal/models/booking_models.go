package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BookingStatus defines the type for booking statuses
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ActiveBookingStatuses hold a table slot.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// IsValidBookingStatus checks if the provided status string is a valid BookingStatus.
func IsValidBookingStatus(status string) bool {
	switch BookingStatus(status) {
	case BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusCancelled,
		BookingStatusCompleted:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status occupies the table.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking sources.
const (
	BookingSourceChat  = "line"
	BookingSourceWeb   = "web"
	BookingSourceStaff = "staff"
)

// History actions.
const (
	HistoryActionCreated         = "created"
	HistoryActionConfirmed       = "confirmed"
	HistoryActionRejected        = "rejected"
	HistoryActionCancelled       = "cancelled"
	HistoryActionCompleted       = "completed"
	HistoryActionRequestsUpdated = "special_requests_updated"
)

// HistoryDedupWindow is the span within which an identical history entry is not re-appended.
const HistoryDedupWindow = 5 * time.Second

// HistoryEntry is one timestamped action record on a booking.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Action     string        `json:"action"`
	FromStatus BookingStatus `json:"from_status,omitempty"`
	ToStatus   BookingStatus `json:"to_status,omitempty"`
	ActorType  string        `json:"actor_type,omitempty"`
	ActorID    int64         `json:"actor_id,omitempty"`
	Note       string        `json:"note,omitempty"`
	At         time.Time     `json:"at"`
}

// BookingHistory is the append-only log stored as JSONB.
type BookingHistory []HistoryEntry

// Value implements driver.Valuer.
func (h BookingHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *BookingHistory) Scan(src interface{}) error {
	return scanJSON(src, h)
}

// Booking represents a table reservation.
type Booking struct {
	ID              int64          `json:"id" db:"id"`
	Reference       string         `json:"reference" db:"reference"`
	RestaurantID    int64          `json:"restaurant_id" db:"restaurant_id"`
	FloorPlanID     *int64         `json:"floor_plan_id,omitempty" db:"floor_plan_id"`
	CustomerID      *int64         `json:"customer_id,omitempty" db:"customer_id"`
	TableCode       string         `json:"table_id" db:"table_code"`
	BookingDate     string         `json:"date" db:"booking_date"` // YYYY-MM-DD
	StartTime       string         `json:"start_time" db:"start_time"`
	EndTime         string         `json:"end_time" db:"end_time"`
	StartMinute     int            `json:"-" db:"start_minute"`
	EndMinute       int            `json:"-" db:"end_minute"`
	GuestCount      int            `json:"guest_count" db:"guest_count"`
	Status          BookingStatus  `json:"status" db:"status"`
	SpecialRequests *string        `json:"special_requests,omitempty" db:"special_requests"`
	Pricing         *PricingResult `json:"pricing,omitempty" db:"pricing"`
	History         BookingHistory `json:"history" db:"history"`
	Version         int            `json:"version" db:"version"`
	Source          string         `json:"source" db:"source"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	Customer        *Customer      `json:"customer,omitempty"`
}

// AppendHistory appends entry unless an identical (action, from, to) entry exists within HistoryDedupWindow.
// It returns false when the entry was deduplicated.
func (b *Booking) AppendHistory(entry HistoryEntry) bool {
	for i := len(b.History) - 1; i >= 0; i-- {
		prev := b.History[i]
		if prev.Action != entry.Action || prev.FromStatus != entry.FromStatus || prev.ToStatus != entry.ToStatus {
			continue
		}
		gap := entry.At.Sub(prev.At)
		if gap < 0 {
			gap = -gap
		}
		if gap < HistoryDedupWindow {
			return false
		}
	}
	b.History = append(b.History, entry)
	return true
}

// BookingFilters defines the available filters for querying bookings.
type BookingFilters struct {
	RestaurantID *int64  `form:"restaurant_id"`
	CustomerID   *int64  `form:"customer_id"`
	TableCode    *string `form:"table_id"`
	Status       *string `form:"status"`
	DateFrom     *string `form:"date_from"` // YYYY-MM-DD inclusive
	DateTo       *string `form:"date_to"`   // YYYY-MM-DD inclusive
	ActiveOnly   bool    `form:"active_only"`
	Page         int     `form:"page"`
	PageSize     int     `form:"page_size"`
}

// BookingPatch carries the mutable fields of an expected-version update.
// Nil fields are left untouched.
type BookingPatch struct {
	Status          *BookingStatus
	SpecialRequests *string
	Pricing         *PricingResult
	History         BookingHistory
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// BookingStat is the slim projection of a booking used for demand and history analysis.
type BookingStat struct {
	BookingDate string        `json:"date"`
	StartMinute int           `json:"start_minute"`
	EndMinute   int           `json:"end_minute"`
	GuestCount  int           `json:"guest_count"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}
