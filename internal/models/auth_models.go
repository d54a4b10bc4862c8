package models

import "time"

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User represents a staff user of the booking back office.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // '-' means don't send in JSON response
	FullName     *string   `json:"full_name,omitempty" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	RestaurantID *int64    `json:"restaurant_id,omitempty" db:"restaurant_id"`
	LineUserID   *string   `json:"line_user_id,omitempty" db:"line_user_id"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Credentials for login request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegistrationPayload for staff registration
type RegistrationPayload struct {
	Username     string  `json:"username" binding:"required"`
	Password     string  `json:"password" binding:"required"`
	FullName     *string `json:"full_name,omitempty"`
	Role         string  `json:"role,omitempty"` // "admin" or "staff"
	RestaurantID *int64  `json:"restaurant_id,omitempty"`
	LineUserID   *string `json:"line_user_id,omitempty"`
}

// Actor is whoever performs a booking action.
type Actor struct {
	UserID       int64
	Role         string // RoleAdmin, RoleStaff or ActorCustomer
	RestaurantID *int64
	CustomerID   *int64
}

// ActorCustomer marks a booking customer acting on their own booking.
const ActorCustomer = "customer"

// IsAdmin reports whether the actor is an admin.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff reports whether the actor is staff or admin.
func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleStaff }

// Type is the value recorded in history entries.
func (a Actor) Type() string {
	if a.Role == "" {
		return "system"
	}
	return a.Role
}

// ID returns the user or customer id recorded in history entries.
func (a Actor) ID() int64 {
	if a.CustomerID != nil && !a.IsStaff() {
		return *a.CustomerID
	}
	return a.UserID
}
