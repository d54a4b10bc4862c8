package models

import "time"

// Customer is a chat-channel user who books tables.
type Customer struct {
	ID          int64     `json:"id" db:"id"`
	LineUserID  string    `json:"line_user_id" db:"line_user_id"`
	DisplayName *string   `json:"display_name,omitempty" db:"display_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
