package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_booking_backend/internal/models"
)

// CustomerRepository defines the interface for customer-related database operations.
type CustomerRepository interface {
	// FindOrCreateByLineUserID returns the customer for a chat user, creating it on first contact.
	FindOrCreateByLineUserID(ctx context.Context, executor SQLExecutor, lineUserID string, displayName *string) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
}

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new instance of CustomerRepository.
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) FindOrCreateByLineUserID(ctx context.Context, executor SQLExecutor, lineUserID string, displayName *string) (*models.Customer, error) {
	query := `INSERT INTO customers (line_user_id, display_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $3)
	          ON CONFLICT (line_user_id)
	          DO UPDATE SET display_name = COALESCE(EXCLUDED.display_name, customers.display_name), updated_at = EXCLUDED.updated_at
	          RETURNING id, line_user_id, display_name, created_at, updated_at`

	var c models.Customer
	err := executor.QueryRowContext(ctx, query, lineUserID, displayName, time.Now()).
		Scan(&c.ID, &c.LineUserID, &c.DisplayName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, classifyWriteError(err, "upserting customer")
	}
	return &c, nil
}

func (r *customerRepository) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	query := `SELECT id, line_user_id, display_name, created_at, updated_at FROM customers WHERE id = $1`
	var c models.Customer
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.LineUserID, &c.DisplayName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting customer ID %d: %v", ErrDatabaseError, id, err)
	}
	return &c, nil
}
