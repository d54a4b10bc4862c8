package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
)

// --- Custom Service Errors for Customer ---
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrCustomerValidation = errors.New("customer data validation error")
)

// --- CustomerService Interface ---
type CustomerService interface {
	// EnsureCustomer returns the customer behind a chat account, registering it on first contact.
	EnsureCustomer(ctx context.Context, lineUserID string, displayName *string) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, customerID int64) (*models.Customer, error)
}

// --- customerService Implementation ---
type customerService struct {
	customerRepo repositories.CustomerRepository
	db           *sql.DB
}

// NewCustomerService creates a new instance of CustomerService.
func NewCustomerService(repo repositories.CustomerRepository, db *sql.DB) CustomerService {
	return &customerService{customerRepo: repo, db: db}
}

func (s *customerService) EnsureCustomer(ctx context.Context, lineUserID string, displayName *string) (*models.Customer, error) {
	lineUserID = strings.TrimSpace(lineUserID)
	if lineUserID == "" {
		return nil, fmt.Errorf("%w: line user id is required", ErrCustomerValidation)
	}
	if displayName != nil && strings.TrimSpace(*displayName) == "" {
		displayName = nil
	}
	customer, err := s.customerRepo.FindOrCreateByLineUserID(ctx, s.db, lineUserID, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to register customer: %w", err)
	}
	return customer, nil
}

func (s *customerService) GetCustomerByID(ctx context.Context, customerID int64) (*models.Customer, error) {
	customer, err := s.customerRepo.GetCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer by ID: %w", err)
	}
	return customer, nil
}
