package services

import (
	"context"
	"errors"
	"fmt"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
)

// ErrRestaurantNotFound is returned for unknown restaurant ids.
var ErrRestaurantNotFound = errors.New("restaurant not found")

// RestaurantDetails is a restaurant with its floor plan tables.
type RestaurantDetails struct {
	*models.Restaurant
	Tables []models.FloorPlanTable `json:"tables"`
}

// RestaurantService exposes the restaurant directory and floor plans.
type RestaurantService interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	GetRestaurantDetails(ctx context.Context, id int64) (*RestaurantDetails, error)
}

type restaurantService struct {
	floorPlan repositories.FloorPlanRepository
}

func NewRestaurantService(floorPlan repositories.FloorPlanRepository) RestaurantService {
	return &restaurantService{floorPlan: floorPlan}
}

func (s *restaurantService) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	r, err := s.floorPlan.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant %d: %w", id, err)
	}
	return r, nil
}

func (s *restaurantService) GetRestaurantDetails(ctx context.Context, id int64) (*RestaurantDetails, error) {
	r, err := s.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	tables, err := s.floorPlan.ListTables(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("list tables of restaurant %d: %w", id, err)
	}
	return &RestaurantDetails{Restaurant: r, Tables: tables}, nil
}
