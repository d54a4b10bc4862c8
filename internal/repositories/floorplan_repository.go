package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_booking_backend/internal/models"
)

// FloorPlanRepository reads restaurants and their tables and maintains the table status projection.
type FloorPlanRepository interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	ListTables(ctx context.Context, restaurantID int64, activeOnly bool) ([]models.FloorPlanTable, error)
	GetTable(ctx context.Context, restaurantID int64, tableCode string) (*models.FloorPlanTable, error)
	// RefreshTableStatus recomputes the occupancy flag of a table from its active bookings and returns it.
	RefreshTableStatus(ctx context.Context, executor SQLExecutor, restaurantID int64, tableCode string) (string, error)
}

type floorPlanRepository struct {
	db *sql.DB
}

// NewFloorPlanRepository creates a new instance of FloorPlanRepository.
func NewFloorPlanRepository(db *sql.DB) FloorPlanRepository {
	return &floorPlanRepository{db: db}
}

func (r *floorPlanRepository) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	query := `SELECT id, name, opening_hours, floor_plan_image_url, created_at, updated_at
	          FROM restaurants WHERE id = $1`
	var rest models.Restaurant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rest.ID, &rest.Name, &rest.OpeningHours, &rest.FloorPlanImageURL, &rest.CreatedAt, &rest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting restaurant ID %d: %v", ErrDatabaseError, id, err)
	}
	return &rest, nil
}

const selectTableFields = `t.id, t.floor_plan_id, fp.restaurant_id, t.table_code, t.object_id, t.capacity,
	t.location, t.status, t.is_active, t.created_at, t.updated_at`

const tableJoins = ` FROM floor_plan_tables t JOIN floor_plans fp ON fp.id = t.floor_plan_id`

func scanTableRow(row scanner) (*models.FloorPlanTable, error) {
	var t models.FloorPlanTable
	err := row.Scan(&t.ID, &t.FloorPlanID, &t.RestaurantID, &t.TableCode, &t.ObjectID, &t.Capacity,
		&t.Location, &t.Status, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning floor plan table: %v", ErrDatabaseError, err)
	}
	return &t, nil
}

func (r *floorPlanRepository) ListTables(ctx context.Context, restaurantID int64, activeOnly bool) ([]models.FloorPlanTable, error) {
	query := "SELECT " + selectTableFields + tableJoins + " WHERE fp.restaurant_id = $1"
	if activeOnly {
		query += " AND t.is_active = TRUE AND fp.is_active = TRUE"
	}
	query += " ORDER BY t.capacity ASC, t.table_code ASC"

	rows, err := r.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables of restaurant %d: %v", ErrDatabaseError, restaurantID, err)
	}
	defer rows.Close()

	tables := []models.FloorPlanTable{}
	for rows.Next() {
		t, scanErr := scanTableRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tables = append(tables, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating tables: %v", ErrDatabaseError, err)
	}
	return tables, nil
}

func (r *floorPlanRepository) GetTable(ctx context.Context, restaurantID int64, tableCode string) (*models.FloorPlanTable, error) {
	query := "SELECT " + selectTableFields + tableJoins + " WHERE fp.restaurant_id = $1 AND t.table_code = $2"
	return scanTableRow(r.db.QueryRowContext(ctx, query, restaurantID, tableCode))
}

// RefreshTableStatus locks the table row, then sets status to booked while any pending or confirmed
// booking holds the table and to available otherwise. The row lock orders concurrent refreshes of one table.
func (r *floorPlanRepository) RefreshTableStatus(ctx context.Context, executor SQLExecutor, restaurantID int64, tableCode string) (string, error) {
	lockQuery := `SELECT t.id FROM floor_plan_tables t
	              JOIN floor_plans fp ON fp.id = t.floor_plan_id
	              WHERE fp.restaurant_id = $1 AND t.table_code = $2
	              FOR UPDATE OF t`
	var tableID int64
	if err := executor.QueryRowContext(ctx, lockQuery, restaurantID, tableCode).Scan(&tableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: locking table %s: %v", ErrDatabaseError, tableCode, err)
	}

	updateQuery := `UPDATE floor_plan_tables SET
	                  status = CASE WHEN EXISTS (
	                      SELECT 1 FROM bookings b
	                      WHERE b.restaurant_id = $1 AND b.table_code = $2 AND b.status IN ('pending', 'confirmed')
	                  ) THEN 'booked' ELSE 'available' END,
	                  updated_at = $3
	                WHERE id = $4
	                RETURNING status`
	var status string
	if err := executor.QueryRowContext(ctx, updateQuery, restaurantID, tableCode, time.Now(), tableID).Scan(&status); err != nil {
		return "", fmt.Errorf("%w: refreshing status of table %s: %v", ErrDatabaseError, tableCode, err)
	}
	return status, nil
}
