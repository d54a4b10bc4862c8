package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_booking_backend/internal/models"
)

// HolidayRepository is the holiday calendar data source.
type HolidayRepository interface {
	GetByDate(ctx context.Context, date string) (*models.Holiday, error)
	ListBetween(ctx context.Context, from, to string) ([]models.Holiday, error)
	Upsert(ctx context.Context, executor SQLExecutor, holiday *models.Holiday) (*models.Holiday, error)
	DeleteByDate(ctx context.Context, executor SQLExecutor, date string) error
}

type holidayRepository struct {
	db *sql.DB
}

// NewHolidayRepository creates a new instance of HolidayRepository.
func NewHolidayRepository(db *sql.DB) HolidayRepository {
	return &holidayRepository{db: db}
}

const selectHolidayFields = `id, holiday_date::text, name, holiday_type, impact_multiplier, business_impact,
	pricing_strategy, created_at, updated_at`

func scanHolidayRow(row scanner) (*models.Holiday, error) {
	var h models.Holiday
	err := row.Scan(&h.ID, &h.Date, &h.Name, &h.Type, &h.ImpactMultiplier, &h.BusinessImpact,
		&h.Strategy, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning holiday: %v", ErrDatabaseError, err)
	}
	return &h, nil
}

func (r *holidayRepository) GetByDate(ctx context.Context, date string) (*models.Holiday, error) {
	query := "SELECT " + selectHolidayFields + " FROM holidays WHERE holiday_date = $1"
	return scanHolidayRow(r.db.QueryRowContext(ctx, query, date))
}

// ListBetween returns holidays with from <= date <= to ordered by date.
func (r *holidayRepository) ListBetween(ctx context.Context, from, to string) ([]models.Holiday, error) {
	query := "SELECT " + selectHolidayFields + ` FROM holidays
	          WHERE holiday_date >= $1 AND holiday_date <= $2 ORDER BY holiday_date ASC`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: listing holidays: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	holidays := []models.Holiday{}
	for rows.Next() {
		h, scanErr := scanHolidayRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		holidays = append(holidays, *h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating holidays: %v", ErrDatabaseError, err)
	}
	return holidays, nil
}

func (r *holidayRepository) Upsert(ctx context.Context, executor SQLExecutor, holiday *models.Holiday) (*models.Holiday, error) {
	query := `INSERT INTO holidays (holiday_date, name, holiday_type, impact_multiplier, business_impact, pricing_strategy, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	          ON CONFLICT (holiday_date)
	          DO UPDATE SET name = EXCLUDED.name, holiday_type = EXCLUDED.holiday_type,
	                        impact_multiplier = EXCLUDED.impact_multiplier, business_impact = EXCLUDED.business_impact,
	                        pricing_strategy = EXCLUDED.pricing_strategy, updated_at = EXCLUDED.updated_at
	          RETURNING ` + selectHolidayFields
	h, err := scanHolidayRow(executor.QueryRowContext(ctx, query,
		holiday.Date, holiday.Name, holiday.Type, holiday.ImpactMultiplier, holiday.BusinessImpact,
		holiday.Strategy, time.Now()))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r *holidayRepository) DeleteByDate(ctx context.Context, executor SQLExecutor, date string) error {
	result, err := executor.ExecContext(ctx, `DELETE FROM holidays WHERE holiday_date = $1`, date)
	if err != nil {
		return fmt.Errorf("%w: deleting holiday %s: %v", ErrDatabaseError, date, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
