package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_booking_backend/internal/models"
)

// SettingRepository stores application key/value settings.
type SettingRepository interface {
	ListSettings(ctx context.Context) ([]models.ApplicationSetting, error)
	GetSetting(ctx context.Context, key string) (*models.ApplicationSetting, error)
	UpsertSetting(ctx context.Context, setting *models.ApplicationSetting) (*models.ApplicationSetting, error)
	DeleteSetting(ctx context.Context, key string) error
}

type settingRepository struct {
	db *sql.DB
}

// NewSettingRepository creates a new instance of SettingRepository.
func NewSettingRepository(db *sql.DB) SettingRepository {
	return &settingRepository{db: db}
}

const selectSettingFields = "id, setting_key, setting_value, description, created_at, updated_at"

func scanSettingRow(row scanner) (*models.ApplicationSetting, error) {
	var s models.ApplicationSetting
	if err := row.Scan(&s.ID, &s.SettingKey, &s.SettingValue, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning application setting: %v", ErrDatabaseError, err)
	}
	return &s, nil
}

func (r *settingRepository) ListSettings(ctx context.Context) ([]models.ApplicationSetting, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectSettingFields+" FROM application_settings ORDER BY setting_key")
	if err != nil {
		return nil, fmt.Errorf("%w: fetching application settings: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	settings := []models.ApplicationSetting{}
	for rows.Next() {
		s, scanErr := scanSettingRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		settings = append(settings, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating application settings: %v", ErrDatabaseError, err)
	}
	return settings, nil
}

func (r *settingRepository) GetSetting(ctx context.Context, key string) (*models.ApplicationSetting, error) {
	query := "SELECT " + selectSettingFields + " FROM application_settings WHERE setting_key = $1"
	return scanSettingRow(r.db.QueryRowContext(ctx, query, key))
}

// UpsertSetting creates a new setting or updates an existing one by key.
func (r *settingRepository) UpsertSetting(ctx context.Context, setting *models.ApplicationSetting) (*models.ApplicationSetting, error) {
	query := `
	    INSERT INTO application_settings (setting_key, setting_value, description, created_at, updated_at)
	    VALUES ($1, $2, $3, $4, $4)
	    ON CONFLICT (setting_key)
	    DO UPDATE SET setting_value = EXCLUDED.setting_value, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at
	    RETURNING ` + selectSettingFields
	return scanSettingRow(r.db.QueryRowContext(ctx, query, setting.SettingKey, setting.SettingValue, setting.Description, time.Now()))
}

func (r *settingRepository) DeleteSetting(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM application_settings WHERE setting_key = $1", key)
	if err != nil {
		return fmt.Errorf("%w: deleting application setting %s: %v", ErrDatabaseError, key, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
