package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

var (
	ErrSettingNotFound   = errors.New("application setting not found")
	ErrSettingValidation = errors.New("application setting validation error")
)

// SettingService manages application settings and keeps the pricing parameters in sync with them.
type SettingService interface {
	ListSettings(ctx context.Context) ([]models.ApplicationSetting, error)
	GetSetting(ctx context.Context, key string) (*models.ApplicationSetting, error)
	SaveSetting(ctx context.Context, setting models.ApplicationSetting) (*models.ApplicationSetting, error)
	DeleteSetting(ctx context.Context, key string) error
	// ReloadPricing rebuilds the pricing parameters from defaults plus the stored settings.
	ReloadPricing(ctx context.Context) (PricingParams, error)
}

type settingService struct {
	repo     repositories.SettingRepository
	pricing  PricingService
	defaults PricingParams
}

// NewSettingService creates a SettingService. defaults are the parameters settings are overlaid on.
func NewSettingService(repo repositories.SettingRepository, pricing PricingService, defaults PricingParams) SettingService {
	return &settingService{repo: repo, pricing: pricing, defaults: defaults}
}

func (s *settingService) ListSettings(ctx context.Context) ([]models.ApplicationSetting, error) {
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

func (s *settingService) GetSetting(ctx context.Context, key string) (*models.ApplicationSetting, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return setting, nil
}

func (s *settingService) SaveSetting(ctx context.Context, setting models.ApplicationSetting) (*models.ApplicationSetting, error) {
	setting.SettingKey = strings.TrimSpace(setting.SettingKey)
	if setting.SettingKey == "" {
		return nil, fmt.Errorf("%w: setting key cannot be empty", ErrSettingValidation)
	}
	saved, err := s.repo.UpsertSetting(ctx, &setting)
	if err != nil {
		return nil, fmt.Errorf("failed to save setting: %w", err)
	}
	if isPricingKey(saved.SettingKey) {
		if _, err := s.ReloadPricing(ctx); err != nil {
			utils.LogError(err, "setting saved but pricing reload failed", map[string]interface{}{"key": saved.SettingKey})
		}
	}
	return saved, nil
}

func (s *settingService) DeleteSetting(ctx context.Context, key string) error {
	if err := s.repo.DeleteSetting(ctx, key); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrSettingNotFound
		}
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	if isPricingKey(key) {
		if _, err := s.ReloadPricing(ctx); err != nil {
			utils.LogError(err, "setting deleted but pricing reload failed", map[string]interface{}{"key": key})
		}
	}
	return nil
}

func (s *settingService) ReloadPricing(ctx context.Context) (PricingParams, error) {
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return s.pricing.Params(), fmt.Errorf("failed to load pricing settings: %w", err)
	}
	p := s.defaults.WithSettings(settings)
	s.pricing.SetParams(p)
	utils.LogInfo("pricing parameters reloaded", map[string]interface{}{
		"base_price": p.BasePrice, "min_price": p.MinPrice, "max_price": p.MaxPrice,
	})
	return p, nil
}

func isPricingKey(key string) bool {
	return strings.HasPrefix(key, "pricing.")
}
