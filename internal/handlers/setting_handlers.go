package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// SettingHandler manages application settings.
type SettingHandler struct {
	settingService services.SettingService
}

// NewSettingHandler creates a new SettingHandler.
func NewSettingHandler(ss services.SettingService) *SettingHandler {
	return &SettingHandler{settingService: ss}
}

// GetApplicationSettings retrieves all application settings
func (h *SettingHandler) GetApplicationSettings(c *gin.Context) {
	settings, err := h.settingService.ListSettings(c.Request.Context())
	if err != nil {
		respondSettingError(c, err, "GetApplicationSettings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetApplicationSettingByKey retrieves a specific application setting by its key
func (h *SettingHandler) GetApplicationSettingByKey(c *gin.Context) {
	setting, err := h.settingService.GetSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondSettingError(c, err, "GetApplicationSettingByKey")
		return
	}
	c.JSON(http.StatusOK, setting)
}

// CreateOrUpdateApplicationSetting creates a new setting or updates an existing one by key.
// The key in the path wins over the one in the body.
func (h *SettingHandler) CreateOrUpdateApplicationSetting(c *gin.Context) {
	var setting models.ApplicationSetting
	if key := c.Param("key"); key != "" {
		setting.SettingKey = key
	}
	if err := c.ShouldBindJSON(&setting); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	if key := c.Param("key"); key != "" {
		setting.SettingKey = key
	}

	saved, err := h.settingService.SaveSetting(c.Request.Context(), setting)
	if err != nil {
		respondSettingError(c, err, "CreateOrUpdateApplicationSetting")
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteApplicationSetting deletes an application setting by its key
func (h *SettingHandler) DeleteApplicationSetting(c *gin.Context) {
	if err := h.settingService.DeleteSetting(c.Request.Context(), c.Param("key")); err != nil {
		respondSettingError(c, err, "DeleteApplicationSetting")
		return
	}
	c.Status(http.StatusNoContent)
}

func respondSettingError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, services.ErrSettingValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid setting.", err.Error()))
	case errors.Is(err, services.ErrSettingNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Application setting not found.", err.Error()))
	default:
		utils.LogError(err, op+": Error from settingService")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to process setting.", "Internal error"))
	}
}
