package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// HolidayHandler manages the holiday calendar.
type HolidayHandler struct {
	holidayService services.HolidayService
}

// NewHolidayHandler creates a new HolidayHandler.
func NewHolidayHandler(hs services.HolidayService) *HolidayHandler {
	return &HolidayHandler{holidayService: hs}
}

// GetHoliday returns the holiday on a date, 404 when the date is a regular day.
func (h *HolidayHandler) GetHoliday(c *gin.Context) {
	date := c.Param("date")
	holiday, err := h.holidayService.GetHolidayForDate(c.Request.Context(), date)
	if err != nil {
		respondHolidayError(c, err, "GetHoliday")
		return
	}
	if holiday == nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "No holiday on this date.", date))
		return
	}
	c.JSON(http.StatusOK, holiday)
}

// ListHolidays returns holidays within [from, to].
func (h *HolidayHandler) ListHolidays(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if utils.IsEmpty(from) || utils.IsEmpty(to) {
		utils.RespondValidationFailed(c, "from and to are required")
		return
	}
	holidays, err := h.holidayService.ListHolidays(c.Request.Context(), from, to)
	if err != nil {
		respondHolidayError(c, err, "ListHolidays")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": holidays, "total": len(holidays)})
}

// UpsertHoliday creates or replaces the holiday of a date.
func (h *HolidayHandler) UpsertHoliday(c *gin.Context) {
	var req models.Holiday
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	holiday, err := h.holidayService.UpsertHoliday(c.Request.Context(), req)
	if err != nil {
		respondHolidayError(c, err, "UpsertHoliday")
		return
	}
	c.JSON(http.StatusOK, holiday)
}

// DeleteHoliday removes the holiday of a date.
func (h *HolidayHandler) DeleteHoliday(c *gin.Context) {
	if err := h.holidayService.DeleteHoliday(c.Request.Context(), c.Param("date")); err != nil {
		respondHolidayError(c, err, "DeleteHoliday")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCache drops cached holiday lookups.
func (h *HolidayHandler) ClearCache(c *gin.Context) {
	h.holidayService.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "Holiday cache cleared."})
}

func respondHolidayError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, services.ErrHolidayValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid holiday data.", err.Error()))
	case errors.Is(err, services.ErrHolidayNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Holiday not found.", err.Error()))
	default:
		utils.LogError(err, op+": Error from holidayService")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to process holiday request.", "Internal error"))
	}
}
