package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/middleware"
	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// BookingHandler holds the booking service.
type BookingHandler struct {
	bookingService services.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bs services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bs}
}

type statusChangeRequest struct {
	Reason string `json:"reason"`
}

// CreateBooking handles the direct table-tap booking flow.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req services.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateBooking: Failed to bind JSON")
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	if utils.IsEmpty(req.LineUserID) {
		utils.RespondValidationFailed(c, "line_user_id is required")
		return
	}
	req.Source = models.BookingSourceWeb

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), req)
	if err != nil {
		respondBookingError(c, err, "CreateBooking")
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GetBookings lists bookings. Staff bound to a restaurant only see that restaurant.
func (h *BookingHandler) GetBookings(c *gin.Context) {
	var filters models.BookingFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		utils.LogError(err, "GetBookings: Failed to bind query")
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	if filters.Status != nil && !models.IsValidBookingStatus(*filters.Status) {
		utils.RespondValidationFailed(c, "unknown status "+*filters.Status)
		return
	}
	if actor := middleware.CurrentActor(c); actor.RestaurantID != nil {
		filters.RestaurantID = actor.RestaurantID
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	bookings, total, err := h.bookingService.GetBookings(c.Request.Context(), filters)
	if err != nil {
		respondBookingError(c, err, "GetBookings")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      bookings,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetBookingByID retrieves a single booking.
func (h *BookingHandler) GetBookingByID(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	booking, err := h.bookingService.GetBookingByID(c.Request.Context(), id)
	if err != nil {
		respondBookingError(c, err, "GetBookingByID")
		return
	}
	if actor := middleware.CurrentActor(c); actor.RestaurantID != nil && *actor.RestaurantID != booking.RestaurantID {
		respondBookingError(c, services.ErrPermissionDenied, "GetBookingByID")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBookingByReference retrieves a booking by its customer-facing reference.
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	booking, err := h.bookingService.GetBookingByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondBookingError(c, err, "GetBookingByReference")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdateBooking changes special requests under optimistic concurrency.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	var req services.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	booking, err := h.bookingService.UpdateBooking(c.Request.Context(), id, middleware.CurrentActor(c), req)
	if err != nil {
		respondBookingError(c, err, "UpdateBooking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ConfirmBooking moves a pending booking to confirmed.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		respondBookingError(c, err, "ConfirmBooking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// RejectBooking declines a pending booking.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	_ = c.ShouldBindJSON(&req) // reason is optional
	booking, err := h.bookingService.RejectBooking(c.Request.Context(), id, middleware.CurrentActor(c), req.Reason)
	if err != nil {
		respondBookingError(c, err, "RejectBooking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a booking on behalf of staff.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	_ = c.ShouldBindJSON(&req)
	booking, err := h.bookingService.CancelBooking(c.Request.Context(), id, middleware.CurrentActor(c), req.Reason)
	if err != nil {
		respondBookingError(c, err, "CancelBooking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CompleteBooking marks a confirmed booking as completed.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	booking, err := h.bookingService.CompleteBooking(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		respondBookingError(c, err, "CompleteBooking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

func bookingIDParam(c *gin.Context) (int64, bool) {
	id, err := utils.StrToInt64(c.Param("id"))
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid booking ID format", c.Param("id")))
		return 0, false
	}
	return id, true
}

// respondBookingError maps booking service errors to API errors.
func respondBookingError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, services.ErrBookingNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Booking not found.", err.Error()))
	case errors.Is(err, services.ErrTableNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Table not found.", err.Error()))
	case errors.Is(err, services.ErrBookingValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid booking data.", err.Error()))
	case errors.Is(err, services.ErrTableNoLongerAvailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeTableNoLongerAvailable, "The table is no longer available for this time.", err.Error()))
	case errors.Is(err, services.ErrReferenceUnavailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "The booking could not be saved right now, please retry.", err.Error()))
	case errors.Is(err, services.ErrBookingVersionConflict), errors.Is(err, services.ErrBookingNotPending):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeVersionConflict, "The booking was already handled by someone else.", err.Error()))
	case errors.Is(err, services.ErrInvalidStatusTransition), errors.Is(err, services.ErrCancellationWindowClosed):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnprocessableEntity, utils.ErrCodeInvalidTransition, "This status change is not allowed.", err.Error()))
	case errors.Is(err, services.ErrPermissionDenied):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You may not manage this booking.", err.Error()))
	default:
		utils.LogError(err, op+": unexpected error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to process booking.", "Internal error"))
	}
}
