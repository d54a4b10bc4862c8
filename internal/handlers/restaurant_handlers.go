package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"restaurant_booking_backend/internal/middleware"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// RestaurantHandler serves restaurant details, availability and demand insights.
type RestaurantHandler struct {
	restaurantService services.RestaurantService
	bookingService    services.BookingService
	analyzer          services.DemandAnalyzer
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(rs services.RestaurantService, bs services.BookingService, da services.DemandAnalyzer) *RestaurantHandler {
	return &RestaurantHandler{restaurantService: rs, bookingService: bs, analyzer: da}
}

// GetRestaurant returns the restaurant with its active tables.
func (h *RestaurantHandler) GetRestaurant(c *gin.Context) {
	id, ok := restaurantIDParam(c)
	if !ok {
		return
	}
	details, err := h.restaurantService.GetRestaurantDetails(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRestaurantNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Restaurant not found.", err.Error()))
			return
		}
		utils.LogError(err, "GetRestaurant: Error from restaurantService")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to load restaurant.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, details)
}

// CheckAvailability reports whether a table is free for a time range.
func (h *RestaurantHandler) CheckAvailability(c *gin.Context) {
	id, ok := restaurantIDParam(c)
	if !ok {
		return
	}
	table, date, start, end := c.Query("table"), c.Query("date"), c.Query("start"), c.Query("end")
	if utils.IsEmpty(table) || utils.IsEmpty(date) || utils.IsEmpty(start) {
		utils.RespondValidationFailed(c, "table, date and start are required")
		return
	}

	available, err := h.bookingService.IsAvailable(c.Request.Context(), id, table, date, start, end)
	if err != nil {
		respondBookingError(c, err, "CheckAvailability")
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_id": table, "date": date, "start_time": start, "available": available})
}

// AvailableTables lists tables that fit the party and are free at the requested time.
func (h *RestaurantHandler) AvailableTables(c *gin.Context) {
	id, ok := restaurantIDParam(c)
	if !ok {
		return
	}
	guests, err := strconv.Atoi(c.DefaultQuery("guests", "1"))
	if err != nil || guests < 1 {
		utils.RespondValidationFailed(c, "guests must be a positive number")
		return
	}

	tables, err := h.bookingService.AvailableTables(c.Request.Context(), id, c.Query("date"), c.Query("time"), guests)
	if err != nil {
		respondBookingError(c, err, "AvailableTables")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tables, "total": len(tables)})
}

// GetInsights returns the historical and current demand picture behind a price quote.
func (h *RestaurantHandler) GetInsights(c *gin.Context) {
	id, ok := restaurantIDParam(c)
	if !ok {
		return
	}
	if actor := middleware.CurrentActor(c); actor.RestaurantID != nil && *actor.RestaurantID != id {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You may not view this restaurant.", ""))
		return
	}
	date := c.Query("date")
	if _, err := utils.ParseDate(date, nil); err != nil {
		utils.RespondValidationFailed(c, "date must be YYYY-MM-DD")
		return
	}
	minute, err := utils.ParseClock(c.DefaultQuery("time", "19:00"))
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var insights *services.HistoricalInsights
	var demand *services.DemandSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		insights, err = h.analyzer.Analyze(gctx, id, date, minute)
		return err
	})
	g.Go(func() error {
		var err error
		demand, err = h.analyzer.CurrentDemand(gctx, id, date, minute)
		return err
	})
	if err := g.Wait(); err != nil {
		utils.LogError(err, "GetInsights: Error from demand analyzer", map[string]interface{}{"restaurant_id": id})
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to analyze demand.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant_id": id,
		"date":          date,
		"time":          utils.FormatClock(minute),
		"historical":    insights,
		"demand":        demand,
	})
}

func restaurantIDParam(c *gin.Context) (int64, bool) {
	id, err := utils.StrToInt64(c.Param("id"))
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid restaurant ID format", c.Param("id")))
		return 0, false
	}
	return id, true
}
