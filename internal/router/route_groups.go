package router

import (
	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/handlers"
	"restaurant_booking_backend/internal/middleware"
	"restaurant_booking_backend/internal/models"
)

const (
	roleAdmin = models.RoleAdmin
	roleStaff = models.RoleStaff
)

// SetupPublicBookingRoutes sets up the booking routes open to guests.
func SetupPublicBookingRoutes(apiGroup *gin.RouterGroup, bookingHandler *handlers.BookingHandler) {
	apiGroup.POST("/bookings", bookingHandler.CreateBooking)
	apiGroup.GET("/bookings/reference/:reference", bookingHandler.GetBookingByReference)
}

// SetupBookingRoutes sets up the staff booking routes.
func SetupBookingRoutes(authenticatedGroup *gin.RouterGroup, bookingHandler *handlers.BookingHandler) {
	bookingRoutes := authenticatedGroup.Group("/bookings")
	bookingRoutes.Use(middleware.RoleAuthMiddleware(roleAdmin, roleStaff))
	{
		bookingRoutes.GET("", bookingHandler.GetBookings)
		bookingRoutes.GET("/:id", bookingHandler.GetBookingByID)
		bookingRoutes.PATCH("/:id", bookingHandler.UpdateBooking)
		bookingRoutes.PATCH("/:id/confirm", bookingHandler.ConfirmBooking)
		bookingRoutes.PATCH("/:id/reject", bookingHandler.RejectBooking)
		bookingRoutes.PATCH("/:id/cancel", bookingHandler.CancelBooking)
		bookingRoutes.PATCH("/:id/complete", bookingHandler.CompleteBooking)
	}
}

// SetupPublicRestaurantRoutes sets up restaurant lookups used by the booking UI.
func SetupPublicRestaurantRoutes(apiGroup *gin.RouterGroup, restaurantHandler *handlers.RestaurantHandler) {
	restaurantRoutes := apiGroup.Group("/restaurants")
	{
		restaurantRoutes.GET("/:id", restaurantHandler.GetRestaurant)
		restaurantRoutes.GET("/:id/availability", restaurantHandler.CheckAvailability)
		restaurantRoutes.GET("/:id/available-tables", restaurantHandler.AvailableTables)
	}
}

// SetupInsightRoutes sets up the demand insight routes.
func SetupInsightRoutes(authenticatedGroup *gin.RouterGroup, restaurantHandler *handlers.RestaurantHandler) {
	authenticatedGroup.GET("/restaurants/:id/insights",
		middleware.RoleAuthMiddleware(roleAdmin, roleStaff), restaurantHandler.GetInsights)
}

// SetupPricingRoutes sets up the quote route.
func SetupPricingRoutes(apiGroup *gin.RouterGroup, pricingHandler *handlers.PricingHandler) {
	apiGroup.POST("/pricing/quote", pricingHandler.Quote)
}

// SetupPublicHolidayRoutes sets up the holiday calendar lookups.
func SetupPublicHolidayRoutes(apiGroup *gin.RouterGroup, holidayHandler *handlers.HolidayHandler) {
	apiGroup.GET("/holidays", holidayHandler.ListHolidays)
	apiGroup.GET("/holidays/:date", holidayHandler.GetHoliday)
}

// SetupHolidayAdminRoutes sets up holiday maintenance.
func SetupHolidayAdminRoutes(authenticatedGroup *gin.RouterGroup, holidayHandler *handlers.HolidayHandler) {
	holidayRoutes := authenticatedGroup.Group("/holidays")
	holidayRoutes.Use(middleware.RoleAuthMiddleware(roleAdmin))
	{
		holidayRoutes.POST("", holidayHandler.UpsertHoliday)
		holidayRoutes.DELETE("/cache", holidayHandler.ClearCache)
		holidayRoutes.DELETE("/:date", holidayHandler.DeleteHoliday)
	}
}

// SetupSettingsRoutes sets up the application settings routes.
func SetupSettingsRoutes(authenticatedGroup *gin.RouterGroup, settingHandler *handlers.SettingHandler, pricingHandler *handlers.PricingHandler) {
	settingsRoutes := authenticatedGroup.Group("/settings")
	settingsRoutes.Use(middleware.RoleAuthMiddleware(roleAdmin))
	{
		settingsRoutes.GET("", settingHandler.GetApplicationSettings)
		settingsRoutes.GET("/pricing", pricingHandler.GetParams)
		settingsRoutes.DELETE("/pricing/cache", pricingHandler.ClearQuoteCache)
		settingsRoutes.GET("/:key", settingHandler.GetApplicationSettingByKey)
		settingsRoutes.PUT("/:key", settingHandler.CreateOrUpdateApplicationSetting)
		settingsRoutes.DELETE("/:key", settingHandler.DeleteApplicationSetting)
	}
}
