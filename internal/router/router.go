package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/handlers"
	"restaurant_booking_backend/internal/middleware"
)

// Handlers are the HTTP handlers mounted by Setup. Webhook may be nil when no chat channel is configured.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Booking    *handlers.BookingHandler
	Restaurant *handlers.RestaurantHandler
	Holiday    *handlers.HolidayHandler
	Pricing    *handlers.PricingHandler
	Setting    *handlers.SettingHandler
	Webhook    *handlers.WebhookHandler
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, h Handlers) {
	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if h.Webhook != nil {
		engine.POST("/webhook/line", h.Webhook.Receive)
	}

	apiV1 := engine.Group("/api/v1")

	// Public routes: guests book tables and get quotes without an account.
	SetupPublicAuthRoutes(apiV1.Group("/auth"), h.Auth)
	SetupPublicBookingRoutes(apiV1, h.Booking)
	SetupPublicRestaurantRoutes(apiV1, h.Restaurant)
	SetupPricingRoutes(apiV1, h.Pricing)
	SetupPublicHolidayRoutes(apiV1, h.Holiday)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), h.Auth)
		SetupBookingRoutes(authenticated, h.Booking)
		SetupInsightRoutes(authenticated, h.Restaurant)
		SetupHolidayAdminRoutes(authenticated, h.Holiday)
		SetupSettingsRoutes(authenticated, h.Setting, h.Pricing)
	}
}

func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.LoginUser)
}

func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/logout", authHandler.LogoutUser)
	group.GET("/me", authHandler.GetCurrentUser)
	group.POST("/register", middleware.RoleAuthMiddleware(roleAdmin), authHandler.RegisterUser)
}
