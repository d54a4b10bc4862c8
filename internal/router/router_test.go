package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/handlers"
)

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Setup(engine, Handlers{
		Auth:       handlers.NewAuthHandler(nil),
		Booking:    handlers.NewBookingHandler(nil),
		Restaurant: handlers.NewRestaurantHandler(nil, nil, nil),
		Holiday:    handlers.NewHolidayHandler(nil),
		Pricing:    handlers.NewPricingHandler(nil),
		Setting:    handlers.NewSettingHandler(nil),
	})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/api/v1/bookings", http.StatusUnauthorized},
		{http.MethodPatch, "/api/v1/bookings/1/confirm", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/restaurants/1/insights", http.StatusUnauthorized},
		{http.MethodPut, "/api/v1/settings/pricing.base_price", http.StatusUnauthorized},
		{http.MethodDelete, "/api/v1/holidays/cache", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/auth/register", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/restaurants/abc/available-tables", http.StatusBadRequest},
		{http.MethodPatch, "/api/v1/bookings/abc", http.StatusUnauthorized},
		{http.MethodPost, "/webhook/line", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
