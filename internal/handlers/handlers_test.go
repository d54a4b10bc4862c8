package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/line"
	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPricing struct{}

func (stubPricing) CalculatePrice(_ context.Context, req models.PriceQuoteRequest) models.PricingResult {
	if req.TableID == "" {
		return models.PricingResult{Success: false, BasePrice: 100, FinalPrice: 100, Currency: "THB", Message: "invalid request"}
	}
	return models.PricingResult{Success: true, BasePrice: 100, FinalPrice: 161, Currency: "THB", Confidence: 0.7}
}

func (stubPricing) Params() services.PricingParams { return services.DefaultPricingParams() }

func (stubPricing) SetParams(services.PricingParams) {}

func (stubPricing) ClearQuoteCache() {}

func (stubPricing) StartSweeper(context.Context, time.Duration) {}

func TestQuoteAlwaysAnswers200(t *testing.T) {
	r := gin.New()
	r.POST("/quote", NewPricingHandler(stubPricing{}).Quote)

	tests := []struct {
		name        string
		body        string
		wantSuccess bool
		wantPrice   float64
	}{
		{"valid", `{"restaurantId":1,"tableId":"T4","date":"2025-06-14","time":"19:00","guestCount":2,"tableCapacity":4}`, true, 161},
		{"missing fields", `{"restaurantId":1}`, false, 100},
		{"malformed json", `{"restaurantId":`, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(tt.body)))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["success"] != tt.wantSuccess || body["finalPrice"] != tt.wantPrice {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestRespondBookingError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{services.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: guest count 6 exceeds capacity 4", services.ErrBookingValidation), http.StatusBadRequest, "VALIDATION_FAILED"},
		{services.ErrTableNoLongerAvailable, http.StatusConflict, "TABLE_NO_LONGER_AVAILABLE"},
		{services.ErrBookingNotPending, http.StatusConflict, "VERSION_CONFLICT"},
		{services.ErrReferenceUnavailable, http.StatusConflict, "CONFLICT"},
		{services.ErrBookingVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
		{services.ErrCancellationWindowClosed, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION"},
		{services.ErrPermissionDenied, http.StatusForbidden, "FORBIDDEN"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondBookingError(c, tt.err, "test")

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), `"code":"`+tt.wantErr+`"`) {
				t.Errorf("body = %s, want code %s", w.Body.String(), tt.wantErr)
			}
			if tt.wantCode == http.StatusInternalServerError && strings.Contains(w.Body.String(), "connection refused") {
				t.Error("internal error details leaked")
			}
		})
	}
}

type stubParser struct {
	events []messaging.InboundEvent
	err    error
}

func (p stubParser) ParseEvents(*http.Request) ([]messaging.InboundEvent, error) {
	return p.events, p.err
}

type countingHandler struct{ n int32 }

func (h *countingHandler) HandleEvent(context.Context, messaging.InboundEvent) {
	atomic.AddInt32(&h.n, 1)
}

func TestWebhookReceive(t *testing.T) {
	events := []messaging.InboundEvent{{ID: "a", Type: messaging.EventText}, {ID: "b", Type: messaging.EventFollow}}
	handler := &countingHandler{}
	wh := NewWebhookHandler(context.Background(), stubParser{events: events}, handler)
	r := gin.New()
	r.POST("/webhook/line", wh.Receive)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader("{}")))
	wh.Wait()

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := atomic.LoadInt32(&handler.n); got != 2 {
		t.Errorf("handled = %d, want 2", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler := &countingHandler{}
	wh := NewWebhookHandler(context.Background(), stubParser{err: line.ErrInvalidSignature}, handler)
	r := gin.New()
	r.POST("/webhook/line", wh.Receive)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader("{}")))
	wh.Wait()

	if w.Code != http.StatusBadRequest || handler.n != 0 {
		t.Errorf("status = %d, handled = %d; want 400 and nothing handled", w.Code, handler.n)
	}
}
