package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/line"
	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/pkg/utils"
)

// EventParser turns a signed webhook request into chat events.
type EventParser interface {
	ParseEvents(r *http.Request) ([]messaging.InboundEvent, error)
}

// EventHandler processes one chat event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev messaging.InboundEvent)
}

const webhookEventTimeout = 20 * time.Second

// WebhookHandler receives chat channel webhooks.
type WebhookHandler struct {
	parser  EventParser
	handler EventHandler
	base    context.Context
	wg      sync.WaitGroup
}

// NewWebhookHandler creates a WebhookHandler. Events run detached from the request on base,
// which should be cancelled only after Wait returns during shutdown.
func NewWebhookHandler(base context.Context, parser EventParser, handler EventHandler) *WebhookHandler {
	return &WebhookHandler{parser: parser, handler: handler, base: base}
}

// Receive acknowledges the webhook immediately and handles its events in the background.
func (h *WebhookHandler) Receive(c *gin.Context) {
	events, err := h.parser.ParseEvents(c.Request)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			utils.LogWarn("webhook with invalid signature rejected", map[string]interface{}{"client_ip": c.ClientIP()})
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid signature.", ""))
			return
		}
		utils.LogError(err, "Receive: failed to parse webhook")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Malformed webhook.", ""))
		return
	}

	for _, ev := range events {
		h.wg.Add(1)
		go func(ev messaging.InboundEvent) {
			defer h.wg.Done()
			ctx, cancel := context.WithTimeout(h.base, webhookEventTimeout)
			defer cancel()
			h.handler.HandleEvent(ctx, ev)
		}(ev)
	}
	c.JSON(http.StatusOK, gin.H{"received": len(events)})
}

// Wait blocks until in-flight events are handled.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
