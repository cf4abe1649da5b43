package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/EsmailKhaleel/storefront-api/internal/security"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider webhook payloads are small; anything bigger is not ours.
const maxWebhookBody = 256 * 1024

const signatureHeader = "Stripe-Signature"

var (
	paymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Inbound payment provider events by type and outcome",
		},
		[]string{"type", "outcome"},
	)
	ordersMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_materialized_total",
		Help: "Orders created from completed payment events",
	})
)

type WebhookHandler struct {
	verifier *security.WebhookVerifier
	process  *usecase.ProcessPaymentEvent
}

func NewWebhookHandler(verifier *security.WebhookVerifier, process *usecase.ProcessPaymentEvent) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, process: process}
}

// Handle receives provider deliveries. It must see the exact transport
// bytes: the route is registered without any body-reading middleware,
// and the body goes to the verifier before anything parses it.
//
// Responses drive the provider's retry loop: 200 only for real success
// or an intentional no-op (replay, ignored type); 400 for a signature
// failure that retrying cannot fix; 500 for anything else so the
// delivery comes back.
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(raw) > maxWebhookBody {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload too large"})
		return
	}

	if err := h.verifier.Verify(raw, c.GetHeader(signatureHeader)); err != nil {
		paymentEvents.WithLabelValues("unverified", "rejected").Inc()
		logging.From(c).Error("webhook signature rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	// Bounded: the provider times out and retries on its own schedule; a
	// stuck catalog read here only compounds duplicate deliveries.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res, err := h.process.Execute(ctx, raw)
	if err != nil {
		outcome := "error"
		if errors.Is(err, usecase.ErrDataIntegrity) {
			outcome = "integrity_error"
		}
		paymentEvents.WithLabelValues(eventLabel(res.EventType), outcome).Inc()
		logging.From(c).Error("webhook processing failed", "event_type", res.EventType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	switch {
	case !res.Handled:
		paymentEvents.WithLabelValues(eventLabel(res.EventType), "ignored").Inc()
	case res.Replayed:
		paymentEvents.WithLabelValues(eventLabel(res.EventType), "replayed").Inc()
	default:
		paymentEvents.WithLabelValues(eventLabel(res.EventType), "processed").Inc()
		ordersMaterialized.Inc()
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func eventLabel(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}
