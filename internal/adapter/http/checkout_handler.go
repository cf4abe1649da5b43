package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/EsmailKhaleel/storefront-api/internal/adapter/http/middleware"
	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkoutSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "checkout_sessions_created_total",
	Help: "Provider checkout sessions created",
})

type CheckoutHandler struct {
	create *usecase.CreateCheckoutSession
}

func NewCheckoutHandler(create *usecase.CreateCheckoutSession) *CheckoutHandler {
	return &CheckoutHandler{create: create}
}

type checkoutResp struct {
	URL string `json:"url"`
}

// CreateSession builds a provider checkout session from the caller's
// persisted cart and returns the redirect URL. Nothing internal is
// mutated here; the order appears only after the provider's webhook.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	email := c.GetString(middleware.CtxEmail)

	// The provider call is a network hop; bound it so a stuck upstream
	// does not pin the request.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	out, err := h.create.Execute(ctx, usecase.CheckoutInput{UserID: userID, Email: email})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrValidation), errors.Is(err, usecase.ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrUpstream):
			logging.From(c).Error("provider session creation failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, retry later"})
		default:
			logging.From(c).Error("checkout session failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	checkoutSessionsCreated.Inc()
	c.JSON(http.StatusOK, checkoutResp{URL: out.URL})
}
