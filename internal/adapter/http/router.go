package http

import (
	"github.com/EsmailKhaleel/storefront-api/internal/adapter/http/middleware"
	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const webhookPath = "/webhook"

type Handlers struct {
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Orders   *OrderHandler
	Products *ProductHandler
}

func NewRouter(h Handlers, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	l := logging.New("http")
	// The logger must not touch the webhook body; verification runs on
	// the raw bytes.
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logging(l, webhookPath))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider-facing: authenticated by signature, not by JWT.
	r.POST(webhookPath, h.Webhook.Handle)

	v1 := r.Group("/v1")
	{
		v1.GET("/products", h.Products.List)
		v1.GET("/products/:id", h.Products.GetByID)

		v1.POST("/checkout/session", authz.RequireUser(), h.Checkout.CreateSession)

		v1.GET("/orders", authz.RequireUser(), h.Orders.ListMine)
		v1.GET("/orders/latest", authz.RequireUser(), h.Orders.Latest)
		v1.GET("/orders/:id", authz.RequireUser(), h.Orders.GetByID)
		v1.GET("/orders/:id/status", authz.RequireUser(), h.Orders.GetStatus)
		v1.PATCH("/orders/:id/status", authz.Require("orders:write"), h.Orders.UpdateStatus)
	}

	return r
}
