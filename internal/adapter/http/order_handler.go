package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/EsmailKhaleel/storefront-api/internal/adapter/http/middleware"
	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orders usecase.OrderRepo
	cache  usecase.OrderCache
}

func NewOrderHandler(orders usecase.OrderRepo, cache usecase.OrderCache) *OrderHandler {
	return &OrderHandler{orders: orders, cache: cache}
}

// ListMine returns the caller's orders, newest first.
func (h *OrderHandler) ListMine(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Latest serves the post-checkout success page, which polls for the
// order while the webhook may still be in flight. 404 simply means
// "not materialized yet" to that client.
func (h *OrderHandler) Latest(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.orders.LatestByUser(ctx, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "no orders found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.orders.GetByID(ctx, id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "order not found"})
		return
	}
	// Another user's order is indistinguishable from a missing one.
	if order.UserID != c.GetString(middleware.CtxUserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetStatus answers the success page's status poll from the cache when
// it can; the repo is only hit on a miss, and the cache is backfilled.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if status, ok, err := h.cache.GetStatus(ctx, id); err == nil && ok {
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
		return
	}

	order, err := h.orders.GetByID(ctx, id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "order not found"})
		return
	}
	if order.UserID != c.GetString(middleware.CtxUserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	_ = h.cache.SetStatus(ctx, id, string(order.Status))
	c.JSON(http.StatusOK, gin.H{"id": id, "status": order.Status})
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus is the back-office transition (requires orders:write).
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	to := domain.Status(req.Status)
	if !to.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.orders.UpdateStatus(ctx, id, to); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "order not found"})
		return
	}
	_ = h.cache.SetStatus(ctx, id, string(to))

	c.JSON(http.StatusOK, gin.H{"id": id, "status": to})
}
