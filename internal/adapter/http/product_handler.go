package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// ProductHandler is read-only. Catalog authoring is someone else's
// CRUD; stock changes only happen as an order side effect.
type ProductHandler struct {
	catalog usecase.ProductCatalog
}

func NewProductHandler(catalog usecase.ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

func (h *ProductHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	products, err := h.catalog.List(ctx, c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.catalog.GetByID(ctx, c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}
