package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EsmailKhaleel/storefront-api/internal/adapter/http/middleware"
	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type recordingCache struct {
	statuses map[string]string
	hits     int
}

func (c *recordingCache) SetStatus(_ context.Context, orderID, status string) error {
	c.statuses[orderID] = status
	return nil
}

func (c *recordingCache) GetStatus(_ context.Context, orderID string) (string, bool, error) {
	v, ok := c.statuses[orderID]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

// countingOrders counts repo reads so tests can tell a cache hit from a
// fallback.
type countingOrders struct {
	stubOrders
	gets int
}

func (o *countingOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o.gets++
	return o.stubOrders.GetByID(ctx, id)
}

func newStatusFixture(orders *countingOrders, cache *recordingCache, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewOrderHandler(orders, cache)
	r := gin.New()
	r.GET("/v1/orders/:id/status", func(c *gin.Context) {
		c.Set(middleware.CtxUserID, userID)
		h.GetStatus(c)
	})
	return r
}

func getStatus(r *gin.Engine, orderID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/orders/"+orderID+"/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrderStatus_ServedFromCache(t *testing.T) {
	orders := &countingOrders{}
	cache := &recordingCache{statuses: map[string]string{"o1": "shipped"}}
	r := newStatusFixture(orders, cache, "u1")

	w := getStatus(r, "o1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"o1","status":"shipped"}`, w.Body.String())
	assert.Equal(t, 1, cache.hits)
	assert.Zero(t, orders.gets, "cache hit must not touch the repo")
}

func TestOrderStatus_FallbackBackfillsCache(t *testing.T) {
	orders := &countingOrders{}
	orders.created = append(orders.created, &domain.Order{
		ID: "o1", UserID: "u1", Status: domain.StatusProcessing,
	})
	cache := &recordingCache{statuses: map[string]string{}}
	r := newStatusFixture(orders, cache, "u1")

	w := getStatus(r, "o1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"o1","status":"processing"}`, w.Body.String())
	assert.Equal(t, 1, orders.gets)
	assert.Equal(t, "processing", cache.statuses["o1"], "miss backfills the cache")
}

func TestOrderStatus_UnknownOrder(t *testing.T) {
	r := newStatusFixture(&countingOrders{}, &recordingCache{statuses: map[string]string{}}, "u1")
	assert.Equal(t, http.StatusNotFound, getStatus(r, "nope").Code)
}

func TestOrderStatus_OtherUsersOrderHidden(t *testing.T) {
	orders := &countingOrders{}
	orders.created = append(orders.created, &domain.Order{
		ID: "o1", UserID: "u2", Status: domain.StatusProcessing,
	})
	cache := &recordingCache{statuses: map[string]string{}}
	r := newStatusFixture(orders, cache, "u1")

	assert.Equal(t, http.StatusNotFound, getStatus(r, "o1").Code)
	assert.Empty(t, cache.statuses, "no backfill for a hidden order")
}
