package usecase

import (
	"context"
	"encoding/json"
	"testing"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	orders  *mockOrders
	catalog *mockCatalog
	carts   *mockCarts
	idem    *mockIdem
	cache   *mockCache
	events  *mockPublisher
	uc      *ProcessPaymentEvent
}

func newPipeline(catalog *mockCatalog, carts *mockCarts) *pipeline {
	p := &pipeline{
		orders:  newMockOrders(),
		catalog: catalog,
		carts:   carts,
		idem:    newMockIdem(),
		cache:   newMockCache(),
		events:  &mockPublisher{},
	}
	p.uc = NewProcessPaymentEvent(p.orders, p.catalog, p.carts, p.idem, p.cache, p.events)
	return p
}

func completedEventBody(t *testing.T, paymentIntent, userID string, lines []CartLine, totalAmount string) []byte {
	t.Helper()
	cartJSON, err := json.Marshal(lines)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": EventCheckoutCompleted,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"payment_intent": paymentIntent,
				"customer_details": map[string]any{
					"email": "u1@example.com",
					"address": map[string]any{
						"line1":       "1 Main St",
						"city":        "Cairo",
						"country":     "EG",
						"postal_code": "11511",
					},
				},
				"metadata": map[string]string{
					"userId":        userID,
					"cart":          string(cartJSON),
					"totalAmount":   totalAmount,
					"schemaVersion": "1",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestProcessEvent_MaterializesOrder(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10.00, Image: "lamp.jpg", Stock: 5})
	p := newPipeline(catalog, &mockCarts{})
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	res, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Replayed)

	require.Len(t, p.orders.Created, 1)
	order := p.orders.Created[0]
	assert.Equal(t, res.OrderID, order.ID)
	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, "pi_1", order.PaymentIntentID)
	assert.Equal(t, domain.StatusProcessing, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, 20.0, order.TotalAmount)
	assert.Equal(t, "u1@example.com", order.CustomerEmail)
	assert.Equal(t, "1 Main St", order.ShippingAddress.Street)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 10.0, order.Items[0].UnitPrice)
	assert.Equal(t, "Desk Lamp", order.Items[0].Name)

	assert.Equal(t, []stockChange{{ProductID: "p1", Qty: 2}}, catalog.Decrements)
	assert.Equal(t, int64(3), catalog.Products["p1"].Stock)
	assert.Equal(t, 1, p.carts.Clears)
	require.Len(t, p.events.Published, 1)
	assert.Equal(t, order.ID, p.events.Published[0].OrderID)
	assert.Equal(t, string(domain.StatusProcessing), p.cache.Statuses[order.ID])
}

func TestProcessEvent_DuplicateDelivery(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5})
	p := newPipeline(catalog, &mockCarts{})
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	first, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)
	second, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)

	assert.Len(t, p.orders.Created, 1, "exactly one order")
	assert.Len(t, catalog.Decrements, 1, "stock decremented once")
	assert.Equal(t, 1, p.carts.Clears, "cart cleared once")
	assert.Len(t, p.events.Published, 1)
}

// Same redelivery, but with a cold cache: dedupe must come from the
// unique constraint on the payment identifier, not from the fast path.
func TestProcessEvent_ReplayWithoutCache(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5})
	orders := newMockOrders()
	carts := &mockCarts{}
	events := &mockPublisher{}
	uc := NewProcessPaymentEvent(orders, catalog, carts, forgetfulIdem{}, newMockCache(), events)
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	first, err := uc.Execute(context.Background(), body)
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), body)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, orders.Created, 1)
	assert.Len(t, catalog.Decrements, 1)
	assert.Equal(t, 1, carts.Clears)
	assert.Len(t, events.Published, 1)
}

func TestProcessEvent_IgnoresOtherTypes(t *testing.T) {
	for _, typ := range []string{"customer.created", EventCheckoutExpired, "payment_intent.payment_failed"} {
		catalog := catalogWith(domain.Product{ID: "p1", Price: 10, Stock: 5})
		p := newPipeline(catalog, &mockCarts{})

		body, err := json.Marshal(map[string]any{"id": "evt_x", "type": typ, "data": map[string]any{"object": map[string]any{}}})
		require.NoError(t, err)

		res, err := p.uc.Execute(context.Background(), body)
		require.NoError(t, err, typ)
		assert.False(t, res.Handled, typ)
		assert.Empty(t, p.orders.Created, typ)
		assert.Empty(t, catalog.Decrements, typ)
		assert.Zero(t, p.carts.Clears, typ)
	}
}

func TestProcessEvent_MalformedBody(t *testing.T) {
	p := newPipeline(catalogWith(), &mockCarts{})
	_, err := p.uc.Execute(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestProcessEvent_MetadataIntegrity(t *testing.T) {
	cases := map[string]map[string]string{
		"no metadata":        nil,
		"missing user":       {"cart": `[{"productId":"p1","quantity":1}]`, "schemaVersion": "1"},
		"missing cart":       {"userId": "u1", "schemaVersion": "1"},
		"missing version":    {"userId": "u1", "cart": `[{"productId":"p1","quantity":1}]`},
		"unknown version":    {"userId": "u1", "cart": `[{"productId":"p1","quantity":1}]`, "schemaVersion": "9"},
		"malformed snapshot": {"userId": "u1", "cart": "not-json", "schemaVersion": "1"},
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			p := newPipeline(catalogWith(domain.Product{ID: "p1", Price: 10, Stock: 5}), &mockCarts{})
			body, err := json.Marshal(map[string]any{
				"id":   "evt_1",
				"type": EventCheckoutCompleted,
				"data": map[string]any{"object": map[string]any{
					"id":             "cs_1",
					"payment_intent": "pi_1",
					"metadata":       meta,
				}},
			})
			require.NoError(t, err)

			_, err = p.uc.Execute(context.Background(), body)
			assert.ErrorIs(t, err, ErrDataIntegrity)
			assert.Empty(t, p.orders.Created)
		})
	}
}

func TestProcessEvent_MissingPaymentIntent(t *testing.T) {
	p := newPipeline(catalogWith(), &mockCarts{})
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": EventCheckoutCompleted,
		"data": map[string]any{"object": map[string]any{"id": "cs_1"}},
	})
	require.NoError(t, err)

	_, err = p.uc.Execute(context.Background(), body)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

// The product disappeared between checkout and webhook delivery. The
// whole order fails rather than under-fulfilling a completed payment.
func TestProcessEvent_VanishedProduct(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5})
	p := newPipeline(catalog, &mockCarts{})
	body := completedEventBody(t, "pi_1", "u1", []CartLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "gone", Quantity: 1},
	}, "30")

	_, err := p.uc.Execute(context.Background(), body)

	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Empty(t, p.orders.Created)
	assert.Empty(t, catalog.Decrements)
	assert.Zero(t, p.carts.Clears)
}

// Catalog price changed after session creation: the order records the
// price re-resolved at materialization, then freezes it.
func TestProcessEvent_PriceReresolvedAtMaterialization(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 12.50, Stock: 5})
	p := newPipeline(catalog, &mockCarts{})
	// session was created when the price was still 10.00
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	res, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)

	order, err := p.orders.GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 12.50, order.Items[0].UnitPrice)
	assert.Equal(t, 25.0, order.TotalAmount)
}

// A transient decrement failure must not be swallowed: the delivery is
// answered with an error so the provider redelivers, and the redelivery
// finishes the decrement instead of replaying into a no-op.
func TestProcessEvent_DecrementFailureRecoveredOnRedelivery(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5})
	catalog.DecErr = assert.AnError
	p := newPipeline(catalog, &mockCarts{})
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	_, err := p.uc.Execute(context.Background(), body)
	require.Error(t, err)
	require.Len(t, p.orders.Created, 1, "order insert is durable before the side effects")
	assert.Empty(t, catalog.Decrements)
	assert.Zero(t, p.carts.Clears)

	catalog.DecErr = nil
	res, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)

	assert.True(t, res.Replayed)
	assert.Len(t, p.orders.Created, 1)
	assert.Equal(t, []stockChange{{ProductID: "p1", Qty: 2}}, catalog.Decrements)
	assert.Equal(t, int64(3), catalog.Products["p1"].Stock)
	assert.Equal(t, 1, p.carts.Clears)
}

// When the first delivery fails partway through a multi-line order, the
// redelivery adjusts only the lines still pending.
func TestProcessEvent_PartialDecrementNotRepeated(t *testing.T) {
	catalog := catalogWith(
		domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5},
		domain.Product{ID: "p2", Name: "Desk Mat", Price: 5, Stock: 5},
	)
	catalog.DecErr, catalog.DecErrOn = assert.AnError, "p2"
	p := newPipeline(catalog, &mockCarts{})
	body := completedEventBody(t, "pi_1", "u1", []CartLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	}, "15")

	_, err := p.uc.Execute(context.Background(), body)
	require.Error(t, err)
	assert.Equal(t, []stockChange{{ProductID: "p1", Qty: 1}}, catalog.Decrements)

	catalog.DecErr = nil
	res, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)

	assert.True(t, res.Replayed)
	assert.Equal(t, []stockChange{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 1},
	}, catalog.Decrements, "each line decremented exactly once across both deliveries")
	assert.Equal(t, int64(4), catalog.Products["p1"].Stock)
	assert.Equal(t, int64(4), catalog.Products["p2"].Stock)
}

func TestProcessEvent_CartClearFailureRecoveredOnRedelivery(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 5})
	carts := &mockCarts{ClearErr: assert.AnError}
	p := newPipeline(catalog, carts)
	body := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 2}}, "20")

	_, err := p.uc.Execute(context.Background(), body)
	require.Error(t, err)
	assert.Len(t, catalog.Decrements, 1)
	assert.Zero(t, carts.Clears)

	carts.ClearErr = nil
	res, err := p.uc.Execute(context.Background(), body)
	require.NoError(t, err)

	assert.True(t, res.Replayed)
	assert.Len(t, catalog.Decrements, 1, "decrement not repeated while retrying the clear")
	assert.Equal(t, 1, carts.Clears)
}

func TestProcessEvent_OversellAllowed(t *testing.T) {
	catalog := catalogWith(domain.Product{ID: "p1", Name: "Desk Lamp", Price: 10, Stock: 1})
	p := newPipeline(catalog, &mockCarts{})

	first := completedEventBody(t, "pi_1", "u1", []CartLine{{ProductID: "p1", Quantity: 1}}, "10")
	second := completedEventBody(t, "pi_2", "u2", []CartLine{{ProductID: "p1", Quantity: 1}}, "10")

	_, err := p.uc.Execute(context.Background(), first)
	require.NoError(t, err)
	_, err = p.uc.Execute(context.Background(), second)
	require.NoError(t, err, "stock exhaustion must not reject an order")

	assert.Len(t, p.orders.Created, 2)
	assert.Equal(t, int64(-1), catalog.Products["p1"].Stock)
}
