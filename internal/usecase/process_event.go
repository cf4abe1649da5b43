package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/logging"
	"github.com/google/uuid"
)

// Event types delivered by the payment provider. Only the completed
// type materializes an order; everything else is acknowledged and
// dropped so the provider does not retry events we don't care about.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

const idemScopeWebhook = "webhook"

// PaymentEvent is the provider's envelope. The transport-level event id
// is not a reliable dedupe key across redeliveries; the payment
// identifier inside the session object is.
type PaymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID              string            `json:"id"`
	PaymentIntent   string            `json:"payment_intent"`
	CustomerDetails *customerDetails  `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

type customerDetails struct {
	Email   string           `json:"email"`
	Address *customerAddress `json:"address"`
}

type customerAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type ProcessResult struct {
	EventType string
	// Handled is false when the event type is acknowledged without action.
	Handled bool
	// Replayed is true when the payment was already materialized and this
	// delivery became a no-op.
	Replayed bool
	OrderID  string
}

// ProcessPaymentEvent routes a verified webhook payload. For a
// completed checkout session it materializes the order exactly once,
// then decrements stock and clears the cart; redeliveries of the same
// payment are returned as replays that at most finish side-effect
// steps an earlier delivery left pending.
type ProcessPaymentEvent struct {
	orders  OrderRepo
	catalog ProductCatalog
	carts   CartStore
	idem    IdempotencyStore
	cache   OrderCache
	events  EventPublisher
}

func NewProcessPaymentEvent(orders OrderRepo, catalog ProductCatalog, carts CartStore, idem IdempotencyStore, cache OrderCache, events EventPublisher) *ProcessPaymentEvent {
	return &ProcessPaymentEvent{orders: orders, catalog: catalog, carts: carts, idem: idem, cache: cache, events: events}
}

// Execute takes the raw verified body, not a re-encoded structure: the
// caller has already checked the signature over these exact bytes.
func (uc *ProcessPaymentEvent) Execute(ctx context.Context, rawBody []byte) (ProcessResult, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return ProcessResult{}, fmt.Errorf("%w: decode event: %v", ErrDataIntegrity, err)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		return uc.materialize(ctx, ev)
	default:
		// Includes checkout.session.expired and anything the provider adds
		// later. Acknowledge so the delivery is not retried.
		return ProcessResult{EventType: ev.Type}, nil
	}
}

func (uc *ProcessPaymentEvent) materialize(ctx context.Context, ev PaymentEvent) (ProcessResult, error) {
	res := ProcessResult{EventType: ev.Type}
	log := logging.FromCtx(ctx)

	var sess checkoutSessionObject
	if err := json.Unmarshal(ev.Data.Object, &sess); err != nil {
		return res, fmt.Errorf("%w: decode session object: %v", ErrDataIntegrity, err)
	}
	if sess.PaymentIntent == "" {
		return res, fmt.Errorf("%w: completed session %q has no payment intent", ErrDataIntegrity, sess.ID)
	}

	userID, lines, metaTotal, err := parseSessionMetadata(sess.Metadata)
	if err != nil {
		log.Error("webhook metadata rejected", "event_id", ev.ID, "session_id", sess.ID, "error", err)
		return res, err
	}

	// Fast path: a payment only lands here after every side-effect step
	// went durable, so a hit is a pure no-op. Authoritative dedupe stays
	// with the unique index on payment_intent_id; this only skips the
	// catalog reads on obvious redeliveries.
	if orderID, ok, _ := uc.idem.Recall(ctx, idemScopeWebhook, sess.PaymentIntent); ok {
		res.Handled, res.Replayed, res.OrderID = true, true, orderID
		return res, nil
	}

	order, err := uc.buildOrder(ctx, sess, userID, lines, metaTotal)
	if err != nil {
		return res, err
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			existing, gerr := uc.orders.GetByPaymentIntentID(ctx, sess.PaymentIntent)
			if gerr != nil {
				return res, fmt.Errorf("load existing order for %s: %w", sess.PaymentIntent, gerr)
			}
			// A previous delivery may have failed partway through the side
			// effects. Finish whatever its ledger says is still pending
			// before acknowledging the replay.
			if err := uc.runSideEffects(ctx, existing); err != nil {
				return res, fmt.Errorf("resume side effects for %s: %w", sess.PaymentIntent, err)
			}
			_ = uc.idem.Remember(ctx, idemScopeWebhook, sess.PaymentIntent, existing.ID)
			res.Handled, res.Replayed, res.OrderID = true, true, existing.ID
			return res, nil
		}
		return res, fmt.Errorf("persist order: %w", err)
	}

	// The order is durable from here on. A side-effect failure is
	// surfaced so the provider redelivers; the replay path above then
	// resumes from the ledger instead of losing the step.
	if err := uc.runSideEffects(ctx, order); err != nil {
		return res, fmt.Errorf("side effects for %s: %w", sess.PaymentIntent, err)
	}

	_ = uc.idem.Remember(ctx, idemScopeWebhook, sess.PaymentIntent, order.ID)
	_ = uc.cache.SetStatus(ctx, order.ID, string(order.Status))
	if err := uc.events.PublishPlaced(ctx, OrderPlacedMsg{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		CustomerEmail: order.CustomerEmail,
	}); err != nil {
		log.Error("publish order.placed failed", "order_id", order.ID, "error", err)
	}

	log.Info("order materialized",
		"order_id", order.ID,
		"user_id", order.UserID,
		"payment_intent_id", order.PaymentIntentID,
		"total_amount", order.TotalAmount,
	)
	res.Handled, res.OrderID = true, order.ID
	return res, nil
}

// buildOrder re-resolves every line from the catalog. The snapshot in
// metadata carries ids and quantities only; prices are never trusted
// from the client or from the stale snapshot.
func (uc *ProcessPaymentEvent) buildOrder(ctx context.Context, sess checkoutSessionObject, userID string, lines []CartLine, metaTotal string) (*domain.Order, error) {
	log := logging.FromCtx(ctx)

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := uc.catalog.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var totalCents int64
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			// Fail the whole order rather than under-fulfill a payment the
			// customer already completed. The provider will retry; the
			// mismatch needs manual reconciliation.
			log.Error("product vanished between checkout and webhook",
				"session_id", sess.ID, "product_id", line.ProductID)
			return nil, fmt.Errorf("%w: product %q no longer in catalog", ErrDataIntegrity, line.ProductID)
		}
		unit := minorUnits(p.Price)
		totalCents += unit * line.Quantity
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			UnitPrice: majorUnits(unit),
			Name:      p.Name,
			Image:     p.Image,
		})
	}

	if metaTotal != "" && metaTotal != formatMajorUnits(totalCents) {
		// Price drift between session creation and materialization. The
		// re-resolved total wins; the session total is advisory.
		log.Warn("session total differs from re-resolved total",
			"session_id", sess.ID, "session_total", metaTotal, "resolved_total", formatMajorUnits(totalCents))
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		PaymentIntentID: sess.PaymentIntent,
		Items:           items,
		TotalAmount:     majorUnits(totalCents),
		Status:          domain.StatusProcessing,
		PaymentStatus:   domain.PaymentPaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cd := sess.CustomerDetails; cd != nil {
		order.CustomerEmail = cd.Email
		if a := cd.Address; a != nil {
			order.ShippingAddress = domain.Address{
				Street:     a.Line1,
				City:       a.City,
				State:      a.State,
				Country:    a.Country,
				PostalCode: a.PostalCode,
			}
		}
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	return order, nil
}

// runSideEffects executes the post-insert steps (stock decrement per
// line item, cart clear), skipping any the order's ledger already
// records as done and recording each one as it lands. Every failure is
// returned: the delivery is then answered with a server error, the
// provider redelivers, and the replay path resumes from the ledger.
// Oversell (negative remaining) is allowed.
func (uc *ProcessPaymentEvent) runSideEffects(ctx context.Context, order *domain.Order) error {
	log := logging.FromCtx(ctx)

	adjusted := make(map[string]struct{}, len(order.AdjustedProductIDs))
	for _, id := range order.AdjustedProductIDs {
		adjusted[id] = struct{}{}
	}
	for _, it := range order.Items {
		if _, done := adjusted[it.ProductID]; done {
			continue
		}
		remaining, err := uc.catalog.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", it.ProductID, err)
		}
		if remaining < 0 {
			log.Warn("product oversold",
				"order_id", order.ID, "product_id", it.ProductID, "remaining", remaining)
		}
		if err := uc.orders.MarkLineAdjusted(ctx, order.ID, it.ProductID); err != nil {
			return fmt.Errorf("record stock adjustment for %s: %w", it.ProductID, err)
		}
		order.AdjustedProductIDs = append(order.AdjustedProductIDs, it.ProductID)
	}

	if !order.CartCleared {
		// A missing user document means there is no cart left to clear.
		if err := uc.carts.Clear(ctx, order.UserID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("clear cart for %s: %w", order.UserID, err)
		}
		if err := uc.orders.MarkCartCleared(ctx, order.ID); err != nil {
			return fmt.Errorf("record cart clear: %w", err)
		}
		order.CartCleared = true
	}
	return nil
}

func parseSessionMetadata(meta map[string]string) (userID string, lines []CartLine, totalAmount string, err error) {
	if len(meta) == 0 {
		return "", nil, "", fmt.Errorf("%w: session has no metadata", ErrDataIntegrity)
	}
	// Distinguish "no provenance" from "a schema we don't speak": both are
	// integrity failures, but the log trail should say which.
	switch v := meta[metaKeySchemaVersion]; v {
	case metadataSchemaVersion:
	case "":
		return "", nil, "", fmt.Errorf("%w: metadata schema version missing", ErrDataIntegrity)
	default:
		return "", nil, "", fmt.Errorf("%w: unsupported metadata schema version %q", ErrDataIntegrity, v)
	}

	userID = meta[metaKeyUserID]
	if userID == "" {
		return "", nil, "", fmt.Errorf("%w: metadata missing user id", ErrDataIntegrity)
	}
	raw := meta[metaKeyCart]
	if raw == "" {
		return "", nil, "", fmt.Errorf("%w: metadata missing cart snapshot", ErrDataIntegrity)
	}
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return "", nil, "", fmt.Errorf("%w: malformed cart snapshot: %v", ErrDataIntegrity, err)
	}
	if len(lines) == 0 {
		return "", nil, "", fmt.Errorf("%w: empty cart snapshot", ErrDataIntegrity)
	}
	return userID, lines, meta[metaKeyTotalAmount], nil
}
