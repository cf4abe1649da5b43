package usecase

import (
	"context"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
)

type OrderRepo interface {
	// Create inserts the order. A payment_intent_id collision returns
	// ErrDuplicateOrder; callers treat that as the idempotent-replay path.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	LatestByUser(ctx context.Context, userID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, to domain.Status) error
	UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error)
	// MarkLineAdjusted and MarkCartCleared write the side-effect ledger:
	// each records that one post-insert step is durable, so a retried
	// delivery resumes only the steps still pending.
	MarkLineAdjusted(ctx context.Context, orderID, productID string) error
	MarkCartCleared(ctx context.Context, orderID string) error
}

type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, category string) ([]domain.Product, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	// DecrementStock applies an atomic conditional decrement and returns
	// the remaining stock, which may be negative.
	DecrementStock(ctx context.Context, productID string, qty int64) (int64, error)
}

type CartStore interface {
	Get(ctx context.Context, userID string) ([]domain.CartItem, error)
	Clear(ctx context.Context, userID string) error
}

type IdempotencyStore interface {
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

// ProviderLineItem mirrors what the payment provider needs to render a
// checkout page: display data plus the unit amount in minor units.
type ProviderLineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  int64
	Quantity    int64
}

type ProviderSessionRequest struct {
	LineItems     []ProviderLineItem
	CustomerEmail string
	Metadata      map[string]string
}

type ProviderSession struct {
	ID  string
	URL string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req ProviderSessionRequest) (ProviderSession, error)
}

type EventPublisher interface {
	PublishPlaced(ctx context.Context, msg OrderPlacedMsg) error
}
