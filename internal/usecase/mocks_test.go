package usecase

import (
	"context"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
)

type stockChange struct {
	ProductID string
	Qty       int64
}

type mockCatalog struct {
	Products map[string]domain.Product
	FindErr  error
	DecErr   error
	DecErrOn string // restrict DecErr to one product id; empty fails all

	Decrements []stockChange
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.Products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalog) List(_ context.Context, _ string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range m.Products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) FindManyByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []domain.Product
	for _, id := range ids {
		if p, ok := m.Products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalog) DecrementStock(_ context.Context, productID string, qty int64) (int64, error) {
	if m.DecErr != nil && (m.DecErrOn == "" || m.DecErrOn == productID) {
		return 0, m.DecErr
	}
	p, ok := m.Products[productID]
	if !ok {
		return 0, ErrNotFound
	}
	p.Stock -= qty
	m.Products[productID] = p
	m.Decrements = append(m.Decrements, stockChange{ProductID: productID, Qty: qty})
	return p.Stock, nil
}

type mockOrders struct {
	CreateErr error
	GetErr    error

	Created []*domain.Order
	ByPI    map[string]*domain.Order
}

func newMockOrders() *mockOrders {
	return &mockOrders{ByPI: map[string]*domain.Order{}}
}

func (m *mockOrders) Create(_ context.Context, o *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, exists := m.ByPI[o.PaymentIntentID]; exists {
		return ErrDuplicateOrder
	}
	m.Created = append(m.Created, o)
	m.ByPI[o.PaymentIntentID] = o
	return nil
}

func (m *mockOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	for _, o := range m.Created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrders) GetByPaymentIntentID(_ context.Context, pi string) (*domain.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if o, ok := m.ByPI[pi]; ok {
		return o, nil
	}
	return nil, ErrNotFound
}

func (m *mockOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.Created {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrders) LatestByUser(_ context.Context, userID string) (*domain.Order, error) {
	for i := len(m.Created) - 1; i >= 0; i-- {
		if m.Created[i].UserID == userID {
			return m.Created[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrders) UpdateStatus(_ context.Context, id string, to domain.Status) error {
	o, err := m.GetByID(context.Background(), id)
	if err != nil {
		return err
	}
	o.Status = to
	return nil
}

func (m *mockOrders) MarkLineAdjusted(_ context.Context, orderID, productID string) error {
	o, err := m.GetByID(context.Background(), orderID)
	if err != nil {
		return err
	}
	o.AdjustedProductIDs = append(o.AdjustedProductIDs, productID)
	return nil
}

func (m *mockOrders) MarkCartCleared(_ context.Context, orderID string) error {
	o, err := m.GetByID(context.Background(), orderID)
	if err != nil {
		return err
	}
	o.CartCleared = true
	return nil
}

func (m *mockOrders) UpdateStatusIf(_ context.Context, id string, from, to domain.Status) (bool, error) {
	o, err := m.GetByID(context.Background(), id)
	if err != nil || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type mockCarts struct {
	Items    []domain.CartItem
	GetErr   error
	ClearErr error

	Clears int
}

func (m *mockCarts) Get(_ context.Context, _ string) ([]domain.CartItem, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Items, nil
}

func (m *mockCarts) Clear(_ context.Context, _ string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.Clears++
	return nil
}

type mockIdem struct {
	m map[string]string
}

func newMockIdem() *mockIdem { return &mockIdem{m: map[string]string{}} }

func (s *mockIdem) Remember(_ context.Context, scope, key, value string) error {
	s.m[scope+":"+key] = value
	return nil
}

func (s *mockIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := s.m[scope+":"+key]
	return v, ok, nil
}

// forgetfulIdem never remembers anything, forcing replays down the
// database unique-index path.
type forgetfulIdem struct{}

func (forgetfulIdem) Remember(context.Context, string, string, string) error { return nil }
func (forgetfulIdem) Recall(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

type mockCache struct {
	Statuses map[string]string
}

func newMockCache() *mockCache { return &mockCache{Statuses: map[string]string{}} }

func (c *mockCache) SetStatus(_ context.Context, orderID, status string) error {
	c.Statuses[orderID] = status
	return nil
}

func (c *mockCache) GetStatus(_ context.Context, orderID string) (string, bool, error) {
	v, ok := c.Statuses[orderID]
	return v, ok, nil
}

type mockPublisher struct {
	Err       error
	Published []OrderPlacedMsg
}

func (p *mockPublisher) PublishPlaced(_ context.Context, msg OrderPlacedMsg) error {
	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, msg)
	return nil
}

type mockProvider struct {
	Err     error
	Session ProviderSession

	Captured *ProviderSessionRequest
}

func (p *mockProvider) CreateCheckoutSession(_ context.Context, req ProviderSessionRequest) (ProviderSession, error) {
	p.Captured = &req
	if p.Err != nil {
		return ProviderSession{}, p.Err
	}
	return p.Session, nil
}
