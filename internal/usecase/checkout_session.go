package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
)

// Metadata keys round-tripped through the provider's opaque session
// metadata. The webhook event carries no other link back to the cart,
// so this blob is the only provenance a completed payment has.
const (
	metaKeyUserID        = "userId"
	metaKeyCart          = "cart"
	metaKeyTotalAmount   = "totalAmount"
	metaKeySchemaVersion = "schemaVersion"

	metadataSchemaVersion = "1"
)

// CartLine is one entry of the cart snapshot serialized into session
// metadata at checkout time.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutInput struct {
	UserID string
	Email  string
}

type CheckoutOutput struct {
	// URL is the provider-hosted redirect the client should visit.
	URL string
}

// CreateCheckoutSession builds a provider checkout session from the
// user's persisted cart. It has no side effects on internal state: no
// order, no stock change. The order only comes into existence when the
// provider's webhook reports the payment as completed.
type CreateCheckoutSession struct {
	catalog  ProductCatalog
	carts    CartStore
	provider PaymentProvider
}

func NewCreateCheckoutSession(catalog ProductCatalog, carts CartStore, provider PaymentProvider) *CreateCheckoutSession {
	return &CreateCheckoutSession{catalog: catalog, carts: carts, provider: provider}
}

func (uc *CreateCheckoutSession) Execute(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	if in.UserID == "" {
		return CheckoutOutput{}, fmt.Errorf("%w: missing user id", ErrValidation)
	}

	cart, err := uc.carts.Get(ctx, in.UserID)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("read cart: %w", err)
	}
	if len(cart) == 0 {
		return CheckoutOutput{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	lines := make([]CartLine, 0, len(cart))
	ids := make([]string, 0, len(cart))
	for _, it := range cart {
		if it.Quantity < 1 {
			return CheckoutOutput{}, fmt.Errorf("%w: quantity %d for product %q", ErrValidation, it.Quantity, it.ProductID)
		}
		lines = append(lines, CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
		ids = append(ids, it.ProductID)
	}

	products, err := uc.catalog.FindManyByIDs(ctx, ids)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("resolve products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var totalCents int64
	items := make([]ProviderLineItem, 0, len(lines))
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			return CheckoutOutput{}, fmt.Errorf("%w: product %q not in catalog", ErrValidation, line.ProductID)
		}
		unit := minorUnits(p.Price)
		totalCents += unit * line.Quantity
		items = append(items, ProviderLineItem{
			Name:        p.Name,
			Description: p.Description,
			Images:      providerImages(p),
			UnitAmount:  unit,
			Quantity:    line.Quantity,
		})
	}

	cartJSON, err := json.Marshal(lines)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("serialize cart snapshot: %w", err)
	}

	sess, err := uc.provider.CreateCheckoutSession(ctx, ProviderSessionRequest{
		LineItems:     items,
		CustomerEmail: in.Email,
		Metadata: map[string]string{
			metaKeyUserID:        in.UserID,
			metaKeyCart:          string(cartJSON),
			metaKeyTotalAmount:   formatMajorUnits(totalCents),
			metaKeySchemaVersion: metadataSchemaVersion,
		},
	})
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return CheckoutOutput{URL: sess.URL}, nil
}

func providerImages(p domain.Product) []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	if p.Image != "" {
		return []string{p.Image}
	}
	return nil
}

// minorUnits converts a catalog price to minor currency units,
// round half up.
func minorUnits(price float64) int64 {
	return int64(math.Floor(price*100 + 0.5))
}

// formatMajorUnits renders cents as a major-unit decimal string
// ("2000" cents -> "20").
func formatMajorUnits(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', -1, 64)
}

func majorUnits(cents int64) float64 {
	return float64(cents) / 100
}
