package payment

import (
	"context"
	"fmt"

	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeProvider creates hosted checkout sessions. The session is a
// provider-side resource; the store keeps only the redirect URL it
// returns and the metadata it will echo back on the webhook.
type StripeProvider struct {
	api        *client.API
	successURL string
	cancelURL  string
	currency   string
}

func NewStripeProvider(apiKey, successURL, cancelURL, currency string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	if currency == "" {
		currency = "usd"
	}
	return &StripeProvider{
		api:        api,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   currency,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req usecase.ProviderSessionRequest) (usecase.ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(p.successURL),
		CancelURL:          stripe.String(p.cancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	for _, li := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			productData.Description = stripe.String(li.Description)
		}
		if len(li.Images) > 0 {
			productData.Images = stripe.StringSlice(li.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return usecase.ProviderSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return usecase.ProviderSession{ID: sess.ID, URL: sess.URL}, nil
}

var _ usecase.PaymentProvider = (*StripeProvider)(nil)
