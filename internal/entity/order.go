package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var ErrInvalidOrder = errors.New("invalid order")

// OrderItem is a price snapshot taken at materialization time.
// UnitPrice is frozen there; later catalog price changes do not touch it.
type OrderItem struct {
	ProductID string  `bson:"product_id" json:"productId"`
	Quantity  int64   `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
	Name      string  `bson:"name" json:"name"`
	Image     string  `bson:"image,omitempty" json:"image,omitempty"`
}

type Address struct {
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postalCode,omitempty"`
}

type Order struct {
	ID     string `bson:"_id" json:"id"`
	UserID string `bson:"user_id" json:"userId"`
	// PaymentIntentID is the provider-issued payment identifier. It is the
	// idempotency key: a unique index on it makes a second materialization
	// attempt a duplicate-key no-op instead of a second order.
	PaymentIntentID string        `bson:"payment_intent_id" json:"paymentIntentId"`
	Items           []OrderItem   `bson:"items" json:"items"`
	TotalAmount     float64       `bson:"total_amount" json:"totalAmount"`
	Status          Status        `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus `bson:"payment_status" json:"paymentStatus"`
	ShippingAddress Address       `bson:"shipping_address,omitempty" json:"shippingAddress"`
	CustomerEmail   string        `bson:"customer_email" json:"customerEmail"`
	// Side-effect ledger. Each post-insert step (stock decrement per line,
	// cart clear) is recorded once it is durable, so a retried delivery
	// resumes exactly the steps that are still pending instead of redoing
	// or dropping them.
	AdjustedProductIDs []string  `bson:"adjusted_product_ids,omitempty" json:"-"`
	CartCleared        bool      `bson:"cart_cleared" json:"-"`
	CreatedAt          time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updatedAt"`
}

func (o *Order) Validate() error {
	if o.UserID == "" || o.PaymentIntentID == "" {
		return ErrInvalidOrder
	}
	if len(o.Items) == 0 || o.TotalAmount <= 0 {
		return ErrInvalidOrder
	}
	return nil
}
