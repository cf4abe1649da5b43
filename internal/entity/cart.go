package domain

// CartItem lives on the user document. Quantities are validated at
// checkout time, not here; the cart itself is free-form client state.
type CartItem struct {
	ProductID string `bson:"product_id" json:"productId"`
	Quantity  int64  `bson:"quantity" json:"quantity"`
}
