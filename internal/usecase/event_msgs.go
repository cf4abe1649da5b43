package usecase

// Published to RabbitMQ after a new order is materialized.
type OrderPlacedMsg struct {
	OrderID       string  `json:"orderId"`
	UserID        string  `json:"userId"`
	TotalAmount   float64 `json:"totalAmount"`
	CustomerEmail string  `json:"customerEmail"`
}

// Sent by the fulfillment system on Kafka.
type ShipmentStatusChangedMsg struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"` // e.g. "SHIPPED", "DELIVERED", "CANCELLED"
}
