package domain

import "time"

type Product struct {
	ID          string   `bson:"_id" json:"id"`
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	Category    string   `bson:"category,omitempty" json:"category,omitempty"`
	Price       float64  `bson:"price" json:"price"`
	Image       string   `bson:"image,omitempty" json:"image,omitempty"`
	Images      []string `bson:"images,omitempty" json:"images,omitempty"`
	// Stock is mutated only by the inventory side effect of a completed
	// order, via an atomic decrement. It may go negative (oversold).
	Stock     int64     `bson:"stock" json:"stock"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
