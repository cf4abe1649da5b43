package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Oversell is allowed (stock may go negative) but worth watching.
var oversoldTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "inventory_oversold_total",
	Help: "Stock decrements that drove a product's stock below zero",
})

type MongoProductRepo struct {
	col *mongo.Collection
}

func NewMongoProductRepo(db *mongo.Database) *MongoProductRepo {
	return &MongoProductRepo{col: db.Collection(productsCollection)}
}

func (r *MongoProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usecase.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (r *MongoProductRepo) List(ctx context.Context, category string) ([]domain.Product, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var out []domain.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

func (r *MongoProductRepo) FindManyByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find products by ids: %w", err)
	}
	var out []domain.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

// DecrementStock is an atomic $inc on the server, never a
// read-modify-write in application memory: two concurrent orders for
// the last unit both land, and the counter reflects both.
func (r *MongoProductRepo) DecrementStock(ctx context.Context, productID string, qty int64) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p domain.Product
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": productID},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, usecase.ErrNotFound
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	if p.Stock < 0 {
		oversoldTotal.Inc()
	}
	return p.Stock, nil
}

var _ usecase.ProductCatalog = (*MongoProductRepo)(nil)
