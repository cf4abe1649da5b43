package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/EsmailKhaleel/storefront-api/internal/entity"
	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderRepo struct {
	col *mongo.Collection
}

func NewMongoOrderRepo(db *mongo.Database) *MongoOrderRepo {
	return &MongoOrderRepo{col: db.Collection(ordersCollection)}
}

func (r *MongoOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.col.InsertOne(ctx, o)
	if err != nil {
		// Duplicate payment_intent_id is the expected idempotent-replay
		// path; the caller switches to the existing order.
		if mongo.IsDuplicateKeyError(err) {
			return usecase.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *MongoOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *MongoOrderRepo) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"payment_intent_id": paymentIntentID}, nil)
}

func (r *MongoOrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var out []domain.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

func (r *MongoOrderRepo) LatestByUser(ctx context.Context, userID string) (*domain.Order, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"user_id": userID}, opts)
}

func (r *MongoOrderRepo) UpdateStatus(ctx context.Context, id string, to domain.Status) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": to, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if res.MatchedCount == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

// UpdateStatusIf is a guarded transition; matched == false means the
// order was missing or not in the expected from-status.
func (r *MongoOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("guarded status update: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// MarkLineAdjusted and MarkCartCleared write the side-effect ledger on
// the order document. $addToSet keeps the ledger idempotent under the
// retry race where two deliveries adjust the same line.
func (r *MongoOrderRepo) MarkLineAdjusted(ctx context.Context, orderID, productID string) error {
	_, err := r.col.UpdateByID(ctx, orderID, bson.M{
		"$addToSet": bson.M{"adjusted_product_ids": productID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("record stock adjustment: %w", err)
	}
	return nil
}

func (r *MongoOrderRepo) MarkCartCleared(ctx context.Context, orderID string) error {
	_, err := r.col.UpdateByID(ctx, orderID, bson.M{
		"$set": bson.M{"cart_cleared": true, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("record cart clear: %w", err)
	}
	return nil
}

func (r *MongoOrderRepo) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Order, error) {
	var o domain.Order
	var err error
	if opts != nil {
		err = r.col.FindOne(ctx, filter, opts).Decode(&o)
	} else {
		err = r.col.FindOne(ctx, filter).Decode(&o)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usecase.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

var _ usecase.OrderRepo = (*MongoOrderRepo)(nil)
