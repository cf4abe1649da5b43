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
)

// MongoCartStore reads and clears the cart embedded on the user
// document. It never modifies anything else about the user.
type MongoCartStore struct {
	col *mongo.Collection
}

func NewMongoCartStore(db *mongo.Database) *MongoCartStore {
	return &MongoCartStore{col: db.Collection(usersCollection)}
}

func (s *MongoCartStore) Get(ctx context.Context, userID string) ([]domain.CartItem, error) {
	var doc struct {
		Cart []domain.CartItem `bson:"cart"`
	}
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usecase.ErrNotFound
		}
		return nil, fmt.Errorf("read cart: %w", err)
	}
	return doc.Cart, nil
}

func (s *MongoCartStore) Clear(ctx context.Context, userID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"cart": []domain.CartItem{}, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

var _ usecase.CartStore = (*MongoCartStore)(nil)
