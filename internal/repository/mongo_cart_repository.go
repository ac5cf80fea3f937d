package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	cartsCollection    = "carts"
	productsCollection = "products"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection(cartsCollection),
	}
}

func (m *mongoCartRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = cart.CreatedAt
	if cart.Products == nil {
		cart.Products = []domain.CartItem{}
	}

	res, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		cart.ID = id
	}
	return nil
}

func (m *mongoCartRepository) GetCart(ctx context.Context, id primitive.ObjectID) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (m *mongoCartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	if cart.Products == nil {
		cart.Products = []domain.CartItem{}
	}

	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

type populatedCart struct {
	domain.Cart `bson:",inline"`
	Resolved    []domain.Product `bson:"resolved"`
}

func (m *mongoCartRepository) GetPopulatedCart(ctx context.Context, id primitive.ObjectID) (*domain.Cart, []domain.Product, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         productsCollection,
			"localField":   "products.product",
			"foreignField": "_id",
			"as":           "resolved",
		}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to populate cart: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to read populated cart: %w", err)
		}
		return nil, nil, ErrCartNotFound
	}

	var doc populatedCart
	if err := cursor.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode populated cart: %w", err)
	}
	cart := doc.Cart
	return &cart, doc.Resolved, nil
}
