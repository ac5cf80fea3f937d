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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{
		collection: db.Collection(productsCollection),
	}
}

func (m *mongoProductRepository) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, int64, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}

	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit))
	if q.PriceSort != 0 {
		opts.SetSort(bson.D{{Key: "price", Value: q.PriceSort}, {Key: "_id", Value: 1}})
	}

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []domain.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, total, nil
}

func (m *mongoProductRepository) GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	var p domain.Product
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (m *mongoProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Thumbnails == nil {
		p.Thumbnails = []string{}
	}

	res, err := m.collection.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

func (m *mongoProductRepository) UpdateProduct(ctx context.Context, id primitive.ObjectID, patch domain.ProductPatch) (*domain.Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Code != nil {
		set["code"] = *patch.Code
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Thumbnails != nil {
		set["thumbnails"] = patch.Thumbnails
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Product
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &updated, nil
}

func (m *mongoProductRepository) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) CodeTaken(ctx context.Context, code string, exclude primitive.ObjectID) (bool, error) {
	filter := bson.M{"code": code}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}

	n, err := m.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check product code: %w", err)
	}
	return n > 0, nil
}
