package repository

import (
	"context"
	"testing"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(ctx) })

	require.NoError(t, RunMigrations(db))
	return db
}

func newProduct(code string, price float64, category string) *domain.Product {
	return &domain.Product{
		Title:    "Product " + code,
		Code:     code,
		Price:    price,
		Status:   true,
		Stock:    10,
		Category: category,
	}
}

func TestMongoRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	carts := NewMongoCartRepository(db)
	products := NewMongoProductRepository(db)

	t.Run("get missing cart", func(t *testing.T) {
		cart, err := carts.GetCart(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("save missing cart", func(t *testing.T) {
		err := carts.SaveCart(ctx, &domain.Cart{ID: primitive.NewObjectID()})
		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("populate drops deleted products", func(t *testing.T) {
		p1 := newProduct("POP-1", 10, "food")
		p2 := newProduct("POP-2", 20, "food")
		require.NoError(t, products.CreateProduct(ctx, p1))
		require.NoError(t, products.CreateProduct(ctx, p2))

		cart := &domain.Cart{}
		require.NoError(t, carts.CreateCart(ctx, cart))
		require.False(t, cart.ID.IsZero())

		cart.AddProduct(p1.ID)
		cart.AddProduct(p2.ID)
		cart.AddProduct(p2.ID)
		require.NoError(t, carts.SaveCart(ctx, cart))

		require.NoError(t, products.DeleteProduct(ctx, p1.ID))

		stored, resolved, err := carts.GetPopulatedCart(ctx, cart.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Products, 2)
		require.Len(t, resolved, 1)
		assert.Equal(t, p2.ID, resolved[0].ID)

		rc, dropped := domain.Resolve(stored, resolved)
		assert.Equal(t, 1, dropped)
		require.Len(t, rc.Products, 1)
		assert.Equal(t, 2, rc.Products[0].Quantity)
	})

	t.Run("populate missing cart", func(t *testing.T) {
		_, _, err := carts.GetPopulatedCart(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("duplicate code rejected by index", func(t *testing.T) {
		require.NoError(t, products.CreateProduct(ctx, newProduct("DUP", 1, "misc")))
		err := products.CreateProduct(ctx, newProduct("DUP", 2, "misc"))
		assert.ErrorIs(t, err, ErrDuplicateCode)
	})

	t.Run("code taken excludes self", func(t *testing.T) {
		p := newProduct("SELF", 5, "misc")
		require.NoError(t, products.CreateProduct(ctx, p))

		taken, err := products.CodeTaken(ctx, "SELF", p.ID)
		require.NoError(t, err)
		assert.False(t, taken)

		taken, err = products.CodeTaken(ctx, "SELF", primitive.NilObjectID)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("partial update", func(t *testing.T) {
		p := newProduct("UPD", 5, "misc")
		require.NoError(t, products.CreateProduct(ctx, p))

		price := 7.5
		updated, err := products.UpdateProduct(ctx, p.ID, domain.ProductPatch{Price: &price})
		require.NoError(t, err)
		assert.Equal(t, 7.5, updated.Price)
		assert.Equal(t, "UPD", updated.Code)

		_, err = products.UpdateProduct(ctx, primitive.NewObjectID(), domain.ProductPatch{Price: &price})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("list filters and sorts", func(t *testing.T) {
		require.NoError(t, products.CreateProduct(ctx, newProduct("TOY-1", 30, "toys")))
		require.NoError(t, products.CreateProduct(ctx, newProduct("TOY-2", 10, "toys")))
		require.NoError(t, products.CreateProduct(ctx, newProduct("TOY-3", 20, "toys")))

		list, total, err := products.ListProducts(ctx, domain.ProductQuery{Category: "toys", PriceSort: 1, Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, list, 2)
		assert.Equal(t, 10.0, list[0].Price)
		assert.Equal(t, 20.0, list[1].Price)

		list, _, err = products.ListProducts(ctx, domain.ProductQuery{Category: "toys", PriceSort: -1, Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 10.0, list[0].Price)
	})

	t.Run("delete missing product", func(t *testing.T) {
		assert.ErrorIs(t, products.DeleteProduct(ctx, primitive.NewObjectID()), ErrProductNotFound)
	})
}
