package repository

import (
	"context"
	"errors"

	"github.com/fjod/cartsync/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateCode   = errors.New("product code already exists")
)

// CartRepository stores whole cart documents. Save overwrites the document
// without a version check, so concurrent writers are last-write-wins.
type CartRepository interface {
	CreateCart(ctx context.Context, cart *domain.Cart) error
	GetCart(ctx context.Context, id primitive.ObjectID) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	// GetPopulatedCart returns the cart together with the product records its
	// items reference. Products that no longer exist are simply absent.
	GetPopulatedCart(ctx context.Context, id primitive.ObjectID) (*domain.Cart, []domain.Product, error)
}

type ProductRepository interface {
	ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, int64, error)
	GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, id primitive.ObjectID, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
	// CodeTaken reports whether another product than exclude uses code.
	CodeTaken(ctx context.Context, code string, exclude primitive.ObjectID) (bool, error)
}
