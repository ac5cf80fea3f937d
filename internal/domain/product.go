package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Code        string             `bson:"code" json:"code"`
	Price       float64            `bson:"price" json:"price"`
	Status      bool               `bson:"status" json:"status"`
	Stock       int                `bson:"stock" json:"stock"`
	Category    string             `bson:"category" json:"category"`
	Thumbnails  []string           `bson:"thumbnails" json:"thumbnails"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ProductPatch holds the fields of a partial product update. Nil fields are
// left untouched.
type ProductPatch struct {
	Title       *string
	Description *string
	Code        *string
	Price       *float64
	Status      *bool
	Stock       *int
	Category    *string
	Thumbnails  []string
}

// ProductQuery describes one page of the catalog listing.
type ProductQuery struct {
	Category string
	// PriceSort is 1 for ascending, -1 for descending and 0 for store order.
	PriceSort int
	Page      int
	Limit     int
}

func (q ProductQuery) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

// ProductPage is a listing result together with its pagination metadata.
type ProductPage struct {
	Products    []Product
	TotalDocs   int64
	Limit       int
	Page        int
	TotalPages  int
	HasPrevPage bool
	HasNextPage bool
	PrevPage    *int
	NextPage    *int
}

func NewProductPage(products []Product, total int64, page, limit int) ProductPage {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	p := ProductPage{
		Products:    products,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasPrevPage: page > 1,
		HasNextPage: page < totalPages,
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
