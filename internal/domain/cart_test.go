package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCart_AddProduct_Merges(t *testing.T) {
	c := NewCart(time.Now())
	p1, p2 := primitive.NewObjectID(), primitive.NewObjectID()

	c.AddProduct(p1)
	c.AddProduct(p1)
	c.AddProduct(p2)

	require.Len(t, c.Products, 2)
	assert.Equal(t, CartItem{Product: p1, Quantity: 2}, c.Products[0])
	assert.Equal(t, CartItem{Product: p2, Quantity: 1}, c.Products[1])
}

func TestCart_DecrementProduct(t *testing.T) {
	c := NewCart(time.Now())
	p := primitive.NewObjectID()
	c.Products = []CartItem{{Product: p, Quantity: 2}}

	assert.True(t, c.DecrementProduct(p))
	assert.Equal(t, 1, c.Products[0].Quantity)

	assert.True(t, c.DecrementProduct(p))
	assert.Empty(t, c.Products)

	assert.False(t, c.DecrementProduct(p))
}

func TestCart_RemoveProduct(t *testing.T) {
	c := NewCart(time.Now())
	p1, p2 := primitive.NewObjectID(), primitive.NewObjectID()
	c.Products = []CartItem{{Product: p1, Quantity: 7}, {Product: p2, Quantity: 1}}

	assert.True(t, c.RemoveProduct(p1))
	assert.Equal(t, []CartItem{{Product: p2, Quantity: 1}}, c.Products)
	assert.False(t, c.RemoveProduct(p1))
}

func TestCart_SetQuantity(t *testing.T) {
	c := NewCart(time.Now())
	p := primitive.NewObjectID()

	assert.False(t, c.SetQuantity(p, 3))

	c.Products = []CartItem{{Product: p, Quantity: 1}}
	assert.True(t, c.SetQuantity(p, 9))
	assert.Equal(t, 9, c.Products[0].Quantity)
}

func TestResolve_DropsDanglingReferences(t *testing.T) {
	kept := Product{ID: primitive.NewObjectID(), Title: "Mug", Price: 4.5}
	gone := primitive.NewObjectID()
	c := &Cart{
		ID: primitive.NewObjectID(),
		Products: []CartItem{
			{Product: gone, Quantity: 3},
			{Product: kept.ID, Quantity: 2},
		},
	}

	resolved, dropped := Resolve(c, []Product{kept})

	assert.Equal(t, 1, dropped)
	require.Len(t, resolved.Products, 1)
	assert.Equal(t, kept, resolved.Products[0].Product)
	assert.Equal(t, 2, resolved.Products[0].Quantity)
	assert.Equal(t, c.ID, resolved.ID)
}

func TestResolvedCart_Totals(t *testing.T) {
	c := &ResolvedCart{Products: []ResolvedItem{
		{Product: Product{Price: 19.99}, Quantity: 3},
		{Product: Product{Price: 0.1}, Quantity: 2},
	}}

	assert.Equal(t, "60.17", c.TotalAmount().StringFixed(2))
	assert.Equal(t, 5, c.ItemCount())
}

func TestNewProductPage(t *testing.T) {
	page := NewProductPage(nil, 25, 2, 10)

	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasPrevPage)
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.PrevPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 1, *page.PrevPage)
	assert.Equal(t, 3, *page.NextPage)

	last := NewProductPage(nil, 25, 3, 10)
	assert.False(t, last.HasNextPage)
	assert.Nil(t, last.NextPage)

	empty := NewProductPage(nil, 0, 1, 10)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasPrevPage)
	assert.False(t, empty.HasNextPage)
}
