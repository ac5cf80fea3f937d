package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cart is the stored form of a cart: items only carry product references.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Products  []CartItem         `bson:"products" json:"products"`
	Finalized bool               `bson:"finalized" json:"finalized"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Quantity int                `bson:"quantity" json:"quantity"`
}

// ResolvedCart is a cart whose item references were replaced by the current
// product records. It is what every caller of the cart service receives.
type ResolvedCart struct {
	ID        primitive.ObjectID `json:"id"`
	Products  []ResolvedItem     `json:"products"`
	Finalized bool               `json:"finalized"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type ResolvedItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func NewCart(now time.Time) *Cart {
	return &Cart{
		Products:  []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IndexOf returns the position of the item referencing productID, or -1.
func (c *Cart) IndexOf(productID primitive.ObjectID) int {
	for i, item := range c.Products {
		if item.Product == productID {
			return i
		}
	}
	return -1
}

// AddProduct merges into an existing item or appends a new one with quantity 1.
func (c *Cart) AddProduct(productID primitive.ObjectID) {
	if i := c.IndexOf(productID); i != -1 {
		c.Products[i].Quantity++
		return
	}
	c.Products = append(c.Products, CartItem{Product: productID, Quantity: 1})
}

// DecrementProduct lowers the quantity by one and drops the item when it would
// reach zero. It reports false when the product is not in the cart.
func (c *Cart) DecrementProduct(productID primitive.ObjectID) bool {
	i := c.IndexOf(productID)
	if i == -1 {
		return false
	}
	if c.Products[i].Quantity > 1 {
		c.Products[i].Quantity--
		return true
	}
	c.Products = append(c.Products[:i], c.Products[i+1:]...)
	return true
}

func (c *Cart) RemoveProduct(productID primitive.ObjectID) bool {
	kept := make([]CartItem, 0, len(c.Products))
	for _, item := range c.Products {
		if item.Product != productID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(c.Products) {
		return false
	}
	c.Products = kept
	return true
}

func (c *Cart) SetQuantity(productID primitive.ObjectID, quantity int) bool {
	i := c.IndexOf(productID)
	if i == -1 {
		return false
	}
	c.Products[i].Quantity = quantity
	return true
}

// Resolve joins the cart with the given product records. Items whose product
// is not among them are dropped; the number of dropped items is returned.
func Resolve(c *Cart, products []Product) (*ResolvedCart, int) {
	byID := make(map[primitive.ObjectID]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	resolved := &ResolvedCart{
		ID:        c.ID,
		Products:  make([]ResolvedItem, 0, len(c.Products)),
		Finalized: c.Finalized,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	dropped := 0
	for _, item := range c.Products {
		p, ok := byID[item.Product]
		if !ok {
			dropped++
			continue
		}
		resolved.Products = append(resolved.Products, ResolvedItem{Product: p, Quantity: item.Quantity})
	}
	return resolved, dropped
}

func (i ResolvedItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Product.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalAmount sums price*quantity over all items.
func (c *ResolvedCart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Products {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c *ResolvedCart) ItemCount() int {
	var count int
	for _, item := range c.Products {
		count += item.Quantity
	}
	return count
}
