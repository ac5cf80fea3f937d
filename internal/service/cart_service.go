package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/internal/repository"
	"github.com/fjod/cartsync/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemInput is one element of a bulk replace request. Quantity is kept as a
// float so that non-integer input can be reported as an invalid argument.
type ItemInput struct {
	Product  string  `json:"product"`
	Quantity float64 `json:"quantity"`
}

// CartService owns every cart invariant. Each mutation loads the stored cart,
// checks the finalize lock, applies one change, saves the whole document and
// then performs a separate resolved read. Saves carry no version check, so
// concurrent writers to one cart are last-write-wins.
type CartService struct {
	repo repository.CartRepository
}

func NewCartService(repo repository.CartRepository) *CartService {
	return &CartService{repo: repo}
}

// ParseQuantity accepts only positive whole numbers.
func ParseQuantity(q float64) (int, bool) {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 || q != math.Trunc(q) || q > math.MaxInt32 {
		return 0, false
	}
	return int(q), true
}

func (s *CartService) CreateCart(ctx context.Context) (rc *domain.ResolvedCart, err error) {
	const op = "cart.create"
	defer s.track(ctx, op, time.Now(), "", "", &err)

	cart := domain.NewCart(time.Now().UTC())
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, domain.WrapError(err, domain.KindStoreFailure, op, "failed to create cart")
	}
	logger.Ctx(ctx).Info().Str("cart_id", cart.ID.Hex()).Msg("cart created")

	rc, _ = domain.Resolve(cart, nil)
	return rc, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.get"
	defer s.track(ctx, op, time.Now(), cartID, "", &err)

	cid, err := parseID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}
	return s.resolved(ctx, op, cid)
}

// AddItem increments the quantity of productID or appends it with quantity 1.
// The product is not looked up; a reference to a missing product is dropped
// by the resolved read.
func (s *CartService) AddItem(ctx context.Context, cartID, productID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.add_item"
	defer s.track(ctx, op, time.Now(), cartID, productID, &err)

	cid, pid, err := parseIDs(op, cartID, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, true, func(c *domain.Cart) error {
		c.AddProduct(pid)
		return nil
	})
}

func (s *CartService) DecrementItem(ctx context.Context, cartID, productID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.decrement_item"
	defer s.track(ctx, op, time.Now(), cartID, productID, &err)

	cid, pid, err := parseIDs(op, cartID, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, true, func(c *domain.Cart) error {
		if !c.DecrementProduct(pid) {
			return itemNotFound(op, cartID, productID)
		}
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.remove_item"
	defer s.track(ctx, op, time.Now(), cartID, productID, &err)

	cid, pid, err := parseIDs(op, cartID, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, true, func(c *domain.Cart) error {
		if !c.RemoveProduct(pid) {
			return itemNotFound(op, cartID, productID)
		}
		return nil
	})
}

func (s *CartService) SetItemQuantity(ctx context.Context, cartID, productID string, quantity float64) (rc *domain.ResolvedCart, err error) {
	const op = "cart.set_quantity"
	defer s.track(ctx, op, time.Now(), cartID, productID, &err)

	cid, pid, err := parseIDs(op, cartID, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, true, func(c *domain.Cart) error {
		qty, ok := ParseQuantity(quantity)
		if !ok {
			return domain.Errorf(domain.KindInvalidArgument, op,
				"quantity %v must be a positive integer", quantity)
		}
		if !c.SetQuantity(pid, qty) {
			return itemNotFound(op, cartID, productID)
		}
		return nil
	})
}

// ReplaceItems overwrites the item list with items. Repeated product ids in
// items are kept as separate entries.
func (s *CartService) ReplaceItems(ctx context.Context, cartID string, items []ItemInput) (rc *domain.ResolvedCart, err error) {
	const op = "cart.replace_items"
	defer s.track(ctx, op, time.Now(), cartID, "", &err)

	cid, err := parseID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, true, func(c *domain.Cart) error {
		replaced, err := validateItems(op, items)
		if err != nil {
			return err
		}
		c.Products = replaced
		return nil
	})
}

// ClearCart empties the item list. The saved cart is returned as is since
// there is nothing left to resolve.
func (s *CartService) ClearCart(ctx context.Context, cartID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.clear"
	defer s.track(ctx, op, time.Now(), cartID, "", &err)

	cid, err := parseID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}
	cart, err := s.apply(ctx, op, cid, true, func(c *domain.Cart) error {
		c.Products = []domain.CartItem{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rc, _ = domain.Resolve(cart, nil)
	return rc, nil
}

// FinalizeCart sets the terminal finalized flag. Finalizing twice is not an
// error.
func (s *CartService) FinalizeCart(ctx context.Context, cartID string) (rc *domain.ResolvedCart, err error) {
	const op = "cart.finalize"
	defer s.track(ctx, op, time.Now(), cartID, "", &err)

	cid, err := parseID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, cid, false, func(c *domain.Cart) error {
		if c.Finalized {
			logger.Ctx(ctx).Warn().Str("cart_id", cartID).Msg("cart was already finalized")
		}
		c.Finalized = true
		return nil
	})
}

func (s *CartService) mutate(ctx context.Context, op string, cid primitive.ObjectID, locked bool, fn func(*domain.Cart) error) (*domain.ResolvedCart, error) {
	if _, err := s.apply(ctx, op, cid, locked, fn); err != nil {
		return nil, err
	}
	return s.resolved(ctx, op, cid)
}

// apply runs one read-check-change-save cycle. When locked is set a finalized
// cart is rejected before fn runs.
func (s *CartService) apply(ctx context.Context, op string, cid primitive.ObjectID, locked bool, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, cid)
	if err != nil {
		return nil, storeError(op, cid, err, "failed to load cart")
	}
	if locked && cart.Finalized {
		return nil, domain.Errorf(domain.KindConflict, op,
			"cart %s is finalized and cannot be modified", cid.Hex())
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		return nil, storeError(op, cid, err, "failed to save cart")
	}
	return cart, nil
}

func (s *CartService) resolved(ctx context.Context, op string, cid primitive.ObjectID) (*domain.ResolvedCart, error) {
	cart, products, err := s.repo.GetPopulatedCart(ctx, cid)
	if err != nil {
		return nil, storeError(op, cid, err, "failed to read cart")
	}

	rc, dropped := domain.Resolve(cart, products)
	if dropped > 0 {
		metrics.CartDanglingItemsTotal.Add(float64(dropped))
		logger.Ctx(ctx).Warn().
			Str("cart_id", cid.Hex()).
			Int("dropped", dropped).
			Msg("dropped cart items whose product no longer exists")
	}
	return rc, nil
}

func (s *CartService) track(ctx context.Context, op string, started time.Time, cartID, productID string, errp *error) {
	err := *errp
	result := "ok"
	if err != nil {
		result = domain.KindOf(err).String()
	}
	metrics.ObserveCartOperation(op, result, started)

	if err == nil {
		logger.Ctx(ctx).Debug().Str("op", op).Str("cart_id", cartID).Str("product_id", productID).Msg("cart operation done")
		return
	}

	l := logger.Ctx(ctx)
	event := l.Warn()
	if domain.KindOf(err) == domain.KindStoreFailure {
		event = l.Error()
	}
	event.Err(err).
		Str("op", op).
		Str("kind", result).
		Str("cart_id", cartID).
		Str("product_id", productID).
		Msg("cart operation failed")
}

func validateItems(op string, items []ItemInput) ([]domain.CartItem, error) {
	if items == nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "products must be an array")
	}

	out := make([]domain.CartItem, 0, len(items))
	for i, item := range items {
		if item.Product == "" || item.Quantity == 0 {
			return nil, domain.Errorf(domain.KindInvalidArgument, op,
				"element %d must have a product id and a quantity", i)
		}
		pid, err := primitive.ObjectIDFromHex(item.Product)
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, op,
				"element %d: product id %q is not valid", i, item.Product)
		}
		qty, ok := ParseQuantity(item.Quantity)
		if !ok {
			return nil, domain.Errorf(domain.KindInvalidArgument, op,
				"element %d: quantity for product %s must be a positive integer", i, item.Product)
		}
		out = append(out, domain.CartItem{Product: pid, Quantity: qty})
	}
	return out, nil
}

// parseID rejects malformed ids before the store is touched. An id that cannot
// exist names nothing, so it is reported as not found.
func parseID(op, what, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, domain.Errorf(domain.KindNotFound, op, "%s id %q is not valid", what, raw)
	}
	return id, nil
}

func parseIDs(op, cartID, productID string) (primitive.ObjectID, primitive.ObjectID, error) {
	cid, err := parseID(op, "cart", cartID)
	if err != nil {
		return cid, primitive.NilObjectID, err
	}
	pid, err := parseID(op, "product", productID)
	return cid, pid, err
}

func itemNotFound(op, cartID, productID string) error {
	return domain.Errorf(domain.KindNotFound, op, "product %s not found in cart %s", productID, cartID)
}

func storeError(op string, cid primitive.ObjectID, err error, msg string) error {
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.Errorf(domain.KindNotFound, op, "cart %s not found", cid.Hex())
	}
	return domain.WrapError(err, domain.KindStoreFailure, op, msg)
}
