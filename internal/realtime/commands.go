package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/notify"
	"github.com/fjod/cartsync/internal/service"
	"github.com/fjod/cartsync/pkg/logger"
)

const (
	CommandJoinCart          = "joinCart"
	CommandCreateCart        = "createCart"
	CommandAddToCart         = "addToCart"
	CommandDecrementFromCart = "decrementFromCart"
	CommandFinalizeCart      = "finalizeCart"
	CommandAddProduct        = "addProduct"
	CommandUpdateProduct     = "updateProduct"
	CommandDeleteProduct     = "deleteProduct"
)

type CartOps interface {
	CreateCart(ctx context.Context) (*domain.ResolvedCart, error)
	GetCart(ctx context.Context, cartID string) (*domain.ResolvedCart, error)
	AddItem(ctx context.Context, cartID, productID string) (*domain.ResolvedCart, error)
	DecrementItem(ctx context.Context, cartID, productID string) (*domain.ResolvedCart, error)
	FinalizeCart(ctx context.Context, cartID string) (*domain.ResolvedCart, error)
}

type ProductOps interface {
	Create(ctx context.Context, in service.NewProduct) (*domain.Product, error)
	Update(ctx context.Context, productID string, in service.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, productID string) error
	Snapshot(ctx context.Context) ([]domain.Product, error)
}

// Notifier publishes change events after a successful command.
type Notifier interface {
	CartUpdated(ctx context.Context, cart *domain.ResolvedCart)
	CartFinalized(ctx context.Context, cart *domain.ResolvedCart)
	ProductsUpdated(ctx context.Context, products []domain.Product)
}

type cartRef struct {
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
}

// Commands executes socket commands against the services. Replies meant for
// the caller only (cartCreated, error) go straight to the client; state
// changes go through the notifier so every instance sees them.
type Commands struct {
	hub      *Hub
	carts    CartOps
	products ProductOps
	notifier Notifier
	timeout  time.Duration
}

func NewCommands(hub *Hub, carts CartOps, products ProductOps, notifier Notifier) *Commands {
	return &Commands{
		hub:      hub,
		carts:    carts,
		products: products,
		notifier: notifier,
		timeout:  10 * time.Second,
	}
}

// Welcome sends the current product list to a newly connected client.
func (h *Commands) Welcome(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	products, err := h.products.Snapshot(ctx)
	if err != nil {
		c.SendError("failed to load products: " + domain.ErrorMessage(err))
		return
	}
	c.Send(Message{Type: notify.EventProductsUpdated, Data: products})
}

func (h *Commands) Dispatch(ctx context.Context, c *Client, in Inbound) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var err error
	switch in.Type {
	case CommandJoinCart:
		err = h.joinCart(ctx, c, in.Data)
	case CommandCreateCart:
		err = h.createCart(ctx, c)
	case CommandAddToCart:
		err = h.addToCart(ctx, c, in.Data)
	case CommandDecrementFromCart:
		err = h.decrementFromCart(ctx, in.Data)
	case CommandFinalizeCart:
		err = h.finalizeCart(ctx, in.Data)
	case CommandAddProduct:
		err = h.addProduct(ctx, in.Data)
	case CommandUpdateProduct:
		err = h.updateProduct(ctx, in.Data)
	case CommandDeleteProduct:
		err = h.deleteProduct(ctx, in.Data)
	default:
		c.SendError("unknown command: " + in.Type)
		return
	}

	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("client_id", c.id).Str("command", in.Type).Msg("socket command failed")
		c.SendError(in.Type + ": " + domain.ErrorMessage(err))
	}
}

// joinCart subscribes the client to a cart and sends it the current state.
func (h *Commands) joinCart(ctx context.Context, c *Client, data json.RawMessage) error {
	ref, err := decodeRef(data, false)
	if err != nil {
		return err
	}
	h.hub.Join(c, ref.CartID)

	cart, err := h.carts.GetCart(ctx, ref.CartID)
	if err != nil {
		return err
	}
	c.Send(Message{Type: notify.EventCartUpdated, Data: cart})
	return nil
}

func (h *Commands) createCart(ctx context.Context, c *Client) error {
	cart, err := h.carts.CreateCart(ctx)
	if err != nil {
		return err
	}
	h.hub.Join(c, cart.ID.Hex())
	c.Send(Message{Type: notify.EventCartCreated, Data: cart})
	return nil
}

// addToCart joins the cart's room before mutating so the caller receives the
// resulting cartUpdated.
func (h *Commands) addToCart(ctx context.Context, c *Client, data json.RawMessage) error {
	ref, err := decodeRef(data, true)
	if err != nil {
		return err
	}
	h.hub.Join(c, ref.CartID)

	cart, err := h.carts.AddItem(ctx, ref.CartID, ref.ProductID)
	if err != nil {
		return err
	}
	h.notifier.CartUpdated(ctx, cart)
	return nil
}

func (h *Commands) decrementFromCart(ctx context.Context, data json.RawMessage) error {
	ref, err := decodeRef(data, true)
	if err != nil {
		return err
	}
	cart, err := h.carts.DecrementItem(ctx, ref.CartID, ref.ProductID)
	if err != nil {
		return err
	}
	h.notifier.CartUpdated(ctx, cart)
	return nil
}

func (h *Commands) finalizeCart(ctx context.Context, data json.RawMessage) error {
	ref, err := decodeRef(data, false)
	if err != nil {
		return err
	}
	cart, err := h.carts.FinalizeCart(ctx, ref.CartID)
	if err != nil {
		return err
	}
	h.notifier.CartFinalized(ctx, cart)
	return nil
}

func (h *Commands) addProduct(ctx context.Context, data json.RawMessage) error {
	var in service.NewProduct
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.Errorf(domain.KindInvalidArgument, "socket.add_product", "invalid product payload")
	}
	if _, err := h.products.Create(ctx, in); err != nil {
		return err
	}
	return h.broadcastProducts(ctx)
}

func (h *Commands) updateProduct(ctx context.Context, data json.RawMessage) error {
	var in struct {
		ID string `json:"id"`
		service.ProductUpdate
	}
	if err := json.Unmarshal(data, &in); err != nil || in.ID == "" {
		return domain.Errorf(domain.KindInvalidArgument, "socket.update_product", "a product id is required")
	}
	if _, err := h.products.Update(ctx, in.ID, in.ProductUpdate); err != nil {
		return err
	}
	return h.broadcastProducts(ctx)
}

// deleteProduct accepts either a bare id string or {"id": ...}.
func (h *Commands) deleteProduct(ctx context.Context, data json.RawMessage) error {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(data, &obj)
		id = obj.ID
	}
	if id == "" {
		return domain.Errorf(domain.KindInvalidArgument, "socket.delete_product", "a product id is required")
	}
	if err := h.products.Delete(ctx, id); err != nil {
		return err
	}
	return h.broadcastProducts(ctx)
}

func (h *Commands) broadcastProducts(ctx context.Context) error {
	products, err := h.products.Snapshot(ctx)
	if err != nil {
		return err
	}
	h.notifier.ProductsUpdated(ctx, products)
	return nil
}

func decodeRef(data json.RawMessage, needProduct bool) (cartRef, error) {
	var ref cartRef
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ref); err != nil {
			return ref, domain.Errorf(domain.KindInvalidArgument, "socket.decode", "invalid command payload")
		}
	}
	if ref.CartID == "" || (needProduct && ref.ProductID == "") {
		msg := "cartId is required"
		if needProduct {
			msg = "cartId and productId are required"
		}
		return ref, domain.Errorf(domain.KindInvalidArgument, "socket.decode", "%s", msg)
	}
	return ref, nil
}
