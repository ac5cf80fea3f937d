package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartEngine interface {
	CreateCart(ctx context.Context) (*domain.ResolvedCart, error)
	GetCart(ctx context.Context, cartID string) (*domain.ResolvedCart, error)
	AddItem(ctx context.Context, cartID, productID string) (*domain.ResolvedCart, error)
	DecrementItem(ctx context.Context, cartID, productID string) (*domain.ResolvedCart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*domain.ResolvedCart, error)
	SetItemQuantity(ctx context.Context, cartID, productID string, quantity float64) (*domain.ResolvedCart, error)
	ReplaceItems(ctx context.Context, cartID string, items []service.ItemInput) (*domain.ResolvedCart, error)
	ClearCart(ctx context.Context, cartID string) (*domain.ResolvedCart, error)
	FinalizeCart(ctx context.Context, cartID string) (*domain.ResolvedCart, error)
}

// Notifier publishes state changes to realtime subscribers.
type Notifier interface {
	CartUpdated(ctx context.Context, cart *domain.ResolvedCart)
	CartFinalized(ctx context.Context, cart *domain.ResolvedCart)
	ProductsUpdated(ctx context.Context, products []domain.Product)
}

type CartHandler struct {
	carts    CartEngine
	notifier Notifier
	timeout  time.Duration
}

func NewCartHandler(carts CartEngine, notifier Notifier, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		notifier: notifier,
		timeout:  timeout,
	}
}

type ReplaceItemsRequestDTO struct {
	Products []service.ItemInput `json:"products"`
}

type SetQuantityRequestDTO struct {
	Quantity *float64 `json:"quantity"`
}

// Routes mounts the cart API under /api/carts.
func (h *CartHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateCart)
	r.Route("/{cid}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Put("/", h.ReplaceItems)
		r.Delete("/", h.ClearCart)
		r.Put("/finalize", h.FinalizeCart)
		r.Post("/product/{pid}", h.AddItem)
		r.Put("/product/{pid}", h.DecrementItem)
		r.Put("/products/{pid}", h.SetItemQuantity)
		r.Delete("/products/{pid}", h.RemoveItem)
	})
}

func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.CreateCart(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cid"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.AddItem(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	})
}

func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.DecrementItem(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.RemoveItem(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	})
}

func (h *CartHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.SetItemQuantity(ctx, chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), *req.Quantity)
	})
}

func (h *CartHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Products == nil {
		respondError(w, http.StatusBadRequest, "products must be an array")
		return
	}

	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.ReplaceItems(ctx, chi.URLParam(r, "cid"), req.Products)
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context) (*domain.ResolvedCart, error) {
		return h.carts.ClearCart(ctx, chi.URLParam(r, "cid"))
	})
}

func (h *CartHandler) FinalizeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.FinalizeCart(ctx, chi.URLParam(r, "cid"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.notifier.CartFinalized(ctx, cart)
	respondSuccess(w, http.StatusOK, cart)
}

// mutate runs op and publishes the resulting cart to its room.
func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context) (*domain.ResolvedCart, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := op(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.notifier.CartUpdated(ctx, cart)
	respondSuccess(w, http.StatusOK, cart)
}
