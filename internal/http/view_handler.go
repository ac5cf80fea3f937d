package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/service"
	"github.com/go-chi/chi/v5"
)

// ViewHandler renders the HTML pages.
type ViewHandler struct {
	products Catalog
	carts    CartEngine
	renderer *Renderer
	timeout  time.Duration
}

func NewViewHandler(products Catalog, carts CartEngine, renderer *Renderer, timeout time.Duration) *ViewHandler {
	return &ViewHandler{
		products: products,
		carts:    carts,
		renderer: renderer,
		timeout:  timeout,
	}
}

type productsPage struct {
	Title      string
	Products   []domain.Product
	Page       int
	TotalPages int
	PrevLink   string
	NextLink   string
}

type productPage struct {
	Title   string
	Product *domain.Product
}

type cartPage struct {
	Title string
	Cart  *domain.ResolvedCart
}

type errorPage struct {
	Title   string
	Message string
}

func (h *ViewHandler) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/products", http.StatusFound)
	})
	r.Get("/products", h.Products)
	r.Get("/products/{pid}", h.Product)
	r.Get("/carts/{cid}", h.Cart)
}

func (h *ViewHandler) Products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	q := service.ParseProductQuery(ctx, query.Get("limit"), query.Get("page"), query.Get("sort"), query.Get("query"))

	page, err := h.products.List(ctx, q)
	if err != nil {
		h.renderError(w, err, "Failed to load products")
		return
	}

	data := productsPage{
		Title:      "Products",
		Products:   page.Products,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
	if link := pageLink(r.URL.Path, q, page.PrevPage); link != nil {
		data.PrevLink = *link
	}
	if link := pageLink(r.URL.Path, q, page.NextPage); link != nil {
		data.NextLink = *link
	}
	h.renderer.Render(w, http.StatusOK, "products", data)
}

func (h *ViewHandler) Product(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.Get(ctx, chi.URLParam(r, "pid"))
	if err != nil {
		h.renderError(w, err, "Product not found")
		return
	}
	h.renderer.Render(w, http.StatusOK, "product", productPage{Title: p.Title, Product: p})
}

func (h *ViewHandler) Cart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cid"))
	if err != nil {
		h.renderError(w, err, "Cart not found")
		return
	}
	h.renderer.Render(w, http.StatusOK, "cart", cartPage{Title: "Cart " + cart.ID.Hex(), Cart: cart})
}

func (h *ViewHandler) renderError(w http.ResponseWriter, err error, title string) {
	status := statusFor(err)
	if status != http.StatusNotFound {
		title = "Error"
	}
	h.renderer.Render(w, status, "error", errorPage{Title: title, Message: domain.ErrorMessage(err)})
}
