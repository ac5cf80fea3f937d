package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/service"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	List(ctx context.Context, q domain.ProductQuery) (domain.ProductPage, error)
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Create(ctx context.Context, in service.NewProduct) (*domain.Product, error)
	Update(ctx context.Context, productID string, in service.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, productID string) error
	Snapshot(ctx context.Context) ([]domain.Product, error)
}

type ProductHandler struct {
	products Catalog
	notifier Notifier
	timeout  time.Duration
}

func NewProductHandler(products Catalog, notifier Notifier, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		notifier: notifier,
		timeout:  timeout,
	}
}

// ProductListResponse is the paginated listing envelope.
type ProductListResponse struct {
	Status      string           `json:"status"`
	Payload     []domain.Product `json:"payload"`
	TotalPages  int              `json:"totalPages"`
	PrevPage    *int             `json:"prevPage"`
	NextPage    *int             `json:"nextPage"`
	Page        int              `json:"page"`
	HasPrevPage bool             `json:"hasPrevPage"`
	HasNextPage bool             `json:"hasNextPage"`
	PrevLink    *string          `json:"prevLink"`
	NextLink    *string          `json:"nextLink"`
}

// Routes mounts the catalog API under /api/products.
func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/", h.ListProducts)
	r.Post("/", h.CreateProduct)
	r.Get("/{pid}", h.GetProduct)
	r.Put("/{pid}", h.UpdateProduct)
	r.Delete("/{pid}", h.DeleteProduct)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	q := service.ParseProductQuery(ctx, query.Get("limit"), query.Get("page"), query.Get("sort"), query.Get("query"))

	page, err := h.products.List(ctx, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	base := requestScheme(r) + "://" + r.Host + r.URL.Path
	resp := ProductListResponse{
		Status:      statusSuccess,
		Payload:     page.Products,
		TotalPages:  page.TotalPages,
		PrevPage:    page.PrevPage,
		NextPage:    page.NextPage,
		Page:        page.Page,
		HasPrevPage: page.HasPrevPage,
		HasNextPage: page.HasNextPage,
		PrevLink:    pageLink(base, q, page.PrevPage),
		NextLink:    pageLink(base, q, page.NextPage),
	}
	if resp.Payload == nil {
		resp.Payload = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.Get(ctx, chi.URLParam(r, "pid"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, p)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.NewProduct
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.products.Create(ctx, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.broadcast(ctx)
	respondSuccess(w, http.StatusCreated, p)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.ProductUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.products.Update(ctx, chi.URLParam(r, "pid"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.broadcast(ctx)
	respondSuccess(w, http.StatusOK, p)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pid := chi.URLParam(r, "pid")
	if err := h.products.Delete(ctx, pid); err != nil {
		handleServiceError(w, err)
		return
	}
	h.broadcast(ctx)
	respondSuccess(w, http.StatusOK, map[string]string{"id": pid})
}

// broadcast pushes the refreshed product list to every realtime client. The
// write already succeeded, so a failure here is only logged.
func (h *ProductHandler) broadcast(ctx context.Context) {
	products, err := h.products.Snapshot(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to load products for broadcast")
		return
	}
	h.notifier.ProductsUpdated(ctx, products)
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// pageLink builds the link to page, keeping the listing parameters that were
// applied. It returns nil when there is no such page.
func pageLink(base string, q domain.ProductQuery, page *int) *string {
	if page == nil {
		return nil
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("page", strconv.Itoa(*page))
	switch q.PriceSort {
	case 1:
		v.Set("sort", "asc")
	case -1:
		v.Set("sort", "desc")
	}
	if q.Category != "" {
		v.Set("query", q.Category)
	}
	link := base + "?" + v.Encode()
	return &link
}
