package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fjod/cartsync/internal/cache"
	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/internal/repository"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageLimit = 10
	// BroadcastLimit caps the product list pushed to realtime clients.
	BroadcastLimit = 100
)

// NewProduct is the create payload. Pointer fields distinguish a missing value
// from zero.
type NewProduct struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Code        string   `json:"code" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Status      *bool    `json:"status"`
	Stock       *int     `json:"stock" validate:"required,gte=0"`
	Category    string   `json:"category" validate:"required"`
	Thumbnails  []string `json:"thumbnails"`
}

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Title       *string  `json:"title" validate:"omitnil,min=1"`
	Description *string  `json:"description" validate:"omitnil,min=1"`
	Code        *string  `json:"code" validate:"omitnil,min=1"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
	Status      *bool    `json:"status"`
	Stock       *int     `json:"stock" validate:"omitnil,gte=0"`
	Category    *string  `json:"category" validate:"omitnil,min=1"`
	Thumbnails  []string `json:"thumbnails"`
}

type ProductService struct {
	repo     repository.ProductRepository
	cache    cache.ProductCache
	validate *validator.Validate
	sfg      singleflight.Group
}

// NewProductService builds the catalog service. productCache may be nil, in
// which case every read goes to the store.
func NewProductService(repo repository.ProductRepository, productCache cache.ProductCache) *ProductService {
	return &ProductService{
		repo:     repo,
		cache:    productCache,
		validate: newValidator(),
	}
}

// ParseProductQuery turns raw listing parameters into a query. Invalid limit
// or page values fall back to their defaults and an unknown sort disables
// sorting; each case is logged.
func ParseProductQuery(ctx context.Context, limit, page, sort, category string) domain.ProductQuery {
	q := domain.ProductQuery{Limit: DefaultPageLimit, Page: 1, Category: strings.TrimSpace(category)}

	if limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			q.Limit = n
		} else {
			logger.Ctx(ctx).Warn().Str("limit", limit).Msg("invalid limit, using default")
		}
	}
	if page != "" {
		if n, err := strconv.Atoi(page); err == nil && n > 0 {
			q.Page = n
		} else {
			logger.Ctx(ctx).Warn().Str("page", page).Msg("invalid page, using default")
		}
	}

	switch sort {
	case "":
	case "asc":
		q.PriceSort = 1
	case "desc":
		q.PriceSort = -1
	default:
		logger.Ctx(ctx).Warn().Str("sort", sort).Msg("invalid sort, expected asc or desc; listing unsorted")
	}
	return q
}

func (s *ProductService) List(ctx context.Context, q domain.ProductQuery) (domain.ProductPage, error) {
	const op = "product.list"
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	products, total, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("op", op).Msg("failed to list products")
		return domain.ProductPage{}, domain.WrapError(err, domain.KindStoreFailure, op, "failed to list products")
	}
	return domain.NewProductPage(products, total, q.Page, q.Limit), nil
}

// Get reads one product through the cache. Concurrent misses for the same id
// share a single store read.
func (s *ProductService) Get(ctx context.Context, productID string) (*domain.Product, error) {
	const op = "product.get"
	pid, err := parseID(op, "product", productID)
	if err != nil {
		return nil, err
	}

	v, err, _ := s.sfg.Do(pid.Hex(), func() (interface{}, error) {
		if s.cache != nil {
			p, err := s.cache.Get(ctx, pid.Hex())
			if err == nil {
				metrics.ProductCacheLookupsTotal.WithLabelValues("hit").Inc()
				return p, nil
			}
			if errors.Is(err, cache.ErrCacheMiss) {
				metrics.ProductCacheLookupsTotal.WithLabelValues("miss").Inc()
			} else {
				metrics.ProductCacheLookupsTotal.WithLabelValues("error").Inc()
				logger.Ctx(ctx).Warn().Err(err).Str("product_id", pid.Hex()).Msg("product cache get failed")
			}
		}

		p, err := s.repo.GetProduct(ctx, pid)
		if err != nil {
			return nil, productStoreError(op, productID, err)
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, pid.Hex(), p); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("product_id", pid.Hex()).Msg("product cache set failed")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *ProductService) Create(ctx context.Context, in NewProduct) (*domain.Product, error) {
	const op = "product.create"
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Code = strings.TrimSpace(in.Code)
	in.Category = strings.TrimSpace(in.Category)

	if err := s.validate.Struct(in); err != nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "%s", validationMessage(err))
	}

	taken, err := s.repo.CodeTaken(ctx, in.Code, primitive.NilObjectID)
	if err != nil {
		return nil, domain.WrapError(err, domain.KindStoreFailure, op, "failed to check product code")
	}
	if taken {
		return nil, duplicateCode(op, in.Code)
	}

	p := &domain.Product{
		Title:       in.Title,
		Description: in.Description,
		Code:        in.Code,
		Price:       *in.Price,
		Status:      true,
		Stock:       *in.Stock,
		Category:    in.Category,
		Thumbnails:  trimAll(in.Thumbnails),
	}
	if in.Status != nil {
		p.Status = *in.Status
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, productStoreError(op, in.Code, err)
	}
	logger.Ctx(ctx).Info().Str("product_id", p.ID.Hex()).Str("code", p.Code).Msg("product created")
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, productID string, in ProductUpdate) (*domain.Product, error) {
	const op = "product.update"
	pid, err := parseID(op, "product", productID)
	if err != nil {
		return nil, err
	}

	patch := domain.ProductPatch{
		Title:       trimPtr(in.Title),
		Description: trimPtr(in.Description),
		Code:        trimPtr(in.Code),
		Price:       in.Price,
		Status:      in.Status,
		Stock:       in.Stock,
		Category:    trimPtr(in.Category),
		Thumbnails:  trimAll(in.Thumbnails),
	}
	in.Title, in.Description, in.Code, in.Category = patch.Title, patch.Description, patch.Code, patch.Category
	if err := s.validate.Struct(in); err != nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "%s", validationMessage(err))
	}

	if patch.Code != nil {
		taken, err := s.repo.CodeTaken(ctx, *patch.Code, pid)
		if err != nil {
			return nil, domain.WrapError(err, domain.KindStoreFailure, op, "failed to check product code")
		}
		if taken {
			return nil, duplicateCode(op, *patch.Code)
		}
	}

	p, err := s.repo.UpdateProduct(ctx, pid, patch)
	if err != nil {
		return nil, productStoreError(op, productID, err)
	}
	s.invalidate(ctx, pid)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, productID string) error {
	const op = "product.delete"
	pid, err := parseID(op, "product", productID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, pid); err != nil {
		return productStoreError(op, productID, err)
	}
	s.invalidate(ctx, pid)
	logger.Ctx(ctx).Info().Str("product_id", productID).Msg("product deleted")
	return nil
}

// Snapshot returns the first page of products pushed to realtime clients.
func (s *ProductService) Snapshot(ctx context.Context) ([]domain.Product, error) {
	page, err := s.List(ctx, domain.ProductQuery{Page: 1, Limit: BroadcastLimit})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

func (s *ProductService) invalidate(ctx context.Context, pid primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, pid.Hex()); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("product_id", pid.Hex()).Msg("product cache invalidate failed")
	}
}

func productStoreError(op, ref string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.Errorf(domain.KindNotFound, op, "product %s not found", ref)
	case errors.Is(err, repository.ErrDuplicateCode):
		return domain.WrapError(err, domain.KindConflict, op, "product code already exists")
	}
	return domain.WrapError(err, domain.KindStoreFailure, op, "product store failure")
}

func duplicateCode(op, code string) error {
	return domain.Errorf(domain.KindConflict, op, "a product with code %q already exists", code)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
