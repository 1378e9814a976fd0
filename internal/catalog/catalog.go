package catalog

import (
	"context"
	"fmt"
	"strings"

	"storeconsole/internal/domain"
)

const DefaultPageSize = 30

type ProductSource interface {
	ListProducts(ctx context.Context, page int, nPerPage int) (domain.ProductPage, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

// Snapshot is the console's copy of one catalog page or search result.
// Remaining quantities are local annotations: Stock minus what the current
// draft already reserves.
type Snapshot struct {
	page       int
	pageSize   int
	query      string
	totalCount int
	products   []domain.Product
	byID       map[string]int
	byName     map[string]int
}

// Load fetches a page (empty query) or a search result and annotates every
// product with its remaining quantity given the draft's reservations.
func Load(ctx context.Context, src ProductSource, page int, pageSize int, query string, reservations map[string]int) (*Snapshot, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	query = strings.TrimSpace(query)

	var (
		products   []domain.Product
		totalCount int
	)
	if query == "" {
		result, err := src.ListProducts(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("load catalog page %d: %w", page, err)
		}
		products = result.Products
		totalCount = result.TotalCount
	} else {
		found, err := src.SearchProducts(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search catalog %q: %w", query, err)
		}
		products = found
		totalCount = len(found)
	}

	snap := &Snapshot{
		page:       page,
		pageSize:   pageSize,
		query:      query,
		totalCount: totalCount,
		products:   make([]domain.Product, 0, len(products)),
		byID:       make(map[string]int, len(products)),
		byName:     make(map[string]int, len(products)),
	}
	for _, product := range products {
		product.Remaining = product.Stock - reservations[product.Name]
		if product.Remaining < 0 {
			product.Remaining = 0
		}
		snap.byID[product.ID] = len(snap.products)
		snap.byName[product.Name] = len(snap.products)
		snap.products = append(snap.products, product)
	}
	return snap, nil
}

// Empty returns a snapshot with no products, used before the first load.
func Empty() *Snapshot {
	return &Snapshot{page: 1, pageSize: DefaultPageSize, byID: map[string]int{}, byName: map[string]int{}}
}

func (s *Snapshot) Page() int       { return s.page }
func (s *Snapshot) Query() string   { return s.query }
func (s *Snapshot) TotalCount() int { return s.totalCount }

// Pages is the number of catalog pages at the snapshot's page size.
func (s *Snapshot) Pages() int {
	if s.totalCount == 0 {
		return 0
	}
	return (s.totalCount + s.pageSize - 1) / s.pageSize
}

// Products returns a copy of the annotated products in backend order.
func (s *Snapshot) Products() []domain.Product {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Snapshot) ByID(id string) (domain.Product, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return s.products[idx], true
}

func (s *Snapshot) ByName(name string) (domain.Product, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return domain.Product{}, false
	}
	return s.products[idx], true
}

// SetRemaining updates the remaining quantity of the product called name.
// Products outside the snapshot are ignored; they are re-annotated on the
// next load.
func (s *Snapshot) SetRemaining(name string, remaining int) {
	idx, ok := s.byName[name]
	if !ok {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	s.products[idx].Remaining = remaining
}
