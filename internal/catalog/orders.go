package catalog

import (
	"context"
	"fmt"

	"storeconsole/internal/domain"
)

type OrderSource interface {
	ListClientOrders(ctx context.Context, client string, nPerPage int) ([]domain.Order, error)
}

// OrderSnapshot is the unpaged list of a client's placed orders that the
// debt flow copies line items from.
type OrderSnapshot struct {
	client string
	orders []domain.Order
	byID   map[string]int
}

func LoadAll(ctx context.Context, src OrderSource, client string, limit int) (*OrderSnapshot, error) {
	if limit < 1 {
		limit = DefaultPageSize
	}
	orders, err := src.ListClientOrders(ctx, client, limit)
	if err != nil {
		return nil, fmt.Errorf("load orders of %s: %w", client, err)
	}

	snap := &OrderSnapshot{
		client: client,
		orders: make([]domain.Order, 0, len(orders)),
		byID:   make(map[string]int, len(orders)),
	}
	for _, order := range orders {
		if order.ItemsCount == 0 {
			order.ItemsCount = len(order.Items)
		}
		snap.byID[order.ID] = len(snap.orders)
		snap.orders = append(snap.orders, order)
	}
	return snap, nil
}

func (s *OrderSnapshot) Client() string { return s.client }

func (s *OrderSnapshot) Orders() []domain.Order {
	out := make([]domain.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *OrderSnapshot) ByID(id string) (domain.Order, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return s.orders[idx], true
}
