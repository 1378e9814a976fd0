package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"storeconsole/internal/catalog"
	"storeconsole/internal/compose"
	"storeconsole/internal/domain"
	"storeconsole/internal/gateway"
	"storeconsole/internal/pricing"
)

type ProductView struct {
	domain.Product
	DiscountToday bool    `json:"discountToday"`
	PriceToday    float64 `json:"priceToday"`
}

type CatalogView struct {
	Page       int           `json:"page"`
	Pages      int           `json:"pages"`
	Query      string        `json:"query"`
	TotalCount int           `json:"totalCount"`
	Products   []ProductView `json:"products"`
}

type OrderView struct {
	Client       string             `json:"client"`
	Catalog      CatalogView        `json:"catalog"`
	Workers      []domain.Worker    `json:"workers"`
	Items        compose.ItemList   `json:"itemList"`
	Draft        compose.OrderDraft `json:"draft"`
	Subtotal     float64            `json:"subtotal"`
	SubtotalText string             `json:"subtotalText"`
	TotalText    string             `json:"totalText"`
}

// StartOrder opens a fresh order workspace for client, replacing any order
// the session had open.
func (s *Service) StartOrder(ctx context.Context, client string) (OrderView, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return OrderView{}, err
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return OrderView{}, ErrInvalidInput
	}

	composer := compose.NewOrderComposer(s.today)
	workers, err := s.backend.ListWorkers(ctx)
	if err != nil {
		return OrderView{}, transport(err)
	}
	composer.SetWorkers(workers)

	snap, err := catalog.Load(ctx, s.backend, 1, s.pageSize, "", composer.Reservations())
	if err != nil {
		return OrderView{}, transport(err)
	}
	composer.SetCatalog(snap)

	ws := &orderWorkspace{client: client, composer: composer}
	s.mu.Lock()
	s.orders[id] = ws
	s.mu.Unlock()

	zap.L().Debug("order workspace opened", zap.String("session_id", id), zap.String("client", client))
	return s.orderView(ws), nil
}

func (s *Service) OrderView(ctx context.Context) (OrderView, error) {
	var view OrderView
	err := s.withOrder(ctx, func(ws *orderWorkspace) error {
		view = s.orderView(ws)
		return nil
	})
	return view, err
}

// BrowseCatalog loads a catalog page, or a search result when query is not
// blank, annotated with what the open order already holds.
func (s *Service) BrowseCatalog(ctx context.Context, page int, query string) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		snap, err := catalog.Load(ctx, s.backend, page, s.pageSize, query, ws.composer.Reservations())
		if err != nil {
			return transport(err)
		}
		ws.composer.SetCatalog(snap)
		return nil
	})
}

func (s *Service) PickProduct(ctx context.Context, productID string) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		return ws.composer.PickItem(productID)
	})
}

func (s *Service) ChangeOrderQty(ctx context.Context, name string, qty int) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		return ws.composer.ItemList().ChangeQty(name, qty)
	})
}

func (s *Service) DeleteOrderItem(ctx context.Context, name string) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		return ws.composer.ItemList().DeleteItem(name)
	})
}

func (s *Service) PickWorker(ctx context.Context, name string) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		return ws.composer.PickWorker(strings.TrimSpace(name))
	})
}

func (s *Service) SetAnotations(ctx context.Context, notes []string) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		ws.composer.SetAnotations(notes)
		return nil
	})
}

func (s *Service) ApplyOrderDiscount(ctx context.Context, value float64) (OrderView, error) {
	return s.mutateOrder(ctx, func(ws *orderWorkspace) error {
		ws.composer.ApplyDiscount(value)
		return nil
	})
}

// SubmitOrder sends the open order. The workspace is discarded only when
// the backend accepted it.
func (s *Service) SubmitOrder(ctx context.Context) (gateway.Result, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return gateway.Result{}, err
	}

	var result gateway.Result
	err = s.withOrder(ctx, func(ws *orderWorkspace) error {
		res, err := s.gateway.SubmitOrder(ctx, ws.client, ws.composer.Draft())
		if err != nil {
			return err
		}
		result = res
		s.dropOrder(id, ws)
		return nil
	})
	return result, err
}

func (s *Service) DiscardOrder(ctx context.Context) error {
	id, err := s.sessionID(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return ErrNoWorkspace
	}
	delete(s.orders, id)
	return nil
}

func (s *Service) mutateOrder(ctx context.Context, fn func(ws *orderWorkspace) error) (OrderView, error) {
	var view OrderView
	err := s.withOrder(ctx, func(ws *orderWorkspace) error {
		if err := fn(ws); err != nil {
			return err
		}
		view = s.orderView(ws)
		return nil
	})
	return view, err
}

// withOrder runs fn holding the workspace lock so one session's edits apply
// in the order they arrive.
func (s *Service) withOrder(ctx context.Context, fn func(ws *orderWorkspace) error) error {
	id, err := s.sessionID(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ws, ok := s.orders[id]
	s.mu.Unlock()
	if !ok {
		return ErrNoWorkspace
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	return fn(ws)
}

func (s *Service) dropOrder(id string, ws *orderWorkspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders[id] == ws {
		delete(s.orders, id)
	}
}

func (s *Service) orderView(ws *orderWorkspace) OrderView {
	c := ws.composer
	draft := c.Draft()
	subtotal := c.Subtotal()
	return OrderView{
		Client:       ws.client,
		Catalog:      s.catalogView(c.Catalog()),
		Workers:      c.Workers(),
		Items:        c.ItemList(),
		Draft:        draft,
		Subtotal:     subtotal,
		SubtotalText: pricing.Format(subtotal),
		TotalText:    pricing.Format(draft.Total),
	}
}

func (s *Service) catalogView(snap *catalog.Snapshot) CatalogView {
	day := s.today()
	products := snap.Products()
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			Product:       p,
			DiscountToday: pricing.HasDiscountOn(p, day),
			PriceToday:    pricing.DiscountedPrice(p, day),
		})
	}
	return CatalogView{
		Page:       snap.Page(),
		Pages:      snap.Pages(),
		Query:      snap.Query(),
		TotalCount: snap.TotalCount(),
		Products:   views,
	}
}
