package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storeconsole/internal/catalog"
	"storeconsole/internal/compose"
	"storeconsole/internal/domain"
	"storeconsole/internal/gateway"
	"storeconsole/internal/pricing"
	"storeconsole/internal/store"
)

// TemplateView is a placed order offered as a debt template. Its lines are
// shown but never edited in place.
type TemplateView struct {
	Order    domain.Order     `json:"order"`
	Items    compose.ItemList `json:"itemList"`
	Selected bool             `json:"selected"`
}

type DebtView struct {
	Client    string            `json:"client"`
	Templates []TemplateView    `json:"templates"`
	Items     compose.ItemList  `json:"itemList"`
	Draft     compose.DebtDraft `json:"draft"`
	ValueText string            `json:"valueText"`
}

// StartDebt opens a debt workspace for client with its placed orders
// loaded as templates.
func (s *Service) StartDebt(ctx context.Context, client string) (DebtView, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return DebtView{}, err
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return DebtView{}, ErrInvalidInput
	}

	orders, err := catalog.LoadAll(ctx, s.backend, client, s.pageSize)
	if err != nil {
		return DebtView{}, transport(err)
	}

	ws := &debtWorkspace{client: client, composer: compose.NewDebtComposer(), orders: orders}
	s.mu.Lock()
	s.debts[id] = ws
	s.mu.Unlock()

	zap.L().Debug("debt workspace opened", zap.String("session_id", id), zap.String("client", client))
	return debtView(ws), nil
}

func (s *Service) DebtView(ctx context.Context) (DebtView, error) {
	var view DebtView
	err := s.withDebt(ctx, func(ws *debtWorkspace) error {
		view = debtView(ws)
		return nil
	})
	return view, err
}

func (s *Service) PickTemplateOrder(ctx context.Context, orderID string) (DebtView, error) {
	return s.mutateDebt(ctx, func(ws *debtWorkspace) error {
		order, ok := ws.orders.ByID(orderID)
		if !ok {
			return fmt.Errorf("order %s of %s: %w", orderID, ws.client, store.ErrNotFound)
		}
		ws.composer.PickOrderAsTemplate(order)
		return nil
	})
}

func (s *Service) ChangeDebtQty(ctx context.Context, name string, qty int) (DebtView, error) {
	return s.mutateDebt(ctx, func(ws *debtWorkspace) error {
		return ws.composer.ItemList().ChangeQty(name, qty)
	})
}

func (s *Service) DeleteDebtItem(ctx context.Context, name string) (DebtView, error) {
	return s.mutateDebt(ctx, func(ws *debtWorkspace) error {
		return ws.composer.ItemList().DeleteItem(name)
	})
}

func (s *Service) ApplyDebtPayment(ctx context.Context, amount float64) (DebtView, error) {
	return s.mutateDebt(ctx, func(ws *debtWorkspace) error {
		ws.composer.ApplyPayment(amount)
		return nil
	})
}

func (s *Service) SubmitDebt(ctx context.Context) (gateway.Result, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return gateway.Result{}, err
	}

	var result gateway.Result
	err = s.withDebt(ctx, func(ws *debtWorkspace) error {
		res, err := s.gateway.SubmitDebt(ctx, ws.client, ws.composer.Draft())
		if err != nil {
			return err
		}
		result = res
		s.dropDebt(id, ws)
		return nil
	})
	return result, err
}

func (s *Service) DiscardDebt(ctx context.Context) error {
	id, err := s.sessionID(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[id]; !ok {
		return ErrNoWorkspace
	}
	delete(s.debts, id)
	return nil
}

func (s *Service) mutateDebt(ctx context.Context, fn func(ws *debtWorkspace) error) (DebtView, error) {
	var view DebtView
	err := s.withDebt(ctx, func(ws *debtWorkspace) error {
		if err := fn(ws); err != nil {
			return err
		}
		view = debtView(ws)
		return nil
	})
	return view, err
}

func (s *Service) withDebt(ctx context.Context, fn func(ws *debtWorkspace) error) error {
	id, err := s.sessionID(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ws, ok := s.debts[id]
	s.mu.Unlock()
	if !ok {
		return ErrNoWorkspace
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	return fn(ws)
}

func (s *Service) dropDebt(id string, ws *debtWorkspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debts[id] == ws {
		delete(s.debts, id)
	}
}

func debtView(ws *debtWorkspace) DebtView {
	orders := ws.orders.Orders()
	selected := ws.composer.SourceOrder()
	templates := make([]TemplateView, 0, len(orders))
	for _, order := range orders {
		templates = append(templates, TemplateView{
			Order:    order,
			Items:    compose.ReadOnlyList(order.Items),
			Selected: order.ID == selected,
		})
	}
	draft := ws.composer.Draft()
	return DebtView{
		Client:    ws.client,
		Templates: templates,
		Items:     ws.composer.ItemList(),
		Draft:     draft,
		ValueText: pricing.Format(draft.Value),
	}
}
