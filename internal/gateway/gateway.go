package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"storeconsole/internal/compose"
	"storeconsole/internal/domain"
	"storeconsole/internal/pricing"
)

var (
	// ErrEmptySubmission means nothing was sent: the draft has no lines or
	// its payable figure is zero.
	ErrEmptySubmission = errors.New("nothing to submit")
	// ErrTransport wraps any failure talking to the backend. The caller's
	// draft is untouched so the operator can submit again.
	ErrTransport = errors.New("backend request failed")
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, client string, req domain.OrderCreateRequest) (*domain.Order, error)
}

type DebtCreator interface {
	CreateDebt(ctx context.Context, client string, req domain.DebtCreateRequest) (*domain.Debt, error)
}

// Result reports an accepted submission and where the console goes next.
type Result struct {
	Order    *domain.Order `json:"order,omitempty"`
	Debt     *domain.Debt  `json:"debt,omitempty"`
	Redirect string        `json:"redirect"`
}

type Gateway struct {
	orders OrderCreator
	debts  DebtCreator
}

func New(orders OrderCreator, debts DebtCreator) *Gateway {
	return &Gateway{orders: orders, debts: debts}
}

// SubmitOrder posts the composed order for client.
func (g *Gateway) SubmitOrder(ctx context.Context, client string, draft compose.OrderDraft) (Result, error) {
	if len(draft.Items) == 0 || draft.Total == 0 {
		return Result{}, ErrEmptySubmission
	}

	req := domain.OrderCreateRequest{
		Items:       pricing.RoundItems(draft.Items),
		Anotations:  draft.Anotations,
		DeliveredBy: draft.DeliveredBy,
		Discount:    pricing.Round2(draft.Discount),
		Total:       pricing.Round2(draft.Total),
	}
	if req.Anotations == nil {
		req.Anotations = []string{}
	}
	if req.DeliveredBy == "" {
		req.DeliveredBy = domain.DeliveredByNone
	}

	order, err := g.orders.CreateOrder(ctx, client, req)
	if err != nil {
		zap.L().Warn("order submission failed", zap.String("client", client), zap.Int("items", len(req.Items)), zap.Error(err))
		return Result{}, wrapTransport(err)
	}
	zap.L().Info("order submitted",
		zap.String("client", client),
		zap.String("order_id", order.ID),
		zap.String("total", pricing.Format(req.Total)),
	)
	return Result{Order: order, Redirect: "/orders"}, nil
}

// SubmitDebt posts the composed debt for client.
func (g *Gateway) SubmitDebt(ctx context.Context, client string, draft compose.DebtDraft) (Result, error) {
	if len(draft.Items) == 0 || draft.Value == 0 {
		return Result{}, ErrEmptySubmission
	}

	req := domain.DebtCreateRequest{
		Items: pricing.RoundItems(draft.Items),
		Value: pricing.Round2(draft.Value),
		Paid:  pricing.Round2(draft.Paid),
	}

	debt, err := g.debts.CreateDebt(ctx, client, req)
	if err != nil {
		zap.L().Warn("debt submission failed", zap.String("client", client), zap.Error(err))
		return Result{}, wrapTransport(err)
	}
	zap.L().Info("debt submitted",
		zap.String("client", client),
		zap.String("debt_id", debt.ID),
		zap.String("value", pricing.Format(req.Value)),
	)
	return Result{Debt: debt, Redirect: fmt.Sprintf("/clients/%s/debts", url.PathEscape(client))}, nil
}

// wrapTransport keeps the backend's own sentinel (stock, validation) visible
// to errors.Is while tagging the failure as a transport error.
func wrapTransport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
