package store

import (
	"context"
	"errors"

	"storeconsole/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidLogin      = errors.New("invalid credentials")
)

// Backend is the store service the console drives. It owns persistence and
// the authoritative stock and totals.
type Backend interface {
	ListProducts(ctx context.Context, page int, nPerPage int) (domain.ProductPage, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
	ListClientOrders(ctx context.Context, client string, nPerPage int) ([]domain.Order, error)
	ListOrders(ctx context.Context, page int, daily bool) (domain.OrderPage, error)
	CreateOrder(ctx context.Context, client string, req domain.OrderCreateRequest) (*domain.Order, error)
	CreateDebt(ctx context.Context, client string, req domain.DebtCreateRequest) (*domain.Debt, error)
	SetOrderDeliveredBy(ctx context.Context, orderID string, worker string) error
	SetOrderState(ctx context.Context, orderID string, state string) error
	SetDebtState(ctx context.Context, client string, debtID string, state string) error
	CreateDiscount(ctx context.Context, productID string, req domain.DiscountCreateRequest) (*domain.Discount, error)
	DeleteDiscount(ctx context.Context, productID string, discountID string) error
	Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error)
}
