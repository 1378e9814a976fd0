package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeconsole/internal/domain"
	"storeconsole/internal/store"
)

func stockOf(t *testing.T, s *Store, id string) int {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	require.True(t, ok)
	return p.Stock
}

func TestListProductsPages(t *testing.T) {
	s := NewSeeded()

	first, err := s.ListProducts(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.Len(t, first.Products, 4)
	assert.Equal(t, 10, first.TotalCount)
	assert.Equal(t, "Acucar 1kg", first.Products[0].Name)

	last, err := s.ListProducts(context.Background(), 3, 4)
	require.NoError(t, err)
	assert.Len(t, last.Products, 2)

	beyond, err := s.ListProducts(context.Background(), 9, 4)
	require.NoError(t, err)
	assert.Empty(t, beyond.Products)

	_, err = s.ListProducts(context.Background(), 0, 4)
	require.ErrorIs(t, err, store.ErrInvalidRequest)
}

func TestSearchProductsIsCaseInsensitive(t *testing.T) {
	s := NewSeeded()

	found, err := s.SearchProducts(context.Background(), "SABON")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p-sabonete", found[0].ID)

	none, err := s.SearchProducts(context.Background(), "vinho")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCreateOrderDecrementsStock(t *testing.T) {
	s := NewSeeded()
	before := stockOf(t, s, "p-sabonete")

	order, err := s.CreateOrder(context.Background(), "Ana Souza", domain.OrderCreateRequest{
		Items: []domain.LineItem{{Name: "Sabonete", Price: 2.5, Qty: 3, SubTotal: 7.5}},
		Total: 7.5,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStateRegistered, order.State)
	assert.Equal(t, domain.DeliveredByNone, order.DeliveredBy)
	assert.Equal(t, 1, order.ItemsCount)
	assert.NotNil(t, order.Anotations)
	assert.Equal(t, before-3, stockOf(t, s, "p-sabonete"))

	orders, err := s.ListClientOrders(context.Background(), "Ana Souza", 30)
	require.NoError(t, err)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestCreateOrderInsufficientStockIsAtomic(t *testing.T) {
	s := NewSeeded()
	soapBefore := stockOf(t, s, "p-sabonete")

	_, err := s.CreateOrder(context.Background(), "Ana Souza", domain.OrderCreateRequest{
		Items: []domain.LineItem{
			{Name: "Sabonete", Price: 2.5, Qty: 1, SubTotal: 2.5},
			{Name: "Detergente", Price: 2.9, Qty: 1, SubTotal: 2.9},
		},
		Total: 5.4,
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, soapBefore, stockOf(t, s, "p-sabonete"))
}

func TestCreateOrderValidation(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	item := []domain.LineItem{{Name: "Sabonete", Price: 2.5, Qty: 1, SubTotal: 2.5}}

	_, err := s.CreateOrder(ctx, "Ana Souza", domain.OrderCreateRequest{})
	require.ErrorIs(t, err, store.ErrInvalidRequest)

	_, err = s.CreateOrder(ctx, "Nobody", domain.OrderCreateRequest{Items: item, Total: 2.5})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateOrder(ctx, "Ana Souza", domain.OrderCreateRequest{Items: item, Total: 2.5, DeliveredBy: "Pedro"})
	require.ErrorIs(t, err, store.ErrInvalidRequest)

	_, err = s.CreateOrder(ctx, "Ana Souza", domain.OrderCreateRequest{
		Items: []domain.LineItem{{Name: "Vinho", Price: 30, Qty: 1, SubTotal: 30}},
		Total: 30,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListOrdersDailyFilter(t *testing.T) {
	s := NewSeeded()
	now := time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.orders[0].CreatedAt = now.Add(-72 * time.Hour)

	_, err := s.CreateOrder(context.Background(), "Carlos Lima", domain.OrderCreateRequest{
		Items: []domain.LineItem{{Name: "Cafe 500g", Price: 16.9, Qty: 1, SubTotal: 16.9}},
		Total: 16.9,
	})
	require.NoError(t, err)

	all, err := s.ListOrders(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)
	assert.Equal(t, OrdersPerPage, all.NPerPage)
	assert.Equal(t, "Carlos Lima", all.Orders[0].By.Name)

	daily, err := s.ListOrders(context.Background(), 1, true)
	require.NoError(t, err)
	require.Equal(t, 1, daily.TotalCount)
	assert.Equal(t, "Carlos Lima", daily.Orders[0].By.Name)
}

func TestOrderAndDebtStateUpdates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	require.NoError(t, s.SetOrderDeliveredBy(ctx, "o-seed-1", "Maria"))
	require.NoError(t, s.SetOrderState(ctx, "o-seed-1", domain.OrderStateRegistered))
	require.ErrorIs(t, s.SetOrderState(ctx, "o-seed-1", "Cancelado"), store.ErrInvalidRequest)
	require.ErrorIs(t, s.SetOrderState(ctx, "o-missing", domain.OrderStateDelivered), store.ErrNotFound)

	debt, err := s.CreateDebt(ctx, "Ana Souza", domain.DebtCreateRequest{
		Items: []domain.LineItem{{Name: "Arroz 5kg", Price: 24.9, Qty: 1, SubTotal: 24.9}},
		Value: 14.9,
		Paid:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DebtStateRegistered, debt.State)

	require.NoError(t, s.SetDebtState(ctx, "Ana Souza", debt.ID, domain.DebtStatePaid))
	require.ErrorIs(t, s.SetDebtState(ctx, "Carlos Lima", debt.ID, domain.DebtStatePaid), store.ErrNotFound)
}

func TestDiscountLifecycle(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateDiscount(ctx, "p-cafe", domain.DiscountCreateRequest{DiscountDay: 5, Discount: 10, DiscountedPrice: 15.21})
	require.NoError(t, err)
	assert.Equal(t, "p-cafe", created.ProductID)

	found, err := s.SearchProducts(ctx, "cafe")
	require.NoError(t, err)
	require.Len(t, found[0].Discounts, 1)

	require.NoError(t, s.DeleteDiscount(ctx, "p-cafe", created.ID))
	require.ErrorIs(t, s.DeleteDiscount(ctx, "p-cafe", created.ID), store.ErrNotFound)

	_, err = s.CreateDiscount(ctx, "p-cafe", domain.DiscountCreateRequest{DiscountDay: 7})
	require.ErrorIs(t, err, store.ErrInvalidRequest)
}

func TestAuthenticate(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cret-admin")
	t.Setenv("SEED_OPERATOR_PASSWORD", "s3cret-operator")
	s := NewSeeded()

	user, err := s.Authenticate(context.Background(), "admin", "s3cret-admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	_, err = s.Authenticate(context.Background(), "admin", "wrong")
	require.ErrorIs(t, err, store.ErrInvalidLogin)

	_, err = s.Authenticate(context.Background(), "ghost", "s3cret-admin")
	require.ErrorIs(t, err, store.ErrInvalidLogin)
}

func TestAddClientEnablesOrders(t *testing.T) {
	s := NewSeeded()
	req := domain.OrderCreateRequest{
		Items: []domain.LineItem{{Name: "Sabonete", Price: 2.5, Qty: 1, SubTotal: 2.5}},
		Total: 2.5,
	}

	_, err := s.CreateOrder(context.Background(), "Bia Rocha", req)
	require.ErrorIs(t, err, store.ErrNotFound)

	s.AddClient(domain.Client{Name: "Bia Rocha"})
	order, err := s.CreateOrder(context.Background(), "Bia Rocha", req)
	require.NoError(t, err)
	assert.Equal(t, "Bia Rocha", order.By.Name)
	assert.NotEmpty(t, s.clients["Bia Rocha"].ID)
}
