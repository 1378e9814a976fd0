package compose

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeconsole/internal/catalog"
	"storeconsole/internal/domain"
)

type staticSource struct {
	products []domain.Product
}

func (s staticSource) ListProducts(_ context.Context, _ int, _ int) (domain.ProductPage, error) {
	return domain.ProductPage{Products: s.products, TotalCount: len(s.products)}, nil
}

func (s staticSource) SearchProducts(_ context.Context, _ string) ([]domain.Product, error) {
	return s.products, nil
}

func fixedDay(day time.Weekday) func() time.Weekday {
	return func() time.Weekday { return day }
}

func newComposer(t *testing.T, day time.Weekday, products ...domain.Product) *OrderComposer {
	t.Helper()
	c := NewOrderComposer(fixedDay(day))
	snap, err := catalog.Load(context.Background(), staticSource{products: products}, 1, 30, "", c.Reservations())
	require.NoError(t, err)
	c.SetCatalog(snap)
	return c
}

func remaining(t *testing.T, c *OrderComposer, name string) int {
	t.Helper()
	product, ok := c.Catalog().ByName(name)
	require.True(t, ok, "product %s not in snapshot", name)
	return product.Remaining
}

var soap = domain.Product{ID: "p-soap", Name: "Soap", Price: 10, Stock: 3}

func TestSoapScenario(t *testing.T) {
	c := newComposer(t, time.Monday, soap)

	require.NoError(t, c.PickItem("p-soap"))
	assert.Equal(t, []domain.LineItem{{Name: "Soap", Price: 10, Qty: 1, SubTotal: 10}}, c.Items())
	assert.Equal(t, 2, remaining(t, c, "Soap"))
	assert.Equal(t, 10.0, c.Total())

	require.NoError(t, c.ChangeQty("Soap", 3))
	assert.Equal(t, 3, c.Items()[0].Qty)
	assert.Equal(t, 30.0, c.Items()[0].SubTotal)
	assert.Equal(t, 0, remaining(t, c, "Soap"))
	assert.Equal(t, 30.0, c.Total())

	require.ErrorIs(t, c.ChangeQty("Soap", 4), ErrStockExceeded)
	assert.Equal(t, 3, c.Items()[0].Qty)
	assert.Equal(t, 0, remaining(t, c, "Soap"))

	require.NoError(t, c.DeleteItem("Soap"))
	assert.Empty(t, c.Items())
	assert.Equal(t, 3, remaining(t, c, "Soap"))
	assert.Equal(t, 0.0, c.Total())
}

func TestPickOutOfStockLeavesDraftUnchanged(t *testing.T) {
	c := newComposer(t, time.Monday, domain.Product{ID: "p1", Name: "Oil", Price: 7, Stock: 0})

	require.ErrorIs(t, c.PickItem("p1"), ErrStockExceeded)
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, remaining(t, c, "Oil"))
	assert.Equal(t, 0.0, c.Total())
}

func TestPickDuplicateIsNoop(t *testing.T) {
	c := newComposer(t, time.Monday, soap)

	require.NoError(t, c.PickItem("p-soap"))
	require.NoError(t, c.PickItem("p-soap"))

	assert.Len(t, c.Items(), 1)
	assert.Equal(t, 1, c.Items()[0].Qty)
	assert.Equal(t, 2, remaining(t, c, "Soap"))
}

func TestPickUnknownProduct(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.ErrorIs(t, c.PickItem("nope"), ErrProductNotFound)
}

func TestPickPrependsAndUsesTodaysDiscount(t *testing.T) {
	rice := domain.Product{ID: "p-rice", Name: "Rice", Price: 20, Stock: 5, Discounts: []domain.Discount{
		{DiscountDay: int(time.Wednesday), DiscountedPrice: 18},
		{DiscountDay: int(time.Wednesday), DiscountedPrice: 17.5},
	}}
	c := newComposer(t, time.Wednesday, soap, rice)

	require.NoError(t, c.PickItem("p-soap"))
	require.NoError(t, c.PickItem("p-rice"))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Rice", items[0].Name)
	assert.Equal(t, 17.5, items[0].Price)
	assert.Equal(t, "Soap", items[1].Name)
	assert.Equal(t, 27.5, c.Total())
}

func TestChangeQtyRejectsNonPositive(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))

	require.ErrorIs(t, c.ChangeQty("Soap", 0), ErrInvalidQuantity)
	assert.Equal(t, 1, c.Items()[0].Qty)
}

func TestChangeQtyUnknownLineIsNoop(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.ChangeQty("Ghost", 2))
	assert.Empty(t, c.Items())
}

func TestDeleteThenPickRoundTrip(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	before := remaining(t, c, "Soap")

	require.NoError(t, c.PickItem("p-soap"))
	afterPick := remaining(t, c, "Soap")
	require.NoError(t, c.DeleteItem("Soap"))
	assert.Equal(t, before, remaining(t, c, "Soap"))

	require.NoError(t, c.PickItem("p-soap"))
	assert.Equal(t, afterPick, remaining(t, c, "Soap"))
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))
	require.NoError(t, c.DeleteItem("Ghost"))
	assert.Len(t, c.Items(), 1)
}

func TestReloadKeepsReservations(t *testing.T) {
	src := staticSource{products: []domain.Product{soap}}
	c := NewOrderComposer(fixedDay(time.Monday))
	snap, err := catalog.Load(context.Background(), src, 1, 30, "", c.Reservations())
	require.NoError(t, err)
	c.SetCatalog(snap)

	require.NoError(t, c.PickItem("p-soap"))
	require.NoError(t, c.ChangeQty("Soap", 2))

	reloaded, err := catalog.Load(context.Background(), src, 1, 30, "soap", c.Reservations())
	require.NoError(t, err)
	c.SetCatalog(reloaded)

	assert.Equal(t, 1, remaining(t, c, "Soap"))
	require.NoError(t, c.PickItem("p-soap"))
	assert.Len(t, c.Items(), 1)
}

func TestStockCeilingSurvivesCatalogPageChange(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))

	other, err := catalog.Load(context.Background(), staticSource{products: []domain.Product{{ID: "p2", Name: "Rice", Price: 2, Stock: 9}}}, 2, 30, "", c.Reservations())
	require.NoError(t, err)
	c.SetCatalog(other)

	require.ErrorIs(t, c.ChangeQty("Soap", 4), ErrStockExceeded)
	require.NoError(t, c.ChangeQty("Soap", 3))
	assert.Equal(t, 30.0, c.Total())
}

func TestApplyDiscountScenario(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))
	require.NoError(t, c.ChangeQty("Soap", 3))

	c.ApplyDiscount(5)
	draft := c.Draft()
	assert.Equal(t, 5.0, draft.Discount)
	assert.Equal(t, 25.0, draft.Total)

	c.ApplyDiscount(0)
	draft = c.Draft()
	assert.Equal(t, 0.0, draft.Discount)
	assert.Equal(t, 30.0, draft.Total)
}

func TestApplyDiscountRejectsOutOfRange(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))

	c.ApplyDiscount(-2)
	assert.Equal(t, 10.0, c.Total())

	c.ApplyDiscount(10.01)
	assert.Equal(t, 0.0, c.Draft().Discount)
	assert.Equal(t, 10.0, c.Total())

	c.ApplyDiscount(10)
	assert.Equal(t, 0.0, c.Total())
}

func TestLineMutationClearsDiscount(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	require.NoError(t, c.PickItem("p-soap"))
	c.ApplyDiscount(3)

	require.NoError(t, c.ChangeQty("Soap", 2))
	assert.Equal(t, 0.0, c.Draft().Discount)
	assert.Equal(t, 20.0, c.Total())
}

func TestPickWorker(t *testing.T) {
	c := newComposer(t, time.Monday, soap)
	c.SetWorkers([]domain.Worker{{ID: "w1", Name: "Joao"}})

	assert.Equal(t, domain.DeliveredByNone, c.Draft().DeliveredBy)
	require.NoError(t, c.PickWorker("Joao"))
	assert.Equal(t, "Joao", c.Draft().DeliveredBy)
	require.ErrorIs(t, c.PickWorker("Maria"), ErrUnknownWorker)
	assert.Equal(t, "Joao", c.Draft().DeliveredBy)
	require.NoError(t, c.PickWorker(domain.DeliveredByNone))
	assert.Equal(t, domain.DeliveredByNone, c.Draft().DeliveredBy)
}

func TestSetAnotationsDropsBlanks(t *testing.T) {
	c := NewOrderComposer(nil)
	c.SetAnotations([]string{" ring twice ", "", "  "})
	assert.Equal(t, []string{"ring twice"}, c.Draft().Anotations)
}

// TestTotalInvariantUnderRandomMutations drives random pick/change/delete
// sequences and checks the bookkeeping after every step.
func TestTotalInvariantUnderRandomMutations(t *testing.T) {
	products := []domain.Product{
		{ID: "a", Name: "A", Price: 1.1, Stock: 4},
		{ID: "b", Name: "B", Price: 2.35, Stock: 2},
		{ID: "c", Name: "C", Price: 0.3, Stock: 7},
		{ID: "d", Name: "D", Price: 9.99, Stock: 0},
	}
	rng := rand.New(rand.NewSource(42))
	c := newComposer(t, time.Friday, products...)

	for step := 0; step < 500; step++ {
		product := products[rng.Intn(len(products))]
		switch rng.Intn(3) {
		case 0:
			_ = c.PickItem(product.ID)
		case 1:
			_ = c.ChangeQty(product.Name, rng.Intn(9)-1)
		case 2:
			_ = c.DeleteItem(product.Name)
		}

		sum := 0.0
		held := map[string]int{}
		for _, item := range c.Items() {
			sum += item.Price * float64(item.Qty)
			held[item.Name] = item.Qty
			assert.Equal(t, item.Price*float64(item.Qty), item.SubTotal)
		}
		require.True(t, math.Abs(sum-c.Total()) < 1e-9, "step %d: total %v != %v", step, c.Total(), sum)
		for _, p := range products {
			r := remaining(t, c, p.Name)
			require.GreaterOrEqual(t, r, 0)
			require.Equal(t, p.Stock-held[p.Name], r, "step %d: remaining of %s", step, p.Name)
		}
	}
}
