package compose

import (
	"strings"
	"time"

	"storeconsole/internal/catalog"
	"storeconsole/internal/domain"
	"storeconsole/internal/pricing"
)

// OrderDraft is the in-progress order as it would be submitted.
type OrderDraft struct {
	Items       []domain.LineItem `json:"items"`
	Anotations  []string          `json:"anotations"`
	DeliveredBy string            `json:"deliveredBy"`
	Discount    float64           `json:"discount"`
	Total       float64           `json:"total"`
}

// OrderComposer holds one order being built against a catalog snapshot.
// It is not safe for concurrent use.
type OrderComposer struct {
	today       func() time.Weekday
	catalog     *catalog.Snapshot
	workers     []domain.Worker
	items       []domain.LineItem
	stocks      map[string]int
	anotations  []string
	deliveredBy string
	discount    float64
	total       float64
}

func NewOrderComposer(today func() time.Weekday) *OrderComposer {
	if today == nil {
		today = func() time.Weekday { return time.Now().Weekday() }
	}
	return &OrderComposer{
		today:       today,
		catalog:     catalog.Empty(),
		items:       make([]domain.LineItem, 0, 8),
		stocks:      make(map[string]int),
		anotations:  []string{},
		deliveredBy: domain.DeliveredByNone,
	}
}

// SetCatalog swaps in a freshly loaded snapshot. The snapshot is expected to
// have been loaded with Reservations so remaining quantities already account
// for the draft.
func (c *OrderComposer) SetCatalog(snap *catalog.Snapshot) {
	if snap == nil {
		snap = catalog.Empty()
	}
	c.catalog = snap
	for _, item := range c.items {
		if product, ok := snap.ByName(item.Name); ok {
			c.stocks[item.Name] = product.Stock
		}
	}
}

func (c *OrderComposer) Catalog() *catalog.Snapshot { return c.catalog }

func (c *OrderComposer) SetWorkers(workers []domain.Worker) {
	c.workers = append([]domain.Worker(nil), workers...)
}

func (c *OrderComposer) Workers() []domain.Worker {
	return append([]domain.Worker(nil), c.workers...)
}

// Reservations maps product names to the quantity the draft holds.
func (c *OrderComposer) Reservations() map[string]int {
	out := make(map[string]int, len(c.items))
	for _, item := range c.items {
		out[item.Name] = item.Qty
	}
	return out
}

// PickItem adds one unit of the product as a new line at the top of the
// draft. Picking a product that already has a line does nothing; use
// ChangeQty to raise its quantity.
func (c *OrderComposer) PickItem(productID string) error {
	product, ok := c.catalog.ByID(productID)
	if !ok {
		return ErrProductNotFound
	}
	if product.Remaining <= 0 {
		return ErrStockExceeded
	}
	if c.indexOf(product.Name) >= 0 {
		return nil
	}

	price := pricing.DiscountedPrice(product, c.today())
	item := domain.LineItem{
		Name:     product.Name,
		Price:    price,
		Qty:      1,
		SubTotal: price,
	}
	c.items = append([]domain.LineItem{item}, c.items...)
	c.stocks[product.Name] = product.Stock
	c.catalog.SetRemaining(product.Name, product.Remaining-1)
	c.recalculate()
	return nil
}

// ChangeQty sets the quantity of an existing line. The ceiling is the
// product's full stock since qty itself becomes the new reservation.
func (c *OrderComposer) ChangeQty(name string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	idx := c.indexOf(name)
	if idx < 0 {
		return nil
	}
	stock := c.stockOf(name)
	if qty > stock {
		return ErrStockExceeded
	}

	c.items[idx].Qty = qty
	c.items[idx].SubTotal = c.items[idx].Price * float64(qty)
	c.catalog.SetRemaining(name, stock-qty)
	c.recalculate()
	return nil
}

// DeleteItem removes the line for name and releases its reservation.
func (c *OrderComposer) DeleteItem(name string) error {
	idx := c.indexOf(name)
	if idx < 0 {
		return nil
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.catalog.SetRemaining(name, c.stockOf(name))
	delete(c.stocks, name)
	c.recalculate()
	return nil
}

// PickWorker assigns the delivery worker. domain.DeliveredByNone clears it.
func (c *OrderComposer) PickWorker(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == domain.DeliveredByNone {
		c.deliveredBy = domain.DeliveredByNone
		return nil
	}
	for _, worker := range c.workers {
		if worker.Name == name {
			c.deliveredBy = name
			return nil
		}
	}
	return ErrUnknownWorker
}

func (c *OrderComposer) SetAnotations(notes []string) {
	cleaned := make([]string, 0, len(notes))
	for _, note := range notes {
		if note = strings.TrimSpace(note); note != "" {
			cleaned = append(cleaned, note)
		}
	}
	c.anotations = cleaned
}

// ApplyDiscount subtracts value from the item subtotal. The value is an
// absolute amount even though the field is labelled as a percentage; totals
// must keep matching what the backend accepts. Zero, negative or values
// above the subtotal clear the discount.
func (c *OrderComposer) ApplyDiscount(value float64) {
	subtotal := calcTotal(c.items)
	if value <= 0 || value > subtotal {
		c.discount = 0
		c.total = subtotal
		return
	}
	c.discount = value
	c.total = subtotal - value
}

func (c *OrderComposer) Subtotal() float64 { return calcTotal(c.items) }

func (c *OrderComposer) Total() float64 { return c.total }

func (c *OrderComposer) Items() []domain.LineItem {
	return append([]domain.LineItem(nil), c.items...)
}

func (c *OrderComposer) Draft() OrderDraft {
	return OrderDraft{
		Items:       c.Items(),
		Anotations:  append([]string{}, c.anotations...),
		DeliveredBy: c.deliveredBy,
		Discount:    c.discount,
		Total:       c.total,
	}
}

// ItemList exposes the draft's lines with this composer as editor.
func (c *OrderComposer) ItemList() ItemList {
	return EditableList(c.Items(), c)
}

// recalculate runs after every line mutation. A manual discount does not
// survive a change to the lines it was computed against.
func (c *OrderComposer) recalculate() {
	c.discount = 0
	c.total = calcTotal(c.items)
}

func (c *OrderComposer) indexOf(name string) int {
	for i, item := range c.items {
		if item.Name == name {
			return i
		}
	}
	return -1
}

func (c *OrderComposer) stockOf(name string) int {
	if product, ok := c.catalog.ByName(name); ok {
		return product.Stock
	}
	return c.stocks[name]
}

// calcTotal sums price*qty at full precision; rounding belongs to the
// display and submission boundaries.
func calcTotal(items []domain.LineItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Qty)
	}
	return total
}
