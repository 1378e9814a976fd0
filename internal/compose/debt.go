package compose

import (
	"storeconsole/internal/domain"
)

type DebtDraft struct {
	Items       []domain.LineItem `json:"items"`
	Value       float64           `json:"value"`
	Paid        float64           `json:"paid"`
	SourceOrder string            `json:"sourceOrder"`
}

// DebtComposer builds a debt by copying the lines of a placed order. Debts
// refer to fulfilled orders, so no stock is tracked.
type DebtComposer struct {
	items       []domain.LineItem
	value       float64
	paid        float64
	sourceOrder string
}

func NewDebtComposer() *DebtComposer {
	return &DebtComposer{items: []domain.LineItem{}}
}

// PickOrderAsTemplate replaces the draft's lines with a copy of the order's
// lines and takes the order total as the debt value.
func (c *DebtComposer) PickOrderAsTemplate(order domain.Order) {
	c.items = append(make([]domain.LineItem, 0, len(order.Items)), order.Items...)
	c.value = order.Total
	c.paid = 0
	c.sourceOrder = order.ID
}

// ChangeQty sets a line's quantity; anything below 1 becomes 1.
func (c *DebtComposer) ChangeQty(name string, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	idx := c.indexOf(name)
	if idx < 0 {
		return nil
	}
	c.items[idx].Qty = qty
	c.items[idx].SubTotal = c.items[idx].Price * float64(qty)
	c.recalculate()
	return nil
}

// DeleteItem removes a line. Emptying the draft deselects the source order.
func (c *DebtComposer) DeleteItem(name string) error {
	idx := c.indexOf(name)
	if idx < 0 {
		return nil
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.recalculate()
	if len(c.items) == 0 {
		c.sourceOrder = ""
	}
	return nil
}

// ApplyPayment records an amount already paid. Each call subtracts from the
// current value, so repeated payments compound; zero or negative amounts
// restore the value from the lines.
func (c *DebtComposer) ApplyPayment(amount float64) {
	if amount <= 0 {
		c.value = calcTotal(c.items)
		c.paid = 0
		return
	}
	c.value -= amount
	c.paid = amount
}

func (c *DebtComposer) Value() float64 { return c.value }

func (c *DebtComposer) SourceOrder() string { return c.sourceOrder }

func (c *DebtComposer) Items() []domain.LineItem {
	return append([]domain.LineItem(nil), c.items...)
}

func (c *DebtComposer) Draft() DebtDraft {
	return DebtDraft{
		Items:       c.Items(),
		Value:       c.value,
		Paid:        c.paid,
		SourceOrder: c.sourceOrder,
	}
}

func (c *DebtComposer) ItemList() ItemList {
	return EditableList(c.Items(), c)
}

func (c *DebtComposer) recalculate() {
	c.paid = 0
	c.value = calcTotal(c.items)
}

func (c *DebtComposer) indexOf(name string) int {
	for i, item := range c.items {
		if item.Name == name {
			return i
		}
	}
	return -1
}
