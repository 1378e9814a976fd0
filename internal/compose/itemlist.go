package compose

import (
	"encoding/json"

	"storeconsole/internal/domain"
)

// ItemEditor is the capability to mutate a line-item sequence.
type ItemEditor interface {
	ChangeQty(name string, qty int) error
	DeleteItem(name string) error
}

type ItemListMode string

const (
	ReadOnly ItemListMode = "read-only"
	Editable ItemListMode = "editable"
)

// ItemList is a line-item sequence tagged with whether it can be edited.
// Only the Editable variant carries an editor.
type ItemList struct {
	mode   ItemListMode
	items  []domain.LineItem
	editor ItemEditor
}

func ReadOnlyList(items []domain.LineItem) ItemList {
	return ItemList{mode: ReadOnly, items: items}
}

func EditableList(items []domain.LineItem, editor ItemEditor) ItemList {
	if editor == nil {
		return ReadOnlyList(items)
	}
	return ItemList{mode: Editable, items: items, editor: editor}
}

func (l ItemList) Mode() ItemListMode { return l.mode }

func (l ItemList) Items() []domain.LineItem { return l.items }

func (l ItemList) Editor() (ItemEditor, bool) {
	return l.editor, l.mode == Editable && l.editor != nil
}

func (l ItemList) ChangeQty(name string, qty int) error {
	editor, ok := l.Editor()
	if !ok {
		return ErrReadOnly
	}
	return editor.ChangeQty(name, qty)
}

func (l ItemList) DeleteItem(name string) error {
	editor, ok := l.Editor()
	if !ok {
		return ErrReadOnly
	}
	return editor.DeleteItem(name)
}

func (l ItemList) MarshalJSON() ([]byte, error) {
	items := l.items
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(struct {
		Mode  ItemListMode      `json:"mode"`
		Items []domain.LineItem `json:"items"`
	}{Mode: l.mode, Items: items})
}
