package compose

import "errors"

var (
	// ErrStockExceeded is returned when a pick or quantity change would
	// reserve more than the product's stock. The draft is left unchanged.
	ErrStockExceeded   = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrProductNotFound = errors.New("product is not in the loaded catalog")
	ErrUnknownWorker   = errors.New("worker is not in the loaded worker list")
	ErrReadOnly        = errors.New("item list is read-only")
)
