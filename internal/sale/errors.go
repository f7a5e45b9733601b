package sale

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySale         = errors.New("sale has no items")
	ErrNotAuthenticated  = errors.New("operator is not authenticated")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("sale line quantity must be at least 1")
	ErrWriteFailed       = errors.New("sale could not be recorded")

	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrDuplicateSubmission = errors.New("sale already submitted")
)

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError reports the live stock that blocked a sale.
// Requested is the total asked for that product across the whole sale.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// WriteFailedError wraps the storage error that aborted a sale. Nothing from
// the failed sale was persisted.
type WriteFailedError struct {
	Err error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("sale could not be recorded: %v", e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

func (e *WriteFailedError) Is(target error) bool {
	return target == ErrWriteFailed
}
