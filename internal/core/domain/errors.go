package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock       = errors.New("out of stock")
	ErrInvalidOrderLine = errors.New("invalid order line")
	ErrInvalidBatch     = errors.New("invalid batch")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrTypeMismatch     = errors.New("type mismatch")
)

// OutOfStockError is returned by Allocate when no batch can take the line.
type OutOfStockError struct {
	SKU string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock for sku %s", e.SKU)
}

func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}

// CurrencyMismatchError reports which Money operation was attempted across
// two currencies.
type CurrencyMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	switch e.Op {
	case opSubtract:
		return fmt.Sprintf("cannot subtract %s from %s", e.Right, e.Left)
	default:
		return fmt.Sprintf("cannot %s %s to %s", e.Op, e.Right, e.Left)
	}
}

func (e *CurrencyMismatchError) Is(target error) bool {
	return target == ErrCurrencyMismatch
}
