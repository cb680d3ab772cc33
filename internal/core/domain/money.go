package domain

import (
	"fmt"
	"math"
	"strconv"
)

const (
	opAdd      = "add"
	opSubtract = "subtract"
)

// Money is an integer amount in a single currency. Values are never mutated;
// every operation returns a new Money.
type Money struct {
	Currency string
	Amount   int64
}

func NewMoney(currency string, amount int64) Money {
	return Money{Currency: currency, Amount: amount}
}

func (m Money) Add(other Money) (Money, error) {
	if other.Currency != m.Currency {
		return Money{}, &CurrencyMismatchError{Op: opAdd, Left: m.Currency, Right: other.Currency}
	}
	return Money{Currency: m.Currency, Amount: m.Amount + other.Amount}, nil
}

// Subtract returns m - other. The result may be negative.
func (m Money) Subtract(other Money) (Money, error) {
	if other.Currency != m.Currency {
		return Money{}, &CurrencyMismatchError{Op: opSubtract, Left: m.Currency, Right: other.Currency}
	}
	return Money{Currency: m.Currency, Amount: m.Amount - other.Amount}, nil
}

// Scale multiplies m by an integer multiplier of any Go integer type.
// Multiplying by another Money, or by anything that is not an integer,
// fails with ErrTypeMismatch.
func (m Money) Scale(multiplier any) (Money, error) {
	var n int64
	switch v := multiplier.(type) {
	case Money, *Money:
		return Money{}, fmt.Errorf("%w: cannot multiply money by money", ErrTypeMismatch)
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Money{}, fmt.Errorf("%w: multiplier %d overflows int64", ErrTypeMismatch, v)
		}
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return Money{}, fmt.Errorf("%w: multiplier %d overflows int64", ErrTypeMismatch, v)
		}
		n = int64(v)
	default:
		return Money{}, fmt.Errorf("%w: cannot multiply money by %T", ErrTypeMismatch, multiplier)
	}

	return m.Times(n), nil
}

func (m Money) Times(n int64) Money {
	return Money{Currency: m.Currency, Amount: m.Amount * n}
}

func (m Money) String() string {
	return strconv.FormatInt(m.Amount, 10) + " " + m.Currency
}
