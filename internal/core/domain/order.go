package domain

import "fmt"

// OrderLine is one line of a customer order. It is a comparable value and is
// used directly as a map key in a batch's allocation set.
type OrderLine struct {
	OrderID string
	SKU     string
	Qty     int
}

func NewOrderLine(orderID, sku string, qty int) (OrderLine, error) {
	if orderID == "" || sku == "" {
		return OrderLine{}, fmt.Errorf("%w: order id and sku are required", ErrInvalidOrderLine)
	}
	if qty <= 0 {
		return OrderLine{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrderLine, qty)
	}

	return OrderLine{OrderID: orderID, SKU: sku, Qty: qty}, nil
}
