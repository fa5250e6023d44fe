package book

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one resting order sitting inside a PriceLevel, in arrival order.
type Entry struct {
	UserID         uuid.UUID
	OrderID        uuid.UUID
	TotalQuantity  decimal.Decimal
	FilledQuantity decimal.Decimal
}

// Remaining is the unfilled quantity still live at this level.
func (e *Entry) Remaining() decimal.Decimal {
	return e.TotalQuantity.Sub(e.FilledQuantity)
}

// PriceLevel holds every order resting at one price, oldest first, plus a
// running total of remaining quantity so book-level aggregates (used by the
// market-order budget sweep) don't require a rescan.
type PriceLevel struct {
	Price         decimal.Decimal
	Orders        []*Entry
	TotalQuantity decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalQuantity: decimal.Zero}
}

func (l *PriceLevel) push(e *Entry) {
	l.Orders = append(l.Orders, e)
	l.TotalQuantity = l.TotalQuantity.Add(e.Remaining())
}

// removeAt drops the order at index i, maintaining TotalQuantity.
func (l *PriceLevel) removeAt(i int) {
	l.TotalQuantity = l.TotalQuantity.Sub(l.Orders[i].Remaining())
	l.Orders = append(l.Orders[:i], l.Orders[i+1:]...)
}

func (l *PriceLevel) findIndex(orderID uuid.UUID) int {
	for i, e := range l.Orders {
		if e.OrderID == orderID {
			return i
		}
	}
	return -1
}
