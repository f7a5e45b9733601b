// Package cart holds the operator's selection of sale lines before commit.
//
// A Cart performs no I/O. It keeps at most one line per product, bounds each
// line's quantity to [1, available-at-selection] and recomputes the running
// total after every mutation. It is not safe for concurrent use; sessions
// that share a cart across goroutines must serialize access.
package cart

import (
	"errors"
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"utilisoft/backend/internal/domain"
)

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrStockLimitReached = errors.New("stock limit reached")
	ErrLineNotFound      = errors.New("cart line not found")
)

const noSelection = -1

type Cart struct {
	lines    []domain.SaleItem
	total    decimal.Decimal
	selected int
}

func New() *Cart {
	return &Cart{selected: noSelection}
}

// AddOrIncrement merges item into the cart and returns the index of the line
// it landed on. A repeated pick of the same product adds exactly one unit to
// the existing line regardless of item.Quantity.
func (c *Cart) AddOrIncrement(item domain.SaleItem) (int, error) {
	if item.Available <= 0 {
		return noSelection, ErrOutOfStock
	}

	if idx := c.indexOf(item.ProductID); idx >= 0 {
		line := &c.lines[idx]
		if line.Quantity >= line.Available {
			return idx, ErrStockLimitReached
		}
		line.Quantity++
		line.TotalPrice = lineTotal(*line)
		c.recompute()
		return idx, nil
	}

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.Quantity > item.Available {
		return noSelection, ErrStockLimitReached
	}
	item.TotalPrice = lineTotal(item)
	c.lines = append(c.lines, item)
	c.selected = len(c.lines) - 1
	c.recompute()
	return c.selected, nil
}

func (c *Cart) IncrementLine(index int) error {
	if !c.inRange(index) {
		return ErrLineNotFound
	}
	line := &c.lines[index]
	if line.Quantity >= line.Available {
		return ErrStockLimitReached
	}
	line.Quantity++
	line.TotalPrice = lineTotal(*line)
	c.recompute()
	return nil
}

// DecrementLine removes one unit from the line. At quantity 1 it leaves the
// line untouched; removing it is the caller's decision.
func (c *Cart) DecrementLine(index int) error {
	if !c.inRange(index) {
		return ErrLineNotFound
	}
	line := &c.lines[index]
	if line.Quantity <= 1 {
		return nil
	}
	line.Quantity--
	line.TotalPrice = lineTotal(*line)
	c.recompute()
	return nil
}

// RemoveLine drops the line at index and shifts later lines down by one.
// The selection follows its line; selecting the removed line clears it.
// Out-of-range indexes are ignored.
func (c *Cart) RemoveLine(index int) {
	if !c.inRange(index) {
		return
	}
	c.lines = slices.Delete(c.lines, index, index+1)
	switch {
	case c.selected == index:
		c.selected = noSelection
	case c.selected > index:
		c.selected--
	}
	c.recompute()
}

func (c *Cart) Clear() {
	c.lines = nil
	c.selected = noSelection
	c.recompute()
}

func (c *Cart) Total() decimal.Decimal {
	return c.total
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a read-only view of the cart as it was at call time.
// The sequence can be ranged over any number of times.
func (c *Cart) Lines() iter.Seq[domain.SaleItem] {
	snapshot := c.Items()
	return func(yield func(domain.SaleItem) bool) {
		for _, item := range snapshot {
			if !yield(item) {
				return
			}
		}
	}
}

// Items returns a copy of the lines in order.
func (c *Cart) Items() []domain.SaleItem {
	return slices.Clone(c.lines)
}

// Select marks index as the highlighted line. It reports false for an
// out-of-range index and leaves the previous selection in place.
func (c *Cart) Select(index int) bool {
	if !c.inRange(index) {
		return false
	}
	c.selected = index
	return true
}

func (c *Cart) Selected() (int, bool) {
	return c.selected, c.selected != noSelection
}

func (c *Cart) indexOf(productID int64) int {
	return slices.IndexFunc(c.lines, func(line domain.SaleItem) bool {
		return line.ProductID == productID
	})
}

func (c *Cart) inRange(index int) bool {
	return index >= 0 && index < len(c.lines)
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.TotalPrice)
	}
	c.total = total
}

func lineTotal(item domain.SaleItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}
