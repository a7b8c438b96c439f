package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
)

const cartKey = "customer-cart"

var ErrItemUnavailable = errors.New("menu item is not available")

// Line is one cart entry. Item is the menu snapshot taken when it was added.
type Line struct {
	Item model.MenuItem `json:"menuItem"`
	Qty  int            `json:"quantity"`
}

type cartBlob struct {
	Items []Line `json:"items"`
}

// Cart is the guest's basket, persisted under one key so it survives a
// restart. Quantities are always at least 1; lowering one to zero removes
// the line.
type Cart struct {
	store kvstore.Store

	mu    sync.Mutex
	lines []Line
}

// LoadCart reads the persisted cart, starting empty when there is none or it
// cannot be decoded.
func LoadCart(ctx context.Context, store kvstore.Store) (*Cart, error) {
	c := &Cart{store: store}
	raw, ok, err := store.Get(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return c, nil
	}
	var blob cartBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return c, nil
	}
	for _, l := range blob.Items {
		if l.Qty > 0 && l.Item.ID > 0 {
			c.lines = append(c.lines, l)
		}
	}
	return c, nil
}

// Add puts one more of item in the cart.
func (c *Cart) Add(ctx context.Context, item model.MenuItem) error {
	if !item.IsAvailable {
		return ErrItemUnavailable
	}
	return c.mutate(ctx, func(lines []Line) []Line {
		for i := range lines {
			if lines[i].Item.ID == item.ID {
				lines[i].Qty++
				return lines
			}
		}
		return append(lines, Line{Item: item, Qty: 1})
	})
}

func (c *Cart) Remove(ctx context.Context, menuItemID int64) error {
	return c.mutate(ctx, func(lines []Line) []Line {
		return removeLine(lines, menuItemID)
	})
}

// UpdateQuantity sets the quantity of a line already in the cart. A quantity
// of zero or less removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, menuItemID int64, qty int) error {
	return c.mutate(ctx, func(lines []Line) []Line {
		if qty <= 0 {
			return removeLine(lines, menuItemID)
		}
		for i := range lines {
			if lines[i].Item.ID == menuItemID {
				lines[i].Qty = qty
			}
		}
		return lines
	})
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]Line) []Line { return nil })
}

// Lines returns a copy of the cart contents in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, l := range c.lines {
		n += l.Qty
	}
	return n
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// mutate applies fn to a copy of the lines and commits it only once it has
// been persisted.
func (c *Cart) mutate(ctx context.Context, fn func([]Line) []Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(append([]Line(nil), c.lines...))
	raw, err := json.Marshal(cartBlob{Items: nonNil(next)})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := c.store.Set(ctx, cartKey, string(raw)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	c.lines = next
	return nil
}

func removeLine(lines []Line, menuItemID int64) []Line {
	out := lines[:0]
	for _, l := range lines {
		if l.Item.ID != menuItemID {
			out = append(out, l)
		}
	}
	return out
}

func nonNil(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	return lines
}
