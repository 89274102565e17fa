package cart

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// LineItem is one product in a cart. Quantity is always at least 1; a line
// that would drop to zero is removed instead.
type LineItem struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    types.Money `json:"price"`
	Image    string      `json:"image"`
	Quantity int         `json:"quantity"`
}

// LineTotal returns price times quantity.
func (l LineItem) LineTotal() types.Money {
	return l.Price.Times(l.Quantity)
}

// SelectedItem is a frozen copy of a line taken when the buyer picks it for
// checkout. Later cart edits do not change it.
type SelectedItem struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     types.Money `json:"price"`
	ItemCount int         `json:"itemCount"`
	Image     string      `json:"image"`
}

// Snapshot is the full cart state after one mutation.
type Snapshot struct {
	UserID  string
	Version uint64
	Items   []LineItem
}

// SnapshotSink receives every post-mutation snapshot. Enqueue must not block.
type SnapshotSink interface {
	Enqueue(snapshot Snapshot)
}

// Cart is the in-memory cart of one signed-in user. Mutations are serialized
// and visible immediately; persistence happens behind the sink.
type Cart struct {
	mu      sync.Mutex
	userID  string
	items   map[string]LineItem
	order   []string
	version uint64

	sink SnapshotSink
	logg *logger.Logger
}

// New builds a cart seeded with items (typically the remote mirror).
func New(userID string, items []LineItem, sink SnapshotSink, logg *logger.Logger) *Cart {
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Cart{
		userID: userID,
		items:  make(map[string]LineItem, len(items)),
		sink:   sink,
		logg:   logg,
	}
	for _, item := range items {
		if item.ID == "" || item.Quantity < 1 {
			continue
		}
		if _, ok := c.items[item.ID]; !ok {
			c.order = append(c.order, item.ID)
		}
		c.items[item.ID] = item
	}
	return c
}

// UserID returns the owner of the cart.
func (c *Cart) UserID() string {
	return c.userID
}

// AddItem adds one unit of item. A new line starts at quantity 1; an existing
// line keeps its descriptive fields and is incremented.
func (c *Cart) AddItem(ctx context.Context, item LineItem) (LineItem, error) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if item.Price < 0 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.items[item.ID]
	if ok {
		line.Quantity++
	} else {
		line = item
		line.Quantity = 1
		c.order = append(c.order, item.ID)
	}
	c.items[item.ID] = line
	c.publishLocked()

	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
		"user_id":  c.userID,
		"item_id":  item.ID,
		"quantity": line.Quantity,
	}), "cart item added")
	return line, nil
}

// DecrementItem removes one unit of id, dropping the line at zero. It reports
// whether the line existed; an absent id is logged and ignored.
func (c *Cart) DecrementItem(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.items[id]
	if !ok {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"user_id": c.userID,
			"item_id": id,
		}), "decrement of item not in cart ignored")
		return false
	}
	if line.Quantity <= 1 {
		c.deleteLocked(id)
	} else {
		line.Quantity--
		c.items[id] = line
	}
	c.publishLocked()
	return true
}

// RemoveItem drops the whole line. It reports whether the line existed.
func (c *Cart) RemoveItem(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false
	}
	c.deleteLocked(id)
	c.publishLocked()
	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{"user_id": c.userID, "item_id": id}), "cart item removed")
	return true
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = map[string]LineItem{}
	c.order = nil
	c.publishLocked()
	c.logg.Info(c.logg.WithField(ctx, "user_id", c.userID), "cart cleared")
}

// Count is the sum of all line quantities.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, line := range c.items {
		total += line.Quantity
	}
	return total
}

// Subtotal is the sum of price times quantity over all lines.
func (c *Cart) Subtotal() types.Money {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total types.Money
	for _, line := range c.items {
		total = total.Add(line.LineTotal())
	}
	return total
}

// Items returns the lines in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

// Item returns one line.
func (c *Cart) Item(id string) (LineItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.items[id]
	return line, ok
}

// Version is the number of mutations applied so far.
func (c *Cart) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Select freezes the lines named by ids for checkout, in the order given.
func (c *Cart) Select(ids []string) ([]SelectedItem, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select at least one item")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(ids))
	out := make([]SelectedItem, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		line, ok := c.items[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is not in the cart").
				WithDetails(map[string]any{"item_id": id})
		}
		out = append(out, SelectedItem{
			ID:        line.ID,
			Name:      line.Name,
			Price:     line.Price,
			ItemCount: line.Quantity,
			Image:     line.Image,
		})
	}
	return out, nil
}

// SelectionTotals sums price and quantity over a selection.
func SelectionTotals(items []SelectedItem) (types.Money, int) {
	var price types.Money
	qty := 0
	for _, item := range items {
		price = price.Add(item.Price.Times(item.ItemCount))
		qty += item.ItemCount
	}
	return price, qty
}

func (c *Cart) deleteLocked(id string) {
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) itemsLocked() []LineItem {
	out := make([]LineItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// publishLocked stamps a new version and hands the snapshot to the sink while
// the lock is held, so the sink sees versions in mutation order.
func (c *Cart) publishLocked() {
	c.version++
	if c.sink == nil {
		return
	}
	c.sink.Enqueue(Snapshot{UserID: c.userID, Version: c.version, Items: c.itemsLocked()})
}
