package cart

import (
	"context"
	"sync"
	"testing"

	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

type recordingSink struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *recordingSink) Enqueue(snapshot Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingSink) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snapshots...)
}

func shirt() LineItem {
	return LineItem{ID: "p1", Name: "Áo thun", Price: 100000, Image: "https://img/p1.png"}
}

func TestAddItemTwiceDoublesSubtotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New("u1", nil, nil, nil)

	if _, err := c.AddItem(ctx, shirt()); err != nil {
		t.Fatalf("add: %v", err)
	}
	line, err := c.AddItem(ctx, shirt())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if line.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", line.Quantity)
	}
	if got := c.Count(); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}
	if got := c.Subtotal(); got != types.Money(200000) {
		t.Fatalf("expected subtotal 200000, got %d", got)
	}
}

func TestCountIsSumOfQuantities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New("u1", nil, nil, nil)

	adds := []string{"a", "b", "a", "c", "a", "b"}
	for _, id := range adds {
		if _, err := c.AddItem(ctx, LineItem{ID: id, Name: id, Price: 1000}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	c.DecrementItem(ctx, "a")
	c.RemoveItem(ctx, "c")

	sum := 0
	for _, line := range c.Items() {
		if line.Quantity < 1 {
			t.Fatalf("line %s has quantity %d", line.ID, line.Quantity)
		}
		sum += line.Quantity
	}
	if c.Count() != sum || sum != 4 {
		t.Fatalf("expected count 4 matching lines, got count %d sum %d", c.Count(), sum)
	}
}

func TestAddThenDecrementRestoresCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New("u1", []LineItem{{ID: "p2", Name: "Quần", Price: 50000, Quantity: 3}}, nil, nil)
	before := c.Items()

	for _, item := range []LineItem{shirt(), {ID: "p2", Name: "Quần", Price: 50000}} {
		if _, err := c.AddItem(ctx, item); err != nil {
			t.Fatalf("add: %v", err)
		}
		if !c.DecrementItem(ctx, item.ID) {
			t.Fatalf("expected %s to be present", item.ID)
		}
		after := c.Items()
		if len(after) != len(before) || after[0] != before[0] {
			t.Fatalf("expected %v, got %v", before, after)
		}
	}
	if _, ok := c.Item("p1"); ok {
		t.Fatal("expected p1 line to be gone after decrement to zero")
	}
}

func TestDecrementAbsentItemIsNoop(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	c := New("u1", nil, sink, nil)

	if c.DecrementItem(context.Background(), "missing") {
		t.Fatal("expected decrement of absent item to report false")
	}
	if c.Count() != 0 || len(sink.all()) != 0 {
		t.Fatal("expected no mutation and no snapshot")
	}
}

func TestClearEmptiesCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New("u1", []LineItem{{ID: "a", Name: "A", Price: 1, Quantity: 2}, {ID: "b", Name: "B", Price: 1, Quantity: 1}}, nil, nil)

	c.Clear(ctx)
	if c.Count() != 0 || len(c.Items()) != 0 {
		t.Fatalf("expected empty cart, got %v", c.Items())
	}
	if c.Subtotal() != 0 {
		t.Fatalf("expected zero subtotal, got %d", c.Subtotal())
	}
}

func TestMutationsPublishVersionedSnapshots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sink := &recordingSink{}
	c := New("u1", nil, sink, nil)

	_, _ = c.AddItem(ctx, shirt())
	_, _ = c.AddItem(ctx, shirt())
	c.DecrementItem(ctx, "p1")
	c.Clear(ctx)

	snaps := sink.all()
	if len(snaps) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(snaps))
	}
	for i, snap := range snaps {
		if snap.Version != uint64(i+1) {
			t.Fatalf("snapshot %d has version %d", i, snap.Version)
		}
		if snap.UserID != "u1" {
			t.Fatalf("unexpected user %q", snap.UserID)
		}
	}
	if snaps[1].Items[0].Quantity != 2 || len(snaps[3].Items) != 0 {
		t.Fatalf("unexpected snapshot contents: %+v", snaps)
	}
}

func TestAddItemRejectsMissingID(t *testing.T) {
	t.Parallel()
	c := New("u1", nil, nil, nil)

	_, err := c.AddItem(context.Background(), LineItem{Name: "no id", Price: 10})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectFreezesLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New("u1", []LineItem{
		{ID: "a", Name: "A", Price: 100000, Quantity: 2},
		{ID: "b", Name: "B", Price: 50000, Quantity: 1},
		{ID: "c", Name: "C", Price: 7000, Quantity: 4},
	}, nil, nil)

	selected, err := c.Select([]string{"b", "a"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	_, _ = c.AddItem(ctx, LineItem{ID: "a", Name: "A", Price: 100000})

	if len(selected) != 2 || selected[0].ID != "b" || selected[1].ItemCount != 2 {
		t.Fatalf("unexpected selection %+v", selected)
	}
	price, qty := SelectionTotals(selected)
	if price != 250000 || qty != 3 {
		t.Fatalf("expected 250000/3, got %d/%d", price, qty)
	}

	if _, err := c.Select(nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty selection, got %v", err)
	}
	if _, err := c.Select([]string{"zzz"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown id, got %v", err)
	}
}
