package products

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	var (
		mu  sync.Mutex
		seq int
	)
	svc, err := NewService(ServiceParams{
		Store: store,
		Now:   func() time.Time { return fixedNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("c%d", seq)
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.BatchWrite(context.Background(), []docstore.WriteOp{{
		Collection: Collection,
		ID:         "p1",
		Kind:       enums.WriteKindUpsert,
		Data: map[string]any{
			"name":      "Bún bò Huế",
			"price":     int64(45000),
			"image":     "bun-bo.png",
			"discount":  int64(10),
			"desc":      "Đặc sản Huế",
			"rate":      "4.3",
			"rateCount": int64(3),
			"comments": []any{
				map[string]any{"id": "c0", "userId": "u9", "content": "Rất ngon", "createdAt": "2026-02-01T10:00:00Z"},
				map[string]any{"content": "no author"},
			},
		},
	}}))
	return svc, store
}

func TestGetDecodesProduct(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	p, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Bún bò Huế", p.Name)
	require.Equal(t, types.Money(45000), p.Price)
	require.Equal(t, types.Money(40500), p.DiscountedPrice())
	require.Equal(t, "4.3", p.Rate)
	require.Equal(t, int64(3), p.RateCount)
	require.Len(t, p.Comments, 1)
	require.Equal(t, "u9", p.Comments[0].UserID)

	item := p.LineItem()
	require.Equal(t, "p1", item.ID)
	require.Equal(t, types.Money(45000), item.Price)
	require.Equal(t, 1, item.Quantity)

	_, err = svc.Get(context.Background(), "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetUnratedProduct(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	require.NoError(t, store.BatchWrite(context.Background(), []docstore.WriteOp{{
		Collection: Collection, ID: "p2", Kind: enums.WriteKindUpsert,
		Data: map[string]any{"name": "Chè", "price": int64(15000)},
	}}))

	p, err := svc.Get(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, "0.0", p.Rate)
	require.Zero(t, p.RateCount)
	require.Empty(t, p.Comments)
	require.Equal(t, types.Money(15000), p.DiscountedPrice())
}

func TestAddCommentAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newTestService(t)

	c, err := svc.AddComment(ctx, AddCommentInput{ProductID: "p1", UserID: "u1", Content: "  Giao hàng nhanh  "})
	require.NoError(t, err)
	require.Equal(t, "c1", c.ID)
	require.Equal(t, "Giao hàng nhanh", c.Content)
	require.Equal(t, fixedNow, c.CreatedAt)

	p, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Comments, 2)
	require.Equal(t, "c1", p.Comments[1].ID)
	require.True(t, fixedNow.Equal(p.Comments[1].CreatedAt))

	doc, err := store.Get(ctx, Collection, "p1")
	require.NoError(t, err)
	require.Equal(t, "4.3", doc.Data["rate"])
	raw, ok := doc.Data["comments"].([]any)
	require.True(t, ok)
	require.Len(t, raw, 3)
}

func TestAddCommentValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddComment(ctx, AddCommentInput{ProductID: "p1", UserID: "u1", Content: " ngon "})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, "comment too short", typed.Message())

	_, err = svc.AddComment(ctx, AddCommentInput{ProductID: "p1", Content: "Rất tuyệt vời"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.AddComment(ctx, AddCommentInput{ProductID: "nope", UserID: "u1", Content: "Rất tuyệt vời"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddCommentConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddComment(ctx, AddCommentInput{ProductID: "p1", UserID: fmt.Sprintf("u%d", i), Content: "Món này ngon lắm"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	}
	require.Positive(t, succeeded)

	p, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Comments, 1+succeeded)
}
