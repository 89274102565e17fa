package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/db"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/migrate"
)

type storeFactory func(t *testing.T) docstore.Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) docstore.Store {
			s := docstore.NewMemoryStore()
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"gorm_sqlite": newSQLiteStore,
	}
}

func newSQLiteStore(t *testing.T) docstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, "sqlite3", "up"))

	store, err := docstore.NewGormStore(db.FromGorm(conn), logger.Nop(), docstore.GormOptions{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = sqlDB.Close()
	})
	return store
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store docstore.Store)) {
	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		_, err := store.Get(context.Background(), "products", "nope")
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestBatchWriteUpsertsAndDeletesAtomically(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		col := "users/u1/cart"
		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: col, ID: "p1", Kind: enums.WriteKindUpsert, Data: map[string]any{"id": "p1", "quantity": 2}},
			{Collection: col, ID: "p2", Kind: enums.WriteKindUpsert, Data: map[string]any{"id": "p2", "quantity": 1}},
		}))

		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: col, ID: "p1", Kind: enums.WriteKindUpsert, Data: map[string]any{"id": "p1", "quantity": 3}},
			{Collection: col, ID: "p2", Kind: enums.WriteKindDelete},
		}))

		docs, err := store.Query(ctx, col)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0].ID)
		qty, err := docs[0].Fields().Int("quantity")
		require.NoError(t, err)
		assert.EqualValues(t, 3, qty)
	})
}

func TestBatchWriteRejectsInvalidOpsWithoutWriting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		err := store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "products", ID: "p1", Kind: enums.WriteKindUpsert, Data: map[string]any{"name": "Trà"}},
			{Collection: "products", ID: "", Kind: enums.WriteKindUpsert, Data: map[string]any{}},
		})
		require.Error(t, err)
		_, err = store.Get(ctx, "products", "p1")
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestQueryFiltersByEquality(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "orders", ID: "o1", Kind: enums.WriteKindUpsert, Data: map[string]any{"userId": "u1", "amount": 100000}},
			{Collection: "orders", ID: "o2", Kind: enums.WriteKindUpsert, Data: map[string]any{"userId": "u2", "amount": 100000}},
			{Collection: "orders", ID: "o3", Kind: enums.WriteKindUpsert, Data: map[string]any{"userId": "u1", "amount": 5000}},
		}))

		docs, err := store.Query(ctx, "orders", docstore.Where("userId", "u1"))
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "o1", docs[0].ID)
		assert.Equal(t, "o3", docs[1].ID)

		docs, err = store.Query(ctx, "orders", docstore.Where("userId", "u1"), docstore.Where("amount", int64(5000)))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "o3", docs[0].ID)
	})
}

func TestRunTransactionReadModifyWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "counters", ID: "c", Kind: enums.WriteKindUpsert, Data: map[string]any{"n": 0}},
		}))

		for i := 0; i < 5; i++ {
			require.NoError(t, store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
				doc, err := tx.Get("counters", "c")
				if err != nil {
					return err
				}
				n, err := doc.Fields().Int("n")
				if err != nil {
					return err
				}
				return tx.Set("counters", "c", map[string]any{"n": n + 1})
			}))
		}

		doc, err := store.Get(ctx, "counters", "c")
		require.NoError(t, err)
		n, err := doc.Fields().Int("n")
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
	})
}

func TestRunTransactionErrorDiscardsWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		boom := errors.New("boom")
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if err := tx.Set("products", "p9", map[string]any{"name": "x"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = store.Get(ctx, "products", "p9")
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestRunTransactionRetriesOnConcurrentWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "counters", ID: "c", Kind: enums.WriteKindUpsert, Data: map[string]any{"n": 10}},
		}))

		attempts := 0
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			attempts++
			doc, err := tx.Get("counters", "c")
			if err != nil {
				return err
			}
			n, _ := doc.Fields().Int("n")
			if attempts == 1 {
				// A competing writer lands between our read and commit.
				if err := store.BatchWrite(ctx, []docstore.WriteOp{
					{Collection: "counters", ID: "c", Kind: enums.WriteKindUpsert, Data: map[string]any{"n": n + 100}},
				}); err != nil {
					return err
				}
			}
			return tx.Set("counters", "c", map[string]any{"n": n + 1})
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		doc, err := store.Get(ctx, "counters", "c")
		require.NoError(t, err)
		n, _ := doc.Fields().Int("n")
		assert.EqualValues(t, 111, n)
	})
}

func TestTransactionRejectsReadAfterWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		err := store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
			if err := tx.Set("products", "p1", map[string]any{"name": "x"}); err != nil {
				return err
			}
			_, err := tx.Get("products", "p1")
			return err
		})
		require.Error(t, err)
	})
}

func TestSubscribeDeliversInitialAndChangesUntilUnsubscribed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store docstore.Store) {
		ctx := context.Background()
		var (
			mu   sync.Mutex
			seen []string
		)
		record := func(doc *docstore.Document) {
			mu.Lock()
			defer mu.Unlock()
			if doc == nil {
				seen = append(seen, "<absent>")
				return
			}
			seen = append(seen, doc.Fields().OptString("status"))
		}
		snapshot := func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), seen...)
		}

		unsubscribe, err := store.Subscribe(ctx, "orders", "240101_1", record)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(snapshot()) >= 1 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, "<absent>", snapshot()[0])

		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "orders", ID: "240101_1", Kind: enums.WriteKindUpsert, Data: map[string]any{"status": "Pending"}},
		}))
		require.Eventually(t, func() bool {
			s := snapshot()
			return len(s) >= 2 && s[len(s)-1] == "Pending"
		}, 2*time.Second, 5*time.Millisecond)

		unsubscribe()
		unsubscribe()
		count := len(snapshot())

		require.NoError(t, store.BatchWrite(ctx, []docstore.WriteOp{
			{Collection: "orders", ID: "240101_1", Kind: enums.WriteKindUpsert, Data: map[string]any{"status": "Preparing"}},
		}))
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, count, len(snapshot()), "no callbacks after unsubscribe")
	})
}
