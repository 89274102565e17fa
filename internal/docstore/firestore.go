package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// Firestore caps a single commit at 500 writes.
const firestoreMaxBatch = 500

// FirestoreStore is the production backend.
type FirestoreStore struct {
	client *firestore.Client
	logg   *logger.Logger

	wg sync.WaitGroup
}

// NewFirestoreStore dials Firestore for the configured project/database.
func NewFirestoreStore(ctx context.Context, gcp config.GCPConfig, logg *logger.Logger) (*FirestoreStore, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	var opts []option.ClientOption
	if gcp.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(gcp.CredentialsFile))
	}

	databaseID := strings.TrimSpace(gcp.FirestoreDB)
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient failed (project=%s): %w", projectID, err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"project": projectID, "database": databaseID}), "firestore client initialized")
	return &FirestoreStore{client: client, logg: logg}, nil
}

func (s *FirestoreStore) doc(collection, id string) (*firestore.DocumentRef, error) {
	col := s.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	ref := col.Doc(id)
	if ref == nil {
		return nil, fmt.Errorf("invalid document id %q", id)
	}
	return ref, nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return snapshotToDocument(collection, snap), nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	col := s.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	q := col.Query
	for _, f := range filters {
		if f.Op != OpEqual {
			return nil, fmt.Errorf("unsupported query operator %q", f.Op)
		}
		q = q.Where(f.Field, string(f.Op), f.Value)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []Document{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		out = append(out, *snapshotToDocument(collection, snap))
	}
	return out, nil
}

func (s *FirestoreStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > firestoreMaxBatch {
		return fmt.Errorf("batch of %d writes exceeds the %d write limit", len(ops), firestoreMaxBatch)
	}

	batch := s.client.Batch()
	for _, op := range ops {
		ref, err := s.doc(op.Collection, op.ID)
		if err != nil {
			return err
		}
		switch op.Kind {
		case enums.WriteKindDelete:
			batch.Delete(ref)
		default:
			batch.Set(ref, op.Data)
		}
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: tx})
	})
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) Get(collection, id string) (*Document, error) {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return nil, err
	}
	snap, err := t.tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocument(collection, snap), nil
}

func (t *firestoreTx) Set(collection, id string, data map[string]any) error {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, data)
}

// Subscribe streams realtime snapshots of one document.
func (s *FirestoreStore) Subscribe(ctx context.Context, collection, id string, onChange func(*Document)) (Unsubscribe, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange is required")
	}
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	iter := ref.Snapshots(subCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			snap, err := iter.Next()
			if err != nil {
				if subCtx.Err() == nil && status.Code(err) != codes.Canceled {
					s.logg.Error(s.logg.WithFields(subCtx, map[string]any{
						"collection": collection,
						"doc_id":     id,
					}), "document snapshot stream ended", err)
				}
				return
			}
			if snap == nil || !snap.Exists() {
				onChange(nil)
				continue
			}
			onChange(snapshotToDocument(collection, snap))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			iter.Stop()
		})
	}, nil
}

func (s *FirestoreStore) Close() error {
	err := s.client.Close()
	s.wg.Wait()
	return err
}

func snapshotToDocument(collection string, snap *firestore.DocumentSnapshot) *Document {
	return &Document{Collection: collection, ID: snap.Ref.ID, Data: snap.Data()}
}
