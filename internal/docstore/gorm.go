package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/namthanhstores/storefront-backend/pkg/db"
	"github.com/namthanhstores/storefront-backend/pkg/db/models"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

const defaultPollInterval = time.Second

var errStaleRead = errors.New("stale transaction read")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormStore keeps documents as JSON rows in the documents table. Every write
// bumps the row version; transactions commit only if the versions they read
// are still current.
type GormStore struct {
	db           *gorm.DB
	tx           txRunner
	logg         *logger.Logger
	pollInterval time.Duration
	maxAttempts  int
	now          func() time.Time

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
}

// GormOptions tunes the SQL backend.
type GormOptions struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// NewGormStore builds a store on top of an opened client. The documents table
// must already exist (see pkg/migrate).
func NewGormStore(client *db.Client, logg *logger.Logger, opts GormOptions) (*GormStore, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultTxAttempts
	}
	return &GormStore{
		db:           client.DB(),
		tx:           client,
		logg:         logg,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
		now:          func() time.Time { return time.Now().UTC() },
		closed:       make(chan struct{}),
	}, nil
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row, err := s.load(s.db.WithContext(ctx), collection, id)
	if err != nil {
		return nil, err
	}
	return rowToDocument(row)
}

func (s *GormStore) load(conn *gorm.DB, collection, id string) (*models.Document, error) {
	var row models.Document
	err := conn.Where("collection = ? AND id = ?", collection, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s/%s: %w", collection, id, err)
	}
	return &row, nil
}

func (s *GormStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	var rows []models.Document
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	out := []Document{}
	for i := range rows {
		doc, err := rowToDocument(&rows[i])
		if err != nil {
			return nil, err
		}
		ok, err := matches(doc.Data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *GormStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := s.applyOp(tx, op, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) applyOp(tx *gorm.DB, op WriteOp, now time.Time) error {
	switch op.Kind {
	case enums.WriteKindDelete:
		if err := tx.Where("collection = ? AND id = ?", op.Collection, op.ID).
			Delete(&models.Document{}).Error; err != nil {
			return fmt.Errorf("deleting %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	default:
		raw, err := json.Marshal(op.Data)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", op.Collection, op.ID, err)
		}
		row := models.Document{
			Collection: op.Collection,
			ID:         op.ID,
			Data:       string(raw),
			Version:    1,
			UpdatedAt:  now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"data":       row.Data,
				"updated_at": now,
				"version":    gorm.Expr("documents.version + 1"),
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upserting %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	}
}

func (s *GormStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		gtx := &gormTx{store: s, ctx: ctx, reads: map[string]readMark{}}
		if err := fn(ctx, gtx); err != nil {
			return err
		}

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.commit(tx, gtx)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, errStaleRead) && !db.IsUniqueViolation(err, "") {
			return err
		}
		s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt), "document transaction conflict; retrying")
	}
	return ErrConflict
}

func (s *GormStore) commit(tx *gorm.DB, gtx *gormTx) error {
	now := s.now()
	written := map[string]struct{}{}
	for _, op := range gtx.writes {
		key := docKey(op.Collection, op.ID)
		written[key] = struct{}{}
		raw, err := json.Marshal(op.Data)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", op.Collection, op.ID, err)
		}

		mark, read := gtx.reads[key]
		switch {
		case read && mark.version > 0:
			res := tx.Model(&models.Document{}).
				Where("collection = ? AND id = ? AND version = ?", op.Collection, op.ID, mark.version).
				Updates(map[string]any{
					"data":       string(raw),
					"version":    mark.version + 1,
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("updating %s/%s: %w", op.Collection, op.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return errStaleRead
			}
		case read:
			row := models.Document{Collection: op.Collection, ID: op.ID, Data: string(raw), Version: 1, UpdatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			if err := s.applyOp(tx, WriteOp{Collection: op.Collection, ID: op.ID, Kind: enums.WriteKindUpsert, Data: op.Data}, now); err != nil {
				return err
			}
		}
	}

	for key, mark := range gtx.reads {
		if _, ok := written[key]; ok {
			continue
		}
		var version int64
		err := tx.Model(&models.Document{}).
			Select("version").
			Where("collection = ? AND id = ?", mark.collection, mark.id).
			Scan(&version).Error
		if err != nil {
			return fmt.Errorf("verifying %s/%s: %w", mark.collection, mark.id, err)
		}
		if version != mark.version {
			return errStaleRead
		}
	}
	return nil
}

type readMark struct {
	collection string
	id         string
	version    int64
}

type gormTx struct {
	store  *GormStore
	ctx    context.Context
	reads  map[string]readMark
	writes []WriteOp
}

func (t *gormTx) Get(collection, id string) (*Document, error) {
	if len(t.writes) > 0 {
		return nil, fmt.Errorf("transaction reads must precede writes")
	}
	key := docKey(collection, id)
	row, err := t.store.load(t.store.db.WithContext(t.ctx), collection, id)
	if errors.Is(err, ErrNotFound) {
		t.reads[key] = readMark{collection: collection, id: id}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.reads[key] = readMark{collection: collection, id: id, version: row.Version}
	return rowToDocument(row)
}

func (t *gormTx) Set(collection, id string, data map[string]any) error {
	op := WriteOp{Collection: collection, ID: id, Kind: enums.WriteKindUpsert, Data: data}
	if err := op.Validate(); err != nil {
		return err
	}
	t.writes = append(t.writes, op)
	return nil
}

// Subscribe polls the row at the configured interval and reports version
// changes, including the initial state.
func (s *GormStore) Subscribe(ctx context.Context, collection, id string, onChange func(*Document)) (Unsubscribe, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		lastVersion := int64(-1)
		for {
			row, err := s.load(s.db.WithContext(subCtx), collection, id)
			if subCtx.Err() != nil {
				return
			}
			switch {
			case errors.Is(err, ErrNotFound):
				if lastVersion != 0 {
					lastVersion = 0
					onChange(nil)
				}
			case err != nil:
				s.logg.Warn(s.logg.WithFields(subCtx, map[string]any{
					"collection": collection,
					"doc_id":     id,
					"error":      err.Error(),
				}), "document poll failed")
			case row.Version != lastVersion:
				lastVersion = row.Version
				doc, derr := rowToDocument(row)
				if derr != nil {
					s.logg.Warn(subCtx, derr.Error())
					break
				}
				onChange(doc)
			}

			select {
			case <-subCtx.Done():
				return
			case <-s.closed:
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// Close stops every polling subscription and waits for them to exit.
func (s *GormStore) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.wg.Wait()
	return nil
}

func rowToDocument(row *models.Document) (*Document, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrMalformed, row.Collection, row.ID, err)
	}
	return &Document{Collection: row.Collection, ID: row.ID, Data: data}, nil
}
