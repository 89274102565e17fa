// Package docstore is the remote document store the storefront persists carts,
// orders and products in. Documents are addressed by collection path and id;
// collection paths may be nested ("users/{uid}/cart").
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrMalformed is returned by decoders when a document does not match its schema.
	ErrMalformed = errors.New("malformed document")
	// ErrConflict is returned when a transaction kept losing optimistic commits.
	ErrConflict = errors.New("transaction conflict")
)

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
}

// Fields returns a typed accessor over the document data.
func (d *Document) Fields() Fields {
	if d == nil {
		return Fields{}
	}
	return Fields{data: d.Data, collection: d.Collection, id: d.ID}
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual Op = "=="
)

// Filter restricts Query results to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// WriteOp is one entry of an atomic batch write.
type WriteOp struct {
	Collection string
	ID         string
	Kind       enums.WriteKind
	Data       map[string]any
}

// Validate checks the op is addressable and well formed.
func (op WriteOp) Validate() error {
	if strings.TrimSpace(op.Collection) == "" || strings.TrimSpace(op.ID) == "" {
		return fmt.Errorf("write op requires collection and id (got %q/%q)", op.Collection, op.ID)
	}
	if !op.Kind.IsValid() {
		return fmt.Errorf("write op %s/%s has invalid kind %q", op.Collection, op.ID, op.Kind)
	}
	if op.Kind == enums.WriteKindUpsert && op.Data == nil {
		return fmt.Errorf("upsert %s/%s requires data", op.Collection, op.ID)
	}
	return nil
}

// Unsubscribe releases a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Tx is the read-then-write surface available inside RunTransaction. All reads
// must happen before the first Set.
type Tx interface {
	Get(collection, id string) (*Document, error)
	Set(collection, id string, data map[string]any) error
}

// Store is the capability set the storefront needs from the remote store.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// BatchWrite applies every op or none.
	BatchWrite(ctx context.Context, ops []WriteOp) error
	// Subscribe calls onChange with the current state and then with every
	// change; a nil document means the document is absent. The subscription
	// outlives ctx and ends only when the returned func is called.
	Subscribe(ctx context.Context, collection, id string, onChange func(*Document)) (Unsubscribe, error)
	// RunTransaction runs fn with serializable read-modify-write semantics,
	// retrying fn on contention.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

func validateOps(ops []WriteOp) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func docKey(collection, id string) string {
	return collection + "\x00" + id
}
