package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// CollectionPath is the remote collection mirroring a user's cart.
func CollectionPath(userID string) string {
	return "users/" + userID + "/cart"
}

// DecodeLineItem validates one mirrored cart document.
func DecodeLineItem(doc docstore.Document) (LineItem, error) {
	f := doc.Fields()
	name, err := f.String("name")
	if err != nil {
		return LineItem{}, err
	}
	price, err := f.Int("price")
	if err != nil {
		return LineItem{}, err
	}
	if price < 0 {
		return LineItem{}, fmt.Errorf("%w: %s/%s.price: negative", docstore.ErrMalformed, doc.Collection, doc.ID)
	}
	quantity, err := f.Int("quantity")
	if err != nil {
		return LineItem{}, err
	}
	if quantity < 1 {
		return LineItem{}, fmt.Errorf("%w: %s/%s.quantity: must be at least 1", docstore.ErrMalformed, doc.Collection, doc.ID)
	}
	id := f.OptString("id")
	if id == "" {
		id = doc.ID
	}
	return LineItem{
		ID:       id,
		Name:     name,
		Price:    types.Money(price),
		Image:    f.OptString("image"),
		Quantity: int(quantity),
	}, nil
}

// EncodeLineItem is the document body written for a line.
func EncodeLineItem(item LineItem) map[string]any {
	return map[string]any{
		"id":       item.ID,
		"name":     item.Name,
		"price":    int64(item.Price),
		"image":    item.Image,
		"quantity": int64(item.Quantity),
	}
}

// Repository loads the remote mirror of carts.
type Repository struct {
	store docstore.Store
	logg  *logger.Logger
}

// NewRepository builds a repository over store.
func NewRepository(store docstore.Store, logg *logger.Logger) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{store: store, logg: logg}, nil
}

// Load returns the mirrored lines of userID. Malformed documents are skipped
// and logged; they stay in the store untouched.
func (r *Repository) Load(ctx context.Context, userID string) ([]LineItem, error) {
	docs, err := r.store.Query(ctx, CollectionPath(userID))
	if err != nil {
		return nil, fmt.Errorf("loading cart of %s: %w", userID, err)
	}
	items := make([]LineItem, 0, len(docs))
	for _, doc := range docs {
		item, err := DecodeLineItem(doc)
		if errors.Is(err, docstore.ErrMalformed) {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"user_id": userID,
				"doc_id":  doc.ID,
				"error":   err.Error(),
			}), "skipping malformed cart document")
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
