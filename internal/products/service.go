// Package products serves the catalog documents the cart and the rating flow
// read from.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

const minCommentLength = 5

// Service reads products and appends comments.
type Service interface {
	Get(ctx context.Context, productID string) (*Product, error)
	AddComment(ctx context.Context, input AddCommentInput) (*Comment, error)
}

// AddCommentInput is a comment posted by a signed-in user.
type AddCommentInput struct {
	ProductID string
	UserID    string
	Content   string
}

// ServiceParams wires the product service.
type ServiceParams struct {
	Store  docstore.Store
	Logger *logger.Logger
	Now    func() time.Time
	NewID  func() string
}

type service struct {
	store docstore.Store
	logg  *logger.Logger
	now   func() time.Time
	newID func() string
}

// NewService builds the product service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	if params.NewID == nil {
		params.NewID = uuid.NewString
	}
	return &service{store: params.Store, logg: params.Logger, now: params.Now, newID: params.NewID}, nil
}

func (s *service) Get(ctx context.Context, productID string) (*Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	doc, err := s.store.Get(ctx, Collection, productID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	product, err := Decode(*doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode product")
	}
	return product, nil
}

// AddComment appends a comment to the product's comment list.
func (s *service) AddComment(ctx context.Context, input AddCommentInput) (*Comment, error) {
	if input.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to comment")
	}
	content := strings.TrimSpace(input.Content)
	if utf8.RuneCountInString(content) < minCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment too short").
			WithDetails(map[string]any{"field": "content", "min_length": minCommentLength})
	}
	comment := Comment{
		ID:        s.newID(),
		UserID:    input.UserID,
		Content:   content,
		CreatedAt: s.now(),
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(Collection, input.ProductID)
		if errors.Is(err, docstore.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		existing, err := doc.Fields().OptSlice("comments")
		if err != nil {
			return err
		}
		comments := make([]any, 0, len(existing)+1)
		comments = append(comments, existing...)
		comments = append(comments, comment.encode())
		data := doc.Data
		data["comments"] = comments
		return tx.Set(Collection, input.ProductID, data)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		switch {
		case errors.Is(err, docstore.ErrMalformed):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add comment")
		case errors.Is(err, docstore.ErrConflict):
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "add comment")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add comment")
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": input.ProductID,
		"comment_id": comment.ID,
	}), "product comment added")
	return &comment, nil
}
