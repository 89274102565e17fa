package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
)

const (
	minStar = 1
	maxStar = 5
)

// ProductsCollection holds the product documents carrying rate aggregates.
const ProductsCollection = "products"

// Rating is a product's running star average.
type Rating struct {
	Rate  decimal.Decimal
	Count int64
}

// RateString renders the rate the way product documents store it, e.g. "4.3".
func (r Rating) RateString() string {
	return r.Rate.StringFixed(1)
}

// ValidateStar rejects stars outside 1..5.
func ValidateStar(star int) error {
	if star < minStar || star > maxStar {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("star must be between %d and %d", minStar, maxStar)).
			WithDetails(map[string]any{"field": "star"})
	}
	return nil
}

// ComputeRating folds one star into a running mean:
// (rate*count + star) / (count+1), rounded to one decimal place.
func ComputeRating(current Rating, star int) (Rating, error) {
	if err := ValidateStar(star); err != nil {
		return Rating{}, err
	}
	if current.Count < 0 {
		return Rating{}, fmt.Errorf("negative rate count %d", current.Count)
	}
	total := current.Rate.Mul(decimal.NewFromInt(current.Count)).Add(decimal.NewFromInt(int64(star)))
	count := current.Count + 1
	return Rating{
		Rate:  total.Div(decimal.NewFromInt(count)).Round(1),
		Count: count,
	}, nil
}

// DecodeRating reads rate and rateCount from a product document. Missing
// fields mean the product was never rated.
func DecodeRating(doc docstore.Document) (Rating, error) {
	f := doc.Fields()
	rating := Rating{Rate: decimal.Zero}
	raw, isString := doc.Data["rate"].(string)
	unrated := isString && strings.TrimSpace(raw) == ""
	if f.Has("rate") && !unrated {
		rate, err := f.Decimal("rate")
		if err != nil {
			return Rating{}, err
		}
		rating.Rate = rate
	}
	count, err := f.OptInt("rateCount", 0)
	if err != nil {
		return Rating{}, err
	}
	if count < 0 {
		return Rating{}, fmt.Errorf("%w: %s/%s.rateCount: negative", docstore.ErrMalformed, doc.Collection, doc.ID)
	}
	rating.Count = count
	return rating, nil
}
