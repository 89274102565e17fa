package products

import (
	"fmt"
	"time"

	"github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/internal/orders"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// Collection holds the catalog documents.
const Collection = orders.ProductsCollection

// Comment is one customer remark on a product.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is a catalog entry.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Price       types.Money `json:"price"`
	Image       string      `json:"image,omitempty"`
	Discount    int64       `json:"discount"`
	Description string      `json:"desc,omitempty"`
	Rate        string      `json:"rate"`
	RateCount   int64       `json:"rateCount"`
	Comments    []Comment   `json:"comments"`
}

// DiscountedPrice applies the percentage discount shown next to the list price.
func (p Product) DiscountedPrice() types.Money {
	if p.Discount <= 0 || p.Discount >= 100 {
		return p.Price
	}
	return types.Money(int64(p.Price) * (100 - p.Discount) / 100)
}

// LineItem is the cart line a single unit of p adds. Carts carry the list price.
func (p Product) LineItem() cart.LineItem {
	return cart.LineItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Quantity: 1,
	}
}

// Decode validates a product document. Comments that do not decode are dropped.
func Decode(doc docstore.Document) (*Product, error) {
	f := doc.Fields()
	name, err := f.String("name")
	if err != nil {
		return nil, err
	}
	price, err := f.Int("price")
	if err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: %s/%s.price: negative", docstore.ErrMalformed, doc.Collection, doc.ID)
	}
	discount, err := f.OptInt("discount", 0)
	if err != nil {
		return nil, err
	}
	rating, err := orders.DecodeRating(doc)
	if err != nil {
		return nil, err
	}
	rawComments, err := f.OptSlice("comments")
	if err != nil {
		return nil, err
	}

	p := &Product{
		ID:          doc.ID,
		Name:        name,
		Price:       types.Money(price),
		Image:       f.OptString("image"),
		Discount:    discount,
		Description: f.OptString("desc"),
		Rate:        rating.RateString(),
		RateCount:   rating.Count,
		Comments:    make([]Comment, 0, len(rawComments)),
	}
	for _, raw := range rawComments {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if c, err := decodeComment(m); err == nil {
			p.Comments = append(p.Comments, c)
		}
	}
	return p, nil
}

func decodeComment(m map[string]any) (Comment, error) {
	f := docstore.FieldsOf(m)
	userID, err := f.String("userId")
	if err != nil {
		return Comment{}, err
	}
	content, err := f.String("content")
	if err != nil {
		return Comment{}, err
	}
	createdAt, err := f.Time("createdAt")
	if err != nil {
		return Comment{}, err
	}
	return Comment{ID: f.OptString("id"), UserID: userID, Content: content, CreatedAt: createdAt}, nil
}

func (c Comment) encode() map[string]any {
	return map[string]any{
		"id":        c.ID,
		"userId":    c.UserID,
		"content":   c.Content,
		"createdAt": c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
