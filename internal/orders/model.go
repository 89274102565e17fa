package orders

import (
	"fmt"
	"time"

	"github.com/namthanhstores/storefront-backend/internal/docstore"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

// Collection holds one document per payment transaction id.
const Collection = "orders"

// Item is one purchased product and its quantity.
type Item struct {
	ID        string `json:"id"`
	ItemCount int    `json:"itemCount"`
}

// Shipping is the delivery profile captured at checkout.
type Shipping struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

// Feedback is the single free-text review a buyer may leave on a completed order.
type Feedback struct {
	Rate    int    `json:"rate"`
	Comment string `json:"comment"`
}

// Order is the decoded order document.
type Order struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Items     []Item            `json:"items"`
	Amount    types.Money       `json:"amount"`
	CreatedAt time.Time         `json:"createdAt"`
	Status    enums.OrderStatus `json:"status"`
	Shipping  Shipping          `json:"shipping"`
	Ratings   types.Ratings     `json:"ratings,omitempty"`
	Feedback  *Feedback         `json:"feedback,omitempty"`
}

// HasItem reports whether productID is one of the order lines.
func (o *Order) HasItem(productID string) bool {
	for _, item := range o.Items {
		if item.ID == productID {
			return true
		}
	}
	return false
}

// FullyRated reports whether every line has a star rating.
func (o *Order) FullyRated() bool {
	for _, item := range o.Items {
		if !o.Ratings.Has(item.ID) {
			return false
		}
	}
	return len(o.Items) > 0
}

// Decode validates an order document. Documents missing settlement fields
// (user, items, amount, status) are rejected with docstore.ErrMalformed.
func Decode(doc docstore.Document) (*Order, error) {
	f := doc.Fields()
	userID, err := f.String("userId")
	if err != nil {
		return nil, err
	}
	amount, err := f.Int("amount")
	if err != nil {
		return nil, err
	}
	rawStatus, err := f.String("status")
	if err != nil {
		return nil, err
	}
	status, err := enums.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s.status: %v", docstore.ErrMalformed, doc.Collection, doc.ID, err)
	}
	createdAt, err := f.Time("createdAt")
	if err != nil {
		return nil, err
	}

	rawItems, err := f.Slice("items")
	if err != nil {
		return nil, err
	}
	if len(rawItems) == 0 {
		return nil, fmt.Errorf("%w: %s/%s.items: empty", docstore.ErrMalformed, doc.Collection, doc.ID)
	}
	items := make([]Item, 0, len(rawItems))
	for i, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s.items[%d]: expected object", docstore.ErrMalformed, doc.Collection, doc.ID, i)
		}
		itemFields := docstore.FieldsOf(m)
		id, err := itemFields.String("id")
		if err != nil {
			return nil, fmt.Errorf("%s/%s.items[%d]: %w", doc.Collection, doc.ID, i, err)
		}
		count, err := itemFields.Int("itemCount")
		if err != nil {
			return nil, fmt.Errorf("%s/%s.items[%d]: %w", doc.Collection, doc.ID, i, err)
		}
		if count < 1 {
			return nil, fmt.Errorf("%w: %s/%s.items[%d].itemCount: must be at least 1", docstore.ErrMalformed, doc.Collection, doc.ID, i)
		}
		items = append(items, Item{ID: id, ItemCount: int(count)})
	}

	order := &Order{
		ID:        doc.ID,
		UserID:    userID,
		Items:     items,
		Amount:    types.Money(amount),
		CreatedAt: createdAt,
		Status:    status,
		Ratings:   types.Ratings{},
	}

	shipping, err := f.OptMap("shipping")
	if err != nil {
		return nil, err
	}
	if shipping != nil {
		sf := docstore.FieldsOf(shipping)
		order.Shipping = Shipping{
			Name:    sf.OptString("name"),
			Phone:   sf.OptString("phone"),
			Address: sf.OptString("address"),
			Note:    sf.OptString("note"),
		}
	}

	ratings, err := f.OptMap("ratings")
	if err != nil {
		return nil, err
	}
	for productID, raw := range ratings {
		star, err := docstore.FieldsOf(map[string]any{"star": raw}).Int("star")
		if err != nil {
			return nil, fmt.Errorf("%s/%s.ratings.%s: %w", doc.Collection, doc.ID, productID, err)
		}
		order.Ratings[productID] = int(star)
	}

	feedback, err := f.OptMap("feedback")
	if err != nil {
		return nil, err
	}
	if feedback != nil {
		ff := docstore.FieldsOf(feedback)
		rate, err := ff.Int("rate")
		if err != nil {
			return nil, fmt.Errorf("%s/%s.feedback: %w", doc.Collection, doc.ID, err)
		}
		order.Feedback = &Feedback{Rate: int(rate), Comment: ff.OptString("comment")}
	}
	return order, nil
}

// Encode renders the order as a document body.
func (o *Order) Encode() map[string]any {
	items := make([]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{"id": item.ID, "itemCount": int64(item.ItemCount)})
	}
	data := map[string]any{
		"userId":    o.UserID,
		"items":     items,
		"amount":    int64(o.Amount),
		"createdAt": o.CreatedAt.UTC().Format(time.RFC3339Nano),
		"status":    o.Status.String(),
		"shipping": map[string]any{
			"name":    o.Shipping.Name,
			"phone":   o.Shipping.Phone,
			"address": o.Shipping.Address,
			"note":    o.Shipping.Note,
		},
	}
	if len(o.Ratings) > 0 {
		data["ratings"] = o.Ratings.ToMap()
	}
	if o.Feedback != nil {
		data["feedback"] = map[string]any{"rate": int64(o.Feedback.Rate), "comment": o.Feedback.Comment}
	}
	return data
}
