package cart

import (
	cartsvc "github.com/namthanhstores/storefront-backend/internal/cart"
	"github.com/namthanhstores/storefront-backend/pkg/types"
)

type lineResponse struct {
	cartsvc.LineItem
	LineTotal types.Money `json:"lineTotal"`
}

type cartResponse struct {
	Items    []lineResponse `json:"items"`
	Count    int            `json:"count"`
	Subtotal types.Money    `json:"subtotal"`
	Display  string         `json:"subtotalDisplay"`
	Version  uint64         `json:"version"`
}

func newCartResponse(c *cartsvc.Cart) cartResponse {
	items := c.Items()
	lines := make([]lineResponse, 0, len(items))
	var subtotal types.Money
	count := 0
	for _, item := range items {
		lines = append(lines, lineResponse{LineItem: item, LineTotal: item.LineTotal()})
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}
	return cartResponse{
		Items:    lines,
		Count:    count,
		Subtotal: subtotal,
		Display:  subtotal.Format(),
		Version:  c.Version(),
	}
}
