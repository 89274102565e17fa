package types

// Ratings maps a product id to the star a customer gave it on one order.
type Ratings map[string]int

// Has reports whether productID was already rated.
func (r Ratings) Has(productID string) bool {
	_, ok := r[productID]
	return ok
}

// With returns a copy of r with productID set to star.
func (r Ratings) With(productID string, star int) Ratings {
	out := make(Ratings, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[productID] = star
	return out
}

// ToMap converts the ratings into a document field value.
func (r Ratings) ToMap() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = int64(v)
	}
	return out
}
