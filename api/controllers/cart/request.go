package cart

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}
