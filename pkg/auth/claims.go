package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Name   string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to storefront clients.
type AccessTokenClaims struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Name   string     `json:"name,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}
