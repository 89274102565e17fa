package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/namthanhstores/storefront-backend/pkg/auth"
	"github.com/namthanhstores/storefront-backend/pkg/config"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
	"github.com/namthanhstores/storefront-backend/pkg/redis"
)

// JWTProvider verifies HS256 access tokens minted by pkg/auth. With a
// revoker, logged-out tokens are refused until they expire.
type JWTProvider struct {
	cfg     config.JWTConfig
	revoker redis.TokenRevoker
	now     func() time.Time
}

// NewJWTProvider builds the provider. revoker may be nil.
func NewJWTProvider(cfg config.JWTConfig, revoker redis.TokenRevoker) (*JWTProvider, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &JWTProvider{cfg: cfg, revoker: revoker, now: time.Now}, nil
}

func (p *JWTProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := auth.ParseAccessToken(p.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if p.revoker != nil && claims.ID != "" {
		revoked, err := p.revoker.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation")
		}
		if revoked {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked")
		}
	}

	id := &Identity{
		UserID:      claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        roleOrCustomer(string(claims.Role)),
		TokenID:     claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Revoke blocks the identity's token for the rest of its lifetime.
func (p *JWTProvider) Revoke(ctx context.Context, id *Identity) error {
	if p.revoker == nil || id == nil || id.TokenID == "" {
		return nil
	}
	ttl := id.ExpiresAt.Sub(p.now())
	if ttl <= 0 {
		return nil
	}
	if err := p.revoker.RevokeToken(ctx, id.TokenID, ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token")
	}
	return nil
}
