package identity

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/namthanhstores/storefront-backend/pkg/config"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
)

// RoleClaim is the custom claim that grants staff access.
const RoleClaim = "role"

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseProvider verifies Firebase ID tokens.
type FirebaseProvider struct {
	verifier idTokenVerifier
}

// NewFirebaseProvider initialises the Firebase app for the configured project.
func NewFirebaseProvider(ctx context.Context, gcp config.GCPConfig) (*FirebaseProvider, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("gcp project id required")
	}
	var opts []option.ClientOption
	if gcp.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(gcp.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return &FirebaseProvider{verifier: client}, nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token")
	}
	verified, err := p.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if verified.UID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}
	return &Identity{
		UserID:      verified.UID,
		Email:       claimString(verified.Claims, "email"),
		DisplayName: claimString(verified.Claims, "name"),
		Role:        roleOrCustomer(claimString(verified.Claims, RoleClaim)),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
