package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/namthanhstores/storefront-backend/pkg/auth"
	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/enums"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// devtoken mints an access token for local testing against the jwt auth
// provider. It only reads the JWT settings, so no other service config is needed.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id (sub claim)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "display name claim")
	role := flag.String("role", string(enums.RoleCustomer), "customer|staff")
	flag.Parse()

	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		logg.Error(ctx, "failed to read jwt config", err)
		os.Exit(1)
	}
	if jwtCfg.Secret == "" {
		fmt.Fprintf(os.Stderr, "%s is required\n", config.EnvJWTSecret)
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(1)
	}
	parsedRole, err := enums.ParseRole(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -role: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{
		UserID: *userID,
		Email:  *email,
		Name:   *name,
		Role:   parsedRole,
	})
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
