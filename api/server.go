package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second

	// ShutdownGrace bounds how long in-flight requests get once a stop signal arrives.
	ShutdownGrace = 20 * time.Second
)

// NewServer wraps handler in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Addr picks the listen address. PORT, when set by the platform, wins over
// STOREFRONT_APP_PORT.
func Addr(cfg *config.Config, platformPort string) string {
	port := platformPort
	if port == "" {
		port = cfg.App.Port
	}
	return net.JoinHostPort("", port)
}

// Serve runs server until ctx is cancelled, then drains it within ShutdownGrace.
func Serve(ctx context.Context, server *http.Server, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
