package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authfront/auth-front/internal/config"
	"github.com/authfront/auth-front/internal/cookie"
	"github.com/authfront/auth-front/internal/log"
	"github.com/authfront/auth-front/internal/notifier"
	"github.com/authfront/auth-front/internal/provider"
	"github.com/authfront/auth-front/internal/server"
	"github.com/authfront/auth-front/internal/state"
)

// AuthFront is the complete authentication gateway application.
type AuthFront struct {
	config     config.Config
	httpServer *server.HTTPServer
}

// NewAuthFront builds the gateway with all its dependencies wired.
func NewAuthFront(ctx context.Context, cfg config.Config) (*AuthFront, error) {
	log.LogInfoWithFields("authfront", "Building authentication gateway", map[string]any{
		"provider": string(cfg.Provider.Provider),
		"addr":     cfg.Server.Addr,
	})

	idp, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to setup identity provider: %w", err)
	}

	notify, err := notifier.New(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("failed to setup ID token notifier: %w", err)
	}

	cookies := cookie.NewCodec(cfg.Cookie)
	states := state.NewCodec(string(cfg.Cookie.Secret))

	mux := http.NewServeMux()
	mux.Handle("/health", server.NewHealthHandler())
	server.NewGatewayHandlers(idp, cookies, states, notify).Register(mux)

	return &AuthFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(mux, cfg.Server.Addr),
	}, nil
}

// Run starts the gateway and blocks until shutdown.
func (a *AuthFront) Run() error {
	log.LogInfoWithFields("authfront", "Starting authentication gateway", map[string]any{
		"addr": a.config.Server.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("authfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("authfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("authfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("authfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("authfront", "Gateway shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}
