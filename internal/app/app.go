package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/config"
	apphttp "github.com/LukaszDygon/sbcw-kiro-sub000/internal/http"
)

// Run boots the container, restores any stored session and serves HTTP
// until a shutdown signal arrives.
func Run(cfg *config.Config) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	container, err := NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session restore happens before the first request is served, so
	// guards see the settled state.
	if user, err := container.Auth.Initialize(ctx); err != nil {
		container.Logger.Warn("session restore failed", "error", err)
	} else if user != nil {
		container.Logger.Info("session restored", "user_id", user.ID)
	}

	container.Monitor.Start(ctx)
	defer container.Monitor.Stop()

	router := apphttp.BuildRouter(container.Handler, container.Guard, container.Metrics, container.Logger)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		container.Logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	container.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
