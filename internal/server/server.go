// Package server exposes the registration and messaging core over HTTP:
// a JSON API for visitors and organizers plus an SSE stream that pushes
// live session updates to organizer dashboards.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/store"
)

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Store  *store.Store
	Config *config.Config
	Out    io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("server: store is required")
	}
	if opts.Config == nil {
		return fmt.Errorf("server: config is required")
	}

	router := NewRouter(opts.Store, opts.Config)

	addr := fmt.Sprintf(":%d", opts.Config.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "QRChat API listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered.
func NewRouter(st *store.Store, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, st, cfg)
	return router
}
