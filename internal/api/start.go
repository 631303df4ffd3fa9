// Package api serves the extraction engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Config holds the server's collaborators. Store may be nil.
type Config struct {
	Engine  Extractor
	Store   Store
	APIKey  string
	Timeout time.Duration
}

// NewServer builds the echo instance with all routes
func NewServer(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(RequestLogger())
	e.Use(APIKeyAuthMiddleware(cfg.APIKey))

	/*
		- GET  /healthz: liveness
		- POST /api/v1/extract: extract media from an HTML snapshot
		- GET  /api/v1/cache/:postId: cached media of a post
		- GET  /api/v1/history: recent extractions
	*/
	e.GET(HealthCheckPath, Healthz())

	v1 := e.Group("/api/v1")
	v1.POST("/extract", extract(cfg.Engine, cfg.Store, cfg.Timeout))
	v1.GET("/cache/:postId", cacheEntry(cfg.Store))
	v1.GET("/history", history(cfg.Store))

	return e
}

// Start serves until ctx is done
func Start(ctx context.Context, listenAddress string, cfg Config) error {
	e := NewServer(cfg)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shut down server")
		}
	}()

	logrus.Infof("Starting server on %s", listenAddress)
	if err := e.Start(listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
