package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"venue-indexer/config"
	"venue-indexer/middleware"
	"venue-indexer/rest"
)

// newHTTPServer creates the REST HTTP server.
func newHTTPServer(handler *rest.Handler, cfg config.HTTPConfig, otelEnabled bool) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	if otelEnabled {
		e.Use(middleware.OTelTracing())
		e.Use(middleware.OTelStatusMiddleware())
	}
	e.Use(middleware.AccessLog())

	handler.Register(e)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           e,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
