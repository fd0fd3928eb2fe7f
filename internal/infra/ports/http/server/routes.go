package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/config"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/ports/http/handlers"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.Domain},
	}))

	e.GET("/ws", wsHandler.Handle)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
