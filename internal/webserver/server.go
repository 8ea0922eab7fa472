package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ordermind/ordermind/config"
	"github.com/ordermind/ordermind/internal/bulkorder"
	"github.com/ordermind/ordermind/internal/chat"
	"github.com/ordermind/ordermind/internal/store"
)

// WebServer is the HTTP surface: the chat endpoint, the order endpoints and
// health. Everything except /health requires the API key header outside
// development mode.
type WebServer struct {
	cfg       *config.AppConfig
	root      *echo.Echo
	chats     *chat.Manager
	bulk      *bulkorder.Manager
	customers store.CustomerRepository
	orders    store.OrderRepository
}

func NewWebServer(
	cfg *config.AppConfig,
	chats *chat.Manager,
	bulk *bulkorder.Manager,
	customers store.CustomerRepository,
	orders store.OrderRepository,
) *WebServer {
	ws := &WebServer{
		cfg:       cfg,
		chats:     chats,
		bulk:      bulk,
		customers: customers,
		orders:    orders,
	}
	ws.root = ws.buildEcho()
	ws.registerRoutes()
	return ws
}

func (ws *WebServer) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Info("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(ws.apiKeyMiddleware())
	return e
}

// apiKeyMiddleware enforces the configured API key. Health checks and
// development mode are exempt.
func (ws *WebServer) apiKeyMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}
			if ws.cfg.System.Mode == "development" {
				return next(c)
			}
			key := c.Request().Header.Get(ws.cfg.Web.ApiKeyHdr)
			if key == "" || key != ws.cfg.Web.Secret {
				return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key", nil)
			}
			return next(c)
		}
	}
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (ws *WebServer) Start() error {
	addr := fmt.Sprintf("%s:%d", ws.cfg.Web.Host, ws.cfg.Web.Port)
	zap.L().Info("starting web server", zap.String("addr", addr))
	return ws.root.Start(addr)
}

// Stop shuts the server down gracefully.
func (ws *WebServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.root.Shutdown(ctx)
}

// Echo exposes the router, used by handler tests.
func (ws *WebServer) Echo() *echo.Echo {
	return ws.root
}
