// Package server is the HTTP surface of the school site: page descriptors,
// the checkout API, Payment Link redirects and the Telegram relay.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"autokool/internal/checkout"
	"autokool/internal/config"
	"autokool/internal/notify"
	"autokool/internal/paylink"
	"autokool/internal/storage"
)

const shutdownTimeout = 5 * time.Second

type OrderStore interface {
	SaveOrder(ctx context.Context, order storage.Order) (int64, error)
}

// OrderAnnouncer hears about every placed order.
type OrderAnnouncer interface {
	AnnounceOrder(ctx context.Context, order storage.Order) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

type Deps struct {
	Registry   *checkout.Registry
	Dispatcher *paylink.Dispatcher
	// Notifier sends the site's own notifications (registrations).
	Notifier *notify.Notifier
	// Telegram delivers relay requests straight to the Bot API.
	Telegram  notify.Deliverer
	Orders    OrderStore
	Announcer OrderAnnouncer
	Limiter   RateLimiter
}

type Server struct {
	app    *fiber.App
	cfg    config.HTTPConfig
	deps   Deps
	relay  *notify.Notifier
	logger *zap.Logger
}

func New(cfg config.HTTPConfig, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	if deps.Telegram != nil {
		s.relay = notify.New("", logger, notify.WithDirect(deps.Telegram))
	} else {
		s.relay = notify.New("", logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               "autokool",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:          cfg.RateLimitMax,
		Expiration:   cfg.RateLimitEvery,
		KeyGenerator: clientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(c, fiber.StatusTooManyRequests,
				"Too many requests", "Rate limit exceeded, try again later")
		},
	}))

	s.app = app
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	sessions := api.Group("/checkout/sessions")
	sessions.Post("/", s.createSession)
	sessions.Get("/:id", s.getSession)
	sessions.Delete("/:id", s.deleteSession)
	sessions.Post("/:id/next", s.nextStep)
	sessions.Post("/:id/back", s.previousStep)
	sessions.Put("/:id/transmission", s.setTransmission)
	sessions.Put("/:id/address", s.setAddress)
	sessions.Put("/:id/gift", s.setGift)
	sessions.Put("/:id/payment-method", s.setPaymentMethod)
	sessions.Post("/:id/pay", s.pay)
	sessions.Post("/:id/order", s.placeOrder)

	api.All("/telegram-notify", s.telegramNotify)
	api.Post("/registrations", s.register)

	s.app.Get("/pay/:category", s.redirectToPaymentLink)

	for _, p := range pages {
		s.app.Get(p.Route, s.page(p))
	}
	s.app.Get("/*", s.page(pages[0]))
}

// App exposes the fiber app for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := ErrorToStatusCode(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return ErrorResponseJSON(c, status, http.StatusText(status), "")
	}
	return ErrorResponseJSON(c, status, http.StatusText(status), err.Error())
}

// clientIP prefers the proxy headers set by the hosting platform.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.IP()
}
