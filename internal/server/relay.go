package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"autokool/internal/notify"
)

const (
	relayRateLimit  = 20
	relayRateWindow = time.Minute
)

type relayError struct {
	Error string `json:"error"`
}

type relaySuccess struct {
	Success bool `json:"success"`
}

// telegramNotify is the relay other clients post notifications to. It
// answers with the same small JSON bodies notify.RelaySender expects.
func (s *Server) telegramNotify(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Status(fiber.StatusMethodNotAllowed).JSON(relayError{"Method not allowed"})
	}

	if s.deps.Limiter != nil {
		limited, err := s.deps.Limiter.CheckRateLimit(c.UserContext(), "relay:"+clientIP(c), relayRateLimit, relayRateWindow)
		if err != nil {
			s.logger.Warn("Relay rate limit check failed", zap.Error(err))
		} else if limited {
			return c.Status(fiber.StatusTooManyRequests).JSON(relayError{"Too many requests"})
		}
	}

	var env notify.Envelope
	if err := c.BodyParser(&env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(relayError{"Invalid request body"})
	}
	if env.ChatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(relayError{"Chat ID is required"})
	}

	note, err := notify.Decode(env.Type, env.Data)
	if errors.Is(err, notify.ErrUnknownKind) {
		return c.Status(fiber.StatusBadRequest).JSON(relayError{"Invalid notification type"})
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(relayError{"Invalid notification data"})
	}

	res := s.relay.NotifyChat(c.UserContext(), string(env.ChatID), note)
	if !res.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(relayError{res.Error})
	}
	return c.JSON(relaySuccess{Success: true})
}
