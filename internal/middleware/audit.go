package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// RequestAudit logs every mutating request with its actor and outcome.
// Reads are left to the access logger.
func RequestAudit() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture before the handler runs; Fiber reuses context objects.
		method := c.Method()
		path := c.Path()
		ip := c.IP()

		err := c.Next()

		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return err
		}
		status := c.Response().StatusCode()
		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"actor", ActorFrom(c),
			"ip", ip,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if status >= fiber.StatusInternalServerError {
			slog.Error("request failed", attrs...)
		} else {
			slog.Info("request", attrs...)
		}
		return err
	}
}
