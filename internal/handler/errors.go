package handler

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// fail writes err as {"error", "kind"} with the status of its kind.
// Errors without a kind are logged and reported as 500.
func fail(c fiber.Ctx, err error) error {
	kind := port.KindName(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case "InvalidMove":
		status = fiber.StatusUnprocessableEntity
	case "ValidationFailed":
		status = fiber.StatusBadRequest
	case "NotFound":
		status = fiber.StatusNotFound
	default:
		kind = "Internal"
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "kind": kind})
	}
	return c.Status(status).JSON(fiber.Map{"error": port.Reason(err), "kind": kind})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": "ValidationFailed"})
}

// queryInt reads an integer query param. An absent param yields defaultVal;
// a malformed one is a ValidationFailed error.
func queryInt(c fiber.Ctx, key string, defaultVal int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, port.ValidationFailed("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
