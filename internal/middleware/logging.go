package middleware

import (
	"time"

	"github.com/filevault/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
		}
		if user := GetCurrentUser(c); user != nil {
			logger.InfoWithUser(user.ID.String(), "request", fields)
		} else {
			logger.Info("request", fields)
		}
		return err
	}
}
