package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mapofwonders/auth-service/internal/logger"
	"go.uber.org/zap"
)

// Logger emits one access log line per request. Client IPs are masked.
func Logger(log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		chainErr := c.Next()
		if chainErr != nil {
			// Let the app error handler write the response so the status is final.
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := []zap.Field{
			zap.Int("status", c.Response().StatusCode()),
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", logger.MaskIP(c.IP())),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if ua := c.Get(fiber.HeaderUserAgent); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		if chainErr != nil {
			log.Error("request failed", append(fields, zap.Error(chainErr))...)
			return nil
		}

		log.Info("request completed", fields...)
		return nil
	}
}
