package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/ctxutil"
	"github.com/Spok95/school-lms/internal/logging"
	"github.com/Spok95/school-lms/internal/metrics"
)

const requestIDKey = "requestid"

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// observe — request id в контекст, ошибки через ErrorHandler, затем лог и
// метрика с итоговым статусом.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	c.SetUserContext(ctxutil.WithRequestID(c.UserContext(), requestID(c)))

	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	elapsed := time.Since(start)
	route := c.Route().Path
	metrics.ObserveHTTP(c.Method(), route, status, elapsed)
	logging.With(c.UserContext(), s.log).Info("http",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
	)
	return nil
}
