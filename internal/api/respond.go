package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/logging"
	"github.com/Spok95/school-lms/internal/observability"
)

const storageMessage = "something went wrong, please try again"

type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Data: data})
}

func fail(c *fiber.Ctx, status int, message string, fields map[string]string) error {
	return c.Status(status).JSON(envelope{Success: false, Message: message, Errors: fields})
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindValidation:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError — ErrorHandler приложения. Текст ошибок хранилища наружу не
// уходит: он пишется в лог и в Sentry.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fail(c, fe.Code, fe.Message, nil)
	}
	ae := apperr.From(err)
	if ae.Kind == apperr.KindStorage {
		logging.With(c.UserContext(), s.log).Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		observability.CaptureCtx(c.UserContext(), err)
		return fail(c, fiber.StatusInternalServerError, storageMessage, nil)
	}
	return fail(c, statusOf(ae.Kind), ae.Message, ae.Fields)
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	return nil
}
