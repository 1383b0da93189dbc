package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/metrics"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/observability"
)

// ErrNoChat — у студента не привязан Telegram.
var ErrNoChat = errors.New("student has no telegram chat")

// sender — то, что нужно от *tgbotapi.BotAPI.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram шлёт приглашения в чат студента. Студентов без chat id
// передаёт запасному Notifier (обычно Log).
type Telegram struct {
	bot      sender
	fallback *Log
}

func NewTelegram(token string, fallback *Log) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot, fallback: fallback}, nil
}

func (t *Telegram) Invited(ctx context.Context, inv models.EnrollmentView) error {
	return t.deliver(ctx, inv, inviteText(inv), t.fallback.Invited)
}

func (t *Telegram) Reminded(ctx context.Context, inv models.EnrollmentView) error {
	return t.deliver(ctx, inv, reminderText(inv), t.fallback.Reminded)
}

func (t *Telegram) deliver(ctx context.Context, inv models.EnrollmentView, text string,
	fallback func(context.Context, models.EnrollmentView) error) error {
	if inv.StudentChatID == nil {
		return fallback(ctx, inv)
	}
	msg := tgbotapi.NewMessage(*inv.StudentChatID, text)
	_, err := t.bot.Send(msg)
	metrics.ObserveNotification("telegram", err)
	if isSystemErr(err) {
		observability.CaptureCtx(ctx, err)
	}
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", *inv.StudentChatID, err)
	}
	return nil
}

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "chat not found") ||
		strings.Contains(s, "bot was blocked") {
		return false
	}
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

// Log — уведомления только в журнал; используется без BOT_TOKEN.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) Invited(_ context.Context, inv models.EnrollmentView) error {
	l.write("invitation", inv)
	return nil
}

func (l *Log) Reminded(_ context.Context, inv models.EnrollmentView) error {
	l.write("invitation reminder", inv)
	return nil
}

func (l *Log) write(what string, inv models.EnrollmentView) {
	metrics.ObserveNotification("log", nil)
	l.log.Info(what,
		zap.Int64("enrollment_id", inv.ID),
		zap.String("student", inv.StudentEmail),
		zap.String("course", inv.CourseCode()),
	)
}
