// Package workflow — учебный движок: записи на курс, сдача работ,
// проверка тестов и итоговые оценки.
package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/metrics"
	"github.com/Spok95/school-lms/internal/models"
)

// Notifier доставляет приглашения студентам. Ошибка доставки не отменяет операцию.
type Notifier interface {
	Invited(ctx context.Context, inv models.EnrollmentView) error
	Reminded(ctx context.Context, inv models.EnrollmentView) error
}

type nopNotifier struct{}

func (nopNotifier) Invited(context.Context, models.EnrollmentView) error  { return nil }
func (nopNotifier) Reminded(context.Context, models.EnrollmentView) error { return nil }

// Policy — правила регистрации.
type Policy struct {
	AllowedDomains []string // пусто — любой домен
	PasswordMinLen int
	BcryptCost     int
}

func DefaultPolicy() Policy {
	return Policy{PasswordMinLen: 8, BcryptCost: bcrypt.DefaultCost}
}

type Engine struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
	policy   Policy
	now      func() time.Time
	valid    *validation
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithPolicy(p Policy) Option { return func(e *Engine) { e.policy = p } }

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		policy:   DefaultPolicy(),
		now:      time.Now,
		valid:    newValidation(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.policy.BcryptCost == 0 {
		e.policy.BcryptCost = bcrypt.DefaultCost
	}
	return e
}

// finish — общий выход операции: приводит ошибку к *apperr.Error,
// считает метрику и логирует сбои хранилища.
func (e *Engine) finish(op string, errp *error) {
	if *errp == nil {
		metrics.ObserveOp(op, "ok")
		return
	}
	ae := apperr.From(*errp)
	*errp = ae
	metrics.ObserveOp(op, ae.Kind.String())
	if ae.Kind == apperr.KindStorage {
		e.log.Error("workflow storage failure", zap.String("op", op), zap.Error(ae.Err))
		return
	}
	e.log.Debug("workflow rejected", zap.String("op", op), zap.String("kind", ae.Kind.String()), zap.String("msg", ae.Message))
}

func (e *Engine) stamp() time.Time { return e.now().UTC() }

// missing переводит ErrRecordNotFound в NotFound с понятным текстом.
func missing(err error, format string, args ...any) error {
	if errors.Is(err, ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// moved — условный UPDATE не нашёл строку в ожидаемом статусе.
func moved(err error, format string, args ...any) error {
	if errors.Is(err, ErrRecordNotFound) {
		return apperr.Conflict(format, args...)
	}
	return err
}
