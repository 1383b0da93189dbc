package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Spok95/school-lms/internal/ctxutil"
	"github.com/Spok95/school-lms/internal/workflow"
)

const uniqueViolation = "23505"

// queryer — общее у *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store — реализация workflow.Store поверх Postgres.
type Store struct {
	db *sql.DB
}

var _ workflow.Store = (*Store)(nil)

func NewStore(database *sql.DB) *Store { return &Store{db: database} }

// Atomic — одна транзакция READ COMMITTED на всю единицу работы.
func (s *Store) Atomic(ctx context.Context, fn func(workflow.Repo) error) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(workflow.Repo) error) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	return fn(repo{q: s.db})
}

type repo struct {
	q queryer
}

// mapErr переводит ошибки драйвера в ошибки workflow. Проверяем и pgx, и
// lib/pq: сервер работает через pgx, интеграционные тесты — через pq.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", workflow.ErrDuplicateRecord, pgErr.ConstraintName)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", workflow.ErrDuplicateRecord, pqErr.Constraint)
	}
	return err
}

// affected — ErrRecordNotFound, если UPDATE/DELETE не задел ни одной строки.
func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workflow.ErrRecordNotFound
	}
	return nil
}

// orNow — нулевое время заменяется на now() на стороне БД.
func orNow(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}
