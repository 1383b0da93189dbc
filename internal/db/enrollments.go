package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

// InsertEnrollment — пара (course, student) уникальна; конфликт отдаём как
// ErrDuplicateRecord, без исключения из INSERT.
func (r repo) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO enrollments (course_id, student_id, status, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()), COALESCE($5::timestamptz, now()))
		ON CONFLICT (course_id, student_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`, e.CourseID, e.StudentID, string(e.Status), e.InvitedBy, orNow(e.CreatedAt)).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ErrDuplicateRecord
	}
	return mapErr(err)
}

const enrollmentCols = `id, course_id, student_id, status, invited_by, reminded_at, created_at, updated_at`

func scanEnrollment(s scanner) (models.Enrollment, error) {
	var e models.Enrollment
	err := s.Scan(&e.ID, &e.CourseID, &e.StudentID, &e.Status, &e.InvitedBy, &e.RemindedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, mapErr(err)
}

func (r repo) EnrollmentByID(ctx context.Context, id int64) (models.Enrollment, error) {
	return scanEnrollment(r.q.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE id = $1`, id))
}

func (r repo) FindEnrollment(ctx context.Context, courseID, studentID int64) (models.Enrollment, error) {
	return scanEnrollment(r.q.QueryRowContext(ctx, `
		SELECT `+enrollmentCols+` FROM enrollments WHERE course_id = $1 AND student_id = $2
	`, courseID, studentID))
}

// SetEnrollmentStatus — условный UPDATE: проходит, только если строка ещё в статусе from.
func (r repo) SetEnrollmentStatus(ctx context.Context, id int64, from, to models.EnrollmentStatus) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE enrollments SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from)))
}

func (r repo) DeleteEnrollment(ctx context.Context, id int64, status models.EnrollmentStatus) error {
	return affected(r.q.ExecContext(ctx, `
		DELETE FROM enrollments WHERE id = $1 AND status = $2
	`, id, string(status)))
}

const enrollmentViewSelect = `
	SELECT e.id, e.course_id, e.student_id, e.status, e.invited_by, e.reminded_at, e.created_at, e.updated_at,
	       sp.name, su.email, sp.telegram_chat_id,
	       c.prefix, c.number, c.name, pp.name, pu.email
	FROM enrollments e
	JOIN users su    ON su.id = e.student_id
	JOIN profiles sp ON sp.id = su.profile_id
	JOIN courses c   ON c.id = e.course_id
	JOIN users pu    ON pu.id = c.professor_id
	JOIN profiles pp ON pp.id = pu.profile_id`

func (r repo) listEnrollmentViews(ctx context.Context, q string, args ...any) ([]models.EnrollmentView, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EnrollmentView
	for rows.Next() {
		var v models.EnrollmentView
		if err := rows.Scan(
			&v.ID, &v.CourseID, &v.StudentID, &v.Status, &v.InvitedBy, &v.RemindedAt, &v.CreatedAt, &v.UpdatedAt,
			&v.StudentName, &v.StudentEmail, &v.StudentChatID,
			&v.CoursePrefix, &v.CourseNumber, &v.CourseName, &v.ProfessorName, &v.ProfessorEmail,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r repo) ListCourseEnrollments(ctx context.Context, courseID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error) {
	return r.listEnrollmentViews(ctx, enrollmentViewSelect+`
		WHERE e.course_id = $1 AND ($2::text = '' OR e.status = $2)
		ORDER BY sp.name, e.id
	`, courseID, string(status))
}

func (r repo) ListStudentEnrollments(ctx context.Context, studentID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error) {
	return r.listEnrollmentViews(ctx, enrollmentViewSelect+`
		WHERE e.student_id = $1 AND ($2::text = '' OR e.status = $2)
		ORDER BY c.prefix, c.number, e.id
	`, studentID, string(status))
}

// StaleInvitations — приглашения без ответа, созданные раньше before и ещё не напомненные.
func (r repo) StaleInvitations(ctx context.Context, before time.Time, limit int) ([]models.EnrollmentView, error) {
	return r.listEnrollmentViews(ctx, enrollmentViewSelect+`
		WHERE e.status = 'pending' AND e.reminded_at IS NULL AND e.created_at < $1
		ORDER BY e.created_at, e.id
		LIMIT $2
	`, before, limit)
}

func (r repo) MarkReminded(ctx context.Context, ids []int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE enrollments SET reminded_at = $1 WHERE id = ANY($2)
	`, at, pq.Array(ids))
	return err
}
