package db

import (
	"context"
	"errors"

	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

const submissionCols = `s.id, s.enrollment_id, s.item_id, s.status, s.content, s.auto_score, s.submitted_at, s.created_at, s.updated_at`

func scanSubmission(sc scanner) (models.Submission, error) {
	var s models.Submission
	err := sc.Scan(&s.ID, &s.EnrollmentID, &s.ItemID, &s.Status, &s.Content, &s.AutoScore, &s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt)
	return s, mapErr(err)
}

// GetOrCreateSubmission — вставка с ON CONFLICT DO NOTHING. Если строку уже
// создал параллельный запрос, RETURNING пуст и читаем существующую.
func (r repo) GetOrCreateSubmission(ctx context.Context, enrollmentID, itemID int64) (models.Submission, bool, error) {
	s, err := scanSubmission(r.q.QueryRowContext(ctx, `
		INSERT INTO submissions AS s (enrollment_id, item_id, status)
		VALUES ($1, $2, 'draft')
		ON CONFLICT (enrollment_id, item_id) DO NOTHING
		RETURNING `+submissionCols,
		enrollmentID, itemID))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, workflow.ErrRecordNotFound) {
		return models.Submission{}, false, err
	}
	s, err = scanSubmission(r.q.QueryRowContext(ctx, `
		SELECT `+submissionCols+` FROM submissions s
		WHERE s.enrollment_id = $1 AND s.item_id = $2
	`, enrollmentID, itemID))
	return s, false, err
}

func (r repo) SubmissionByID(ctx context.Context, id int64) (models.Submission, error) {
	return scanSubmission(r.q.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions s WHERE s.id = $1`, id))
}

// LockSubmission — строка работы под FOR UPDATE. Все изменения работы
// начинаются с неё, поэтому параллельные запросы идут по очереди.
func (r repo) LockSubmission(ctx context.Context, id int64) (models.Submission, error) {
	return scanSubmission(r.q.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions s WHERE s.id = $1 FOR UPDATE`, id))
}

// UpdateSubmission — условный UPDATE: проходит, только если работа всё ещё
// в статусе from. Иначе ErrRecordNotFound.
func (r repo) UpdateSubmission(ctx context.Context, s models.Submission, from models.SubmissionStatus) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE submissions
		SET status = $1, content = $2, auto_score = $3, submitted_at = $4, updated_at = COALESCE($5::timestamptz, now())
		WHERE id = $6 AND status = $7
	`, string(s.Status), s.Content, s.AutoScore, s.SubmittedAt, orNow(s.UpdatedAt), s.ID, string(from)))
}

func (r repo) FindSubmission(ctx context.Context, itemID, studentID int64) (models.Submission, error) {
	return scanSubmission(r.q.QueryRowContext(ctx, `
		SELECT `+submissionCols+`
		FROM submissions s
		JOIN enrollments e ON e.id = s.enrollment_id
		WHERE s.item_id = $1 AND e.student_id = $2
	`, itemID, studentID))
}

const submissionViewSelect = `
	SELECT ` + submissionCols + `, i.course_id, e.student_id, p.name, u.email, i.title, i.kind
	FROM submissions s
	JOIN enrollments e  ON e.id = s.enrollment_id
	JOIN course_items i ON i.id = s.item_id
	JOIN users u        ON u.id = e.student_id
	JOIN profiles p     ON p.id = u.profile_id`

func (r repo) listSubmissionViews(ctx context.Context, q string, args ...any) ([]models.SubmissionView, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SubmissionView
	for rows.Next() {
		var v models.SubmissionView
		if err := rows.Scan(
			&v.ID, &v.EnrollmentID, &v.ItemID, &v.Status, &v.Content, &v.AutoScore, &v.SubmittedAt, &v.CreatedAt, &v.UpdatedAt,
			&v.CourseID, &v.StudentID, &v.StudentName, &v.StudentEmail, &v.ItemTitle, &v.ItemKind,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r repo) ListItemSubmissions(ctx context.Context, itemID int64) ([]models.SubmissionView, error) {
	return r.listSubmissionViews(ctx, submissionViewSelect+`
		WHERE s.item_id = $1
		ORDER BY p.name, s.id
	`, itemID)
}

func (r repo) ListEnrollmentSubmissions(ctx context.Context, enrollmentID int64) ([]models.SubmissionView, error) {
	return r.listSubmissionViews(ctx, submissionViewSelect+`
		WHERE s.enrollment_id = $1
		ORDER BY i.position, i.id
	`, enrollmentID)
}

func (r repo) UnscoredQuizSubmissions(ctx context.Context, courseID int64) ([]models.Submission, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+submissionCols+`
		FROM submissions s
		JOIN course_items i ON i.id = s.item_id
		WHERE i.course_id = $1 AND i.kind = 'quiz'
		  AND s.status = 'submitted' AND s.auto_score IS NULL
		ORDER BY s.id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- ответы ----

func (r repo) UpsertResponse(ctx context.Context, submissionID, questionID int64, response string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO quiz_responses (submission_id, question_id, response)
		VALUES ($1, $2, $3)
		ON CONFLICT (submission_id, question_id)
		DO UPDATE SET response = EXCLUDED.response, updated_at = now()
	`, submissionID, questionID, response)
	return mapErr(err)
}

func (r repo) SetResponseScore(ctx context.Context, submissionID, questionID int64, points *float64, feedback string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO quiz_responses (submission_id, question_id, points, feedback)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_id, question_id)
		DO UPDATE SET points = EXCLUDED.points, feedback = EXCLUDED.feedback, updated_at = now()
	`, submissionID, questionID, points, feedback)
	return mapErr(err)
}

func (r repo) ListResponses(ctx context.Context, submissionID int64) ([]models.QuizResponse, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT submission_id, question_id, response, points, feedback, updated_at
		FROM quiz_responses
		WHERE submission_id = $1
		ORDER BY question_id
	`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QuizResponse
	for rows.Next() {
		var qr models.QuizResponse
		if err := rows.Scan(&qr.SubmissionID, &qr.QuestionID, &qr.Response, &qr.Points, &qr.Feedback, &qr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, qr)
	}
	return out, rows.Err()
}
