package db

import (
	"context"

	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

// UpsertGrade — одна оценка на (item, student); повторная запись перезаписывает.
func (r repo) UpsertGrade(ctx context.Context, g models.Grade) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO grades (item_id, student_id, score, feedback, manual, graded_by, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, now()))
		ON CONFLICT (item_id, student_id)
		DO UPDATE SET score = EXCLUDED.score, feedback = EXCLUDED.feedback, manual = EXCLUDED.manual,
		              graded_by = EXCLUDED.graded_by, graded_at = EXCLUDED.graded_at
	`, g.ItemID, g.StudentID, g.Score, g.Feedback, g.Manual, g.GradedBy, orNow(g.GradedAt))
	return mapErr(err)
}

const gradeCols = `g.item_id, g.student_id, g.score, g.feedback, g.manual, g.graded_by, g.graded_at`

func (r repo) FindGrade(ctx context.Context, itemID, studentID int64) (models.Grade, error) {
	var g models.Grade
	err := r.q.QueryRowContext(ctx, `
		SELECT `+gradeCols+` FROM grades g WHERE g.item_id = $1 AND g.student_id = $2
	`, itemID, studentID).Scan(&g.ItemID, &g.StudentID, &g.Score, &g.Feedback, &g.Manual, &g.GradedBy, &g.GradedAt)
	return g, mapErr(err)
}

const gradeViewSelect = `
	SELECT ` + gradeCols + `,
	       i.course_id, i.title, i.kind, i.points, p.name
	FROM grades g
	JOIN course_items i ON i.id = g.item_id
	JOIN users u        ON u.id = g.student_id
	JOIN profiles p     ON p.id = u.profile_id`

func (r repo) listGradeViews(ctx context.Context, q string, args ...any) ([]models.GradeView, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GradeView
	for rows.Next() {
		var v models.GradeView
		if err := rows.Scan(
			&v.ItemID, &v.StudentID, &v.Score, &v.Feedback, &v.Manual, &v.GradedBy, &v.GradedAt,
			&v.CourseID, &v.ItemTitle, &v.ItemKind, &v.ItemPoints, &v.StudentName,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r repo) ListItemGrades(ctx context.Context, itemID int64) ([]models.GradeView, error) {
	return r.listGradeViews(ctx, gradeViewSelect+`
		WHERE g.item_id = $1
		ORDER BY p.name, g.student_id
	`, itemID)
}

func (r repo) ListStudentGrades(ctx context.Context, courseID, studentID int64) ([]models.GradeView, error) {
	return r.listGradeViews(ctx, gradeViewSelect+`
		WHERE i.course_id = $1 AND g.student_id = $2
		ORDER BY i.position, i.id
	`, courseID, studentID)
}

func (r repo) ListCourseGrades(ctx context.Context, courseID int64) ([]models.GradeView, error) {
	return r.listGradeViews(ctx, gradeViewSelect+`
		WHERE i.course_id = $1
		ORDER BY g.student_id, g.item_id
	`, courseID)
}

// ReplaceFinalGrades — старые строки курса удаляются, новые пишутся одним
// подготовленным INSERT. Строку, вставленную параллельным Finalize после
// нашего DELETE, перезаписываем через ON CONFLICT. Вызывается внутри Atomic.
func (r repo) ReplaceFinalGrades(ctx context.Context, courseID int64, grades []models.FinalGrade) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM final_grades WHERE course_id = $1`, courseID); err != nil {
		return err
	}
	if len(grades) == 0 {
		return nil
	}

	stmt, err := r.q.PrepareContext(ctx, `
		INSERT INTO final_grades (course_id, student_id, earned, possible, percentage, letter)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (course_id, student_id)
		DO UPDATE SET earned = EXCLUDED.earned, possible = EXCLUDED.possible,
		              percentage = EXCLUDED.percentage, letter = EXCLUDED.letter
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, fg := range grades {
		if _, err := stmt.ExecContext(ctx, courseID, fg.StudentID, fg.Earned, fg.Possible, fg.Percentage, fg.Letter); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r repo) ListFinalGrades(ctx context.Context, courseID int64) ([]models.FinalGrade, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT f.course_id, f.student_id, p.name, f.earned, f.possible, f.percentage, f.letter
		FROM final_grades f
		JOIN users u    ON u.id = f.student_id
		JOIN profiles p ON p.id = u.profile_id
		WHERE f.course_id = $1
		ORDER BY f.student_id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FinalGrade
	for rows.Next() {
		var fg models.FinalGrade
		if err := rows.Scan(&fg.CourseID, &fg.StudentID, &fg.StudentName, &fg.Earned, &fg.Possible, &fg.Percentage, &fg.Letter); err != nil {
			return nil, err
		}
		out = append(out, fg)
	}
	return out, rows.Err()
}

var _ workflow.Repo = repo{}
