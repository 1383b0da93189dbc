package db

import (
	"context"

	"github.com/lib/pq"

	"github.com/Spok95/school-lms/internal/models"
)

func (r repo) InsertCourse(ctx context.Context, c *models.Course) error {
	return mapErr(r.q.QueryRowContext(ctx, `
		INSERT INTO courses (professor_id, prefix, number, name, schedule)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.ProfessorID, c.Prefix, c.Number, c.Name, c.Schedule).Scan(&c.ID, &c.CreatedAt))
}

func (r repo) UpdateCourse(ctx context.Context, c models.Course) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE courses SET prefix = $1, number = $2, name = $3, schedule = $4
		WHERE id = $5
	`, c.Prefix, c.Number, c.Name, c.Schedule, c.ID))
}

// DeleteCourse — элементы, записи и оценки удаляются каскадом (FK).
func (r repo) DeleteCourse(ctx context.Context, id int64) error {
	return affected(r.q.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id))
}

const courseCols = `id, professor_id, prefix, number, name, schedule, created_at`

func scanCourse(s scanner) (models.Course, error) {
	var c models.Course
	err := s.Scan(&c.ID, &c.ProfessorID, &c.Prefix, &c.Number, &c.Name, &c.Schedule, &c.CreatedAt)
	return c, mapErr(err)
}

func (r repo) CourseByID(ctx context.Context, id int64) (models.Course, error) {
	return scanCourse(r.q.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE id = $1`, id))
}

// LockCourse — строка курса под FOR UPDATE до конца транзакции.
func (r repo) LockCourse(ctx context.Context, id int64) (models.Course, error) {
	return scanCourse(r.q.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE id = $1 FOR UPDATE`, id))
}

func (r repo) ListCourses(ctx context.Context, professorID int64) ([]models.Course, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+courseCols+` FROM courses
		WHERE $1::bigint = 0 OR professor_id = $1
		ORDER BY prefix, number, id
	`, professorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r repo) InsertItem(ctx context.Context, it *models.CourseItem) error {
	return mapErr(r.q.QueryRowContext(ctx, `
		INSERT INTO course_items (course_id, kind, title, content, points, due_at, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, it.CourseID, string(it.Kind), it.Title, it.Content, it.Points, it.DueAt, it.Position).Scan(&it.ID, &it.CreatedAt))
}

func (r repo) UpdateItem(ctx context.Context, it models.CourseItem) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE course_items
		SET title = $1, content = $2, points = $3, due_at = $4, position = $5
		WHERE id = $6
	`, it.Title, it.Content, it.Points, it.DueAt, it.Position, it.ID))
}

func (r repo) DeleteItem(ctx context.Context, id int64) error {
	return affected(r.q.ExecContext(ctx, `DELETE FROM course_items WHERE id = $1`, id))
}

const itemCols = `id, course_id, kind, title, content, points, due_at, position, created_at`

func scanItem(s scanner) (models.CourseItem, error) {
	var it models.CourseItem
	err := s.Scan(&it.ID, &it.CourseID, &it.Kind, &it.Title, &it.Content, &it.Points, &it.DueAt, &it.Position, &it.CreatedAt)
	return it, mapErr(err)
}

func (r repo) ItemByID(ctx context.Context, id int64) (models.CourseItem, error) {
	return scanItem(r.q.QueryRowContext(ctx, `SELECT `+itemCols+` FROM course_items WHERE id = $1`, id))
}

// LockItem — строка элемента под FOR UPDATE: пересчёт баллов теста идёт
// по одному вызову за раз.
func (r repo) LockItem(ctx context.Context, id int64) (models.CourseItem, error) {
	return scanItem(r.q.QueryRowContext(ctx, `SELECT `+itemCols+` FROM course_items WHERE id = $1 FOR UPDATE`, id))
}

func (r repo) ListItems(ctx context.Context, courseID int64) ([]models.CourseItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+itemCols+` FROM course_items WHERE course_id = $1 ORDER BY position, id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CourseItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r repo) InsertQuestion(ctx context.Context, q *models.QuizQuestion) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO quiz_questions (item_id, type, text, points, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, q.ItemID, string(q.Type), q.Text, q.Points, q.Position).Scan(&q.ID)
	if err != nil {
		return mapErr(err)
	}
	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		if err := r.q.QueryRowContext(ctx, `
			INSERT INTO quiz_options (question_id, text, is_correct, position)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, o.QuestionID, o.Text, o.IsCorrect, o.Position).Scan(&o.ID); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// ListQuestions — вопросы по порядку; варианты подтягиваются одним запросом.
func (r repo) ListQuestions(ctx context.Context, itemID int64) ([]models.QuizQuestion, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, item_id, type, text, points, position
		FROM quiz_questions WHERE item_id = $1
		ORDER BY position, id
	`, itemID)
	if err != nil {
		return nil, err
	}
	var out []models.QuizQuestion
	idx := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var q models.QuizQuestion
		if err := rows.Scan(&q.ID, &q.ItemID, &q.Type, &q.Text, &q.Points, &q.Position); err != nil {
			rows.Close()
			return nil, err
		}
		idx[q.ID] = len(out)
		ids = append(ids, q.ID)
		out = append(out, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	orows, err := r.q.QueryContext(ctx, `
		SELECT id, question_id, text, is_correct, position
		FROM quiz_options WHERE question_id = ANY($1)
		ORDER BY question_id, position, id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var o models.QuizOption
		if err := orows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Position); err != nil {
			return nil, err
		}
		i := idx[o.QuestionID]
		out[i].Options = append(out[i].Options, o)
	}
	return out, orows.Err()
}
