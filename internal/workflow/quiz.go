package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// ScoreResult — итог проверки теста.
type ScoreResult struct {
	Submission models.Submission `json:"submission"`
	AutoScore  float64           `json:"auto_score"`
	Manual     float64           `json:"manual_score"`
	Grade      models.Grade      `json:"grade"`
}

// ScoreResponses — автоматическая проверка. Для multiple_choice ответ — id
// варианта: совпал с верным — полный балл вопроса, иначе 0. Вопросы без
// ответа дают 0 и в awarded не попадают. short_answer не проверяется
// автоматически и в total не входит.
func ScoreResponses(questions []models.QuizQuestion, responses []models.QuizResponse) (total float64, awarded map[int64]float64) {
	answers := make(map[int64]string, len(responses))
	for _, r := range responses {
		answers[r.QuestionID] = r.Response
	}
	awarded = make(map[int64]float64)
	for _, q := range questions {
		if q.Type != models.MultipleChoice {
			continue
		}
		resp, ok := answers[q.ID]
		if !ok || strings.TrimSpace(resp) == "" {
			continue
		}
		pts := 0.0
		if correct, ok := q.CorrectOption(); ok {
			if id, err := strconv.ParseInt(strings.TrimSpace(resp), 10, 64); err == nil && id == correct {
				pts = q.Points
			}
		}
		awarded[q.ID] = pts
		total += pts
	}
	return total, awarded
}

// manualPoints — сумма баллов, выставленных преподавателем за short_answer.
func manualPoints(questions []models.QuizQuestion, responses []models.QuizResponse) float64 {
	byID := questionIndex(questions)
	sum := 0.0
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if ok && q.Type == models.ShortAnswer && r.Points != nil {
			sum += *r.Points
		}
	}
	return sum
}

func questionIndex(qs []models.QuizQuestion) map[int64]models.QuizQuestion {
	m := make(map[int64]models.QuizQuestion, len(qs))
	for _, q := range qs {
		m[q.ID] = q
	}
	return m
}

// validResponse — для multiple_choice ответ обязан быть id одного из вариантов.
func validResponse(q models.QuizQuestion, text string) error {
	if q.Type != models.MultipleChoice || strings.TrimSpace(text) == "" {
		return nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err == nil {
		for _, o := range q.Options {
			if o.ID == id {
				return nil
			}
		}
	}
	return apperr.Invalid("response", "must be the id of one of the question options")
}

// RecordResponse — ответ студента на вопрос; повторный вызов перезаписывает ответ.
func (e *Engine) RecordResponse(ctx context.Context, actor Actor, submissionID, questionID int64, text string) (err error) {
	defer e.finish("quiz.record_response", &err)
	return e.store.Atomic(ctx, func(r Repo) error {
		sc, err := e.ownDraft(ctx, r, actor, submissionID)
		if err != nil {
			return err
		}
		q, err := questionOf(ctx, r, sc.item, questionID)
		if err != nil {
			return err
		}
		if err := validResponse(q, text); err != nil {
			return err
		}
		return r.UpsertResponse(ctx, submissionID, questionID, text)
	})
}

// Score — проверка сданного теста преподавателем курса.
func (e *Engine) Score(ctx context.Context, actor Actor, submissionID int64) (res ScoreResult, err error) {
	defer e.finish("quiz.score", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		sc, err := e.loadSubmission(ctx, r, submissionID)
		if err != nil {
			return err
		}
		if err := authorize(actor, ownerOrAdmin(sc.course)); err != nil {
			return err
		}
		if sc.item.Kind != models.Quiz {
			return apperr.Conflict("item %d is not a quiz", sc.item.ID)
		}
		if sc.sub.Status != models.SubmissionSubmitted {
			return apperr.Conflict("submission %d is not submitted yet", submissionID)
		}
		res, err = e.scoreSubmission(ctx, r, sc, &actor.UserID, false)
		return err
	})
	return res, err
}

// GradeResponse — ручная оценка ответа short_answer; оценка за тест пересчитывается.
func (e *Engine) GradeResponse(ctx context.Context, actor Actor, submissionID, questionID int64, points float64, feedback string) (res ScoreResult, err error) {
	defer e.finish("quiz.grade_response", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		sc, err := e.loadSubmission(ctx, r, submissionID)
		if err != nil {
			return err
		}
		if err := authorize(actor, ownsCourse(sc.course)); err != nil {
			return err
		}
		if sc.sub.Status != models.SubmissionSubmitted {
			return apperr.Conflict("submission %d is not submitted yet", submissionID)
		}
		q, err := questionOf(ctx, r, sc.item, questionID)
		if err != nil {
			return err
		}
		if q.Type != models.ShortAnswer {
			return apperr.Conflict("question %d is scored automatically", questionID)
		}
		if points < 0 || points > q.Points {
			return apperr.Invalid("points", "must be between 0 and "+strconv.FormatFloat(q.Points, 'f', -1, 64))
		}
		if err := r.SetResponseScore(ctx, submissionID, questionID, &points, feedback); err != nil {
			return err
		}
		res, err = e.scoreSubmission(ctx, r, sc, &actor.UserID, true)
		return err
	})
	return res, err
}

func questionOf(ctx context.Context, r Repo, item models.CourseItem, questionID int64) (models.QuizQuestion, error) {
	if item.Kind != models.Quiz {
		return models.QuizQuestion{}, apperr.NotFound("question %d is not part of this item", questionID)
	}
	qs, err := r.ListQuestions(ctx, item.ID)
	if err != nil {
		return models.QuizQuestion{}, err
	}
	q, ok := questionIndex(qs)[questionID]
	if !ok {
		return models.QuizQuestion{}, apperr.NotFound("question %d is not part of this quiz", questionID)
	}
	return q, nil
}

// scoreSubmission пересчитывает автоматическую часть, пишет auto_score и
// оценку за элемент: автоматическая сумма плюс ручные баллы. Оценку,
// выставленную через GradeItem, меняет только при override; отзыв
// преподавателя сохраняется всегда.
func (e *Engine) scoreSubmission(ctx context.Context, r Repo, sc subContext, grader *int64, override bool) (ScoreResult, error) {
	qs, err := r.ListQuestions(ctx, sc.item.ID)
	if err != nil {
		return ScoreResult{}, err
	}
	rs, err := r.ListResponses(ctx, sc.sub.ID)
	if err != nil {
		return ScoreResult{}, err
	}
	total, awarded := ScoreResponses(qs, rs)
	for _, q := range qs {
		pts, ok := awarded[q.ID]
		if !ok {
			continue
		}
		if err := r.SetResponseScore(ctx, sc.sub.ID, q.ID, &pts, ""); err != nil {
			return ScoreResult{}, err
		}
	}
	manual := manualPoints(qs, rs)

	now := e.stamp()
	sc.sub.AutoScore = &total
	sc.sub.UpdatedAt = now
	if err := r.UpdateSubmission(ctx, sc.sub, models.SubmissionSubmitted); err != nil {
		return ScoreResult{}, moved(err, "submission %d is not submitted", sc.sub.ID)
	}
	res := ScoreResult{Submission: sc.sub, AutoScore: total, Manual: manual}

	prev, err := r.FindGrade(ctx, sc.item.ID, sc.enr.StudentID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return ScoreResult{}, err
	}
	if prev.Manual && !override {
		res.Grade = prev
		return res, nil
	}
	res.Grade = models.Grade{
		ItemID:    sc.item.ID,
		StudentID: sc.enr.StudentID,
		Score:     total + manual,
		Feedback:  prev.Feedback,
		GradedBy:  grader,
		GradedAt:  now,
	}
	if err := r.UpsertGrade(ctx, res.Grade); err != nil {
		return ScoreResult{}, err
	}
	return res, nil
}
