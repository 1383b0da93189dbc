package workflow

import (
	"context"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// GetOrCreate — черновик работы студента по элементу курса. Идемпотентна:
// параллельные вызовы получают одну и ту же запись.
func (e *Engine) GetOrCreate(ctx context.Context, actor Actor, enrollmentID, itemID int64) (s models.Submission, err error) {
	defer e.finish("submission.get_or_create", &err)
	if err := authorize(actor, hasRole(models.Student)); err != nil {
		return models.Submission{}, err
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		enr, err := r.EnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return missing(err, "enrollment %d not found", enrollmentID)
		}
		if enr.StudentID != actor.UserID {
			return apperr.Forbidden("enrollment %d belongs to another student", enrollmentID)
		}
		if enr.Status != models.EnrollmentActive {
			return apperr.Conflict("enrollment %d is %s, not active", enrollmentID, enr.Status)
		}
		it, err := r.ItemByID(ctx, itemID)
		if err != nil {
			return missing(err, "item %d not found", itemID)
		}
		if it.CourseID != enr.CourseID {
			return apperr.NotFound("item %d not found in this course", itemID)
		}
		s, _, err = r.GetOrCreateSubmission(ctx, enr.ID, it.ID)
		return err
	})
	return s, err
}

// Update — правка содержимого и/или сдача работы. Сданную работу правит только
// преподаватель курса; вернуть её в черновик нельзя.
func (e *Engine) Update(ctx context.Context, actor Actor, submissionID int64, patch models.SubmissionPatch) (s models.Submission, err error) {
	defer e.finish("submission.update", &err)
	if patch.Status != nil && !patch.Status.Valid() {
		return models.Submission{}, apperr.Invalid("status", "must be draft or submitted")
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		sc, err := e.loadSubmission(ctx, r, submissionID)
		if err != nil {
			return err
		}
		isOwner := actor.UserID == sc.enr.StudentID && actor.Is(models.Student)
		isProf := ownsCourse(sc.course)(actor) == nil
		if err := authorize(actor, func(Actor) error {
			if isOwner || isProf {
				return nil
			}
			return apperr.Forbidden("submission %d is not yours", submissionID)
		}); err != nil {
			return err
		}

		s = sc.sub
		from := s.Status
		if patch.Status != nil && *patch.Status == models.SubmissionDraft && s.Status == models.SubmissionSubmitted {
			return apperr.Conflict("submitted work cannot be reopened")
		}
		if s.Status == models.SubmissionSubmitted && !isProf {
			return apperr.Conflict("submission %d is already submitted", submissionID)
		}
		if isOwner && sc.enr.Status != models.EnrollmentActive {
			return apperr.Conflict("enrollment is %s, not active", sc.enr.Status)
		}

		if patch.Content != nil {
			s.Content = *patch.Content
		}
		submitting := patch.Status != nil && *patch.Status == models.SubmissionSubmitted && s.Status == models.SubmissionDraft
		now := e.stamp()
		if submitting {
			s.Status = models.SubmissionSubmitted
			s.SubmittedAt = &now
		}
		s.UpdatedAt = now
		if err := r.UpdateSubmission(ctx, s, from); err != nil {
			return moved(err, "submission %d was changed by another request", submissionID)
		}
		if submitting && sc.item.Kind == models.Quiz {
			sc.sub = s
			res, err := e.scoreSubmission(ctx, r, sc, nil, false)
			if err != nil {
				return err
			}
			s = res.Submission
		}
		return nil
	})
	return s, err
}

// FinishQuiz — записывает все ответы, затем сдаёт тест и сразу его оценивает.
func (e *Engine) FinishQuiz(ctx context.Context, actor Actor, submissionID int64, answers map[int64]string) (res ScoreResult, err error) {
	defer e.finish("submission.finish_quiz", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		sc, err := e.ownDraft(ctx, r, actor, submissionID)
		if err != nil {
			return err
		}
		if sc.item.Kind != models.Quiz {
			return apperr.Conflict("item %d is not a quiz", sc.item.ID)
		}
		questions, err := r.ListQuestions(ctx, sc.item.ID)
		if err != nil {
			return err
		}
		byID := questionIndex(questions)
		for qid := range answers {
			if _, ok := byID[qid]; !ok {
				return apperr.NotFound("question %d is not part of this quiz", qid)
			}
		}
		// ответы пишем в порядке вопросов
		for _, q := range questions {
			text, ok := answers[q.ID]
			if !ok {
				continue
			}
			if err := validResponse(q, text); err != nil {
				return err
			}
			if err := r.UpsertResponse(ctx, sc.sub.ID, q.ID, text); err != nil {
				return err
			}
		}

		now := e.stamp()
		sc.sub.Status = models.SubmissionSubmitted
		sc.sub.SubmittedAt = &now
		sc.sub.UpdatedAt = now
		if err := r.UpdateSubmission(ctx, sc.sub, models.SubmissionDraft); err != nil {
			return moved(err, "submission %d was changed by another request", submissionID)
		}
		res, err = e.scoreSubmission(ctx, r, sc, nil, false)
		return err
	})
	return res, err
}

// ListByItem — все работы по элементу с данными студентов (для преподавателя).
func (e *Engine) ListByItem(ctx context.Context, actor Actor, itemID int64) (out []models.SubmissionView, err error) {
	defer e.finish("submission.list_item", &err)
	err = e.store.View(ctx, func(r Repo) error {
		if _, err := e.ownedItem(ctx, r, actor, itemID); err != nil {
			return err
		}
		var err error
		out, err = r.ListItemSubmissions(ctx, itemID)
		return err
	})
	return out, err
}

// ListMineByCourse — собственные работы студента по курсу.
func (e *Engine) ListMineByCourse(ctx context.Context, actor Actor, courseID int64) (out []models.SubmissionView, err error) {
	defer e.finish("submission.list_mine", &err)
	if err := authorize(actor, hasRole(models.Student)); err != nil {
		return nil, err
	}
	err = e.store.View(ctx, func(r Repo) error {
		enr, err := r.FindEnrollment(ctx, courseID, actor.UserID)
		if err != nil {
			return missing(err, "you are not enrolled in course %d", courseID)
		}
		if enr.Status == models.EnrollmentPending {
			return apperr.NotFound("you are not enrolled in course %d", courseID)
		}
		out, err = r.ListEnrollmentSubmissions(ctx, enr.ID)
		return err
	})
	return out, err
}

// subContext — работа вместе с записью, элементом и курсом.
type subContext struct {
	sub    models.Submission
	enr    models.Enrollment
	item   models.CourseItem
	course models.Course
}

// loadSubmission блокирует строку работы до конца транзакции: проверка
// статуса и запись не разделяются чужим изменением.
func (e *Engine) loadSubmission(ctx context.Context, r Repo, id int64) (subContext, error) {
	var sc subContext
	var err error
	if sc.sub, err = r.LockSubmission(ctx, id); err != nil {
		return sc, missing(err, "submission %d not found", id)
	}
	if sc.enr, err = r.EnrollmentByID(ctx, sc.sub.EnrollmentID); err != nil {
		return sc, missing(err, "submission %d not found", id)
	}
	if sc.item, err = r.ItemByID(ctx, sc.sub.ItemID); err != nil {
		return sc, missing(err, "submission %d not found", id)
	}
	if sc.course, err = r.CourseByID(ctx, sc.item.CourseID); err != nil {
		return sc, missing(err, "submission %d not found", id)
	}
	return sc, nil
}

// ownDraft — работа вызывающего студента, ещё не сданная.
func (e *Engine) ownDraft(ctx context.Context, r Repo, actor Actor, id int64) (subContext, error) {
	sc, err := e.loadSubmission(ctx, r, id)
	if err != nil {
		return sc, err
	}
	if err := authorize(actor, hasRole(models.Student), isUser(sc.enr.StudentID)); err != nil {
		return sc, apperr.Forbidden("submission %d is not yours", id)
	}
	if sc.sub.Status == models.SubmissionSubmitted {
		return sc, apperr.Forbidden("submission %d is already submitted", id)
	}
	if sc.enr.Status != models.EnrollmentActive {
		return sc, apperr.Conflict("enrollment is %s, not active", sc.enr.Status)
	}
	return sc, nil
}
