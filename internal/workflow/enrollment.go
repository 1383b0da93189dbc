package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// Invite — приглашение студента на курс по email. Создаёт запись pending.
// Повторное приглашение при любой существующей записи (в том числе dropped) — Conflict.
func (e *Engine) Invite(ctx context.Context, actor Actor, courseID int64, email string) (enr models.Enrollment, err error) {
	defer e.finish("enrollment.invite", &err)
	if err := authorize(actor, hasRole(models.Professor)); err != nil {
		return models.Enrollment{}, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return models.Enrollment{}, apperr.Invalid("email", "email is a required field")
	}

	var view models.EnrollmentView
	err = e.store.Atomic(ctx, func(r Repo) error {
		c, err := r.CourseByID(ctx, courseID)
		if err != nil {
			return missing(err, "course %d not found", courseID)
		}
		// чужой курс для приглашающего не существует
		if c.ProfessorID != actor.UserID {
			return apperr.NotFound("course %d not found", courseID)
		}
		student, err := r.UserByEmail(ctx, email)
		if err != nil {
			return missing(err, "no user with email %s", email)
		}
		if !student.IsStudent() {
			return apperr.Invalid("email", "only students can be invited")
		}
		prof, err := r.UserByID(ctx, actor.UserID)
		if err != nil {
			return missing(err, "user %d not found", actor.UserID)
		}
		enr = models.Enrollment{
			CourseID:  courseID,
			StudentID: student.ID,
			Status:    models.EnrollmentPending,
			InvitedBy: &actor.UserID,
			CreatedAt: e.stamp(),
		}
		enr.UpdatedAt = enr.CreatedAt
		if err := r.InsertEnrollment(ctx, &enr); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return apperr.Conflict("%s is already enrolled or invited", email)
			}
			return err
		}
		view = enrollmentView(enr, student, c, prof)
		return nil
	})
	if err != nil {
		return models.Enrollment{}, err
	}
	if nerr := e.notifier.Invited(ctx, view); nerr != nil {
		e.log.Warn("invitation notification failed", zap.Int64("enrollment_id", enr.ID), zap.Error(nerr))
	}
	return enr, nil
}

// DirectEnroll — сразу активная запись, без приглашения.
func (e *Engine) DirectEnroll(ctx context.Context, actor Actor, courseID, studentID int64) (enr models.Enrollment, err error) {
	defer e.finish("enrollment.direct", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		if _, err := e.ownedCourse(ctx, r, actor, courseID); err != nil {
			return err
		}
		student, err := r.UserByID(ctx, studentID)
		if err != nil {
			return missing(err, "user %d not found", studentID)
		}
		if !student.IsStudent() {
			return apperr.Invalid("student_id", "only students can be enrolled")
		}
		enr = models.Enrollment{
			CourseID:  courseID,
			StudentID: studentID,
			Status:    models.EnrollmentActive,
			InvitedBy: &actor.UserID,
			CreatedAt: e.stamp(),
		}
		enr.UpdatedAt = enr.CreatedAt
		if err := r.InsertEnrollment(ctx, &enr); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return apperr.Conflict("student %d is already enrolled or invited", studentID)
			}
			return err
		}
		return nil
	})
	return enr, err
}

// Accept — студент принимает приглашение: pending -> active.
func (e *Engine) Accept(ctx context.Context, actor Actor, invitationID int64) (enr models.Enrollment, err error) {
	defer e.finish("enrollment.accept", &err)
	if err := authorize(actor); err != nil {
		return models.Enrollment{}, err
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		var err error
		if enr, err = e.pendingInvitation(ctx, r, actor, invitationID); err != nil {
			return err
		}
		// условный UPDATE: параллельный accept/decline не пройдёт дважды
		if err := r.SetEnrollmentStatus(ctx, enr.ID, models.EnrollmentPending, models.EnrollmentActive); err != nil {
			return missing(err, "invitation %d not found", invitationID)
		}
		enr.Status = models.EnrollmentActive
		enr.UpdatedAt = e.stamp()
		return nil
	})
	return enr, err
}

// Decline — студент отклоняет приглашение; запись удаляется без следа.
func (e *Engine) Decline(ctx context.Context, actor Actor, invitationID int64) (err error) {
	defer e.finish("enrollment.decline", &err)
	if err := authorize(actor); err != nil {
		return err
	}
	return e.store.Atomic(ctx, func(r Repo) error {
		enr, err := e.pendingInvitation(ctx, r, actor, invitationID)
		if err != nil {
			return err
		}
		return missing(r.DeleteEnrollment(ctx, enr.ID, models.EnrollmentPending), "invitation %d not found", invitationID)
	})
}

func (e *Engine) pendingInvitation(ctx context.Context, r Repo, actor Actor, id int64) (models.Enrollment, error) {
	enr, err := r.EnrollmentByID(ctx, id)
	if err != nil {
		return models.Enrollment{}, missing(err, "invitation %d not found", id)
	}
	if enr.Status != models.EnrollmentPending {
		return models.Enrollment{}, apperr.NotFound("invitation %d not found", id)
	}
	if enr.StudentID != actor.UserID {
		return models.Enrollment{}, apperr.Forbidden("invitation %d is addressed to another student", id)
	}
	return enr, nil
}

// Drop — active -> dropped.
func (e *Engine) Drop(ctx context.Context, actor Actor, enrollmentID int64) (models.Enrollment, error) {
	return e.closeEnrollment(ctx, "enrollment.drop", actor, enrollmentID, models.EnrollmentDropped)
}

// Complete — active -> completed.
func (e *Engine) Complete(ctx context.Context, actor Actor, enrollmentID int64) (models.Enrollment, error) {
	return e.closeEnrollment(ctx, "enrollment.complete", actor, enrollmentID, models.EnrollmentCompleted)
}

func (e *Engine) closeEnrollment(ctx context.Context, op string, actor Actor, id int64, to models.EnrollmentStatus) (enr models.Enrollment, err error) {
	defer e.finish(op, &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		var err error
		if enr, err = r.EnrollmentByID(ctx, id); err != nil {
			return missing(err, "enrollment %d not found", id)
		}
		if _, err := e.ownedCourse(ctx, r, actor, enr.CourseID); err != nil {
			return err
		}
		if enr.Status != models.EnrollmentActive {
			return apperr.Conflict("enrollment %d is %s, not active", id, enr.Status)
		}
		if err := r.SetEnrollmentStatus(ctx, id, models.EnrollmentActive, to); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return apperr.Conflict("enrollment %d is no longer active", id)
			}
			return err
		}
		enr.Status = to
		enr.UpdatedAt = e.stamp()
		return nil
	})
	return enr, err
}

// ListForCourse — записи курса с именами студентов; status пустой — все.
func (e *Engine) ListForCourse(ctx context.Context, actor Actor, courseID int64, status models.EnrollmentStatus) (out []models.EnrollmentView, err error) {
	defer e.finish("enrollment.list_course", &err)
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", "unknown enrollment status")
	}
	err = e.store.View(ctx, func(r Repo) error {
		if _, err := e.ownedCourse(ctx, r, actor, courseID); err != nil {
			return err
		}
		var err error
		out, err = r.ListCourseEnrollments(ctx, courseID, status)
		return err
	})
	return out, err
}

// ListForStudent — записи студента с названиями курсов и именами преподавателей.
func (e *Engine) ListForStudent(ctx context.Context, actor Actor, studentID int64, status models.EnrollmentStatus) (out []models.EnrollmentView, err error) {
	defer e.finish("enrollment.list_student", &err)
	if err := authorize(actor, either(isUser(studentID), hasRole(models.Admin))); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Invalid("status", "unknown enrollment status")
	}
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		out, err = r.ListStudentEnrollments(ctx, studentID, status)
		return err
	})
	return out, err
}

// RemindStats — итог одного прохода напоминаний.
type RemindStats struct {
	Sent   int
	Failed int
}

// Attempted — сколько приглашений обработано за проход.
func (s RemindStats) Attempted() int { return s.Sent + s.Failed }

// RemindPendingInvitations — напоминания по приглашениям старше olderThan.
// Каждое приглашение получает одну попытку; неудачная тоже отмечается.
func (e *Engine) RemindPendingInvitations(ctx context.Context, olderThan time.Duration, batch int) (st RemindStats, err error) {
	defer e.finish("enrollment.remind", &err)
	var stale []models.EnrollmentView
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		stale, err = r.StaleInvitations(ctx, e.stamp().Add(-olderThan), batch)
		return err
	})
	if err != nil || len(stale) == 0 {
		return st, err
	}

	ids := make([]int64, 0, len(stale))
	for _, inv := range stale {
		ids = append(ids, inv.ID)
		if err := e.notifier.Reminded(ctx, inv); err != nil {
			e.log.Warn("invitation reminder failed", zap.Int64("enrollment_id", inv.ID), zap.Error(err))
			st.Failed++
			continue
		}
		st.Sent++
	}
	err = e.store.Atomic(ctx, func(r Repo) error { return r.MarkReminded(ctx, ids, e.stamp()) })
	return st, err
}

func enrollmentView(enr models.Enrollment, student models.User, c models.Course, prof models.User) models.EnrollmentView {
	return models.EnrollmentView{
		Enrollment:     enr,
		StudentName:    student.Name,
		StudentEmail:   student.Email,
		StudentChatID:  student.TelegramChatID,
		CoursePrefix:   c.Prefix,
		CourseNumber:   c.Number,
		CourseName:     c.Name,
		ProfessorName:  prof.Name,
		ProfessorEmail: prof.Email,
	}
}
