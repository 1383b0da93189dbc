package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// CreateCourse — новый курс; владелец — вызывающий преподаватель.
func (e *Engine) CreateCourse(ctx context.Context, actor Actor, in NewCourse) (c models.Course, err error) {
	defer e.finish("catalog.create_course", &err)
	if err := authorize(actor, hasRole(models.Professor)); err != nil {
		return models.Course{}, err
	}
	in.Prefix = strings.ToUpper(strings.TrimSpace(in.Prefix))
	in.Number = strings.TrimSpace(in.Number)
	in.Name = strings.TrimSpace(in.Name)
	if err := e.valid.check(in); err != nil {
		return models.Course{}, err
	}
	c = models.Course{
		Prefix:      in.Prefix,
		Number:      in.Number,
		Name:        in.Name,
		Schedule:    in.Schedule,
		ProfessorID: actor.UserID,
	}
	err = e.store.Atomic(ctx, func(r Repo) error { return r.InsertCourse(ctx, &c) })
	return c, err
}

func (e *Engine) GetCourse(ctx context.Context, actor Actor, id int64) (c models.Course, err error) {
	defer e.finish("catalog.get_course", &err)
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		c, err = e.visibleCourse(ctx, r, actor, id)
		return err
	})
	return c, err
}

// ListCourses — преподаватель видит свои курсы, администратор — все.
func (e *Engine) ListCourses(ctx context.Context, actor Actor) (out []models.Course, err error) {
	defer e.finish("catalog.list_courses", &err)
	if err := authorize(actor, hasRole(models.Professor, models.Admin)); err != nil {
		return nil, err
	}
	owner := actor.UserID
	if actor.Is(models.Admin) {
		owner = 0
	}
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		out, err = r.ListCourses(ctx, owner)
		return err
	})
	return out, err
}

func (e *Engine) UpdateCourse(ctx context.Context, actor Actor, id int64, patch CoursePatch) (c models.Course, err error) {
	defer e.finish("catalog.update_course", &err)
	if err := e.valid.check(patch); err != nil {
		return models.Course{}, err
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		var err error
		if c, err = e.ownedCourse(ctx, r, actor, id); err != nil {
			return err
		}
		if patch.Prefix != nil {
			c.Prefix = strings.ToUpper(strings.TrimSpace(*patch.Prefix))
		}
		if patch.Number != nil {
			c.Number = strings.TrimSpace(*patch.Number)
		}
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Schedule != nil {
			c.Schedule = *patch.Schedule
		}
		return r.UpdateCourse(ctx, c)
	})
	return c, err
}

// DeleteCourse — удаляет курс; элементы, записи и оценки уходят каскадом.
func (e *Engine) DeleteCourse(ctx context.Context, actor Actor, id int64) (err error) {
	defer e.finish("catalog.delete_course", &err)
	return e.store.Atomic(ctx, func(r Repo) error {
		if _, err := e.ownedCourse(ctx, r, actor, id); err != nil {
			return err
		}
		return r.DeleteCourse(ctx, id)
	})
}

func (e *Engine) CreateItem(ctx context.Context, actor Actor, courseID int64, in NewItem) (it models.CourseItem, err error) {
	defer e.finish("catalog.create_item", &err)
	in.Title = strings.TrimSpace(in.Title)
	if err := e.valid.check(in); err != nil {
		return models.CourseItem{}, err
	}
	switch in.Kind {
	case models.Quiz:
		if in.Points != 0 {
			return models.CourseItem{}, apperr.Invalid("points", "quiz points are the sum of its question points")
		}
	case models.Assignment:
		if in.Points <= 0 {
			return models.CourseItem{}, apperr.Invalid("points", "must be greater than 0")
		}
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		if _, err := e.ownedCourse(ctx, r, actor, courseID); err != nil {
			return err
		}
		it = models.CourseItem{
			CourseID: courseID,
			Kind:     in.Kind,
			Title:    in.Title,
			Content:  in.Content,
			Points:   in.Points,
			DueAt:    in.DueAt,
			Position: in.Position,
		}
		return r.InsertItem(ctx, &it)
	})
	return it, err
}

func (e *Engine) GetItem(ctx context.Context, actor Actor, id int64) (it models.CourseItem, err error) {
	defer e.finish("catalog.get_item", &err)
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		if it, err = r.ItemByID(ctx, id); err != nil {
			return missing(err, "item %d not found", id)
		}
		_, err = e.visibleCourse(ctx, r, actor, it.CourseID)
		return err
	})
	return it, err
}

func (e *Engine) ListItems(ctx context.Context, actor Actor, courseID int64) (out []models.CourseItem, err error) {
	defer e.finish("catalog.list_items", &err)
	err = e.store.View(ctx, func(r Repo) error {
		if _, err := e.visibleCourse(ctx, r, actor, courseID); err != nil {
			return err
		}
		var err error
		out, err = r.ListItems(ctx, courseID)
		return err
	})
	return out, err
}

// UpdateItem — вид элемента не меняется, баллы теста задаются только вопросами.
func (e *Engine) UpdateItem(ctx context.Context, actor Actor, id int64, patch ItemPatch) (it models.CourseItem, err error) {
	defer e.finish("catalog.update_item", &err)
	if err := e.valid.check(patch); err != nil {
		return models.CourseItem{}, err
	}
	err = e.store.Atomic(ctx, func(r Repo) error {
		var err error
		if it, err = e.ownedItem(ctx, r, actor, id); err != nil {
			return err
		}
		if patch.Points != nil {
			if it.Kind == models.Quiz {
				return apperr.Invalid("points", "quiz points are the sum of its question points")
			}
			it.Points = *patch.Points
		}
		if patch.Title != nil {
			it.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Content != nil {
			it.Content = *patch.Content
		}
		if patch.DueAt != nil {
			it.DueAt = patch.DueAt
		}
		if patch.Position != nil {
			it.Position = *patch.Position
		}
		return r.UpdateItem(ctx, it)
	})
	return it, err
}

func (e *Engine) DeleteItem(ctx context.Context, actor Actor, id int64) (err error) {
	defer e.finish("catalog.delete_item", &err)
	return e.store.Atomic(ctx, func(r Repo) error {
		if _, err := e.ownedItem(ctx, r, actor, id); err != nil {
			return err
		}
		return r.DeleteItem(ctx, id)
	})
}

// AddQuestion — вопрос теста. У multiple_choice минимум два варианта и ровно
// один верный; у short_answer вариантов нет. Баллы теста пересчитываются.
func (e *Engine) AddQuestion(ctx context.Context, actor Actor, itemID int64, in NewQuestion) (q models.QuizQuestion, err error) {
	defer e.finish("catalog.add_question", &err)
	in.Text = strings.TrimSpace(in.Text)
	if err := e.valid.check(in); err != nil {
		return models.QuizQuestion{}, err
	}
	switch in.Type {
	case models.MultipleChoice:
		if len(in.Options) < 2 {
			return models.QuizQuestion{}, apperr.Invalid("options", "multiple choice needs at least two options")
		}
		correct := 0
		for _, o := range in.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return models.QuizQuestion{}, apperr.Invalid("options", "exactly one option must be correct")
		}
	case models.ShortAnswer:
		if len(in.Options) > 0 {
			return models.QuizQuestion{}, apperr.Invalid("options", "short answer questions have no options")
		}
	}

	err = e.store.Atomic(ctx, func(r Repo) error {
		if _, err := e.ownedItem(ctx, r, actor, itemID); err != nil {
			return err
		}
		// баллы теста считаются под блокировкой строки элемента
		it, err := r.LockItem(ctx, itemID)
		if err != nil {
			return missing(err, "item %d not found", itemID)
		}
		if it.Kind != models.Quiz {
			return apperr.Conflict("item %d is not a quiz", itemID)
		}
		existing, err := r.ListQuestions(ctx, itemID)
		if err != nil {
			return err
		}
		q = models.QuizQuestion{ItemID: itemID, Type: in.Type, Text: in.Text, Points: in.Points, Position: len(existing)}
		for i, o := range in.Options {
			q.Options = append(q.Options, models.QuizOption{Text: o.Text, IsCorrect: o.IsCorrect, Position: i})
		}
		if err := r.InsertQuestion(ctx, &q); err != nil {
			return err
		}
		total := q.Points
		for _, x := range existing {
			total += x.Points
		}
		it.Points = total
		return r.UpdateItem(ctx, it)
	})
	return q, err
}

// ListQuestions — студенту отдаём вопросы без отметки верного варианта.
func (e *Engine) ListQuestions(ctx context.Context, actor Actor, itemID int64) (out []models.QuizQuestion, err error) {
	defer e.finish("catalog.list_questions", &err)
	err = e.store.View(ctx, func(r Repo) error {
		it, err := r.ItemByID(ctx, itemID)
		if err != nil {
			return missing(err, "item %d not found", itemID)
		}
		if _, err := e.visibleCourse(ctx, r, actor, it.CourseID); err != nil {
			return err
		}
		out, err = r.ListQuestions(ctx, itemID)
		return err
	})
	if err == nil && actor.Is(models.Student) {
		for i := range out {
			for j := range out[i].Options {
				out[i].Options[j].IsCorrect = false
			}
		}
	}
	return out, err
}

// visibleCourse — курс виден владельцу, администратору и студентам с
// действующей или завершённой записью.
func (e *Engine) visibleCourse(ctx context.Context, r Repo, actor Actor, id int64) (models.Course, error) {
	if err := authorize(actor); err != nil {
		return models.Course{}, err
	}
	c, err := r.CourseByID(ctx, id)
	if err != nil {
		return models.Course{}, missing(err, "course %d not found", id)
	}
	if ownerOrAdmin(c)(actor) == nil {
		return c, nil
	}
	if actor.Is(models.Student) {
		enr, err := r.FindEnrollment(ctx, id, actor.UserID)
		if err == nil && (enr.Status == models.EnrollmentActive || enr.Status == models.EnrollmentCompleted) {
			return c, nil
		}
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return models.Course{}, err
		}
	}
	return models.Course{}, apperr.Forbidden("course %d is not available to you", id)
}

func (e *Engine) ownedCourse(ctx context.Context, r Repo, actor Actor, id int64) (models.Course, error) {
	c, err := r.CourseByID(ctx, id)
	if err != nil {
		return models.Course{}, missing(err, "course %d not found", id)
	}
	if err := authorize(actor, ownerOrAdmin(c)); err != nil {
		return models.Course{}, err
	}
	return c, nil
}

func (e *Engine) ownedItem(ctx context.Context, r Repo, actor Actor, id int64) (models.CourseItem, error) {
	it, err := r.ItemByID(ctx, id)
	if err != nil {
		return models.CourseItem{}, missing(err, "item %d not found", id)
	}
	if _, err := e.ownedCourse(ctx, r, actor, it.CourseID); err != nil {
		return models.CourseItem{}, err
	}
	return it, nil
}
