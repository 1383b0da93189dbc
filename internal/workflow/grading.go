package workflow

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// GradeItem — оценка за элемент курса. Работа студента должна существовать.
func (e *Engine) GradeItem(ctx context.Context, actor Actor, itemID, studentID int64, score float64, feedback string) (g models.Grade, err error) {
	defer e.finish("grading.grade_item", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		it, err := r.ItemByID(ctx, itemID)
		if err != nil {
			return missing(err, "item %d not found", itemID)
		}
		c, err := r.CourseByID(ctx, it.CourseID)
		if err != nil {
			return missing(err, "item %d not found", itemID)
		}
		if err := authorize(actor, ownsCourse(c)); err != nil {
			return err
		}
		if _, err := r.FindSubmission(ctx, itemID, studentID); err != nil {
			return missing(err, "no submission for item %d by student %d", itemID, studentID)
		}
		if score < 0 || score > it.Points {
			return apperr.Invalid("score", "must be between 0 and "+strconv.FormatFloat(it.Points, 'f', -1, 64))
		}
		g = models.Grade{
			ItemID:    itemID,
			StudentID: studentID,
			Score:     score,
			Feedback:  feedback,
			Manual:    true,
			GradedBy:  &actor.UserID,
			GradedAt:  e.stamp(),
		}
		return r.UpsertGrade(ctx, g)
	})
	return g, err
}

// StudentGrades — оценки студента по курсу: сам студент, преподаватель курса или администратор.
func (e *Engine) StudentGrades(ctx context.Context, actor Actor, courseID, studentID int64) (out []models.GradeView, err error) {
	defer e.finish("grading.student_grades", &err)
	err = e.store.View(ctx, func(r Repo) error {
		c, err := r.CourseByID(ctx, courseID)
		if err != nil {
			return missing(err, "course %d not found", courseID)
		}
		if err := authorize(actor, either(isUser(studentID), ownerOrAdmin(c))); err != nil {
			return err
		}
		out, err = r.ListStudentGrades(ctx, courseID, studentID)
		return err
	})
	return out, err
}

func (e *Engine) ItemGrades(ctx context.Context, actor Actor, itemID int64) (out []models.GradeView, err error) {
	defer e.finish("grading.item_grades", &err)
	err = e.store.View(ctx, func(r Repo) error {
		if _, err := e.ownedItem(ctx, r, actor, itemID); err != nil {
			return err
		}
		var err error
		out, err = r.ListItemGrades(ctx, itemID)
		return err
	})
	return out, err
}

// Finalize — итоговые оценки курса. Сначала проверяются сданные, но ещё не
// оценённые тесты, затем для каждой active/completed записи считается
// earned/possible по оценённым элементам. Прежние итоги перезаписываются.
func (e *Engine) Finalize(ctx context.Context, actor Actor, courseID int64) (out []models.FinalGrade, err error) {
	defer e.finish("grading.finalize", &err)
	err = e.store.Atomic(ctx, func(r Repo) error {
		// блокировка курса: параллельные Finalize идут по очереди
		c, err := r.LockCourse(ctx, courseID)
		if err != nil {
			return missing(err, "course %d not found", courseID)
		}
		if err := authorize(actor, ownsCourse(c)); err != nil {
			return err
		}

		unscored, err := r.UnscoredQuizSubmissions(ctx, courseID)
		if err != nil {
			return err
		}
		for _, s := range unscored {
			sc, err := e.loadSubmission(ctx, r, s.ID)
			if err != nil {
				return err
			}
			if _, err := e.scoreSubmission(ctx, r, sc, nil, false); err != nil {
				return err
			}
		}

		items, err := r.ListItems(ctx, courseID)
		if err != nil {
			return err
		}
		enrollments, err := r.ListCourseEnrollments(ctx, courseID, "")
		if err != nil {
			return err
		}
		grades, err := r.ListCourseGrades(ctx, courseID)
		if err != nil {
			return err
		}
		out = ComputeFinalGrades(courseID, items, enrollments, grades)
		return r.ReplaceFinalGrades(ctx, courseID, out)
	})
	return out, err
}

// FinalGrades — сохранённые итоги. Студент видит только свою строку.
func (e *Engine) FinalGrades(ctx context.Context, actor Actor, courseID int64) (out []models.FinalGrade, err error) {
	defer e.finish("grading.final_grades", &err)
	err = e.store.View(ctx, func(r Repo) error {
		c, err := e.visibleCourse(ctx, r, actor, courseID)
		if err != nil {
			return err
		}
		all, err := r.ListFinalGrades(ctx, courseID)
		if err != nil {
			return err
		}
		if ownerOrAdmin(c)(actor) == nil {
			out = all
			return nil
		}
		out = nil
		for _, fg := range all {
			if fg.StudentID == actor.UserID {
				out = append(out, fg)
			}
		}
		return nil
	})
	return out, err
}

// ComputeFinalGrades — чистый расчёт итогов. Элементы без оценки у студента
// в знаменатель не входят. Результат упорядочен по student_id.
func ComputeFinalGrades(courseID int64, items []models.CourseItem, enrollments []models.EnrollmentView, grades []models.GradeView) []models.FinalGrade {
	points := make(map[int64]float64, len(items))
	for _, it := range items {
		points[it.ID] = it.Points
	}
	type acc struct{ earned, possible float64 }
	sums := map[int64]*acc{}
	for _, g := range grades {
		p, ok := points[g.ItemID]
		if !ok {
			continue
		}
		a := sums[g.StudentID]
		if a == nil {
			a = &acc{}
			sums[g.StudentID] = a
		}
		a.earned += g.Score
		a.possible += p
	}

	out := make([]models.FinalGrade, 0, len(enrollments))
	for _, enr := range enrollments {
		if enr.Status != models.EnrollmentActive && enr.Status != models.EnrollmentCompleted {
			continue
		}
		fg := models.FinalGrade{CourseID: courseID, StudentID: enr.StudentID, StudentName: enr.StudentName}
		if a := sums[enr.StudentID]; a != nil {
			fg.Earned = a.earned
			fg.Possible = a.possible
		}
		fg.Percentage, fg.Letter = Percentage(fg.Earned, fg.Possible)
		out = append(out, fg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Percentage — процент с двумя знаками и буквенная оценка.
// Без оценённых элементов: 0 и пустая буква.
func Percentage(earned, possible float64) (float64, string) {
	if possible <= 0 {
		return 0, ""
	}
	pct := math.Round(earned/possible*10000) / 100
	return pct, Letter(pct)
}

func Letter(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

// Gradebook — сводная ведомость курса для выгрузки.
type Gradebook struct {
	Course      models.Course
	Items       []models.CourseItem
	Students    []models.EnrollmentView
	Grades      map[int64]map[int64]float64 // student -> item -> score
	FinalGrades map[int64]models.FinalGrade
}

// Gradebook — ведомость для преподавателя курса. Итоги считаются на лету и
// не сохраняются.
func (e *Engine) Gradebook(ctx context.Context, actor Actor, courseID int64) (gb Gradebook, err error) {
	defer e.finish("grading.gradebook", &err)
	err = e.store.View(ctx, func(r Repo) error {
		c, err := e.ownedCourse(ctx, r, actor, courseID)
		if err != nil {
			return err
		}
		items, err := r.ListItems(ctx, courseID)
		if err != nil {
			return err
		}
		enrollments, err := r.ListCourseEnrollments(ctx, courseID, "")
		if err != nil {
			return err
		}
		grades, err := r.ListCourseGrades(ctx, courseID)
		if err != nil {
			return err
		}
		gb = Gradebook{
			Course:      c,
			Items:       items,
			Grades:      map[int64]map[int64]float64{},
			FinalGrades: map[int64]models.FinalGrade{},
		}
		for _, g := range grades {
			if gb.Grades[g.StudentID] == nil {
				gb.Grades[g.StudentID] = map[int64]float64{}
			}
			gb.Grades[g.StudentID][g.ItemID] = g.Score
		}
		for _, fg := range ComputeFinalGrades(courseID, items, enrollments, grades) {
			gb.FinalGrades[fg.StudentID] = fg
		}
		for _, enr := range enrollments {
			if enr.Status == models.EnrollmentActive || enr.Status == models.EnrollmentCompleted {
				gb.Students = append(gb.Students, enr)
			}
		}
		return nil
	})
	return gb, err
}
