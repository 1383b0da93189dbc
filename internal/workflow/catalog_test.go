package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

func TestCourseCRUD(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	other, _ := f.mustUser(models.Professor, "other")
	admin, _ := f.mustUser(models.Admin, "root")
	student, _ := f.mustUser(models.Student, "alice")

	_, err := f.eng.CreateCourse(f.ctx, student, workflow.NewCourse{Prefix: "CS", Number: "1", Name: "x"})
	requireKind(t, apperr.KindForbidden, err)
	_, err = f.eng.CreateCourse(f.ctx, prof, workflow.NewCourse{Prefix: "C S", Number: "1", Name: "x"})
	requireKind(t, apperr.KindValidation, err)

	c, err := f.eng.CreateCourse(f.ctx, prof, workflow.NewCourse{Prefix: "cs", Number: "101", Name: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, "CS", c.Prefix)
	assert.Equal(t, "CS 101", c.Code())
	f.mustCourse(other)

	mine, err := f.eng.ListCourses(f.ctx, prof)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := f.eng.ListCourses(f.ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = f.eng.ListCourses(f.ctx, student)
	requireKind(t, apperr.KindForbidden, err)

	_, err = f.eng.UpdateCourse(f.ctx, other, c.ID, workflow.CoursePatch{Name: ptr("Hijacked")})
	requireKind(t, apperr.KindForbidden, err)
	c, err = f.eng.UpdateCourse(f.ctx, prof, c.ID, workflow.CoursePatch{Name: ptr("Intro to CS"), Schedule: ptr("Tue")})
	require.NoError(t, err)
	assert.Equal(t, "Intro to CS", c.Name)
	assert.Equal(t, "Tue", c.Schedule)

	_, err = f.eng.GetCourse(f.ctx, student, c.ID)
	requireKind(t, apperr.KindForbidden, err)

	require.NoError(t, f.eng.DeleteCourse(f.ctx, prof, c.ID))
	_, err = f.eng.GetCourse(f.ctx, prof, c.ID)
	requireKind(t, apperr.KindNotFound, err)
}

func TestItems(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)

	_, err := f.eng.CreateItem(f.ctx, prof, c.ID, workflow.NewItem{Kind: models.Assignment, Title: "HW"})
	requireKind(t, apperr.KindValidation, err)
	_, err = f.eng.CreateItem(f.ctx, prof, c.ID, workflow.NewItem{Kind: models.Quiz, Title: "Q", Points: 5})
	requireKind(t, apperr.KindValidation, err)
	_, err = f.eng.CreateItem(f.ctx, prof, c.ID, workflow.NewItem{Kind: "essay", Title: "E", Points: 5})
	requireKind(t, apperr.KindValidation, err)

	hw := f.mustAssignment(prof, c.ID, 10)
	quiz := f.mustQuiz(prof, c.ID)

	_, err = f.eng.ListItems(f.ctx, aliceActor, c.ID)
	requireKind(t, apperr.KindForbidden, err)

	f.mustEnrolled(prof, c.ID, alice.ID)
	items, err := f.eng.ListItems(f.ctx, aliceActor, c.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	hw, err = f.eng.UpdateItem(f.ctx, prof, hw.ID, workflow.ItemPatch{Points: ptr(20.0), Title: ptr("Homework 1")})
	require.NoError(t, err)
	assert.Equal(t, 20.0, hw.Points)
	assert.Equal(t, "Homework 1", hw.Title)

	_, err = f.eng.UpdateItem(f.ctx, prof, quiz.ID, workflow.ItemPatch{Points: ptr(3.0)})
	requireKind(t, apperr.KindValidation, err)

	require.NoError(t, f.eng.DeleteItem(f.ctx, prof, hw.ID))
	_, err = f.eng.GetItem(f.ctx, prof, hw.ID)
	requireKind(t, apperr.KindNotFound, err)
}

func TestAddQuestion(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	quiz := f.mustQuiz(prof, c.ID)

	_, err := f.eng.AddQuestion(f.ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "?", Points: 1,
		Options: []workflow.NewOption{{Text: "only", IsCorrect: true}},
	})
	requireKind(t, apperr.KindValidation, err)

	_, err = f.eng.AddQuestion(f.ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "?", Points: 1,
		Options: []workflow.NewOption{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}},
	})
	requireKind(t, apperr.KindValidation, err)

	_, err = f.eng.AddQuestion(f.ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.ShortAnswer, Text: "?", Points: 1, Options: []workflow.NewOption{{Text: "a"}},
	})
	requireKind(t, apperr.KindValidation, err)

	_, err = f.eng.AddQuestion(f.ctx, prof, hw.ID, workflow.NewQuestion{Type: models.ShortAnswer, Text: "?", Points: 1})
	requireKind(t, apperr.KindConflict, err)

	mc := f.mustChoice(prof, quiz.ID, 3)
	f.mustShort(prof, quiz.ID, 4.5)

	quiz, err = f.eng.GetItem(f.ctx, prof, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.5, quiz.Points)

	qs, err := f.eng.ListQuestions(f.ctx, prof, quiz.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, mc.ID, qs[0].ID)
	_, ok := qs[0].CorrectOption()
	assert.True(t, ok)

	f.mustEnrolled(prof, c.ID, alice.ID)
	forStudent, err := f.eng.ListQuestions(f.ctx, aliceActor, quiz.ID)
	require.NoError(t, err)
	require.Len(t, forStudent, 2)
	for _, o := range forStudent[0].Options {
		assert.False(t, o.IsCorrect)
	}

	// у преподавателя отметки на месте
	qs, err = f.eng.ListQuestions(f.ctx, prof, quiz.ID)
	require.NoError(t, err)
	_, ok = qs[0].CorrectOption()
	assert.True(t, ok)
}
