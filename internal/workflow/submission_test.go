package workflow_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestGetOrCreate_Idempotent(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	s1, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionDraft, s1.Status)

	s2, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
}

func TestGetOrCreate_Parallel(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	const N = 50
	ids := make([]int64, N)
	errs := make([]error, N)
	var wg sync.WaitGroup
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, hw.ID)
			ids[i], errs[i] = s.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < N; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	subs, err := f.eng.ListByItem(f.ctx, prof, hw.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestGetOrCreate_Guards(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	bobActor, bob := f.mustUser(models.Student, "bob")
	c := f.mustCourse(prof)
	otherCourse := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	foreign := f.mustAssignment(prof, otherCourse.ID, 10)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	_, err := f.eng.GetOrCreate(f.ctx, bobActor, enr.ID, hw.ID)
	requireKind(t, apperr.KindForbidden, err)

	_, err = f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, foreign.ID)
	requireKind(t, apperr.KindNotFound, err)

	inv, err := f.eng.Invite(f.ctx, prof, c.ID, bob.Email)
	require.NoError(t, err)
	_, err = f.eng.GetOrCreate(f.ctx, bobActor, inv.ID, hw.ID)
	requireKind(t, apperr.KindConflict, err)

	_, err = f.eng.GetOrCreate(f.ctx, prof, enr.ID, hw.ID)
	requireKind(t, apperr.KindForbidden, err)
}

func TestUpdate_SubmitLocksForStudent(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	s, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, hw.ID)
	require.NoError(t, err)

	s, err = f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{Content: ptr("first draft")})
	require.NoError(t, err)
	assert.Equal(t, "first draft", s.Content)
	assert.Nil(t, s.SubmittedAt)

	s, err = f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{
		Content: ptr("final"),
		Status:  ptr(models.SubmissionSubmitted),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, s.Status)
	require.NotNil(t, s.SubmittedAt)
	assert.Equal(t, f.clock.Now(), *s.SubmittedAt)

	_, err = f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{Content: ptr("sneaky edit")})
	requireKind(t, apperr.KindConflict, err)

	_, err = f.eng.Update(f.ctx, prof, s.ID, models.SubmissionPatch{Status: ptr(models.SubmissionDraft)})
	requireKind(t, apperr.KindConflict, err)

	edited, err := f.eng.Update(f.ctx, prof, s.ID, models.SubmissionPatch{Content: ptr("final (annotated)")})
	require.NoError(t, err)
	assert.Equal(t, "final (annotated)", edited.Content)
	assert.Equal(t, models.SubmissionSubmitted, edited.Status)
}

func TestUpdate_OtherStudentForbidden(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	bobActor, _ := f.mustUser(models.Student, "bob")
	c := f.mustCourse(prof)
	hw := f.mustAssignment(prof, c.ID, 10)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	s, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, hw.ID)
	require.NoError(t, err)

	_, err = f.eng.Update(f.ctx, bobActor, s.ID, models.SubmissionPatch{Content: ptr("mine now")})
	requireKind(t, apperr.KindForbidden, err)

	_, err = f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{Status: ptr(models.SubmissionStatus("graded"))})
	requireKind(t, apperr.KindValidation, err)
}

func TestListMineByCourse(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	bobActor, _ := f.mustUser(models.Student, "bob")
	c := f.mustCourse(prof)
	hw1 := f.mustAssignment(prof, c.ID, 10)
	hw2 := f.mustAssignment(prof, c.ID, 5)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	for _, it := range []models.CourseItem{hw1, hw2} {
		_, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, it.ID)
		require.NoError(t, err)
	}

	mine, err := f.eng.ListMineByCourse(f.ctx, aliceActor, c.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, alice.ID, mine[0].StudentID)
	assert.Equal(t, "Homework", mine[0].ItemTitle)

	_, err = f.eng.ListMineByCourse(f.ctx, bobActor, c.ID)
	requireKind(t, apperr.KindNotFound, err)

	subs, err := f.eng.ListByItem(f.ctx, prof, hw1.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "alice", subs[0].StudentName)
	assert.Equal(t, alice.Email, subs[0].StudentEmail)

	_, err = f.eng.ListByItem(f.ctx, aliceActor, hw1.ID)
	requireKind(t, apperr.KindForbidden, err)
}

func TestUpdate_RacingFinishQuizStaysSubmitted(t *testing.T) {
	f := newFixture(t)
	prof, _ := f.mustUser(models.Professor, "prof")
	aliceActor, alice := f.mustUser(models.Student, "alice")
	c := f.mustCourse(prof)
	quiz := f.mustQuiz(prof, c.ID)
	q := f.mustChoice(prof, quiz.ID, 2)
	enr := f.mustEnrolled(prof, c.ID, alice.ID)

	s, err := f.eng.GetOrCreate(f.ctx, aliceActor, enr.ID, quiz.ID)
	require.NoError(t, err)

	const N = 20
	var wg sync.WaitGroup
	wg.Add(N + 1)
	go func() {
		defer wg.Done()
		_, err := f.eng.FinishQuiz(f.ctx, aliceActor, s.ID, map[int64]string{q.ID: correctID(q)})
		assert.NoError(t, err)
	}()
	for i := 0; i < N; i++ {
		go func() {
			defer wg.Done()
			_, err := f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{Content: ptr("autosave")})
			if err != nil {
				assert.Equal(t, apperr.KindConflict.String(), apperr.KindOf(err).String(), "error: %v", err)
			}
		}()
	}
	wg.Wait()

	mine, err := f.eng.ListMineByCourse(f.ctx, aliceActor, c.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.SubmissionSubmitted, mine[0].Status)
	require.NotNil(t, mine[0].AutoScore)
	assert.Equal(t, 2.0, *mine[0].AutoScore)

	_, err = f.eng.Update(f.ctx, aliceActor, s.ID, models.SubmissionPatch{Content: ptr("late edit")})
	requireKind(t, apperr.KindConflict, err)
	err = f.eng.RecordResponse(f.ctx, aliceActor, s.ID, q.ID, wrongID(q))
	requireKind(t, apperr.KindForbidden, err)
}
