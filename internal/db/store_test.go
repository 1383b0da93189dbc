//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/testutil/testdb"
	"github.com/Spok95/school-lms/internal/workflow"
)

const testPassword = "correct-horse"

func newEngine(t testing.TB, h *testdb.DBHandle) *workflow.Engine {
	t.Helper()
	return workflow.New(h.Store(),
		workflow.WithPolicy(workflow.Policy{PasswordMinLen: 8, BcryptCost: bcrypt.MinCost}),
	)
}

func mustSeedUser(t testing.TB, eng *workflow.Engine, name string, role models.Role) workflow.Actor {
	t.Helper()
	u, err := eng.CreateUser(context.Background(), workflow.NewUser{
		Email:           name + "@uni.test",
		Name:            name,
		Password:        testPassword,
		PasswordConfirm: testPassword,
		Role:            role,
	})
	if err != nil {
		t.Fatal(err)
	}
	return workflow.Actor{UserID: u.ID, Role: u.Role}
}

func mustSeedCourse(t testing.TB, eng *workflow.Engine, prof workflow.Actor, number string) models.Course {
	t.Helper()
	c, err := eng.CreateCourse(context.Background(), prof, workflow.NewCourse{
		Prefix: "cs", Number: number, Name: "Databases",
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestStore_QuizToFinalGrade(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)

	prof := mustSeedUser(t, eng, "prof", models.Professor)
	stud := mustSeedUser(t, eng, "stud", models.Student)
	course := mustSeedCourse(t, eng, prof, "310")
	if course.Prefix != "CS" {
		t.Fatalf("prefix not normalized: %q", course.Prefix)
	}

	quiz, err := eng.CreateItem(ctx, prof, course.ID, workflow.NewItem{Kind: models.Quiz, Title: "Quiz"})
	if err != nil {
		t.Fatal(err)
	}
	mc, err := eng.AddQuestion(ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "SQL?", Points: 6,
		Options: []workflow.NewOption{{Text: "yes", IsCorrect: true}, {Text: "no"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	sa, err := eng.AddQuestion(ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.ShortAnswer, Text: "Why?", Points: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	qs, err := eng.ListQuestions(ctx, prof, quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 || len(qs[0].Options) != 2 {
		t.Fatalf("questions not stored: %+v", qs)
	}

	enr, err := eng.DirectEnroll(ctx, prof, course.ID, stud.UserID)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := eng.GetOrCreate(ctx, stud, enr.ID, quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	correct, _ := mc.CorrectOption()
	res, err := eng.FinishQuiz(ctx, stud, sub.ID, map[int64]string{
		mc.ID: strconv.FormatInt(correct, 10),
		sa.ID: "indexes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AutoScore != 6 {
		t.Fatalf("auto score: got %v, want 6", res.AutoScore)
	}
	if _, err := eng.GradeResponse(ctx, prof, sub.ID, sa.ID, 3, "ok"); err != nil {
		t.Fatal(err)
	}

	finals, err := eng.Finalize(ctx, prof, course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(finals) != 1 || finals[0].Percentage != 90 || finals[0].Letter != "A" {
		t.Fatalf("unexpected finals: %+v", finals)
	}

	again, err := eng.Finalize(ctx, prof, course.ID)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := eng.FinalGrades(ctx, stud, course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || len(stored) != 1 || stored[0].Earned != 9 || stored[0].StudentName != "stud" {
		t.Fatalf("finalize not idempotent: %+v / %+v", again, stored)
	}
}

func TestStore_DuplicateEnrollment(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)

	prof := mustSeedUser(t, eng, "prof", models.Professor)
	mustSeedUser(t, eng, "stud", models.Student)
	course := mustSeedCourse(t, eng, prof, "101")

	if _, err := eng.Invite(ctx, prof, course.ID, "STUD@uni.test"); err != nil {
		t.Fatal(err)
	}
	_, err = eng.Invite(ctx, prof, course.ID, "stud@uni.test")
	if !apperr.IsConflict(err) {
		t.Fatalf("second invite: want conflict, got %v", err)
	}

	pending, err := eng.ListForCourse(ctx, prof, course.ID, models.EnrollmentPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].StudentEmail != "stud@uni.test" || pending[0].CourseCode() != "CS 101" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
}

func TestStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)

	mustSeedUser(t, eng, "same", models.Student)
	_, err = eng.CreateUser(ctx, workflow.NewUser{
		Email: "SAME@uni.test", Name: "Same", Password: testPassword, PasswordConfirm: testPassword, Role: models.Student,
	})
	if !apperr.IsConflict(err) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestStore_StaleInvitations(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)

	prof := mustSeedUser(t, eng, "prof", models.Professor)
	mustSeedUser(t, eng, "stud", models.Student)
	course := mustSeedCourse(t, eng, prof, "200")
	if _, err := eng.Invite(ctx, prof, course.ID, "stud@uni.test"); err != nil {
		t.Fatal(err)
	}

	store := h.Store()
	var stale []models.EnrollmentView
	err = store.View(ctx, func(r workflow.Repo) error {
		var err error
		stale, err = r.StaleInvitations(ctx, time.Now().Add(time.Hour), 10)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 {
		t.Fatalf("want 1 stale invitation, got %d", len(stale))
	}

	err = store.Atomic(ctx, func(r workflow.Repo) error {
		return r.MarkReminded(ctx, []int64{stale[0].ID}, time.Now())
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.View(ctx, func(r workflow.Repo) error {
		var err error
		stale, err = r.StaleInvitations(ctx, time.Now().Add(time.Hour), 10)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("reminded invitation listed again: %+v", stale)
	}
}

func TestStore_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	boom := errors.New("boom")
	store := h.Store()
	err = store.Atomic(ctx, func(r workflow.Repo) error {
		if err := r.InsertProfile(ctx, &models.Profile{Name: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	var n int
	if err := h.DB.QueryRowContext(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("profile survived rollback: %d rows", n)
	}
}

func TestGetOrCreate_Parallel(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)

	prof := mustSeedUser(t, eng, "prof", models.Professor)
	stud := mustSeedUser(t, eng, "stud", models.Student)
	course := mustSeedCourse(t, eng, prof, "400")
	item, err := eng.CreateItem(ctx, prof, course.ID, workflow.NewItem{Kind: models.Assignment, Title: "Essay", Points: 10})
	if err != nil {
		t.Fatal(err)
	}
	enr, err := eng.DirectEnroll(ctx, prof, course.ID, stud.UserID)
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]int{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := eng.GetOrCreate(ctx, stud, enr.ID, item.ID)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			ids[s.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 {
		t.Fatalf("ожидали одну работу, получили %d: %v", len(ids), ids)
	}
	var n int
	if err := h.DB.QueryRowContext(ctx, `SELECT count(*) FROM submissions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("в таблице %d строк", n)
	}
}

// quizSetup — курс с тестом из одного вопроса и активной записью студента.
func quizSetup(t *testing.T, eng *workflow.Engine, number string) (prof, stud workflow.Actor, quiz models.CourseItem, q models.QuizQuestion, sub models.Submission) {
	t.Helper()
	ctx := context.Background()
	prof = mustSeedUser(t, eng, "prof"+number, models.Professor)
	stud = mustSeedUser(t, eng, "stud"+number, models.Student)
	course := mustSeedCourse(t, eng, prof, number)

	var err error
	if quiz, err = eng.CreateItem(ctx, prof, course.ID, workflow.NewItem{Kind: models.Quiz, Title: "Quiz"}); err != nil {
		t.Fatal(err)
	}
	q, err = eng.AddQuestion(ctx, prof, quiz.ID, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "SQL?", Points: 6,
		Options: []workflow.NewOption{{Text: "yes", IsCorrect: true}, {Text: "no"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	enr, err := eng.DirectEnroll(ctx, prof, course.ID, stud.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if sub, err = eng.GetOrCreate(ctx, stud, enr.ID, quiz.ID); err != nil {
		t.Fatal(err)
	}
	return prof, stud, quiz, q, sub
}

// Автосохранение черновика из одной вкладки и сдача теста из другой:
// сданная работа не должна вернуться в черновик.
func TestStore_AutosaveRacingFinishQuiz(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)
	_, stud, _, q, sub := quizSetup(t, eng, "500")
	correct, _ := q.CorrectOption()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := "autosave"
			_, err := eng.Update(ctx, stud, sub.ID, models.SubmissionPatch{Content: &content})
			if err != nil && !apperr.IsConflict(err) {
				t.Errorf("autosave: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := eng.FinishQuiz(ctx, stud, sub.ID, map[int64]string{q.ID: strconv.FormatInt(correct, 10)}); err != nil {
			t.Errorf("finish: %v", err)
		}
	}()
	wg.Wait()

	var (
		status      string
		autoScore   *float64
		submittedAt *time.Time
	)
	if err := h.DB.QueryRowContext(ctx, `
		SELECT status, auto_score, submitted_at FROM submissions WHERE id = $1
	`, sub.ID).Scan(&status, &autoScore, &submittedAt); err != nil {
		t.Fatal(err)
	}
	if status != "submitted" || autoScore == nil || *autoScore != 6 || submittedAt == nil {
		t.Fatalf("работа откатилась: status=%s auto=%v submitted_at=%v", status, autoScore, submittedAt)
	}

	late := "late edit"
	if _, err := eng.Update(ctx, stud, sub.ID, models.SubmissionPatch{Content: &late}); !apperr.IsConflict(err) {
		t.Fatalf("правка после сдачи: ожидали Conflict, получили %v", err)
	}
	if err := eng.RecordResponse(ctx, stud, sub.ID, q.ID, "0"); !apperr.IsForbidden(err) {
		t.Fatalf("ответ после сдачи: ожидали Forbidden, получили %v", err)
	}
}

func TestStore_RescoreKeepsGradeItem(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)
	prof, stud, quiz, q, sub := quizSetup(t, eng, "510")
	correct, _ := q.CorrectOption()

	if _, err := eng.FinishQuiz(ctx, stud, sub.ID, map[int64]string{q.ID: strconv.FormatInt(correct, 10)}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GradeItem(ctx, prof, quiz.ID, stud.UserID, 5, "great explanation"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Score(ctx, prof, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grade.Score != 5 || res.Grade.Feedback != "great explanation" || !res.Grade.Manual {
		t.Fatalf("оценка преподавателя перезаписана: %+v", res.Grade)
	}
	grades, err := eng.ItemGrades(ctx, prof, quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(grades) != 1 || grades[0].Score != 5 || grades[0].Feedback != "great explanation" {
		t.Fatalf("unexpected grades: %+v", grades)
	}
}

func TestStore_AddQuestionParallel(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)
	prof := mustSeedUser(t, eng, "prof", models.Professor)
	course := mustSeedCourse(t, eng, prof, "520")
	quiz, err := eng.CreateItem(ctx, prof, course.ID, workflow.NewItem{Kind: models.Quiz, Title: "Quiz"})
	if err != nil {
		t.Fatal(err)
	}

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.AddQuestion(ctx, prof, quiz.ID, workflow.NewQuestion{
				Type: models.ShortAnswer, Text: "Why?", Points: 1,
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	var points, sum float64
	if err := h.DB.QueryRowContext(ctx, `
		SELECT i.points, (SELECT COALESCE(SUM(q.points), 0) FROM quiz_questions q WHERE q.item_id = i.id)
		FROM course_items i WHERE i.id = $1
	`, quiz.ID).Scan(&points, &sum); err != nil {
		t.Fatal(err)
	}
	if points != n || sum != n {
		t.Fatalf("баллы теста %v, сумма вопросов %v, ожидали %d", points, sum, n)
	}
}

func TestStore_FinalizeParallel(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(t, h)
	prof, stud, quiz, q, sub := quizSetup(t, eng, "530")
	correct, _ := q.CorrectOption()
	if _, err := eng.FinishQuiz(ctx, stud, sub.ID, map[int64]string{q.ID: strconv.FormatInt(correct, 10)}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Finalize(ctx, prof, quiz.CourseID); err != nil {
				t.Errorf("finalize: %v", err)
			}
		}()
	}
	wg.Wait()

	var n int
	if err := h.DB.QueryRowContext(ctx, `SELECT count(*) FROM final_grades WHERE course_id = $1`, quiz.CourseID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("итоговых строк %d, ожидали 1", n)
	}
}

func BenchmarkGetOrCreate(b *testing.B) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()
	eng := newEngine(b, h)

	prof := mustSeedUser(b, eng, "prof", models.Professor)
	stud := mustSeedUser(b, eng, "stud", models.Student)
	course := mustSeedCourse(b, eng, prof, "500")
	item, err := eng.CreateItem(ctx, prof, course.ID, workflow.NewItem{Kind: models.Assignment, Title: "Lab", Points: 5})
	if err != nil {
		b.Fatal(err)
	}
	enr, err := eng.DirectEnroll(ctx, prof, course.ID, stud.UserID)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = eng.GetOrCreate(ctx, stud, enr.ID, item.ID)
		}
	})
}
