package workflow_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/memstore"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

type recordingNotifier struct {
	mu        sync.Mutex
	invited   []models.EnrollmentView
	reminded  []models.EnrollmentView
	remindErr error // если задан, Reminded падает и ничего не записывает
}

func (n *recordingNotifier) Invited(_ context.Context, v models.EnrollmentView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invited = append(n.invited, v)
	return nil
}

func (n *recordingNotifier) Reminded(_ context.Context, v models.EnrollmentView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.remindErr != nil {
		return n.remindErr
	}
	n.reminded = append(n.reminded, v)
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	eng    *workflow.Engine
	notify *recordingNotifier
	clock  *clock
	seq    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		notify: &recordingNotifier{},
		clock:  &clock{t: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.eng = workflow.New(memstore.New(),
		workflow.WithNotifier(f.notify),
		workflow.WithClock(f.clock.Now),
		workflow.WithPolicy(workflow.Policy{PasswordMinLen: 8, BcryptCost: bcrypt.MinCost}),
	)
	return f
}

const testPassword = "correct-horse"

// mustUser — создаёт пользователя и возвращает его как Actor.
func (f *fixture) mustUser(role models.Role, name string) (workflow.Actor, models.User) {
	f.t.Helper()
	f.seq++
	u, err := f.eng.CreateUser(f.ctx, workflow.NewUser{
		Email:           name + strconv.Itoa(f.seq) + "@uni.test",
		Name:            name,
		Password:        testPassword,
		PasswordConfirm: testPassword,
		Role:            role,
	})
	require.NoError(f.t, err)
	return workflow.Actor{UserID: u.ID, Role: u.Role}, u
}

func (f *fixture) mustCourse(prof workflow.Actor) models.Course {
	f.t.Helper()
	f.seq++
	c, err := f.eng.CreateCourse(f.ctx, prof, workflow.NewCourse{
		Prefix: "CS", Number: strconv.Itoa(100 + f.seq), Name: "Algorithms", Schedule: "Mon 10:00",
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) mustAssignment(prof workflow.Actor, courseID int64, points float64) models.CourseItem {
	f.t.Helper()
	it, err := f.eng.CreateItem(f.ctx, prof, courseID, workflow.NewItem{
		Kind: models.Assignment, Title: "Homework", Points: points,
	})
	require.NoError(f.t, err)
	return it
}

func (f *fixture) mustQuiz(prof workflow.Actor, courseID int64) models.CourseItem {
	f.t.Helper()
	it, err := f.eng.CreateItem(f.ctx, prof, courseID, workflow.NewItem{Kind: models.Quiz, Title: "Quiz 1"})
	require.NoError(f.t, err)
	return it
}

func (f *fixture) mustChoice(prof workflow.Actor, itemID int64, points float64) models.QuizQuestion {
	f.t.Helper()
	q, err := f.eng.AddQuestion(f.ctx, prof, itemID, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "2+2?", Points: points,
		Options: []workflow.NewOption{{Text: "3"}, {Text: "4", IsCorrect: true}, {Text: "5"}},
	})
	require.NoError(f.t, err)
	return q
}

func (f *fixture) mustShort(prof workflow.Actor, itemID int64, points float64) models.QuizQuestion {
	f.t.Helper()
	q, err := f.eng.AddQuestion(f.ctx, prof, itemID, workflow.NewQuestion{
		Type: models.ShortAnswer, Text: "Explain recursion", Points: points,
	})
	require.NoError(f.t, err)
	return q
}

// mustEnrolled — активная запись студента на курс.
func (f *fixture) mustEnrolled(prof workflow.Actor, courseID, studentID int64) models.Enrollment {
	f.t.Helper()
	enr, err := f.eng.DirectEnroll(f.ctx, prof, courseID, studentID)
	require.NoError(f.t, err)
	return enr
}

func correctID(q models.QuizQuestion) string {
	id, _ := q.CorrectOption()
	return strconv.FormatInt(id, 10)
}

func wrongID(q models.QuizQuestion) string {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return strconv.FormatInt(o.ID, 10)
		}
	}
	return ""
}

func requireKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want.String(), apperr.KindOf(err).String(), "error: %v", err)
}
