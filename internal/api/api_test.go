package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/school-lms/internal/api"
	"github.com/Spok95/school-lms/internal/memstore"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

const password = "correct-horse"

type reply struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

type harness struct {
	t      *testing.T
	app    *fiber.App
	eng    *workflow.Engine
	tokens *api.Tokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	eng := workflow.New(memstore.New(),
		workflow.WithPolicy(workflow.Policy{PasswordMinLen: 8, BcryptCost: bcrypt.MinCost}),
	)
	tokens := api.NewTokens("test-secret", time.Hour)
	return &harness{t: t, app: api.New(eng, tokens, nil), eng: eng, tokens: tokens}
}

func (h *harness) do(method, path, token string, body any) (int, reply) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(h.t, err)
			raw = string(b)
		}
		rd = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var r reply
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&r))
	}
	return resp.StatusCode, r
}

func decode[T any](t *testing.T, r reply) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

// user создаёт пользователя напрямую в движке и логинится через API.
func (h *harness) user(role models.Role, email string) (string, models.User) {
	h.t.Helper()
	u, err := h.eng.CreateUser(context.Background(), workflow.NewUser{
		Email: email, Name: email, Password: password, PasswordConfirm: password, Role: role,
	})
	require.NoError(h.t, err)
	status, r := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, status, r.Message)
	login := decode[struct {
		Token string `json:"token"`
	}](h.t, r)
	return login.Token, u
}

func path(parts ...any) string {
	s := "/api/v1"
	for _, p := range parts {
		switch v := p.(type) {
		case int64:
			s += "/" + strconv.FormatInt(v, 10)
		default:
			s += "/" + v.(string)
		}
	}
	return s
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	status, r := h.do(http.MethodPost, "/api/v1/auth/register", "", workflow.NewUser{
		Email: "ann@uni.test", Name: "Ann", Password: password, PasswordConfirm: password, Role: models.Student,
	})
	require.Equal(t, http.StatusCreated, status, r.Message)
	assert.True(t, r.Success)
	assert.NotContains(t, string(r.Data), "password")

	status, r = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ann@uni.test", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, r.Success)

	token, _ := h.user(models.Student, "bob@uni.test")
	status, r = h.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[models.User](t, r)
	assert.Equal(t, "bob@uni.test", me.Email)
	assert.Equal(t, models.Student, me.Role)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	status, r := h.do(http.MethodGet, "/api/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, r.Success)

	status, _ = h.do(http.MethodGet, "/api/v1/courses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegister_AdminIsForbidden(t *testing.T) {
	h := newHarness(t)
	status, r := h.do(http.MethodPost, "/api/v1/auth/register", "", workflow.NewUser{
		Email: "root@uni.test", Name: "Root", Password: password, PasswordConfirm: password, Role: models.Admin,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, r.Success)
}

func TestValidationAndMalformedBody(t *testing.T) {
	h := newHarness(t)
	prof, _ := h.user(models.Professor, "prof@uni.test")

	status, r := h.do(http.MethodPost, "/api/v1/courses", prof, map[string]string{"name": "Algorithms"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, r.Errors, "prefix")
	assert.Contains(t, r.Errors, "number")

	status, r = h.do(http.MethodPost, "/api/v1/courses", prof, "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, r.Success)

	status, _ = h.do(http.MethodGet, "/api/v1/courses/abc", prof, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestInvitationFlow(t *testing.T) {
	h := newHarness(t)
	prof, _ := h.user(models.Professor, "prof@uni.test")
	ann, annUser := h.user(models.Student, "ann@uni.test")
	bob, _ := h.user(models.Student, "bob@uni.test")

	status, r := h.do(http.MethodPost, "/api/v1/courses", prof, workflow.NewCourse{Prefix: "cs", Number: "101", Name: "Algorithms"})
	require.Equal(t, http.StatusCreated, status, r.Message)
	course := decode[models.Course](t, r)
	assert.Equal(t, "CS", course.Prefix)

	status, r = h.do(http.MethodPost, path("courses", course.ID, "invitations"), prof, map[string]string{"email": "ann@uni.test"})
	require.Equal(t, http.StatusCreated, status, r.Message)
	inv := decode[models.Enrollment](t, r)
	assert.Equal(t, models.EnrollmentPending, inv.Status)

	status, _ = h.do(http.MethodPost, path("courses", course.ID, "invitations"), prof, map[string]string{"email": "ann@uni.test"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = h.do(http.MethodPost, path("invitations", inv.ID, "accept"), bob, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, r = h.do(http.MethodPost, path("invitations", inv.ID, "accept"), ann, nil)
	require.Equal(t, http.StatusOK, status, r.Message)
	assert.Equal(t, models.EnrollmentActive, decode[models.Enrollment](t, r).Status)

	status, _ = h.do(http.MethodPost, path("invitations", inv.ID, "accept"), ann, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, r = h.do(http.MethodGet, path("students", annUser.ID, "enrollments")+"?status=active", ann, nil)
	require.Equal(t, http.StatusOK, status, r.Message)
	mine := decode[[]models.EnrollmentView](t, r)
	require.Len(t, mine, 1)
	assert.Equal(t, "Algorithms", mine[0].CourseName)

	status, _ = h.do(http.MethodGet, path("courses", course.ID, "enrollments")+"?status=bogus", prof, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestQuizToGradebook(t *testing.T) {
	h := newHarness(t)
	prof, _ := h.user(models.Professor, "prof@uni.test")
	ann, annUser := h.user(models.Student, "ann@uni.test")

	_, r := h.do(http.MethodPost, "/api/v1/courses", prof, workflow.NewCourse{Prefix: "MA", Number: "201", Name: "Calculus"})
	course := decode[models.Course](t, r)

	status, r := h.do(http.MethodPost, path("courses", course.ID, "items"), prof, workflow.NewItem{Kind: models.Quiz, Title: "Quiz 1"})
	require.Equal(t, http.StatusCreated, status, r.Message)
	quiz := decode[models.CourseItem](t, r)

	status, r = h.do(http.MethodPost, path("items", quiz.ID, "questions"), prof, workflow.NewQuestion{
		Type: models.MultipleChoice, Text: "d/dx x^2?", Points: 6,
		Options: []workflow.NewOption{{Text: "2x", IsCorrect: true}, {Text: "x"}},
	})
	require.Equal(t, http.StatusCreated, status, r.Message)
	mc := decode[models.QuizQuestion](t, r)
	status, r = h.do(http.MethodPost, path("items", quiz.ID, "questions"), prof, workflow.NewQuestion{
		Type: models.ShortAnswer, Text: "Define a limit", Points: 4,
	})
	require.Equal(t, http.StatusCreated, status, r.Message)
	sa := decode[models.QuizQuestion](t, r)

	status, r = h.do(http.MethodPost, path("courses", course.ID, "enrollments"), prof, map[string]int64{"student_id": annUser.ID})
	require.Equal(t, http.StatusCreated, status, r.Message)
	enr := decode[models.Enrollment](t, r)

	_, r = h.do(http.MethodGet, path("items", quiz.ID, "questions"), ann, nil)
	for _, q := range decode[[]models.QuizQuestion](t, r) {
		for _, o := range q.Options {
			assert.False(t, o.IsCorrect, "students must not see correct flags")
		}
	}

	status, r = h.do(http.MethodPost, path("enrollments", enr.ID, "items", quiz.ID, "submission"), ann, nil)
	require.Equal(t, http.StatusOK, status, r.Message)
	sub := decode[models.Submission](t, r)

	correct, _ := mc.CorrectOption()
	status, r = h.do(http.MethodPost, path("submissions", sub.ID, "finish"), ann, map[string]any{
		"answers": map[string]string{
			strconv.FormatInt(mc.ID, 10): strconv.FormatInt(correct, 10),
			strconv.FormatInt(sa.ID, 10): "epsilon-delta",
		},
	})
	require.Equal(t, http.StatusOK, status, r.Message)
	assert.Equal(t, 6.0, decode[workflow.ScoreResult](t, r).AutoScore)

	status, r = h.do(http.MethodPatch, path("submissions", sub.ID), ann, map[string]string{"content": "late edit"})
	assert.Equal(t, http.StatusConflict, status, r.Message)

	status, r = h.do(http.MethodPut, path("submissions", sub.ID, "responses", sa.ID, "grade"), prof, map[string]any{"points": 3, "feedback": "ok"})
	require.Equal(t, http.StatusOK, status, r.Message)

	status, r = h.do(http.MethodPost, path("courses", course.ID, "finalize"), prof, nil)
	require.Equal(t, http.StatusOK, status, r.Message)
	finals := decode[[]models.FinalGrade](t, r)
	require.Len(t, finals, 1)
	assert.Equal(t, 90.0, finals[0].Percentage)
	assert.Equal(t, "A", finals[0].Letter)

	status, _ = h.do(http.MethodGet, path("courses", course.ID, "gradebook.xlsx"), ann, nil)
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodGet, path("courses", course.ID, "gradebook.xlsx"), nil)
	req.Header.Set("Authorization", "Bearer "+prof)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "gradebook.xlsx")
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")), "xlsx is a zip archive")
}

type brokenStore struct{}

func (brokenStore) Atomic(context.Context, func(workflow.Repo) error) error {
	return errors.New("pq: connection reset by peer")
}

func (brokenStore) View(context.Context, func(workflow.Repo) error) error {
	return errors.New("pq: connection reset by peer")
}

func TestStorageErrorsAreHidden(t *testing.T) {
	eng := workflow.New(brokenStore{})
	tokens := api.NewTokens("test-secret", time.Hour)
	app := api.New(eng, tokens, nil)

	tok, _, err := tokens.Issue(models.User{ID: 1, Role: models.Professor})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "pq:")
	assert.Contains(t, string(body), `"success":false`)
}
