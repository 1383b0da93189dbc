// Package api — HTTP-обёртка над workflow.Engine (fiber).
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/workflow"
)

type Server struct {
	eng    *workflow.Engine
	tokens *Tokens
	log    *zap.Logger
}

// New собирает fiber-приложение со всеми маршрутами /api/v1.
func New(eng *workflow.Engine, tokens *Tokens, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{eng: eng, tokens: tokens, log: log}

	app := fiber.New(fiber.Config{
		AppName:               "school-lms",
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
	})
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(s.observe)
	app.Use(recover.New())

	s.routes(app.Group("/api/v1"))
	return app
}

func (s *Server) routes(r fiber.Router) {
	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Use(s.requireAuth)

	r.Get("/me", s.me)
	r.Get("/users/:id", s.getUser)
	r.Put("/users/:id", s.updateUser)
	r.Delete("/users/:id", s.deleteUser)

	r.Get("/courses", s.listCourses)
	r.Post("/courses", s.createCourse)
	r.Get("/courses/:id", s.getCourse)
	r.Put("/courses/:id", s.updateCourse)
	r.Delete("/courses/:id", s.deleteCourse)
	r.Get("/courses/:id/items", s.listItems)
	r.Post("/courses/:id/items", s.createItem)
	r.Get("/items/:id", s.getItem)
	r.Put("/items/:id", s.updateItem)
	r.Delete("/items/:id", s.deleteItem)
	r.Get("/items/:id/questions", s.listQuestions)
	r.Post("/items/:id/questions", s.addQuestion)

	r.Get("/courses/:id/enrollments", s.courseEnrollments)
	r.Post("/courses/:id/invitations", s.invite)
	r.Post("/courses/:id/enrollments", s.directEnroll)
	r.Get("/students/:id/enrollments", s.studentEnrollments)
	r.Post("/invitations/:id/accept", s.accept)
	r.Post("/invitations/:id/decline", s.decline)
	r.Post("/enrollments/:id/drop", s.drop)
	r.Post("/enrollments/:id/complete", s.complete)

	r.Post("/enrollments/:id/items/:itemId/submission", s.getOrCreateSubmission)
	r.Patch("/submissions/:id", s.updateSubmission)
	r.Post("/submissions/:id/finish", s.finishQuiz)
	r.Put("/submissions/:id/responses/:questionId", s.recordResponse)
	r.Post("/submissions/:id/score", s.scoreSubmission)
	r.Put("/submissions/:id/responses/:questionId/grade", s.gradeResponse)
	r.Get("/items/:id/submissions", s.itemSubmissions)
	r.Get("/courses/:id/submissions/mine", s.mySubmissions)

	r.Put("/items/:id/grades/:studentId", s.gradeItem)
	r.Get("/items/:id/grades", s.itemGrades)
	r.Get("/courses/:id/students/:studentId/grades", s.studentGrades)
	r.Post("/courses/:id/finalize", s.finalize)
	r.Get("/courses/:id/final-grades", s.finalGrades)
	r.Get("/courses/:id/gradebook.xlsx", s.gradebook)
}
