package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

type inviteRequest struct {
	Email string `json:"email"`
}

type enrollRequest struct {
	StudentID int64 `json:"student_id"`
}

// statusQuery — необязательный ?status=; пусто означает все статусы.
func statusQuery(c *fiber.Ctx) (models.EnrollmentStatus, error) {
	st := models.EnrollmentStatus(c.Query("status"))
	if st != "" && !st.Valid() {
		return "", apperr.Invalid("status", "must be one of pending active completed dropped")
	}
	return st, nil
}

func (s *Server) courseEnrollments(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	st, err := statusQuery(c)
	if err != nil {
		return err
	}
	out, err := s.eng.ListForCourse(c.UserContext(), actorOf(c), id, st)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) studentEnrollments(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	st, err := statusQuery(c)
	if err != nil {
		return err
	}
	out, err := s.eng.ListForStudent(c.UserContext(), actorOf(c), id, st)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) invite(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in inviteRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	enr, err := s.eng.Invite(c.UserContext(), actorOf(c), id, in.Email)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, enr)
}

func (s *Server) directEnroll(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in enrollRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	enr, err := s.eng.DirectEnroll(c.UserContext(), actorOf(c), id, in.StudentID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, enr)
}

func (s *Server) accept(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	enr, err := s.eng.Accept(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, enr)
}

func (s *Server) decline(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.eng.Decline(c.UserContext(), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nil)
}

func (s *Server) drop(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	enr, err := s.eng.Drop(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, enr)
}

func (s *Server) complete(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	enr, err := s.eng.Complete(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, enr)
}
