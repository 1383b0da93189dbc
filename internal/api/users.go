package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var in workflow.NewUser
	if err := bind(c, &in); err != nil {
		return err
	}
	u, err := s.eng.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, u)
}

func (s *Server) login(c *fiber.Ctx) error {
	var in loginRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	u, err := s.eng.Authenticate(c.UserContext(), in.Email, in.Password)
	if apperr.IsValidation(err) {
		return fiber.NewError(fiber.StatusUnauthorized, apperr.From(err).Message)
	}
	if err != nil {
		return err
	}
	tok, exp, err := s.tokens.Issue(u)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, loginResponse{Token: tok, ExpiresAt: exp, User: u})
}

func (s *Server) me(c *fiber.Ctx) error {
	a := actorOf(c)
	u, err := s.eng.GetUser(c.UserContext(), a, a.UserID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, u)
}

func (s *Server) getUser(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	u, err := s.eng.GetUser(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, u)
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var patch workflow.UserPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	u, err := s.eng.UpdateUser(c.UserContext(), actorOf(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, u)
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.eng.DeleteUser(c.UserContext(), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nil)
}
