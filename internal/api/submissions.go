package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Spok95/school-lms/internal/models"
)

type finishRequest struct {
	Answers map[int64]string `json:"answers"`
}

type responseRequest struct {
	Response string `json:"response"`
}

type gradeRequest struct {
	Points   *float64 `json:"points"`
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

func (s *Server) getOrCreateSubmission(c *fiber.Ctx) error {
	enrollmentID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	itemID, err := idParam(c, "itemId")
	if err != nil {
		return err
	}
	sub, err := s.eng.GetOrCreate(c.UserContext(), actorOf(c), enrollmentID, itemID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, sub)
}

func (s *Server) updateSubmission(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var patch models.SubmissionPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	sub, err := s.eng.Update(c.UserContext(), actorOf(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, sub)
}

func (s *Server) finishQuiz(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in finishRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	res, err := s.eng.FinishQuiz(c.UserContext(), actorOf(c), id, in.Answers)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, res)
}

func (s *Server) recordResponse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	questionID, err := idParam(c, "questionId")
	if err != nil {
		return err
	}
	var in responseRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := s.eng.RecordResponse(c.UserContext(), actorOf(c), id, questionID, in.Response); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nil)
}

func (s *Server) scoreSubmission(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := s.eng.Score(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, res)
}

func (s *Server) gradeResponse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	questionID, err := idParam(c, "questionId")
	if err != nil {
		return err
	}
	var in gradeRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	if in.Points == nil {
		return fiber.NewError(fiber.StatusBadRequest, "points is required")
	}
	res, err := s.eng.GradeResponse(c.UserContext(), actorOf(c), id, questionID, *in.Points, in.Feedback)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, res)
}

func (s *Server) itemSubmissions(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.ListByItem(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) mySubmissions(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.ListMineByCourse(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}
