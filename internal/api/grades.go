package api

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/Spok95/school-lms/internal/export"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) gradeItem(c *fiber.Ctx) error {
	itemID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	studentID, err := idParam(c, "studentId")
	if err != nil {
		return err
	}
	var in gradeRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	if in.Score == nil {
		return fiber.NewError(fiber.StatusBadRequest, "score is required")
	}
	g, err := s.eng.GradeItem(c.UserContext(), actorOf(c), itemID, studentID, *in.Score, in.Feedback)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, g)
}

func (s *Server) itemGrades(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.ItemGrades(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) studentGrades(c *fiber.Ctx) error {
	courseID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	studentID, err := idParam(c, "studentId")
	if err != nil {
		return err
	}
	out, err := s.eng.StudentGrades(c.UserContext(), actorOf(c), courseID, studentID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) finalize(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.Finalize(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) finalGrades(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.FinalGrades(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) gradebook(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	gb, err := s.eng.Gradebook(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteGradebook(&buf, gb); err != nil {
		return err
	}
	c.Attachment(export.GradebookFilename(gb))
	c.Set(fiber.HeaderContentType, xlsxType)
	return c.Send(buf.Bytes())
}
