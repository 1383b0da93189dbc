package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Spok95/school-lms/internal/workflow"
)

func (s *Server) listCourses(c *fiber.Ctx) error {
	out, err := s.eng.ListCourses(c.UserContext(), actorOf(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) createCourse(c *fiber.Ctx) error {
	var in workflow.NewCourse
	if err := bind(c, &in); err != nil {
		return err
	}
	course, err := s.eng.CreateCourse(c.UserContext(), actorOf(c), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, course)
}

func (s *Server) getCourse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	course, err := s.eng.GetCourse(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, course)
}

func (s *Server) updateCourse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var patch workflow.CoursePatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	course, err := s.eng.UpdateCourse(c.UserContext(), actorOf(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, course)
}

func (s *Server) deleteCourse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.eng.DeleteCourse(c.UserContext(), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nil)
}

func (s *Server) listItems(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.ListItems(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) createItem(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in workflow.NewItem
	if err := bind(c, &in); err != nil {
		return err
	}
	it, err := s.eng.CreateItem(c.UserContext(), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, it)
}

func (s *Server) getItem(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	it, err := s.eng.GetItem(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, it)
}

func (s *Server) updateItem(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var patch workflow.ItemPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	it, err := s.eng.UpdateItem(c.UserContext(), actorOf(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, it)
}

func (s *Server) deleteItem(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.eng.DeleteItem(c.UserContext(), actorOf(c), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nil)
}

func (s *Server) listQuestions(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	out, err := s.eng.ListQuestions(c.UserContext(), actorOf(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) addQuestion(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in workflow.NewQuestion
	if err := bind(c, &in); err != nil {
		return err
	}
	q, err := s.eng.AddQuestion(c.UserContext(), actorOf(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, q)
}
