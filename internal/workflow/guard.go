package workflow

import (
	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

// Actor — кто вызывает операцию. Передаётся явно, без глобального состояния.
type Actor struct {
	UserID int64
	Role   models.Role
}

func (a Actor) Is(r models.Role) bool { return a.Role == r }

// check — одно правило доступа; nil означает «разрешено».
type check func(Actor) error

// authorize проверяет все правила по порядку и возвращает первое нарушение.
func authorize(a Actor, checks ...check) error {
	if a.UserID == 0 {
		return apperr.Forbidden("authentication required")
	}
	for _, c := range checks {
		if err := c(a); err != nil {
			return err
		}
	}
	return nil
}

func hasRole(roles ...models.Role) check {
	return func(a Actor) error {
		for _, r := range roles {
			if a.Role == r {
				return nil
			}
		}
		return apperr.Forbidden("role %q is not allowed to do this", a.Role)
	}
}

func isUser(id int64) check {
	return func(a Actor) error {
		if a.UserID != id {
			return apperr.Forbidden("not your record")
		}
		return nil
	}
}

func ownsCourse(c models.Course) check {
	return func(a Actor) error {
		if a.Role != models.Professor || c.ProfessorID != a.UserID {
			return apperr.Forbidden("only the course professor can do this")
		}
		return nil
	}
}

// either пропускает, если прошло хотя бы одно правило; иначе возвращает первую ошибку.
func either(checks ...check) check {
	return func(a Actor) error {
		var first error
		for _, c := range checks {
			err := c(a)
			if err == nil {
				return nil
			}
			if first == nil {
				first = err
			}
		}
		return first
	}
}

func ownerOrAdmin(c models.Course) check { return either(ownsCourse(c), hasRole(models.Admin)) }
