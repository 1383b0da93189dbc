package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/school-lms/internal/apperr"
	"github.com/Spok95/school-lms/internal/models"
)

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register — самостоятельная регистрация студента или преподавателя.
// Администраторов создаёт только оператор через lmsctl.
func (e *Engine) Register(ctx context.Context, in NewUser) (u models.User, err error) {
	defer e.finish("identity.register", &err)
	if in.Role == models.Admin {
		return models.User{}, apperr.Forbidden("admin accounts can only be created by an operator")
	}
	return e.createUser(ctx, in)
}

// CreateUser — создание пользователя с любой ролью (операторский путь).
func (e *Engine) CreateUser(ctx context.Context, in NewUser) (u models.User, err error) {
	defer e.finish("identity.create", &err)
	return e.createUser(ctx, in)
}

func (e *Engine) createUser(ctx context.Context, in NewUser) (models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := e.valid.check(in); err != nil {
		return models.User{}, err
	}
	fields := map[string]string{}
	if !e.domainAllowed(in.Email) {
		fields["email"] = "email domain is not allowed"
	}
	if msg := e.passwordProblem(in.Password); msg != "" {
		fields["password"] = msg
	}
	if in.Password != in.PasswordConfirm {
		fields["password_confirm"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return models.User{}, apperr.Validation("invalid input", fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), e.policy.BcryptCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var u models.User
	err = e.store.Atomic(ctx, func(r Repo) error {
		p := models.Profile{Name: in.Name, TelegramChatID: in.TelegramChatID}
		if err := r.InsertProfile(ctx, &p); err != nil {
			return err
		}
		u = models.User{
			ProfileID:      p.ID,
			Email:          in.Email,
			PasswordHash:   hash,
			Role:           in.Role,
			Name:           p.Name,
			TelegramChatID: p.TelegramChatID,
		}
		if err := r.InsertUser(ctx, &u); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return apperr.Conflict("email %s is already registered", in.Email)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	e.log.Sugar().Infow("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (e *Engine) domainAllowed(email string) bool {
	if len(e.policy.AllowedDomains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range e.policy.AllowedDomains {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(d), "@"), domain) {
			return true
		}
	}
	return false
}

func (e *Engine) passwordProblem(pw string) string {
	if len(pw) < e.policy.PasswordMinLen {
		return fmt.Sprintf("must be at least %d characters long", e.policy.PasswordMinLen)
	}
	return ""
}

// Authenticate — проверка email и пароля. Неизвестный email и неверный пароль
// неразличимы для вызывающего.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (u models.User, err error) {
	defer e.finish("identity.authenticate", &err)
	email = normalizeEmail(email)
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		u, err = r.UserByEmail(ctx, email)
		return err
	})
	if errors.Is(err, ErrRecordNotFound) {
		// одинаковое время ответа для неизвестного email
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return models.User{}, errBadCredentials()
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return models.User{}, errBadCredentials()
	}
	return u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

func errBadCredentials() error { return apperr.Validation("invalid email or password", nil) }

// GetUser — профиль пользователя. Видят сам пользователь, преподаватели и администраторы.
func (e *Engine) GetUser(ctx context.Context, actor Actor, id int64) (u models.User, err error) {
	defer e.finish("identity.get", &err)
	if err := authorize(actor, either(isUser(id), hasRole(models.Professor, models.Admin))); err != nil {
		return models.User{}, err
	}
	err = e.store.View(ctx, func(r Repo) error {
		var err error
		u, err = r.UserByID(ctx, id)
		return missing(err, "user %d not found", id)
	})
	return u, err
}

// UpdateUser — профиль и учётная запись меняются одной транзакцией.
func (e *Engine) UpdateUser(ctx context.Context, actor Actor, id int64, patch UserPatch) (u models.User, err error) {
	defer e.finish("identity.update", &err)
	if err := authorize(actor, either(isUser(id), hasRole(models.Admin))); err != nil {
		return models.User{}, err
	}
	if patch.Email != nil {
		v := normalizeEmail(*patch.Email)
		patch.Email = &v
	}
	if err := e.valid.check(patch); err != nil {
		return models.User{}, err
	}
	fields := map[string]string{}
	if patch.Email != nil && !e.domainAllowed(*patch.Email) {
		fields["email"] = "email domain is not allowed"
	}
	if patch.Password != nil {
		if msg := e.passwordProblem(*patch.Password); msg != "" {
			fields["password"] = msg
		}
	}
	if len(fields) > 0 {
		return models.User{}, apperr.Validation("invalid input", fields)
	}
	var hash []byte
	if patch.Password != nil {
		if hash, err = bcrypt.GenerateFromPassword([]byte(*patch.Password), e.policy.BcryptCost); err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	err = e.store.Atomic(ctx, func(r Repo) error {
		var err error
		if u, err = r.UserByID(ctx, id); err != nil {
			return missing(err, "user %d not found", id)
		}
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.TelegramChatID != nil {
			u.TelegramChatID = patch.TelegramChatID
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if hash != nil {
			u.PasswordHash = hash
		}
		if err := r.UpdateProfile(ctx, models.Profile{ID: u.ProfileID, Name: u.Name, TelegramChatID: u.TelegramChatID}); err != nil {
			return err
		}
		if err := r.UpdateUserAccount(ctx, u); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return apperr.Conflict("email %s is already registered", u.Email)
			}
			return err
		}
		return nil
	})
	return u, err
}

// DeleteUser — удаление учётной записи вместе с профилем (только администратор).
func (e *Engine) DeleteUser(ctx context.Context, actor Actor, id int64) (err error) {
	defer e.finish("identity.delete", &err)
	if err := authorize(actor, hasRole(models.Admin)); err != nil {
		return err
	}
	if actor.UserID == id {
		return apperr.Conflict("administrators cannot delete themselves")
	}
	return e.store.Atomic(ctx, func(r Repo) error {
		u, err := r.UserByID(ctx, id)
		if err != nil {
			return missing(err, "user %d not found", id)
		}
		if u.IsProfessor() {
			courses, err := r.ListCourses(ctx, u.ID)
			if err != nil {
				return err
			}
			if len(courses) > 0 {
				return apperr.Conflict("professor still owns %d course(s)", len(courses))
			}
		}
		if err := r.DeleteUser(ctx, u.ID); err != nil {
			return err
		}
		return r.DeleteProfile(ctx, u.ProfileID)
	})
}
