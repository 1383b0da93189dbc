package workflow

import (
	"time"

	"github.com/Spok95/school-lms/internal/models"
)

type NewUser struct {
	Email           string      `json:"email" validate:"required,email,max=254"`
	Name            string      `json:"name" validate:"required,max=200"`
	Password        string      `json:"password" validate:"required,max=72"`
	PasswordConfirm string      `json:"password_confirm" validate:"required"`
	Role            models.Role `json:"role" validate:"required,oneof=student professor admin"`
	TelegramChatID  *int64      `json:"telegram_chat_id,omitempty"`
}

// UserPatch — изменяемые поля пользователя; nil — не трогаем. Роль не меняется.
type UserPatch struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password       *string `json:"password,omitempty" validate:"omitempty,max=72"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
}

type NewCourse struct {
	Prefix   string `json:"prefix" validate:"required,alphanum,max=10"`
	Number   string `json:"number" validate:"required,max=10"`
	Name     string `json:"name" validate:"required,max=200"`
	Schedule string `json:"schedule" validate:"max=500"`
}

type CoursePatch struct {
	Prefix   *string `json:"prefix,omitempty" validate:"omitempty,alphanum,max=10"`
	Number   *string `json:"number,omitempty" validate:"omitempty,min=1,max=10"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Schedule *string `json:"schedule,omitempty" validate:"omitempty,max=500"`
}

// NewItem — для теста Points не задаётся: считается по вопросам.
type NewItem struct {
	Kind     models.ItemKind `json:"kind" validate:"required,oneof=assignment quiz"`
	Title    string          `json:"title" validate:"required,max=200"`
	Content  string          `json:"content"`
	Points   float64         `json:"points" validate:"gte=0"`
	DueAt    *time.Time      `json:"due_at,omitempty"`
	Position int             `json:"position" validate:"gte=0"`
}

type ItemPatch struct {
	Title    *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content  *string    `json:"content,omitempty"`
	Points   *float64   `json:"points,omitempty" validate:"omitempty,gt=0"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Position *int       `json:"position,omitempty" validate:"omitempty,gte=0"`
}

type NewOption struct {
	Text      string `json:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

type NewQuestion struct {
	Type    models.QuestionType `json:"type" validate:"required,oneof=multiple_choice short_answer"`
	Text    string              `json:"text" validate:"required"`
	Points  float64             `json:"points" validate:"gt=0"`
	Options []NewOption         `json:"options" validate:"dive"`
}
