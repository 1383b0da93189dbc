package models

import "time"

type Role string

const (
	Student   Role = "student"
	Professor Role = "professor"
	Admin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case Student, Professor, Admin:
		return true
	}
	return false
}

// Profile — личные данные владельца учётной записи.
type Profile struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User — учётная запись вместе с профилем.
type User struct {
	ID             int64     `json:"id"`
	ProfileID      int64     `json:"profile_id"`
	Email          string    `json:"email"`
	PasswordHash   []byte    `json:"-"`
	Role           Role      `json:"role"`
	Name           string    `json:"name"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u User) IsStudent() bool   { return u.Role == Student }
func (u User) IsProfessor() bool { return u.Role == Professor }
func (u User) IsAdmin() bool     { return u.Role == Admin }
