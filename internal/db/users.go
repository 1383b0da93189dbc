package db

import (
	"context"

	"github.com/Spok95/school-lms/internal/models"
)

func (r repo) InsertProfile(ctx context.Context, p *models.Profile) error {
	return mapErr(r.q.QueryRowContext(ctx, `
		INSERT INTO profiles (name, telegram_chat_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, p.Name, p.TelegramChatID).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt))
}

func (r repo) UpdateProfile(ctx context.Context, p models.Profile) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE profiles SET name = $1, telegram_chat_id = $2, updated_at = now()
		WHERE id = $3
	`, p.Name, p.TelegramChatID, p.ID))
}

func (r repo) DeleteProfile(ctx context.Context, id int64) error {
	return affected(r.q.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id))
}

func (r repo) InsertUser(ctx context.Context, u *models.User) error {
	return mapErr(r.q.QueryRowContext(ctx, `
		INSERT INTO users (profile_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.ProfileID, u.Email, u.PasswordHash, string(u.Role)).Scan(&u.ID, &u.CreatedAt))
}

// UpdateUserAccount — email и хэш пароля; роль не меняется никогда.
func (r repo) UpdateUserAccount(ctx context.Context, u models.User) error {
	return affected(r.q.ExecContext(ctx, `
		UPDATE users SET email = $1, password_hash = $2 WHERE id = $3
	`, u.Email, u.PasswordHash, u.ID))
}

func (r repo) DeleteUser(ctx context.Context, id int64) error {
	return affected(r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

const userCols = `
	u.id, u.profile_id, u.email, u.password_hash, u.role, p.name, p.telegram_chat_id, u.created_at
	FROM users u JOIN profiles p ON p.id = u.profile_id`

func scanUser(s scanner) (models.User, error) {
	var u models.User
	err := s.Scan(&u.ID, &u.ProfileID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &u.TelegramChatID, &u.CreatedAt)
	return u, mapErr(err)
}

func (r repo) UserByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userCols+` WHERE u.id = $1`, id))
}

func (r repo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userCols+` WHERE lower(u.email) = lower($1)`, email))
}
