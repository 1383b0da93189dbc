package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/school-lms/internal/ctxutil"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

const actorKey = "actor"

type claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет HS256 bearer-токены.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u models.User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (t *Tokens) Parse(raw string) (workflow.Actor, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return workflow.Actor{}, err
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return workflow.Actor{}, errors.New("bad subject")
	}
	if !c.Role.Valid() {
		return workflow.Actor{}, errors.New("bad role")
	}
	return workflow.Actor{UserID: id, Role: c.Role}, nil
}

// requireAuth кладёт Actor из bearer-токена в Locals.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	h := c.Get(fiber.HeaderAuthorization)
	raw, found := strings.CutPrefix(h, "Bearer ")
	if !found || raw == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	actor, err := s.tokens.Parse(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}
	c.Locals(actorKey, actor)
	c.SetUserContext(ctxutil.WithUserID(c.UserContext(), actor.UserID))
	return c.Next()
}

func actorOf(c *fiber.Ctx) workflow.Actor {
	a, _ := c.Locals(actorKey).(workflow.Actor)
	return a
}
