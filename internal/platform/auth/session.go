package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// DevUserID is the user every unauthenticated request acts as in development.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Session identifies the caller. It is passed explicitly to every service
// operation that reads or writes user-owned records.
type Session struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Roles  []string  `json:"roles,omitempty"`
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session set by the auth middleware, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// SessionFrom returns the request's session or a 401 error.
func SessionFrom(c echo.Context) (*Session, error) {
	s := SessionFromContext(c.Request().Context())
	if s == nil || s.UserID == uuid.Nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return s, nil
}

func setSession(c echo.Context, s *Session) {
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
}
