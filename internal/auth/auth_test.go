package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository/memory"
	apperrors "github.com/spec-kit/grievance-service/pkg/util"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, err := tm.GenerateToken("admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", token.SubjectID)

	claims, err := tm.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokenManager_RejectsForeignAndExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, err := tm.GenerateToken("admin-1", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("other", 1).ParseToken(token.Value)
	assert.Error(t, err)

	tm.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = tm.ParseToken(token.Value)
	assert.Error(t, err)

	_, err = tm.GenerateToken("x", domain.Role("root"))
	assert.Error(t, err)
}

func newAuthApp(t *testing.T, tm *TokenManager) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "admin-1", Role: domain.RoleAdmin, Active: true})
	store.PutUser(domain.User{ID: "agent-1", Role: domain.RoleAgent, Active: true})
	store.PutUser(domain.User{ID: "gone", Role: domain.RoleAdmin, Active: false})

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	mw := NewAuthMiddleware(tm, store.Users())
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(ActorKey).(string))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	app := newAuthApp(t, tm)

	bearer := func(subject string, role domain.Role) string {
		token, err := tm.GenerateToken(subject, role)
		require.NoError(t, err)
		return "Bearer " + token.Value
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"malformed header", "Token abc", fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"unknown user", bearer("ghost", domain.RoleAdmin), fiber.StatusUnauthorized},
		{"inactive user", bearer("gone", domain.RoleAdmin), fiber.StatusUnauthorized},
		{"directory role wins", bearer("agent-1", domain.RoleAdmin), fiber.StatusForbidden},
		{"admin", bearer("admin-1", domain.RoleAdmin), fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
