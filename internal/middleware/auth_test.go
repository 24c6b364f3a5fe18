package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/model"
)

type stubUserLoader struct {
	users map[int64]*model.User
}

func (s *stubUserLoader) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			TokenTTLMinutes: 15,
			Issuer:          "leadgate",
		},
	}
}

func newAuthRouter(cfg *config.Config, users UserLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, CurrentUser(c))
	})
	r.GET("/admin", AuthMiddleware(cfg, users), AdminMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestTokenRoundtrip(t *testing.T) {
	cfg := testConfig()
	admin := &model.User{ID: 7, Name: "Ops", Email: "ops@example.com", RoleID: model.RoleAdmin}
	loader := &stubUserLoader{users: map[int64]*model.User{7: admin}}
	r := newAuthRouter(cfg, loader)

	token, err := GenerateToken(cfg, admin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ops@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestMissingAndMalformedTokens(t *testing.T) {
	cfg := testConfig()
	r := newAuthRouter(cfg, &stubUserLoader{users: map[int64]*model.User{}})

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	user := &model.User{ID: 3, RoleID: model.RoleSales}
	r := newAuthRouter(cfg, &stubUserLoader{users: map[int64]*model.User{3: user}})

	past := time.Now().UTC().Add(-time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "3",
		IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(past),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Auth.JWTSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongSigningKeyRejected(t *testing.T) {
	cfg := testConfig()
	user := &model.User{ID: 3, RoleID: model.RoleSales}
	r := newAuthRouter(cfg, &stubUserLoader{users: map[int64]*model.User{3: user}})

	other := testConfig()
	other.Auth.JWTSecret = "a-different-secret"
	token, err := GenerateToken(other, user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeletedAccountRejected(t *testing.T) {
	cfg := testConfig()
	r := newAuthRouter(cfg, &stubUserLoader{users: map[int64]*model.User{}})

	token, err := GenerateToken(cfg, &model.User{ID: 99, RoleID: model.RoleSales})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminMiddlewareRoleGate(t *testing.T) {
	cfg := testConfig()
	admin := &model.User{ID: 1, RoleID: model.RoleAdmin}
	sales := &model.User{ID: 2, RoleID: model.RoleSales}
	loader := &stubUserLoader{users: map[int64]*model.User{1: admin, 2: sales}}
	r := newAuthRouter(cfg, loader)

	adminToken, err := GenerateToken(cfg, admin)
	require.NoError(t, err)
	salesToken, err := GenerateToken(cfg, sales)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+salesToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
