package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/handler"
	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/service"
)

type fixedUserLoader struct {
	users map[int64]*model.User
}

func (l *fixedUserLoader) Get(_ context.Context, id int64) (*model.User, error) {
	if u, ok := l.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d not found", id)
}

// newAuthedLogRouter wires mountLogRoutes exactly as the server does: behind
// AuthMiddleware and AdminMiddleware.
func newAuthedLogRouter(t *testing.T) (*gin.Engine, *config.Config, *fixedUserLoader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTLMinutes: 15, Issuer: "leadgate"},
	}
	loader := &fixedUserLoader{users: map[int64]*model.User{
		1: {ID: 1, Name: "Root", Email: "root@leadgate.io", RoleID: model.RoleAdmin},
		2: {ID: 2, Name: "Rep", Email: "rep@leadgate.io", RoleID: model.RoleSales},
	}}

	stream := service.NewStreamHub()
	logSvc := service.NewLogService(service.NewMemoryLogStore(), nil, stream)
	logHandler := handler.NewLogHandler(logSvc, stream)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	v1 := r.Group("/v1")
	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(cfg, loader))
	admin := authed.Group("")
	admin.Use(middleware.AdminMiddleware())
	mountLogRoutes(admin, logHandler)

	return r, cfg, loader
}

func logSurfaceRequests() []struct {
	method string
	path   string
} {
	return []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/logs/system"},
		{http.MethodPut, "/v1/logs/system/1"},
		{http.MethodDelete, "/v1/logs/system/1"},
		{http.MethodGet, "/v1/logs/audit"},
		{http.MethodPost, "/v1/logs/cleanup?days_to_keep=30"},
	}
}

func TestLogRoutesRequireAuthentication(t *testing.T) {
	r, _, _ := newAuthedLogRouter(t)

	for _, tc := range logSurfaceRequests() {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: got %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestLogRoutesRejectNonAdmins(t *testing.T) {
	r, cfg, loader := newAuthedLogRouter(t)

	token, err := middleware.GenerateToken(cfg, loader.users[2])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	for _, tc := range logSurfaceRequests() {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s %s as sales: got %d, want 403", tc.method, tc.path, w.Code)
		}
	}
}

func TestLogRoutesAllowAdmins(t *testing.T) {
	r, cfg, loader := newAuthedLogRouter(t)

	token, err := middleware.GenerateToken(cfg, loader.users[1])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/logs/system", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/logs/system as admin: got %d, want 200: %s", w.Code, w.Body.String())
	}
}
