package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/service"
)

func newLogRouter(t *testing.T) (*gin.Engine, *service.MemoryLogStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := service.NewMemoryLogStore()
	stream := service.NewStreamHub()
	svc := service.NewLogService(store, nil, stream)
	h := NewLogHandler(svc, stream)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	logs := r.Group("/v1/logs")
	{
		logs.GET("/health", h.Health)
		logs.GET("/statistics", h.Statistics)
		logs.GET("/analytics", h.Analytics)
		logs.POST("/cleanup", h.Cleanup)

		logs.POST("/system", h.CreateSystemLog)
		logs.POST("/system/bulk", h.CreateSystemLogs)
		logs.GET("/system", h.ListSystemLogs)
		logs.GET("/system/:id", h.GetSystemLog)
		logs.PUT("/system/:id", h.UpdateSystemLog)
		logs.DELETE("/system/:id", h.DeleteSystemLog)

		logs.POST("/audit", h.CreateAuditLog)
		logs.GET("/audit", h.ListAuditLogs)
		logs.GET("/audit/:id", h.GetAuditLog)

		logs.POST("/api", h.CreateAPILog)
		logs.GET("/api", h.ListAPILogs)
		logs.GET("/api/:id", h.GetAPILog)
	}
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetSystemLog(t *testing.T) {
	r, _ := newLogRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/logs/system", map[string]any{
		"level":    "ERROR",
		"category": "DATABASE",
		"message":  "connection refused",
		"module":   "repository",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created model.SystemLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.ID == 0 || created.Timestamp.IsZero() {
		t.Fatalf("id/timestamp not assigned: %+v", created)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/logs/system/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestCreateSystemLogValidation(t *testing.T) {
	r, _ := newLogRouter(t)

	// Missing message.
	rec := doJSON(t, r, http.MethodPost, "/v1/logs/system", map[string]any{
		"level":    "INFO",
		"category": "SYSTEM",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", rec.Code)
	}

	// Unknown level.
	rec = doJSON(t, r, http.MethodPost, "/v1/logs/system", map[string]any{
		"level":    "LOUD",
		"category": "SYSTEM",
		"message":  "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", rec.Code)
	}
}

func TestBulkCreateSystemLogs(t *testing.T) {
	r, store := newLogRouter(t)

	batch := make([]map[string]any, 3)
	for i := range batch {
		batch[i] = map[string]any{"level": "INFO", "category": "SYSTEM", "message": fmt.Sprintf("m%d", i)}
	}
	rec := doJSON(t, r, http.MethodPost, "/v1/logs/system/bulk", batch)
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Count)
	}
	_, total, err := store.ListSystemLogs(context.Background(), model.SystemLogFilter{}, 0, 10)
	if err != nil || total != 3 {
		t.Fatalf("stored %d records (err %v), want 3", total, err)
	}

	// One bad record rejects the whole batch.
	batch[1]["level"] = "SHOUTING"
	rec = doJSON(t, r, http.MethodPost, "/v1/logs/system/bulk", batch)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mixed batch, got %d", rec.Code)
	}
	_, total, _ = store.ListSystemLogs(context.Background(), model.SystemLogFilter{}, 0, 10)
	if total != 3 {
		t.Fatalf("rejected batch wrote records, total = %d", total)
	}

	oversized := make([]map[string]any, 101)
	for i := range oversized {
		oversized[i] = map[string]any{"level": "INFO", "category": "SYSTEM", "message": "m"}
	}
	rec = doJSON(t, r, http.MethodPost, "/v1/logs/system/bulk", oversized)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 101 records, got %d", rec.Code)
	}
}

func TestGetSystemLogNotFound(t *testing.T) {
	r, _ := newLogRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/v1/logs/system/12345", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListSystemLogsPaginationEnvelope(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if err := store.InsertSystemLog(ctx, &model.SystemLog{
			Level: model.LevelInfo, Category: model.CategorySystem, Message: "m",
		}); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, r, http.MethodGet, "/v1/logs/system?page=2&size=25", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp model.SystemLogListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 60 || resp.Page != 2 || resp.Size != 25 || resp.TotalPages != 3 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if len(resp.Logs) != 25 {
		t.Fatalf("page length = %d, want 25", len(resp.Logs))
	}
}

func TestListSystemLogsFilterByLevel(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	store.InsertSystemLog(ctx, &model.SystemLog{Level: model.LevelInfo, Category: model.CategorySystem, Message: "a"})
	store.InsertSystemLog(ctx, &model.SystemLog{Level: model.LevelError, Category: model.CategorySystem, Message: "b"})

	rec := doJSON(t, r, http.MethodGet, "/v1/logs/system?level=ERROR", nil)
	var resp model.SystemLogListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Logs[0].Level != model.LevelError {
		t.Fatalf("level filter failed: %+v", resp)
	}

	rec = doJSON(t, r, http.MethodGet, "/v1/logs/system?level=NOISE", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus level filter, got %d", rec.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	store.InsertSystemLog(ctx, &model.SystemLog{
		Level: model.LevelError, Category: model.CategorySystem, Message: "x",
		Timestamp: time.Now().UTC().Add(-10 * time.Minute),
	})

	rec := doJSON(t, r, http.MethodGet, "/v1/logs/analytics?group_by=hour", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Analytics []*model.LogAnalytics `json:"analytics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Analytics) != 1 || resp.Analytics[0].ErrorCount != 1 {
		t.Fatalf("unexpected analytics: %+v", resp.Analytics)
	}

	rec = doJSON(t, r, http.MethodGet, "/v1/logs/analytics?group_by=decade", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid group_by, got %d", rec.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	store.InsertSystemLog(ctx, &model.SystemLog{
		Level: model.LevelInfo, Category: model.CategorySystem, Message: "old",
		Timestamp: time.Now().UTC().AddDate(0, 0, -90),
	})
	store.InsertSystemLog(ctx, &model.SystemLog{
		Level: model.LevelInfo, Category: model.CategorySystem, Message: "fresh",
	})

	rec := doJSON(t, r, http.MethodPost, "/v1/logs/cleanup?days_to_keep=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d: %s", rec.Code, rec.Body.String())
	}
	var result model.CleanupResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.SystemLogsDeleted != 1 || result.TotalDeleted != 1 {
		t.Fatalf("unexpected cleanup result: %+v", result)
	}

	rec = doJSON(t, r, http.MethodPost, "/v1/logs/cleanup?days_to_keep=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for days_to_keep=0, got %d", rec.Code)
	}
}

// The audit surface is append-only: no update or delete routes exist.
func TestAuditLogsAreImmutable(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	entry := &model.AuditLog{UserID: 1, Action: "CREATE", ResourceType: "lead"}
	if err := store.InsertAuditLog(ctx, entry); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/logs/audit/%d", entry.ID), map[string]any{"action": "TAMPERED"})
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("audit update must not be routable, got %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/logs/audit/%d", entry.ID), nil)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("audit delete must not be routable, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/logs/audit/%d", entry.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit read should work, got %d", rec.Code)
	}
}

func TestSystemLogUpdateEndpoint(t *testing.T) {
	r, store := newLogRouter(t)
	ctx := context.Background()
	entry := &model.SystemLog{Level: model.LevelDebug, Category: model.CategorySystem, Message: "typo"}
	if err := store.InsertSystemLog(ctx, entry); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/logs/system/%d", entry.ID), map[string]any{
		"message": "fixed",
		"level":   "INFO",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated model.SystemLog
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Message != "fixed" || updated.Level != model.LevelInfo {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestAPILogCreateValidation(t *testing.T) {
	r, _ := newLogRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/logs/api", map[string]any{
		"request_id":  "r1",
		"method":      "GET",
		"endpoint":    "/v1/leads",
		"status_code": 99, // below the valid range
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for status_code 99, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/v1/logs/api", map[string]any{
		"request_id":  "r1",
		"method":      "GET",
		"endpoint":    "/v1/leads",
		"status_code": 200,
		"request_headers": map[string]string{
			"Authorization": "Bearer leak-me",
			"Content-Type":  "application/json",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created model.APILog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.RequestHeaders["authorization"] != "***MASKED***" {
		t.Fatalf("authorization not masked on the create surface: %v", created.RequestHeaders)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newLogRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/v1/logs/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}
