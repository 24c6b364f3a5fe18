package repository

import (
	"testing"
	"time"

	"github.com/leadgate/leadgate/internal/model"
)

func TestWhereBuilderNumbersPlaceholders(t *testing.T) {
	w := &whereBuilder{}
	w.add("level = $%d", "ERROR")
	w.add("(message ILIKE $%d OR module ILIKE $%d)", "%db%", "%db%")

	got := w.clause()
	want := " WHERE level = $1 AND (message ILIKE $2 OR module ILIKE $3)"
	if got != want {
		t.Fatalf("clause = %q, want %q", got, want)
	}
	if len(w.args) != 3 {
		t.Fatalf("args = %v, want 3 entries", w.args)
	}
	if w.args[0] != "ERROR" || w.args[1] != "%db%" {
		t.Fatalf("args misordered: %v", w.args)
	}
}

func TestWhereBuilderEmpty(t *testing.T) {
	w := &whereBuilder{}
	if got := w.clause(); got != "" {
		t.Fatalf("empty builder produced %q", got)
	}
}

func TestSystemLogWhereCombinesFilters(t *testing.T) {
	uid := int64(42)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := systemLogWhere(model.SystemLogFilter{
		Level:      model.LevelError,
		UserID:     &uid,
		StartDate:  &start,
		SearchText: "timeout",
	})

	want := " WHERE level = $1 AND user_id = $2 AND timestamp >= $3" +
		" AND (message ILIKE $4 OR module ILIKE $5 OR function_name ILIKE $6)"
	if got := w.clause(); got != want {
		t.Fatalf("clause = %q, want %q", got, want)
	}
	if len(w.args) != 6 {
		t.Fatalf("args = %v", w.args)
	}
	if w.args[3] != "%timeout%" || w.args[5] != "%timeout%" {
		t.Fatalf("search term not repeated per placeholder: %v", w.args)
	}
}

func TestSystemLogWhereEmptyFilter(t *testing.T) {
	w := systemLogWhere(model.SystemLogFilter{})
	if got := w.clause(); got != "" {
		t.Fatalf("empty filter produced %q", got)
	}
}

func TestAuditLogWhereActionIsSubstringMatch(t *testing.T) {
	w := auditLogWhere(model.AuditLogFilter{
		Action:       "UPDATE",
		ResourceType: "lead",
	})
	want := " WHERE action ILIKE $1 AND resource_type = $2"
	if got := w.clause(); got != want {
		t.Fatalf("clause = %q, want %q", got, want)
	}
	if w.args[0] != "%UPDATE%" || w.args[1] != "lead" {
		t.Fatalf("args = %v", w.args)
	}
}

func TestAPILogWhereStatusCode(t *testing.T) {
	code := 500
	w := apiLogWhere(model.APILogFilter{
		Endpoint:   "/v1/leads",
		Method:     "POST",
		StatusCode: &code,
	})
	want := " WHERE endpoint ILIKE $1 AND method = $2 AND status_code = $3"
	if got := w.clause(); got != want {
		t.Fatalf("clause = %q, want %q", got, want)
	}
	if w.args[2] != 500 {
		t.Fatalf("args = %v", w.args)
	}
}

func TestContains(t *testing.T) {
	if got := contains("db"); got != "%db%" {
		t.Fatalf("contains = %q", got)
	}
}
