package service

import (
	"context"
	"time"

	"github.com/leadgate/leadgate/internal/model"
)

// LogStore is the persistence surface the log services write to. The
// Postgres implementation lives in the repository package; MemoryLogStore
// serves as the degraded-mode fallback when no database is configured.
type LogStore interface {
	InsertSystemLog(ctx context.Context, entry *model.SystemLog) error
	InsertAuditLog(ctx context.Context, entry *model.AuditLog) error
	InsertAPILog(ctx context.Context, entry *model.APILog) error

	GetSystemLog(ctx context.Context, id int64) (*model.SystemLog, error)
	GetAuditLog(ctx context.Context, id int64) (*model.AuditLog, error)
	GetAPILog(ctx context.Context, id int64) (*model.APILog, error)

	ListSystemLogs(ctx context.Context, filter model.SystemLogFilter, skip, limit int) ([]*model.SystemLog, int64, error)
	ListAuditLogs(ctx context.Context, filter model.AuditLogFilter, skip, limit int) ([]*model.AuditLog, int64, error)
	ListAPILogs(ctx context.Context, filter model.APILogFilter, skip, limit int) ([]*model.APILog, int64, error)

	UpdateSystemLog(ctx context.Context, id int64, upd model.SystemLogUpdate) (*model.SystemLog, error)
	DeleteSystemLog(ctx context.Context, id int64) (*model.SystemLog, error)

	Statistics(ctx context.Context, start, end *time.Time) (*model.LogStats, error)
	Analytics(ctx context.Context, start, end time.Time, groupBy model.GroupBy) ([]*model.LogAnalytics, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (*model.CleanupResult, error)

	Ping(ctx context.Context) error
}
