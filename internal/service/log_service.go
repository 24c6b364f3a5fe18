package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/pkg/logger"
	"github.com/leadgate/leadgate/internal/pkg/metrics"
	"github.com/leadgate/leadgate/internal/repository"
)

// RecentCache is the hot cache of recent system events. Satisfied by
// repository.RedisRecentLogs; nil disables the degraded read path.
type RecentCache interface {
	Push(ctx context.Context, entry *model.SystemLog) error
	Recent(ctx context.Context, filter model.SystemLogFilter, limit int) ([]*model.SystemLog, error)
}

// LogService is the admin query and management surface over the log store.
// Unlike the Writer, its operations surface errors to the caller.
type LogService struct {
	store  LogStore
	recent RecentCache
	stream *StreamHub
}

func NewLogService(store LogStore, recent RecentCache, stream *StreamHub) *LogService {
	return &LogService{store: store, recent: recent, stream: stream}
}

func (s *LogService) CreateSystemLog(ctx context.Context, req model.SystemLogCreateRequest) (*model.SystemLog, error) {
	if !req.Level.Valid() {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid log level %q", req.Level))
	}
	if !req.Category.Valid() {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid log category %q", req.Category))
	}
	entry := &model.SystemLog{
		Level:        req.Level,
		Category:     req.Category,
		Message:      clampMessage(req.Message),
		Module:       req.Module,
		FunctionName: req.FunctionName,
		LineNumber:   req.LineNumber,
		RequestID:    req.RequestID,
		UserID:       req.UserID,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Endpoint:     req.Endpoint,
		Method:       req.Method,
		ExtraData:    req.ExtraData,
		StackTrace:   req.StackTrace,
		DurationMs:   req.DurationMs,
	}
	if err := s.store.InsertSystemLog(ctx, entry); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to store system log", err)
	}
	metrics.LogRecordsWritten.WithLabelValues("system").Inc()
	if s.recent != nil {
		if err := s.recent.Push(ctx, entry); err != nil {
			logger.Warn("recent log cache push failed", "error", err.Error())
		}
	}
	if s.stream != nil {
		s.stream.Publish(entry)
	}
	return entry, nil
}

const maxBulkLogRecords = 100

// CreateSystemLogs stores a batch of records. Validation failures abort the
// whole batch before anything is written; insert failures abort mid-batch
// and report how far the batch got.
func (s *LogService) CreateSystemLogs(ctx context.Context, reqs []model.SystemLogCreateRequest) ([]*model.SystemLog, error) {
	if len(reqs) == 0 {
		return nil, apperrors.NewInvalidRequest("no log records supplied")
	}
	if len(reqs) > maxBulkLogRecords {
		return nil, apperrors.NewInvalidRequest(
			fmt.Sprintf("at most %d log records per request, got %d", maxBulkLogRecords, len(reqs)))
	}
	for i, req := range reqs {
		if !req.Level.Valid() {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("record %d: invalid log level %q", i, req.Level))
		}
		if !req.Category.Valid() {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("record %d: invalid log category %q", i, req.Category))
		}
	}
	records := make([]*model.SystemLog, 0, len(reqs))
	for i, req := range reqs {
		entry, err := s.CreateSystemLog(ctx, req)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInternal,
				fmt.Sprintf("batch failed at record %d after storing %d", i, len(records)), err)
		}
		records = append(records, entry)
	}
	return records, nil
}

func (s *LogService) CreateAuditLog(ctx context.Context, req model.AuditLogCreateRequest) (*model.AuditLog, error) {
	entry := &model.AuditLog{
		UserID:       req.UserID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		OldValues:    req.OldValues,
		NewValues:    req.NewValues,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}
	if err := s.store.InsertAuditLog(ctx, entry); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to store audit log", err)
	}
	metrics.LogRecordsWritten.WithLabelValues("audit").Inc()
	return entry, nil
}

func (s *LogService) CreateAPILog(ctx context.Context, req model.APILogCreateRequest) (*model.APILog, error) {
	entry := &model.APILog{
		RequestID:      req.RequestID,
		Method:         req.Method,
		Endpoint:       req.Endpoint,
		StatusCode:     req.StatusCode,
		ResponseTimeMs: req.ResponseTimeMs,
		UserID:         req.UserID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		RequestSize:    req.RequestSize,
		ResponseSize:   req.ResponseSize,
		QueryParams:    req.QueryParams,
		RequestHeaders: redactHeaders(req.RequestHeaders),
		ErrorMessage:   req.ErrorMessage,
		StackTrace:     req.StackTrace,
	}
	if err := s.store.InsertAPILog(ctx, entry); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to store api log", err)
	}
	metrics.LogRecordsWritten.WithLabelValues("api").Inc()
	return entry, nil
}

func (s *LogService) GetSystemLog(ctx context.Context, id int64) (*model.SystemLog, error) {
	entry, err := s.store.GetSystemLog(ctx, id)
	if err != nil {
		return nil, mapLogStoreErr(err, "system log")
	}
	return entry, nil
}

func (s *LogService) GetAuditLog(ctx context.Context, id int64) (*model.AuditLog, error) {
	entry, err := s.store.GetAuditLog(ctx, id)
	if err != nil {
		return nil, mapLogStoreErr(err, "audit log")
	}
	return entry, nil
}

func (s *LogService) GetAPILog(ctx context.Context, id int64) (*model.APILog, error) {
	entry, err := s.store.GetAPILog(ctx, id)
	if err != nil {
		return nil, mapLogStoreErr(err, "api log")
	}
	return entry, nil
}

// ListSystemLogs pages newest-first. When the primary store cannot answer and
// the recent cache is wired, it serves the cached tail instead of failing.
func (s *LogService) ListSystemLogs(ctx context.Context, filter model.SystemLogFilter, page, size int) (*model.SystemLogListResponse, error) {
	page, size = normalizePage(page, size)
	records, total, err := s.store.ListSystemLogs(ctx, filter, (page-1)*size, size)
	if err != nil {
		if s.recent == nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to list system logs", err)
		}
		logger.Warn("system log listing degraded to recent cache", "error", err.Error())
		cached, cacheErr := s.recent.Recent(ctx, filter, size)
		if cacheErr != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to list system logs", err)
		}
		records, total = cached, int64(len(cached))
	}
	return &model.SystemLogListResponse{
		Logs:       records,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: model.TotalPages(total, size),
	}, nil
}

func (s *LogService) ListAuditLogs(ctx context.Context, filter model.AuditLogFilter, page, size int) (*model.AuditLogListResponse, error) {
	page, size = normalizePage(page, size)
	records, total, err := s.store.ListAuditLogs(ctx, filter, (page-1)*size, size)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to list audit logs", err)
	}
	return &model.AuditLogListResponse{
		Logs:       records,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: model.TotalPages(total, size),
	}, nil
}

func (s *LogService) ListAPILogs(ctx context.Context, filter model.APILogFilter, page, size int) (*model.APILogListResponse, error) {
	page, size = normalizePage(page, size)
	records, total, err := s.store.ListAPILogs(ctx, filter, (page-1)*size, size)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to list api logs", err)
	}
	return &model.APILogListResponse{
		Logs:       records,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: model.TotalPages(total, size),
	}, nil
}

// UpdateSystemLog applies a correction to a stored system log. Only system
// logs support this; audit and API records have no mutation path.
func (s *LogService) UpdateSystemLog(ctx context.Context, id int64, upd model.SystemLogUpdate) (*model.SystemLog, error) {
	if upd.Level != nil && !upd.Level.Valid() {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid log level %q", *upd.Level))
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid log category %q", *upd.Category))
	}
	if upd.Message != nil {
		clamped := clampMessage(*upd.Message)
		upd.Message = &clamped
	}
	entry, err := s.store.UpdateSystemLog(ctx, id, upd)
	if err != nil {
		return nil, mapLogStoreErr(err, "system log")
	}
	return entry, nil
}

func (s *LogService) DeleteSystemLog(ctx context.Context, id int64) (*model.SystemLog, error) {
	entry, err := s.store.DeleteSystemLog(ctx, id)
	if err != nil {
		return nil, mapLogStoreErr(err, "system log")
	}
	return entry, nil
}

func (s *LogService) Statistics(ctx context.Context, start, end *time.Time) (*model.LogStats, error) {
	stats, err := s.store.Statistics(ctx, start, end)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to compute log statistics", err)
	}
	return stats, nil
}

// Analytics rolls system logs up into time buckets. Defaults: end is now,
// start is 24 hours before end.
func (s *LogService) Analytics(ctx context.Context, start, end *time.Time, groupBy model.GroupBy) ([]*model.LogAnalytics, error) {
	if groupBy == "" {
		groupBy = model.GroupByHour
	}
	if !groupBy.Valid() {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid group_by %q, expected hour, day, week or month", groupBy))
	}
	endAt := time.Now().UTC()
	if end != nil {
		endAt = *end
	}
	startAt := endAt.Add(-24 * time.Hour)
	if start != nil {
		startAt = *start
	}
	if startAt.After(endAt) {
		return nil, apperrors.NewInvalidRequest("start_date must not be after end_date")
	}
	out, err := s.store.Analytics(ctx, startAt, endAt, groupBy)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to compute log analytics", err)
	}
	return out, nil
}

// Cleanup deletes records older than daysToKeep days across all three kinds.
func (s *LogService) Cleanup(ctx context.Context, daysToKeep int) (*model.CleanupResult, error) {
	if daysToKeep < 1 {
		return nil, apperrors.NewInvalidRequest("days_to_keep must be at least 1")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	result, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "log cleanup failed", err)
	}
	metrics.LogsDeleted.WithLabelValues("system").Add(float64(result.SystemLogsDeleted))
	metrics.LogsDeleted.WithLabelValues("audit").Add(float64(result.AuditLogsDeleted))
	metrics.LogsDeleted.WithLabelValues("api").Add(float64(result.APILogsDeleted))
	logger.Info("log retention cleanup",
		"days_to_keep", daysToKeep,
		"system_deleted", result.SystemLogsDeleted,
		"audit_deleted", result.AuditLogsDeleted,
		"api_deleted", result.APILogsDeleted)
	return result, nil
}

func (s *LogService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return apperrors.New(apperrors.ErrUnavailable, "log store unavailable", err)
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = model.DefaultPageSize
	}
	if size > model.MaxPageSize {
		size = model.MaxPageSize
	}
	return page, size
}

func mapLogStoreErr(err error, what string) error {
	if errors.Is(err, repository.ErrLogNotFound) {
		return apperrors.NewNotFound(what + " not found")
	}
	return apperrors.New(apperrors.ErrInternal, "failed to access "+what, err)
}
