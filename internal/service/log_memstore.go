package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/repository"
)

// MemoryLogStore keeps log records in process memory. It backs the server
// when no database DSN is configured and doubles as the store used in tests.
// Semantics mirror PostgresLogStore: newest-first listings, substring text
// filters, week buckets starting on Monday.
type MemoryLogStore struct {
	mu      sync.RWMutex
	system  []*model.SystemLog
	audit   []*model.AuditLog
	api     []*model.APILog
	nextSys int64
	nextAud int64
	nextAPI int64
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{nextSys: 1, nextAud: 1, nextAPI: 1}
}

func (m *MemoryLogStore) InsertSystemLog(_ context.Context, entry *model.SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextSys
	m.nextSys++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	m.system = append(m.system, &cp)
	return nil
}

func (m *MemoryLogStore) InsertAuditLog(_ context.Context, entry *model.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextAud
	m.nextAud++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MemoryLogStore) InsertAPILog(_ context.Context, entry *model.APILog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextAPI
	m.nextAPI++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	m.api = append(m.api, &cp)
	return nil
}

func (m *MemoryLogStore) GetSystemLog(_ context.Context, id int64) (*model.SystemLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.system {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrLogNotFound
}

func (m *MemoryLogStore) GetAuditLog(_ context.Context, id int64) (*model.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.audit {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrLogNotFound
}

func (m *MemoryLogStore) GetAPILog(_ context.Context, id int64) (*model.APILog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.api {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrLogNotFound
}

func (m *MemoryLogStore) ListSystemLogs(_ context.Context, filter model.SystemLogFilter, skip, limit int) ([]*model.SystemLog, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]*model.SystemLog, 0, len(m.system))
	for _, e := range m.system {
		if systemMatches(e, filter) {
			matched = append(matched, e)
		}
	}
	sortNewest(matched, func(e *model.SystemLog) (time.Time, int64) { return e.Timestamp, e.ID })
	return slicePage(matched, skip, limit), int64(len(matched)), nil
}

func (m *MemoryLogStore) ListAuditLogs(_ context.Context, filter model.AuditLogFilter, skip, limit int) ([]*model.AuditLog, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]*model.AuditLog, 0, len(m.audit))
	for _, e := range m.audit {
		if auditMatches(e, filter) {
			matched = append(matched, e)
		}
	}
	sortNewest(matched, func(e *model.AuditLog) (time.Time, int64) { return e.Timestamp, e.ID })
	return slicePage(matched, skip, limit), int64(len(matched)), nil
}

func (m *MemoryLogStore) ListAPILogs(_ context.Context, filter model.APILogFilter, skip, limit int) ([]*model.APILog, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]*model.APILog, 0, len(m.api))
	for _, e := range m.api {
		if apiMatches(e, filter) {
			matched = append(matched, e)
		}
	}
	sortNewest(matched, func(e *model.APILog) (time.Time, int64) { return e.Timestamp, e.ID })
	return slicePage(matched, skip, limit), int64(len(matched)), nil
}

func (m *MemoryLogStore) UpdateSystemLog(_ context.Context, id int64, upd model.SystemLogUpdate) (*model.SystemLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.system {
		if e.ID != id {
			continue
		}
		if upd.Level != nil {
			e.Level = *upd.Level
		}
		if upd.Category != nil {
			e.Category = *upd.Category
		}
		if upd.Message != nil {
			e.Message = *upd.Message
		}
		if upd.ExtraData != nil {
			e.ExtraData = *upd.ExtraData
		}
		cp := *e
		return &cp, nil
	}
	return nil, repository.ErrLogNotFound
}

func (m *MemoryLogStore) DeleteSystemLog(_ context.Context, id int64) (*model.SystemLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.system {
		if e.ID == id {
			m.system = append(m.system[:i], m.system[i+1:]...)
			return e, nil
		}
	}
	return nil, repository.ErrLogNotFound
}

func (m *MemoryLogStore) Statistics(_ context.Context, start, end *time.Time) (*model.LogStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &model.LogStats{}
	for _, e := range m.system {
		if !inRange(e.Timestamp, start, end) {
			continue
		}
		stats.TotalLogs++
		switch e.Level {
		case model.LevelDebug:
			stats.DebugCount++
		case model.LevelInfo:
			stats.InfoCount++
		case model.LevelWarning:
			stats.WarningCount++
		case model.LevelError:
			stats.ErrorCount++
		case model.LevelCritical:
			stats.CriticalCount++
		}
	}
	stats.ErrorRatePercentage = model.ErrorRate(stats.ErrorCount, stats.CriticalCount, stats.TotalLogs)

	avgStart := time.Now().UTC().AddDate(0, 0, -30)
	if start != nil {
		avgStart = *start
	}
	var sum float64
	var sampled int64
	for _, e := range m.api {
		if inRange(e.Timestamp, start, end) {
			stats.TotalAPICalls++
		}
		if e.Timestamp.Before(avgStart) {
			continue
		}
		if end != nil && e.Timestamp.After(*end) {
			continue
		}
		sum += float64(e.ResponseTimeMs)
		sampled++
	}
	if sampled > 0 {
		avg := sum / float64(sampled)
		stats.AvgResponseTimeMs = &avg
	}
	return stats, nil
}

func (m *MemoryLogStore) Analytics(_ context.Context, start, end time.Time, groupBy model.GroupBy) ([]*model.LogAnalytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := make(map[time.Time]*model.LogAnalytics)
	for _, e := range m.system {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		bucket := groupBy.Truncate(e.Timestamp)
		entry, ok := buckets[bucket]
		if !ok {
			entry = &model.LogAnalytics{
				TimePeriod: groupBy.Label(bucket),
				Timestamp:  bucket,
			}
			buckets[bucket] = entry
		}
		entry.LogCount++
		if e.Level.IsError() {
			entry.ErrorCount++
		}
	}
	out := make([]*model.LogAnalytics, 0, len(buckets))
	for _, entry := range buckets {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryLogStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (*model.CleanupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &model.CleanupResult{}

	keptSys := m.system[:0]
	for _, e := range m.system {
		if e.Timestamp.Before(cutoff) {
			result.SystemLogsDeleted++
		} else {
			keptSys = append(keptSys, e)
		}
	}
	m.system = keptSys

	keptAud := m.audit[:0]
	for _, e := range m.audit {
		if e.Timestamp.Before(cutoff) {
			result.AuditLogsDeleted++
		} else {
			keptAud = append(keptAud, e)
		}
	}
	m.audit = keptAud

	keptAPI := m.api[:0]
	for _, e := range m.api {
		if e.Timestamp.Before(cutoff) {
			result.APILogsDeleted++
		} else {
			keptAPI = append(keptAPI, e)
		}
	}
	m.api = keptAPI

	result.TotalDeleted = result.SystemLogsDeleted + result.AuditLogsDeleted + result.APILogsDeleted
	return result, nil
}

func (m *MemoryLogStore) Ping(context.Context) error { return nil }

func sortNewest[T any](s []T, key func(T) (time.Time, int64)) {
	sort.SliceStable(s, func(i, j int) bool {
		ti, idi := key(s[i])
		tj, idj := key(s[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}

func slicePage[T any](s []*T, skip, limit int) []*T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(s) {
		return []*T{}
	}
	endIdx := len(s)
	if limit > 0 && skip+limit < endIdx {
		endIdx = skip + limit
	}
	out := make([]*T, 0, endIdx-skip)
	for _, e := range s[skip:endIdx] {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func inRange(ts time.Time, start, end *time.Time) bool {
	if start != nil && ts.Before(*start) {
		return false
	}
	if end != nil && ts.After(*end) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func systemMatches(e *model.SystemLog, f model.SystemLogFilter) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Module != "" && !containsFold(e.Module, f.Module) {
		return false
	}
	if f.Endpoint != "" && !containsFold(e.Endpoint, f.Endpoint) {
		return false
	}
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	if f.SearchText != "" &&
		!containsFold(e.Message, f.SearchText) &&
		!containsFold(e.Module, f.SearchText) &&
		!containsFold(e.FunctionName, f.SearchText) {
		return false
	}
	return inRange(e.Timestamp, f.StartDate, f.EndDate)
}

func auditMatches(e *model.AuditLog, f model.AuditLogFilter) bool {
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.Action != "" && !containsFold(e.Action, f.Action) {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	return inRange(e.Timestamp, f.StartDate, f.EndDate)
}

func apiMatches(e *model.APILog, f model.APILogFilter) bool {
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	if f.Endpoint != "" && !containsFold(e.Endpoint, f.Endpoint) {
		return false
	}
	if f.StatusCode != nil && e.StatusCode != *f.StatusCode {
		return false
	}
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	return inRange(e.Timestamp, f.StartDate, f.EndDate)
}
