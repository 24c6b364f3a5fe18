package model

import (
	"fmt"
	"math"
	"time"
)

// LogLevel is the severity of a system log record, ordered DEBUG < INFO <
// WARNING < ERROR < CRITICAL.
type LogLevel string

const (
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// IsError reports whether the level counts toward the error rate.
func (l LogLevel) IsError() bool {
	return l == LevelError || l == LevelCritical
}

// LogCategory classifies the origin of a system log record.
type LogCategory string

const (
	CategoryAPI            LogCategory = "API"
	CategoryDatabase       LogCategory = "DATABASE"
	CategoryAuthentication LogCategory = "AUTHENTICATION"
	CategoryBusinessLogic  LogCategory = "BUSINESS_LOGIC"
	CategorySystem         LogCategory = "SYSTEM"
	CategorySecurity       LogCategory = "SECURITY"
	CategoryUserAction     LogCategory = "USER_ACTION"
	CategoryChatMessage    LogCategory = "CHAT_MESSAGE"
	CategoryChatEvent      LogCategory = "CHAT_EVENT"
	CategoryChatModeration LogCategory = "CHAT_MODERATION"
)

func (c LogCategory) Valid() bool {
	switch c {
	case CategoryAPI, CategoryDatabase, CategoryAuthentication, CategoryBusinessLogic,
		CategorySystem, CategorySecurity, CategoryUserAction, CategoryChatMessage,
		CategoryChatEvent, CategoryChatModeration:
		return true
	}
	return false
}

// MaxMessageLength bounds the message field of a system log record.
const MaxMessageLength = 5000

// SystemLog is a discrete diagnostic event emitted by any part of the system.
// Timestamp is assigned by the store at insert and never changes afterwards.
type SystemLog struct {
	ID           int64          `json:"id" db:"id"`
	Level        LogLevel       `json:"level" db:"level"`
	Category     LogCategory    `json:"category" db:"category"`
	Message      string         `json:"message" db:"message"`
	Module       string         `json:"module,omitempty" db:"module"`
	FunctionName string         `json:"function_name,omitempty" db:"function_name"`
	LineNumber   int            `json:"line_number,omitempty" db:"line_number"`
	RequestID    string         `json:"request_id,omitempty" db:"request_id"`
	UserID       *int64         `json:"user_id,omitempty" db:"user_id"`
	IPAddress    string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    string         `json:"user_agent,omitempty" db:"user_agent"`
	Endpoint     string         `json:"endpoint,omitempty" db:"endpoint"`
	Method       string         `json:"method,omitempty" db:"method"`
	ExtraData    map[string]any `json:"extra_data,omitempty" db:"-"`
	StackTrace   string         `json:"stack_trace,omitempty" db:"stack_trace"`
	DurationMs   *int64         `json:"duration_ms,omitempty" db:"duration_ms"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp"`
}

// AuditLog records a state-changing action attributable to a user. Audit
// records are immutable: nothing in the public surface updates or deletes one.
type AuditLog struct {
	ID           int64          `json:"id" db:"id"`
	UserID       int64          `json:"user_id" db:"user_id"`
	Action       string         `json:"action" db:"action"`
	ResourceType string         `json:"resource_type" db:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty" db:"resource_id"`
	OldValues    map[string]any `json:"old_values,omitempty" db:"-"`
	NewValues    map[string]any `json:"new_values,omitempty" db:"-"`
	IPAddress    string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    string         `json:"user_agent,omitempty" db:"user_agent"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp"`
}

// APILog traces one inbound request/response cycle. Immutable once created.
type APILog struct {
	ID             int64             `json:"id" db:"id"`
	RequestID      string            `json:"request_id" db:"request_id"`
	Method         string            `json:"method" db:"method"`
	Endpoint       string            `json:"endpoint" db:"endpoint"`
	StatusCode     int               `json:"status_code" db:"status_code"`
	ResponseTimeMs int64             `json:"response_time_ms" db:"response_time_ms"`
	UserID         *int64            `json:"user_id,omitempty" db:"user_id"`
	IPAddress      string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string            `json:"user_agent,omitempty" db:"user_agent"`
	RequestSize    *int64            `json:"request_size,omitempty" db:"request_size"`
	ResponseSize   *int64            `json:"response_size,omitempty" db:"response_size"`
	QueryParams    map[string]any    `json:"query_params,omitempty" db:"-"`
	RequestHeaders map[string]string `json:"request_headers,omitempty" db:"-"`
	ErrorMessage   string            `json:"error_message,omitempty" db:"error_message"`
	StackTrace     string            `json:"stack_trace,omitempty" db:"stack_trace"`
	Timestamp      time.Time         `json:"timestamp" db:"timestamp"`
}

// SystemLogFilter narrows a system log listing. Zero values mean "no
// restriction"; string filters are case-insensitive substring matches and
// SearchText is an OR over message, module and function name.
type SystemLogFilter struct {
	Level      LogLevel
	Category   LogCategory
	UserID     *int64
	StartDate  *time.Time
	EndDate    *time.Time
	Module     string
	Endpoint   string
	SearchText string
}

type AuditLogFilter struct {
	UserID       *int64
	Action       string // substring
	ResourceType string // exact
	StartDate    *time.Time
	EndDate      *time.Time
}

type APILogFilter struct {
	Endpoint   string // substring
	Method     string // exact
	StatusCode *int
	UserID     *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// SystemLogUpdate is the only mutation allowed on a stored system log.
// Nil fields are left untouched.
type SystemLogUpdate struct {
	Level     *LogLevel       `json:"level,omitempty"`
	Category  *LogCategory    `json:"category,omitempty"`
	Message   *string         `json:"message,omitempty"`
	ExtraData *map[string]any `json:"extra_data,omitempty"`
}

// LogStats is the global statistics rollup over system and API records.
type LogStats struct {
	TotalLogs           int64    `json:"total_logs"`
	ErrorCount          int64    `json:"error_count"`
	WarningCount        int64    `json:"warning_count"`
	InfoCount           int64    `json:"info_count"`
	DebugCount          int64    `json:"debug_count"`
	CriticalCount       int64    `json:"critical_count"`
	AvgResponseTimeMs   *float64 `json:"avg_response_time_ms"`
	TotalAPICalls       int64    `json:"total_api_calls"`
	ErrorRatePercentage float64  `json:"error_rate_percentage"`
}

// ErrorRate computes (errors+criticals)/total*100 rounded to two decimals,
// defined as 0 for an empty set.
func ErrorRate(errorCount, criticalCount, total int64) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(errorCount+criticalCount) / float64(total) * 100
	return math.Round(rate*100) / 100
}

// GroupBy is the time-bucket granularity for analytics rollups.
type GroupBy string

const (
	GroupByHour  GroupBy = "hour"
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

func (g GroupBy) Valid() bool {
	switch g {
	case GroupByHour, GroupByDay, GroupByWeek, GroupByMonth:
		return true
	}
	return false
}

// Truncate floors t to the start of the bucket containing it. Weeks start on
// Monday, matching Postgres date_trunc('week', ...).
func (g GroupBy) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GroupByHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case GroupByDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GroupByWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case GroupByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Label renders the human-readable period name for a bucket start.
func (g GroupBy) Label(bucket time.Time) string {
	switch g {
	case GroupByHour:
		return bucket.Format("2006-01-02 15:00:00")
	case GroupByDay:
		return bucket.Format("2006-01-02")
	case GroupByWeek:
		year, week := bucket.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case GroupByMonth:
		return bucket.Format("2006-01")
	}
	return bucket.Format(time.RFC3339)
}

// LogAnalytics is one time bucket of the analytics rollup. Buckets with no
// matching records are omitted from the result, not zero-filled.
type LogAnalytics struct {
	TimePeriod string    `json:"time_period"`
	LogCount   int64     `json:"log_count"`
	ErrorCount int64     `json:"error_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// CleanupResult reports what a retention pass actually deleted.
type CleanupResult struct {
	SystemLogsDeleted int64 `json:"system_logs_deleted"`
	AuditLogsDeleted  int64 `json:"audit_logs_deleted"`
	APILogsDeleted    int64 `json:"api_logs_deleted"`
	TotalDeleted      int64 `json:"total_deleted"`
}
