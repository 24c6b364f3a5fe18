package service

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/logger"
	"github.com/leadgate/leadgate/internal/pkg/metrics"
)

// maskedValue replaces header values that must never be persisted verbatim.
const maskedValue = "***MASKED***"

// safeHeaders is the allow-list of request headers a persisted API log may
// carry. Authorization is kept as a presence marker only, always masked.
var safeHeaders = map[string]bool{
	"content-type":  true,
	"accept":        true,
	"authorization": true,
}

// RequestMeta carries the request-scoped fields the writer folds into a
// record when the call site did not set them explicitly.
type RequestMeta struct {
	RequestID string
	UserID    *int64
	IPAddress string
	UserAgent string
	Endpoint  string
	Method    string
}

// MetaFromRequest derives RequestMeta from a gin context. Request ID and
// authenticated user are read from the context values the middleware sets.
func MetaFromRequest(c *gin.Context) *RequestMeta {
	if c == nil || c.Request == nil {
		return nil
	}
	meta := &RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Endpoint:  c.Request.URL.Path,
		Method:    c.Request.Method,
	}
	if id := c.GetString("request_id"); id != "" {
		meta.RequestID = id
	}
	if v, ok := c.Get("user"); ok {
		if u, ok := v.(*model.User); ok && u != nil {
			meta.UserID = &u.ID
		}
	}
	return meta
}

// SystemEvent describes one diagnostic event to record.
type SystemEvent struct {
	Level        model.LogLevel
	Category     model.LogCategory
	Message      string
	Module       string
	FunctionName string
	LineNumber   int
	RequestID    string
	UserID       *int64
	IPAddress    string
	UserAgent    string
	Endpoint     string
	Method       string
	ExtraData    map[string]any
	StackTrace   string
	DurationMs   *int64
}

// AuditEvent describes one state-changing action to record.
type AuditEvent struct {
	UserID       int64
	Action       string
	ResourceType string
	ResourceID   string
	OldValues    map[string]any
	NewValues    map[string]any
	IPAddress    string
	UserAgent    string
}

// APICall describes one completed request/response cycle to record.
type APICall struct {
	RequestID      string
	Method         string
	Endpoint       string
	StatusCode     int
	ResponseTimeMs int64
	UserID         *int64
	IPAddress      string
	UserAgent      string
	RequestSize    *int64
	ResponseSize   *int64
	QueryParams    map[string]any
	RequestHeaders map[string]string
	ErrorMessage   string
	StackTrace     string
}

// RecentPusher mirrors recent system events into a hot cache. Satisfied by
// repository.RedisRecentLogs.
type RecentPusher interface {
	Push(ctx context.Context, entry *model.SystemLog) error
}

// Writer is the fail-soft ingestion path used by instrumentation call sites
// throughout the server. A failed write is counted, reported on the process
// logger and swallowed: logging must never break the operation being logged.
// Each method returns the stored record, or nil when the write did not land.
type Writer struct {
	store  LogStore
	recent RecentPusher
	stream *StreamHub
}

// NewWriter builds a Writer over store. recent and stream may be nil.
func NewWriter(store LogStore, recent RecentPusher, stream *StreamHub) *Writer {
	return &Writer{store: store, recent: recent, stream: stream}
}

// SystemEvent records a diagnostic event. Explicit fields in ev win over
// meta; meta only fills what the call site left empty.
func (w *Writer) SystemEvent(ctx context.Context, ev SystemEvent, meta *RequestMeta) *model.SystemLog {
	if !ev.Level.Valid() || !ev.Category.Valid() {
		w.dropped(ctx, "system", nil)
		return nil
	}
	entry := &model.SystemLog{
		Level:        ev.Level,
		Category:     ev.Category,
		Message:      clampMessage(ev.Message),
		Module:       ev.Module,
		FunctionName: ev.FunctionName,
		LineNumber:   ev.LineNumber,
		RequestID:    ev.RequestID,
		UserID:       ev.UserID,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
		Endpoint:     ev.Endpoint,
		Method:       ev.Method,
		ExtraData:    ev.ExtraData,
		StackTrace:   ev.StackTrace,
		DurationMs:   ev.DurationMs,
	}
	if meta != nil {
		if entry.RequestID == "" {
			entry.RequestID = meta.RequestID
		}
		if entry.UserID == nil {
			entry.UserID = meta.UserID
		}
		if entry.IPAddress == "" {
			entry.IPAddress = meta.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
		if entry.Endpoint == "" {
			entry.Endpoint = meta.Endpoint
		}
		if entry.Method == "" {
			entry.Method = meta.Method
		}
	}
	if err := w.store.InsertSystemLog(ctx, entry); err != nil {
		w.dropped(ctx, "system", err)
		return nil
	}
	metrics.LogRecordsWritten.WithLabelValues("system").Inc()
	if w.recent != nil {
		if err := w.recent.Push(ctx, entry); err != nil {
			logger.Warn("recent log cache push failed", "error", err.Error())
		}
	}
	if w.stream != nil {
		w.stream.Publish(entry)
	}
	return entry
}

// AuditEvent records a state-changing action. The user reference is stored
// as-is: audit records outlive the users that produced them.
func (w *Writer) AuditEvent(ctx context.Context, ev AuditEvent, meta *RequestMeta) *model.AuditLog {
	entry := &model.AuditLog{
		UserID:       ev.UserID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		OldValues:    ev.OldValues,
		NewValues:    ev.NewValues,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
	}
	if meta != nil {
		if entry.IPAddress == "" {
			entry.IPAddress = meta.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
	}
	if err := w.store.InsertAuditLog(ctx, entry); err != nil {
		w.dropped(ctx, "audit", err)
		return nil
	}
	metrics.LogRecordsWritten.WithLabelValues("audit").Inc()
	return entry
}

// APICall records one request/response trace. Headers are reduced to the
// allow-list and the authorization value is masked before anything is stored.
func (w *Writer) APICall(ctx context.Context, call APICall, meta *RequestMeta) *model.APILog {
	entry := &model.APILog{
		RequestID:      call.RequestID,
		Method:         call.Method,
		Endpoint:       call.Endpoint,
		StatusCode:     call.StatusCode,
		ResponseTimeMs: call.ResponseTimeMs,
		UserID:         call.UserID,
		IPAddress:      call.IPAddress,
		UserAgent:      call.UserAgent,
		RequestSize:    call.RequestSize,
		ResponseSize:   call.ResponseSize,
		QueryParams:    call.QueryParams,
		RequestHeaders: redactHeaders(call.RequestHeaders),
		ErrorMessage:   call.ErrorMessage,
		StackTrace:     call.StackTrace,
	}
	if meta != nil {
		if entry.RequestID == "" {
			entry.RequestID = meta.RequestID
		}
		if entry.UserID == nil {
			entry.UserID = meta.UserID
		}
		if entry.IPAddress == "" {
			entry.IPAddress = meta.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
		if entry.Endpoint == "" {
			entry.Endpoint = meta.Endpoint
		}
		if entry.Method == "" {
			entry.Method = meta.Method
		}
	}
	if err := w.store.InsertAPILog(ctx, entry); err != nil {
		w.dropped(ctx, "api", err)
		return nil
	}
	metrics.LogRecordsWritten.WithLabelValues("api").Inc()
	return entry
}

func (w *Writer) dropped(ctx context.Context, kind string, err error) {
	metrics.LogWriteFailures.WithLabelValues(kind).Inc()
	if err != nil {
		logger.LogError(ctx, err, "log write dropped", "kind", kind)
	} else {
		logger.Warn("log write dropped", "kind", kind, "reason", "invalid record")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// clampMessage truncates msg to MaxMessageLength runes, never splitting a
// multi-byte character.
func clampMessage(msg string) string {
	if len(msg) <= model.MaxMessageLength {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= model.MaxMessageLength {
		return msg
	}
	return string(runes[:model.MaxMessageLength])
}

// redactHeaders keeps only allow-listed headers, lower-cased, and masks the
// authorization value.
func redactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(safeHeaders))
	for name, value := range headers {
		key := strings.ToLower(name)
		if !safeHeaders[key] {
			continue
		}
		if key == "authorization" {
			value = maskedValue
		}
		out[key] = value
	}
	return out
}

// HeadersFromRequest flattens and redacts the headers of an inbound request.
func HeadersFromRequest(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	flat := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return redactHeaders(flat)
}
