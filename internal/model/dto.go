package model

// Pagination bounds for list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// TotalPages computes ceil(total/size) for the list responses.
func TotalPages(total int64, size int) int64 {
	if size <= 0 {
		return 0
	}
	return (total + int64(size) - 1) / int64(size)
}

// SystemLogCreateRequest is the admin-surface create payload.
type SystemLogCreateRequest struct {
	Level        LogLevel       `json:"level" binding:"required"`
	Category     LogCategory    `json:"category" binding:"required"`
	Message      string         `json:"message" binding:"required"`
	Module       string         `json:"module,omitempty"`
	FunctionName string         `json:"function_name,omitempty"`
	LineNumber   int            `json:"line_number,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	UserID       *int64         `json:"user_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Endpoint     string         `json:"endpoint,omitempty"`
	Method       string         `json:"method,omitempty"`
	ExtraData    map[string]any `json:"extra_data,omitempty"`
	StackTrace   string         `json:"stack_trace,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
}

type AuditLogCreateRequest struct {
	UserID       int64          `json:"user_id" binding:"required"`
	Action       string         `json:"action" binding:"required"`
	ResourceType string         `json:"resource_type" binding:"required"`
	ResourceID   string         `json:"resource_id,omitempty"`
	OldValues    map[string]any `json:"old_values,omitempty"`
	NewValues    map[string]any `json:"new_values,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

type APILogCreateRequest struct {
	RequestID      string            `json:"request_id" binding:"required"`
	Method         string            `json:"method" binding:"required"`
	Endpoint       string            `json:"endpoint" binding:"required"`
	StatusCode     int               `json:"status_code" binding:"required,min=100,max=599"`
	ResponseTimeMs int64             `json:"response_time_ms" binding:"min=0"`
	UserID         *int64            `json:"user_id,omitempty"`
	IPAddress      string            `json:"ip_address,omitempty"`
	UserAgent      string            `json:"user_agent,omitempty"`
	RequestSize    *int64            `json:"request_size,omitempty"`
	ResponseSize   *int64            `json:"response_size,omitempty"`
	QueryParams    map[string]any    `json:"query_params,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	StackTrace     string            `json:"stack_trace,omitempty"`
}

// SystemLogListResponse and friends wrap paginated listings.
type SystemLogListResponse struct {
	Logs       []*SystemLog `json:"logs"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalPages int64        `json:"total_pages"`
}

type AuditLogListResponse struct {
	Logs       []*AuditLog `json:"logs"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	TotalPages int64       `json:"total_pages"`
}

type APILogListResponse struct {
	Logs       []*APILog `json:"logs"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalPages int64     `json:"total_pages"`
}

// RegisterRequest creates a CRM account. RoleID is honored only on the
// admin-only registration route.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	RoleID   int    `json:"role_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	TeamID   *int64  `json:"team_id,omitempty"`
}
