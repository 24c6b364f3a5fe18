package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/leadgate/leadgate/internal/model"
)

// ErrLogNotFound is returned by lookups for records that do not exist.
var ErrLogNotFound = errors.New("log record not found")

// PostgresLogStore persists the three log record kinds. All timestamps are
// assigned by the database at insert time (UTC) and never updated.
type PostgresLogStore struct {
	db *sqlx.DB
}

func NewPostgresLogStore(db *sqlx.DB) *PostgresLogStore {
	store := &PostgresLogStore{db: db}
	_ = store.ensureSchema(context.Background())
	return store
}

func (s *PostgresLogStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS system_logs (
			id BIGSERIAL PRIMARY KEY,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			module TEXT NOT NULL DEFAULT '',
			function_name TEXT NOT NULL DEFAULT '',
			line_number INTEGER NOT NULL DEFAULT 0,
			request_id TEXT NOT NULL DEFAULT '',
			user_id BIGINT,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			endpoint TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			extra_data JSONB,
			stack_trace TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			old_values JSONB,
			new_values JSONB,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_logs (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			method TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			response_time_ms BIGINT NOT NULL,
			user_id BIGINT,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			request_size BIGINT,
			response_size BIGINT,
			query_params JSONB,
			request_headers JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			stack_trace TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_system_logs_timestamp ON system_logs(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_system_logs_level_category ON system_logs(level, category)`,
		`CREATE INDEX IF NOT EXISTS idx_system_logs_user ON system_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_system_logs_request ON system_logs(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_api_logs_timestamp ON api_logs(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_api_logs_request ON api_logs(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_api_logs_user ON api_logs(user_id)`,
	} {
		_, _ = s.db.ExecContext(ctx, idx)
	}
	return nil
}

func marshalMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

func marshalHeaders(m map[string]string) any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

// InsertSystemLog persists entry, filling its ID and server-assigned timestamp.
func (s *PostgresLogStore) InsertSystemLog(ctx context.Context, entry *model.SystemLog) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO system_logs (
			level, category, message, module, function_name, line_number,
			request_id, user_id, ip_address, user_agent, endpoint, method,
			extra_data, stack_trace, duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, timestamp
	`, entry.Level, entry.Category, entry.Message, entry.Module, entry.FunctionName,
		entry.LineNumber, entry.RequestID, entry.UserID, entry.IPAddress, entry.UserAgent,
		entry.Endpoint, entry.Method, marshalMap(entry.ExtraData), entry.StackTrace,
		entry.DurationMs)
	return row.Scan(&entry.ID, &entry.Timestamp)
}

func (s *PostgresLogStore) InsertAuditLog(ctx context.Context, entry *model.AuditLog) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO audit_logs (
			user_id, action, resource_type, resource_id,
			old_values, new_values, ip_address, user_agent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, timestamp
	`, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		marshalMap(entry.OldValues), marshalMap(entry.NewValues),
		entry.IPAddress, entry.UserAgent)
	return row.Scan(&entry.ID, &entry.Timestamp)
}

func (s *PostgresLogStore) InsertAPILog(ctx context.Context, entry *model.APILog) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO api_logs (
			request_id, method, endpoint, status_code, response_time_ms,
			user_id, ip_address, user_agent, request_size, response_size,
			query_params, request_headers, error_message, stack_trace
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, timestamp
	`, entry.RequestID, entry.Method, entry.Endpoint, entry.StatusCode, entry.ResponseTimeMs,
		entry.UserID, entry.IPAddress, entry.UserAgent, entry.RequestSize, entry.ResponseSize,
		marshalMap(entry.QueryParams), marshalHeaders(entry.RequestHeaders),
		entry.ErrorMessage, entry.StackTrace)
	return row.Scan(&entry.ID, &entry.Timestamp)
}

const systemLogColumns = `id, level, category, message, module, function_name, line_number,
	request_id, user_id, ip_address, user_agent, endpoint, method,
	extra_data, stack_trace, duration_ms, timestamp`

func scanSystemLog(row sqlx.ColScanner) (*model.SystemLog, error) {
	var entry model.SystemLog
	var extraJSON []byte
	if err := row.Scan(
		&entry.ID, &entry.Level, &entry.Category, &entry.Message,
		&entry.Module, &entry.FunctionName, &entry.LineNumber,
		&entry.RequestID, &entry.UserID, &entry.IPAddress, &entry.UserAgent,
		&entry.Endpoint, &entry.Method, &extraJSON, &entry.StackTrace,
		&entry.DurationMs, &entry.Timestamp,
	); err != nil {
		return nil, err
	}
	if len(extraJSON) > 0 {
		_ = json.Unmarshal(extraJSON, &entry.ExtraData)
	}
	return &entry, nil
}

func (s *PostgresLogStore) GetSystemLog(ctx context.Context, id int64) (*model.SystemLog, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT `+systemLogColumns+` FROM system_logs WHERE id = $1`, id)
	entry, err := scanSystemLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	return entry, err
}

// whereBuilder accumulates AND-composed predicates with $n placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	placeholders := make([]any, len(args))
	for i, arg := range args {
		w.args = append(w.args, arg)
		placeholders[i] = len(w.args)
	}
	w.clauses = append(w.clauses, fmt.Sprintf(clause, placeholders...))
}

func (w *whereBuilder) clause() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func contains(v string) string {
	return "%" + v + "%"
}

func systemLogWhere(f model.SystemLogFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Level != "" {
		w.add("level = $%d", string(f.Level))
	}
	if f.Category != "" {
		w.add("category = $%d", string(f.Category))
	}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.StartDate != nil {
		w.add("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("timestamp <= $%d", *f.EndDate)
	}
	if f.Module != "" {
		w.add("module ILIKE $%d", contains(f.Module))
	}
	if f.Endpoint != "" {
		w.add("endpoint ILIKE $%d", contains(f.Endpoint))
	}
	if f.SearchText != "" {
		term := contains(f.SearchText)
		w.add("(message ILIKE $%d OR module ILIKE $%d OR function_name ILIKE $%d)",
			term, term, term)
	}
	return w
}

// ListSystemLogs returns one page ordered by timestamp descending plus the
// total match count with skip/limit ignored.
func (s *PostgresLogStore) ListSystemLogs(ctx context.Context, filter model.SystemLogFilter, skip, limit int) ([]*model.SystemLog, int64, error) {
	w := systemLogWhere(filter)

	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM system_logs`+w.clause(), w.args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM system_logs%s ORDER BY timestamp DESC OFFSET $%d LIMIT $%d`,
		systemLogColumns, w.clause(), len(w.args)+1, len(w.args)+2)
	args := append(w.args, skip, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*model.SystemLog, 0, limit)
	for rows.Next() {
		entry, err := scanSystemLog(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, entry)
	}
	return records, total, rows.Err()
}

// UpdateSystemLog applies the correction fields that are set and returns the
// updated record. Only level, category, message and extra_data may change.
func (s *PostgresLogStore) UpdateSystemLog(ctx context.Context, id int64, upd model.SystemLogUpdate) (*model.SystemLog, error) {
	sets := []string{}
	args := []any{}
	if upd.Level != nil {
		args = append(args, string(*upd.Level))
		sets = append(sets, fmt.Sprintf("level = $%d", len(args)))
	}
	if upd.Category != nil {
		args = append(args, string(*upd.Category))
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}
	if upd.Message != nil {
		args = append(args, *upd.Message)
		sets = append(sets, fmt.Sprintf("message = $%d", len(args)))
	}
	if upd.ExtraData != nil {
		args = append(args, marshalMap(*upd.ExtraData))
		sets = append(sets, fmt.Sprintf("extra_data = $%d", len(args)))
	}
	if len(sets) == 0 {
		return s.GetSystemLog(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE system_logs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), systemLogColumns)
	entry, err := scanSystemLog(s.db.QueryRowxContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	return entry, err
}

// DeleteSystemLog removes one record by ID and returns it.
func (s *PostgresLogStore) DeleteSystemLog(ctx context.Context, id int64) (*model.SystemLog, error) {
	row := s.db.QueryRowxContext(ctx,
		`DELETE FROM system_logs WHERE id = $1 RETURNING `+systemLogColumns, id)
	entry, err := scanSystemLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	return entry, err
}

const auditLogColumns = `id, user_id, action, resource_type, resource_id,
	old_values, new_values, ip_address, user_agent, timestamp`

func scanAuditLog(row sqlx.ColScanner) (*model.AuditLog, error) {
	var entry model.AuditLog
	var oldJSON, newJSON []byte
	if err := row.Scan(
		&entry.ID, &entry.UserID, &entry.Action, &entry.ResourceType, &entry.ResourceID,
		&oldJSON, &newJSON, &entry.IPAddress, &entry.UserAgent, &entry.Timestamp,
	); err != nil {
		return nil, err
	}
	if len(oldJSON) > 0 {
		_ = json.Unmarshal(oldJSON, &entry.OldValues)
	}
	if len(newJSON) > 0 {
		_ = json.Unmarshal(newJSON, &entry.NewValues)
	}
	return &entry, nil
}

func (s *PostgresLogStore) GetAuditLog(ctx context.Context, id int64) (*model.AuditLog, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT `+auditLogColumns+` FROM audit_logs WHERE id = $1`, id)
	entry, err := scanAuditLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	return entry, err
}

func auditLogWhere(f model.AuditLogFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.Action != "" {
		w.add("action ILIKE $%d", contains(f.Action))
	}
	if f.ResourceType != "" {
		w.add("resource_type = $%d", f.ResourceType)
	}
	if f.StartDate != nil {
		w.add("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("timestamp <= $%d", *f.EndDate)
	}
	return w
}

func (s *PostgresLogStore) ListAuditLogs(ctx context.Context, filter model.AuditLogFilter, skip, limit int) ([]*model.AuditLog, int64, error) {
	w := auditLogWhere(filter)

	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM audit_logs`+w.clause(), w.args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY timestamp DESC OFFSET $%d LIMIT $%d`,
		auditLogColumns, w.clause(), len(w.args)+1, len(w.args)+2)
	args := append(w.args, skip, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*model.AuditLog, 0, limit)
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, entry)
	}
	return records, total, rows.Err()
}

const apiLogColumns = `id, request_id, method, endpoint, status_code, response_time_ms,
	user_id, ip_address, user_agent, request_size, response_size,
	query_params, request_headers, error_message, stack_trace, timestamp`

func scanAPILog(row sqlx.ColScanner) (*model.APILog, error) {
	var entry model.APILog
	var paramsJSON, headersJSON []byte
	if err := row.Scan(
		&entry.ID, &entry.RequestID, &entry.Method, &entry.Endpoint,
		&entry.StatusCode, &entry.ResponseTimeMs, &entry.UserID,
		&entry.IPAddress, &entry.UserAgent, &entry.RequestSize, &entry.ResponseSize,
		&paramsJSON, &headersJSON, &entry.ErrorMessage, &entry.StackTrace,
		&entry.Timestamp,
	); err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		_ = json.Unmarshal(paramsJSON, &entry.QueryParams)
	}
	if len(headersJSON) > 0 {
		_ = json.Unmarshal(headersJSON, &entry.RequestHeaders)
	}
	return &entry, nil
}

func (s *PostgresLogStore) GetAPILog(ctx context.Context, id int64) (*model.APILog, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT `+apiLogColumns+` FROM api_logs WHERE id = $1`, id)
	entry, err := scanAPILog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	return entry, err
}

func apiLogWhere(f model.APILogFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Endpoint != "" {
		w.add("endpoint ILIKE $%d", contains(f.Endpoint))
	}
	if f.Method != "" {
		w.add("method = $%d", f.Method)
	}
	if f.StatusCode != nil {
		w.add("status_code = $%d", *f.StatusCode)
	}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.StartDate != nil {
		w.add("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("timestamp <= $%d", *f.EndDate)
	}
	return w
}

func (s *PostgresLogStore) ListAPILogs(ctx context.Context, filter model.APILogFilter, skip, limit int) ([]*model.APILog, int64, error) {
	w := apiLogWhere(filter)

	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM api_logs`+w.clause(), w.args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM api_logs%s ORDER BY timestamp DESC OFFSET $%d LIMIT $%d`,
		apiLogColumns, w.clause(), len(w.args)+1, len(w.args)+2)
	args := append(w.args, skip, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*model.APILog, 0, limit)
	for rows.Next() {
		entry, err := scanAPILog(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, entry)
	}
	return records, total, rows.Err()
}

// Statistics computes the global rollup. System counts honor the given range
// as-is; the API response-time average defaults its start to now-30d when the
// caller gives no range, matching the documented statistics contract.
func (s *PostgresLogStore) Statistics(ctx context.Context, start, end *time.Time) (*model.LogStats, error) {
	w := &whereBuilder{}
	if start != nil {
		w.add("timestamp >= $%d", *start)
	}
	if end != nil {
		w.add("timestamp <= $%d", *end)
	}

	var counts struct {
		Total    int64 `db:"total"`
		Debug    int64 `db:"debug_count"`
		Info     int64 `db:"info_count"`
		Warning  int64 `db:"warning_count"`
		Error    int64 `db:"error_count"`
		Critical int64 `db:"critical_count"`
	}
	query := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE level = 'DEBUG') AS debug_count,
		COUNT(*) FILTER (WHERE level = 'INFO') AS info_count,
		COUNT(*) FILTER (WHERE level = 'WARNING') AS warning_count,
		COUNT(*) FILTER (WHERE level = 'ERROR') AS error_count,
		COUNT(*) FILTER (WHERE level = 'CRITICAL') AS critical_count
		FROM system_logs` + w.clause()
	if err := s.db.GetContext(ctx, &counts, query, w.args...); err != nil {
		return nil, err
	}

	var totalAPICalls int64
	if err := s.db.GetContext(ctx, &totalAPICalls,
		`SELECT COUNT(*) FROM api_logs`+w.clause(), w.args...); err != nil {
		return nil, err
	}

	avgStart := time.Now().UTC().AddDate(0, 0, -30)
	if start != nil {
		avgStart = *start
	}
	avgWhere := &whereBuilder{}
	avgWhere.add("timestamp >= $%d", avgStart)
	if end != nil {
		avgWhere.add("timestamp <= $%d", *end)
	}
	var avg sql.NullFloat64
	if err := s.db.GetContext(ctx, &avg,
		`SELECT AVG(response_time_ms) FROM api_logs`+avgWhere.clause(), avgWhere.args...); err != nil {
		return nil, err
	}

	stats := &model.LogStats{
		TotalLogs:           counts.Total,
		ErrorCount:          counts.Error,
		WarningCount:        counts.Warning,
		InfoCount:           counts.Info,
		DebugCount:          counts.Debug,
		CriticalCount:       counts.Critical,
		TotalAPICalls:       totalAPICalls,
		ErrorRatePercentage: model.ErrorRate(counts.Error, counts.Critical, counts.Total),
	}
	if avg.Valid {
		stats.AvgResponseTimeMs = &avg.Float64
	}
	return stats, nil
}

// Analytics buckets system logs by date_trunc over the closed range. Buckets
// without records do not appear in the result.
func (s *PostgresLogStore) Analytics(ctx context.Context, start, end time.Time, groupBy model.GroupBy) ([]*model.LogAnalytics, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT date_trunc($1, timestamp) AS bucket,
			COUNT(*) AS log_count,
			COUNT(*) FILTER (WHERE level IN ('ERROR','CRITICAL')) AS error_count
		FROM system_logs
		WHERE timestamp >= $2 AND timestamp <= $3
		GROUP BY bucket
		ORDER BY bucket ASC
	`, string(groupBy), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.LogAnalytics, 0)
	for rows.Next() {
		var bucket time.Time
		var logCount, errorCount int64
		if err := rows.Scan(&bucket, &logCount, &errorCount); err != nil {
			return nil, err
		}
		bucket = bucket.UTC()
		results = append(results, &model.LogAnalytics{
			TimePeriod: groupBy.Label(bucket),
			LogCount:   logCount,
			ErrorCount: errorCount,
			Timestamp:  bucket,
		})
	}
	return results, rows.Err()
}

// DeleteOlderThan removes records with timestamp < cutoff from all three
// tables inside one transaction, so a retention pass either fully commits or
// leaves everything in place.
func (s *PostgresLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (*model.CleanupResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &model.CleanupResult{}
	for _, target := range []struct {
		table string
		dest  *int64
	}{
		{"system_logs", &result.SystemLogsDeleted},
		{"audit_logs", &result.AuditLogsDeleted},
		{"api_logs", &result.APILogsDeleted},
	} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, target.table), cutoff)
		if err != nil {
			return nil, err
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		*target.dest = deleted
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.TotalDeleted = result.SystemLogsDeleted + result.AuditLogsDeleted + result.APILogsDeleted
	return result, nil
}

func (s *PostgresLogStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
