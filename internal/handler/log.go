package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/pkg/logger"
	"github.com/leadgate/leadgate/internal/service"
)

// defaultCleanupDays applies when a cleanup request names no retention window.
const defaultCleanupDays = 30

// LogHandler is the admin surface over the log subsystem. Audit and API
// records deliberately expose no update or delete route.
type LogHandler struct {
	svc      *service.LogService
	stream   *service.StreamHub
	upgrader websocket.Upgrader
}

func NewLogHandler(svc *service.LogService, stream *service.StreamHub) *LogHandler {
	return &LogHandler{
		svc:    svc,
		stream: stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *LogHandler) CreateSystemLog(c *gin.Context) {
	var req model.SystemLogCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entry, err := h.svc.CreateSystemLog(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *LogHandler) CreateSystemLogs(c *gin.Context) {
	var reqs []model.SystemLogCreateRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	records, err := h.svc.CreateSystemLogs(c.Request.Context(), reqs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"logs": records, "count": len(records)})
}

func (h *LogHandler) CreateAuditLog(c *gin.Context) {
	var req model.AuditLogCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entry, err := h.svc.CreateAuditLog(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *LogHandler) CreateAPILog(c *gin.Context) {
	var req model.APILogCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entry, err := h.svc.CreateAPILog(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *LogHandler) GetSystemLog(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid log id"))
		return
	}
	entry, svcErr := h.svc.GetSystemLog(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LogHandler) GetAuditLog(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid log id"))
		return
	}
	entry, svcErr := h.svc.GetAuditLog(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LogHandler) GetAPILog(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid log id"))
		return
	}
	entry, svcErr := h.svc.GetAPILog(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LogHandler) ListSystemLogs(c *gin.Context) {
	filter := model.SystemLogFilter{
		Level:      model.LogLevel(c.Query("level")),
		Category:   model.LogCategory(c.Query("category")),
		UserID:     int64Query(c, "user_id"),
		Module:     c.Query("module"),
		Endpoint:   c.Query("endpoint"),
		SearchText: c.Query("search"),
	}
	if filter.Level != "" && !filter.Level.Valid() {
		c.Error(apperrors.NewInvalidRequest("invalid log level"))
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		c.Error(apperrors.NewInvalidRequest("invalid log category"))
		return
	}
	var ok bool
	if filter.StartDate, ok = timeQuery(c, "start_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid start_date"))
		return
	}
	if filter.EndDate, ok = timeQuery(c, "end_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid end_date"))
		return
	}

	page, size := pageQuery(c)
	resp, err := h.svc.ListSystemLogs(c.Request.Context(), filter, page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LogHandler) ListAuditLogs(c *gin.Context) {
	filter := model.AuditLogFilter{
		UserID:       int64Query(c, "user_id"),
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
	}
	var ok bool
	if filter.StartDate, ok = timeQuery(c, "start_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid start_date"))
		return
	}
	if filter.EndDate, ok = timeQuery(c, "end_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid end_date"))
		return
	}

	page, size := pageQuery(c)
	resp, err := h.svc.ListAuditLogs(c.Request.Context(), filter, page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LogHandler) ListAPILogs(c *gin.Context) {
	filter := model.APILogFilter{
		Endpoint:   c.Query("endpoint"),
		Method:     c.Query("method"),
		StatusCode: intQuery(c, "status_code"),
		UserID:     int64Query(c, "user_id"),
	}
	var ok bool
	if filter.StartDate, ok = timeQuery(c, "start_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid start_date"))
		return
	}
	if filter.EndDate, ok = timeQuery(c, "end_date"); !ok {
		c.Error(apperrors.NewInvalidRequest("invalid end_date"))
		return
	}

	page, size := pageQuery(c)
	resp, err := h.svc.ListAPILogs(c.Request.Context(), filter, page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LogHandler) UpdateSystemLog(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid log id"))
		return
	}
	var upd model.SystemLogUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	entry, svcErr := h.svc.UpdateSystemLog(c.Request.Context(), id, upd)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LogHandler) DeleteSystemLog(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid log id"))
		return
	}
	entry, svcErr := h.svc.DeleteSystemLog(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LogHandler) Statistics(c *gin.Context) {
	start, ok := timeQuery(c, "start_date")
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid start_date"))
		return
	}
	end, ok := timeQuery(c, "end_date")
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid end_date"))
		return
	}
	stats, err := h.svc.Statistics(c.Request.Context(), start, end)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *LogHandler) Analytics(c *gin.Context) {
	start, ok := timeQuery(c, "start_date")
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid start_date"))
		return
	}
	end, ok := timeQuery(c, "end_date")
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid end_date"))
		return
	}
	buckets, err := h.svc.Analytics(c.Request.Context(), start, end, model.GroupBy(c.Query("group_by")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": buckets})
}

func (h *LogHandler) Cleanup(c *gin.Context) {
	days := defaultCleanupDays
	if raw := c.Query("days_to_keep"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid days_to_keep"))
			return
		}
		days = parsed
	}
	result, err := h.svc.Cleanup(c.Request.Context(), days)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LogHandler) Health(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stream upgrades to a websocket and tails freshly written system events
// until the client hangs up.
func (h *LogHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	events, cancel := h.stream.Subscribe()
	defer cancel()

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				logger.Debug("log stream write failed", "error", err.Error())
				return
			}
		case <-done:
			return
		}
	}
}
