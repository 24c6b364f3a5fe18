package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadgate/leadgate/internal/service"
)

const HeaderRequestID = "X-Request-ID"

// RequestTrace assigns each request an ID and records one API log entry when
// the response is done. Writing goes through the fail-soft writer, so a
// broken log store never turns into failing requests.
func RequestTrace(writer *service.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start).Milliseconds()

		var requestSize *int64
		if c.Request.ContentLength > 0 {
			size := c.Request.ContentLength
			requestSize = &size
		}
		var responseSize *int64
		if n := int64(c.Writer.Size()); n >= 0 {
			responseSize = &n
		}

		queryParams := map[string]any{}
		for name, values := range c.Request.URL.Query() {
			if len(values) == 1 {
				queryParams[name] = values[0]
			} else {
				queryParams[name] = values
			}
		}
		if len(queryParams) == 0 {
			queryParams = nil
		}

		var errorMessage string
		if len(c.Errors) > 0 {
			errorMessage = c.Errors.Last().Error()
		}

		writer.APICall(c.Request.Context(), service.APICall{
			RequestID:      requestID,
			Method:         c.Request.Method,
			Endpoint:       c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: elapsed,
			RequestSize:    requestSize,
			ResponseSize:   responseSize,
			QueryParams:    queryParams,
			RequestHeaders: service.HeadersFromRequest(c.Request.Header),
			ErrorMessage:   errorMessage,
		}, service.MetaFromRequest(c))
	}
}
