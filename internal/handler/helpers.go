package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/model"
)

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}

// timeQuery reads an optional timestamp query param. The bool is false when
// the param was present but unparseable.
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func idParam(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func pageQuery(c *gin.Context) (page, size int) {
	page = 1
	size = model.DefaultPageSize
	if raw := c.Query("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if raw := c.Query("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			size = parsed
		}
	}
	if size > model.MaxPageSize {
		size = model.MaxPageSize
	}
	return page, size
}

func int64Query(c *gin.Context, name string) *int64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &parsed
	}
	return nil
}

func intQuery(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	if parsed, err := strconv.Atoi(raw); err == nil {
		return &parsed
	}
	return nil
}
