package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/service"
)

type LineHandler struct {
	svc *service.LineService
}

func NewLineHandler(svc *service.LineService) *LineHandler {
	return &LineHandler{svc: svc}
}

func actorID(c *gin.Context) *int64 {
	if user := middleware.CurrentUser(c); user != nil {
		return &user.ID
	}
	return nil
}

func (h *LineHandler) CreateMessage(c *gin.Context) {
	var req service.LineMessageCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	msg, err := h.svc.CreateMessage(c.Request.Context(), req, actorID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *LineHandler) GetMessage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid message id"))
		return
	}
	msg, svcErr := h.svc.GetMessage(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *LineHandler) UpdateMessage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid message id"))
		return
	}
	var req service.LineMessageUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	msg, svcErr := h.svc.UpdateMessage(c.Request.Context(), id, req)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *LineHandler) DeleteMessage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid message id"))
		return
	}
	msg, svcErr := h.svc.DeleteMessage(c.Request.Context(), id, actorID(c))
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *LineHandler) ListMessages(c *gin.Context) {
	page, size := pageQuery(c)
	messages, err := h.svc.ListMessages(c.Request.Context(), page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "page": page, "size": size})
}

func (h *LineHandler) UpsertUser(c *gin.Context) {
	var req service.LineUserUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	user, err := h.svc.UpsertUser(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *LineHandler) GetUser(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("line_user_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *LineHandler) MarkTyping(c *gin.Context) {
	user, err := h.svc.MarkTyping(c.Request.Context(), c.Param("line_user_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *LineHandler) DeleteUser(c *gin.Context) {
	user, err := h.svc.DeleteUser(c.Request.Context(), c.Param("line_user_id"), actorID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *LineHandler) ListUsers(c *gin.Context) {
	page, size := pageQuery(c)
	users, err := h.svc.ListUsers(c.Request.Context(), page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "page": page, "size": size})
}
