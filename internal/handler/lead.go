package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/service"
)

type LeadHandler struct {
	svc *service.LeadService
}

func NewLeadHandler(svc *service.LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

func (h *LeadHandler) Create(c *gin.Context) {
	var req service.LeadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	lead, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req, service.MetaFromRequest(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid lead id"))
		return
	}
	lead, svcErr := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) List(c *gin.Context) {
	filter := model.LeadFilter{
		AssignedUserID: int64Query(c, "assigned_user_id"),
		Search:         c.Query("search"),
		Status:         c.Query("status"),
	}
	page, size := pageQuery(c)
	leads, total, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), filter, page, size)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leads":       leads,
		"total":       total,
		"page":        page,
		"size":        size,
		"total_pages": model.TotalPages(total, size),
	})
}

func (h *LeadHandler) Count(c *gin.Context) {
	filter := model.LeadFilter{
		AssignedUserID: int64Query(c, "assigned_user_id"),
		Search:         c.Query("search"),
		Status:         c.Query("status"),
	}
	total, err := h.svc.Count(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total})
}

func (h *LeadHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid lead id"))
		return
	}
	var req service.LeadUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	lead, svcErr := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), id, req, service.MetaFromRequest(c))
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid lead id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id, service.MetaFromRequest(c)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
