package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/service"
)

type UserHandler struct {
	svc *service.UserService
	cfg *config.Config
}

func NewUserHandler(svc *service.UserService, cfg *config.Config) *UserHandler {
	return &UserHandler{svc: svc, cfg: cfg}
}

// Register serves both the public signup route and the admin user-creation
// route; role requests only stick when the acting user is an administrator.
func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req, middleware.CurrentUser(c), service.MetaFromRequest(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	user, err := h.svc.Authenticate(c.Request.Context(), req, service.MetaFromRequest(c))
	if err != nil {
		c.Error(err)
		return
	}
	token, err := middleware.GenerateToken(h.cfg, user)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "failed to issue token", err))
		return
	}
	c.JSON(http.StatusOK, model.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid user id"))
		return
	}
	user, svcErr := h.svc.Get(c.Request.Context(), id)
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid user id"))
		return
	}
	var req model.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	user, svcErr := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), id, req, service.MetaFromRequest(c))
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid user id"))
		return
	}
	var req struct {
		RoleID int `json:"role_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	user, svcErr := h.svc.UpdateRole(c.Request.Context(), middleware.CurrentUser(c), id, req.RoleID, service.MetaFromRequest(c))
	if svcErr != nil {
		c.Error(svcErr)
		return
	}
	c.JSON(http.StatusOK, user)
}
