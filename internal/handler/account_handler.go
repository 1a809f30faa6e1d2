package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/middleware"
)

type AccountHandler struct {
	responder
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService, logger *zap.Logger, devMode bool) *AccountHandler {
	return &AccountHandler{
		responder:      responder{logger: logger, devMode: devMode},
		accountService: accountService,
	}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	res, err := h.accountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AccountHandler) Logout(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		h.respondError(c, domain.ErrUnauthenticated)
		return
	}
	if err := h.accountService.Logout(c.Request.Context(), identity); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accountService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Update(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var patch domain.AccountPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.bindError(c, err)
		return
	}

	account, err := h.accountService.Update(c.Request.Context(), callerID, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Delete(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.accountService.Delete(c.Request.Context(), callerID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
