package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
)

type ItemHandler struct {
	responder
	itemService *service.ItemService
}

func NewItemHandler(itemService *service.ItemService, logger *zap.Logger, devMode bool) *ItemHandler {
	return &ItemHandler{
		responder:   responder{logger: logger, devMode: devMode},
		itemService: itemService,
	}
}

// Search lists items. The caller's own listings are hidden unless
// include_own=true.
func (h *ItemHandler) Search(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	filter := domain.ItemFilter{
		Text:     strings.TrimSpace(c.Query("search")),
		Category: domain.Category(c.Query("category")),
	}
	if c.Query("include_own") != "true" {
		filter.ExcludeSeller = callerID
	}

	var err error
	if filter.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		h.respondError(c, err)
		return
	}

	items, err := h.itemService.Search(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func priceParam(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, domain.Validationf("%s must be a number", name)
	}
	return &v, nil
}

func (h *ItemHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.itemService.Categories())
}

func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.itemService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Create(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var req domain.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	item, err := h.itemService.Create(c.Request.Context(), callerID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ItemHandler) Update(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var patch domain.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.bindError(c, err)
		return
	}

	item, err := h.itemService.Update(c.Request.Context(), callerID, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.itemService.Delete(c.Request.Context(), callerID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
