package public

import (
	"net/http"
	"strconv"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 加入购物车请求
type CartItemRequest struct {
	FishID   uint `json:"fishId"`
	Quantity int  `json:"quantity"`
}

// UpdateCartItemRequest 修改数量请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	view, err := h.CartService.GetCart(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// AddCartItem 加入购物车
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	view, err := h.CartService.AddItem(c.Request.Context(), service.UpsertCartItemInput{
		UserID:    uid,
		ListingID: req.FishID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// UpdateCartItem 修改购物车项数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseCartItemID(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	view, err := h.CartService.UpdateItem(c.Request.Context(), uid, itemID, req.Quantity)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// RemoveCartItem 删除购物车项
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseCartItemID(c)
	if !ok {
		return
	}
	view, err := h.CartService.RemoveItem(c.Request.Context(), uid, itemID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

func parseCartItemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid cart item id")
		return 0, false
	}
	return uint(id), true
}
