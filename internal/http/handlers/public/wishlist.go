package public

import (
	"net/http"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// WishlistItemRequest 收藏请求
type WishlistItemRequest struct {
	FishID uint `json:"fishId"`
}

// GetWishlist 收藏列表
func (h *Handler) GetWishlist(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	items, err := h.WishlistService.List(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// AddWishlistItem 收藏商品
func (h *Handler) AddWishlistItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req WishlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	item, err := h.WishlistService.Add(c.Request.Context(), uid, req.FishID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// RemoveWishlistItem 取消收藏，路径参数为商品 ID
func (h *Handler) RemoveWishlistItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}
	if err := h.WishlistService.Remove(c.Request.Context(), uid, listingID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"fishId": listingID})
}
