package public

import (
	"net/http"
	"strconv"
	"strings"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/repository"
	"github.com/fishmart-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SellerListingRequest 卖家创建/编辑商品请求，编辑时缺省字段不变
type SellerListingRequest struct {
	CategoryID        *uint            `json:"category_id"`
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Price             *decimal.Decimal `json:"price"`
	QuantityAvailable *int             `json:"quantity_available"`
	ListingStatus     *string          `json:"listing_status"`
}

func (r SellerListingRequest) toInput() service.SellerListingInput {
	return service.SellerListingInput{
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.QuantityAvailable,
		Status:      r.ListingStatus,
	}
}

// ListSellerListings 卖家商品列表
func (h *Handler) ListSellerListings(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)

	listings, total, err := h.SellerListingService.List(c.Request.Context(), uid, repository.ListingListFilter{
		Page:       page,
		PageSize:   pageSize,
		CategoryID: uint(categoryID),
		Status:     strings.TrimSpace(c.Query("status")),
		Sort:       strings.TrimSpace(c.Query("sort")),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, listings, response.NewPagination(page, pageSize, total))
}

// CreateSellerListing 上架商品
func (h *Handler) CreateSellerListing(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req SellerListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	listing, err := h.SellerListingService.Create(c.Request.Context(), uid, req.toInput())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Created(c, "fish listing created", listing)
}

// GetSellerListing 卖家商品详情
func (h *Handler) GetSellerListing(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}
	listing, err := h.SellerListingService.Get(c.Request.Context(), uid, listingID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, listing)
}

// UpdateSellerListing 编辑商品
func (h *Handler) UpdateSellerListing(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}
	var req SellerListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	listing, err := h.SellerListingService.Update(c.Request.Context(), uid, listingID, req.toInput())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, listing)
}

// DeleteSellerListing 删除商品
func (h *Handler) DeleteSellerListing(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}
	if err := h.SellerListingService.Delete(c.Request.Context(), uid, listingID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"id": listingID})
}

func parseListingID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid fish id")
		return 0, false
	}
	return uint(id), true
}
