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

// OrderItemRequest 订单项请求
type OrderItemRequest struct {
	FishID   uint `json:"fishId"`
	Quantity int  `json:"quantity"`
}

// SelectedItemRequest 购物车选中项
type SelectedItemRequest struct {
	CartItemID uint `json:"cartItemId"`
	Quantity   int  `json:"quantity"`
}

// GuestInfoRequest 游客信息
type GuestInfoRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
}

// ShippingDetailsRequest 收货信息
type ShippingDetailsRequest struct {
	Address      string          `json:"address"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	Zip          string          `json:"zip"`
	Carrier      string          `json:"carrier"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

// PaymentDetailsRequest 网关支付凭证
type PaymentDetailsRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

// checkoutCommonRequest 两种下单入口共用字段
type checkoutCommonRequest struct {
	GuestInfo       *GuestInfoRequest      `json:"guestInfo"`
	ShippingDetails ShippingDetailsRequest `json:"shippingDetails"`
	PaymentDetails  PaymentDetailsRequest  `json:"paymentDetails"`
	CouponCode      string                 `json:"couponCode"`
	PointsToUse     int64                  `json:"pointsToUse"`
	OrderNotes      string                 `json:"orderNotes"`
	Captcha         CaptchaPayloadRequest  `json:"captcha"`
}

// PlaceOrderRequest 直接下单请求
type PlaceOrderRequest struct {
	checkoutCommonRequest
	OrderItems []OrderItemRequest `json:"orderItems"`
}

// CartCheckoutRequest 购物车结算请求
type CartCheckoutRequest struct {
	checkoutCommonRequest
	CartID        uint                  `json:"cartId"`
	CartItems     []OrderItemRequest    `json:"cartItems"`
	SelectedItems []SelectedItemRequest `json:"selectedItems"`
}

// CreatePaymentIntentRequest 创建支付意图请求
type CreatePaymentIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
}

// toCheckoutRequest 解析身份：已登录用户忽略 guestInfo，游客必须提供
func (r checkoutCommonRequest) toCheckoutRequest(userID uint) (service.CheckoutRequest, bool) {
	req := service.CheckoutRequest{
		Shipping: service.ShippingDetails{
			Address: strings.TrimSpace(r.ShippingDetails.Address),
			City:    strings.TrimSpace(r.ShippingDetails.City),
			State:   strings.TrimSpace(r.ShippingDetails.State),
			Zip:     strings.TrimSpace(r.ShippingDetails.Zip),
			Carrier: strings.TrimSpace(r.ShippingDetails.Carrier),
		},
		ShippingCost: r.ShippingDetails.ShippingCost,
		Payment: service.PaymentDetails{
			GatewayOrderID:   strings.TrimSpace(r.PaymentDetails.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(r.PaymentDetails.GatewayPaymentID),
			Signature:        strings.TrimSpace(r.PaymentDetails.Signature),
		},
		CouponCode:  strings.TrimSpace(r.CouponCode),
		PointsToUse: r.PointsToUse,
		Notes:       strings.TrimSpace(r.OrderNotes),
		Captcha:     r.Captcha.toServicePayload(),
	}
	if userID > 0 {
		req.Identity = service.RegisteredIdentity(userID)
		return req, true
	}
	if r.GuestInfo == nil {
		return req, false
	}
	req.Identity = service.GuestIdentity(service.GuestProfile{
		Email:    r.GuestInfo.Email,
		FullName: r.GuestInfo.FullName,
		Phone:    r.GuestInfo.PhoneNumber,
	})
	return req, true
}

func toOrderItemInputs(items []OrderItemRequest) []service.OrderItemInput {
	result := make([]service.OrderItemInput, 0, len(items))
	for _, item := range items {
		result = append(result, service.OrderItemInput{ListingID: item.FishID, Quantity: item.Quantity})
	}
	return result
}

// CreatePaymentIntent 创建网关订单，供客户端拉起支付
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	result, err := h.CheckoutService.CreatePaymentIntent(c.Request.Context(), service.PaymentIntentInput{
		Amount:   req.Amount,
		Currency: strings.TrimSpace(req.Currency),
		Receipt:  strings.TrimSpace(req.Receipt),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// PlaceOrder 直接下单（登录用户或游客）
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	checkoutReq, ok := req.toCheckoutRequest(optionalUserID(c))
	if !ok {
		response.BadRequest(c, "guestInfo is required for guest orders")
		return
	}

	result, err := h.CheckoutService.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		CheckoutRequest: checkoutReq,
		Items:           toOrderItemInputs(req.OrderItems),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("order_placed", "order_id", result.OrderID, "is_guest", result.IsGuestOrder)
	response.Created(c, "Order placed successfully", result)
}

// CartCheckout 购物车结算，按卖家拆分订单
func (h *Handler) CartCheckout(c *gin.Context) {
	var req CartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	checkoutReq, ok := req.toCheckoutRequest(optionalUserID(c))
	if !ok {
		response.BadRequest(c, "guestInfo is required for guest orders")
		return
	}
	selected := make([]service.SelectedItemInput, 0, len(req.SelectedItems))
	for _, item := range req.SelectedItems {
		selected = append(selected, service.SelectedItemInput{CartItemID: item.CartItemID, Quantity: item.Quantity})
	}

	result, err := h.CheckoutService.CartCheckout(c.Request.Context(), service.CartCheckoutInput{
		CheckoutRequest: checkoutReq,
		CartID:          req.CartID,
		CartItems:       toOrderItemInputs(req.CartItems),
		SelectedItems:   selected,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("cart_checkout_completed", "order_ids", result.OrderIDs, "sellers", result.Summary.SellersCount)
	response.Created(c, "Cart checkout completed successfully", result)
}

// ListOrders 当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	orders, total, err := h.OrderQueryService.ListOrdersByUser(c.Request.Context(), repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder 当前用户订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		response.BadRequest(c, "invalid order id")
		return
	}
	order, err := h.OrderQueryService.GetOrderByUser(c.Request.Context(), uint(orderID), uid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	response.Success(c, order)
}
