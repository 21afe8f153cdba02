package constants

// 订单状态常量
const (
	OrderStatusPending       = "pending"
	OrderStatusConfirmed     = "confirmed"
	OrderStatusProcessing    = "processing"
	OrderStatusShipped       = "shipped"
	OrderStatusDelivered     = "delivered"
	OrderStatusCanceled      = "cancelled"
	OrderStatusPaymentFailed = "payment_failed"
)

// QualifyingOrderStatuses 计入"老客户"判断的订单状态
var QualifyingOrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// 支付记录状态常量
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// 支付方式常量
const (
	PaymentMethodRazorpay = "razorpay"
)

// 网关 webhook 事件
const (
	WebhookEventPaymentCaptured = "payment.captured"
	WebhookEventPaymentFailed   = "payment.failed"
	WebhookEventOrderPaid       = "order.paid"
)

// 商品（鱼类）上架状态常量
const (
	ListingStatusActive   = "active"
	ListingStatusInactive = "inactive"
	ListingStatusSoldOut  = "sold_out"
	ListingStatusDeleted  = "deleted"
)

// 用户类型常量
const (
	UserTypeCustomer = "customer"
	UserTypeSeller   = "seller"
	UserTypeGuest    = "guest"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 配送常量
const (
	ShippingMethodStandard = "standard"
	DefaultCarrier         = "standard_post"
)

// 通知角色
const (
	NotifyRoleSeller   = "seller"
	NotifyRoleCustomer = "customer"
)

// 队列与任务
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskSellerMetricsUpdate = "seller:metrics_update"
	TaskOrderNotification   = "order:notification"
)

// 验证码
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"

	CaptchaSceneGuestCheckout = "guest_checkout"
)

// SalesHistoryDayLayout 销售日报日期格式
const SalesHistoryDayLayout = "2006-01-02"
