package service

import (
	"context"
	"strings"
	"time"

	"github.com/fishmart-next/internal/payment/razorpay"

	"github.com/shopspring/decimal"
)

var amountTolerance = decimal.NewFromFloat(0.01)

// PaymentGateway 支付网关客户端
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*razorpay.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) error
}

// PaymentDetails 客户端回传的支付凭证
type PaymentDetails struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// GatewayOrder 网关订单金额
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Amount      decimal.Decimal
	Currency    string
}

// VerifiedPayment 已通过校验的支付
type VerifiedPayment struct {
	PaymentDetails
	PaidAmount decimal.Decimal
	Currency   string
	VerifiedAt time.Time
}

// PaymentVerifier 支付签名与金额校验
type PaymentVerifier struct {
	gateway PaymentGateway
	timeout time.Duration
}

// NewPaymentVerifier 创建支付校验器
func NewPaymentVerifier(gateway PaymentGateway, timeout time.Duration) *PaymentVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentVerifier{gateway: gateway, timeout: timeout}
}

// Verify 校验 HMAC-SHA256(order_id|payment_id) 签名
func (v *PaymentVerifier) Verify(orderID, paymentID, signature string) bool {
	if v == nil || v.gateway == nil {
		return false
	}
	return v.gateway.VerifyPaymentSignature(orderID, paymentID, signature)
}

// FetchOrder 查询网关订单金额
func (v *PaymentVerifier) FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error) {
	if v == nil || v.gateway == nil {
		return nil, wrapError(KindInvalidPaymentReference, ErrGatewayNotConfigured, "payment gateway unavailable")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	order, err := v.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, wrapError(KindInvalidPaymentReference, err, "invalid payment reference")
	}
	minor := order.AmountPaid
	if minor <= 0 {
		minor = order.AmountMinor
	}
	return &GatewayOrder{
		ID:          order.ID,
		AmountMinor: minor,
		Amount:      razorpay.FromMinorAmount(minor, order.Currency),
		Currency:    order.Currency,
	}, nil
}

// CheckAmount 校验实付金额与应付金额之差不超过 0.01
func (v *PaymentVerifier) CheckAmount(paid, expected decimal.Decimal) error {
	if paid.Sub(expected).Abs().GreaterThan(amountTolerance) {
		return newError(KindPaymentAmountMismatch, "payment amount mismatch: paid %s, expected %s",
			paid.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}

// VerifyPayment 签名校验 + 网关金额核对
func (v *PaymentVerifier) VerifyPayment(ctx context.Context, details PaymentDetails, expected decimal.Decimal) (*VerifiedPayment, error) {
	details.GatewayOrderID = strings.TrimSpace(details.GatewayOrderID)
	details.GatewayPaymentID = strings.TrimSpace(details.GatewayPaymentID)
	details.Signature = strings.TrimSpace(details.Signature)
	if details.GatewayOrderID == "" || details.GatewayPaymentID == "" || details.Signature == "" {
		return nil, newError(KindValidation, "paymentDetails.gatewayOrderId, gatewayPaymentId and signature are required")
	}
	if !v.Verify(details.GatewayOrderID, details.GatewayPaymentID, details.Signature) {
		return nil, newError(KindPaymentVerificationFailed, "payment verification failed")
	}
	order, err := v.FetchOrder(ctx, details.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if err := v.CheckAmount(order.Amount, expected); err != nil {
		return nil, err
	}
	return &VerifiedPayment{
		PaymentDetails: details,
		PaidAmount:     order.Amount,
		Currency:       order.Currency,
		VerifiedAt:     time.Now(),
	}, nil
}

// CreatePaymentIntent 在网关创建支付订单
func (v *PaymentVerifier) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	if v == nil || v.gateway == nil {
		return nil, wrapError(KindInternal, ErrGatewayNotConfigured, "payment gateway unavailable")
	}
	minor, err := razorpay.ToMinorAmount(amount, currency)
	if err != nil {
		return nil, wrapError(KindValidation, err, "invalid amount")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	order, err := v.gateway.CreateOrder(ctx, minor, currency, receipt)
	if err != nil {
		return nil, wrapError(KindInternal, err, "create payment intent failed")
	}
	return &GatewayOrder{
		ID:          order.ID,
		AmountMinor: order.AmountMinor,
		Amount:      razorpay.FromMinorAmount(order.AmountMinor, order.Currency),
		Currency:    order.Currency,
	}, nil
}
