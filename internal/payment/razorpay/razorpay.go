package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("razorpay config invalid")
	ErrRequestFailed    = errors.New("razorpay request failed")
	ErrResponseInvalid  = errors.New("razorpay response invalid")
	ErrSignatureInvalid = errors.New("razorpay signature invalid")
)

const (
	defaultAPIBaseURL = "https://api.razorpay.com"
	defaultTimeout    = 10 * time.Second
	// SignatureHeader webhook 签名请求头
	SignatureHeader = "X-Razorpay-Signature"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

// Config 网关配置。
type Config struct {
	KeyID          string
	KeySecret      string
	WebhookSecret  string
	APIBaseURL     string
	TimeoutSeconds int
}

// Order 网关订单。
type Order struct {
	ID          string
	AmountMinor int64
	AmountPaid  int64
	Currency    string
	Receipt     string
	Status      string
	Raw         map[string]interface{}
}

// WebhookEvent webhook 解析结果。
type WebhookEvent struct {
	Event         string
	PaymentID     string
	OrderID       string
	AmountMinor   int64
	Currency      string
	PaymentStatus string
	ErrorReason   string
	CreatedAt     *time.Time
	Raw           map[string]interface{}
}

// Client 网关 HTTP 客户端。
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建网关客户端。
func NewClient(cfg Config) *Client {
	cfg.normalize()
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.KeyID) == "" {
		return fmt.Errorf("%w: key_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return fmt.Errorf("%w: key_secret is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIBaseURL) != "" {
		if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
			return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
		}
	}
	return nil
}

// CreateOrder 创建网关订单，金额为最小货币单位。
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	if amountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	payload := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  strings.TrimSpace(receipt),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
	}
	respBody, statusCode, err := c.do(ctx, http.MethodPost, "/v1/orders", body)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create order status %d", ErrResponseInvalid, statusCode)
	}
	return decodeOrder(respBody)
}

// FetchOrder 查询网关订单。
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrConfigInvalid)
	}
	respBody, statusCode, err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: fetch order status %d", ErrResponseInvalid, statusCode)
	}
	return decodeOrder(respBody)
}

// VerifyPaymentSignature 校验客户端回传的支付签名：HMAC-SHA256(order_id|payment_id)。
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(c.cfg.KeySecret, orderID, paymentID, signature)
}

// VerifyWebhookSignature 校验 webhook 原始请求体签名。
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	return VerifyWebhookSignature(c.cfg.WebhookSecret, body, signature)
}

// VerifyPaymentSignature 使用给定密钥校验支付签名（常量时间比较）。
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	secret = strings.TrimSpace(secret)
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || signature == "" || strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" {
		return false
	}
	expected := ComputeSignature(secret, []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature 使用 webhook 密钥校验签名。
func VerifyWebhookSignature(secret string, body []byte, signature string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return fmt.Errorf("%w: %s is required", ErrSignatureInvalid, SignatureHeader)
	}
	expected := ComputeSignature(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

// ComputeSignature 计算十六进制 HMAC-SHA256。
func ComputeSignature(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseWebhookEvent 解析 webhook 事件体（签名需先校验）。
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	event := &WebhookEvent{
		Event: strings.TrimSpace(readString(raw, "event")),
		Raw:   raw,
	}
	if event.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}
	if created := readInt64(raw, "created_at"); created > 0 {
		createdAt := time.Unix(created, 0)
		event.CreatedAt = &createdAt
	}

	payload := readMap(raw, "payload")
	payment := readMap(readMap(payload, "payment"), "entity")
	order := readMap(readMap(payload, "order"), "entity")

	if payment != nil {
		event.PaymentID = readString(payment, "id")
		event.OrderID = readString(payment, "order_id")
		event.AmountMinor = readInt64(payment, "amount")
		event.Currency = strings.ToUpper(readString(payment, "currency"))
		event.PaymentStatus = readString(payment, "status")
		event.ErrorReason = readString(payment, "error_description")
	}
	if order != nil {
		if event.OrderID == "" {
			event.OrderID = readString(order, "id")
		}
		if event.AmountMinor == 0 {
			event.AmountMinor = readInt64(order, "amount_paid")
		}
		if event.Currency == "" {
			event.Currency = strings.ToUpper(readString(order, "currency"))
		}
	}
	return event, nil
}

// ToMinorAmount 金额转换为最小货币单位。
func ToMinorAmount(amount decimal.Decimal, currency string) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	minor := amount.Shift(int32(currencyScale(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

// FromMinorAmount 最小货币单位转换为金额。
func FromMinorAmount(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(int32(-currencyScale(currency)))
}

func currencyScale(currency string) int {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}

func (c *Config) normalize() {
	c.KeyID = strings.TrimSpace(c.KeyID)
	c.KeySecret = strings.TrimSpace(c.KeySecret)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return respBody, resp.StatusCode, nil
}

func decodeOrder(body []byte) (*Order, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:          readString(raw, "id"),
		AmountMinor: readInt64(raw, "amount"),
		AmountPaid:  readInt64(raw, "amount_paid"),
		Currency:    strings.ToUpper(readString(raw, "currency")),
		Receipt:     readString(raw, "receipt"),
		Status:      readString(raw, "status"),
		Raw:         raw,
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrResponseInvalid)
	}
	return order, nil
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	case float64:
		return int64(typed)
	}
	return 0
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	mapped, ok := raw[key].(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}
