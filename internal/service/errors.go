package service

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误分类，由 HTTP 层映射为状态码
type ErrorKind string

const (
	KindValidation                ErrorKind = "validation"
	KindNotFound                  ErrorKind = "not_found"
	KindItemUnavailable           ErrorKind = "item_unavailable"
	KindInsufficientStock         ErrorKind = "insufficient_stock"
	KindPaymentVerificationFailed ErrorKind = "payment_verification_failed"
	KindInvalidPaymentReference   ErrorKind = "invalid_payment_reference"
	KindPaymentAmountMismatch     ErrorKind = "payment_amount_mismatch"
	KindEmptyCart                 ErrorKind = "empty_cart"
	KindUnauthorized              ErrorKind = "unauthorized"
	KindForbidden                 ErrorKind = "forbidden"
	KindConflict                  ErrorKind = "conflict"
	KindTransactionTimeout        ErrorKind = "transaction_timeout"
	KindInternal                  ErrorKind = "internal"
)

// Error 带分类的业务错误
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is 同分类即视为匹配，便于使用哨兵错误判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable 调用方可安全重试
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindTransactionTimeout
}

// 哨兵错误，仅用于 errors.Is 分类
var (
	ErrValidation                = &Error{Kind: KindValidation}
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrItemUnavailable           = &Error{Kind: KindItemUnavailable}
	ErrInsufficientStock         = &Error{Kind: KindInsufficientStock}
	ErrPaymentVerificationFailed = &Error{Kind: KindPaymentVerificationFailed}
	ErrInvalidPaymentReference   = &Error{Kind: KindInvalidPaymentReference}
	ErrPaymentAmountMismatch     = &Error{Kind: KindPaymentAmountMismatch}
	ErrEmptyCart                 = &Error{Kind: KindEmptyCart}
	ErrUnauthorized              = &Error{Kind: KindUnauthorized}
	ErrForbidden                 = &Error{Kind: KindForbidden}
	ErrConflict                  = &Error{Kind: KindConflict}
	ErrTransactionTimeout        = &Error{Kind: KindTransactionTimeout}
	ErrInternal                  = &Error{Kind: KindInternal}
)

// 非分类哨兵错误
var (
	ErrCaptchaRequired      = errors.New("captcha required")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha config invalid")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf 返回错误分类，非业务错误视为内部错误
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf 返回业务错误消息
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return ""
}
