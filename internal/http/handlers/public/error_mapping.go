package public

import (
	"errors"
	"net/http"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	genericInternalMessage = "internal server error"
	genericTimeoutMessage  = "checkout timed out, please retry"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	status int
}

var serviceErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, status: http.StatusBadRequest},
	{target: service.ErrItemUnavailable, status: http.StatusBadRequest},
	{target: service.ErrInsufficientStock, status: http.StatusBadRequest},
	{target: service.ErrPaymentVerificationFailed, status: http.StatusBadRequest},
	{target: service.ErrInvalidPaymentReference, status: http.StatusBadRequest},
	{target: service.ErrPaymentAmountMismatch, status: http.StatusBadRequest},
	{target: service.ErrEmptyCart, status: http.StatusBadRequest},
	{target: service.ErrNotFound, status: http.StatusNotFound},
	{target: service.ErrUnauthorized, status: http.StatusUnauthorized},
	{target: service.ErrForbidden, status: http.StatusForbidden},
	{target: service.ErrConflict, status: http.StatusConflict},
	{target: service.ErrTransactionTimeout, status: http.StatusInternalServerError},
}

// statusForError 按业务错误分类返回 HTTP 状态码，未知错误为 500
func statusForError(err error) int {
	for _, rule := range serviceErrorRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondServiceError 4xx 返回业务消息；5xx 在生产模式下返回通用消息
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	status := statusForError(err)
	msg := service.MessageOf(err)
	if status >= http.StatusInternalServerError {
		switch {
		case h.debugErrors():
			msg = err.Error()
		case errors.Is(err, service.ErrTransactionTimeout):
			msg = genericTimeoutMessage
		default:
			msg = genericInternalMessage
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Retryable() {
		c.Header("Retry-After", "1")
	}
	handlershared.RespondError(c, status, msg, err)
}
