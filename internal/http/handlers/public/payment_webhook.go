package public

import (
	"io"
	"net/http"
	"strings"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/payment/razorpay"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

// PaymentWebhook 网关 webhook 回调，签名基于原始报文
func (h *Handler) PaymentWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		handlershared.RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	signature := strings.TrimSpace(c.GetHeader(razorpay.SignatureHeader))
	log.Infow("payment_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"has_signature", signature != "",
	)

	result, err := h.PaymentWebhookService.HandleWebhook(c.Request.Context(), body, signature)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	log.Infow("payment_webhook_handled", "event", result.Event, "action", result.Action, "updated", result.Updated)
	response.Success(c, result)
}
