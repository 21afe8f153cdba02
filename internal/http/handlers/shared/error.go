package shared

import (
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, status int, msg string, err error) {
	appErr := response.WrapError(status, msg, err)
	if err != nil {
		log := RequestLog(c)
		if appErr.Status >= 500 {
			log.Errorw("handler_error", "status", appErr.Status, "message", appErr.Message, "error", err)
		} else {
			log.Warnw("handler_error", "status", appErr.Status, "message", appErr.Message, "error", err)
		}
	}
	response.Error(c, appErr.Status, appErr.Message)
}
