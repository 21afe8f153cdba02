package public

import (
	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getUserID 必须登录的接口读取用户 ID
func getUserID(c *gin.Context) (uint, bool) {
	uid, ok := handlershared.GetContextUint(c, handlershared.ContextUserIDKey)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return 0, false
	}
	return uid, true
}

// optionalUserID 可选登录接口读取用户 ID，游客返回 0
func optionalUserID(c *gin.Context) uint {
	uid, _ := handlershared.GetContextUint(c, handlershared.ContextUserIDKey)
	return uid
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}
