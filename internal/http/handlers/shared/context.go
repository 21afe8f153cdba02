package shared

import (
	"github.com/gin-gonic/gin"
)

// ContextUserIDKey 鉴权中间件写入的用户 ID 键
const ContextUserIDKey = "user_id"

// GetContextUint 从上下文读取 uint 值，缺失或类型不符时返回 false
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, v > 0
	case int:
		if v <= 0 {
			return 0, false
		}
		return uint(v), true
	case float64:
		if v <= 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
