package public

import "github.com/fishmart-next/internal/provider"

// Handler 前台接口处理器入口
// 说明：下单、购物车、订单查询、支付 webhook 与验证码。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func (h *Handler) debugErrors() bool {
	return h == nil || h.Config == nil || !h.Config.Server.IsRelease()
}
