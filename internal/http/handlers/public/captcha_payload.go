package public

import (
	"strings"

	"github.com/fishmart-next/internal/service"
)

// CaptchaPayloadRequest 验证码请求载荷
// 游客下单场景开启时必填，由 service 层根据配置判定
type CaptchaPayloadRequest struct {
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

func (r CaptchaPayloadRequest) toServicePayload() service.CaptchaVerifyPayload {
	return service.CaptchaVerifyPayload{
		CaptchaID:   strings.TrimSpace(r.CaptchaID),
		CaptchaCode: strings.TrimSpace(r.CaptchaCode),
	}
}
