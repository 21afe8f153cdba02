package public

import (
	"errors"
	"net/http"

	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil {
		handlershared.RespondError(c, http.StatusInternalServerError, "captcha unavailable", service.ErrCaptchaConfigInvalid)
		return
	}

	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaptchaConfigInvalid):
			handlershared.RespondError(c, http.StatusBadRequest, "captcha unavailable", nil)
		default:
			handlershared.RespondError(c, http.StatusInternalServerError, "captcha generation failed", err)
		}
		return
	}

	response.Success(c, challenge)
}
