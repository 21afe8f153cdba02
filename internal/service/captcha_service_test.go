package service

import (
	"errors"
	"testing"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
)

func TestCaptchaServiceDisabledSceneSkipsVerification(t *testing.T) {
	svc := NewCaptchaService(config.CaptchaConfig{Provider: "none"})
	if svc.SceneEnabled(constants.CaptchaSceneGuestCheckout) {
		t.Fatalf("scene should be disabled when provider is none")
	}
	if err := svc.Verify(constants.CaptchaSceneGuestCheckout, CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("expected disabled scene to pass, got %v", err)
	}
	if _, err := svc.GenerateImageChallenge(); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
}

func TestCaptchaServiceImageChallengeRoundTrip(t *testing.T) {
	svc := NewCaptchaService(config.CaptchaConfig{
		Provider: constants.CaptchaProviderImage,
		Scenes:   config.CaptchaSceneConfig{GuestCheckout: true},
	})

	if err := svc.Verify(constants.CaptchaSceneGuestCheckout, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("expected captcha required, got %v", err)
	}

	challenge, err := svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate challenge failed: %v", err)
	}
	if challenge.CaptchaID == "" || challenge.ImageBase64 == "" {
		t.Fatalf("unexpected empty challenge: %+v", challenge)
	}

	if err := svc.Verify(constants.CaptchaSceneGuestCheckout, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: "wrong!"}); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("expected captcha invalid, got %v", err)
	}

	// 校验失败后答案已被清除，重新生成
	challenge, err = svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate challenge failed: %v", err)
	}
	answer := svc.imageStore().Get(challenge.CaptchaID, false)
	if answer == "" {
		t.Fatalf("expected stored answer")
	}
	if err := svc.Verify(constants.CaptchaSceneGuestCheckout, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: answer}); err != nil {
		t.Fatalf("expected captcha to pass, got %v", err)
	}
	if err := svc.Verify(constants.CaptchaSceneGuestCheckout, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: answer}); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("captcha should be single use, got %v", err)
	}
}

func TestNormalizeCaptchaConfigDefaults(t *testing.T) {
	cfg := normalizeCaptchaConfig(config.CaptchaConfig{Provider: " IMAGE ", Image: config.CaptchaImageConfig{Length: 20}})
	if cfg.Provider != constants.CaptchaProviderImage {
		t.Fatalf("unexpected provider: %s", cfg.Provider)
	}
	if cfg.Image.Length != 8 || cfg.Image.Width != 240 || cfg.Image.ExpireSeconds != 300 {
		t.Fatalf("unexpected normalized image config: %+v", cfg.Image)
	}
}
