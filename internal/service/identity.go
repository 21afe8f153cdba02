package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var guestEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// GuestProfile 游客下单资料
type GuestProfile struct {
	Email    string
	FullName string
	Phone    string
}

// Identity 下单身份：注册用户或游客，二者互斥
type Identity struct {
	userID uint
	guest  *GuestProfile
}

// RegisteredIdentity 注册用户身份
func RegisteredIdentity(userID uint) Identity {
	return Identity{userID: userID}
}

// GuestIdentity 游客身份
func GuestIdentity(profile GuestProfile) Identity {
	return Identity{guest: &profile}
}

// IsGuest 是否游客
func (i Identity) IsGuest() bool {
	return i.guest != nil
}

// UserID 注册用户 ID，游客为 0
func (i Identity) UserID() uint {
	if i.guest != nil {
		return 0
	}
	return i.userID
}

// Guest 游客资料
func (i Identity) Guest() (GuestProfile, bool) {
	if i.guest == nil {
		return GuestProfile{}, false
	}
	return *i.guest, true
}

// validateGuestProfile 校验游客必填字段
func validateGuestProfile(profile GuestProfile) error {
	if strings.TrimSpace(profile.Email) == "" {
		return newError(KindValidation, "guestInfo.email is required")
	}
	if strings.TrimSpace(profile.FullName) == "" {
		return newError(KindValidation, "guestInfo.fullName is required")
	}
	if !guestEmailPattern.MatchString(strings.TrimSpace(profile.Email)) {
		return newError(KindValidation, "guestInfo.email is invalid")
	}
	return nil
}

// IdentityResolver 解析下单身份对应的用户账号
type IdentityResolver struct {
	userRepo repository.UserRepository
}

// NewIdentityResolver 创建身份解析器
func NewIdentityResolver(userRepo repository.UserRepository) *IdentityResolver {
	return &IdentityResolver{userRepo: userRepo}
}

// Resolve 注册用户按 ID 加载；游客按邮箱复用已有账号或创建游客账号
func (r *IdentityResolver) Resolve(ctx context.Context, identity Identity) (*models.User, error) {
	profile, isGuest := identity.Guest()
	if !isGuest {
		if identity.UserID() == 0 {
			return nil, newError(KindUnauthorized, "authentication required")
		}
		user, err := r.userRepo.GetByID(ctx, identity.UserID())
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, newError(KindNotFound, "user #%d not found", identity.UserID())
		}
		if user.Status == constants.UserStatusDisabled {
			return nil, newError(KindUnauthorized, "account disabled")
		}
		return user, nil
	}

	if err := validateGuestProfile(profile); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	existing, err := r.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return r.provisionGuest(ctx, email, profile)
}

// provisionGuest 唯一的游客账号创建路径，密码为不可用的随机哈希
func (r *IdentityResolver) provisionGuest(ctx context.Context, email string, profile GuestProfile) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(profile.FullName),
		PhoneNumber:  strings.TrimSpace(profile.Phone),
		UserType:     constants.UserTypeGuest,
		IsGuest:      true,
		Status:       constants.UserStatusActive,
	}
	if err := r.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			// 并发下单时同一邮箱已被创建
			existing, lookupErr := r.userRepo.GetByEmail(ctx, email)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	logger.Infow("guest_user_provisioned", "user_id", user.ID)
	return user, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
