package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"
)

// NotificationService 下单通知：给买家与各卖家发送带发票的邮件
type NotificationService struct {
	orderRepo    repository.OrderRepository
	sellerRepo   repository.SellerRepository
	userRepo     repository.UserRepository
	emailService *EmailService
}

// NewNotificationService 创建通知服务
func NewNotificationService(orderRepo repository.OrderRepository, sellerRepo repository.SellerRepository, userRepo repository.UserRepository, emailService *EmailService) *NotificationService {
	return &NotificationService{
		orderRepo:    orderRepo,
		sellerRepo:   sellerRepo,
		userRepo:     userRepo,
		emailService: emailService,
	}
}

// NotifyOrdersSettled 发送下单通知；加载失败返回错误供队列重试，单封邮件失败仅记录日志
func (s *NotificationService) NotifyOrdersSettled(ctx context.Context, userID uint, orderIDs []uint) error {
	if s == nil || !s.emailService.Enabled() {
		return nil
	}
	if userID == 0 || len(orderIDs) == 0 {
		return nil
	}
	customer, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("user %d not found", userID)
	}
	orders, err := s.orderRepo.ListByIDs(ctx, orderIDs)
	if err != nil {
		return err
	}
	sellerIDs := make([]uint, 0, len(orders))
	for _, order := range orders {
		sellerIDs = append(sellerIDs, order.SellerID)
	}
	sellers, err := s.sellerRepo.ListByIDs(ctx, sellerIDs)
	if err != nil {
		return err
	}
	sellerByID := make(map[uint]models.Seller, len(sellers))
	for _, seller := range sellers {
		sellerByID[seller.ID] = seller
	}

	for _, order := range orders {
		seller := sellerByID[order.SellerID]
		payload := buildOrderNotification(order, customer, seller)
		s.send(customer.Email, payload, constants.NotifyRoleCustomer, order.ID)
		if email := sellerContactEmail(seller); email != "" {
			s.send(email, payload, constants.NotifyRoleSeller, order.ID)
		}
	}
	return nil
}

func (s *NotificationService) send(to string, payload OrderNotification, role string, orderID uint) {
	if err := s.emailService.SendOrderNotification(to, payload, role); err != nil {
		level := logger.Warnw
		if errors.Is(err, ErrEmailRecipientRejected) || errors.Is(err, ErrInvalidEmail) {
			level = logger.Infow
		}
		level("order_notification_send_failed",
			"order_id", orderID,
			"role", role,
			"error", err,
		)
	}
}

func buildOrderNotification(order models.Order, customer *models.User, seller models.Seller) OrderNotification {
	items := make([]OrderNotificationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderNotificationItem{
			Name:      item.ListingName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.TotalPrice,
		})
	}
	sellerName := strings.TrimSpace(seller.DisplayName)
	if sellerName == "" {
		sellerName = seller.BusinessName
	}
	return OrderNotification{
		OrderNo:         order.OrderNo,
		Status:          order.Status,
		CustomerName:    customer.FullName,
		CustomerEmail:   customer.Email,
		SellerName:      sellerName,
		ShippingAddress: formatShippingAddress(order.ShippingRecord),
		Items:           items,
		Subtotal:        order.SubtotalAmount,
		Shipping:        order.ShippingAmount,
		Discount:        order.DiscountAmount,
		Total:           order.TotalAmount,
		PointsEarned:    order.PointsEarned,
		IsGuest:         order.IsGuestOrder,
		CreatedAt:       order.CreatedAt,
	}
}

func formatShippingAddress(record *models.ShippingRecord) string {
	if record == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{record.Address, record.City, strings.TrimSpace(record.State + " " + record.Zip)} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ", ")
}

func sellerContactEmail(seller models.Seller) string {
	if email := strings.TrimSpace(seller.ContactEmail); email != "" {
		return email
	}
	if seller.User != nil {
		return strings.TrimSpace(seller.User.Email)
	}
	return ""
}
