package service

import (
	"context"

	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"
)

// OrderQueryService 用户订单查询
type OrderQueryService struct {
	orderRepo repository.OrderRepository
}

// NewOrderQueryService 创建订单查询服务
func NewOrderQueryService(orderRepo repository.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orderRepo: orderRepo}
}

// ListOrdersByUser 分页获取用户订单
func (s *OrderQueryService) ListOrdersByUser(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, newError(KindUnauthorized, "authentication required")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.orderRepo.ListByUser(ctx, filter)
}

// GetOrderByUser 获取用户订单详情
func (s *OrderQueryService) GetOrderByUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	if userID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	if orderID == 0 {
		return nil, newError(KindValidation, "invalid order id")
	}
	order, err := s.orderRepo.GetByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, newError(KindNotFound, "order #%d not found", orderID)
	}
	return order, nil
}
