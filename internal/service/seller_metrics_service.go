package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SellerMetricsService 结算后卖家统计更新（尽力而为）
type SellerMetricsService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	listingRepo repository.ListingRepository
	metricsRepo repository.SellerMetricsRepository
	orderConfig config.OrderConfig
	metrics     *metrics.CheckoutMetrics
	now         func() time.Time
}

// NewSellerMetricsService 创建卖家统计服务
func NewSellerMetricsService(db *gorm.DB, orderRepo repository.OrderRepository, listingRepo repository.ListingRepository, metricsRepo repository.SellerMetricsRepository, orderConfig config.OrderConfig, checkoutMetrics *metrics.CheckoutMetrics) *SellerMetricsService {
	return &SellerMetricsService{
		db:          db,
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		metricsRepo: metricsRepo,
		orderConfig: orderConfig,
		metrics:     checkoutMetrics,
		now:         time.Now,
	}
}

type sellerOrderTotals struct {
	sellerID uint
	sales    decimal.Decimal
	orders   int64
}

// UpdateForOrders 按卖家并发更新统计；单个卖家失败只记录日志，不影响其他卖家
func (s *SellerMetricsService) UpdateForOrders(ctx context.Context, userID uint, orderIDs []uint) error {
	orders, err := s.orderRepo.ListByIDs(ctx, orderIDs)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}
	totals := aggregateSellerTotals(orders)
	currentIDs := make([]uint, 0, len(orders))
	for _, order := range orders {
		currentIDs = append(currentIDs, order.ID)
	}

	var wg sync.WaitGroup
	for _, item := range totals {
		wg.Add(1)
		go func(totals sellerOrderTotals) {
			defer wg.Done()
			if err := s.updateSeller(ctx, userID, currentIDs, totals); err != nil {
				s.metrics.IncSellerUpdate("failure")
				logger.Warnw("seller_metrics_update_failed",
					"seller_id", totals.sellerID,
					"user_id", userID,
					"error", err,
				)
				return
			}
			s.metrics.IncSellerUpdate("success")
		}(item)
	}
	wg.Wait()
	return nil
}

func (s *SellerMetricsService) updateSeller(ctx context.Context, userID uint, currentOrderIDs []uint, totals sellerOrderTotals) error {
	newCustomer := int64(0)
	if userID != 0 {
		seen, err := s.orderRepo.HasPriorOrderWithSeller(ctx, userID, totals.sellerID, constants.QualifyingOrderStatuses, currentOrderIDs)
		if err != nil {
			return fmt.Errorf("new customer check: %w", err)
		}
		if !seen {
			newCustomer = 1
		}
	}

	now := s.now()
	day := now.Format(constants.SalesHistoryDayLayout)
	txCtx, cancel := context.WithTimeout(ctx, s.orderConfig.MetricsTimeout())
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		repo := s.metricsRepo.WithTx(tx)
		if err := repo.IncrementTotals(txCtx, totals.sellerID, totals.sales, totals.orders, now); err != nil {
			return fmt.Errorf("increment seller totals: %w", err)
		}
		if err := repo.IncrementDaily(txCtx, totals.sellerID, day, totals.sales, totals.orders, newCustomer); err != nil {
			return fmt.Errorf("increment sales history: %w", err)
		}
		return nil
	})
	cancel()
	if err != nil {
		return err
	}
	return s.RefreshAggregates(ctx, totals.sellerID)
}

// RefreshAggregates 重新统计卖家商品数与平均评分
func (s *SellerMetricsService) RefreshAggregates(ctx context.Context, sellerID uint) error {
	total, active, err := s.listingRepo.CountBySeller(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("count listings: %w", err)
	}
	avg, err := s.metricsRepo.AverageRating(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("average rating: %w", err)
	}
	if err := s.metricsRepo.UpdateAggregates(ctx, sellerID, total, active, avg, s.now()); err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	return nil
}

// RecordCancellation 记录卖家当日取消数
func (s *SellerMetricsService) RecordCancellation(ctx context.Context, sellerID uint, at time.Time) error {
	if s == nil {
		return nil
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.metricsRepo.IncrementCancellations(ctx, sellerID, at.Format(constants.SalesHistoryDayLayout), 1)
}

// aggregateSellerTotals 按卖家汇总订单金额，保持首次出现顺序
func aggregateSellerTotals(orders []models.Order) []sellerOrderTotals {
	result := make([]sellerOrderTotals, 0)
	index := make(map[uint]int)
	for _, order := range orders {
		idx, ok := index[order.SellerID]
		if !ok {
			idx = len(result)
			index[order.SellerID] = idx
			result = append(result, sellerOrderTotals{sellerID: order.SellerID, sales: decimal.Zero})
		}
		result[idx].sales = result[idx].sales.Add(order.TotalAmount.Decimal)
		result[idx].orders++
	}
	return result
}
