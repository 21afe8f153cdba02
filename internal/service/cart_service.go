package service

import (
	"context"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"github.com/shopspring/decimal"
)

// CartItemDetail 购物车项详情（用于响应）
type CartItemDetail struct {
	CartItemID        uint         `json:"cartItemId"`
	ListingID         uint         `json:"listingId"`
	SellerID          uint         `json:"sellerId"`
	Name              string       `json:"name"`
	Quantity          int          `json:"quantity"`
	UnitPrice         models.Money `json:"unitPrice"`
	LineTotal         models.Money `json:"lineTotal"`
	ListingStatus     string       `json:"listingStatus"`
	QuantityAvailable int          `json:"quantityAvailable"`
}

// CartView 购物车视图
type CartView struct {
	CartID   uint             `json:"cartId"`
	Items    []CartItemDetail `json:"items"`
	Subtotal models.Money     `json:"subtotal"`
}

// UpsertCartItemInput 购物车更新输入
type UpsertCartItemInput struct {
	UserID    uint
	ListingID uint
	Quantity  int
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	listingRepo repository.ListingRepository
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, listingRepo repository.ListingRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		listingRepo: listingRepo,
	}
}

// GetCart 获取用户当前购物车，没有激活购物车时返回空视图
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	cart, err := s.cartRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &CartView{Items: []CartItemDetail{}, Subtotal: models.NewMoneyFromInt(0)}, nil
	}
	return s.buildView(ctx, cart.ID)
}

// AddItem 加入购物车，已存在则累加数量
func (s *CartService) AddItem(ctx context.Context, input UpsertCartItemInput) (*CartView, error) {
	if input.UserID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	if input.ListingID == 0 {
		return nil, newError(KindValidation, "fishId is required")
	}
	if input.Quantity <= 0 {
		return nil, newError(KindValidation, "quantity must be a positive integer")
	}
	cart, err := s.cartRepo.GetOrCreateActive(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	existing := 0
	items, err := s.cartRepo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ListingID == input.ListingID {
			existing = item.Quantity
		}
	}
	if err := s.ensurePurchasable(ctx, input.ListingID, existing+input.Quantity); err != nil {
		return nil, err
	}
	if _, err := s.cartRepo.AddItem(ctx, cart.ID, input.ListingID, input.Quantity); err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart.ID)
}

// UpdateItem 修改购物车项数量
func (s *CartService) UpdateItem(ctx context.Context, userID, cartItemID uint, quantity int) (*CartView, error) {
	if quantity <= 0 {
		return nil, newError(KindValidation, "quantity must be a positive integer")
	}
	cart, item, err := s.loadItem(ctx, userID, cartItemID)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePurchasable(ctx, item.ListingID, quantity); err != nil {
		return nil, err
	}
	if _, err := s.cartRepo.UpdateItemQuantity(ctx, cart.ID, item.ID, quantity); err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart.ID)
}

// RemoveItem 删除购物车项
func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID uint) (*CartView, error) {
	cart, item, err := s.loadItem(ctx, userID, cartItemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.cartRepo.DeleteItems(ctx, cart.ID, []uint{item.ID}); err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart.ID)
}

func (s *CartService) loadItem(ctx context.Context, userID, cartItemID uint) (*models.Cart, *models.CartItem, error) {
	if userID == 0 {
		return nil, nil, newError(KindUnauthorized, "authentication required")
	}
	cart, err := s.cartRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil {
		return nil, nil, newError(KindNotFound, "no active cart found")
	}
	item, err := s.cartRepo.GetItem(ctx, cart.ID, cartItemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, newError(KindNotFound, "cart item #%d not found", cartItemID)
	}
	return cart, item, nil
}

// ensurePurchasable 加购时校验商品在售与库存
func (s *CartService) ensurePurchasable(ctx context.Context, listingID uint, quantity int) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return newError(KindNotFound, "listing #%d not found", listingID)
	}
	if listing.Status != constants.ListingStatusActive {
		return newError(KindItemUnavailable, "listing %q is not available for purchase", listing.Name)
	}
	if listing.QuantityAvailable < quantity {
		return newError(KindInsufficientStock, "not enough stock for %q, only %d units available", listing.Name, listing.QuantityAvailable)
	}
	return nil
}

func (s *CartService) buildView(ctx context.Context, cartID uint) (*CartView, error) {
	items, err := s.cartRepo.ListItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	view := &CartView{CartID: cartID, Items: make([]CartItemDetail, 0, len(items))}
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Listing == nil {
			continue
		}
		line := item.Listing.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		view.Items = append(view.Items, CartItemDetail{
			CartItemID:        item.ID,
			ListingID:         item.ListingID,
			SellerID:          item.Listing.SellerID,
			Name:              item.Listing.Name,
			Quantity:          item.Quantity,
			UnitPrice:         item.Listing.Price,
			LineTotal:         models.NewMoneyFromDecimal(line),
			ListingStatus:     item.Listing.Status,
			QuantityAvailable: item.Listing.QuantityAvailable,
		})
	}
	view.Subtotal = models.NewMoneyFromDecimal(subtotal)
	return view, nil
}
