package repository

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	SellerID uint
	Status   string
	Keyword  string // 匹配订单号或备注
}

// ListingListFilter 卖家商品列表筛选
type ListingListFilter struct {
	Page       int
	PageSize   int
	SellerID   uint
	CategoryID uint
	Status     string
	Sort       string // price_asc / price_desc / newest / oldest
}
