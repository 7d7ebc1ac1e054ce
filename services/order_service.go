package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/utils"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when no order has the requested order_id
var ErrOrderNotFound = errors.New("order not found")

// Page sizes for ListOrders
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderSort selects the order of ListOrders results
type OrderSort string

const (
	SortByDate       OrderSort = "date"
	SortByMargin     OrderSort = "margin"
	SortByMarginDesc OrderSort = "-margin"
)

// ParseOrderSort validates a sort query value; empty means SortByDate
func ParseOrderSort(value string) (OrderSort, error) {
	switch sort := OrderSort(value); sort {
	case "":
		return SortByDate, nil
	case SortByDate, SortByMargin, SortByMarginDesc:
		return sort, nil
	default:
		return "", fmt.Errorf("sort must be one of %s, %s or %s", SortByDate, SortByMargin, SortByMarginDesc)
	}
}

// orderClause renders the ORDER BY for sort. Ties fall back to order_id.
func (by OrderSort) orderClause() string {
	switch by {
	case SortByMargin:
		return "(" + ContributionMarginSQL() + ") ASC, order_id"
	case SortByMarginDesc:
		return "(" + ContributionMarginSQL() + ") DESC, order_id"
	default:
		return "order_date, order_id"
	}
}

// EvaluatedOrder is an order together with its contribution margin and label
type EvaluatedOrder struct {
	models.Order
	ContributionMargin float64            `json:"contribution_margin"`
	Profitability      ProfitabilityLabel `json:"profitability"`
}

func newEvaluatedOrder(o models.Order) EvaluatedOrder {
	e := EvaluateOrder(o)
	return EvaluatedOrder{
		Order:              o,
		ContributionMargin: utils.ToFloat(e.ContributionMargin),
		Profitability:      e.Label,
	}
}

// OrderPage is one page of evaluated orders
type OrderPage struct {
	Orders   []EvaluatedOrder `json:"orders"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

// OrderService reads orders; orders are never modified through it
type OrderService struct {
	db *gorm.DB
}

// NewOrderService creates an order service backed by db
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// ListOrders returns a page of orders matching filter. Margin sorts are
// evaluated by the database.
func (s *OrderService) ListOrders(ctx context.Context, filter ReportFilter, sort OrderSort, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := func() *gorm.DB {
		return filter.apply(s.db.WithContext(ctx).Model(&models.Order{}))
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	if err := query().Order(sort.orderClause()).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := &OrderPage{
		Orders:   make([]EvaluatedOrder, 0, len(orders)),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	for _, o := range orders {
		result.Orders = append(result.Orders, newEvaluatedOrder(o))
	}
	return result, nil
}

// GetOrder returns one order by its external order_id
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*EvaluatedOrder, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	evaluated := newEvaluatedOrder(order)
	return &evaluated, nil
}
