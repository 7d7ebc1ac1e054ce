package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Default HAVING thresholds and ranking sizes
const (
	DefaultMinRefundOrders     = 5
	DefaultMinRestaurantOrders = 10
	DefaultRankingLimit        = 10
)

// ReportFilter narrows the orders a report is computed over
type ReportFilter struct {
	From          *time.Time `json:"from,omitempty"` // inclusive day
	To            *time.Time `json:"to,omitempty"`   // inclusive day
	PaymentMethod string     `json:"payment_method,omitempty"`
}

func (f ReportFilter) apply(db *gorm.DB) *gorm.DB {
	if f.From != nil {
		db = db.Where("order_date >= ?", startOfDay(*f.From))
	}
	if f.To != nil {
		db = db.Where("order_date < ?", startOfDay(*f.To).AddDate(0, 0, 1))
	}
	if f.PaymentMethod != "" {
		db = db.Where("payment_method = ?", f.PaymentMethod)
	}
	return db
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ReportService computes the profitability reports over the orders table.
// Every report consumes EvaluateOrder; none repeats the margin formula.
type ReportService struct {
	db *gorm.DB
}

// NewReportService creates a report service backed by db
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

func (s *ReportService) loadOrders(ctx context.Context, filter ReportFilter) ([]evaluatedOrder, error) {
	start := time.Now()

	var orders []models.Order
	q := filter.apply(s.db.WithContext(ctx).Model(&models.Order{}))
	if err := q.Order("order_date, order_id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	logger.Logger.Debug("orders loaded for report",
		zap.Int("orders", len(orders)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return evaluateAll(orders), nil
}

// Overview computes the platform headline numbers
func (s *ReportService) Overview(ctx context.Context, filter ReportFilter) (*Overview, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return overviewOf(orders), nil
}

func overviewOf(orders []evaluatedOrder) *Overview {
	b := groupBy(orders, func(evaluatedOrder) string { return "all" }, "all").buckets["all"]

	return &Overview{
		TotalOrders:           b.orders,
		TotalGMV:              utils.ToFloat(b.gmv),
		AvgOrderValue:         b.avgOrderValue(),
		TotalCommission:       utils.ToFloat(b.commission),
		TotalDeliveryFees:     utils.ToFloat(b.deliveryFee),
		TotalProcessingFees:   utils.ToFloat(b.processing),
		TotalDiscounts:        utils.ToFloat(b.discounts),
		TotalRefunds:          utils.ToFloat(b.refunds),
		NetPlatformRevenue:    utils.ToFloat(b.margin),
		AvgContributionMargin: b.avgMargin(),
		AvgDeliveryFeePct:     utils.OptionalFloat(b.deliveryFeeShare.Value()),
		ProfitableOrders:      b.profitable,
		LossMakingOrders:      b.lossMaking(),
		ProfitablePct:         utils.OptionalFloat(utils.Percent(decimal.NewFromInt(b.profitable), b.count())),
		RefundRatePct:         utils.OptionalFloat(utils.Percent(b.refunds, b.gmv)),
	}
}

// PaymentMethods reports AOV and margin per payment method, ascending by AOV
func (s *ReportService) PaymentMethods(ctx context.Context, filter ReportFilter) ([]PaymentMethodRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return paymentMethodsOf(orders), nil
}

func paymentMethodsOf(orders []evaluatedOrder) []PaymentMethodRow {
	buckets := groupBy(orders, func(o evaluatedOrder) string { return o.PaymentMethod }).list()
	sortBuckets(buckets, func(a, b *bucket) int {
		// every bucket holds at least one order, so the division is defined
		return a.gmv.Div(a.count()).Cmp(b.gmv.Div(b.count()))
	})

	rows := make([]PaymentMethodRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, PaymentMethodRow{
			PaymentMethod:         b.key,
			TotalOrders:           b.orders,
			AvgOrderValue:         b.avgOrderValue(),
			TotalGMV:              utils.ToFloat(b.gmv),
			AvgContributionMargin: b.avgMargin(),
			PctOfOrders:           b.shareOf(int64(len(orders))),
		})
	}
	return rows
}

// MonthlyTrend reports volume, GMV and net revenue per month, ascending
func (s *ReportService) MonthlyTrend(ctx context.Context, filter ReportFilter) ([]MonthlyRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return monthlyTrendOf(orders), nil
}

func monthlyTrendOf(orders []evaluatedOrder) []MonthlyRow {
	buckets := groupBy(orders, func(o evaluatedOrder) string { return o.OrderMonth() }).list()
	sortBuckets(buckets, func(a, b *bucket) int { return 0 }) // YYYY-MM keys sort chronologically

	rows := make([]MonthlyRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, MonthlyRow{
			OrderMonth:         b.key,
			TotalOrders:        b.orders,
			TotalGMV:           utils.ToFloat(b.gmv),
			AvgOrderValue:      b.avgOrderValue(),
			NetPlatformRevenue: utils.ToFloat(b.margin),
		})
	}
	return rows
}

// ProfitabilitySplit reports order counts and margin per profitability label
func (s *ReportService) ProfitabilitySplit(ctx context.Context, filter ReportFilter) ([]ProfitabilityRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return profitabilitySplitOf(orders), nil
}

func profitabilitySplitOf(orders []evaluatedOrder) []ProfitabilityRow {
	preset := make([]string, len(Labels))
	for i, label := range Labels {
		preset[i] = string(label)
	}
	buckets := groupBy(orders, func(o evaluatedOrder) string { return string(o.Label) }, preset...).list()

	rows := make([]ProfitabilityRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, ProfitabilityRow{
			Profitability:         ProfitabilityLabel(b.key),
			OrderCount:            b.orders,
			TotalMargin:           utils.ToFloat(b.margin),
			AvgOrderValue:         b.avgOrderValue(),
			AvgContributionMargin: b.avgMargin(),
			PctOfOrders:           b.shareOf(int64(len(orders))),
		})
	}
	return rows
}

// DiscountImpact reports AOV and margin per discount band
func (s *ReportService) DiscountImpact(ctx context.Context, filter ReportFilter) ([]DiscountBandRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return discountImpactOf(orders), nil
}

func discountImpactOf(orders []evaluatedOrder) []DiscountBandRow {
	buckets := groupBy(orders, func(o evaluatedOrder) string { return DiscountBand(o.DiscountsAndOffers) }, DiscountBands...).list()

	rows := make([]DiscountBandRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, DiscountBandRow{
			DiscountBand:          b.key,
			OrderCount:            b.orders,
			AvgOrderValue:         b.avgOrderValue(),
			AvgContributionMargin: b.avgMargin(),
			LossMakingPct:         b.lossMakingPct(),
		})
	}
	return rows
}

// OrderValueBands reports delivery cost-to-serve per order value band
func (s *ReportService) OrderValueBands(ctx context.Context, filter ReportFilter) ([]OrderValueBandRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return orderValueBandsOf(orders), nil
}

func orderValueBandsOf(orders []evaluatedOrder) []OrderValueBandRow {
	buckets := groupBy(orders, func(o evaluatedOrder) string { return OrderValueBand(o.OrderValue) }, OrderValueBands...).list()

	rows := make([]OrderValueBandRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, OrderValueBandRow{
			OrderBand:             b.key,
			OrderCount:            b.orders,
			DeliveryFeePct:        utils.OptionalFloat(b.deliveryFeeShare.Value()),
			AvgContributionMargin: b.avgMargin(),
		})
	}
	return rows
}

// RestaurantRefunds ranks restaurants with at least minOrders orders by refund rate
func (s *ReportService) RestaurantRefunds(ctx context.Context, filter ReportFilter, minOrders, limit int) ([]RestaurantRefundRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return restaurantRefundsOf(orders, minOrders, limit), nil
}

func restaurantRefundsOf(orders []evaluatedOrder, minOrders, limit int) []RestaurantRefundRow {
	buckets := having(groupBy(orders, func(o evaluatedOrder) string { return o.RestaurantID }).list(), minOrders)
	sortBuckets(buckets, func(a, b *bucket) int { return b.refundRatePct().Cmp(a.refundRatePct()) })
	buckets = limitBuckets(buckets, limit)

	rows := make([]RestaurantRefundRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, RestaurantRefundRow{
			RestaurantID:  b.key,
			TotalOrders:   b.orders,
			RefundOrders:  b.refundOrders,
			RefundRatePct: utils.OptionalFloat(b.refundRatePct(), true),
			TotalRefund:   utils.ToFloat(b.refunds),
		})
	}
	return rows
}

// RestaurantProfitability ranks restaurants with at least minOrders orders, worst margin first
func (s *ReportService) RestaurantProfitability(ctx context.Context, filter ReportFilter, minOrders, limit int) ([]RestaurantProfitRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return restaurantProfitabilityOf(orders, minOrders, limit), nil
}

func restaurantProfitabilityOf(orders []evaluatedOrder, minOrders, limit int) []RestaurantProfitRow {
	buckets := having(groupBy(orders, func(o evaluatedOrder) string { return o.RestaurantID }).list(), minOrders)
	sortBuckets(buckets, func(a, b *bucket) int { return a.margin.Cmp(b.margin) })
	buckets = limitBuckets(buckets, limit)

	rows := make([]RestaurantProfitRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, RestaurantProfitRow{
			RestaurantID:          b.key,
			TotalOrders:           b.orders,
			TotalGMV:              utils.ToFloat(b.gmv),
			TotalMargin:           utils.ToFloat(b.margin),
			AvgContributionMargin: b.avgMargin(),
			LossMakingPct:         b.lossMakingPct(),
		})
	}
	return rows
}

// CustomerProfitability ranks customers by the margin they generate, best first
func (s *ReportService) CustomerProfitability(ctx context.Context, filter ReportFilter, limit int) ([]CustomerProfitRow, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return customerProfitabilityOf(orders, limit), nil
}

func customerProfitabilityOf(orders []evaluatedOrder, limit int) []CustomerProfitRow {
	buckets := groupBy(orders, func(o evaluatedOrder) string { return o.CustomerID }).list()
	sortBuckets(buckets, func(a, b *bucket) int { return b.margin.Cmp(a.margin) })
	buckets = limitBuckets(buckets, limit)

	rows := make([]CustomerProfitRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, CustomerProfitRow{
			CustomerID:    b.key,
			TotalOrders:   b.orders,
			TotalSpend:    utils.ToFloat(b.gmv),
			TotalMargin:   utils.ToFloat(b.margin),
			AvgOrderValue: b.avgOrderValue(),
		})
	}
	return rows
}

// TotalContributionMargin sums the per-order margins at full precision
func (s *ReportService) TotalContributionMargin(ctx context.Context, filter ReportFilter) (decimal.Decimal, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.ContributionMargin)
	}
	return total, nil
}

// NetPlatformRevenueSQL lets the database compute net platform revenue from
// column totals in a single query. It must agree with TotalContributionMargin.
func (s *ReportService) NetPlatformRevenueSQL(ctx context.Context, filter ReportFilter) (decimal.Decimal, error) {
	var net decimal.Decimal
	q := filter.apply(s.db.WithContext(ctx).Model(&models.Order{}))
	if err := q.Select(NetRevenueSQL() + " AS net_platform_revenue").Row().Scan(&net); err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute net platform revenue: %w", err)
	}
	return net, nil
}

// NetRevenueTolerance bounds the difference CheckNetRevenue accepts between
// its two totals. SQLite sums NUMERIC columns as floating point.
var NetRevenueTolerance = decimal.New(1, -2)

// NetRevenueCheck compares net platform revenue computed from evaluated
// orders with the database's column totals
type NetRevenueCheck struct {
	FromOrders       float64 `json:"from_orders"`
	FromColumnTotals float64 `json:"from_column_totals"`
	Consistent       bool    `json:"consistent"`
}

// CheckNetRevenue runs both net revenue computations over filter
func (s *ReportService) CheckNetRevenue(ctx context.Context, filter ReportFilter) (*NetRevenueCheck, error) {
	total, err := s.TotalContributionMargin(ctx, filter)
	if err != nil {
		return nil, err
	}
	net, err := s.NetPlatformRevenueSQL(ctx, filter)
	if err != nil {
		return nil, err
	}

	check := &NetRevenueCheck{
		FromOrders:       utils.ToFloat(total),
		FromColumnTotals: utils.ToFloat(net),
		Consistent:       total.Sub(net).Abs().LessThanOrEqual(NetRevenueTolerance),
	}
	if !check.Consistent {
		logger.Logger.Error("net platform revenue mismatch",
			zap.String("from_orders", total.String()),
			zap.String("from_column_totals", net.String()),
		)
	}
	return check, nil
}

// SummaryOptions sets the HAVING thresholds and ranking sizes of Summary
type SummaryOptions struct {
	MinRefundOrders     int
	MinRestaurantOrders int
	Limit               int
}

// DefaultSummaryOptions matches the thresholds used by the dashboards
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{
		MinRefundOrders:     DefaultMinRefundOrders,
		MinRestaurantOrders: DefaultMinRestaurantOrders,
		Limit:               DefaultRankingLimit,
	}
}

// Summary computes every report from a single read of the orders table
func (s *ReportService) Summary(ctx context.Context, filter ReportFilter, opts SummaryOptions) (*ReportSummary, error) {
	orders, err := s.loadOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ReportSummary{
		GeneratedAt:             time.Now().UTC(),
		Filter:                  filter,
		Overview:                *overviewOf(orders),
		PaymentMethods:          paymentMethodsOf(orders),
		MonthlyTrend:            monthlyTrendOf(orders),
		Profitability:           profitabilitySplitOf(orders),
		DiscountImpact:          discountImpactOf(orders),
		OrderValueBands:         orderValueBandsOf(orders),
		RestaurantRefunds:       restaurantRefundsOf(orders, opts.MinRefundOrders, opts.Limit),
		RestaurantProfitability: restaurantProfitabilityOf(orders, opts.MinRestaurantOrders, opts.Limit),
		CustomerProfitability:   customerProfitabilityOf(orders, opts.Limit),
	}, nil
}
