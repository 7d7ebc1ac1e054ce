package services

import "time"

// Report rows are keyed by the column names the dashboards consume.
// Pointer fields are null when the underlying division had a zero divisor.

// Overview is the platform-wide headline report
type Overview struct {
	TotalOrders           int64    `json:"total_orders"`
	TotalGMV              float64  `json:"total_gmv"`
	AvgOrderValue         *float64 `json:"avg_order_value"`
	TotalCommission       float64  `json:"total_commission"`
	TotalDeliveryFees     float64  `json:"total_delivery_fees"`
	TotalProcessingFees   float64  `json:"total_processing_fees"`
	TotalDiscounts        float64  `json:"total_discounts"`
	TotalRefunds          float64  `json:"total_refunds"`
	NetPlatformRevenue    float64  `json:"net_platform_revenue"`
	AvgContributionMargin *float64 `json:"avg_contribution_margin"`
	AvgDeliveryFeePct     *float64 `json:"avg_delivery_fee_pct"` // rows with order_value = 0 excluded
	ProfitableOrders      int64    `json:"profitable_orders"`
	LossMakingOrders      int64    `json:"loss_making_orders"`
	ProfitablePct         *float64 `json:"profitable_pct"`
	RefundRatePct         *float64 `json:"refund_rate_pct"`
}

// PaymentMethodRow groups orders by payment method
type PaymentMethodRow struct {
	PaymentMethod         string   `json:"payment_method"`
	TotalOrders           int64    `json:"total_orders"`
	AvgOrderValue         *float64 `json:"avg_order_value"`
	TotalGMV              float64  `json:"total_gmv"`
	AvgContributionMargin *float64 `json:"avg_contribution_margin"`
	PctOfOrders           *float64 `json:"pct_of_orders"`
}

// MonthlyRow groups orders by calendar month
type MonthlyRow struct {
	OrderMonth         string   `json:"order_month"`
	TotalOrders        int64    `json:"total_orders"`
	TotalGMV           float64  `json:"total_gmv"`
	AvgOrderValue      *float64 `json:"avg_order_value"`
	NetPlatformRevenue float64  `json:"net_platform_revenue"`
}

// ProfitabilityRow groups orders by profitability label
type ProfitabilityRow struct {
	Profitability         ProfitabilityLabel `json:"profitability"`
	OrderCount            int64              `json:"order_count"`
	TotalMargin           float64            `json:"total_margin"`
	AvgOrderValue         *float64           `json:"avg_order_value"`
	AvgContributionMargin *float64           `json:"avg_contribution_margin"`
	PctOfOrders           *float64           `json:"pct_of_orders"`
}

// DiscountBandRow groups orders by discount band
type DiscountBandRow struct {
	DiscountBand          string   `json:"discount_band"`
	OrderCount            int64    `json:"order_count"`
	AvgOrderValue         *float64 `json:"avg_order_value"`
	AvgContributionMargin *float64 `json:"avg_contribution_margin"`
	LossMakingPct         *float64 `json:"loss_making_pct"`
}

// OrderValueBandRow groups orders by order value band
type OrderValueBandRow struct {
	OrderBand             string   `json:"order_band"`
	OrderCount            int64    `json:"order_count"`
	DeliveryFeePct        *float64 `json:"delivery_fee_pct"`
	AvgContributionMargin *float64 `json:"avg_contribution_margin"`
}

// RestaurantRefundRow is one restaurant ranked by refund rate
type RestaurantRefundRow struct {
	RestaurantID  string   `json:"restaurant_id"`
	TotalOrders   int64    `json:"total_orders"`
	RefundOrders  int64    `json:"refund_orders"`
	RefundRatePct *float64 `json:"refund_rate_pct"`
	TotalRefund   float64  `json:"total_refund"`
}

// RestaurantProfitRow is one restaurant ranked by total margin
type RestaurantProfitRow struct {
	RestaurantID          string   `json:"restaurant_id"`
	TotalOrders           int64    `json:"total_orders"`
	TotalGMV              float64  `json:"total_gmv"`
	TotalMargin           float64  `json:"total_margin"`
	AvgContributionMargin *float64 `json:"avg_contribution_margin"`
	LossMakingPct         *float64 `json:"loss_making_pct"`
}

// CustomerProfitRow is one customer ranked by total margin
type CustomerProfitRow struct {
	CustomerID    string   `json:"customer_id"`
	TotalOrders   int64    `json:"total_orders"`
	TotalSpend    float64  `json:"total_spend"`
	TotalMargin   float64  `json:"total_margin"`
	AvgOrderValue *float64 `json:"avg_order_value"`
}

// ReportSummary bundles every report for one filter
type ReportSummary struct {
	GeneratedAt             time.Time             `json:"generated_at"`
	Filter                  ReportFilter          `json:"filter"`
	Overview                Overview              `json:"overview"`
	PaymentMethods          []PaymentMethodRow    `json:"payment_methods"`
	MonthlyTrend            []MonthlyRow          `json:"monthly_trend"`
	Profitability           []ProfitabilityRow    `json:"profitability"`
	DiscountImpact          []DiscountBandRow     `json:"discount_impact"`
	OrderValueBands         []OrderValueBandRow   `json:"order_value_bands"`
	RestaurantRefunds       []RestaurantRefundRow `json:"restaurant_refunds"`
	RestaurantProfitability []RestaurantProfitRow `json:"restaurant_profitability"`
	CustomerProfitability   []CustomerProfitRow   `json:"customer_profitability"`
}
