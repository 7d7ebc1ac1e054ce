package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/services"
)

// reportFunc computes one report for a validated filter
type reportFunc func(ctx context.Context, reports *services.ReportService, filter services.ReportFilter) (interface{}, error)

// serveReport parses the common filter, runs report and writes the envelope
func serveReport(c *gin.Context, report reportFunc) {
	filter, err := parseReportFilter(c)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	data, err := report(c.Request.Context(), services.NewReportService(config.GetDB()), filter)
	if err != nil {
		respondDatabaseError(c, "Failed to compute report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetOverview handles GET /api/v1/reports/overview
func GetOverview(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.Overview(ctx, f)
	})
}

// GetPaymentMethods handles GET /api/v1/reports/payment-methods
func GetPaymentMethods(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.PaymentMethods(ctx, f)
	})
}

// GetMonthlyTrend handles GET /api/v1/reports/monthly
func GetMonthlyTrend(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.MonthlyTrend(ctx, f)
	})
}

// GetProfitabilitySplit handles GET /api/v1/reports/profitability
func GetProfitabilitySplit(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.ProfitabilitySplit(ctx, f)
	})
}

// GetDiscountImpact handles GET /api/v1/reports/discount-bands
func GetDiscountImpact(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.DiscountImpact(ctx, f)
	})
}

// GetOrderValueBands handles GET /api/v1/reports/order-value-bands
func GetOrderValueBands(c *gin.Context) {
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.OrderValueBands(ctx, f)
	})
}

// GetRestaurantRefunds handles GET /api/v1/reports/restaurants/refunds
func GetRestaurantRefunds(c *gin.Context) {
	_, defaultMin := reportThresholds()
	minOrders, limit, ok := rankingParams(c, defaultMin)
	if !ok {
		return
	}
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.RestaurantRefunds(ctx, f, minOrders, limit)
	})
}

// GetRestaurantProfitability handles GET /api/v1/reports/restaurants/profitability
func GetRestaurantProfitability(c *gin.Context) {
	defaultMin, _ := reportThresholds()
	minOrders, limit, ok := rankingParams(c, defaultMin)
	if !ok {
		return
	}
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.RestaurantProfitability(ctx, f, minOrders, limit)
	})
}

// GetCustomerProfitability handles GET /api/v1/reports/customers
func GetCustomerProfitability(c *gin.Context) {
	limit, err := queryInt(c, "limit", services.DefaultRankingLimit, 1, MaxRankingLimit)
	if err != nil {
		respondValidationError(c, err)
		return
	}
	serveReport(c, func(ctx context.Context, r *services.ReportService, f services.ReportFilter) (interface{}, error) {
		return r.CustomerProfitability(ctx, f, limit)
	})
}

// rankingParams reads min_orders and limit, writing the error response itself
func rankingParams(c *gin.Context, defaultMin int) (minOrders, limit int, ok bool) {
	minOrders, err := queryInt(c, "min_orders", defaultMin, 1, maxPage)
	if err != nil {
		respondValidationError(c, err)
		return 0, 0, false
	}
	limit, err = queryInt(c, "limit", services.DefaultRankingLimit, 1, MaxRankingLimit)
	if err != nil {
		respondValidationError(c, err)
		return 0, 0, false
	}
	return minOrders, limit, true
}
