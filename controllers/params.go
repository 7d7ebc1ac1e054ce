package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/services"
)

// DateLayout is the format of the from and to query parameters
const DateLayout = "2006-01-02"

// MaxRankingLimit caps the limit parameter of ranking reports
const MaxRankingLimit = 100

const maxPage = 1_000_000

func respondError(c *gin.Context, status int, code, message string, details ...string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		body["details"] = details[0]
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

func respondValidationError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
}

func respondDatabaseError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", message)
}

func parseDate(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", name)
	}
	return &t, nil
}

// parseReportFilter reads from, to and payment_method
func parseReportFilter(c *gin.Context) (services.ReportFilter, error) {
	var (
		filter services.ReportFilter
		err    error
	)
	if filter.From, err = parseDate(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(c, "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fmt.Errorf("to must not be before from")
	}
	filter.PaymentMethod = c.Query("payment_method")
	return filter, nil
}

// queryInt reads an optional integer parameter within [min, max]
func queryInt(c *gin.Context, name string, defaultValue, min, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return v, nil
}

// reportThresholds returns the configured HAVING thresholds
func reportThresholds() (minRestaurantOrders, minRefundOrders int) {
	minRestaurantOrders, minRefundOrders = services.DefaultMinRestaurantOrders, services.DefaultMinRefundOrders
	if cfg := config.GetConfig(); cfg != nil {
		if cfg.MinRestaurantOrders > 0 {
			minRestaurantOrders = cfg.MinRestaurantOrders
		}
		if cfg.MinRefundOrders > 0 {
			minRefundOrders = cfg.MinRefundOrders
		}
	}
	return minRestaurantOrders, minRefundOrders
}

func summaryOptions() services.SummaryOptions {
	opts := services.DefaultSummaryOptions()
	opts.MinRestaurantOrders, opts.MinRefundOrders = reportThresholds()
	return opts
}
