package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/services"
)

// ListOrders handles GET /api/v1/orders - one page of orders with their evaluation
func ListOrders(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	page, err := queryInt(c, "page", 1, 1, maxPage)
	if err != nil {
		respondValidationError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", services.DefaultPageSize, 1, services.MaxPageSize)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	sort, err := services.ParseOrderSort(c.Query("sort"))
	if err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := services.NewOrderService(config.GetDB()).ListOrders(c.Request.Context(), filter, sort, page, pageSize)
	if err != nil {
		respondDatabaseError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetOrder handles GET /api/v1/orders/:order_id
func GetOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	order, err := services.NewOrderService(config.GetDB()).GetOrder(c.Request.Context(), orderID)
	if errors.Is(err, services.ErrOrderNotFound) {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		respondDatabaseError(c, "Failed to load order", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
