package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Order{}), "Failed to migrate test database")
	return db
}

// orderSpec describes a test order with string amounts
type orderSpec struct {
	id         string
	customer   string
	restaurant string
	date       string // YYYY-MM-DD
	method     string
	value      string
	delivery   string
	commission string
	processing string
	discount   string
	refund     string
}

func (s orderSpec) order() models.Order {
	date, err := time.Parse("2006-01-02", s.date)
	if err != nil {
		panic(err)
	}
	return models.Order{
		OrderID:              s.id,
		CustomerID:           s.customer,
		RestaurantID:         s.restaurant,
		OrderDate:            date.Add(12 * time.Hour),
		PaymentMethod:        s.method,
		OrderValue:           decOrZero(s.value),
		DeliveryFee:          decOrZero(s.delivery),
		CommissionFee:        decOrZero(s.commission),
		PaymentProcessingFee: decOrZero(s.processing),
		DiscountsAndOffers:   decOrZero(s.discount),
		RefundsChargebacks:   decOrZero(s.refund),
	}
}

func seedOrders(t *testing.T, db *gorm.DB, specs ...orderSpec) {
	t.Helper()

	orders := make([]models.Order, len(specs))
	for i, s := range specs {
		orders[i] = s.order()
	}
	n, err := LoadOrders(context.Background(), db, orders, 3)
	require.NoError(t, err)
	require.Equal(t, int64(len(specs)), n)
}
