package controllers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/middleware"
	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// setupControllerTestDB installs an in-memory database holding testOrders
func setupControllerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Order{}))

	inserted, err := services.LoadOrders(context.Background(), db, testOrders(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(testOrders())), inserted)

	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })
	return db
}

func newTestOrder(id, customer, restaurant, date, method string, value, delivery, commission, processing, discount, refund float64) models.Order {
	orderDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.Order{
		OrderID:              id,
		CustomerID:           customer,
		RestaurantID:         restaurant,
		OrderDate:            orderDate.Add(18 * time.Hour),
		PaymentMethod:        method,
		OrderValue:           decimal.NewFromFloat(value),
		DeliveryFee:          decimal.NewFromFloat(delivery),
		CommissionFee:        decimal.NewFromFloat(commission),
		PaymentProcessingFee: decimal.NewFromFloat(processing),
		DiscountsAndOffers:   decimal.NewFromFloat(discount),
		RefundsChargebacks:   decimal.NewFromFloat(refund),
	}
}

// testOrders margins: 1001 +14, 1002 -12, 1003 +3, 1004 0, 1005 +9 (total 14)
func testOrders() []models.Order {
	return []models.Order{
		newTestOrder("1001", "C1", "R1", "2024-01-10", "Credit Card", 40, 5, 12, 3, 0, 0),
		newTestOrder("1002", "C2", "R1", "2024-01-15", "Cash on Delivery", 60, 2, 8, 2, 15, 5),
		newTestOrder("1003", "C1", "R2", "2024-02-03", "Digital Wallet", 25, 3, 4, 1, 3, 0),
		newTestOrder("1004", "C3", "R2", "2024-02-20", "Credit Card", 12, 2, 2, 1, 3, 0),
		newTestOrder("1005", "C2", "R1", "2024-03-01", "Digital Wallet", 55, 6, 6, 1.5, 1.5, 0),
	}
}

// mockAuthMiddleware stores claims the way EnsureValidToken does
func mockAuthMiddleware(userID, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: userID},
			CustomClaims:     &middleware.CustomClaims{Scope: scope},
		})
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	response := decodeResponse(t, w)
	require.Equal(t, false, response["success"])
	return response["error"].(map[string]interface{})["code"].(string)
}
