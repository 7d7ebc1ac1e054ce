package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a completed marketplace transaction. Rows are loaded once and
// never updated or deleted.
type Order struct {
	ID                   uint            `gorm:"primaryKey" json:"-"`
	OrderID              string          `gorm:"uniqueIndex;not null" json:"order_id"`
	CustomerID           string          `gorm:"not null;index" json:"customer_id"`
	RestaurantID         string          `gorm:"not null;index" json:"restaurant_id"`
	OrderDate            time.Time       `gorm:"not null;index" json:"order_date"`
	DeliveryDate         *time.Time      `json:"delivery_date"` // nullable, not used by reports
	OrderValue           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"order_value"`
	DeliveryFee          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	CommissionFee        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"commission_fee"`
	PaymentProcessingFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payment_processing_fee"`
	DiscountsAndOffers   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discounts_and_offers"`
	RefundsChargebacks   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"refunds_chargebacks"` // 0 when no refund occurred
	PaymentMethod        string          `gorm:"not null;index" json:"payment_method"`
	CreatedAt            time.Time       `json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderMonth returns the calendar month of the order as YYYY-MM
func (o Order) OrderMonth() string {
	return o.OrderDate.Format("2006-01")
}

// HasRefund reports whether any refund or chargeback was booked
func (o Order) HasRefund() bool {
	return o.RefundsChargebacks.IsPositive()
}
