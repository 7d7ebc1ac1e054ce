package services

import (
	"github.com/shopspring/decimal"
)

// Discount bands, in report order
const (
	DiscountNone = "No Discount"
	DiscountLow  = "Low (1-5)"
	DiscountMid  = "Mid (6-15)"
	DiscountHigh = "High (15+)"
)

// Order value bands, in report order
const (
	OrderBandLow     = "Low (< $15)"
	OrderBandMid     = "Mid ($15-30)"
	OrderBandHigh    = "High ($30-50)"
	OrderBandPremium = "Premium (> $50)"
)

var (
	DiscountBands   = []string{DiscountNone, DiscountLow, DiscountMid, DiscountHigh}
	OrderValueBands = []string{OrderBandLow, OrderBandMid, OrderBandHigh, OrderBandPremium}

	five    = decimal.NewFromInt(5)
	fifteen = decimal.NewFromInt(15)
	thirty  = decimal.NewFromInt(30)
	fifty   = decimal.NewFromInt(50)
)

// DiscountBand buckets discounts_and_offers
func DiscountBand(discount decimal.Decimal) string {
	switch {
	case discount.IsZero():
		return DiscountNone
	case discount.LessThanOrEqual(five):
		return DiscountLow
	case discount.LessThanOrEqual(fifteen):
		return DiscountMid
	default:
		return DiscountHigh
	}
}

// OrderValueBand buckets order_value
func OrderValueBand(value decimal.Decimal) string {
	switch {
	case value.LessThan(fifteen):
		return OrderBandLow
	case value.LessThan(thirty):
		return OrderBandMid
	case value.LessThan(fifty):
		return OrderBandHigh
	default:
		return OrderBandPremium
	}
}
