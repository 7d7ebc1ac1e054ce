package services

import (
	"strings"

	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/utils"
	"github.com/shopspring/decimal"
)

// ProfitabilityLabel is the binary classification of an order's contribution margin
type ProfitabilityLabel string

const (
	LabelProfitable ProfitabilityLabel = "Profitable"
	LabelLossMaking ProfitabilityLabel = "Loss-Making"
)

// Labels lists every label in report order
var Labels = []ProfitabilityLabel{LabelProfitable, LabelLossMaking}

// Fees are the monetary inputs of the contribution margin
type Fees struct {
	CommissionFee        decimal.Decimal
	DeliveryFee          decimal.Decimal
	PaymentProcessingFee decimal.Decimal
	DiscountsAndOffers   decimal.Decimal
	RefundsChargebacks   decimal.Decimal
}

// FeesOf extracts the margin inputs from an order
func FeesOf(o models.Order) Fees {
	return Fees{
		CommissionFee:        o.CommissionFee,
		DeliveryFee:          o.DeliveryFee,
		PaymentProcessingFee: o.PaymentProcessingFee,
		DiscountsAndOffers:   o.DiscountsAndOffers,
		RefundsChargebacks:   o.RefundsChargebacks,
	}
}

// marginTerm is one signed column of the contribution margin
type marginTerm struct {
	column string
	sign   int
	value  func(Fees) decimal.Decimal
}

// marginTerms is the only definition of the contribution margin. Both the
// in-process evaluator and the SQL expression are derived from it.
var marginTerms = []marginTerm{
	{column: "commission_fee", sign: 1, value: func(f Fees) decimal.Decimal { return f.CommissionFee }},
	{column: "delivery_fee", sign: 1, value: func(f Fees) decimal.Decimal { return f.DeliveryFee }},
	{column: "payment_processing_fee", sign: -1, value: func(f Fees) decimal.Decimal { return f.PaymentProcessingFee }},
	{column: "discounts_and_offers", sign: -1, value: func(f Fees) decimal.Decimal { return f.DiscountsAndOffers }},
	{column: "refunds_chargebacks", sign: -1, value: func(f Fees) decimal.Decimal { return f.RefundsChargebacks }},
}

// Evaluation is the derived profitability of one order
type Evaluation struct {
	ContributionMargin decimal.Decimal
	Label              ProfitabilityLabel
}

// DisplayMargin is the margin rounded to cents. Aggregations must use
// ContributionMargin instead.
func (e Evaluation) DisplayMargin() decimal.Decimal {
	return utils.RoundMoney(e.ContributionMargin)
}

// IsProfitable reports whether the order earned a strictly positive margin
func (e Evaluation) IsProfitable() bool {
	return e.Label == LabelProfitable
}

// ContributionMargin computes
// commission_fee + delivery_fee - payment_processing_fee - discounts_and_offers - refunds_chargebacks
// exactly. Negative inputs are passed through unchanged.
func ContributionMargin(f Fees) decimal.Decimal {
	margin := decimal.Zero
	for _, term := range marginTerms {
		if term.sign > 0 {
			margin = margin.Add(term.value(f))
		} else {
			margin = margin.Sub(term.value(f))
		}
	}
	return margin
}

// ClassifyMargin labels a margin. A margin of exactly zero is Loss-Making.
func ClassifyMargin(margin decimal.Decimal) ProfitabilityLabel {
	if margin.IsPositive() {
		return LabelProfitable
	}
	return LabelLossMaking
}

// Evaluate computes the margin and label for a set of fees
func Evaluate(f Fees) Evaluation {
	margin := ContributionMargin(f)
	return Evaluation{
		ContributionMargin: margin,
		Label:              ClassifyMargin(margin),
	}
}

// EvaluateOrder evaluates a stored order
func EvaluateOrder(o models.Order) Evaluation {
	return Evaluate(FeesOf(o))
}

// ContributionMarginSQL renders the margin as a per-row SQL expression
func ContributionMarginSQL() string {
	return marginSQL(func(column string) string { return column })
}

// NetRevenueSQL renders the margin as a sum of column totals:
// SUM(commission_fee) + SUM(delivery_fee) - SUM(...) ...
func NetRevenueSQL() string {
	return marginSQL(func(column string) string { return "COALESCE(SUM(" + column + "), 0)" })
}

func marginSQL(wrap func(column string) string) string {
	var b strings.Builder
	for i, term := range marginTerms {
		switch {
		case term.sign < 0:
			b.WriteString(" - ")
		case i > 0:
			b.WriteString(" + ")
		}
		b.WriteString(wrap(term.column))
	}
	return b.String()
}
