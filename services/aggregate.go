package services

import (
	"sort"

	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/utils"
	"github.com/shopspring/decimal"
)

// evaluatedOrder pairs an order with its derived profitability
type evaluatedOrder struct {
	models.Order
	Evaluation
}

func evaluateAll(orders []models.Order) []evaluatedOrder {
	out := make([]evaluatedOrder, len(orders))
	for i, o := range orders {
		out[i] = evaluatedOrder{Order: o, Evaluation: EvaluateOrder(o)}
	}
	return out
}

// bucket accumulates one group at full precision
type bucket struct {
	key string

	orders       int64
	profitable   int64
	refundOrders int64

	gmv         decimal.Decimal
	margin      decimal.Decimal
	commission  decimal.Decimal
	deliveryFee decimal.Decimal
	processing  decimal.Decimal
	discounts   decimal.Decimal
	refunds     decimal.Decimal

	// delivery_fee / order_value per row, rows with order_value = 0 skipped
	deliveryFeeShare utils.Mean
}

func (b *bucket) add(o evaluatedOrder) {
	b.orders++
	if o.IsProfitable() {
		b.profitable++
	}
	if o.HasRefund() {
		b.refundOrders++
	}

	b.gmv = b.gmv.Add(o.OrderValue)
	b.margin = b.margin.Add(o.ContributionMargin)
	b.commission = b.commission.Add(o.CommissionFee)
	b.deliveryFee = b.deliveryFee.Add(o.DeliveryFee)
	b.processing = b.processing.Add(o.PaymentProcessingFee)
	b.discounts = b.discounts.Add(o.DiscountsAndOffers)
	b.refunds = b.refunds.Add(o.RefundsChargebacks)
	b.deliveryFeeShare.AddOptional(utils.Percent(o.DeliveryFee, o.OrderValue))
}

func (b *bucket) lossMaking() int64 {
	return b.orders - b.profitable
}

func (b *bucket) count() decimal.Decimal {
	return decimal.NewFromInt(b.orders)
}

func (b *bucket) avgOrderValue() *float64 {
	return utils.OptionalFloat(utils.SafeDivide(b.gmv, b.count()))
}

func (b *bucket) avgMargin() *float64 {
	return utils.OptionalFloat(utils.SafeDivide(b.margin, b.count()))
}

func (b *bucket) lossMakingPct() *float64 {
	return utils.OptionalFloat(utils.Percent(decimal.NewFromInt(b.lossMaking()), b.count()))
}

func (b *bucket) refundRatePct() decimal.Decimal {
	pct, _ := utils.Percent(decimal.NewFromInt(b.refundOrders), b.count())
	return pct
}

func (b *bucket) shareOf(total int64) *float64 {
	return utils.OptionalFloat(utils.Percent(b.count(), decimal.NewFromInt(total)))
}

// grouping keeps buckets in first-seen order
type grouping struct {
	keys    []string
	buckets map[string]*bucket
}

func newGrouping(preset ...string) *grouping {
	g := &grouping{buckets: make(map[string]*bucket)}
	for _, key := range preset {
		g.get(key)
	}
	return g
}

func (g *grouping) get(key string) *bucket {
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{key: key}
		g.buckets[key] = b
		g.keys = append(g.keys, key)
	}
	return b
}

// list returns the buckets in key order
func (g *grouping) list() []*bucket {
	out := make([]*bucket, 0, len(g.keys))
	for _, key := range g.keys {
		out = append(out, g.buckets[key])
	}
	return out
}

func groupBy(orders []evaluatedOrder, key func(evaluatedOrder) string, preset ...string) *grouping {
	g := newGrouping(preset...)
	for _, o := range orders {
		g.get(key(o)).add(o)
	}
	return g
}

// having keeps buckets with at least minOrders orders
func having(buckets []*bucket, minOrders int) []*bucket {
	out := buckets[:0:0]
	for _, b := range buckets {
		if b.orders >= int64(minOrders) {
			out = append(out, b)
		}
	}
	return out
}

// sortBuckets orders by less, falling back to the group key for stable output
func sortBuckets(buckets []*bucket, less func(a, b *bucket) int) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if c := less(buckets[i], buckets[j]); c != 0 {
			return c < 0
		}
		return buckets[i].key < buckets[j].key
	})
}

func limitBuckets(buckets []*bucket, limit int) []*bucket {
	if limit > 0 && len(buckets) > limit {
		return buckets[:limit]
	}
	return buckets
}
