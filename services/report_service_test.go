package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// Margins: o1 6, o2 4, o3 0, o4 -1, o5 5, o6 -12, o7 5, o8 16, o9 2, o10 -6 (total 19).
// o2, o5 and o9 have a zero order value.
var fixtureOrders = []orderSpec{
	{id: "o1", customer: "C1", restaurant: "R1", date: "2024-01-05", method: "Credit Card", value: "20", delivery: "2", commission: "5", processing: "1"},
	{id: "o2", customer: "C2", restaurant: "R1", date: "2024-01-10", method: "Credit Card", value: "0", delivery: "3", commission: "2", processing: "1"},
	{id: "o3", customer: "C1", restaurant: "R1", date: "2024-01-20", method: "Cash", value: "10", delivery: "1", commission: "3", processing: "2", discount: "2"},
	{id: "o4", customer: "C3", restaurant: "R2", date: "2024-02-01", method: "Digital Wallet", value: "40", delivery: "4", commission: "6", processing: "1", discount: "10"},
	{id: "o5", customer: "C2", restaurant: "R2", date: "2024-02-14", method: "Cash", value: "0", delivery: "5", commission: "1", processing: "1"},
	{id: "o6", customer: "C3", restaurant: "R2", date: "2024-02-20", method: "Credit Card", value: "60", delivery: "3", commission: "12", processing: "2", discount: "20", refund: "5"},
	{id: "o7", customer: "C1", restaurant: "R3", date: "2024-03-01", method: "Digital Wallet", value: "25", delivery: "5", commission: "4", processing: "1", discount: "3"},
	{id: "o8", customer: "C4", restaurant: "R3", date: "2024-03-02", method: "Cash", value: "50", delivery: "10", commission: "8", processing: "2"},
	{id: "o9", customer: "C4", restaurant: "R3", date: "2024-03-03", method: "Credit Card", value: "0", delivery: "2", commission: "1", processing: "1"},
	{id: "o10", customer: "C2", restaurant: "R1", date: "2024-03-04", method: "Digital Wallet", value: "30", delivery: "6", commission: "5", processing: "1", discount: "6", refund: "10"},
}

func f(v float64) *float64 {
	return &v
}

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// ReportServiceTestSuite runs every report against the same ten orders
type ReportServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *ReportService
	ctx     context.Context
}

func (s *ReportServiceTestSuite) SetupTest() {
	s.db = setupOrdersTestDB(s.T())
	seedOrders(s.T(), s.db, fixtureOrders...)
	s.service = NewReportService(s.db)
	s.ctx = context.Background()
}

func (s *ReportServiceTestSuite) TestOverview() {
	o, err := s.service.Overview(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal(int64(10), o.TotalOrders)
	s.Equal(235.0, o.TotalGMV)
	s.Equal(f(23.5), o.AvgOrderValue)
	s.Equal(47.0, o.TotalCommission)
	s.Equal(41.0, o.TotalDeliveryFees)
	s.Equal(13.0, o.TotalProcessingFees)
	s.Equal(41.0, o.TotalDiscounts)
	s.Equal(15.0, o.TotalRefunds)
	s.Equal(19.0, o.NetPlatformRevenue)
	s.Equal(f(1.9), o.AvgContributionMargin)
	s.Equal(int64(6), o.ProfitableOrders)
	s.Equal(int64(4), o.LossMakingOrders)
	s.Equal(f(60), o.ProfitablePct)
	s.Equal(f(6.38), o.RefundRatePct)
}

// Seven orders have a non-zero order value: delivery fee shares are
// 10, 10, 10, 5, 20, 20 and 20 percent, so the mean is 95/7.
func (s *ReportServiceTestSuite) TestOverviewDeliveryFeePctSkipsZeroOrderValues() {
	o, err := s.service.Overview(s.ctx, ReportFilter{})
	s.Require().NoError(err)
	s.Equal(f(13.57), o.AvgDeliveryFeePct)
}

func (s *ReportServiceTestSuite) TestPaymentMethods() {
	rows, err := s.service.PaymentMethods(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal([]PaymentMethodRow{
		{PaymentMethod: "Cash", TotalOrders: 3, AvgOrderValue: f(20), TotalGMV: 60, AvgContributionMargin: f(7), PctOfOrders: f(30)},
		{PaymentMethod: "Credit Card", TotalOrders: 4, AvgOrderValue: f(20), TotalGMV: 80, AvgContributionMargin: f(0), PctOfOrders: f(40)},
		{PaymentMethod: "Digital Wallet", TotalOrders: 3, AvgOrderValue: f(31.67), TotalGMV: 95, AvgContributionMargin: f(-0.67), PctOfOrders: f(30)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestMonthlyTrend() {
	rows, err := s.service.MonthlyTrend(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal([]MonthlyRow{
		{OrderMonth: "2024-01", TotalOrders: 3, TotalGMV: 30, AvgOrderValue: f(10), NetPlatformRevenue: 10},
		{OrderMonth: "2024-02", TotalOrders: 3, TotalGMV: 100, AvgOrderValue: f(33.33), NetPlatformRevenue: -8},
		{OrderMonth: "2024-03", TotalOrders: 4, TotalGMV: 105, AvgOrderValue: f(26.25), NetPlatformRevenue: 17},
	}, rows)
}

func (s *ReportServiceTestSuite) TestProfitabilitySplit() {
	rows, err := s.service.ProfitabilitySplit(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal([]ProfitabilityRow{
		{Profitability: LabelProfitable, OrderCount: 6, TotalMargin: 38, AvgOrderValue: f(15.83), AvgContributionMargin: f(6.33), PctOfOrders: f(60)},
		{Profitability: LabelLossMaking, OrderCount: 4, TotalMargin: -19, AvgOrderValue: f(35), AvgContributionMargin: f(-4.75), PctOfOrders: f(40)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestDiscountImpact() {
	rows, err := s.service.DiscountImpact(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal([]DiscountBandRow{
		{DiscountBand: DiscountNone, OrderCount: 5, AvgOrderValue: f(14), AvgContributionMargin: f(6.6), LossMakingPct: f(0)},
		{DiscountBand: DiscountLow, OrderCount: 2, AvgOrderValue: f(17.5), AvgContributionMargin: f(2.5), LossMakingPct: f(50)},
		{DiscountBand: DiscountMid, OrderCount: 2, AvgOrderValue: f(35), AvgContributionMargin: f(-3.5), LossMakingPct: f(100)},
		{DiscountBand: DiscountHigh, OrderCount: 1, AvgOrderValue: f(60), AvgContributionMargin: f(-12), LossMakingPct: f(100)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestOrderValueBands() {
	rows, err := s.service.OrderValueBands(s.ctx, ReportFilter{})
	s.Require().NoError(err)

	s.Equal([]OrderValueBandRow{
		// o2, o5 and o9 land here with a zero order value; only o3 contributes a share
		{OrderBand: OrderBandLow, OrderCount: 4, DeliveryFeePct: f(10), AvgContributionMargin: f(2.75)},
		{OrderBand: OrderBandMid, OrderCount: 2, DeliveryFeePct: f(15), AvgContributionMargin: f(5.5)},
		{OrderBand: OrderBandHigh, OrderCount: 2, DeliveryFeePct: f(15), AvgContributionMargin: f(-3.5)},
		{OrderBand: OrderBandPremium, OrderCount: 2, DeliveryFeePct: f(12.5), AvgContributionMargin: f(2)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestRestaurantRefunds() {
	rows, err := s.service.RestaurantRefunds(s.ctx, ReportFilter{}, 3, 10)
	s.Require().NoError(err)

	s.Equal([]RestaurantRefundRow{
		{RestaurantID: "R2", TotalOrders: 3, RefundOrders: 1, RefundRatePct: f(33.33), TotalRefund: 5},
		{RestaurantID: "R1", TotalOrders: 4, RefundOrders: 1, RefundRatePct: f(25), TotalRefund: 10},
		{RestaurantID: "R3", TotalOrders: 3, RefundOrders: 0, RefundRatePct: f(0), TotalRefund: 0},
	}, rows)
}

func (s *ReportServiceTestSuite) TestRestaurantRefundsHavingAndLimit() {
	rows, err := s.service.RestaurantRefunds(s.ctx, ReportFilter{}, 4, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("R1", rows[0].RestaurantID)

	rows, err = s.service.RestaurantRefunds(s.ctx, ReportFilter{}, 1, 2)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("R2", rows[0].RestaurantID)
	s.Equal("R1", rows[1].RestaurantID)

	rows, err = s.service.RestaurantRefunds(s.ctx, ReportFilter{}, DefaultMinRefundOrders, 10)
	s.Require().NoError(err)
	s.Empty(rows, "no restaurant reaches five orders")
}

func (s *ReportServiceTestSuite) TestRestaurantProfitability() {
	rows, err := s.service.RestaurantProfitability(s.ctx, ReportFilter{}, 3, 0)
	s.Require().NoError(err)

	s.Equal([]RestaurantProfitRow{
		{RestaurantID: "R2", TotalOrders: 3, TotalGMV: 100, TotalMargin: -8, AvgContributionMargin: f(-2.67), LossMakingPct: f(66.67)},
		{RestaurantID: "R1", TotalOrders: 4, TotalGMV: 60, TotalMargin: 4, AvgContributionMargin: f(1), LossMakingPct: f(50)},
		{RestaurantID: "R3", TotalOrders: 3, TotalGMV: 75, TotalMargin: 23, AvgContributionMargin: f(7.67), LossMakingPct: f(0)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestCustomerProfitability() {
	rows, err := s.service.CustomerProfitability(s.ctx, ReportFilter{}, 2)
	s.Require().NoError(err)

	s.Equal([]CustomerProfitRow{
		{CustomerID: "C4", TotalOrders: 2, TotalSpend: 50, TotalMargin: 18, AvgOrderValue: f(25)},
		{CustomerID: "C1", TotalOrders: 3, TotalSpend: 55, TotalMargin: 11, AvgOrderValue: f(18.33)},
	}, rows)
}

func (s *ReportServiceTestSuite) TestFilters() {
	o, err := s.service.Overview(s.ctx, ReportFilter{PaymentMethod: "Cash"})
	s.Require().NoError(err)
	s.Equal(int64(3), o.TotalOrders)
	s.Equal(21.0, o.NetPlatformRevenue)

	o, err = s.service.Overview(s.ctx, ReportFilter{From: day("2024-02-01"), To: day("2024-02-20")})
	s.Require().NoError(err)
	s.Equal(int64(3), o.TotalOrders, "both bounds are inclusive days")
	s.Equal(-8.0, o.NetPlatformRevenue)

	o, err = s.service.Overview(s.ctx, ReportFilter{From: day("2024-03-03")})
	s.Require().NoError(err)
	s.Equal(int64(2), o.TotalOrders)
}

func (s *ReportServiceTestSuite) TestSumOfMarginsMatchesSQLNetRevenue() {
	for _, filter := range []ReportFilter{
		{},
		{PaymentMethod: "Credit Card"},
		{From: day("2024-02-01"), To: day("2024-03-02")},
	} {
		total, err := s.service.TotalContributionMargin(s.ctx, filter)
		s.Require().NoError(err)
		net, err := s.service.NetPlatformRevenueSQL(s.ctx, filter)
		s.Require().NoError(err)

		s.InDelta(total.InexactFloat64(), net.InexactFloat64(), 0.01, "filter %+v", filter)
	}

	total, err := s.service.TotalContributionMargin(s.ctx, ReportFilter{})
	s.Require().NoError(err)
	s.Equal("19", total.String())
}

func (s *ReportServiceTestSuite) TestCheckNetRevenue() {
	check, err := s.service.CheckNetRevenue(s.ctx, ReportFilter{})
	s.Require().NoError(err)
	s.True(check.Consistent)
	s.Equal(19.0, check.FromOrders)
	s.InDelta(19.0, check.FromColumnTotals, 0.01)

	check, err = s.service.CheckNetRevenue(s.ctx, ReportFilter{PaymentMethod: "Nobody Pays This Way"})
	s.Require().NoError(err)
	s.True(check.Consistent, "empty selections agree at zero")
	s.Equal(0.0, check.FromOrders)
	s.Equal(0.0, check.FromColumnTotals)
}

func (s *ReportServiceTestSuite) TestSummaryMatchesIndividualReports() {
	opts := SummaryOptions{MinRefundOrders: 3, MinRestaurantOrders: 3, Limit: 2}
	summary, err := s.service.Summary(s.ctx, ReportFilter{}, opts)
	s.Require().NoError(err)

	overview, err := s.service.Overview(s.ctx, ReportFilter{})
	s.Require().NoError(err)
	s.Equal(*overview, summary.Overview)

	refunds, err := s.service.RestaurantRefunds(s.ctx, ReportFilter{}, 3, 2)
	s.Require().NoError(err)
	s.Equal(refunds, summary.RestaurantRefunds)

	s.Len(summary.PaymentMethods, 3)
	s.Len(summary.MonthlyTrend, 3)
	s.Len(summary.Profitability, 2)
	s.Len(summary.DiscountImpact, 4)
	s.Len(summary.OrderValueBands, 4)
	s.Len(summary.RestaurantProfitability, 2)
	s.Len(summary.CustomerProfitability, 2)
	s.False(summary.GeneratedAt.IsZero())
}

func TestReportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceTestSuite))
}

func TestReportsOnEmptyStore(t *testing.T) {
	db := setupOrdersTestDB(t)
	service := NewReportService(db)
	ctx := context.Background()

	summary, err := service.Summary(ctx, ReportFilter{}, DefaultSummaryOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(0), summary.Overview.TotalOrders)
	assert.Nil(t, summary.Overview.AvgOrderValue)
	assert.Nil(t, summary.Overview.RefundRatePct, "refund rate is undefined without GMV")
	assert.Nil(t, summary.Overview.AvgDeliveryFeePct)
	assert.Empty(t, summary.PaymentMethods)
	assert.Empty(t, summary.MonthlyTrend)
	assert.Empty(t, summary.RestaurantRefunds)
	assert.Empty(t, summary.CustomerProfitability)

	require.Len(t, summary.Profitability, 2)
	assert.Equal(t, int64(0), summary.Profitability[0].OrderCount)
	assert.Nil(t, summary.Profitability[0].PctOfOrders)

	require.Len(t, summary.OrderValueBands, 4)
	for _, row := range summary.OrderValueBands {
		assert.Nil(t, row.DeliveryFeePct)
		assert.Nil(t, row.AvgContributionMargin)
	}

	net, err := service.NetPlatformRevenueSQL(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.True(t, net.IsZero())
}

func TestOrderValueBandAllZeroValues(t *testing.T) {
	db := setupOrdersTestDB(t)
	seedOrders(t, db,
		orderSpec{id: "z1", customer: "C1", restaurant: "R1", date: "2024-05-01", method: "Cash", value: "0", delivery: "4", commission: "1", processing: "1"},
		orderSpec{id: "z2", customer: "C1", restaurant: "R1", date: "2024-05-02", method: "Cash", value: "0", delivery: "2", commission: "1", processing: "1"},
	)

	rows, err := NewReportService(db).OrderValueBands(context.Background(), ReportFilter{})
	require.NoError(t, err)

	low := rows[0]
	assert.Equal(t, OrderBandLow, low.OrderBand)
	assert.Equal(t, int64(2), low.OrderCount)
	assert.Nil(t, low.DeliveryFeePct, "no non-zero order value means no delivery fee share")
	assert.Equal(t, f(3), low.AvgContributionMargin)
}

func TestSumOfMarginsMatchesSQLNetRevenueWithCents(t *testing.T) {
	db := setupOrdersTestDB(t)

	orders := make([]models.Order, 0, 250)
	for i := 0; i < 250; i++ {
		cents := func(base int) decimal.Decimal {
			return decimal.New(int64(base+(i*37)%500), -2)
		}
		orders = append(orders, models.Order{
			OrderID:              fmt.Sprintf("c%03d", i),
			CustomerID:           fmt.Sprintf("C%d", i%17),
			RestaurantID:         fmt.Sprintf("R%d", i%11),
			OrderDate:            time.Date(2024, time.Month(1+i%12), 1+i%27, 10, 0, 0, 0, time.UTC),
			PaymentMethod:        []string{"Cash", "Credit Card", "Digital Wallet"}[i%3],
			OrderValue:           cents(1000),
			DeliveryFee:          cents(100),
			CommissionFee:        cents(250),
			PaymentProcessingFee: cents(30),
			DiscountsAndOffers:   cents(0),
			RefundsChargebacks:   decimal.New(int64(i%4*199), -2),
		})
	}
	_, err := LoadOrders(context.Background(), db, orders, 50)
	require.NoError(t, err)

	service := NewReportService(db)
	total, err := service.TotalContributionMargin(context.Background(), ReportFilter{})
	require.NoError(t, err)
	net, err := service.NetPlatformRevenueSQL(context.Background(), ReportFilter{})
	require.NoError(t, err)

	expected := decimal.Zero
	for _, o := range orders {
		expected = expected.Add(EvaluateOrder(o).ContributionMargin)
	}
	assert.True(t, expected.Equal(total), "in-process sum is exact: want %s got %s", expected, total)
	assert.InDelta(t, total.InexactFloat64(), net.InexactFloat64(), 0.01)
}
