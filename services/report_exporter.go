package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XLSXContentType is the MIME type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrStorageUnavailable is returned by Publish when no object storage is configured
var ErrStorageUnavailable = errors.New("report storage is not configured")

// Sheet names of the exported workbook, in tab order
const (
	SheetOverview          = "Overview"
	SheetPaymentMethods    = "Payment Methods"
	SheetMonthlyTrend      = "Monthly Trend"
	SheetProfitability     = "Profitability"
	SheetDiscountImpact    = "Discount Impact"
	SheetOrderValueBands   = "Order Value Bands"
	SheetRestaurantRefunds = "Restaurant Refunds"
	SheetRestaurantProfit  = "Restaurant Profit"
	SheetCustomers         = "Customers"
)

// sheetData is one report laid out as a header row plus data rows
type sheetData struct {
	name   string
	header []string
	rows   [][]interface{}
}

// opt turns an absent value into a blank cell
func opt(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func summarySheets(s *ReportSummary) []sheetData {
	o := s.Overview
	sheets := []sheetData{{
		name: SheetOverview,
		header: []string{"total_orders", "total_gmv", "avg_order_value", "total_commission", "total_delivery_fees",
			"total_processing_fees", "total_discounts", "total_refunds", "net_platform_revenue",
			"avg_contribution_margin", "avg_delivery_fee_pct", "profitable_orders", "loss_making_orders",
			"profitable_pct", "refund_rate_pct"},
		rows: [][]interface{}{{o.TotalOrders, o.TotalGMV, opt(o.AvgOrderValue), o.TotalCommission, o.TotalDeliveryFees,
			o.TotalProcessingFees, o.TotalDiscounts, o.TotalRefunds, o.NetPlatformRevenue,
			opt(o.AvgContributionMargin), opt(o.AvgDeliveryFeePct), o.ProfitableOrders, o.LossMakingOrders,
			opt(o.ProfitablePct), opt(o.RefundRatePct)}},
	}}

	pm := sheetData{name: SheetPaymentMethods, header: []string{"payment_method", "total_orders", "avg_order_value", "total_gmv", "avg_contribution_margin", "pct_of_orders"}}
	for _, r := range s.PaymentMethods {
		pm.rows = append(pm.rows, []interface{}{r.PaymentMethod, r.TotalOrders, opt(r.AvgOrderValue), r.TotalGMV, opt(r.AvgContributionMargin), opt(r.PctOfOrders)})
	}

	mt := sheetData{name: SheetMonthlyTrend, header: []string{"order_month", "total_orders", "total_gmv", "avg_order_value", "net_platform_revenue"}}
	for _, r := range s.MonthlyTrend {
		mt.rows = append(mt.rows, []interface{}{r.OrderMonth, r.TotalOrders, r.TotalGMV, opt(r.AvgOrderValue), r.NetPlatformRevenue})
	}

	ps := sheetData{name: SheetProfitability, header: []string{"profitability", "order_count", "total_margin", "avg_order_value", "avg_contribution_margin", "pct_of_orders"}}
	for _, r := range s.Profitability {
		ps.rows = append(ps.rows, []interface{}{string(r.Profitability), r.OrderCount, r.TotalMargin, opt(r.AvgOrderValue), opt(r.AvgContributionMargin), opt(r.PctOfOrders)})
	}

	di := sheetData{name: SheetDiscountImpact, header: []string{"discount_band", "order_count", "avg_order_value", "avg_contribution_margin", "loss_making_pct"}}
	for _, r := range s.DiscountImpact {
		di.rows = append(di.rows, []interface{}{r.DiscountBand, r.OrderCount, opt(r.AvgOrderValue), opt(r.AvgContributionMargin), opt(r.LossMakingPct)})
	}

	ob := sheetData{name: SheetOrderValueBands, header: []string{"order_band", "order_count", "delivery_fee_pct", "avg_contribution_margin"}}
	for _, r := range s.OrderValueBands {
		ob.rows = append(ob.rows, []interface{}{r.OrderBand, r.OrderCount, opt(r.DeliveryFeePct), opt(r.AvgContributionMargin)})
	}

	rr := sheetData{name: SheetRestaurantRefunds, header: []string{"restaurant_id", "total_orders", "refund_orders", "refund_rate_pct", "total_refund"}}
	for _, r := range s.RestaurantRefunds {
		rr.rows = append(rr.rows, []interface{}{r.RestaurantID, r.TotalOrders, r.RefundOrders, opt(r.RefundRatePct), r.TotalRefund})
	}

	rp := sheetData{name: SheetRestaurantProfit, header: []string{"restaurant_id", "total_orders", "total_gmv", "total_margin", "avg_contribution_margin", "loss_making_pct"}}
	for _, r := range s.RestaurantProfitability {
		rp.rows = append(rp.rows, []interface{}{r.RestaurantID, r.TotalOrders, r.TotalGMV, r.TotalMargin, opt(r.AvgContributionMargin), opt(r.LossMakingPct)})
	}

	cp := sheetData{name: SheetCustomers, header: []string{"customer_id", "total_orders", "total_spend", "total_margin", "avg_order_value"}}
	for _, r := range s.CustomerProfitability {
		cp.rows = append(cp.rows, []interface{}{r.CustomerID, r.TotalOrders, r.TotalSpend, r.TotalMargin, opt(r.AvgOrderValue)})
	}

	return append(sheets, pm, mt, ps, di, ob, rr, rp, cp)
}

// BuildWorkbook lays every report of the summary out on its own sheet.
// Row 1 holds the column names; absent values are blank cells.
func BuildWorkbook(summary *ReportSummary) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range summarySheets(summary) {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.name, err)
		}

		if err := writeSheet(f, sheet, headerStyle); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet sheetData, headerStyle int) error {
	header := make([]interface{}, len(sheet.header))
	for i, h := range sheet.header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet.name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet.name, err)
	}

	last, err := excelize.CoordinatesToCellName(len(sheet.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet.name, err)
	}

	for i, row := range sheet.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet.name, i+2, err)
		}
	}
	return nil
}

// PublishedReport locates an exported workbook in object storage
type PublishedReport struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportExporter renders report summaries as xlsx workbooks
type ReportExporter struct {
	reports *ReportService
	storage S3Interface
	opts    SummaryOptions
}

// NewReportExporter creates an exporter. storage may be nil, in which case
// Publish returns ErrStorageUnavailable.
func NewReportExporter(reports *ReportService, storage S3Interface, opts SummaryOptions) *ReportExporter {
	return &ReportExporter{reports: reports, storage: storage, opts: opts}
}

// Export computes every report for filter and returns the workbook bytes
func (e *ReportExporter) Export(ctx context.Context, filter ReportFilter) ([]byte, *ReportSummary, error) {
	summary, err := e.reports.Summary(ctx, filter, e.opts)
	if err != nil {
		return nil, nil, err
	}

	f, err := BuildWorkbook(summary)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Logger.Warn("failed to close workbook", zap.Error(closeErr))
		}
	}()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), summary, nil
}

// Publish exports the workbook to object storage and returns a presigned link
func (e *ReportExporter) Publish(ctx context.Context, filter ReportFilter) (*PublishedReport, error) {
	if e.storage == nil {
		return nil, ErrStorageUnavailable
	}

	content, summary, err := e.Export(ctx, filter)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("reports/%s_profitability.xlsx", summary.GeneratedAt.Format("20060102T150405Z"))
	if err := e.storage.UploadObject(ctx, key, XLSXContentType, content); err != nil {
		return nil, err
	}

	url, err := e.storage.GetPresignedURL(ctx, key)
	if err != nil {
		// no workbook stays in the bucket without a link
		if deleteErr := e.storage.DeleteObject(ctx, key); deleteErr != nil {
			logger.Logger.Warn("failed to remove unpublished report", zap.String("key", key), zap.Error(deleteErr))
		}
		return nil, err
	}

	logger.Logger.Info("profitability report published",
		zap.String("key", key),
		zap.Int("bytes", len(content)),
		zap.Int64("orders", summary.Overview.TotalOrders),
	)
	return &PublishedReport{Key: key, URL: url, GeneratedAt: summary.GeneratedAt}, nil
}
