package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"github.com/kendall-kelly/delivery-profitability-api/models"
	"github.com/kendall-kelly/delivery-profitability-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultLoadBatchSize is the number of rows per INSERT statement
const DefaultLoadBatchSize = 200

// LoadError describes a CSV row or header that could not be loaded
type LoadError struct {
	Code    string
	Line    int
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

// column aliases after header normalisation
var (
	orderDateColumns    = []string{"order_date_and_time", "order_date"}
	deliveryDateColumns = []string{"delivery_date_and_time", "delivery_date"}
	requiredColumns     = []string{
		"order_id", "customer_id", "restaurant_id", "order_value", "delivery_fee",
		"commission_fee", "payment_processing_fee", "discounts_and_offers", "payment_method",
	}
)

// normalizeHeader turns "Refunds/Chargebacks" into "refunds_chargebacks"
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "/", "_")
}

type csvRow struct {
	line   int
	fields []string
	index  map[string]int
}

func (r csvRow) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r csvRow) first(columns []string) string {
	for _, c := range columns {
		if v := r.get(c); v != "" {
			return v
		}
	}
	return ""
}

func (r csvRow) invalid(column, value string) error {
	return &LoadError{
		Code:    "INVALID_VALUE",
		Line:    r.line,
		Message: fmt.Sprintf("invalid %s %q", column, value),
	}
}

func (r csvRow) money(column string) (decimal.Decimal, error) {
	raw := r.get(column)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(strings.TrimPrefix(raw, "$"))
	if err != nil {
		return decimal.Zero, r.invalid(column, raw)
	}
	return v, nil
}

// discount accepts a plain amount, "None", "N off ..." or "P% ..." where the
// percentage applies to the order value.
func (r csvRow) discount(orderValue decimal.Decimal) (decimal.Decimal, error) {
	raw := r.get("discounts_and_offers")
	if raw == "" || strings.EqualFold(raw, "none") {
		return decimal.Zero, nil
	}
	if v, err := decimal.NewFromString(strings.TrimPrefix(raw, "$")); err == nil {
		return v, nil
	}

	token := strings.Fields(raw)[0]
	if pct, ok := strings.CutSuffix(token, "%"); ok {
		p, err := decimal.NewFromString(pct)
		if err != nil {
			return decimal.Zero, r.invalid("discounts_and_offers", raw)
		}
		return orderValue.Mul(p).Div(decimal.NewFromInt(100)).Round(2), nil
	}
	if strings.Contains(strings.ToLower(raw), "off") {
		v, err := decimal.NewFromString(strings.TrimPrefix(token, "$"))
		if err != nil {
			return decimal.Zero, r.invalid("discounts_and_offers", raw)
		}
		return v, nil
	}
	return decimal.Zero, r.invalid("discounts_and_offers", raw)
}

func (r csvRow) timestamp(columns []string) (*time.Time, error) {
	raw := r.first(columns)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, r.invalid(columns[0], raw)
}

func (r csvRow) order() (models.Order, error) {
	var (
		o   models.Order
		err error
	)

	o.OrderID = r.get("order_id")
	o.CustomerID = r.get("customer_id")
	o.RestaurantID = r.get("restaurant_id")
	o.PaymentMethod = r.get("payment_method")
	if o.OrderID == "" {
		return o, &LoadError{Code: "INVALID_VALUE", Line: r.line, Message: "order_id is empty"}
	}

	orderDate, err := r.timestamp(orderDateColumns)
	if err != nil {
		return o, err
	}
	if orderDate == nil {
		return o, &LoadError{Code: "INVALID_VALUE", Line: r.line, Message: "order date is empty"}
	}
	o.OrderDate = *orderDate

	if o.DeliveryDate, err = r.timestamp(deliveryDateColumns); err != nil {
		return o, err
	}
	if o.OrderValue, err = r.money("order_value"); err != nil {
		return o, err
	}
	if o.DeliveryFee, err = r.money("delivery_fee"); err != nil {
		return o, err
	}
	if o.CommissionFee, err = r.money("commission_fee"); err != nil {
		return o, err
	}
	if o.PaymentProcessingFee, err = r.money("payment_processing_fee"); err != nil {
		return o, err
	}
	if o.RefundsChargebacks, err = r.money("refunds_chargebacks"); err != nil {
		return o, err
	}
	if o.DiscountsAndOffers, err = r.discount(o.OrderValue); err != nil {
		return o, err
	}
	return o, nil
}

// ParseOrdersCSV reads an orders export. Headers are matched case-insensitively
// with spaces and slashes treated as underscores.
func ParseOrdersCSV(r io.Reader) ([]models.Order, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: "EMPTY_FILE", Message: "CSV file has no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, &LoadError{Code: "MISSING_COLUMN", Message: fmt.Sprintf("missing column %s", c)}
		}
	}
	if !hasAny(index, orderDateColumns) {
		return nil, &LoadError{Code: "MISSING_COLUMN", Message: "missing column order_date_and_time"}
	}

	var orders []models.Order
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if isBlank(fields) {
			continue
		}

		order, err := csvRow{line: line, fields: fields, index: index}.order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func hasAny(index map[string]int, columns []string) bool {
	for _, c := range columns {
		if _, ok := index[c]; ok {
			return true
		}
	}
	return false
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// LoadOrders inserts orders in batches. Orders whose order_id already exists
// are skipped, so loading the same export twice changes nothing.
func LoadOrders(ctx context.Context, db *gorm.DB, orders []models.Order, batchSize int) (int64, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	if batchSize < 1 {
		batchSize = DefaultLoadBatchSize
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		CreateInBatches(&orders, batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert orders: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SeedFromFile loads a CSV export into the orders table
func SeedFromFile(ctx context.Context, db *gorm.DB, path string) (int64, error) {
	if err := utils.ValidateSeedFile(path); err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Logger.Warn("failed to close seed file", zap.Error(closeErr))
		}
	}()

	orders, err := ParseOrdersCSV(f)
	if err != nil {
		return 0, err
	}

	inserted, err := LoadOrders(ctx, db, orders, DefaultLoadBatchSize)
	if err != nil {
		return 0, err
	}

	logger.Logger.Info("orders seeded",
		zap.String("path", path),
		zap.Int("rows", len(orders)),
		zap.Int64("inserted", inserted),
	)
	return inserted, nil
}
