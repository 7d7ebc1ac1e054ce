package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SafeDivide divides num by den. ok is false when den is zero, which callers
// treat as "no value" (SQL NULLIF(den, 0)).
func SafeDivide(num, den decimal.Decimal) (result decimal.Decimal, ok bool) {
	if den.IsZero() {
		return decimal.Zero, false
	}
	return num.Div(den), true
}

// Percent returns num / den * 100, absent when den is zero
func Percent(num, den decimal.Decimal) (decimal.Decimal, bool) {
	q, ok := SafeDivide(num, den)
	if !ok {
		return decimal.Zero, false
	}
	return q.Mul(hundred), true
}

// RoundMoney rounds half away from zero to two decimal places, like ROUND(x, 2)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToFloat rounds to two places and converts for JSON output
func ToFloat(d decimal.Decimal) float64 {
	return RoundMoney(d).InexactFloat64()
}

// OptionalFloat is ToFloat for values that may be absent
func OptionalFloat(d decimal.Decimal, ok bool) *float64 {
	if !ok {
		return nil
	}
	f := ToFloat(d)
	return &f
}

// Mean accumulates an average that skips absent values, like SQL AVG over
// a column containing NULLs.
type Mean struct {
	sum   decimal.Decimal
	count int64
}

// Add includes d in the average
func (m *Mean) Add(d decimal.Decimal) {
	m.sum = m.sum.Add(d)
	m.count++
}

// AddOptional includes d only when ok is true
func (m *Mean) AddOptional(d decimal.Decimal, ok bool) {
	if ok {
		m.Add(d)
	}
}

// Count is the number of values included so far
func (m *Mean) Count() int64 {
	return m.count
}

// Sum is the total of the values included so far
func (m *Mean) Sum() decimal.Decimal {
	return m.sum
}

// Value returns the mean, absent when nothing was added
func (m *Mean) Value() (decimal.Decimal, bool) {
	return SafeDivide(m.sum, decimal.NewFromInt(m.count))
}
