// Package amortize computes fixed periodic payments and flat repayment
// schedules using the standard annuity formula.
package amortize

import (
	"errors"
	"time"

	"github.com/adesina/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrInvalidTerms is returned for non-positive principal or tenure, or a
// negative rate.
var ErrInvalidTerms = errors.New("invalid loan terms")

var (
	one          = decimal.NewFromInt(1)
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// Terms are the inputs to a payment computation. AnnualRatePercent of zero
// means an interest-free plan.
type Terms struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TenureMonths      int
}

// Validate checks that the terms can produce a payment.
func (t Terms) Validate() error {
	if t.Principal.LessThanOrEqual(decimal.Zero) || t.TenureMonths <= 0 || t.AnnualRatePercent.IsNegative() {
		return ErrInvalidTerms
	}
	return nil
}

// PeriodicPayment computes the fixed monthly payment that retires the
// principal over the tenure at the given annual rate (annuity/PMT formula).
// Full precision is kept until the final 2-decimal rounding so schedule
// amounts don't compound rounding error.
func PeriodicPayment(principal, annualRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	terms := Terms{Principal: principal, AnnualRatePercent: annualRatePercent, TenureMonths: tenureMonths}
	if err := terms.Validate(); err != nil {
		return decimal.Zero, err
	}

	tenure := decimal.NewFromInt(int64(tenureMonths))
	monthlyRate := annualRatePercent.Div(hundred).Div(monthsInYear)

	if monthlyRate.LessThanOrEqual(decimal.Zero) {
		return principal.Div(tenure).Round(2), nil
	}

	factor := one.Add(monthlyRate).Pow(tenure)
	// Degenerate guard: a factor of exactly 1 would divide by zero below.
	if factor.Equal(one) {
		return principal.Div(tenure).Round(2), nil
	}

	payment := principal.Mul(monthlyRate.Mul(factor)).Div(factor.Sub(one))
	return payment.Round(2), nil
}

// Schedule expands terms into a flat repayment schedule of exactly
// TenureMonths entries. The first payment is due one month after start, and
// every period carries the identical payment amount. paidPeriods marks
// 1-based periods that already have a paid repayment on record.
func Schedule(terms Terms, start time.Time, paidPeriods map[int]bool) ([]models.ScheduleEntry, error) {
	payment, err := PeriodicPayment(terms.Principal, terms.AnnualRatePercent, terms.TenureMonths)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ScheduleEntry, 0, terms.TenureMonths)
	for i := 0; i < terms.TenureMonths; i++ {
		period := i + 1
		status := models.ScheduleEntryPending
		if paidPeriods[period] {
			status = models.ScheduleEntryPaid
		}
		entries = append(entries, models.ScheduleEntry{
			Period:  period,
			DueDate: start.AddDate(0, period, 0),
			Amount:  payment,
			Status:  status,
		})
	}
	return entries, nil
}
