package amortize

import (
	"testing"
	"time"

	"github.com/adesina/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

func TestPeriodicPayment_ZeroInterest(t *testing.T) {
	payment, err := PeriodicPayment(decimal.NewFromInt(1200000), decimal.Zero, 12)
	if err != nil {
		t.Fatalf("Failed to compute payment: %v", err)
	}

	expected := decimal.NewFromInt(100000)
	if !payment.Equal(expected) {
		t.Errorf("Expected payment %s, got %s", expected, payment)
	}
}

func TestPeriodicPayment_Annuity(t *testing.T) {
	// 1,000,000 at 12% annual is 1% monthly; the closed-form PMT over 12
	// periods is 88,848.79.
	payment, err := PeriodicPayment(decimal.NewFromInt(1000000), decimal.NewFromInt(12), 12)
	if err != nil {
		t.Fatalf("Failed to compute payment: %v", err)
	}

	expected := decimal.RequireFromString("88848.79")
	if !payment.Equal(expected) {
		t.Errorf("Expected payment %s, got %s", expected, payment)
	}
}

func TestPeriodicPayment_InvalidTerms(t *testing.T) {
	cases := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		tenure    int
	}{
		{"zero principal", decimal.Zero, decimal.NewFromInt(10), 12},
		{"negative principal", decimal.NewFromInt(-500), decimal.NewFromInt(10), 12},
		{"zero tenure", decimal.NewFromInt(1000), decimal.NewFromInt(10), 0},
		{"negative rate", decimal.NewFromInt(1000), decimal.NewFromInt(-1), 12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PeriodicPayment(tc.principal, tc.rate, tc.tenure)
			if err != ErrInvalidTerms {
				t.Errorf("Expected ErrInvalidTerms, got %v", err)
			}
		})
	}
}

func TestSchedule_Length(t *testing.T) {
	terms := Terms{
		Principal:         decimal.NewFromInt(600000),
		AnnualRatePercent: decimal.NewFromInt(9),
		TenureMonths:      24,
	}

	entries, err := Schedule(terms, time.Now(), nil)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}

	if len(entries) != terms.TenureMonths {
		t.Errorf("Expected %d entries, got %d", terms.TenureMonths, len(entries))
	}
}

func TestSchedule_DueDateOffset(t *testing.T) {
	terms := Terms{
		Principal:         decimal.NewFromInt(120000),
		AnnualRatePercent: decimal.Zero,
		TenureMonths:      6,
	}
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	entries, err := Schedule(terms, start, nil)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}

	// First payment falls one month after start, not on the start date.
	expectedFirst := start.AddDate(0, 1, 0)
	if !entries[0].DueDate.Equal(expectedFirst) {
		t.Errorf("Expected first due date %s, got %s", expectedFirst, entries[0].DueDate)
	}

	for i, entry := range entries {
		expected := start.AddDate(0, i+1, 0)
		if !entry.DueDate.Equal(expected) {
			t.Errorf("Entry %d: expected due date %s, got %s", entry.Period, expected, entry.DueDate)
		}
	}
}

func TestSchedule_FlatAmounts(t *testing.T) {
	terms := Terms{
		Principal:         decimal.NewFromInt(1000000),
		AnnualRatePercent: decimal.NewFromInt(12),
		TenureMonths:      12,
	}

	entries, err := Schedule(terms, time.Now(), nil)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}

	payment, _ := PeriodicPayment(terms.Principal, terms.AnnualRatePercent, terms.TenureMonths)
	for _, entry := range entries {
		if !entry.Amount.Equal(payment) {
			t.Errorf("Entry %d: expected flat amount %s, got %s", entry.Period, payment, entry.Amount)
		}
	}
}

func TestSchedule_PaidPeriods(t *testing.T) {
	terms := Terms{
		Principal:         decimal.NewFromInt(120000),
		AnnualRatePercent: decimal.Zero,
		TenureMonths:      4,
	}

	entries, err := Schedule(terms, time.Now(), map[int]bool{1: true, 2: true})
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}

	for _, entry := range entries {
		expected := models.ScheduleEntryPending
		if entry.Period <= 2 {
			expected = models.ScheduleEntryPaid
		}
		if entry.Status != expected {
			t.Errorf("Entry %d: expected status %s, got %s", entry.Period, expected, entry.Status)
		}
	}
}
