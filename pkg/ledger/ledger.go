package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/adesina/coopledger/pkg/amortize"
	"github.com/adesina/coopledger/pkg/models"
	"github.com/adesina/coopledger/pkg/progress"
	"github.com/adesina/coopledger/pkg/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrPlanNotActive is returned when a mutation targets a completed plan.
	ErrPlanNotActive = errors.New("plan is not active")
	// ErrNonPositiveAmount is returned for zero or negative payment amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Ledger handles the business logic for payment plans and their records.
type Ledger struct {
	storage store.Storage // Use the Storage interface
	builder *progress.Builder
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		builder: progress.NewBuilder(),
	}
}

// CreatePlan initializes a new payment plan for a member. The plan row
// doubles as the plan-setup event on the timeline.
func (l *Ledger) CreatePlan(memberKey, propertyTitle string, price decimal.Decimal, terms amortize.Terms, startDate time.Time) (*models.PaymentPlan, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, amortize.ErrInvalidTerms
	}

	plan := &models.PaymentPlan{
		ID:                uuid.New(),
		MemberKey:         memberKey,
		PropertyTitle:     propertyTitle,
		Price:             price,
		TotalPaid:         decimal.Zero,
		Principal:         terms.Principal,
		AnnualRatePercent: terms.AnnualRatePercent,
		TenureMonths:      terms.TenureMonths,
		StartDate:         startDate,
		Status:            models.PlanStatusActive,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	if err := l.storage.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}
	return plan, nil
}

// GetPlan retrieves a plan by its ID.
func (l *Ledger) GetPlan(id uuid.UUID) (*models.PaymentPlan, error) {
	return l.storage.GetPlan(id)
}

// GetAllPlans retrieves all plans.
func (l *Ledger) GetAllPlans() ([]*models.PaymentPlan, error) {
	return l.storage.GetAllPlans()
}

// GetPlansForMember retrieves all plans belonging to a member.
func (l *Ledger) GetPlansForMember(memberKey string) ([]*models.PaymentPlan, error) {
	return l.storage.GetPlansForMember(memberKey)
}

// UpdatePlan updates an existing plan.
func (l *Ledger) UpdatePlan(plan *models.PaymentPlan) error {
	plan.UpdatedAt = time.Now()
	return l.storage.UpdatePlan(plan)
}

// DeletePlan deletes a plan and its records.
func (l *Ledger) DeletePlan(id uuid.UUID) error {
	return l.storage.DeletePlan(id)
}

// RecordPayment processes a payment against a plan. A completed payment
// raises the plan's authoritative total; the plan closes once the total
// reaches the price. The payment row is stored before the total is updated,
// so a failed plan update leaves a recorded payment with TotalPaid lagging
// behind the history; the milestone report's divergence fields surface that
// gap until the total is corrected.
func (l *Ledger) RecordPayment(planID uuid.UUID, amount decimal.Decimal, method string, status models.RecordStatus, at *time.Time) (*models.PaymentRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}

	plan, err := l.storage.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusActive {
		return nil, ErrPlanNotActive
	}

	payment := &models.PaymentRecord{
		ID:        uuid.New(),
		PlanID:    plan.ID,
		Amount:    amount,
		Method:    method,
		Status:    status,
		Timestamp: at,
	}
	if err := l.storage.CreatePayment(payment); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	if status.Completed() {
		if err := l.applyCompletedAmount(plan, amount); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// RecordLedgerCredit books a credit entry against a plan's payment account.
// Debit entries are accepted for bookkeeping but never affect progress.
// Like RecordPayment, the entry is stored before the plan total is updated;
// a failed update shows up as totals divergence in the milestone report.
func (l *Ledger) RecordLedgerCredit(planID uuid.UUID, amount decimal.Decimal, direction models.LedgerDirection, source string, status models.RecordStatus, paidAt *time.Time) (*models.LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}

	plan, err := l.storage.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusActive {
		return nil, ErrPlanNotActive
	}

	entry := &models.LedgerEntry{
		ID:        uuid.New(),
		PlanID:    plan.ID,
		Amount:    amount,
		Direction: direction,
		Source:    source,
		Status:    status,
		PaidAt:    paidAt,
		CreatedAt: time.Now(),
	}
	if err := l.storage.CreateLedgerEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to store ledger entry: %w", err)
	}

	if direction == models.DirectionCredit && status.Completed() {
		if err := l.applyCompletedAmount(plan, amount); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// applyCompletedAmount adds a completed amount to the plan's authoritative
// total and closes the plan when the price is fully covered.
func (l *Ledger) applyCompletedAmount(plan *models.PaymentPlan, amount decimal.Decimal) error {
	plan.TotalPaid = plan.TotalPaid.Add(amount)
	if plan.TotalPaid.GreaterThanOrEqual(plan.Price) {
		plan.Status = models.PlanStatusCompleted
	}
	plan.UpdatedAt = time.Now()
	if err := l.storage.UpdatePlan(plan); err != nil {
		return fmt.Errorf("failed to update plan total: %w", err)
	}
	return nil
}

// ApproveSchedule records the approval of a deduction sub-schedule on a plan.
func (l *Ledger) ApproveSchedule(planID uuid.UUID, kind models.ScheduleKind) (*models.ScheduleApproval, error) {
	plan, err := l.storage.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	approval := &models.ScheduleApproval{
		ID:         uuid.New(),
		PlanID:     plan.ID,
		Kind:       kind,
		Approved:   true,
		ApprovedAt: &now,
	}
	if err := l.storage.CreateScheduleApproval(approval); err != nil {
		return nil, fmt.Errorf("failed to store schedule approval: %w", err)
	}
	return approval, nil
}

// PreviewPayment computes the fixed monthly payment for the given terms
// without touching storage.
func (l *Ledger) PreviewPayment(terms amortize.Terms) (decimal.Decimal, error) {
	return amortize.PeriodicPayment(terms.Principal, terms.AnnualRatePercent, terms.TenureMonths)
}

// PlanSchedule expands a plan's terms into its repayment schedule, marking
// the leading periods paid based on how many completed payments exist.
func (l *Ledger) PlanSchedule(planID uuid.UUID) ([]models.ScheduleEntry, error) {
	plan, err := l.storage.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	payments, err := l.storage.GetPaymentsForPlan(planID)
	if err != nil {
		return nil, err
	}

	paidPeriods := make(map[int]bool)
	period := 0
	for _, p := range payments {
		if p.Status.Completed() {
			period++
			paidPeriods[period] = true
		}
	}

	terms := amortize.Terms{
		Principal:         plan.Principal,
		AnnualRatePercent: plan.AnnualRatePercent,
		TenureMonths:      plan.TenureMonths,
	}
	return amortize.Schedule(terms, plan.StartDate, paidPeriods)
}

// PlanTimeline assembles the merged display timeline for a plan.
func (l *Ledger) PlanTimeline(planID uuid.UUID) ([]models.TimelineEvent, error) {
	plan, payments, entries, approvals, err := l.planRecords(planID)
	if err != nil {
		return nil, err
	}
	return l.builder.BuildTimeline(payments, entries, plan, approvals), nil
}

// PlanMilestones computes milestone progress and payment statistics for a plan.
func (l *Ledger) PlanMilestones(planID uuid.UUID) (progress.MilestoneReport, progress.Summary, error) {
	plan, payments, entries, approvals, err := l.planRecords(planID)
	if err != nil {
		return progress.MilestoneReport{}, progress.Summary{}, err
	}

	timeline := l.builder.BuildTimeline(payments, entries, plan, approvals)
	report := progress.ComputeMilestones(timeline, plan.Price, plan.TotalPaid)
	return report, progress.Stats(timeline), nil
}

func (l *Ledger) planRecords(planID uuid.UUID) (*models.PaymentPlan, []models.PaymentRecord, []models.LedgerEntry, []models.ScheduleApproval, error) {
	plan, err := l.storage.GetPlan(planID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	paymentPtrs, err := l.storage.GetPaymentsForPlan(planID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	entryPtrs, err := l.storage.GetLedgerEntriesForPlan(planID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	approvalPtrs, err := l.storage.GetScheduleApprovalsForPlan(planID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	payments := make([]models.PaymentRecord, 0, len(paymentPtrs))
	for _, p := range paymentPtrs {
		payments = append(payments, *p)
	}
	entries := make([]models.LedgerEntry, 0, len(entryPtrs))
	for _, e := range entryPtrs {
		entries = append(entries, *e)
	}
	approvals := make([]models.ScheduleApproval, 0, len(approvalPtrs))
	for _, a := range approvalPtrs {
		approvals = append(approvals, *a)
	}
	return plan, payments, entries, approvals, nil
}
