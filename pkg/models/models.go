package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
)

// PaymentPlan is a member's purchase plan for a property. Price is the full
// amount to be paid; TotalPaid is the backend's authoritative running total
// and is maintained independently of the individual payment records.
type PaymentPlan struct {
	ID                uuid.UUID       `json:"id"`
	MemberKey         string          `json:"member_key"` // Link to external member system
	PropertyTitle     string          `json:"property_title"`
	Price             decimal.Decimal `json:"price"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	TenureMonths      int             `json:"tenure_months"`
	StartDate         time.Time       `json:"start_date"`
	Status            PlanStatus      `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusSuccess   RecordStatus = "success"
	RecordStatusPending   RecordStatus = "pending"
)

// Completed reports whether a record status counts as a finished payment.
func (s RecordStatus) Completed() bool {
	return s == RecordStatusCompleted || s == RecordStatusSuccess
}

// PaymentRecord is a direct payment made against a plan. Timestamp may be
// absent on records imported from older systems.
type PaymentRecord struct {
	ID        uuid.UUID       `json:"id"`
	PlanID    uuid.UUID       `json:"plan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"` // e.g. "wallet", "cash", "mortgage"
	Status    RecordStatus    `json:"status"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

type LedgerDirection string

const (
	DirectionCredit LedgerDirection = "credit"
	DirectionDebit  LedgerDirection = "debit"
)

// LedgerEntry is a bookkeeping record on a plan's payment account. Only
// credit entries represent money flowing in and participate in progress
// tracking.
type LedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	PlanID    uuid.UUID       `json:"plan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Direction LedgerDirection `json:"direction"`
	Source    string          `json:"source"` // e.g. "mortgage", "cooperative"
	Status    RecordStatus    `json:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ScheduleKind string

const (
	ScheduleKindMortgage    ScheduleKind = "mortgage"
	ScheduleKindCooperative ScheduleKind = "cooperative"
)

// ScheduleApproval records the approval of a deduction sub-schedule
// (mortgage or cooperative) on a plan.
type ScheduleApproval struct {
	ID         uuid.UUID    `json:"id"`
	PlanID     uuid.UUID    `json:"plan_id"`
	Kind       ScheduleKind `json:"kind"`
	Approved   bool         `json:"approved"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty"`
}

type EventType string

const (
	EventTypePayment          EventType = "payment"
	EventTypePlanSetup        EventType = "plan_setup"
	EventTypeScheduleApproval EventType = "schedule_approval"
	EventTypeMilestone        EventType = "milestone"
)

type EventStatus string

const (
	EventStatusCompleted EventStatus = "completed"
	EventStatusPending   EventStatus = "pending"
	// EventStatusOverdue is a valid display status but nothing derives it
	// from a due-date comparison; only completed and pending are produced.
	EventStatusOverdue EventStatus = "overdue"
)

// TimelineEvent is one row of a plan's merged payment history, ordered most
// recent first for display.
type TimelineEvent struct {
	Type        EventType        `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Status      EventStatus      `json:"status"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Source      string           `json:"source,omitempty"`
}

// Milestone marks a fractional-completion threshold of the plan price.
// AchievedAt is the time of the payment whose running total first crossed
// the threshold, and may be absent even when Achieved is true if the
// reconstructed payment history never reaches it.
type Milestone struct {
	Percent    int        `json:"percent"`
	Achieved   bool       `json:"achieved"`
	AchievedAt *time.Time `json:"achieved_at,omitempty"`
}

type ScheduleEntryStatus string

const (
	ScheduleEntryPending ScheduleEntryStatus = "pending"
	ScheduleEntryPaid    ScheduleEntryStatus = "paid"
)

// ScheduleEntry is one period of a flat repayment schedule. Every period
// carries the same amount; there is no principal/interest split.
type ScheduleEntry struct {
	Period  int                 `json:"period"`
	DueDate time.Time           `json:"due_date"`
	Amount  decimal.Decimal     `json:"amount"`
	Status  ScheduleEntryStatus `json:"status"`
}

// methodLabels maps raw payment method identifiers to display labels.
var methodLabels = map[string]string{
	"wallet":      "Wallet",
	"cash":        "Cash",
	"card":        "Card",
	"transfer":    "Bank Transfer",
	"mortgage":    "Mortgage",
	"cooperative": "Cooperative",
}

// MethodLabel returns the display label for a payment method, falling back
// to a generic "Payment" for unrecognized methods.
func MethodLabel(method string) string {
	if label, ok := methodLabels[method]; ok {
		return label
	}
	return "Payment"
}
