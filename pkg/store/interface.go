package store

import (
	"github.com/adesina/coopledger/pkg/models"
	"github.com/google/uuid"
)

// Storage defines the interface for database operations related to payment
// plans and their records.
type Storage interface {
	CreatePlan(plan *models.PaymentPlan) error
	GetPlan(id uuid.UUID) (*models.PaymentPlan, error)
	UpdatePlan(plan *models.PaymentPlan) error
	DeletePlan(id uuid.UUID) error
	GetAllPlans() ([]*models.PaymentPlan, error)
	GetPlansForMember(memberKey string) ([]*models.PaymentPlan, error)

	CreatePayment(payment *models.PaymentRecord) error
	GetPaymentsForPlan(planID uuid.UUID) ([]*models.PaymentRecord, error)

	CreateLedgerEntry(entry *models.LedgerEntry) error
	GetLedgerEntriesForPlan(planID uuid.UUID) ([]*models.LedgerEntry, error)

	CreateScheduleApproval(approval *models.ScheduleApproval) error
	GetScheduleApprovalsForPlan(planID uuid.UUID) ([]*models.ScheduleApproval, error)

	Close() error
}
