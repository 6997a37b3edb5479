package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusOverdue = "overdue"
)

// Payment methods accepted by the processor.
const (
	PaymentMethodStandard = "standard"
	PaymentMethodCustom   = "custom"
	PaymentMethodFull     = "full"
)

// InstallmentPayment is one scheduled step of an order, materialized from
// the plan at checkout. Rows are never deleted; they transition from
// pending (or overdue) to paid.
type InstallmentPayment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrderID       uuid.UUID       `json:"order_id" db:"order_id"`
	BuyerID       uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	StepNumber    int             `json:"step_number" db:"step_number"`
	DueDate       time.Time       `json:"due_date" db:"due_date"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        string          `json:"status" db:"status"`
	PaidDate      *time.Time      `json:"paid_date" db:"paid_date"`
	PaymentMethod *string         `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// IsPaid reports whether this step has been settled.
func (p *InstallmentPayment) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}

// DTOs for requests and responses

type ApplyPaymentRequest struct {
	BuyerID uuid.UUID       `json:"buyer_id" validate:"required"`
	Method  string          `json:"method" validate:"required,oneof=standard custom full"`
	Amount  decimal.Decimal `json:"amount"`

	// RequestID identifies the logical payment request. Retries after a
	// transport failure must reuse it so the ledger is credited once.
	RequestID uuid.UUID `json:"request_id" validate:"required"`
}

type ApplyPaymentResponse struct {
	Order     *InstallmentOrder `json:"order"`
	Amount    decimal.Decimal   `json:"amount"`
	Duplicate bool              `json:"duplicate"`
}

type PaymentListResponse struct {
	OrderID  uuid.UUID             `json:"order_id"`
	Payments []*InstallmentPayment `json:"payments"`
}
