package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
)

// RescheduleLimit is the maximum number of times a single order's due date
// may be pushed back.
const RescheduleLimit = 2

// InstallmentOrder is the authoritative running state of one buyer's
// installment purchase. amount_paid is monotonically non-decreasing and is
// mutated only through the payment and reschedule transactions.
type InstallmentOrder struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	BuyerID           uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id" db:"seller_id"`
	ProductID         uuid.UUID       `json:"product_id" db:"product_id"`
	PlanID            uuid.UUID       `json:"plan_id" db:"plan_id"`
	TotalPrice        decimal.Decimal `json:"total_price" db:"total_price"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	InstallmentCount  int             `json:"installment_count" db:"installment_count"`
	NextDueDate       *time.Time      `json:"next_due_date" db:"next_due_date"`
	Status            string          `json:"status" db:"status"`
	RescheduleCount   int             `json:"reschedule_count" db:"reschedule_count"`
	MissedPayments    int             `json:"missed_payments" db:"missed_payments"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Remaining returns the amount still owed on the order.
func (o *InstallmentOrder) Remaining() decimal.Decimal {
	return o.TotalPrice.Sub(o.AmountPaid)
}

// IsCompleted reports whether the order has been fully settled.
func (o *InstallmentOrder) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// DTOs for requests and responses

type CreateOrderRequest struct {
	BuyerID    uuid.UUID       `json:"buyer_id" validate:"required"`
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	TotalPrice decimal.Decimal `json:"total_price" validate:"required"`
}

type CreateOrderResponse struct {
	Order    *InstallmentOrder     `json:"order"`
	Payments []*InstallmentPayment `json:"payments"`
}

type RescheduleRequest struct {
	BuyerID    uuid.UUID `json:"buyer_id" validate:"required"`
	NewDueDate time.Time `json:"new_due_date" validate:"required"`
}

type RescheduleResponse struct {
	Order *InstallmentOrder `json:"order"`
}

// SellerAnalytics summarizes a seller's installment book.
type SellerAnalytics struct {
	SellerID        uuid.UUID       `json:"seller_id"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalEarned     decimal.Decimal `json:"total_earned"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	ActiveOrders    int             `json:"active_orders"`
	CompletedOrders int             `json:"completed_orders"`
	OverdueOrders   int             `json:"overdue_orders"`
	CompletionRate  decimal.Decimal `json:"completion_rate"`
}
