package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omniflow/installment-engine/internal/domain"
)

// PlanRepository defines the interface for installment plan persistence
type PlanRepository interface {
	// Upsert creates or replaces the plan attached to a product. Fails
	// with ErrPlanLocked when the stored plan is referenced by an order.
	Upsert(ctx context.Context, plan *domain.InstallmentPlan) error

	// GetByProductID retrieves a plan and its schedule steps
	GetByProductID(ctx context.Context, productID uuid.UUID) (*domain.InstallmentPlan, error)

	// GetByID retrieves a plan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InstallmentPlan, error)
}

// ApplyPaymentParams carries one logical payment request into the ledger
// transaction. RequestID makes retries of the same request idempotent.
type ApplyPaymentParams struct {
	RequestID uuid.UUID
	OrderID   uuid.UUID
	BuyerID   uuid.UUID
	Amount    decimal.Decimal
	Method    string
	PaidAt    time.Time
}

// OrderRepository defines the interface for order ledger operations
type OrderRepository interface {
	// CreateOrder persists a new order, its materialized payment rows,
	// the deposit debit against the buyer's wallet, and the plan lock,
	// in one transaction.
	CreateOrder(ctx context.Context, order *domain.InstallmentOrder, payments []*domain.InstallmentPayment) error

	// GetByID retrieves an order by its ID
	GetByID(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentOrder, error)

	// ListByBuyer retrieves all orders for a buyer, newest first
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, error)

	// ListBySeller retrieves all orders for a seller, newest first
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.InstallmentOrder, error)

	// ListActive retrieves every active order, used by the refresh and
	// reminder sweeps
	ListActive(ctx context.Context) ([]*domain.InstallmentOrder, error)

	// ApplyPayment applies one payment to the ledger: wallet decrement,
	// amount_paid increment, covered payment rows marked paid, next due
	// date advanced, completion flagged. Runs as a single transaction
	// with row locks on the order and wallet. The bool result reports
	// whether the request had already been applied.
	ApplyPayment(ctx context.Context, params ApplyPaymentParams) (*domain.InstallmentOrder, bool, error)

	// Reschedule shifts the order's next due date and increments the
	// reschedule counter atomically
	Reschedule(ctx context.Context, orderID uuid.UUID, newDueDate time.Time) (*domain.InstallmentOrder, error)
}

// PaymentRepository defines the interface for installment payment rows
type PaymentRepository interface {
	// ListByOrder retrieves all payment rows for an order ordered by due date
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.InstallmentPayment, error)

	// NextUnpaid returns the earliest payment row not yet paid, or nil
	NextUnpaid(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentPayment, error)

	// SweepOverdue flips pending rows whose due date plus the plan's
	// grace period has passed to overdue and refreshes the per-order
	// missed payment counters. Returns the number of rows flipped.
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// WalletRepository defines the interface for wallet reads
type WalletRepository interface {
	// GetByUserID retrieves a user's wallet
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}
