package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/omniflow/installment-engine/internal/domain"
	apperrors "github.com/omniflow/installment-engine/pkg/errors"
)

type orderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, buyer_id, seller_id, product_id, plan_id, total_price, amount_paid,
	installment_amount, installment_count, next_due_date, status,
	reschedule_count, missed_payments, created_at, updated_at
`

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.InstallmentOrder, payments []*domain.InstallmentPayment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The deposit is held in escrow at checkout; debit it under the same
	// commit that creates the ledger rows.
	if err = debitWallet(ctx, tx, order.BuyerID, order.AmountPaid); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO installment_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.ProductID,
		order.PlanID,
		order.TotalPrice,
		order.AmountPaid,
		order.InstallmentAmount,
		order.InstallmentCount,
		order.NextDueDate,
		order.Status,
		order.RescheduleCount,
		order.MissedPayments,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	paymentQuery := `
		INSERT INTO installment_payments (id, order_id, buyer_id, step_number, due_date, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, payment := range payments {
		if _, err = tx.ExecContext(ctx, paymentQuery,
			payment.ID,
			payment.OrderID,
			payment.BuyerID,
			payment.StepNumber,
			payment.DueDate,
			payment.Amount,
			payment.Status,
			payment.CreatedAt,
		); err != nil {
			return err
		}
	}

	// Once an order references the plan it must not change under it.
	if _, err = tx.ExecContext(ctx,
		`UPDATE installment_plans SET locked = true WHERE id = $1`, order.PlanID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *orderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM installment_orders WHERE id = $1`

	var order domain.InstallmentOrder
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM installment_orders WHERE buyer_id = $1 ORDER BY created_at DESC`

	var orders []*domain.InstallmentOrder
	if err := r.db.SelectContext(ctx, &orders, query, buyerID); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.InstallmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM installment_orders WHERE seller_id = $1 ORDER BY created_at DESC`

	var orders []*domain.InstallmentOrder
	if err := r.db.SelectContext(ctx, &orders, query, sellerID); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) ListActive(ctx context.Context) ([]*domain.InstallmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM installment_orders WHERE status = $1 ORDER BY next_due_date`

	var orders []*domain.InstallmentOrder
	if err := r.db.SelectContext(ctx, &orders, query, domain.OrderStatusActive); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) ApplyPayment(ctx context.Context, params ApplyPaymentParams) (*domain.InstallmentOrder, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// At-most-one financial effect per logical request: the request id is
	// recorded under the same commit as the ledger mutation, so a retry
	// after a transport failure finds the row and applies nothing.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO payment_requests (request_id, order_id, amount, method, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO NOTHING
	`, params.RequestID, params.OrderID, params.Amount, params.Method, params.PaidAt)
	if err != nil {
		return nil, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		order, err := r.GetByID(ctx, params.OrderID)
		if err != nil {
			return nil, false, err
		}
		return order, true, nil
	}

	var order domain.InstallmentOrder
	err = tx.GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM installment_orders WHERE id = $1 FOR UPDATE`,
		params.OrderID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if order.BuyerID != params.BuyerID {
		return nil, false, apperrors.ErrOrderNotFound
	}
	if order.IsCompleted() {
		return nil, false, apperrors.ErrOrderCompleted
	}
	if !params.Amount.IsPositive() || params.Amount.GreaterThan(order.Remaining()) {
		return nil, false, apperrors.ErrInvalidAmount
	}

	if err = debitWallet(ctx, tx, params.BuyerID, params.Amount); err != nil {
		return nil, false, err
	}

	var steps []*domain.InstallmentPayment
	err = tx.SelectContext(ctx, &steps, `
		SELECT id, order_id, buyer_id, step_number, due_date, amount, status, paid_date, payment_method, created_at
		FROM installment_payments
		WHERE order_id = $1 AND status <> $2
		ORDER BY step_number
		FOR UPDATE
	`, params.OrderID, domain.PaymentStatusPaid)
	if err != nil {
		return nil, false, err
	}
	if len(steps) == 0 {
		return nil, false, apperrors.ErrNoPendingPayments
	}

	newPaid := order.AmountPaid.Add(params.Amount)
	settled := newPaid.Equal(order.TotalPrice)

	// Mark the earliest unpaid steps covered by this amount as paid. A
	// settling payment covers every remaining step regardless of size.
	toAllocate := params.Amount
	markQuery := `
		UPDATE installment_payments
		SET status = $2, paid_date = $3, payment_method = $4
		WHERE id = $1
	`
	var nextDue *time.Time
	for _, step := range steps {
		covered := settled || step.Amount.LessThanOrEqual(toAllocate)
		if !covered {
			due := step.DueDate
			nextDue = &due
			break
		}
		toAllocate = toAllocate.Sub(step.Amount)
		if _, err = tx.ExecContext(ctx, markQuery,
			step.ID, domain.PaymentStatusPaid, params.PaidAt, params.Method,
		); err != nil {
			return nil, false, err
		}
	}

	order.AmountPaid = newPaid
	order.NextDueDate = nextDue
	order.UpdatedAt = params.PaidAt
	if settled {
		order.Status = domain.OrderStatusCompleted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE installment_orders
		SET amount_paid = $2, next_due_date = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, order.ID, order.AmountPaid, order.NextDueDate, order.Status, order.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}

	return &order, false, nil
}

func (r *orderRepository) Reschedule(ctx context.Context, orderID uuid.UUID, newDueDate time.Time) (*domain.InstallmentOrder, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order domain.InstallmentOrder
	err = tx.GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM installment_orders WHERE id = $1 FOR UPDATE`,
		orderID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	// Re-checked under the row lock; concurrent reschedules must not push
	// the counter past the limit.
	if order.IsCompleted() {
		return nil, apperrors.ErrOrderCompleted
	}
	if order.RescheduleCount >= domain.RescheduleLimit {
		return nil, apperrors.ErrRescheduleLimitExceeded
	}

	order.NextDueDate = &newDueDate
	order.RescheduleCount++
	order.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE installment_orders
		SET next_due_date = $2, reschedule_count = $3, updated_at = $4
		WHERE id = $1
	`, order.ID, order.NextDueDate, order.RescheduleCount, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Keep the earliest unpaid step in line with the order's due date.
	_, err = tx.ExecContext(ctx, `
		UPDATE installment_payments
		SET due_date = $2, status = $3
		WHERE id = (
			SELECT id FROM installment_payments
			WHERE order_id = $1 AND status <> $4
			ORDER BY step_number
			LIMIT 1
		)
	`, order.ID, newDueDate, domain.PaymentStatusPending, domain.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &order, nil
}

// debitWallet decrements the buyer's balance, failing when funds are short.
// The guard lives in the WHERE clause so the check and the write are one
// statement under the row lock.
func debitWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, userID,
		); err != nil {
			return err
		}
		if !exists {
			return apperrors.ErrWalletNotFound
		}
		return apperrors.ErrInsufficientFunds
	}

	return nil
}
