package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omniflow/installment-engine/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `
	id, order_id, buyer_id, step_number, due_date, amount, status,
	paid_date, payment_method, created_at
`

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.InstallmentPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM installment_payments
		WHERE order_id = $1
		ORDER BY step_number
	`

	var payments []*domain.InstallmentPayment
	if err := r.db.SelectContext(ctx, &payments, query, orderID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) NextUnpaid(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM installment_payments
		WHERE order_id = $1 AND status <> $2
		ORDER BY step_number
		LIMIT 1
	`

	var payment domain.InstallmentPayment
	err := r.db.GetContext(ctx, &payment, query, orderID, domain.PaymentStatusPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// A step is overdue once its due date plus the plan's grace period has
	// passed. Grace exists for scoring surfaces only; the ledger itself
	// never changes here.
	res, err := tx.ExecContext(ctx, `
		UPDATE installment_payments p
		SET status = $1
		FROM installment_orders o
		JOIN installment_plans pl ON pl.id = o.plan_id
		WHERE p.order_id = o.id
		  AND p.status = $2
		  AND p.due_date + make_interval(days => pl.grace_period_days) < $3
	`, domain.PaymentStatusOverdue, domain.PaymentStatusPending, asOf)
	if err != nil {
		return 0, err
	}

	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE installment_orders o
		SET missed_payments = (
			SELECT count(*) FROM installment_payments p
			WHERE p.order_id = o.id AND p.status = $1
		)
		WHERE o.status = $2
	`, domain.PaymentStatusOverdue, domain.OrderStatusActive)
	if err != nil {
		return 0, err
	}

	return flipped, tx.Commit()
}
