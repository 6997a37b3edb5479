package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/omniflow/installment-engine/internal/domain"
	apperrors "github.com/omniflow/installment-engine/pkg/errors"
)

type planRepository struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sqlx.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Upsert(ctx context.Context, plan *domain.InstallmentPlan) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing struct {
		ID     uuid.UUID `db:"id"`
		Locked bool      `db:"locked"`
	}
	err = tx.GetContext(ctx, &existing,
		`SELECT id, locked FROM installment_plans WHERE product_id = $1 FOR UPDATE`,
		plan.ProductID,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first plan for this product
	case err != nil:
		return err
	case existing.Locked:
		return apperrors.ErrPlanLocked
	default:
		plan.ID = existing.ID
	}

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
		plan.CreatedAt = time.Now()
	}
	plan.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO installment_plans (
			id, product_id, seller_id, initial_deposit_percent, frequency,
			duration_periods, min_payment_amount, grace_period_days,
			allow_partial_payments, allow_early_completion, locked,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11, $12)
		ON CONFLICT (product_id) DO UPDATE SET
			initial_deposit_percent = EXCLUDED.initial_deposit_percent,
			frequency = EXCLUDED.frequency,
			duration_periods = EXCLUDED.duration_periods,
			min_payment_amount = EXCLUDED.min_payment_amount,
			grace_period_days = EXCLUDED.grace_period_days,
			allow_partial_payments = EXCLUDED.allow_partial_payments,
			allow_early_completion = EXCLUDED.allow_early_completion,
			updated_at = EXCLUDED.updated_at
	`,
		plan.ID,
		plan.ProductID,
		plan.SellerID,
		plan.InitialDepositPercent,
		plan.Frequency,
		plan.DurationPeriods,
		plan.MinPaymentAmount,
		plan.GracePeriodDays,
		plan.AllowPartialPayments,
		plan.AllowEarlyCompletion,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return err
	}

	// Schedule steps are replaced wholesale on every edit.
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM installment_plan_steps WHERE plan_id = $1`, plan.ID,
	); err != nil {
		return err
	}

	stepQuery := `
		INSERT INTO installment_plan_steps (plan_id, step_number, percent_of_total, due_offset_days)
		VALUES ($1, $2, $3, $4)
	`
	for _, step := range plan.Schedule {
		if _, err = tx.ExecContext(ctx, stepQuery,
			plan.ID,
			step.StepNumber,
			step.PercentOfTotal,
			step.DueOffsetDays,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *planRepository) GetByProductID(ctx context.Context, productID uuid.UUID) (*domain.InstallmentPlan, error) {
	query := `
		SELECT id, product_id, seller_id, initial_deposit_percent, frequency,
		       duration_periods, min_payment_amount, grace_period_days,
		       allow_partial_payments, allow_early_completion, locked,
		       created_at, updated_at
		FROM installment_plans
		WHERE product_id = $1
	`

	var plan domain.InstallmentPlan
	if err := r.db.GetContext(ctx, &plan, query, productID); err != nil {
		return nil, err
	}

	if err := r.loadSteps(ctx, &plan); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InstallmentPlan, error) {
	query := `
		SELECT id, product_id, seller_id, initial_deposit_percent, frequency,
		       duration_periods, min_payment_amount, grace_period_days,
		       allow_partial_payments, allow_early_completion, locked,
		       created_at, updated_at
		FROM installment_plans
		WHERE id = $1
	`

	var plan domain.InstallmentPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}

	if err := r.loadSteps(ctx, &plan); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepository) loadSteps(ctx context.Context, plan *domain.InstallmentPlan) error {
	query := `
		SELECT step_number, percent_of_total, due_offset_days
		FROM installment_plan_steps
		WHERE plan_id = $1
		ORDER BY step_number
	`

	var steps []domain.ScheduleStep
	if err := r.db.SelectContext(ctx, &steps, query, plan.ID); err != nil {
		return err
	}

	plan.Schedule = steps
	return nil
}
