package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/omniflow/installment-engine/pkg/errors"
	"github.com/omniflow/installment-engine/pkg/utils"
)

// Payment frequencies
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// MinDepositPercent is the lowest initial deposit a seller may configure.
const MinDepositPercent = 10

// PercentTolerance is the allowed drift when checking that a schedule sums
// to 100 percent.
var PercentTolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// ScheduleStep is one installment of a plan, expressed as a percentage of
// the product price due a fixed number of days after checkout.
type ScheduleStep struct {
	StepNumber     int             `json:"step_number" db:"step_number"`
	PercentOfTotal decimal.Decimal `json:"percent_of_total" db:"percent_of_total"`
	DueOffsetDays  int             `json:"due_offset_days" db:"due_offset_days"`
}

// InstallmentPlan is the buy-now-pay-later configuration a seller attaches
// to a product. Once an order references it the plan is locked; edits apply
// only to future orders.
type InstallmentPlan struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	ProductID             uuid.UUID       `json:"product_id" db:"product_id"`
	SellerID              uuid.UUID       `json:"seller_id" db:"seller_id"`
	InitialDepositPercent decimal.Decimal `json:"initial_deposit_percent" db:"initial_deposit_percent"`
	Frequency             string          `json:"frequency" db:"frequency"`
	DurationPeriods       int             `json:"duration_periods" db:"duration_periods"`
	MinPaymentAmount      decimal.Decimal `json:"min_payment_amount" db:"min_payment_amount"`
	GracePeriodDays       int             `json:"grace_period_days" db:"grace_period_days"`
	AllowPartialPayments  bool            `json:"allow_partial_payments" db:"allow_partial_payments"`
	AllowEarlyCompletion  bool            `json:"allow_early_completion" db:"allow_early_completion"`
	Locked                bool            `json:"locked" db:"locked"`
	Schedule              []ScheduleStep  `json:"schedule" db:"-"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// GenerateSchedule splits the percentage left after the deposit evenly over
// durationPeriods steps. Each step is rounded to 2 decimal places; the last
// step absorbs the rounding drift so deposit plus schedule sums to exactly
// 100.
func GenerateSchedule(depositPercent decimal.Decimal, durationPeriods int, frequency string) []ScheduleStep {
	if durationPeriods < 1 {
		return nil
	}

	remaining := hundred.Sub(depositPercent)
	perStep := remaining.Div(decimal.NewFromInt(int64(durationPeriods))).Round(2)
	stepDays := utils.DaysForFrequency(frequency)

	schedule := make([]ScheduleStep, 0, durationPeriods)
	for i := 0; i < durationPeriods; i++ {
		schedule = append(schedule, ScheduleStep{
			StepNumber:     i + 1,
			PercentOfTotal: perStep,
			DueOffsetDays:  (i + 1) * stepDays,
		})
	}

	// Last step absorbs rounding drift so the schedule sums exactly.
	last := remaining.Sub(perStep.Mul(decimal.NewFromInt(int64(durationPeriods - 1))))
	schedule[durationPeriods-1].PercentOfTotal = last

	return schedule
}

// Validate checks the plan invariants that must hold before the plan can be
// attached to a product. The same checks run client-side; money-affecting
// configuration is never trusted to a single validation layer.
func (p *InstallmentPlan) Validate() error {
	if p.InitialDepositPercent.LessThan(decimal.NewFromInt(MinDepositPercent)) {
		return apperrors.NewBusinessError(
			apperrors.ErrCodeDepositTooLow,
			"initial deposit must be at least 10% of the product price",
			apperrors.ErrDepositTooLow,
		)
	}

	total := p.InitialDepositPercent
	for _, step := range p.Schedule {
		total = total.Add(step.PercentOfTotal)
	}
	if total.Sub(hundred).Abs().GreaterThan(PercentTolerance) {
		return apperrors.NewBusinessError(
			apperrors.ErrCodeSchedulePercentMismatch,
			"deposit and schedule percentages must sum to 100, got "+total.StringFixed(2),
			apperrors.ErrSchedulePercentMismatch,
		)
	}

	if p.MinPaymentAmount.IsNegative() {
		return apperrors.NewBusinessError(
			apperrors.ErrCodeNegativeMinPayment,
			"minimum payment amount cannot be negative",
			apperrors.ErrNegativeMinPayment,
		)
	}

	return nil
}

// DTOs for requests and responses

type AttachPlanRequest struct {
	SellerID              uuid.UUID       `json:"seller_id" validate:"required"`
	InitialDepositPercent decimal.Decimal `json:"initial_deposit_percent" validate:"required"`
	Frequency             string          `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly"`
	DurationPeriods       int             `json:"duration_periods" validate:"required,gte=1,lte=24"`
	MinPaymentAmount      decimal.Decimal `json:"min_payment_amount"`
	GracePeriodDays       int             `json:"grace_period_days" validate:"gte=0,lte=30"`
	AllowPartialPayments  bool            `json:"allow_partial_payments"`
	AllowEarlyCompletion  bool            `json:"allow_early_completion"`

	// Optional manual per-step percentages. Empty means generate from the
	// parameters above; manual edits are discarded whenever deposit,
	// duration or frequency changes.
	Schedule []ScheduleStep `json:"schedule,omitempty"`
}

type AttachPlanResponse struct {
	Plan *InstallmentPlan `json:"plan"`
}
