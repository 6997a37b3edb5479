package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/omniflow/installment-engine/pkg/errors"
)

func TestGenerateSchedule(t *testing.T) {
	tests := []struct {
		name             string
		depositPercent   decimal.Decimal
		durationPeriods  int
		frequency        string
		expectedPercents []string
		expectedOffsets  []int
	}{
		{
			name:             "30% deposit over 3 monthly steps, last step absorbs rounding",
			depositPercent:   decimal.NewFromInt(30),
			durationPeriods:  3,
			frequency:        FrequencyMonthly,
			expectedPercents: []string{"23.33", "23.33", "23.34"},
			expectedOffsets:  []int{30, 60, 90},
		},
		{
			name:             "even split needs no correction",
			depositPercent:   decimal.NewFromInt(20),
			durationPeriods:  4,
			frequency:        FrequencyWeekly,
			expectedPercents: []string{"20", "20", "20", "20"},
			expectedOffsets:  []int{7, 14, 21, 28},
		},
		{
			name:             "single step takes the whole remainder",
			depositPercent:   decimal.NewFromInt(90),
			durationPeriods:  1,
			frequency:        FrequencyDaily,
			expectedPercents: []string{"10"},
			expectedOffsets:  []int{1},
		},
		{
			name:             "biweekly offsets",
			depositPercent:   decimal.NewFromInt(10),
			durationPeriods:  2,
			frequency:        FrequencyBiweekly,
			expectedPercents: []string{"45", "45"},
			expectedOffsets:  []int{14, 28},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := GenerateSchedule(tt.depositPercent, tt.durationPeriods, tt.frequency)

			require.Len(t, schedule, tt.durationPeriods)

			total := tt.depositPercent
			for i, step := range schedule {
				assert.Equal(t, i+1, step.StepNumber)
				assert.True(t, step.PercentOfTotal.Equal(decimal.RequireFromString(tt.expectedPercents[i])),
					"step %d percent = %s, want %s", i+1, step.PercentOfTotal, tt.expectedPercents[i])
				assert.Equal(t, tt.expectedOffsets[i], step.DueOffsetDays)
				total = total.Add(step.PercentOfTotal)
			}

			assert.True(t, total.Equal(decimal.NewFromInt(100)),
				"deposit plus schedule must sum to 100, got %s", total)
		})
	}
}

func TestGenerateScheduleSumsToHundred(t *testing.T) {
	// Awkward deposit and duration combinations must still sum exactly.
	for deposit := 10; deposit <= 90; deposit += 7 {
		for duration := 1; duration <= 24; duration++ {
			schedule := GenerateSchedule(decimal.NewFromInt(int64(deposit)), duration, FrequencyMonthly)

			total := decimal.NewFromInt(int64(deposit))
			for _, step := range schedule {
				total = total.Add(step.PercentOfTotal)
			}

			assert.True(t, total.Equal(decimal.NewFromInt(100)),
				"deposit %d over %d steps sums to %s", deposit, duration, total)
		}
	}
}

func TestGenerateScheduleInvalidDuration(t *testing.T) {
	assert.Nil(t, GenerateSchedule(decimal.NewFromInt(30), 0, FrequencyMonthly))
}

func TestPlanValidate(t *testing.T) {
	validPlan := func() *InstallmentPlan {
		return &InstallmentPlan{
			InitialDepositPercent: decimal.NewFromInt(30),
			Frequency:             FrequencyMonthly,
			DurationPeriods:       3,
			MinPaymentAmount:      decimal.NewFromInt(100),
			Schedule:              GenerateSchedule(decimal.NewFromInt(30), 3, FrequencyMonthly),
		}
	}

	tests := []struct {
		name         string
		mutate       func(*InstallmentPlan)
		expectedCode string
	}{
		{
			name:   "valid plan passes",
			mutate: func(*InstallmentPlan) {},
		},
		{
			name: "deposit below minimum",
			mutate: func(p *InstallmentPlan) {
				p.InitialDepositPercent = decimal.NewFromInt(5)
			},
			expectedCode: apperrors.ErrCodeDepositTooLow,
		},
		{
			name: "manually edited schedule no longer sums to 100",
			mutate: func(p *InstallmentPlan) {
				p.Schedule[1].PercentOfTotal = decimal.NewFromInt(10)
			},
			expectedCode: apperrors.ErrCodeSchedulePercentMismatch,
		},
		{
			name: "negative minimum payment",
			mutate: func(p *InstallmentPlan) {
				p.MinPaymentAmount = decimal.NewFromInt(-1)
			},
			expectedCode: apperrors.ErrCodeNegativeMinPayment,
		},
		{
			name: "drift within tolerance is accepted",
			mutate: func(p *InstallmentPlan) {
				p.Schedule[2].PercentOfTotal = p.Schedule[2].PercentOfTotal.Add(decimal.NewFromFloat(0.01))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)

			err := plan.Validate()

			if tt.expectedCode == "" {
				assert.NoError(t, err)
				return
			}

			var business *apperrors.BusinessError
			require.ErrorAs(t, err, &business)
			assert.Equal(t, tt.expectedCode, business.Code)
		})
	}
}
