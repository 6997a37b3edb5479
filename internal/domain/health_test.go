package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScoreFinancialHealth(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	buyerID := uuid.New()

	due := func(daysFromNow int) *time.Time {
		d := now.AddDate(0, 0, daysFromNow)
		return &d
	}

	tests := []struct {
		name           string
		orders         []*InstallmentOrder
		expectedScore  int
		expectedStatus string
	}{
		{
			name:           "no orders scores perfect",
			orders:         nil,
			expectedScore:  100,
			expectedStatus: HealthExcellent,
		},
		{
			name: "on-time orders keep a perfect score",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: due(5)},
				{Status: OrderStatusActive, NextDueDate: due(0)},
			},
			expectedScore:  100,
			expectedStatus: HealthExcellent,
		},
		{
			name: "completed orders are ignored",
			orders: []*InstallmentOrder{
				{Status: OrderStatusCompleted, NextDueDate: due(-30)},
			},
			expectedScore:  100,
			expectedStatus: HealthExcellent,
		},
		{
			name: "two points per day late",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: due(-4)},
			},
			expectedScore:  92,
			expectedStatus: HealthExcellent,
		},
		{
			name: "penalty caps at 20 per order",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: due(-60)},
			},
			expectedScore:  80,
			expectedStatus: HealthGood,
		},
		{
			name: "penalties accumulate across orders",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-7)},
			},
			expectedScore:  66,
			expectedStatus: HealthFair,
		},
		{
			name: "score floors at zero",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-60)},
				{Status: OrderStatusActive, NextDueDate: due(-60)},
			},
			expectedScore:  0,
			expectedStatus: HealthNeedsAttention,
		},
		{
			name: "fully settled early orders have no due date",
			orders: []*InstallmentOrder{
				{Status: OrderStatusActive, NextDueDate: nil},
			},
			expectedScore:  100,
			expectedStatus: HealthExcellent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := ScoreFinancialHealth(now, buyerID, tt.orders)

			assert.Equal(t, buyerID, health.BuyerID)
			assert.Equal(t, tt.expectedScore, health.Score)
			assert.Equal(t, tt.expectedStatus, health.Status)
			assert.GreaterOrEqual(t, health.Score, 0)
			assert.LessOrEqual(t, health.Score, 100)
		})
	}
}

func TestHealthStatusBoundaries(t *testing.T) {
	assert.Equal(t, HealthExcellent, healthStatus(90))
	assert.Equal(t, HealthGood, healthStatus(89))
	assert.Equal(t, HealthGood, healthStatus(75))
	assert.Equal(t, HealthFair, healthStatus(74))
	assert.Equal(t, HealthFair, healthStatus(60))
	assert.Equal(t, HealthNeedsAttention, healthStatus(59))
}
