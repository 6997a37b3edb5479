package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/omniflow/installment-engine/pkg/utils"
)

// Financial health status labels
const (
	HealthExcellent      = "Excellent"
	HealthGood           = "Good"
	HealthFair           = "Fair"
	HealthNeedsAttention = "Needs Attention"
)

// FinancialHealth is a derived risk indicator, recomputed from ledger state
// on each read. It is never persisted as a source of truth.
type FinancialHealth struct {
	BuyerID uuid.UUID `json:"buyer_id"`
	Score   int       `json:"score"`
	Status  string    `json:"status"`
}

// ScoreFinancialHealth derives a 0-100 score from lateness across the
// buyer's orders. Each open order deducts 2 points per day late, capped at
// 20 points per order.
func ScoreFinancialHealth(now time.Time, buyerID uuid.UUID, orders []*InstallmentOrder) FinancialHealth {
	score := 100
	for _, order := range orders {
		if order.IsCompleted() || order.NextDueDate == nil {
			continue
		}
		penalty := utils.DaysLate(now, *order.NextDueDate) * 2
		if penalty > 20 {
			penalty = 20
		}
		score -= penalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return FinancialHealth{
		BuyerID: buyerID,
		Score:   score,
		Status:  healthStatus(score),
	}
}

func healthStatus(score int) string {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 75:
		return HealthGood
	case score >= 60:
		return HealthFair
	default:
		return HealthNeedsAttention
	}
}
