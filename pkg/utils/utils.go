package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysForFrequency maps a payment frequency to the number of days between
// installments. Unknown frequencies fall back to monthly.
func DaysForFrequency(frequency string) int {
	switch frequency {
	case "daily":
		return 1
	case "weekly":
		return 7
	case "biweekly":
		return 14
	case "monthly":
		return 30
	default:
		return 30
	}
}

// PercentOf returns percent% of total, rounded to 2 decimal places.
func PercentOf(total decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return total.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// StartOfDay truncates a time to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysUntil returns the number of whole days from today until the given
// date, negative when the date is in the past.
func DaysUntil(now, date time.Time) int {
	return int(StartOfDay(date).Sub(StartOfDay(now)).Hours() / 24)
}

// DaysLate returns how many days past due a date is, never negative.
func DaysLate(now, dueDate time.Time) int {
	late := -DaysUntil(now, dueDate)
	if late < 0 {
		return 0
	}
	return late
}

// DateKey formats a time as the YYYY-MM-DD key used for per-day dedup.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
