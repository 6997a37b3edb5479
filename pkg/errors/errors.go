package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrOrderNotFound           = errors.New("installment order not found")
	ErrPlanNotFound            = errors.New("installment plan not found")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrInsufficientFunds       = errors.New("insufficient wallet balance")
	ErrOrderCompleted          = errors.New("installment order is already completed")
	ErrNoPendingPayments       = errors.New("no pending installment payments remain")
	ErrInvalidAmount           = errors.New("invalid payment amount")
	ErrRescheduleLimitExceeded = errors.New("reschedule limit reached")
	ErrRescheduleTooSoon       = errors.New("new due date is too soon")
	ErrOrderPastGrace          = errors.New("order is past its grace period")
	ErrPartialsDisabled        = errors.New("partial payments are not allowed by the plan")
	ErrEarlyCompletionDisabled = errors.New("early completion is not allowed by the plan")
	ErrPlanLocked              = errors.New("plan is referenced by an order and cannot change")
	ErrDepositTooLow           = errors.New("initial deposit percent is below the minimum")
	ErrSchedulePercentMismatch = errors.New("schedule percentages do not sum to 100")
	ErrNegativeMinPayment      = errors.New("minimum payment amount cannot be negative")
	ErrDuplicateRequest        = errors.New("payment request was already applied")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodePlanNotFound            = "PLAN_NOT_FOUND"
	ErrCodeWalletNotFound          = "WALLET_NOT_FOUND"
	ErrCodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	ErrCodeOrderCompleted          = "ORDER_COMPLETED"
	ErrCodeNoPendingPayments       = "NO_PENDING_PAYMENTS"
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
	ErrCodeRescheduleLimitExceeded = "RESCHEDULE_LIMIT_EXCEEDED"
	ErrCodeRescheduleTooSoon       = "RESCHEDULE_TOO_SOON"
	ErrCodeOrderPastGrace          = "ORDER_PAST_GRACE"
	ErrCodePartialPaymentsDisabled = "PARTIAL_PAYMENTS_DISABLED"
	ErrCodeEarlyCompletionDisabled = "EARLY_COMPLETION_DISABLED"
	ErrCodePlanLocked              = "PLAN_LOCKED"
	ErrCodeDepositTooLow           = "DEPOSIT_TOO_LOW"
	ErrCodeSchedulePercentMismatch = "SCHEDULE_PERCENT_MISMATCH"
	ErrCodeNegativeMinPayment      = "NEGATIVE_MIN_PAYMENT"
	ErrCodeDuplicateRequest        = "DUPLICATE_REQUEST"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapOrderNotFound(orderID string) *BusinessError {
	return NewBusinessError(
		ErrCodeOrderNotFound,
		fmt.Sprintf("Installment order %s not found", orderID),
		ErrOrderNotFound,
	)
}

func WrapPlanNotFound(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanNotFound,
		fmt.Sprintf("No installment plan attached to product %s", productID),
		ErrPlanNotFound,
	)
}

func WrapWalletNotFound(buyerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeWalletNotFound,
		fmt.Sprintf("No wallet found for buyer %s", buyerID),
		ErrWalletNotFound,
	)
}

func WrapInsufficientFunds(balance, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientFunds,
		fmt.Sprintf("Wallet balance %s does not cover payment of %s", balance, amount),
		ErrInsufficientFunds,
	)
}

func WrapOrderCompleted(orderID string) *BusinessError {
	return NewBusinessError(
		ErrCodeOrderCompleted,
		fmt.Sprintf("Installment order %s is already completed", orderID),
		ErrOrderCompleted,
	)
}

func WrapNoPendingPayments(orderID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoPendingPayments,
		fmt.Sprintf("Installment order %s has no pending payments", orderID),
		ErrNoPendingPayments,
	)
}

func WrapInvalidAmount(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		reason,
		ErrInvalidAmount,
	)
}

func WrapRescheduleLimitExceeded(orderID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRescheduleLimitExceeded,
		fmt.Sprintf("Installment order %s has already been rescheduled twice", orderID),
		ErrRescheduleLimitExceeded,
	)
}

func WrapRescheduleTooSoon(minNoticeDays int) *BusinessError {
	return NewBusinessError(
		ErrCodeRescheduleTooSoon,
		fmt.Sprintf("New due date must be at least %d days from today", minNoticeDays),
		ErrRescheduleTooSoon,
	)
}

func WrapOrderPastGrace(orderID string, graceDays int) *BusinessError {
	return NewBusinessError(
		ErrCodeOrderPastGrace,
		fmt.Sprintf("Installment order %s is more than %d days past due and cannot be rescheduled", orderID, graceDays),
		ErrOrderPastGrace,
	)
}

func WrapPlanLocked(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanLocked,
		fmt.Sprintf("Installment plan for product %s is referenced by orders; edits apply to new plans only", productID),
		ErrPlanLocked,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"cache operation failed",
		err,
	)
}
