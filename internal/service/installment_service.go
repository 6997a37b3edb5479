package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/omniflow/installment-engine/internal/config"
	"github.com/omniflow/installment-engine/internal/domain"
	"github.com/omniflow/installment-engine/internal/repository"
	apperrors "github.com/omniflow/installment-engine/pkg/errors"
	"github.com/omniflow/installment-engine/pkg/utils"
)

// InstallmentService owns the order ledger. Every ledger mutation goes
// through here and commits as a single transaction in the repository.
type InstallmentService struct {
	PlanRepo    repository.PlanRepository
	OrderRepo   repository.OrderRepository
	PaymentRepo repository.PaymentRepository
	WalletRepo  repository.WalletRepository
	logger      zerolog.Logger
	config      *config.Config
}

func NewInstallmentService(
	planRepo repository.PlanRepository,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	walletRepo repository.WalletRepository,
	logger zerolog.Logger,
	cfg *config.Config,
) *InstallmentService {
	return &InstallmentService{
		PlanRepo:    planRepo,
		OrderRepo:   orderRepo,
		PaymentRepo: paymentRepo,
		WalletRepo:  walletRepo,
		logger:      logger,
		config:      cfg,
	}
}

// AttachPlan validates and persists the installment plan for a product.
// An empty schedule in the request means generate one from the parameters;
// a non-empty schedule carries the seller's manual per-step edits.
func (s *InstallmentService) AttachPlan(ctx context.Context, productID uuid.UUID, request *domain.AttachPlanRequest) (*domain.InstallmentPlan, error) {
	schedule := request.Schedule
	if len(schedule) == 0 {
		schedule = domain.GenerateSchedule(request.InitialDepositPercent, request.DurationPeriods, request.Frequency)
	}

	plan := &domain.InstallmentPlan{
		ProductID:             productID,
		SellerID:              request.SellerID,
		InitialDepositPercent: request.InitialDepositPercent,
		Frequency:             request.Frequency,
		DurationPeriods:       request.DurationPeriods,
		MinPaymentAmount:      request.MinPaymentAmount,
		GracePeriodDays:       request.GracePeriodDays,
		AllowPartialPayments:  request.AllowPartialPayments,
		AllowEarlyCompletion:  request.AllowEarlyCompletion,
		Schedule:              schedule,
	}

	// Client-side validation is a convenience; this is the check that
	// counts.
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := s.PlanRepo.Upsert(ctx, plan); err != nil {
		if errors.Is(err, apperrors.ErrPlanLocked) {
			return nil, apperrors.WrapPlanLocked(productID.String())
		}
		return nil, apperrors.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("product_id", productID.String()).
		Str("seller_id", request.SellerID.String()).
		Int("duration_periods", plan.DurationPeriods).
		Msg("installment plan attached")

	return plan, nil
}

// GetPlan returns the plan attached to a product.
func (s *InstallmentService) GetPlan(ctx context.Context, productID uuid.UUID) (*domain.InstallmentPlan, error) {
	plan, err := s.PlanRepo.GetByProductID(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapPlanNotFound(productID.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return plan, nil
}

// CreateOrder instantiates an installment order at checkout. The deposit is
// debited from the buyer's wallet and the plan schedule is materialized
// into payment rows, all in one transaction.
func (s *InstallmentService) CreateOrder(ctx context.Context, request *domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	plan, err := s.PlanRepo.GetByProductID(ctx, request.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapPlanNotFound(request.ProductID.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	if !request.TotalPrice.IsPositive() {
		return nil, apperrors.WrapInvalidAmount("total price must be greater than zero")
	}

	now := time.Now()
	deposit := utils.PercentOf(request.TotalPrice, plan.InitialDepositPercent)

	order := &domain.InstallmentOrder{
		ID:               uuid.New(),
		BuyerID:          request.BuyerID,
		SellerID:         plan.SellerID,
		ProductID:        request.ProductID,
		PlanID:           plan.ID,
		TotalPrice:       request.TotalPrice,
		AmountPaid:       deposit,
		InstallmentCount: len(plan.Schedule),
		Status:           domain.OrderStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	payments := make([]*domain.InstallmentPayment, 0, len(plan.Schedule))
	allocated := deposit
	for i, step := range plan.Schedule {
		amount := utils.PercentOf(request.TotalPrice, step.PercentOfTotal)
		if i == len(plan.Schedule)-1 {
			// Last step absorbs rounding so the rows sum to the price.
			amount = request.TotalPrice.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		payments = append(payments, &domain.InstallmentPayment{
			ID:         uuid.New(),
			OrderID:    order.ID,
			BuyerID:    request.BuyerID,
			StepNumber: step.StepNumber,
			DueDate:    utils.StartOfDay(now).AddDate(0, 0, step.DueOffsetDays),
			Amount:     amount,
			Status:     domain.PaymentStatusPending,
			CreatedAt:  now,
		})
	}

	order.InstallmentAmount = payments[0].Amount
	firstDue := payments[0].DueDate
	order.NextDueDate = &firstDue

	if err := s.OrderRepo.CreateOrder(ctx, order, payments); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrWalletNotFound):
			return nil, apperrors.WrapWalletNotFound(request.BuyerID.String())
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			return nil, apperrors.WrapInsufficientFunds("", deposit.StringFixed(2))
		default:
			return nil, apperrors.WrapDatabaseError(err)
		}
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("buyer_id", request.BuyerID.String()).
		Str("deposit", deposit.StringFixed(2)).
		Msg("installment order created")

	return &domain.CreateOrderResponse{Order: order, Payments: payments}, nil
}

// ApplyPayment applies one payment to an order's ledger. The amount is
// resolved from the method, validated against the plan, then handed to the
// repository as a single atomic transaction keyed by the request ID.
func (s *InstallmentService) ApplyPayment(ctx context.Context, orderID uuid.UUID, request *domain.ApplyPaymentRequest) (*domain.ApplyPaymentResponse, error) {
	order, err := s.getOwnedOrder(ctx, orderID, request.BuyerID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, apperrors.WrapOrderCompleted(orderID.String())
	}

	plan, err := s.PlanRepo.GetByID(ctx, order.PlanID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	next, err := s.PaymentRepo.NextUnpaid(ctx, orderID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	if next == nil {
		return nil, apperrors.WrapNoPendingPayments(orderID.String())
	}

	amount, err := resolveAmount(order, plan, next, request)
	if err != nil {
		return nil, err
	}

	updated, duplicate, err := s.OrderRepo.ApplyPayment(ctx, repository.ApplyPaymentParams{
		RequestID: request.RequestID,
		OrderID:   orderID,
		BuyerID:   request.BuyerID,
		Amount:    amount,
		Method:    request.Method,
		PaidAt:    time.Now(),
	})
	if err != nil {
		return nil, mapLedgerError(err, orderID, amount)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("method", request.Method).
		Bool("duplicate", duplicate).
		Str("status", updated.Status).
		Msg("payment applied")

	return &domain.ApplyPaymentResponse{Order: updated, Amount: amount, Duplicate: duplicate}, nil
}

// resolveAmount turns a payment method into a concrete amount and enforces
// the plan's payment rules.
func resolveAmount(
	order *domain.InstallmentOrder,
	plan *domain.InstallmentPlan,
	next *domain.InstallmentPayment,
	request *domain.ApplyPaymentRequest,
) (decimal.Decimal, error) {
	remaining := order.Remaining()

	switch request.Method {
	case domain.PaymentMethodStandard:
		amount := next.Amount
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		return amount, nil

	case domain.PaymentMethodCustom:
		if !plan.AllowPartialPayments {
			return decimal.Zero, apperrors.NewBusinessError(
				apperrors.ErrCodePartialPaymentsDisabled,
				"this plan does not allow partial payments",
				apperrors.ErrPartialsDisabled,
			)
		}
		amount := request.Amount
		if !amount.IsPositive() {
			return decimal.Zero, apperrors.WrapInvalidAmount("payment amount must be greater than zero")
		}
		if amount.GreaterThan(remaining) {
			return decimal.Zero, apperrors.WrapInvalidAmount("payment amount exceeds the remaining balance of " + remaining.StringFixed(2))
		}
		// The minimum is waived when the payment settles the order.
		settles := amount.Equal(remaining)
		if plan.MinPaymentAmount.IsPositive() && amount.LessThan(plan.MinPaymentAmount) && !settles {
			return decimal.Zero, apperrors.WrapInvalidAmount("payment amount is below the plan minimum of " + plan.MinPaymentAmount.StringFixed(2))
		}
		return amount, nil

	case domain.PaymentMethodFull:
		if !plan.AllowEarlyCompletion {
			return decimal.Zero, apperrors.NewBusinessError(
				apperrors.ErrCodeEarlyCompletionDisabled,
				"this plan does not allow early completion",
				apperrors.ErrEarlyCompletionDisabled,
			)
		}
		return remaining, nil

	default:
		return decimal.Zero, apperrors.WrapInvalidAmount("unknown payment method " + request.Method)
	}
}

// Reschedule shifts an order's next due date under the bounded-retry
// policy: at most twice per order, at least the configured notice ahead,
// and never for an order already past its grace period.
func (s *InstallmentService) Reschedule(ctx context.Context, orderID uuid.UUID, request *domain.RescheduleRequest) (*domain.InstallmentOrder, error) {
	order, err := s.getOwnedOrder(ctx, orderID, request.BuyerID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, apperrors.WrapOrderCompleted(orderID.String())
	}
	if order.RescheduleCount >= domain.RescheduleLimit {
		return nil, apperrors.WrapRescheduleLimitExceeded(orderID.String())
	}

	now := time.Now()
	minNotice := s.config.Business.RescheduleMinNoticeDays
	if utils.DaysUntil(now, request.NewDueDate) < minNotice {
		return nil, apperrors.WrapRescheduleTooSoon(minNotice)
	}

	plan, err := s.PlanRepo.GetByID(ctx, order.PlanID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	if order.NextDueDate != nil && utils.DaysLate(now, *order.NextDueDate) > plan.GracePeriodDays {
		return nil, apperrors.WrapOrderPastGrace(orderID.String(), plan.GracePeriodDays)
	}

	updated, err := s.OrderRepo.Reschedule(ctx, orderID, utils.StartOfDay(request.NewDueDate))
	if err != nil {
		return nil, mapLedgerError(err, orderID, decimal.Zero)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Time("new_due_date", request.NewDueDate).
		Int("reschedule_count", updated.RescheduleCount).
		Msg("order rescheduled")

	return updated, nil
}

// FinancialHealth derives the buyer's 0-100 risk score from lateness
// across their orders.
func (s *InstallmentService) FinancialHealth(ctx context.Context, buyerID uuid.UUID) (domain.FinancialHealth, error) {
	orders, err := s.OrderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return domain.FinancialHealth{}, apperrors.WrapDatabaseError(err)
	}

	return domain.ScoreFinancialHealth(time.Now(), buyerID, orders), nil
}

// ListOrders returns all of a buyer's installment orders.
func (s *InstallmentService) ListOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, error) {
	orders, err := s.OrderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return orders, nil
}

// ListPayments returns the materialized schedule of one order, owned by
// the requesting buyer.
func (s *InstallmentService) ListPayments(ctx context.Context, orderID, buyerID uuid.UUID) ([]*domain.InstallmentPayment, error) {
	if _, err := s.getOwnedOrder(ctx, orderID, buyerID); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return payments, nil
}

// WalletBalance reads the buyer's funding-source balance.
func (s *InstallmentService) WalletBalance(ctx context.Context, buyerID uuid.UUID) (*domain.WalletBalanceResponse, error) {
	wallet, err := s.WalletRepo.GetByUserID(ctx, buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapWalletNotFound(buyerID.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	return &domain.WalletBalanceResponse{UserID: buyerID, Balance: wallet.Balance}, nil
}

// SellerAnalytics summarizes a seller's installment book for the store
// dashboard.
func (s *InstallmentService) SellerAnalytics(ctx context.Context, sellerID uuid.UUID) (*domain.SellerAnalytics, error) {
	orders, err := s.OrderRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	analytics := &domain.SellerAnalytics{
		SellerID:      sellerID,
		TotalRevenue:  decimal.Zero,
		TotalEarned:   decimal.Zero,
		PendingAmount: decimal.Zero,
	}

	for _, order := range orders {
		analytics.TotalRevenue = analytics.TotalRevenue.Add(order.TotalPrice)
		analytics.TotalEarned = analytics.TotalEarned.Add(order.AmountPaid)

		switch {
		case order.IsCompleted():
			analytics.CompletedOrders++
		case order.MissedPayments > 0:
			analytics.OverdueOrders++
		default:
			analytics.ActiveOrders++
		}
	}

	analytics.PendingAmount = analytics.TotalRevenue.Sub(analytics.TotalEarned)
	if len(orders) > 0 {
		analytics.CompletionRate = decimal.NewFromInt(int64(analytics.CompletedOrders)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(len(orders)))).
			Round(2)
	}

	return analytics, nil
}

func (s *InstallmentService) getOwnedOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*domain.InstallmentOrder, error) {
	order, err := s.OrderRepo.GetByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapOrderNotFound(orderID.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	if order.BuyerID != buyerID {
		// Ownership failures look identical to missing orders.
		return nil, apperrors.WrapOrderNotFound(orderID.String())
	}
	return order, nil
}

// mapLedgerError converts sentinel errors surfaced by the ledger
// transaction into business errors for the caller.
func mapLedgerError(err error, orderID uuid.UUID, amount decimal.Decimal) error {
	switch {
	case errors.Is(err, apperrors.ErrOrderNotFound):
		return apperrors.WrapOrderNotFound(orderID.String())
	case errors.Is(err, apperrors.ErrOrderCompleted):
		return apperrors.WrapOrderCompleted(orderID.String())
	case errors.Is(err, apperrors.ErrNoPendingPayments):
		return apperrors.WrapNoPendingPayments(orderID.String())
	case errors.Is(err, apperrors.ErrInvalidAmount):
		return apperrors.WrapInvalidAmount("payment of " + amount.StringFixed(2) + " cannot be applied to this order")
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return apperrors.WrapInsufficientFunds("", amount.StringFixed(2))
	case errors.Is(err, apperrors.ErrWalletNotFound):
		return apperrors.NewBusinessError(apperrors.ErrCodeWalletNotFound, "wallet not found", err)
	case errors.Is(err, apperrors.ErrRescheduleLimitExceeded):
		return apperrors.WrapRescheduleLimitExceeded(orderID.String())
	default:
		return apperrors.WrapDatabaseError(err)
	}
}
