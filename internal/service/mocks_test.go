package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/omniflow/installment-engine/internal/domain"
	"github.com/omniflow/installment-engine/internal/repository"
)

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Upsert(ctx context.Context, plan *domain.InstallmentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByProductID(ctx context.Context, productID uuid.UUID) (*domain.InstallmentPlan, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPlan), args.Error(1)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InstallmentPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPlan), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, order *domain.InstallmentOrder, payments []*domain.InstallmentPayment) error {
	args := m.Called(ctx, order, payments)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentOrder), args.Error(1)
}

func (m *MockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentOrder), args.Error(1)
}

func (m *MockOrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.InstallmentOrder, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentOrder), args.Error(1)
}

func (m *MockOrderRepository) ListActive(ctx context.Context) ([]*domain.InstallmentOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentOrder), args.Error(1)
}

func (m *MockOrderRepository) ApplyPayment(ctx context.Context, params repository.ApplyPaymentParams) (*domain.InstallmentOrder, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.InstallmentOrder), args.Bool(1), args.Error(2)
}

func (m *MockOrderRepository) Reschedule(ctx context.Context, orderID uuid.UUID, newDueDate time.Time) (*domain.InstallmentOrder, error) {
	args := m.Called(ctx, orderID, newDueDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentOrder), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.InstallmentPayment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentPayment), args.Error(1)
}

func (m *MockPaymentRepository) NextUnpaid(ctx context.Context, orderID uuid.UUID) (*domain.InstallmentPayment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPayment), args.Error(1)
}

func (m *MockPaymentRepository) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}
