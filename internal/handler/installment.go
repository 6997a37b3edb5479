package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/omniflow/installment-engine/internal/domain"
	apperrors "github.com/omniflow/installment-engine/pkg/errors"
	"github.com/omniflow/installment-engine/pkg/response"
)

// InstallmentService is the surface of the domain service the HTTP layer
// depends on.
type InstallmentService interface {
	AttachPlan(ctx context.Context, productID uuid.UUID, request *domain.AttachPlanRequest) (*domain.InstallmentPlan, error)
	GetPlan(ctx context.Context, productID uuid.UUID) (*domain.InstallmentPlan, error)
	CreateOrder(ctx context.Context, request *domain.CreateOrderRequest) (*domain.CreateOrderResponse, error)
	ApplyPayment(ctx context.Context, orderID uuid.UUID, request *domain.ApplyPaymentRequest) (*domain.ApplyPaymentResponse, error)
	Reschedule(ctx context.Context, orderID uuid.UUID, request *domain.RescheduleRequest) (*domain.InstallmentOrder, error)
	FinancialHealth(ctx context.Context, buyerID uuid.UUID) (domain.FinancialHealth, error)
	ListOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.InstallmentOrder, error)
	ListPayments(ctx context.Context, orderID, buyerID uuid.UUID) ([]*domain.InstallmentPayment, error)
	WalletBalance(ctx context.Context, buyerID uuid.UUID) (*domain.WalletBalanceResponse, error)
	SellerAnalytics(ctx context.Context, sellerID uuid.UUID) (*domain.SellerAnalytics, error)
}

// SyncService is the read-side cache surface used for manual refreshes and
// the financial-health fallback.
type SyncService interface {
	Refresh(ctx context.Context, buyerID uuid.UUID) (bool, error)
	LocalHealth(ctx context.Context, buyerID uuid.UUID) (domain.FinancialHealth, bool, error)
}

type InstallmentHandler struct {
	service   InstallmentService
	sync      SyncService
	validator *validator.Validate
}

func NewInstallmentHandler(service InstallmentService, sync SyncService) *InstallmentHandler {
	return &InstallmentHandler{
		service:   service,
		sync:      sync,
		validator: validator.New(),
	}
}

// AttachPlan handles POST /products/{productId}/plan
func (h *InstallmentHandler) AttachPlan(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productId")
	if !ok {
		return
	}

	var request domain.AttachPlanRequest
	if !h.decode(w, r, &request) {
		return
	}

	plan, err := h.service.AttachPlan(r.Context(), productID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, domain.AttachPlanResponse{Plan: plan})
}

// GetPlan handles GET /products/{productId}/plan
func (h *InstallmentHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productId")
	if !ok {
		return
	}

	plan, err := h.service.GetPlan(r.Context(), productID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.AttachPlanResponse{Plan: plan})
}

// CreateOrder handles POST /orders
func (h *InstallmentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateOrderRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.CreateOrder(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, result)
}

// ApplyPayment handles POST /orders/{orderId}/payments
func (h *InstallmentHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	var request domain.ApplyPaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.ApplyPayment(r.Context(), orderID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, result)
}

// Reschedule handles POST /orders/{orderId}/reschedule
func (h *InstallmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	var request domain.RescheduleRequest
	if !h.decode(w, r, &request) {
		return
	}

	order, err := h.service.Reschedule(r.Context(), orderID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.RescheduleResponse{Order: order})
}

// ListOrders handles GET /buyers/{buyerId}/orders
func (h *InstallmentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := pathUUID(w, r, "buyerId")
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), buyerID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, orders)
}

// ListPayments handles GET /orders/{orderId}/payments
func (h *InstallmentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	buyerID, err := uuid.Parse(r.URL.Query().Get("buyer_id"))
	if err != nil {
		response.BadRequest(w, "buyer_id query parameter must be a valid UUID", err)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), orderID, buyerID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.PaymentListResponse{OrderID: orderID, Payments: payments})
}

// FinancialHealth handles GET /buyers/{buyerId}/financial-health.
// The ledger is the source of truth; when it is unreachable the last
// cached order snapshot provides a local approximation.
func (h *InstallmentHandler) FinancialHealth(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := pathUUID(w, r, "buyerId")
	if !ok {
		return
	}

	health, err := h.service.FinancialHealth(r.Context(), buyerID)
	if err != nil {
		if fallback, ok, ferr := h.sync.LocalHealth(r.Context(), buyerID); ferr == nil && ok {
			response.Success(w, fallback)
			return
		}
		writeBusinessError(w, err)
		return
	}

	response.Success(w, health)
}

// WalletBalance handles GET /buyers/{buyerId}/wallet
func (h *InstallmentHandler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := pathUUID(w, r, "buyerId")
	if !ok {
		return
	}

	balance, err := h.service.WalletBalance(r.Context(), buyerID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, balance)
}

// Refresh handles POST /buyers/{buyerId}/refresh
func (h *InstallmentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := pathUUID(w, r, "buyerId")
	if !ok {
		return
	}

	refreshed, err := h.sync.Refresh(r.Context(), buyerID)
	if err != nil {
		writeBusinessError(w, apperrors.WrapCacheError(err))
		return
	}

	response.Success(w, map[string]bool{"refreshed": refreshed})
}

// SellerAnalytics handles GET /sellers/{sellerId}/analytics
func (h *InstallmentHandler) SellerAnalytics(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathUUID(w, r, "sellerId")
	if !ok {
		return
	}

	analytics, err := h.service.SellerAnalytics(r.Context(), sellerID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, analytics)
}

func (h *InstallmentHandler) decode(w http.ResponseWriter, r *http.Request, request interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return false
	}
	if err := h.validator.Struct(request); err != nil {
		response.BadRequest(w, "request validation failed", err)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, name+" must be a valid UUID", err)
		return uuid.Nil, false
	}
	return id, true
}

func writeBusinessError(w http.ResponseWriter, err error) {
	var business *apperrors.BusinessError
	if !errors.As(err, &business) {
		response.InternalServerError(w, "unexpected error", err)
		return
	}

	response.ErrorWithCode(w, statusForCode(business.Code), business.Code, business.Message, business.Err)
}

func statusForCode(code string) int {
	switch code {
	case apperrors.ErrCodeOrderNotFound,
		apperrors.ErrCodePlanNotFound,
		apperrors.ErrCodeWalletNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInsufficientFunds:
		return http.StatusPaymentRequired
	case apperrors.ErrCodeOrderCompleted,
		apperrors.ErrCodePlanLocked,
		apperrors.ErrCodeRescheduleLimitExceeded:
		return http.StatusConflict
	case apperrors.ErrCodeDatabaseError, apperrors.ErrCodeCacheError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
