package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/domain"
	"github.com/campuskit/fees-engine/internal/service"
	customError "github.com/campuskit/fees-engine/pkg/errors"
	"github.com/campuskit/fees-engine/pkg/response"
)

const maxCallbackBody = 1 << 20

type PaymentHandler struct {
	service   *service.PaymentService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewPaymentHandler(svc *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   svc,
		validator: validator.New(),
		logger:    logger,
	}
}

// Pay handles POST /payments/pay.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, customError.WrapValidation("body", "malformed JSON"))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		writeError(w, customError.WrapValidation("body", err.Error()))
		return
	}

	resp, err := h.service.InitiatePayment(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, resp)
}

// Callback handles the gateway webhook. A stale or superseded callback is
// still acknowledged with 200: the gateway only needs to know we received
// it, and the reconciler has already decided it changes nothing.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, customError.WrapValidation("body", "unreadable request body"))
		return
	}

	resp, err := h.service.HandleCallback(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, resp)
}

// Status handles GET /payments/status/{merchantTransactionId}.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	merchantTxnID := mux.Vars(r)["merchantTransactionId"]
	if merchantTxnID == "" {
		writeError(w, customError.WrapValidation("merchantTransactionId", "is required"))
		return
	}

	resp, err := h.service.CheckStatus(r.Context(), merchantTxnID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, resp)
}
