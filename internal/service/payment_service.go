package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/domain"
	"github.com/campuskit/fees-engine/internal/gateway"
	"github.com/campuskit/fees-engine/internal/repository"
	customError "github.com/campuskit/fees-engine/pkg/errors"
)

const (
	initiateLockTTL    = 30 * time.Second
	receiptTimeout     = 10 * time.Second
	receiptCounterName = "receipt"
	paymentModeGateway = "gateway"
)

// PaymentService drives the payment lifecycle: initiation against the
// gateway, and reconciliation of gateway outcomes onto the obligation
// ledger. Apply is the only code path that advances an obligation's
// payment-derived fields.
type PaymentService struct {
	Obligations repository.ObligationRepository
	Receipts    repository.ReceiptRepository
	Counters    repository.CounterRepository
	Gateway     gateway.Adapter

	locks  *redis.Client
	logger *zap.Logger
}

func NewPaymentService(
	obligations repository.ObligationRepository,
	receipts repository.ReceiptRepository,
	counters repository.CounterRepository,
	gw gateway.Adapter,
	locks *redis.Client,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		Obligations: obligations,
		Receipts:    receipts,
		Counters:    counters,
		Gateway:     gw,
		locks:       locks,
		logger:      logger,
	}
}

// InitiatePayment starts a gateway collection for the obligation's payable
// amount. Exactly one in-flight attempt may exist per obligation: the
// conditional claim on merchant_transaction_id serializes concurrent
// callers, and the second one is told "payment already in progress"
// instead of orphaning the first attempt.
func (s *PaymentService) InitiatePayment(ctx context.Context, branchID uuid.UUID, req *domain.PayRequest) (*domain.PayResponse, error) {
	o, err := s.Obligations.GetByID(ctx, branchID, req.ObligationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapObligationNotFound(req.ObligationID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if !o.IsLive() {
		return nil, customError.WrapNotGenerated(o.ID.String())
	}
	if o.Status == domain.StatusPaid {
		return nil, customError.WrapAlreadyPaid(o.ID.String())
	}
	if o.MerchantTransactionID != nil {
		return nil, customError.WrapPaymentInProgress(o.ID.String())
	}

	payable := o.PayableNow()
	if !payable.IsPositive() {
		return nil, customError.WrapNothingToPay(o.ID.String())
	}

	if s.locks != nil {
		key := initiateLockKey(o.ID)
		ok, err := s.locks.SetNX(ctx, key, "1", initiateLockTTL).Result()
		if err == nil && !ok {
			return nil, customError.WrapPaymentInProgress(o.ID.String())
		}
		defer s.locks.Del(context.WithoutCancel(ctx), key)
	}

	merchantTxnID := uuid.New().String()

	// The id is recorded before the outbound call: a crash between the
	// claim and the gateway's acknowledgement is recoverable by polling
	// status with the recorded id.
	if err := s.Obligations.ClaimMerchantTxn(ctx, branchID, o.ID, merchantTxnID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentInProgress(o.ID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	resp, err := s.Gateway.Initiate(ctx, gateway.InitiateRequest{
		MerchantTransactionID: merchantTxnID,
		Amount:                payable,
		PayerContact:          req.PayerContact,
		ObligationID:          o.ID.String(),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) {
			// The gateway may have accepted the request; keep the claim
			// and let the status poll resolve it.
			s.logger.Warn("gateway initiate timed out, attempt left in flight",
				zap.String("obligation_id", o.ID.String()),
				zap.String("merchant_transaction_id", merchantTxnID),
			)
			return nil, customError.WrapGatewayError(err)
		}

		if _, relErr := s.Obligations.ReleaseMerchantTxn(ctx, o.ID, merchantTxnID); relErr != nil {
			s.logger.Error("failed to release claim after gateway rejection",
				zap.String("obligation_id", o.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, customError.WrapGatewayError(err)
	}

	s.logger.Info("payment initiated",
		zap.String("obligation_id", o.ID.String()),
		zap.String("merchant_transaction_id", merchantTxnID),
		zap.String("amount", payable.String()),
	)

	return &domain.PayResponse{
		RedirectURL:           resp.RedirectURL,
		MerchantTransactionID: merchantTxnID,
		Amount:                payable,
	}, nil
}

// HandleCallback normalizes a gateway webhook and applies it. A stale
// callback — one whose transaction id matches no in-flight attempt — is
// absorbed as a no-op: gateways expect acknowledgement regardless of
// applicability.
func (s *PaymentService) HandleCallback(ctx context.Context, body []byte) (*domain.PaymentStatusResponse, error) {
	outcome, err := s.Gateway.InterpretCallback(body)
	if err != nil {
		return nil, customError.WrapValidation("callback", err.Error())
	}

	o, applied, err := s.Apply(ctx, outcome)
	if err != nil {
		return nil, err
	}

	resp := &domain.PaymentStatusResponse{
		MerchantTransactionID: outcome.MerchantTransactionID,
		State:                 outcome.State,
	}
	if o != nil {
		resp.ObligationID = o.ID
		resp.Status = o.Status
		resp.AmountPaid = o.AmountPaid
		resp.BalanceAmount = o.BalanceAmount
	}

	if !applied {
		s.logger.Info("callback absorbed as no-op",
			zap.String("merchant_transaction_id", outcome.MerchantTransactionID),
			zap.String("state", string(outcome.State)),
		)
	}
	return resp, nil
}

// CheckStatus polls the gateway for an attempt and reconciles the result.
func (s *PaymentService) CheckStatus(ctx context.Context, merchantTxnID string) (*domain.PaymentStatusResponse, error) {
	outcome, err := s.Gateway.PollStatus(ctx, merchantTxnID)
	if err != nil {
		return nil, customError.WrapGatewayError(err)
	}
	outcome.MerchantTransactionID = merchantTxnID

	o, _, err := s.Apply(ctx, outcome)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, customError.WrapObligationNotFound(fmt.Sprintf("for transaction %s", merchantTxnID))
	}

	return &domain.PaymentStatusResponse{
		MerchantTransactionID: merchantTxnID,
		State:                 outcome.State,
		ObligationID:          o.ID,
		Status:                o.Status,
		AmountPaid:            o.AmountPaid,
		BalanceAmount:         o.BalanceAmount,
	}, nil
}

// Apply is the reconciler. It locates the obligation by the outcome's
// transaction id and advances the ledger atomically:
//
//	SUCCESS  appends a payment detail, raises amount_paid once, clears the
//	         in-flight id and, on reaching paid, issues a receipt outside
//	         the transaction;
//	PENDING  changes nothing;
//	FAILED   clears the in-flight id and returns the obligation to
//	         pending or partially_paid.
//
// An outcome whose transaction id matches no obligation is stale and is
// reported as (nil, false, nil); re-applying a SUCCESS whose id was
// already cleared is likewise a no-op rather than a double credit.
func (s *PaymentService) Apply(ctx context.Context, outcome domain.Outcome) (*domain.Obligation, bool, error) {
	o, err := s.Obligations.GetByMerchantTxn(ctx, outcome.MerchantTransactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, customError.WrapDatabaseError(err)
	}

	switch outcome.State {
	case domain.OutcomeSuccess:
		if !outcome.AmountSettled.IsPositive() {
			return o, false, customError.WrapInconsistentState(o.ID.String(), "success outcome with non-positive settled amount")
		}

		mode := outcome.InstrumentType
		if mode == "" {
			mode = paymentModeGateway
		}
		detail := domain.PaymentDetail{
			PaymentID:      uuid.New(),
			Mode:           mode,
			AmountPaid:     outcome.AmountSettled,
			CollectionDate: time.Now(),
			ExternalRef:    outcome.ExternalRef,
		}

		updated, applied, err := s.Obligations.ApplySuccess(ctx, o.ID, outcome.MerchantTransactionID, detail)
		if err != nil {
			return nil, false, customError.WrapDatabaseError(err)
		}
		if applied {
			s.logger.Info("payment settled",
				zap.String("obligation_id", updated.ID.String()),
				zap.String("merchant_transaction_id", outcome.MerchantTransactionID),
				zap.String("amount_settled", outcome.AmountSettled.String()),
				zap.String("status", updated.Status),
			)
			if updated.Status == domain.StatusPaid {
				go s.issueReceipt(updated, detail)
			}
		}
		return updated, applied, nil

	case domain.OutcomePending:
		return o, false, nil

	case domain.OutcomeFailed:
		applied, err := s.Obligations.ReleaseMerchantTxn(ctx, o.ID, outcome.MerchantTransactionID)
		if err != nil {
			return nil, false, customError.WrapDatabaseError(err)
		}
		if applied {
			s.logger.Info("payment attempt failed, obligation released for retry",
				zap.String("obligation_id", o.ID.String()),
				zap.String("merchant_transaction_id", outcome.MerchantTransactionID),
				zap.String("reason", outcome.Reason),
			)
		}
		refreshed, err := s.Obligations.GetByID(ctx, o.BranchID, o.ID)
		if err != nil {
			return o, applied, nil
		}
		return refreshed, applied, nil

	default:
		return o, false, customError.WrapInconsistentState(o.ID.String(), fmt.Sprintf("unknown outcome state %q", outcome.State))
	}
}

// ResolveStalePayments polls the gateway for attempts that have been in
// flight longer than maxAge and reconciles whatever it learns. Run from
// the scheduler.
func (s *PaymentService) ResolveStalePayments(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.Obligations.ListStaleInFlight(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	resolved := 0
	for _, o := range stale {
		if o.MerchantTransactionID == nil {
			continue
		}
		outcome, err := s.Gateway.PollStatus(ctx, *o.MerchantTransactionID)
		if err != nil {
			s.logger.Warn("stale payment poll failed",
				zap.String("obligation_id", o.ID.String()),
				zap.Error(err),
			)
			continue
		}
		outcome.MerchantTransactionID = *o.MerchantTransactionID

		if _, applied, err := s.Apply(ctx, outcome); err != nil {
			s.logger.Error("stale payment reconcile failed",
				zap.String("obligation_id", o.ID.String()),
				zap.Error(err),
			)
		} else if applied {
			resolved++
		}
	}
	return resolved, nil
}

// MarkOverdue persists the overdue flag on live unpaid obligations past
// their due date.
func (s *PaymentService) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := s.Obligations.MarkOverdue(ctx, time.Now())
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	return n, nil
}

// issueReceipt renders the receipt for a settled obligation. It runs off
// the request path: a failure here is logged and never rolls back the
// payment state.
func (s *PaymentService) issueReceipt(o *domain.Obligation, detail domain.PaymentDetail) {
	ctx, cancel := context.WithTimeout(context.Background(), receiptTimeout)
	defer cancel()

	seq, err := s.Counters.Next(ctx, receiptCounterName, o.BranchID)
	if err != nil {
		s.logger.Error("receipt number allocation failed",
			zap.String("obligation_id", o.ID.String()),
			zap.Error(err),
		)
		return
	}

	receipt := &domain.Receipt{
		ID:           uuid.New(),
		BranchID:     o.BranchID,
		ObligationID: o.ID,
		ReceiptNo:    fmt.Sprintf("RC-%06d", seq),
		Amount:       o.AmountPaid,
		Mode:         detail.Mode,
		ExternalRef:  detail.ExternalRef,
		CreatedAt:    time.Now(),
	}
	if err := s.Receipts.Create(ctx, receipt); err != nil {
		s.logger.Error("receipt creation failed",
			zap.String("obligation_id", o.ID.String()),
			zap.String("receipt_no", receipt.ReceiptNo),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("receipt issued",
		zap.String("obligation_id", o.ID.String()),
		zap.String("receipt_no", receipt.ReceiptNo),
	)
}

func initiateLockKey(obligationID uuid.UUID) string {
	return "fees:paylock:" + obligationID.String()
}
