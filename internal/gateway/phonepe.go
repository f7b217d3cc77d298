package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/config"
	"github.com/campuskit/fees-engine/internal/domain"
)

const (
	payPath    = "/pg/v1/pay"
	statusPath = "/pg/v1/status"
)

// phonePeAdapter implements Adapter against a PhonePe-style processor:
// base64-encoded JSON payloads signed with a SHA-256 checksum over the
// payload, the path and a shared salt key.
type phonePeAdapter struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPhonePeAdapter(cfg config.GatewayConfig, logger *zap.Logger) Adapter {
	return &phonePeAdapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type payPayload struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	MerchantUserID        string `json:"merchantUserId"`
	Amount                int64  `json:"amount"`
	RedirectURL           string `json:"redirectUrl"`
	RedirectMode          string `json:"redirectMode"`
	CallbackURL           string `json:"callbackUrl"`
	MobileNumber          string `json:"mobileNumber,omitempty"`
	PaymentInstrument     struct {
		Type string `json:"type"`
	} `json:"paymentInstrument"`
}

type payAPIResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

type statusAPIResponse struct {
	Success bool    `json:"success"`
	Code    *string `json:"code"`
	Message string  `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		PaymentInstrument     struct {
			Type string `json:"type"`
		} `json:"paymentInstrument"`
	} `json:"data"`
}

// Initiate builds the signed pay request and returns the processor's
// redirect URL. The amount is sent in the smallest currency unit.
func (a *phonePeAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	payload := payPayload{
		MerchantID:            a.cfg.MerchantID,
		MerchantTransactionID: req.MerchantTransactionID,
		MerchantUserID:        req.ObligationID,
		Amount:                toMinorUnits(req.Amount),
		RedirectURL:           a.cfg.RedirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           a.cfg.CallbackURL,
		MobileNumber:          req.PayerContact,
	}
	payload.PaymentInstrument.Type = "PAY_PAGE"

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal pay payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, fmt.Errorf("marshal pay body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+payPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", a.checksum(encoded+payPath))

	a.logger.Info("initiating gateway payment",
		zap.String("merchant_transaction_id", req.MerchantTransactionID),
		zap.String("amount", req.Amount.String()),
	)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("gateway pay call: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("gateway pay call: %w", err)
	}
	defer resp.Body.Close()

	var apiResp payAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode pay response: %w", err)
	}

	if !apiResp.Success || apiResp.Data.InstrumentResponse.RedirectInfo.URL == "" {
		return nil, fmt.Errorf("gateway rejected pay request: %s (%s)", apiResp.Code, apiResp.Message)
	}

	return &InitiateResponse{
		RedirectURL:           apiResp.Data.InstrumentResponse.RedirectInfo.URL,
		MerchantTransactionID: req.MerchantTransactionID,
	}, nil
}

// InterpretCallback decodes the webhook body — a base64 status response
// wrapped in {"response": ...} — into a canonical outcome.
func (a *phonePeAdapter) InterpretCallback(body []byte) (domain.Outcome, error) {
	var envelope struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Response == "" {
		return domain.Outcome{}, fmt.Errorf("malformed callback envelope")
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Response)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("decode callback payload: %w", err)
	}

	var apiResp statusAPIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return domain.Outcome{}, fmt.Errorf("unmarshal callback payload: %w", err)
	}

	return a.normalize(&apiResp), nil
}

// PollStatus queries the processor for the current state of an attempt.
// A transport timeout yields PENDING: the processor may have accepted the
// request even though our socket gave up, so the attempt stays in flight
// for a later poll.
func (a *phonePeAdapter) PollStatus(ctx context.Context, merchantTransactionID string) (domain.Outcome, error) {
	path := fmt.Sprintf("%s/%s/%s", statusPath, a.cfg.MerchantID, merchantTransactionID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", a.checksum(path))
	httpReq.Header.Set("X-MERCHANT-ID", a.cfg.MerchantID)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			a.logger.Warn("gateway status poll timed out, treating as pending",
				zap.String("merchant_transaction_id", merchantTransactionID),
			)
			return domain.Outcome{
				State:                 domain.OutcomePending,
				MerchantTransactionID: merchantTransactionID,
			}, nil
		}
		return domain.Outcome{}, fmt.Errorf("gateway status call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("read status response: %w", err)
	}

	var apiResp statusAPIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return domain.Outcome{
			State:                 domain.OutcomeFailed,
			MerchantTransactionID: merchantTransactionID,
			Reason:                reasonUnrecognized,
		}, nil
	}

	outcome := a.normalize(&apiResp)
	if outcome.MerchantTransactionID == "" {
		outcome.MerchantTransactionID = merchantTransactionID
	}
	return outcome, nil
}

// normalize reduces a status response to exactly one canonical outcome.
// A missing or unknown state field maps to FAILED rather than being
// silently ignored.
func (a *phonePeAdapter) normalize(apiResp *statusAPIResponse) domain.Outcome {
	outcome := domain.Outcome{
		MerchantTransactionID: apiResp.Data.MerchantTransactionID,
	}

	if apiResp.Code == nil {
		outcome.State = domain.OutcomeFailed
		outcome.Reason = reasonUnrecognized
		return outcome
	}

	info, ok := classify(*apiResp.Code)
	if !ok {
		outcome.State = domain.OutcomeFailed
		outcome.Reason = reasonUnrecognized
		return outcome
	}

	outcome.State = info.State
	switch info.State {
	case domain.OutcomeSuccess:
		outcome.AmountSettled = fromMinorUnits(apiResp.Data.Amount)
		outcome.InstrumentType = apiResp.Data.PaymentInstrument.Type
		outcome.ExternalRef = apiResp.Data.TransactionID
	case domain.OutcomeFailed:
		outcome.Reason = info.Code
	}
	return outcome
}

// checksum signs data the processor's way: sha256(data + saltKey) followed
// by "###" and the salt index.
func (a *phonePeAdapter) checksum(data string) string {
	sum := sha256.Sum256([]byte(data + a.cfg.SaltKey))
	return hex.EncodeToString(sum[:]) + "###" + a.cfg.SaltIndex
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
