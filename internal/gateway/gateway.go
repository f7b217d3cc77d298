package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/campuskit/fees-engine/internal/domain"
)

// ErrTimeout marks an Initiate call whose socket timed out. The attempt
// may still have been accepted by the processor, so callers keep the
// recorded transaction id and resolve it later via PollStatus.
var ErrTimeout = errors.New("gateway request timed out")

// InitiateRequest carries everything the gateway needs to start a
// collection attempt. MerchantTransactionID is generated by the caller and
// recorded on the obligation before the outbound call, so a crash between
// the two is recoverable by polling.
type InitiateRequest struct {
	MerchantTransactionID string
	Amount                decimal.Decimal
	PayerContact          string
	ObligationID          string
}

type InitiateResponse struct {
	RedirectURL           string
	MerchantTransactionID string
}

// Adapter talks to the external payment processor and reduces its wire
// formats to canonical outcomes. Implementations must map an outbound
// timeout to a PENDING outcome, never FAILED: the gateway may have
// accepted the request even though our socket gave up.
type Adapter interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	InterpretCallback(body []byte) (domain.Outcome, error)
	PollStatus(ctx context.Context, merchantTransactionID string) (domain.Outcome, error)
}
