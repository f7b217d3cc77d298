package gateway

import "github.com/campuskit/fees-engine/internal/domain"

// ResponseCodeInfo describes how one gateway response code maps onto the
// canonical outcome states.
type ResponseCodeInfo struct {
	Code        string
	State       domain.OutcomeState
	Description string
}

// Gateway response codes, normalized. Anything absent from this table is
// treated as FAILED("unrecognized-response") so a malformed or novel
// response can never leave the ledger state ambiguous.
var responseCodes = map[string]ResponseCodeInfo{
	"PAYMENT_SUCCESS": {
		Code:        "PAYMENT_SUCCESS",
		State:       domain.OutcomeSuccess,
		Description: "Payment settled",
	},
	"PAYMENT_INITIATED": {
		Code:        "PAYMENT_INITIATED",
		State:       domain.OutcomePending,
		Description: "Payment accepted, awaiting settlement",
	},
	"PAYMENT_PENDING": {
		Code:        "PAYMENT_PENDING",
		State:       domain.OutcomePending,
		Description: "Payment in progress at the processor",
	},
	"PAYMENT_DECLINED": {
		Code:        "PAYMENT_DECLINED",
		State:       domain.OutcomeFailed,
		Description: "Declined by issuer",
	},
	"PAYMENT_ERROR": {
		Code:        "PAYMENT_ERROR",
		State:       domain.OutcomeFailed,
		Description: "Processor reported an error",
	},
	"PAYMENT_CANCELLED": {
		Code:        "PAYMENT_CANCELLED",
		State:       domain.OutcomeFailed,
		Description: "Cancelled by payer",
	},
	"TIMED_OUT": {
		Code:        "TIMED_OUT",
		State:       domain.OutcomeFailed,
		Description: "Processor-side timeout, attempt is dead",
	},
	"INTERNAL_SERVER_ERROR": {
		Code:        "INTERNAL_SERVER_ERROR",
		State:       domain.OutcomeFailed,
		Description: "Processor internal error",
	},
}

const reasonUnrecognized = "unrecognized-response"

// classify maps a raw response code to its canonical state.
func classify(code string) (ResponseCodeInfo, bool) {
	info, ok := responseCodes[code]
	return info, ok
}
