package handler

import (
	"net/http"

	"github.com/google/uuid"

	customError "github.com/campuskit/fees-engine/pkg/errors"
	"github.com/campuskit/fees-engine/pkg/response"
)

// branchHeader carries the tenant scope resolved by the auth layer in
// front of this service.
const branchHeader = "X-Branch-ID"

var codeStatus = map[string]int{
	customError.CodeValidation:        http.StatusBadRequest,
	customError.CodeSessionMismatch:   http.StatusBadRequest,
	customError.CodeNoApplicableFees:  http.StatusBadRequest,
	customError.CodeNothingToPay:      http.StatusBadRequest,
	customError.CodeTemplateNotFound:  http.StatusNotFound,
	customError.CodeStudentNotFound:   http.StatusNotFound,
	customError.CodeClassNotFound:     http.StatusNotFound,
	customError.CodeObligationMissing: http.StatusNotFound,
	customError.CodeAlreadyPaid:       http.StatusConflict,
	customError.CodePaymentInProgress: http.StatusConflict,
	customError.CodeStaleTransaction:  http.StatusConflict,
	customError.CodeNotGenerated:      http.StatusConflict,
	customError.CodeGatewayError:      http.StatusBadGateway,
}

func writeError(w http.ResponseWriter, err error) {
	code := customError.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	response.Error(w, status, code, err.Error(), err)
}

func branchFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(branchHeader)
	if raw == "" {
		return uuid.Nil, customError.WrapValidation(branchHeader, "header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, customError.WrapValidation(branchHeader, "must be a uuid")
	}
	return id, nil
}
