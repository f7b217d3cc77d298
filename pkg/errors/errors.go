package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrTemplateNotFound   = errors.New("fee template not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrObligationNotFound = errors.New("obligation not found")
	ErrSessionMismatch    = errors.New("template session does not match request session")
	ErrNoApplicableFees   = errors.New("no applicable fees for requested periods")
	ErrInvalidPeriod      = errors.New("invalid period label")
	ErrNothingToPay       = errors.New("nothing to pay")
	ErrAlreadyPaid        = errors.New("obligation is already paid")
	ErrPaymentInProgress  = errors.New("payment already in progress")
	ErrStaleTransaction   = errors.New("outcome transaction id does not match obligation")
	ErrNotGenerated       = errors.New("obligation has not been generated")
	ErrInconsistentLedger = errors.New("ledger state is inconsistent")
)

// Error codes
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeTemplateNotFound  = "TEMPLATE_NOT_FOUND"
	CodeStudentNotFound   = "STUDENT_NOT_FOUND"
	CodeClassNotFound     = "CLASS_NOT_FOUND"
	CodeObligationMissing = "OBLIGATION_NOT_FOUND"
	CodeSessionMismatch   = "SESSION_MISMATCH"
	CodeNoApplicableFees  = "NO_APPLICABLE_FEES"
	CodeNothingToPay      = "NOTHING_TO_PAY"
	CodeAlreadyPaid       = "ALREADY_PAID"
	CodePaymentInProgress = "PAYMENT_IN_PROGRESS"
	CodeStaleTransaction  = "STALE_TRANSACTION"
	CodeNotGenerated      = "NOT_GENERATED"
	CodeGatewayError      = "GATEWAY_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeInconsistentState = "INCONSISTENT_STATE"
)

// DomainError carries a machine-readable code alongside the message so
// handlers can map errors onto HTTP statuses without string matching.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a DomainError.
func New(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code of a DomainError, or CodeDatabaseError for
// anything unrecognized.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeDatabaseError
}

func WrapValidation(field, reason string) *DomainError {
	return New(CodeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil)
}

func WrapTemplateNotFound(id string) *DomainError {
	return New(CodeTemplateNotFound, fmt.Sprintf("fee template %s not found", id), ErrTemplateNotFound)
}

func WrapStudentNotFound(id string) *DomainError {
	return New(CodeStudentNotFound, fmt.Sprintf("student %s not found or inactive", id), ErrStudentNotFound)
}

func WrapClassNotFound(id string) *DomainError {
	return New(CodeClassNotFound, fmt.Sprintf("class %s not found", id), ErrClassNotFound)
}

func WrapObligationNotFound(id string) *DomainError {
	return New(CodeObligationMissing, fmt.Sprintf("obligation %s not found", id), ErrObligationNotFound)
}

func WrapSessionMismatch(templateID, sessionID string) *DomainError {
	return New(CodeSessionMismatch,
		fmt.Sprintf("template %s does not belong to session %s", templateID, sessionID),
		ErrSessionMismatch)
}

func WrapNoApplicableFees(studentID string) *DomainError {
	return New(CodeNoApplicableFees,
		fmt.Sprintf("no applicable fees for student %s in the requested periods", studentID),
		ErrNoApplicableFees)
}

func WrapNothingToPay(obligationID string) *DomainError {
	return New(CodeNothingToPay, fmt.Sprintf("obligation %s has nothing to pay", obligationID), ErrNothingToPay)
}

func WrapAlreadyPaid(obligationID string) *DomainError {
	return New(CodeAlreadyPaid, fmt.Sprintf("obligation %s is already paid", obligationID), ErrAlreadyPaid)
}

func WrapPaymentInProgress(obligationID string) *DomainError {
	return New(CodePaymentInProgress,
		fmt.Sprintf("a payment for obligation %s is already in progress", obligationID),
		ErrPaymentInProgress)
}

func WrapStaleTransaction(merchantTxnID string) *DomainError {
	return New(CodeStaleTransaction,
		fmt.Sprintf("transaction %s no longer matches the obligation's in-flight attempt", merchantTxnID),
		ErrStaleTransaction)
}

func WrapNotGenerated(obligationID string) *DomainError {
	return New(CodeNotGenerated,
		fmt.Sprintf("obligation %s has not been generated", obligationID),
		ErrNotGenerated)
}

func WrapGatewayError(err error) *DomainError {
	return New(CodeGatewayError, "payment gateway request failed", err)
}

func WrapDatabaseError(err error) *DomainError {
	return New(CodeDatabaseError, "database operation failed", err)
}

func WrapInconsistentState(obligationID, detail string) *DomainError {
	return New(CodeInconsistentState,
		fmt.Sprintf("obligation %s: %s", obligationID, detail),
		ErrInconsistentLedger)
}
