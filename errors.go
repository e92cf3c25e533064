package lazymint

import (
	"errors"
	"fmt"
)

// LedgerError is the typed failure returned by every ledger and hook operation.
type LedgerError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a *LedgerError with the same code, so that
// errors.Is(err, ErrNotOwner) matches regardless of message or details.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeNotOwner          = "not_owner"
	ErrCodeSignatureMismatch = "signature_mismatch"
	ErrCodeOwnershipMismatch = "ownership_mismatch"
	ErrCodeInvalidAddress    = "invalid_address"
	ErrCodeDecodeFailure     = "decode_failure"
	ErrCodeUnknownLedger     = "unknown_ledger"
	ErrCodeMintAborted       = "mint_aborted"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotOwner          = &LedgerError{Code: ErrCodeNotOwner, Message: "caller is not the owner"}
	ErrSignatureMismatch = &LedgerError{Code: ErrCodeSignatureMismatch, Message: "voucher signature does not match the authorized signer"}
	ErrOwnershipMismatch = &LedgerError{Code: ErrCodeOwnershipMismatch, Message: "voucher owner does not match the recipient"}
	ErrInvalidAddress    = &LedgerError{Code: ErrCodeInvalidAddress, Message: "zero address is not allowed"}
	ErrDecodeFailure     = &LedgerError{Code: ErrCodeDecodeFailure, Message: "malformed voucher payload"}
	ErrUnknownLedger     = &LedgerError{Code: ErrCodeUnknownLedger, Message: "no ledger registered at address"}
	ErrMintAborted       = &LedgerError{Code: ErrCodeMintAborted, Message: "mint aborted by hook"}
)

// NewLedgerError creates a new ledger error
func NewLedgerError(code, message string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the code of the first *LedgerError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
