package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/extensions/idempotency"
	"github.com/artiart/lazymint/ledger"
)

const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeNotDeployed    = "not_deployed"
	ErrCodeKeyReused      = "idempotency_key_reused"
	ErrCodeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusForCode maps an error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case lazymint.ErrCodeNotOwner:
		return http.StatusForbidden
	case lazymint.ErrCodeInvalidAddress, lazymint.ErrCodeDecodeFailure, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case lazymint.ErrCodeOwnershipMismatch, lazymint.ErrCodeSignatureMismatch, lazymint.ErrCodeMintAborted, ErrCodeKeyReused:
		return http.StatusUnprocessableEntity
	case lazymint.ErrCodeUnknownLedger:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotDeployed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// toErrorResponse classifies err. Unclassified errors are reported as
// internal without leaking their text.
func toErrorResponse(err error) ErrorResponse {
	var le *lazymint.LedgerError
	if errors.As(err, &le) {
		return ErrorResponse{Error: le.Code, Message: le.Message, Details: le.Details}
	}
	if errors.Is(err, idempotency.ErrKeyReused) {
		return ErrorResponse{Error: ErrCodeKeyReused, Message: err.Error()}
	}
	if errors.Is(err, ledger.ErrNotDeployed) {
		return ErrorResponse{Error: ErrCodeNotDeployed, Message: err.Error()}
	}
	return ErrorResponse{Error: ErrCodeInternal, Message: "internal error"}
}

func abortWithError(c *gin.Context, err error) {
	resp := toErrorResponse(err)
	status := StatusForCode(resp.Error)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func abortInvalidRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Error:   ErrCodeUnauthorized,
		Message: message,
	})
}
