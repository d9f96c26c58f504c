package api

import (
	"errors"
	"net/http"

	"github.com/bioneo/stakeledger/internal/fault"
)

// statusOf maps a core error to an HTTP status and error code.
func statusOf(err error) (int, string) {
	if errors.Is(err, fault.ErrUnauthorized) {
		return http.StatusForbidden, "UNAUTHORIZED"
	}
	switch fault.KindOf(err) {
	case fault.KindInvalidInput:
		return http.StatusBadRequest, "INVALID_INPUT"
	case fault.KindStateViolation:
		return http.StatusConflict, "STATE_VIOLATION"
	case fault.KindArithmeticFault:
		return http.StatusInternalServerError, "ARITHMETIC_FAULT"
	case fault.KindResourceExhaustion:
		return http.StatusInsufficientStorage, "RESOURCE_EXHAUSTED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func opOf(err error, fallback string) string {
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Op != "" {
		return fe.Op
	}
	return fallback
}
