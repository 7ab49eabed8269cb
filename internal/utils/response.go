package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ErrCodeInvalidPayload         = "invalid_payload"
	ErrCodeValidation             = "validation_error"
	ErrCodeInternal               = "internal_server_error"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeNotFound               = "not_found"
	ErrCodeConflict               = "conflict"
	ErrCodeRowVersionConflict     = "row_version_conflict"
	ErrCodeExternalServiceFailure = "external_service_failure"
	ErrCodeServiceUnavailable     = "service_unavailable"
)

// ErrorResponse carries an optional Details field for rule context
// (unit id, current and attempted status).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondErrorWithCode builds a JSON error response with a standard
// code and message. The optional `details` is included if non-nil.
func RespondErrorWithCode(
	w http.ResponseWriter,
	status int,
	errorCode string,
	publicMessage string,
	details any,
	devErrs ...error,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := ErrorResponse{
		Code:    errorCode,
		Message: publicMessage,
	}
	if details != nil {
		errBody.Details = details
	}
	_ = json.NewEncoder(w).Encode(errBody)

	fields := logrus.Fields{"status": status, "code": errorCode}
	if len(devErrs) > 0 && devErrs[0] != nil {
		fields["error"] = devErrs[0].Error()
	}
	if status >= http.StatusInternalServerError {
		Logger.WithFields(fields).Error(publicMessage)
	} else {
		Logger.WithFields(fields).Warn(publicMessage)
	}
}

// RespondWithJSON for successful cases
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondServiceError maps a service-layer error onto an HTTP response.
// Rule violations use their kind as the error code.
func RespondServiceError(w http.ResponseWriter, err error) {
	var rv *RuleViolationError
	if errors.As(err, &rv) {
		RespondErrorWithCode(w, statusForKind(rv.Kind), rv.Kind.Error(), rv.Error(), violationDetails(rv), err)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		HandleAppError(w, err)
		return
	}
	switch {
	case errors.Is(err, ErrRowVersionConflict):
		RespondErrorWithCode(w, http.StatusConflict, ErrCodeRowVersionConflict, "Record was modified concurrently", nil, err)
	case errors.Is(err, ErrExternalServiceFailure):
		RespondErrorWithCode(w, http.StatusBadGateway, ErrCodeExternalServiceFailure, "Upstream service failed", nil, err)
	case IsInfrastructure(err):
		RespondErrorWithCode(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Storage unavailable", nil, err)
	default:
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}

func violationDetails(rv *RuleViolationError) map[string]string {
	d := make(map[string]string, len(rv.Details)+3)
	for k, v := range rv.Details {
		d[k] = v
	}
	if rv.UnitID != "" {
		d["unit_id"] = rv.UnitID
	}
	if rv.CurrentStatus != "" {
		d["current_status"] = rv.CurrentStatus
	}
	if rv.AttemptedStatus != "" {
		d["attempted_status"] = rv.AttemptedStatus
	}
	return d
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, ErrUnitNotFound),
		errors.Is(kind, ErrSaleNotFound),
		errors.Is(kind, ErrPlanNotFound),
		errors.Is(kind, ErrRuleNotFound),
		errors.Is(kind, ErrUnknownInstallment),
		errors.Is(kind, ErrNoActiveSaleForUnit):
		return http.StatusNotFound
	case errors.Is(kind, ErrInvalidRuleDefinition),
		errors.Is(kind, ErrPlanAmountMismatch),
		errors.Is(kind, ErrInvalidAmount),
		errors.Is(kind, ErrMissingReason),
		errors.Is(kind, ErrNoSaleRecord),
		errors.Is(kind, ErrPaymentNotVerified):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}
