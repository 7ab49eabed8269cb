package utils

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Business rule kinds. Every rule violation returned by the service layer
// wraps exactly one of these, so callers can switch with errors.Is.
var (
	ErrIllegalTransition             = errors.New("illegal_transition")
	ErrUnitNotAvailableForAllocation = errors.New("unit_not_available_for_allocation")
	ErrUnitAlreadyAvailable          = errors.New("unit_already_available")
	ErrNoSaleRecord                  = errors.New("no_sale_record")
	ErrNoActiveSaleForUnit           = errors.New("no_active_sale_for_unit")
	ErrNoCommissionRuleConfigured    = errors.New("no_commission_rule_configured")
	ErrAmbiguousCommissionRule       = errors.New("ambiguous_commission_rule")
	ErrInvalidRuleDefinition         = errors.New("invalid_rule_definition")
	ErrPlanAmountMismatch            = errors.New("plan_amount_mismatch")
	ErrAlreadyPaid                   = errors.New("already_paid")
	ErrUnknownInstallment            = errors.New("unknown_installment")

	ErrUnitNotFound          = errors.New("unit_not_found")
	ErrSaleNotFound          = errors.New("sale_not_found")
	ErrPlanNotFound          = errors.New("plan_not_found")
	ErrRuleNotFound          = errors.New("rule_not_found")
	ErrCommissionRuleOverlap = errors.New("commission_rule_overlap")
	ErrUnitDeletionForbidden = errors.New("unit_deletion_forbidden")
	ErrUnitArchived          = errors.New("unit_archived")
	ErrOutstandingBalance    = errors.New("outstanding_balance")
	ErrPlanCancelled         = errors.New("plan_cancelled")
	ErrInstallmentNotPaid    = errors.New("installment_not_paid")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrMissingReason         = errors.New("missing_reason")
	ErrPaymentNotVerified    = errors.New("payment_not_verified")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// For external service failures (e.g., Twilio, SendGrid, Stripe)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// RuleViolationError carries the context of a rejected business operation.
type RuleViolationError struct {
	Kind            error
	UnitID          string
	CurrentStatus   string
	AttemptedStatus string
	Details         map[string]string
}

func (e *RuleViolationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.UnitID != "" {
		fmt.Fprintf(&b, " unit=%s", e.UnitID)
	}
	if e.CurrentStatus != "" {
		fmt.Fprintf(&b, " current=%s", e.CurrentStatus)
	}
	if e.AttemptedStatus != "" {
		fmt.Fprintf(&b, " attempted=%s", e.AttemptedStatus)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Details[k])
	}
	return b.String()
}

func (e *RuleViolationError) Unwrap() error { return e.Kind }

// Violation builds a RuleViolationError with optional key/value details.
func Violation(kind error, unitID string, kv ...string) *RuleViolationError {
	e := &RuleViolationError{Kind: kind, UnitID: unitID}
	if len(kv) > 0 {
		e.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[kv[i]] = kv[i+1]
		}
	}
	return e
}

// TransitionViolation builds a violation for a rejected status change.
func TransitionViolation(kind error, unitID, current, attempted string) *RuleViolationError {
	return &RuleViolationError{
		Kind:            kind,
		UnitID:          unitID,
		CurrentStatus:   current,
		AttemptedStatus: attempted,
	}
}

// InfrastructureError signals a storage or transport failure. Fatal means
// the unit of work could not be rolled back and state may be inconsistent.
type InfrastructureError struct {
	Op    string
	Err   error
	Fatal bool
}

func (e *InfrastructureError) Error() string {
	prefix := "infrastructure"
	if e.Fatal {
		prefix = "fatal infrastructure"
	}
	return fmt.Sprintf("%s error during %s: %v", prefix, e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IntegrityError signals stored data that violates an invariant the write
// path should have prevented, such as an out-of-range rule percentage.
type IntegrityError struct {
	Entity string
	ID     string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error on %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsInfrastructure reports whether err is (or wraps) an InfrastructureError.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}

// IsFatal reports whether err must halt the caller: a failed rollback or
// corrupt stored data.
func IsFatal(err error) bool {
	var ie *InfrastructureError
	if errors.As(err, &ie) && ie.Fatal {
		return true
	}
	var ig *IntegrityError
	return errors.As(err, &ig)
}

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
