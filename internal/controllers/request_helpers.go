package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/constants"
	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// formatValidationErrors converts validator errors into field-level details.
func formatValidationErrors(errs validator.ValidationErrors) []dtos.ValidationErrorDetail {
	details := make([]dtos.ValidationErrorDetail, 0, len(errs))
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case "uuid":
			message = fmt.Sprintf("Field '%s' must be a UUID", err.Field())
		case "datetime":
			message = fmt.Sprintf("Field '%s' must be a date formatted %s", err.Field(), err.Param())
		case "min":
			message = fmt.Sprintf("Field '%s' must be at least %s", err.Field(), err.Param())
		case "max", "lte":
			message = fmt.Sprintf("Field '%s' must not exceed %s", err.Field(), err.Param())
		case "gt", "gte":
			message = fmt.Sprintf("Field '%s' must be %s %s", err.Field(), err.Tag(), err.Param())
		case "oneof":
			message = fmt.Sprintf("Field '%s' must be one of [%s]", err.Field(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, dtos.ValidationErrorDetail{
			Field:   err.Field(),
			Message: message,
			Code:    "validation_" + err.Tag(),
		})
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// An empty body decodes to the zero value. It writes the error response
// itself and reports whether to continue.
func decodeAndValidate(ctx context.Context, w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request body", nil, err)
		return false
	}
	if err := v.StructCtx(ctx, dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", formatValidationErrors(validationErrs), err)
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		}
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid "+name+" in path", nil, err)
		return uuid.Nil, false
	}
	return id, true
}

// mustUUID and mustDate parse values already checked by the validator.
func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func mustDate(s string) time.Time {
	return ledger.MustDate(s)
}

func optionalUUID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := mustUUID(*s)
	return &id
}

func optionalDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d := mustDate(*s)
	return &d
}

func stageInputs(in []dtos.StageRequest) []services.StageInput {
	out := make([]services.StageInput, 0, len(in))
	for _, st := range in {
		out = append(out, services.StageInput{
			StageName: st.StageName,
			Amount:    ledger.Money(st.AmountMinor),
			DueDate:   mustDate(st.DueDate),
		})
	}
	return out
}

func commissionResponse(q *services.CommissionQuote) *dtos.CommissionPreviewResponse {
	if q == nil {
		return nil
	}
	out := &dtos.CommissionPreviewResponse{
		Source:                string(q.Source),
		Percentage:            q.Percentage,
		SaleAmountMinor:       q.SaleAmount.Int64(),
		CommissionAmountMinor: q.Amount.Int64(),
		CommissionAmount:      q.Amount.String(),
	}
	if q.Rule != nil {
		out.RuleID = &q.Rule.ID
	}
	if q.FixedAmount != nil {
		out.FixedAmountMinor = utils.Ptr(q.FixedAmount.Int64())
	}
	return out
}
