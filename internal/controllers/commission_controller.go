package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var commissionValidate = validator.New()

type CommissionController struct {
	commissions *services.CommissionService
}

func NewCommissionController(commissions *services.CommissionService) *CommissionController {
	return &CommissionController{commissions: commissions}
}

func ruleInput(req dtos.CommissionRuleRequest) (services.CommissionRuleInput, error) {
	in := services.CommissionRuleInput{
		ProjectID:     optionalUUID(req.ProjectID),
		Name:          req.Name,
		Kind:          models.CommissionKind(req.Kind),
		EffectiveFrom: mustDate(req.EffectiveFrom),
		EffectiveTo:   optionalDate(req.EffectiveTo),
	}
	if req.MarketerID != "" {
		in.MarketerID = mustUUID(req.MarketerID)
	}
	if req.Percentage != nil {
		p, err := ledger.ParsePercentage(*req.Percentage)
		if err != nil {
			return in, utils.Violation(utils.ErrInvalidRuleDefinition, "", "percentage", *req.Percentage)
		}
		in.Percentage = &p
	}
	if req.FixedAmountMinor != nil {
		in.FixedAmount = utils.Ptr(ledger.Money(*req.FixedAmountMinor))
	}
	return in, nil
}

func (c *CommissionController) CreateRuleHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.CommissionRuleRequest
	if !decodeAndValidate(r.Context(), w, r, commissionValidate, &req) {
		return
	}
	if req.MarketerID == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed",
			[]dtos.ValidationErrorDetail{{Field: "MarketerID", Message: "Field 'MarketerID' is required", Code: "validation_required"}}, nil)
		return
	}
	in, err := ruleInput(req)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	rule, err := c.commissions.CreateCommissionRule(r.Context(), in)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, rule)
}

func (c *CommissionController) UpdateRuleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.CommissionRuleRequest
	if !decodeAndValidate(r.Context(), w, r, commissionValidate, &req) {
		return
	}
	in, err := ruleInput(req)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	rule, err := c.commissions.UpdateCommissionRule(r.Context(), id, in)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

func (c *CommissionController) DeactivateRuleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rule, err := c.commissions.DeactivateCommissionRule(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

func (c *CommissionController) DeleteRuleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	res, err := c.commissions.DeleteCommissionRule(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.DeleteCommissionRuleResponse{
		RuleID:      id,
		Deleted:     res.Deleted,
		Deactivated: res.Deactivated,
	})
}

func (c *CommissionController) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := dtos.CommissionPreviewQuery{
		MarketerID:      q.Get("marketer_id"),
		ProjectID:       q.Get("project_id"),
		SaleAmountMinor: q.Get("sale_amount_minor"),
		Date:            q.Get("date"),
	}
	if err := commissionValidate.StructCtx(r.Context(), query); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", formatValidationErrors(validationErrs), err)
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		}
		return
	}
	amount, err := strconv.ParseInt(query.SaleAmountMinor, 10, 64)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid sale_amount_minor", nil, err)
		return
	}
	quote, err := c.commissions.ComputeCommissionPreview(
		r.Context(),
		uuid.MustParse(query.MarketerID),
		uuid.MustParse(query.ProjectID),
		ledger.Money(amount),
		mustDate(query.Date),
	)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, commissionResponse(quote))
}
