package controllers

import (
	"net/http"

	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/go-playground/validator/v10"
)

var installmentValidate = validator.New()

// InstallmentController serves sale progress and plan maintenance.
type InstallmentController struct {
	allocations *services.AllocationService
}

func NewInstallmentController(allocations *services.AllocationService) *InstallmentController {
	return &InstallmentController{allocations: allocations}
}

func (c *InstallmentController) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	progress, err := c.allocations.ComputeProgress(r.Context(), saleID)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, progress)
}

func (c *InstallmentController) PlanHandler(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	plan, err := c.allocations.GetPlanForSale(r.Context(), saleID)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, plan)
}

func (c *InstallmentController) AddInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.AddInstallmentRequest
	if !decodeAndValidate(r.Context(), w, r, installmentValidate, &req) {
		return
	}
	plan, err := c.allocations.AddInstallment(r.Context(), planID, req.StageName, ledger.Money(req.AmountMinor), mustDate(req.DueDate))
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, plan)
}

// BuildScheduleHandler only computes stages; nothing is stored.
func (c *InstallmentController) BuildScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.BuildScheduleRequest
	if !decodeAndValidate(r.Context(), w, r, installmentValidate, &req) {
		return
	}
	stages, err := services.BuildSchedule(services.ScheduleRequest{
		Total:          ledger.Money(req.TotalMinor),
		Deposit:        ledger.Money(req.DepositMinor),
		Installments:   req.Installments,
		FirstDueDate:   mustDate(req.FirstDueDate),
		IntervalMonths: req.IntervalMonths,
	})
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	resp := dtos.BuildScheduleResponse{TotalMinor: req.TotalMinor, Stages: make([]dtos.ScheduleStageResponse, 0, len(stages))}
	for _, st := range stages {
		resp.Stages = append(resp.Stages, dtos.ScheduleStageResponse{
			StageName:   st.StageName,
			AmountMinor: st.Amount.Int64(),
			DueDate:     st.DueDate.Format(ledger.DateLayout),
		})
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (c *InstallmentController) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.RecordPaymentRequest
	if !decodeAndValidate(r.Context(), w, r, installmentValidate, &req) {
		return
	}
	res, err := c.allocations.RecordPayment(r.Context(), services.RecordPaymentInput{
		InstallmentID: installmentID,
		PaidDate:      mustDate(req.PaidDate),
		PaymentMethod: req.PaymentMethod,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

func (c *InstallmentController) CorrectReceiptHandler(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.CorrectReceiptRequest
	if !decodeAndValidate(r.Context(), w, r, installmentValidate, &req) {
		return
	}
	inst, err := c.allocations.CorrectReceipt(r.Context(), installmentID, req.PaymentMethod, req.ReferenceID)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, inst)
}
