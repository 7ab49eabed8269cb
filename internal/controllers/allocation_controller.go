package controllers

import (
	"net/http"

	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var allocationValidate = validator.New()

type AllocationController struct {
	allocations *services.AllocationService
}

func NewAllocationController(allocations *services.AllocationService) *AllocationController {
	return &AllocationController{allocations: allocations}
}

func allocateInput(unitID uuid.UUID, req dtos.AllocateUnitRequest) services.AllocateUnitInput {
	return services.AllocateUnitInput{
		UnitID:     unitID,
		ClientID:   mustUUID(req.ClientID),
		MarketerID: mustUUID(req.MarketerID),
		SaleAmount: ledger.Money(req.SaleAmountMinor),
		SaleDate:   mustDate(req.SaleDate),
		Stages:     stageInputs(req.Stages),
	}
}

func allocationResponse(res *services.AllocationResult) dtos.AllocationResponse {
	return dtos.AllocationResponse{
		Unit:       res.Unit,
		Sale:       res.Sale,
		Plan:       res.Plan,
		Commission: commissionResponse(res.Commission),
	}
}

func (c *AllocationController) AllocateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.AllocateUnitRequest
	if !decodeAndValidate(r.Context(), w, r, allocationValidate, &req) {
		return
	}
	res, err := c.allocations.AllocateUnit(r.Context(), allocateInput(id, req))
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, allocationResponse(res))
}

func (c *AllocationController) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.RevokeAllocationRequest
	if !decodeAndValidate(r.Context(), w, r, allocationValidate, &req) {
		return
	}
	res, err := c.allocations.RevokeAllocation(r.Context(), id, req.Reason)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.RevocationResponse{Unit: res.Unit, Sale: res.Sale, Plan: res.Plan})
}

func (c *AllocationController) ReallocateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.ReallocateUnitRequest
	if !decodeAndValidate(r.Context(), w, r, allocationValidate, &req) {
		return
	}
	res, err := c.allocations.ReallocateUnit(r.Context(), services.ReallocateUnitInput{
		Reason:   req.Reason,
		Allocate: allocateInput(id, req.AllocateUnitRequest),
	})
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, allocationResponse(res))
}

func (c *AllocationController) MarkSoldHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	u, err := c.allocations.MarkSold(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}
