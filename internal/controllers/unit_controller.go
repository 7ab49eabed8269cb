package controllers

import (
	"net/http"

	"github.com/DennisTemoye/propty-os1-sub003/internal/dtos"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/go-playground/validator/v10"
)

var unitValidate = validator.New()

// UnitController serves inventory and lifecycle endpoints for units.
type UnitController struct {
	allocations *services.AllocationService
}

func NewUnitController(allocations *services.AllocationService) *UnitController {
	return &UnitController{allocations: allocations}
}

/* ───── inventory ───── */

func (c *UnitController) CreateUnitHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.CreateUnitRequest
	if !decodeAndValidate(r.Context(), w, r, unitValidate, &req) {
		return
	}
	u, err := c.allocations.CreateUnit(r.Context(), services.CreateUnitInput{
		BlockID:   mustUUID(req.BlockID),
		ProjectID: mustUUID(req.ProjectID),
		PlotLabel: req.PlotLabel,
		Size:      req.Size,
		BasePrice: ledger.Money(req.BasePriceMinor),
	})
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, u)
}

func (c *UnitController) DeleteUnitHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.allocations.DeleteUnit(r.Context(), id); err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *UnitController) ArchiveUnitHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	u, err := c.allocations.ArchiveUnit(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (c *UnitController) GetUnitStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	view, err := c.allocations.GetUnitStatus(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

/* ───── holds ───── */

func (c *UnitController) ReserveHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.ReserveUnitRequest
	if !decodeAndValidate(r.Context(), w, r, unitValidate, &req) {
		return
	}
	u, err := c.allocations.Reserve(r.Context(), id, mustUUID(req.ClientID))
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (c *UnitController) IssueOfferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.IssueOfferRequest
	if !decodeAndValidate(r.Context(), w, r, unitValidate, &req) {
		return
	}
	u, err := c.allocations.IssueOffer(r.Context(), id, optionalUUID(req.ClientID))
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (c *UnitController) WithdrawHoldHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.WithdrawHoldRequest
	if !decodeAndValidate(r.Context(), w, r, unitValidate, &req) {
		return
	}
	u, err := c.allocations.WithdrawHold(r.Context(), id, req.Reason)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (c *UnitController) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	u, err := c.allocations.ReleaseUnit(r.Context(), id)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}
