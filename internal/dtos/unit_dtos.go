package dtos

import "github.com/DennisTemoye/propty-os1-sub003/internal/models"

type CreateUnitRequest struct {
	BlockID        string `json:"block_id" validate:"required,uuid"`
	ProjectID      string `json:"project_id" validate:"required,uuid"`
	PlotLabel      string `json:"plot_label" validate:"required,max=64"`
	Size           string `json:"size" validate:"omitempty,max=64"`
	BasePriceMinor int64  `json:"base_price_minor" validate:"gte=0,lte=1000000000000000"`
}

type ReserveUnitRequest struct {
	ClientID string `json:"client_id" validate:"required,uuid"`
}

// IssueOfferRequest.ClientID is required for an available unit and
// optional for a reserved one.
type IssueOfferRequest struct {
	ClientID *string `json:"client_id,omitempty" validate:"omitempty,uuid"`
}

type StageRequest struct {
	StageName   string `json:"stage_name" validate:"required,max=128"`
	AmountMinor int64  `json:"amount_minor" validate:"gt=0,lte=1000000000000000"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

type AllocateUnitRequest struct {
	ClientID        string         `json:"client_id" validate:"required,uuid"`
	MarketerID      string         `json:"marketer_id" validate:"required,uuid"`
	SaleAmountMinor int64          `json:"sale_amount_minor" validate:"gt=0,lte=1000000000000000"`
	SaleDate        string         `json:"sale_date" validate:"required,datetime=2006-01-02"`
	Stages          []StageRequest `json:"stages" validate:"required,min=1,dive"`
}

type RevokeAllocationRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ReallocateUnitRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
	AllocateUnitRequest
}

type WithdrawHoldRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type AllocationResponse struct {
	Unit       *models.Unit               `json:"unit"`
	Sale       *models.Sale               `json:"sale"`
	Plan       *models.InstallmentPlan    `json:"plan"`
	Commission *CommissionPreviewResponse `json:"commission"`
}

type RevocationResponse struct {
	Unit *models.Unit            `json:"unit"`
	Sale *models.Sale            `json:"sale"`
	Plan *models.InstallmentPlan `json:"plan,omitempty"`
}
