package services

import (
	"context"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
)

// UnitStatusView is the read model returned by GetUnitStatus.
type UnitStatusView struct {
	Unit         *models.Unit `json:"unit"`
	ActiveSaleID *uuid.UUID   `json:"active_sale_id,omitempty"`
	OfferExpired bool         `json:"offer_expired"`
}

func (s *AllocationService) GetUnitStatus(ctx context.Context, unitID uuid.UUID) (*UnitStatusView, error) {
	repos := s.store.Repos()
	u, err := repos.Units.GetByID(ctx, unitID)
	if err != nil {
		return nil, infraErr("load unit", err)
	}
	if u == nil {
		return nil, utils.Violation(utils.ErrUnitNotFound, unitID.String())
	}
	view := &UnitStatusView{Unit: u, OfferExpired: IsOfferExpired(u, s.clock.Now())}
	sale, err := repos.Sales.GetActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, infraErr("load active sale", err)
	}
	if sale != nil {
		view.ActiveSaleID = &sale.ID
	}
	return view, nil
}

// ComputeCommissionPreview answers "what would the commission be" without
// creating a sale.
func (s *AllocationService) ComputeCommissionPreview(
	ctx context.Context,
	marketerID, projectID uuid.UUID,
	saleAmount ledger.Money,
	date time.Time,
) (*CommissionQuote, error) {
	return s.commissions.ComputeCommissionPreview(ctx, marketerID, projectID, saleAmount, date)
}

// GetPlanForSale returns the sale's installment plan, cancelled or not.
func (s *AllocationService) GetPlanForSale(ctx context.Context, saleID uuid.UUID) (*models.InstallmentPlan, error) {
	repos := s.store.Repos()
	sale, err := repos.Sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, infraErr("load sale", err)
	}
	if sale == nil {
		return nil, utils.Violation(utils.ErrSaleNotFound, "", "sale_id", saleID.String())
	}
	plan, err := repos.Plans.GetBySale(ctx, saleID)
	if err != nil {
		return nil, infraErr("load installment plan", err)
	}
	if plan == nil {
		return nil, utils.Violation(utils.ErrPlanNotFound, sale.UnitID.String(), "sale_id", saleID.String())
	}
	return plan, nil
}

// ComputeProgress reports the sale's payment progress as of the service clock.
func (s *AllocationService) ComputeProgress(ctx context.Context, saleID uuid.UUID) (*Progress, error) {
	plan, err := s.GetPlanForSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	p := ComputeProgress(plan, s.clock.Now())
	return &p, nil
}
