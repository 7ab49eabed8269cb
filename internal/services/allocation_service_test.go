package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/testhelpers"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────────────────────── allocation ───────────────────────── */

func TestAllocateUnit_ProjectRuleWins(t *testing.T) {
	e := newTestEnv(t)
	projectRule, _ := e.projectAndDefaultRules(t)
	u := e.unit(t)

	res := e.allocate(t, u.ID)

	assert.Equal(t, ledger.FromMajor(750_000), res.Sale.CommissionAmount)
	require.NotNil(t, res.Sale.CommissionRuleID)
	assert.Equal(t, projectRule.ID, *res.Sale.CommissionRuleID)
	assert.Equal(t, models.CommissionSourceRule, res.Sale.CommissionSource)
	assert.Equal(t, models.CommissionStatusBooked, res.Sale.CommissionStatus)
	assert.Equal(t, res.Plan.ID, res.Sale.InstallmentPlanID)

	stored := e.loadUnit(t, u.ID)
	assert.Equal(t, models.UnitStatusAllocated, stored.Status)
	require.Len(t, stored.StatusHistory, 2)
	assert.Equal(t, models.UnitStatusOffered, stored.StatusHistory[0].Status)
	assert.Equal(t, models.UnitStatusAllocated, stored.StatusHistory[1].Status)
	assert.Equal(t, "desk-officer-1", stored.StatusHistory[1].ActorID)
	require.NotNil(t, stored.CurrentClientID)
	assert.Equal(t, e.clientID, *stored.CurrentClientID)

	sale := e.activeSale(t, u.ID)
	require.NotNil(t, sale)
	assert.Equal(t, res.Sale.ID, sale.ID)

	plan, err := e.svc.GetPlanForSale(e.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(25_000_000), plan.OriginalTotal)
	assert.Len(t, plan.Installments, 2)

	assert.Contains(t, e.eventTypes(), models.EventUnitAllocated)
}

func TestAllocateUnit_DefaultRuleWhenNoProjectRule(t *testing.T) {
	e := newTestEnv(t)
	def := e.defaultRuleOnly(t)
	u := e.unit(t)

	res := e.allocate(t, u.ID)

	assert.Equal(t, ledger.FromMajor(625_000), res.Sale.CommissionAmount)
	assert.Equal(t, def.ID, *res.Sale.CommissionRuleID)
}

func (e *testEnv) defaultRuleOnly(t *testing.T) *models.CommissionRule {
	t.Helper()
	other := uuid.New()
	def := testhelpers.PercentageRule(e.marketerID, nil, "2.5", jan1, nil)
	elsewhere := testhelpers.PercentageRule(e.marketerID, &other, "4.0", jan1, nil)
	e.rules(t, def, elsewhere)
	return def
}

func TestAllocateUnit_NoRuleLeavesNothingBehind(t *testing.T) {
	e := newTestEnv(t)
	u := e.unit(t)

	_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	requireKind(t, err, utils.ErrNoCommissionRuleConfigured)

	stored := e.loadUnit(t, u.ID)
	assert.Equal(t, models.UnitStatusAvailable, stored.Status)
	assert.Empty(t, stored.StatusHistory)
	assert.Nil(t, e.activeSale(t, u.ID))
	assert.Empty(t, e.store.AllEvents())
}

func TestAllocateUnit_FallbackRate(t *testing.T) {
	pct := ledger.MustPercentage("1.5")
	e := newTestEnv(t, func(c *config.Config) {
		c.CommissionFallbackPercent = &pct
		c.LDFlag_CommissionFallbackEnabled = true
	})
	u := e.unit(t)

	res := e.allocate(t, u.ID)
	assert.Equal(t, ledger.FromMajor(375_000), res.Sale.CommissionAmount)
	assert.Equal(t, models.CommissionSourceFallback, res.Sale.CommissionSource)
	assert.Nil(t, res.Sale.CommissionRuleID)
}

func TestAllocateUnit_FallbackNeedsFlag(t *testing.T) {
	pct := ledger.MustPercentage("1.5")
	e := newTestEnv(t, func(c *config.Config) { c.CommissionFallbackPercent = &pct })
	u := e.unit(t)

	_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	requireKind(t, err, utils.ErrNoCommissionRuleConfigured)
}

func TestAllocateUnit_PlanMismatchRollsBack(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)

	in := e.allocateInput(u.ID, e.clientID)
	in.Stages[1].Amount = in.Stages[1].Amount.Sub(1)

	_, err := e.svc.AllocateUnit(e.ctx, in)
	requireKind(t, err, utils.ErrPlanAmountMismatch)

	assert.Equal(t, models.UnitStatusAvailable, e.loadUnit(t, u.ID).Status)
	assert.Nil(t, e.activeSale(t, u.ID))
}

func TestAllocateUnit_StorageFailureIsAtomic(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)

	e.store.InjectFault("plans.create", errors.New("disk full"))
	_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	require.Error(t, err)
	assert.True(t, utils.IsInfrastructure(err))

	stored := e.loadUnit(t, u.ID)
	assert.Equal(t, models.UnitStatusAvailable, stored.Status)
	assert.Empty(t, stored.StatusHistory)
	assert.Nil(t, e.activeSale(t, u.ID))
	assert.Empty(t, e.store.AllEvents())

	// retrying after the fault clears succeeds without duplicates
	e.store.InjectFault("plans.create", nil)
	e.allocate(t, u.ID)
	assert.Equal(t, models.UnitStatusAllocated, e.loadUnit(t, u.ID).Status)
}

func TestAllocateUnit_RejectsSoldAndAllocatedUnits(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	e.allocate(t, u.ID)

	_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, uuid.New()))
	requireKind(t, err, utils.ErrUnitNotAvailableForAllocation)

	var rv *utils.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, u.ID.String(), rv.UnitID)
	assert.Equal(t, string(models.UnitStatusAllocated), rv.CurrentStatus)
}

func TestAllocateUnit_UnknownUnit(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(uuid.New(), e.clientID))
	requireKind(t, err, utils.ErrUnitNotFound)
}

func TestAllocateUnit_InvalidAmount(t *testing.T) {
	e := newTestEnv(t)
	u := e.unit(t)
	in := e.allocateInput(u.ID, e.clientID)
	in.SaleAmount = 0
	_, err := e.svc.AllocateUnit(e.ctx, in)
	requireKind(t, err, utils.ErrInvalidAmount)
}

func TestAllocateUnit_ConcurrentCallersOneWins(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, uuid.New()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, utils.ErrUnitNotAvailableForAllocation):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, rejected)

	allocated := 0
	for _, ev := range e.store.AllEvents() {
		if ev.Type == models.EventUnitAllocated {
			allocated++
		}
	}
	assert.Equal(t, 1, allocated)
}

func TestAllocatedCommissionSurvivesRuleChanges(t *testing.T) {
	e := newTestEnv(t)
	projectRule, _ := e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)

	pid := e.projectID
	five := ledger.MustPercentage("5")
	successor, err := e.comm.UpdateCommissionRule(e.ctx, projectRule.ID, CommissionRuleInput{
		ProjectID:     &pid,
		Name:          "raised",
		Kind:          models.CommissionKindPercentage,
		Percentage:    &five,
		EffectiveFrom: jan1,
	})
	require.NoError(t, err)
	assert.NotEqual(t, projectRule.ID, successor.ID)
	assert.True(t, successor.Active)

	original, err := e.store.Repos().Rules.GetByID(context.Background(), projectRule.ID)
	require.NoError(t, err)
	require.NotNil(t, original)
	assert.False(t, original.Active)
	assert.Equal(t, projectRule.Name, original.Name)
	require.NotNil(t, original.Percentage)
	assert.True(t, original.Percentage.Equal(ledger.MustPercentage("3.0")), "got %s", original.Percentage)

	quote, err := e.svc.ComputeCommissionPreview(e.ctx, e.marketerID, e.projectID, ledger.FromMajor(25_000_000), feb1)
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(1_250_000), quote.Amount)
	require.NotNil(t, quote.Rule)
	assert.Equal(t, successor.ID, quote.Rule.ID)

	_, err = e.comm.DeactivateCommissionRule(e.ctx, successor.ID)
	require.NoError(t, err)

	sale, err := e.store.Repos().Sales.GetByID(context.Background(), res.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(750_000), sale.CommissionAmount)
	assert.Equal(t, projectRule.ID, *sale.CommissionRuleID)

	quote, err = e.svc.ComputeCommissionPreview(e.ctx, e.marketerID, e.projectID, ledger.FromMajor(25_000_000), feb1)
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(625_000), quote.Amount)
}

/* ───────────────────────── revocation ───────────────────────── */

func TestRevokeThenReleaseThenAllocate(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	first := e.allocate(t, u.ID)

	rev, err := e.svc.RevokeAllocation(e.ctx, u.ID, "client withdrew")
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusRevoked, rev.Unit.Status)
	assert.Equal(t, models.SaleStatusRevoked, rev.Sale.Status)
	assert.Equal(t, models.CommissionStatusRetained, rev.Sale.CommissionStatus)
	assert.Equal(t, first.Sale.CommissionAmount, rev.Sale.CommissionAmount)
	assert.Equal(t, "client withdrew", utils.Val(rev.Sale.RevocationReason))
	require.NotNil(t, rev.Plan)
	assert.Equal(t, models.PlanStatusCancelled, rev.Plan.Status)

	stored := e.loadUnit(t, u.ID)
	last := stored.StatusHistory[len(stored.StatusHistory)-1]
	assert.Equal(t, "client withdrew", last.Reason)
	assert.Nil(t, stored.CurrentClientID)

	_, err = e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, uuid.New()))
	requireKind(t, err, utils.ErrUnitNotAvailableForAllocation)

	_, err = e.svc.ReleaseUnit(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusAvailable, e.loadUnit(t, u.ID).Status)

	second := e.allocate(t, u.ID)
	assert.NotEqual(t, first.Sale.ID, second.Sale.ID)
	assert.Equal(t, second.Sale.ID, e.activeSale(t, u.ID).ID)

	assert.Subset(t, e.eventTypes(), []models.DomainEventType{
		models.EventUnitAllocated,
		models.EventUnitAllocationRevoked,
		models.EventUnitReleased,
	})
}

func TestRevokeAllocation_Clawback(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.RevocationCommissionPolicy = config.RevocationPolicyClawback })
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	e.allocate(t, u.ID)

	rev, err := e.svc.RevokeAllocation(e.ctx, u.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusClawbackPending, rev.Sale.CommissionStatus)
	assert.Equal(t, ledger.FromMajor(750_000), rev.Sale.CommissionAmount)
	assert.Contains(t, e.eventTypes(), models.EventCommissionClawbackRequired)
}

func TestRevokeAllocation_Rejections(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)

	available := e.unit(t)
	_, err := e.svc.RevokeAllocation(e.ctx, available.ID, "no reason")
	requireKind(t, err, utils.ErrNoActiveSaleForUnit)

	allocated := e.unit(t)
	e.allocate(t, allocated.ID)
	_, err = e.svc.RevokeAllocation(e.ctx, allocated.ID, "   ")
	requireKind(t, err, utils.ErrMissingReason)
	assert.Equal(t, models.UnitStatusAllocated, e.loadUnit(t, allocated.ID).Status)
	assert.NotNil(t, e.activeSale(t, allocated.ID))
}

func TestRevokeSoldUnit(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)
	for _, inst := range res.Plan.Installments {
		_, err := e.svc.RecordPayment(e.ctx, RecordPaymentInput{InstallmentID: inst.ID, PaidDate: feb1, PaymentMethod: "transfer"})
		require.NoError(t, err)
	}
	_, err := e.svc.MarkSold(e.ctx, u.ID)
	require.NoError(t, err)

	rev, err := e.svc.RevokeAllocation(e.ctx, u.ID, "title dispute")
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusRevoked, rev.Unit.Status)
	for _, inst := range rev.Plan.Installments {
		assert.True(t, inst.IsPaid(), "paid installments stay paid after cancellation")
	}
}

/* ───────────────────────── reallocation ───────────────────────── */

func TestReallocateUnit(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	first := e.allocate(t, u.ID)

	newClient := uuid.New()
	res, err := e.svc.ReallocateUnit(e.ctx, ReallocateUnitInput{
		Reason:   "transferred to family member",
		Allocate: e.allocateInput(u.ID, newClient),
	})
	require.NoError(t, err)
	assert.Equal(t, newClient, res.Sale.ClientID)
	assert.Equal(t, models.UnitStatusAllocated, res.Unit.Status)

	old, err := e.store.Repos().Sales.GetByID(context.Background(), first.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusRevoked, old.Status)

	var statuses []models.UnitStatus
	for _, h := range e.loadUnit(t, u.ID).StatusHistory {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []models.UnitStatus{
		models.UnitStatusOffered,
		models.UnitStatusAllocated,
		models.UnitStatusRevoked,
		models.UnitStatusAvailable,
		models.UnitStatusOffered,
		models.UnitStatusAllocated,
	}, statuses)
}

func TestReallocateUnit_FailureKeepsOriginalSale(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	first := e.allocate(t, u.ID)

	in := e.allocateInput(u.ID, uuid.New())
	in.Stages = in.Stages[:1]
	_, err := e.svc.ReallocateUnit(e.ctx, ReallocateUnitInput{Reason: "swap", Allocate: in})
	requireKind(t, err, utils.ErrPlanAmountMismatch)

	assert.Equal(t, models.UnitStatusAllocated, e.loadUnit(t, u.ID).Status)
	assert.Equal(t, first.Sale.ID, e.activeSale(t, u.ID).ID)
}

/* ───────────────────────── lifecycle ───────────────────────── */

func TestReserveThenOfferKeepsClient(t *testing.T) {
	e := newTestEnv(t)
	u := e.unit(t)

	_, err := e.svc.Reserve(e.ctx, u.ID, e.clientID)
	require.NoError(t, err)
	offered, err := e.svc.IssueOffer(e.ctx, u.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.UnitStatusOffered, offered.Status)
	assert.Equal(t, e.clientID, *offered.CurrentClientID)
	require.NotNil(t, offered.OfferExpiresAt)
	assert.Equal(t, e.clock.Now().Add(72*time.Hour), *offered.OfferExpiresAt)
	assert.Equal(t, []models.DomainEventType{models.EventUnitReserved, models.EventUnitOfferIssued}, e.eventTypes())

	_, err = e.svc.Reserve(e.ctx, u.ID, e.clientID)
	requireKind(t, err, utils.ErrIllegalTransition)
}

func TestMarkSoldNeedsZeroBalance(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)

	_, err := e.svc.MarkSold(e.ctx, u.ID)
	requireKind(t, err, utils.ErrOutstandingBalance)

	for _, inst := range res.Plan.Installments {
		_, err := e.svc.RecordPayment(e.ctx, RecordPaymentInput{
			InstallmentID: inst.ID,
			PaidDate:      feb1,
			PaymentMethod: "transfer",
		})
		require.NoError(t, err)
	}

	sold, err := e.svc.MarkSold(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusSold, sold.Status)
	assert.Contains(t, e.eventTypes(), models.EventUnitSold)

	_, err = e.svc.MarkSold(e.ctx, u.ID)
	requireKind(t, err, utils.ErrIllegalTransition)
}

func TestWithdrawHold(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)

	u := e.unit(t)
	_, err := e.svc.Reserve(e.ctx, u.ID, e.clientID)
	require.NoError(t, err)
	withdrawn, err := e.svc.WithdrawHold(e.ctx, u.ID, "client unreachable")
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusRevoked, withdrawn.Status)

	allocated := e.unit(t)
	e.allocate(t, allocated.ID)
	_, err = e.svc.WithdrawHold(e.ctx, allocated.ID, "oops")
	requireKind(t, err, utils.ErrIllegalTransition)

	fresh := e.unit(t)
	_, err = e.svc.WithdrawHold(e.ctx, fresh.ID, "nothing held")
	requireKind(t, err, utils.ErrUnitAlreadyAvailable)
}

/* ───────────────────────── inventory ───────────────────────── */

func TestCreateAndDeleteUnit(t *testing.T) {
	e := newTestEnv(t)
	u, err := e.svc.CreateUnit(e.ctx, CreateUnitInput{
		BlockID:   uuid.New(),
		ProjectID: e.projectID,
		PlotLabel: " A-12 ",
		Size:      "600sqm",
		BasePrice: ledger.FromMajor(18_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "A-12", u.PlotLabel)
	assert.Equal(t, models.UnitStatusAvailable, u.Status)

	require.NoError(t, e.svc.DeleteUnit(e.ctx, u.ID))
	_, err = e.svc.GetUnitStatus(e.ctx, u.ID)
	requireKind(t, err, utils.ErrUnitNotFound)
}

func TestDeleteUnitAfterLeavingAvailable(t *testing.T) {
	e := newTestEnv(t)
	u := e.unit(t)
	_, err := e.svc.Reserve(e.ctx, u.ID, e.clientID)
	require.NoError(t, err)
	_, err = e.svc.WithdrawHold(e.ctx, u.ID, "changed mind")
	require.NoError(t, err)
	_, err = e.svc.ReleaseUnit(e.ctx, u.ID)
	require.NoError(t, err)

	err = e.svc.DeleteUnit(e.ctx, u.ID)
	requireKind(t, err, utils.ErrUnitDeletionForbidden)
	e.loadUnit(t, u.ID)
}

func TestArchiveUnit(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)

	u := e.unit(t)
	archived, err := e.svc.ArchiveUnit(e.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)

	again, err := e.svc.ArchiveUnit(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, archived.ArchivedAt, again.ArchivedAt)

	_, err = e.svc.Reserve(e.ctx, u.ID, e.clientID)
	requireKind(t, err, utils.ErrUnitArchived)
	_, err = e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	requireKind(t, err, utils.ErrUnitArchived)

	held := e.unit(t)
	e.allocate(t, held.ID)
	_, err = e.svc.ArchiveUnit(e.ctx, held.ID)
	requireKind(t, err, utils.ErrIllegalTransition)
}

/* ───────────────────────── offer expiry ───────────────────────── */

func TestSweepExpiredOffersAnnouncesOnce(t *testing.T) {
	e := newTestEnv(t)
	u := e.unit(t)
	_, err := e.svc.IssueOffer(e.ctx, u.ID, &e.clientID)
	require.NoError(t, err)

	n, err := e.svc.SweepExpiredOffers(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(73 * time.Hour)
	n, err = e.svc.SweepExpiredOffers(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	view, err := e.svc.GetUnitStatus(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusOffered, view.Unit.Status)
	assert.True(t, view.OfferExpired)

	n, err = e.svc.SweepExpiredOffers(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	expired := 0
	for _, ev := range e.store.AllEvents() {
		if ev.Type == models.EventUnitOfferExpired {
			expired++
			assert.Equal(t, e.clientID.String(), ev.Payload["client_id"])
		}
	}
	assert.Equal(t, 1, expired)
}
