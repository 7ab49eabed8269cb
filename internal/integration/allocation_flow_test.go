//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────────────────────── allocation ───────────────────────── */

func TestConcurrentAllocationOnPostgresHasOneWinner(t *testing.T) {
	e := newEnv(t)
	e.projectRule(t)
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

	stored, err := store.Repos().Units.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusAllocated, stored.Status)
	require.NotEmpty(t, stored.StatusHistory)
	assert.Equal(t, models.UnitStatusAllocated, stored.StatusHistory[len(stored.StatusHistory)-1].Status)
}

func TestRejectedAllocationWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.projectRule(t)
	u := e.unit(t)

	in := e.allocateInput(u.ID, e.clientID)
	in.Stages[1].Amount = in.Stages[1].Amount.Sub(1)
	_, err := e.svc.AllocateUnit(e.ctx, in)
	require.ErrorIs(t, err, utils.ErrPlanAmountMismatch)

	repos := store.Repos()
	stored, err := repos.Units.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusAvailable, stored.Status)
	assert.Equal(t, u.RowVersion, stored.RowVersion)
	sale, err := repos.Sales.GetActiveByUnit(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Nil(t, sale)
}

func TestFailedUnitOfWorkRollsBack(t *testing.T) {
	e := newEnv(t)
	u := e.unit(t)
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), func(tx repositories.Repos) error {
		locked, err := tx.Units.GetForUpdate(context.Background(), u.ID)
		if err != nil {
			return err
		}
		expected := locked.RowVersion
		locked.Status = models.UnitStatusReserved
		locked.CurrentClientID = &e.clientID
		if err := tx.Units.UpdateIfVersion(context.Background(), locked, expected); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Repos().Units.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitStatusAvailable, stored.Status)
	assert.Nil(t, stored.CurrentClientID)
}

/* ───────────────────────── commission rules ───────────────────────── */

func TestConcurrentRuleCreationKeepsOneActiveRule(t *testing.T) {
	e := newEnv(t)
	pid := e.projectID
	pct := ledger.MustPercentage("2.5")
	in := services.CommissionRuleInput{
		MarketerID:    e.marketerID,
		ProjectID:     &pid,
		Name:          "race",
		Kind:          models.CommissionKindPercentage,
		Percentage:    &pct,
		EffectiveFrom: ledger.MustDate("2024-01-01"),
	}

	const callers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		overlaps int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.comm.CreateCommissionRule(e.ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, utils.ErrCommissionRuleOverlap):
				overlaps++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, overlaps)

	rules, err := store.Repos().Rules.ListByMarketer(context.Background(), e.marketerID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].Percentage)
	assert.True(t, rules[0].Percentage.Equal(pct))
	assert.True(t, rules[0].EffectiveRange.IsOpenEnded())
}

func TestEditingReferencedRuleLeavesStoredRowIntact(t *testing.T) {
	e := newEnv(t)
	rule := e.projectRule(t)
	u := e.unit(t)
	res, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	require.NoError(t, err)

	pid := e.projectID
	five := ledger.MustPercentage("5")
	successor, err := e.comm.UpdateCommissionRule(e.ctx, rule.ID, services.CommissionRuleInput{
		ProjectID:     &pid,
		Name:          "raised",
		Kind:          models.CommissionKindPercentage,
		Percentage:    &five,
		EffectiveFrom: ledger.MustDate("2024-01-01"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, rule.ID, successor.ID)

	repos := store.Repos()
	original, err := repos.Rules.GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.False(t, original.Active)
	assert.True(t, original.Percentage.Equal(ledger.MustPercentage("3.0")))
	assert.Equal(t, rule.Name, original.Name)

	sale, err := repos.Sales.GetByID(context.Background(), res.Sale.ID)
	require.NoError(t, err)
	require.NotNil(t, sale.CommissionRuleID)
	assert.Equal(t, rule.ID, *sale.CommissionRuleID)
	assert.Equal(t, ledger.FromMajor(750_000), sale.CommissionAmount)
}

/* ───────────────────────── installments ───────────────────────── */

func TestPaymentsAndAmendmentsPersist(t *testing.T) {
	e := newEnv(t)
	e.projectRule(t)
	u := e.unit(t)
	res, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(u.ID, e.clientID))
	require.NoError(t, err)

	deposit := res.Plan.Installments[0]
	paid, err := e.svc.RecordPayment(e.ctx, services.RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      ledger.MustDate("2024-02-03"),
		PaymentMethod: "transfer",
		ReferenceID:   utils.Ptr("TRF-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, deposit.Amount, paid.Progress.PaidAmount)

	_, err = e.svc.AddInstallment(e.ctx, res.Plan.ID, "Survey fee", ledger.FromMajor(150_000), ledger.MustDate("2024-06-01"))
	require.NoError(t, err)

	plan, err := store.Repos().Plans.GetBySale(context.Background(), res.Sale.ID)
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Installments, 3)
	assert.Equal(t, ledger.FromMajor(25_000_000), plan.OriginalTotal)
	assert.Equal(t, ledger.FromMajor(25_150_000), plan.CurrentTotal)

	total, ok := ledger.Sum(plan.Installments[0].Amount, plan.Installments[1].Amount, plan.Installments[2].Amount)
	require.True(t, ok)
	assert.Equal(t, plan.CurrentTotal, total)

	stored := plan.Find(deposit.ID)
	require.NotNil(t, stored)
	require.True(t, stored.IsPaid())
	assert.Equal(t, ledger.MustDate("2024-02-03"), ledger.DateOnly(*stored.PaidDate))
	assert.Equal(t, "TRF-001", utils.Val(stored.ReferenceID))
	assert.Equal(t, 3, plan.Installments[2].Sequence)

	_, err = e.svc.RecordPayment(e.ctx, services.RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      ledger.MustDate("2024-02-10"),
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, utils.ErrAlreadyPaid)
}
