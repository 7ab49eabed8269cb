package services

import (
	"context"
	"testing"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestRecordPayment_SecondCallIsAlreadyPaid(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)
	deposit := res.Plan.Installments[0]

	paid, err := e.svc.RecordPayment(e.ctx, RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      ledger.MustDate("2024-02-02"),
		PaymentMethod: "transfer",
		ReferenceID:   utils.Ptr("TRF-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(5_000_000), paid.Progress.PaidAmount)
	assert.Equal(t, ledger.FromMajor(20_000_000), paid.Progress.Balance)
	assert.True(t, decimal.NewFromInt(20).Equal(paid.Progress.PercentPaid))

	_, err = e.svc.RecordPayment(e.ctx, RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      ledger.MustDate("2024-02-10"),
		PaymentMethod: "cash",
	})
	requireKind(t, err, utils.ErrAlreadyPaid)

	plan, err := e.svc.GetPlanForSale(e.ctx, res.Sale.ID)
	require.NoError(t, err)
	inst := plan.Find(deposit.ID)
	assert.Equal(t, ledger.MustDate("2024-02-02"), *inst.PaidDate)
	assert.Equal(t, "transfer", *inst.PaymentMethod)
	assert.Equal(t, "TRF-001", *inst.ReferenceID)

	paidEvents := 0
	for _, ev := range e.store.AllEvents() {
		if ev.Type == models.EventInstallmentPaid {
			paidEvents++
			assert.Equal(t, res.Sale.ID, *ev.SaleID)
			assert.Equal(t, u.ID, ev.UnitID)
		}
	}
	assert.Equal(t, 1, paidEvents)
}

func TestRecordPayment_UnknownOrCancelled(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)

	_, err := e.svc.RecordPayment(e.ctx, RecordPaymentInput{InstallmentID: uuid.New(), PaidDate: feb1, PaymentMethod: "cash"})
	requireKind(t, err, utils.ErrUnknownInstallment)

	u := e.unit(t)
	res := e.allocate(t, u.ID)
	_, err = e.svc.RevokeAllocation(e.ctx, u.ID, "client withdrew")
	require.NoError(t, err)

	_, err = e.svc.RecordPayment(e.ctx, RecordPaymentInput{InstallmentID: res.Plan.Installments[0].ID, PaidDate: feb1, PaymentMethod: "cash"})
	requireKind(t, err, utils.ErrUnknownInstallment)
}

func TestRecordPayment_CardVerifiedBeforeWrite(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)
	deposit := res.Plan.Installments[0]

	intents := map[string]*stripe.PaymentIntent{
		"pi_short": {ID: "pi_short", Amount: deposit.Amount.Int64() - 100, Currency: "ngn", Status: stripe.PaymentIntentStatusSucceeded},
		"pi_ok":    {ID: "pi_ok", Amount: deposit.Amount.Int64(), Currency: "ngn", Status: stripe.PaymentIntentStatusSucceeded},
	}
	e.svc.verifier = NewStripePaymentVerifierWithFetcher("NGN", func(_ context.Context, id string) (*stripe.PaymentIntent, error) {
		return intents[id], nil
	})

	_, err := e.svc.RecordPayment(e.ctx, RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      feb1,
		PaymentMethod: PaymentMethodCard,
		ReferenceID:   utils.Ptr("pi_short"),
	})
	requireKind(t, err, utils.ErrPaymentNotVerified)

	plan, err := e.svc.GetPlanForSale(e.ctx, res.Sale.ID)
	require.NoError(t, err)
	assert.False(t, plan.Find(deposit.ID).IsPaid())

	_, err = e.svc.RecordPayment(e.ctx, RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      feb1,
		PaymentMethod: PaymentMethodCard,
		ReferenceID:   utils.Ptr("pi_ok"),
	})
	require.NoError(t, err)
}

func TestAddInstallmentRaisesCurrentTotal(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)

	plan, err := e.svc.AddInstallment(e.ctx, res.Plan.ID, "Late fee", ledger.FromMajor(250_000), ledger.MustDate("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(25_000_000), plan.OriginalTotal)
	assert.Equal(t, ledger.FromMajor(25_250_000), plan.CurrentTotal)

	var sum ledger.Money
	for _, inst := range plan.Installments {
		sum += inst.Amount
	}
	assert.Equal(t, plan.CurrentTotal, sum)
	assert.Equal(t, 3, plan.Installments[2].Sequence)

	_, err = e.svc.AddInstallment(e.ctx, uuid.New(), "Late fee", ledger.FromMajor(1), feb1)
	requireKind(t, err, utils.ErrPlanNotFound)

	_, err = e.svc.AddInstallment(e.ctx, res.Plan.ID, "Refund", -5, feb1)
	requireKind(t, err, utils.ErrInvalidAmount)

	_, err = e.svc.RevokeAllocation(e.ctx, u.ID, "client withdrew")
	require.NoError(t, err)
	_, err = e.svc.AddInstallment(e.ctx, res.Plan.ID, "Late fee", ledger.FromMajor(1), feb1)
	requireKind(t, err, utils.ErrPlanCancelled)
}

func TestCorrectReceipt(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)
	deposit := res.Plan.Installments[0]

	_, err := e.svc.CorrectReceipt(e.ctx, deposit.ID, nil, utils.Ptr("TRF-9"))
	requireKind(t, err, utils.ErrInstallmentNotPaid)

	_, err = e.svc.RecordPayment(e.ctx, RecordPaymentInput{
		InstallmentID: deposit.ID,
		PaidDate:      feb1,
		PaymentMethod: "transfer",
		ReferenceID:   utils.Ptr("TRF-1"),
	})
	require.NoError(t, err)

	fixed, err := e.svc.CorrectReceipt(e.ctx, deposit.ID, nil, utils.Ptr("TRF-9"))
	require.NoError(t, err)
	assert.Equal(t, "TRF-9", *fixed.ReferenceID)
	assert.Equal(t, "transfer", *fixed.PaymentMethod)
	assert.Equal(t, feb1, *fixed.PaidDate)

	_, err = e.svc.CorrectReceipt(e.ctx, deposit.ID, nil, nil)
	require.Error(t, err)
}

func TestComputeProgressReportsOverdue(t *testing.T) {
	e := newTestEnv(t)
	e.projectAndDefaultRules(t)
	u := e.unit(t)
	res := e.allocate(t, u.ID)

	e.clock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	p, err := e.svc.ComputeProgress(e.ctx, res.Sale.ID)
	require.NoError(t, err)
	require.Len(t, p.Installments, 2)
	for _, inst := range p.Installments {
		assert.Equal(t, models.InstallmentStatusOverdue, inst.Status)
	}
	assert.True(t, p.PaidAmount.IsZero())
	assert.Equal(t, p.TotalAmount, p.Balance)

	_, err = e.svc.ComputeProgress(e.ctx, uuid.New())
	requireKind(t, err, utils.ErrSaleNotFound)
}
