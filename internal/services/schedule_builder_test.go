package services

import (
	"testing"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSchedule(t *testing.T) {
	total := ledger.FromMajor(10_000_000) + 1
	stages, err := BuildSchedule(ScheduleRequest{
		Total:          total,
		Deposit:        ledger.FromMajor(1_000_000),
		Installments:   3,
		FirstDueDate:   ledger.MustDate("2024-03-09"), // Saturday
		IntervalMonths: 1,
	})
	require.NoError(t, err)
	require.Len(t, stages, 4)

	assert.Equal(t, "Deposit", stages[0].StageName)
	assert.Equal(t, ledger.MustDate("2024-03-11"), stages[0].DueDate)
	assert.Equal(t, ledger.MustDate("2024-04-09"), stages[1].DueDate)
	assert.Equal(t, ledger.MustDate("2024-05-09"), stages[2].DueDate)
	assert.Equal(t, ledger.MustDate("2024-06-10"), stages[3].DueDate) // 9th is a Sunday

	assert.Equal(t, ledger.FromMajor(3_000_000), stages[1].Amount)
	assert.Equal(t, ledger.FromMajor(3_000_000)+1, stages[3].Amount)

	var sum ledger.Money
	for _, st := range stages {
		sum += st.Amount
	}
	assert.Equal(t, total, sum)

	plan, err := NewInstallmentPlan(uuid.New(), total, stages, trackerNow)
	require.NoError(t, err)
	assert.Len(t, plan.Installments, 4)
}

func TestBuildScheduleRejects(t *testing.T) {
	first := ledger.MustDate("2024-03-01")
	for name, req := range map[string]ScheduleRequest{
		"zero total":       {Total: 0, Installments: 1, FirstDueDate: first},
		"deposit too big":  {Total: 100, Deposit: 100, Installments: 1, FirstDueDate: first},
		"no installments":  {Total: 100, Installments: 0, FirstDueDate: first},
		"too many":         {Total: 100_000, Installments: 121, FirstDueDate: first},
		"too small":        {Total: 2, Installments: 3, FirstDueDate: first},
		"missing due date": {Total: 100, Installments: 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := BuildSchedule(req)
			requireKind(t, err, utils.ErrInvalidAmount)
		})
	}
}
