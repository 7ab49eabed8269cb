package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
)

// ScheduleRequest describes an evenly split payment schedule.
type ScheduleRequest struct {
	Total          ledger.Money
	Deposit        ledger.Money
	Installments   int
	FirstDueDate   time.Time
	IntervalMonths int
}

const maxScheduleInstallments = 120

// BuildSchedule splits Total into an optional deposit followed by
// Installments equal stages, the remainder going to the last stage. Due
// dates are counted in months from FirstDueDate and moved forward to the
// next business day. The result always sums to Total.
func BuildSchedule(req ScheduleRequest) ([]StageInput, error) {
	if !req.Total.IsPositive() || req.Total > ledger.MaxAmount {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "total", req.Total.String())
	}
	if req.Deposit.IsNegative() || req.Deposit >= req.Total {
		return nil, utils.Violation(utils.ErrInvalidAmount, "",
			"deposit", req.Deposit.String(),
			"reason", "deposit must be at least zero and below the total",
		)
	}
	if req.Installments < 1 || req.Installments > maxScheduleInstallments {
		return nil, utils.Violation(utils.ErrInvalidAmount, "",
			"installments", strconv.Itoa(req.Installments),
			"reason", fmt.Sprintf("installments must be between 1 and %d", maxScheduleInstallments),
		)
	}
	if req.FirstDueDate.IsZero() {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "reason", "first due date is required")
	}
	interval := req.IntervalMonths
	if interval <= 0 {
		interval = 1
	}

	remaining := req.Total - req.Deposit
	n := ledger.Money(req.Installments)
	base := remaining / n
	if !base.IsPositive() {
		return nil, utils.Violation(utils.ErrInvalidAmount, "",
			"installments", strconv.Itoa(req.Installments),
			"reason", "amount too small for the number of installments",
		)
	}

	anchor := ledger.DateOnly(req.FirstDueDate)
	due := func(offset int) time.Time {
		return utils.NextBusinessDay(anchor.AddDate(0, offset*interval, 0))
	}

	stages := make([]StageInput, 0, req.Installments+1)
	offset := 0
	if req.Deposit.IsPositive() {
		stages = append(stages, StageInput{StageName: "Deposit", Amount: req.Deposit, DueDate: due(0)})
		offset = 1
	}
	for i := 0; i < req.Installments; i++ {
		amount := base
		if i == req.Installments-1 {
			amount = remaining - base*(n-1)
		}
		stages = append(stages, StageInput{
			StageName: fmt.Sprintf("Installment %d of %d", i+1, req.Installments),
			Amount:    amount,
			DueDate:   due(offset + i),
		})
	}
	return stages, nil
}
