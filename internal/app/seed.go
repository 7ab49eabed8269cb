package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/services"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
)

// SentinelUnitID is used to check if seeding has already occurred.
const SentinelUnitID = "aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaa1"

const (
	DemoProjectID  = "bbbbbbbb-bbbb-4bbb-bbbb-bbbbbbbbbbb1"
	DemoBlockID    = "bbbbbbbb-bbbb-4bbb-bbbb-bbbbbbbbbbb2"
	DemoMarketerID = "cccccccc-cccc-4ccc-cccc-ccccccccccc1"
)

var demoPlots = []struct {
	label string
	size  string
	price ledger.Money
}{
	{"A-01", "450sqm", 15_000_000_00},
	{"A-02", "450sqm", 15_000_000_00},
	{"A-03", "600sqm", 20_000_000_00},
	{"B-01", "1000sqm", 32_500_000_00},
}

// SeedAllTestData creates a demo project with a few available units and a
// default commission rule for the demo marketer. It is idempotent: nothing
// happens once the sentinel unit exists.
func SeedAllTestData(ctx context.Context, store repositories.Store, commissions *services.CommissionService) error {
	sentinelID := uuid.MustParse(SentinelUnitID)
	projectID := uuid.MustParse(DemoProjectID)
	blockID := uuid.MustParse(DemoBlockID)

	existing, err := store.Repos().Units.GetByID(ctx, sentinelID)
	if err != nil {
		return fmt.Errorf("failed to check for sentinel unit: %w", err)
	}
	if existing != nil {
		utils.Logger.Info("Seed data already present; skipping seeding.")
		return nil
	}

	now := utils.SystemClock{}.Now()
	err = store.WithTx(ctx, func(tx repositories.Repos) error {
		for i, p := range demoPlots {
			id := uuid.New()
			if i == 0 {
				id = sentinelID
			}
			u := &models.Unit{
				ID:        id,
				BlockID:   blockID,
				ProjectID: projectID,
				PlotLabel: p.label,
				Size:      p.size,
				BasePrice: p.price,
				Status:    models.UnitStatusAvailable,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Units.Create(ctx, u); err != nil {
				return fmt.Errorf("seed unit %s: %w", p.label, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	pct := ledger.MustPercentage("2.5")
	_, err = commissions.CreateCommissionRule(ctx, services.CommissionRuleInput{
		MarketerID:    uuid.MustParse(DemoMarketerID),
		Name:          "Demo default",
		Kind:          models.CommissionKindPercentage,
		Percentage:    &pct,
		EffectiveFrom: ledger.MustDate("2024-01-01"),
	})
	if err != nil && !errors.Is(err, utils.ErrCommissionRuleOverlap) {
		return fmt.Errorf("seed commission rule: %w", err)
	}

	utils.Logger.Infof("Seeded %d demo units for project %s", len(demoPlots), projectID)
	return nil
}
