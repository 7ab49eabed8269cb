package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Config returns the settings used by service tests: memory store, 72h
// offers, retained commission on revocation, no fallback.
func Config() *config.Config {
	return &config.Config{
		OrganizationName:           config.OrganizationName,
		AppName:                    config.DefaultAppName,
		Env:                        "test",
		StoreBackend:               config.StoreBackendMemory,
		OfferExpiryWindow:          72 * time.Hour,
		RevocationCommissionPolicy: config.RevocationPolicyRetain,
		RuleCacheTTL:               time.Minute,
		EventMaxAttempts:           3,
		EventBatchSize:             50,
		PaymentCurrency:            "ngn",
	}
}

// Unit builds an available unit in project projectID.
func Unit(projectID uuid.UUID, plotLabel string, basePrice ledger.Money) *models.Unit {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Unit{
		ID:        uuid.New(),
		BlockID:   uuid.New(),
		ProjectID: projectID,
		PlotLabel: plotLabel,
		Size:      "500sqm",
		BasePrice: basePrice,
		Status:    models.UnitStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PercentageRule builds an active percentage rule. A nil projectID makes it
// the marketer default; a nil to makes it open-ended.
func PercentageRule(marketerID uuid.UUID, projectID *uuid.UUID, pct string, from time.Time, to *time.Time) *models.CommissionRule {
	p := ledger.MustPercentage(pct)
	rng, err := ledger.NewDateRange(from, to)
	if err != nil {
		panic(err)
	}
	return &models.CommissionRule{
		ID:             uuid.New(),
		MarketerID:     marketerID,
		ProjectID:      projectID,
		Name:           pct + "% rule",
		Kind:           models.CommissionKindPercentage,
		Percentage:     &p,
		EffectiveRange: rng,
		Active:         true,
	}
}

// FixedRule builds an active fixed-amount rule.
func FixedRule(marketerID uuid.UUID, projectID *uuid.UUID, amount ledger.Money, from time.Time, to *time.Time) *models.CommissionRule {
	rng, err := ledger.NewDateRange(from, to)
	if err != nil {
		panic(err)
	}
	return &models.CommissionRule{
		ID:             uuid.New(),
		MarketerID:     marketerID,
		ProjectID:      projectID,
		Name:           "flat " + amount.String(),
		Kind:           models.CommissionKindFixedAmount,
		FixedAmount:    &amount,
		EffectiveRange: rng,
		Active:         true,
	}
}

// Seed writes units and rules straight to the store.
func Seed(t *testing.T, store repositories.Store, units []*models.Unit, rules []*models.CommissionRule) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()
	for _, u := range units {
		require.NoError(t, repos.Units.Create(ctx, u))
	}
	for _, r := range rules {
		require.NoError(t, repos.Rules.Create(ctx, r))
	}
}
