package services

import (
	"testing"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/testhelpers"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCommissionRule(t *testing.T) {
	marketer, project := uuid.New(), uuid.New()
	pid := project
	projectRule := testhelpers.PercentageRule(marketer, &pid, "3.0", jan1, nil)
	defaultRule := testhelpers.PercentageRule(marketer, nil, "2.5", jan1, nil)
	saleAmount := ledger.FromMajor(25_000_000)

	t.Run("project rule beats default", func(t *testing.T) {
		rule, err := ResolveCommissionRule([]*models.CommissionRule{defaultRule, projectRule}, marketer, project, feb1)
		require.NoError(t, err)
		assert.Equal(t, projectRule.ID, rule.ID)
		amount, err := ComputeCommission(rule, saleAmount)
		require.NoError(t, err)
		assert.Equal(t, ledger.FromMajor(750_000), amount)
	})

	t.Run("default when no project rule", func(t *testing.T) {
		rule, err := ResolveCommissionRule([]*models.CommissionRule{defaultRule}, marketer, project, feb1)
		require.NoError(t, err)
		amount, err := ComputeCommission(rule, saleAmount)
		require.NoError(t, err)
		assert.Equal(t, ledger.FromMajor(625_000), amount)
	})

	t.Run("inactive and out of range rules ignored", func(t *testing.T) {
		inactive := testhelpers.PercentageRule(marketer, &pid, "9", jan1, nil)
		inactive.Active = false
		future := testhelpers.PercentageRule(marketer, &pid, "8", ledger.MustDate("2024-03-01"), nil)
		ended := ledger.MustDate("2024-01-31")
		expired := testhelpers.PercentageRule(marketer, &pid, "7", jan1, &ended)
		rule, err := ResolveCommissionRule([]*models.CommissionRule{inactive, future, expired, defaultRule}, marketer, project, feb1)
		require.NoError(t, err)
		assert.Equal(t, defaultRule.ID, rule.ID)
	})

	t.Run("latest start wins within a tier", func(t *testing.T) {
		newer := testhelpers.PercentageRule(marketer, &pid, "3.5", ledger.MustDate("2024-01-15"), nil)
		rule, err := ResolveCommissionRule([]*models.CommissionRule{projectRule, newer}, marketer, project, feb1)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, rule.ID)
	})

	t.Run("same start is ambiguous", func(t *testing.T) {
		twin := testhelpers.PercentageRule(marketer, &pid, "4.0", jan1, nil)
		_, err := ResolveCommissionRule([]*models.CommissionRule{projectRule, twin}, marketer, project, feb1)
		requireKind(t, err, utils.ErrAmbiguousCommissionRule)
		var rv *utils.RuleViolationError
		require.ErrorAs(t, err, &rv)
		assert.Contains(t, rv.Details["rule_ids"], projectRule.ID.String())
		assert.Contains(t, rv.Details["rule_ids"], twin.ID.String())
	})

	t.Run("nothing configured", func(t *testing.T) {
		other := testhelpers.PercentageRule(uuid.New(), nil, "5", jan1, nil)
		_, err := ResolveCommissionRule([]*models.CommissionRule{other}, marketer, project, feb1)
		requireKind(t, err, utils.ErrNoCommissionRuleConfigured)
	})

	t.Run("corrupt stored rule is an integrity error", func(t *testing.T) {
		bad := testhelpers.PercentageRule(marketer, &pid, "3.0", jan1, nil)
		corrupt, err := ledger.ParsePercentageUnchecked("140")
		require.NoError(t, err)
		bad.Percentage = &corrupt
		_, err = ResolveCommissionRule([]*models.CommissionRule{bad}, marketer, project, feb1)
		require.Error(t, err)
		assert.True(t, utils.IsFatal(err))
		assert.ErrorIs(t, err, utils.ErrInvalidRuleDefinition)
	})
}

func TestComputeCommissionFixedAmount(t *testing.T) {
	rule := testhelpers.FixedRule(uuid.New(), nil, ledger.FromMajor(300_000), jan1, nil)
	amount, err := ComputeCommission(rule, ledger.FromMajor(99_000_000))
	require.NoError(t, err)
	assert.Equal(t, ledger.FromMajor(300_000), amount)
}

func TestValidateRuleDefinition(t *testing.T) {
	marketer := uuid.New()
	neg := ledger.Money(-1)

	fixedWithPct := testhelpers.FixedRule(marketer, nil, ledger.FromMajor(1), jan1, nil)
	fixedWithPct.Percentage = utils.Ptr(ledger.MustPercentage("1"))

	negative := testhelpers.FixedRule(marketer, nil, ledger.FromMajor(1), jan1, nil)
	negative.FixedAmount = &neg

	noPct := testhelpers.PercentageRule(marketer, nil, "1", jan1, nil)
	noPct.Percentage = nil

	unknown := testhelpers.PercentageRule(marketer, nil, "1", jan1, nil)
	unknown.Kind = "TIERED"

	for name, rule := range map[string]*models.CommissionRule{
		"fixed with percentage": fixedWithPct,
		"negative fixed":        negative,
		"missing percentage":    noPct,
		"unknown kind":          unknown,
	} {
		t.Run(name, func(t *testing.T) {
			requireKind(t, ValidateRuleDefinition(rule), utils.ErrInvalidRuleDefinition)
		})
	}

	require.NoError(t, ValidateRuleDefinition(testhelpers.PercentageRule(marketer, nil, "100", jan1, nil)))
	require.NoError(t, ValidateRuleDefinition(testhelpers.FixedRule(marketer, nil, 0, jan1, nil)))
}

func TestFindOverlappingRuleSameScopeOnly(t *testing.T) {
	marketer, project := uuid.New(), uuid.New()
	pid := project
	end := ledger.MustDate("2024-06-30")
	existing := testhelpers.PercentageRule(marketer, nil, "2.5", jan1, &end)

	overlapping := testhelpers.PercentageRule(marketer, nil, "3", ledger.MustDate("2024-06-30"), nil)
	assert.Equal(t, existing, FindOverlappingRule([]*models.CommissionRule{existing}, overlapping))

	adjacent := testhelpers.PercentageRule(marketer, nil, "3", ledger.MustDate("2024-07-01"), nil)
	assert.Nil(t, FindOverlappingRule([]*models.CommissionRule{existing}, adjacent))

	projectScoped := testhelpers.PercentageRule(marketer, &pid, "3", jan1, nil)
	assert.Nil(t, FindOverlappingRule([]*models.CommissionRule{existing}, projectScoped))

	existing.Active = false
	assert.Nil(t, FindOverlappingRule([]*models.CommissionRule{existing}, overlapping))
}
