package services

import (
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
)

// ResolveCommissionRule picks the rule that governs a sale for the marketer
// on effectiveDate. Active rules whose range contains the date are
// candidates; a rule for projectID beats a marketer default, then the
// latest start wins. Remaining ties are ambiguous.
func ResolveCommissionRule(
	rules []*models.CommissionRule,
	marketerID, projectID uuid.UUID,
	effectiveDate time.Time,
) (*models.CommissionRule, error) {
	var specific, fallback []*models.CommissionRule
	for _, r := range rules {
		if r == nil || !r.Active || r.MarketerID != marketerID {
			continue
		}
		if !r.EffectiveRange.Contains(effectiveDate) {
			continue
		}
		switch {
		case r.ProjectID != nil && *r.ProjectID == projectID:
			specific = append(specific, r)
		case r.ProjectID == nil:
			fallback = append(fallback, r)
		}
	}

	tier := specific
	if len(tier) == 0 {
		tier = fallback
	}
	if len(tier) == 0 {
		return nil, utils.Violation(utils.ErrNoCommissionRuleConfigured, "",
			"marketer_id", marketerID.String(),
			"project_id", projectID.String(),
			"effective_date", ledger.DateOnly(effectiveDate).Format(ledger.DateLayout),
		)
	}

	best := []*models.CommissionRule{tier[0]}
	for _, r := range tier[1:] {
		switch {
		case r.EffectiveRange.Start.After(best[0].EffectiveRange.Start):
			best = []*models.CommissionRule{r}
		case r.EffectiveRange.Start.Equal(best[0].EffectiveRange.Start):
			best = append(best, r)
		}
	}
	if len(best) > 1 {
		ids := make([]string, len(best))
		for i, r := range best {
			ids[i] = r.ID.String()
		}
		return nil, utils.Violation(utils.ErrAmbiguousCommissionRule, "",
			"marketer_id", marketerID.String(),
			"project_id", projectID.String(),
			"rule_ids", strings.Join(ids, ","),
		)
	}

	rule := best[0]
	if err := ValidateRuleDefinition(rule); err != nil {
		return nil, &utils.IntegrityError{Entity: "commission_rule", ID: rule.ID.String(), Err: err}
	}
	return rule, nil
}

// ComputeCommission applies rule to saleAmount. Percentage rules round
// half-up to the minor unit; fixed rules ignore the sale amount.
func ComputeCommission(rule *models.CommissionRule, saleAmount ledger.Money) (ledger.Money, error) {
	if err := ValidateRuleDefinition(rule); err != nil {
		return 0, &utils.IntegrityError{Entity: "commission_rule", ID: rule.ID.String(), Err: err}
	}
	switch rule.Kind {
	case models.CommissionKindPercentage:
		return saleAmount.ApplyPercentage(*rule.Percentage), nil
	default:
		return *rule.FixedAmount, nil
	}
}

// ValidateRuleDefinition checks the shape of a rule independent of other rules.
func ValidateRuleDefinition(rule *models.CommissionRule) error {
	invalid := func(reason string) error {
		return utils.Violation(utils.ErrInvalidRuleDefinition, "",
			"rule_id", rule.ID.String(),
			"reason", reason,
		)
	}

	switch rule.Kind {
	case models.CommissionKindPercentage:
		if rule.Percentage == nil {
			return invalid("percentage required for PERCENTAGE rules")
		}
		if !rule.Percentage.Valid() {
			return invalid("percentage " + rule.Percentage.String() + " outside [0,100]")
		}
		if rule.FixedAmount != nil {
			return invalid("fixed amount not allowed on PERCENTAGE rules")
		}
	case models.CommissionKindFixedAmount:
		if rule.FixedAmount == nil {
			return invalid("fixed amount required for FIXED_AMOUNT rules")
		}
		if rule.FixedAmount.IsNegative() {
			return invalid("fixed amount is negative")
		}
		if !rule.FixedAmount.InRange() {
			return invalid("fixed amount exceeds the ledger range")
		}
		if rule.Percentage != nil {
			return invalid("percentage not allowed on FIXED_AMOUNT rules")
		}
	default:
		return invalid("unknown kind " + string(rule.Kind))
	}

	if rule.EffectiveRange.Start.IsZero() {
		return invalid("effective start required")
	}
	if rule.EffectiveRange.End != nil && rule.EffectiveRange.End.Before(rule.EffectiveRange.Start) {
		return invalid("effective end before start")
	}
	return nil
}

// FindOverlappingRule returns an active rule of the same marketer and scope
// whose range overlaps candidate, or nil. A project rule and a marketer
// default may overlap; resolution prefers the project rule.
func FindOverlappingRule(existing []*models.CommissionRule, candidate *models.CommissionRule) *models.CommissionRule {
	if !candidate.Active {
		return nil
	}
	for _, r := range existing {
		if r.ID == candidate.ID || !r.Active || r.MarketerID != candidate.MarketerID {
			continue
		}
		if !r.SameScope(candidate) {
			continue
		}
		if r.EffectiveRange.Overlaps(candidate.EffectiveRange) {
			return r
		}
	}
	return nil
}
