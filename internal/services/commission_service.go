package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// CommissionRuleInput is the admin-editable part of a rule.
type CommissionRuleInput struct {
	MarketerID    uuid.UUID
	ProjectID     *uuid.UUID
	Name          string
	Kind          models.CommissionKind
	Percentage    *ledger.Percentage
	FixedAmount   *ledger.Money
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// CommissionQuote is a resolved commission for a prospective or real sale.
type CommissionQuote struct {
	Rule        *models.CommissionRule
	Source      models.CommissionSource
	Percentage  *ledger.Percentage
	FixedAmount *ledger.Money
	SaleAmount  ledger.Money
	Amount      ledger.Money
}

// DeleteRuleResult tells the caller whether the rule was removed or, being
// referenced by a sale, only deactivated.
type DeleteRuleResult struct {
	Rule        *models.CommissionRule
	Deleted     bool
	Deactivated bool
}

type CommissionService struct {
	cfg   *config.Config
	store repositories.Store
	clock utils.Clock

	cache   *gocache.Cache
	cacheMu sync.Mutex
	gen     uint64
}

func NewCommissionService(cfg *config.Config, store repositories.Store, clock utils.Clock) *CommissionService {
	ttl := cfg.RuleCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CommissionService{
		cfg:   cfg,
		store: store,
		clock: clock,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// ---------------------------------------------------------------------------
// cache
// ---------------------------------------------------------------------------

func cloneRules(in []*models.CommissionRule) []*models.CommissionRule {
	out := make([]*models.CommissionRule, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// rulesFor returns the marketer's rules, served from cache when possible.
// A load that races with a rule write is not cached.
func (s *CommissionService) rulesFor(
	ctx context.Context,
	repo repositories.CommissionRuleRepository,
	marketerID uuid.UUID,
) ([]*models.CommissionRule, error) {
	key := marketerID.String()
	if v, ok := s.cache.Get(key); ok {
		return cloneRules(v.([]*models.CommissionRule)), nil
	}

	s.cacheMu.Lock()
	gen := s.gen
	s.cacheMu.Unlock()

	rules, err := repo.ListByMarketer(ctx, marketerID)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	if s.gen == gen {
		s.cache.Set(key, cloneRules(rules), gocache.DefaultExpiration)
	}
	s.cacheMu.Unlock()
	return rules, nil
}

func (s *CommissionService) invalidate(marketerID uuid.UUID) {
	s.cacheMu.Lock()
	s.gen++
	s.cache.Delete(marketerID.String())
	s.cacheMu.Unlock()
}

// ---------------------------------------------------------------------------
// resolution
// ---------------------------------------------------------------------------

// Quote resolves the commission for a sale. When no rule applies and a
// fallback rate is configured and enabled, the fallback is used instead.
func (s *CommissionService) Quote(
	ctx context.Context,
	repo repositories.CommissionRuleRepository,
	marketerID, projectID uuid.UUID,
	saleAmount ledger.Money,
	saleDate time.Time,
) (*CommissionQuote, error) {
	rules, err := s.rulesFor(ctx, repo, marketerID)
	if err != nil {
		return nil, infraErr("load commission rules", err)
	}

	rule, err := ResolveCommissionRule(rules, marketerID, projectID, saleDate)
	if err != nil {
		if errors.Is(err, utils.ErrNoCommissionRuleConfigured) {
			if pct, ok := s.cfg.FallbackCommission(); ok {
				utils.Logger.WithFields(logrus.Fields{
					"marketer_id": marketerID,
					"project_id":  projectID,
				}).Warnf("No commission rule configured, applying fallback rate %s%%", pct)
				return &CommissionQuote{
					Source:     models.CommissionSourceFallback,
					Percentage: &pct,
					SaleAmount: saleAmount,
					Amount:     saleAmount.ApplyPercentage(pct),
				}, nil
			}
		}
		if utils.IsFatal(err) {
			utils.Logger.WithError(err).Error("Stored commission rule failed validation")
		}
		return nil, err
	}

	amount, err := ComputeCommission(rule, saleAmount)
	if err != nil {
		return nil, err
	}
	return &CommissionQuote{
		Rule:        rule,
		Source:      models.CommissionSourceRule,
		Percentage:  rule.Percentage,
		FixedAmount: rule.FixedAmount,
		SaleAmount:  saleAmount,
		Amount:      amount,
	}, nil
}

// ComputeCommissionPreview resolves a commission without creating a sale.
func (s *CommissionService) ComputeCommissionPreview(
	ctx context.Context,
	marketerID, projectID uuid.UUID,
	saleAmount ledger.Money,
	date time.Time,
) (*CommissionQuote, error) {
	if !saleAmount.IsPositive() || !saleAmount.InRange() {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "sale_amount", saleAmount.String())
	}
	return s.Quote(ctx, s.store.Repos().Rules, marketerID, projectID, saleAmount, date)
}

// ---------------------------------------------------------------------------
// admin
// ---------------------------------------------------------------------------

func buildRule(in CommissionRuleInput) (*models.CommissionRule, error) {
	rng, err := ledger.NewDateRange(in.EffectiveFrom, in.EffectiveTo)
	if err != nil {
		return nil, utils.Violation(utils.ErrInvalidRuleDefinition, "", "reason", err.Error())
	}
	rule := &models.CommissionRule{
		MarketerID:     in.MarketerID,
		ProjectID:      in.ProjectID,
		Name:           in.Name,
		Kind:           in.Kind,
		Percentage:     in.Percentage,
		FixedAmount:    in.FixedAmount,
		EffectiveRange: rng,
		Active:         true,
	}
	return rule, nil
}

func overlapViolation(existing, candidate *models.CommissionRule) error {
	return utils.Violation(utils.ErrCommissionRuleOverlap, "",
		"marketer_id", candidate.MarketerID.String(),
		"conflicting_rule_id", existing.ID.String(),
		"conflicting_range", existing.EffectiveRange.String(),
		"requested_range", candidate.EffectiveRange.String(),
	)
}

// CreateCommissionRule validates the definition and rejects an active
// same-scope overlap. Writers for one marketer are serialized.
func (s *CommissionService) CreateCommissionRule(ctx context.Context, in CommissionRuleInput) (*models.CommissionRule, error) {
	rule, err := buildRule(in)
	if err != nil {
		return nil, err
	}
	rule.ID = uuid.New()
	if err := ValidateRuleDefinition(rule); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rule.CreatedAt, rule.UpdatedAt = now, now

	s.invalidate(rule.MarketerID)
	defer s.invalidate(rule.MarketerID)

	err = s.store.WithTx(ctx, func(tx repositories.Repos) error {
		if err := tx.Rules.LockMarketer(ctx, rule.MarketerID); err != nil {
			return infraErr("lock marketer", err)
		}
		existing, err := tx.Rules.ListByMarketer(ctx, rule.MarketerID)
		if err != nil {
			return infraErr("load commission rules", err)
		}
		if o := FindOverlappingRule(existing, rule); o != nil {
			return overlapViolation(o, rule)
		}
		if err := tx.Rules.Create(ctx, rule); err != nil {
			return infraErr("create commission rule", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"rule_id":     rule.ID,
		"marketer_id": rule.MarketerID,
	}).Infof("Commission rule created (%s, %s)", rule.Kind, rule.EffectiveRange)
	return rule, nil
}

// UpdateCommissionRule replaces the editable fields of a rule. When sales
// already reference the rule it is deactivated and the edit is saved as a
// new rule, which is returned.
func (s *CommissionService) UpdateCommissionRule(ctx context.Context, ruleID uuid.UUID, in CommissionRuleInput) (*models.CommissionRule, error) {
	current, err := s.store.Repos().Rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, infraErr("load commission rule", err)
	}
	if current == nil {
		return nil, utils.Violation(utils.ErrRuleNotFound, "", "rule_id", ruleID.String())
	}
	if in.MarketerID != uuid.Nil && in.MarketerID != current.MarketerID {
		return nil, utils.Violation(utils.ErrInvalidRuleDefinition, "",
			"rule_id", ruleID.String(),
			"reason", "marketer cannot be changed",
		)
	}
	in.MarketerID = current.MarketerID

	next, err := buildRule(in)
	if err != nil {
		return nil, err
	}
	next.ID = ruleID
	if err := ValidateRuleDefinition(next); err != nil {
		return nil, err
	}

	s.invalidate(current.MarketerID)
	defer s.invalidate(current.MarketerID)

	var (
		saved        *models.CommissionRule
		supersededID *uuid.UUID
	)
	err = s.store.WithTx(ctx, func(tx repositories.Repos) error {
		if err := tx.Rules.LockMarketer(ctx, current.MarketerID); err != nil {
			return infraErr("lock marketer", err)
		}
		locked, err := tx.Rules.GetByID(ctx, ruleID)
		if err != nil {
			return infraErr("load commission rule", err)
		}
		if locked == nil {
			return utils.Violation(utils.ErrRuleNotFound, "", "rule_id", ruleID.String())
		}
		now := s.clock.Now()
		next.Active = locked.Active
		next.CreatedAt = locked.CreatedAt
		next.UpdatedAt = now
		next.RowVersion = locked.RowVersion

		// A rule sales were booked against stays as it was; the edit
		// becomes a new rule and the old one is deactivated.
		referenced, err := tx.Sales.CountByRule(ctx, ruleID)
		if err != nil {
			return infraErr("count sales by rule", err)
		}
		if referenced > 0 {
			if err := s.deactivate(ctx, tx, locked); err != nil {
				return err
			}
			next.ID = uuid.New()
			next.CreatedAt = now
			next.RowVersion = 0
			supersededID = &ruleID
		}

		existing, err := tx.Rules.ListByMarketer(ctx, current.MarketerID)
		if err != nil {
			return infraErr("load commission rules", err)
		}
		if o := FindOverlappingRule(existing, next); o != nil {
			return overlapViolation(o, next)
		}
		if supersededID != nil {
			if err := tx.Rules.Create(ctx, next); err != nil {
				return infraErr("create successor commission rule", err)
			}
		} else if err := tx.Rules.UpdateIfVersion(ctx, next, locked.RowVersion); err != nil {
			return infraErr("update commission rule", err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if supersededID != nil {
		utils.Logger.WithFields(logrus.Fields{
			"rule_id":       saved.ID,
			"superseded_id": ruleID,
		}).Info("Commission rule referenced by sales; superseded by a new rule")
		return saved, nil
	}
	utils.Logger.WithField("rule_id", ruleID).Info("Commission rule updated")
	return saved, nil
}

// DeactivateCommissionRule is idempotent.
func (s *CommissionService) DeactivateCommissionRule(ctx context.Context, ruleID uuid.UUID) (*models.CommissionRule, error) {
	var out *models.CommissionRule
	err := s.withLockedRule(ctx, ruleID, func(tx repositories.Repos, rule *models.CommissionRule) error {
		if err := s.deactivate(ctx, tx, rule); err != nil {
			return err
		}
		out = rule
		return nil
	})
	return out, err
}

// DeleteCommissionRule removes a rule no sale references; a referenced rule
// is deactivated instead so past commissions stay reproducible.
func (s *CommissionService) DeleteCommissionRule(ctx context.Context, ruleID uuid.UUID) (*DeleteRuleResult, error) {
	res := &DeleteRuleResult{}
	err := s.withLockedRule(ctx, ruleID, func(tx repositories.Repos, rule *models.CommissionRule) error {
		res.Rule = rule
		n, err := tx.Sales.CountByRule(ctx, rule.ID)
		if err != nil {
			return infraErr("count sales by rule", err)
		}
		if n > 0 {
			res.Deactivated = true
			return s.deactivate(ctx, tx, rule)
		}
		if err := tx.Rules.Delete(ctx, rule.ID); err != nil {
			return infraErr("delete commission rule", err)
		}
		res.Deleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"rule_id":     ruleID,
		"deleted":     res.Deleted,
		"deactivated": res.Deactivated,
	}).Info("Commission rule removal processed")
	return res, nil
}

func (s *CommissionService) deactivate(ctx context.Context, tx repositories.Repos, rule *models.CommissionRule) error {
	if !rule.Active {
		return nil
	}
	rule.Active = false
	rule.UpdatedAt = s.clock.Now()
	if err := tx.Rules.UpdateIfVersion(ctx, rule, rule.RowVersion); err != nil {
		return infraErr("deactivate commission rule", err)
	}
	return nil
}

func (s *CommissionService) withLockedRule(
	ctx context.Context,
	ruleID uuid.UUID,
	fn func(tx repositories.Repos, rule *models.CommissionRule) error,
) error {
	current, err := s.store.Repos().Rules.GetByID(ctx, ruleID)
	if err != nil {
		return infraErr("load commission rule", err)
	}
	if current == nil {
		return utils.Violation(utils.ErrRuleNotFound, "", "rule_id", ruleID.String())
	}

	s.invalidate(current.MarketerID)
	defer s.invalidate(current.MarketerID)

	return s.store.WithTx(ctx, func(tx repositories.Repos) error {
		if err := tx.Rules.LockMarketer(ctx, current.MarketerID); err != nil {
			return infraErr("lock marketer", err)
		}
		rule, err := tx.Rules.GetByID(ctx, ruleID)
		if err != nil {
			return infraErr("load commission rule", err)
		}
		if rule == nil {
			return utils.Violation(utils.ErrRuleNotFound, "", "rule_id", ruleID.String())
		}
		return fn(tx, rule)
	})
}
