package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
)

type memState struct {
	units  map[uuid.UUID]*models.Unit
	sales  map[uuid.UUID]*models.Sale
	rules  map[uuid.UUID]*models.CommissionRule
	plans  map[uuid.UUID]*models.InstallmentPlan
	events []*models.DomainEvent
}

func newMemState() *memState {
	return &memState{
		units: make(map[uuid.UUID]*models.Unit),
		sales: make(map[uuid.UUID]*models.Sale),
		rules: make(map[uuid.UUID]*models.CommissionRule),
		plans: make(map[uuid.UUID]*models.InstallmentPlan),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.units {
		c.units[k] = v.Clone()
	}
	for k, v := range s.sales {
		c.sales[k] = v.Clone()
	}
	for k, v := range s.rules {
		c.rules[k] = v.Clone()
	}
	for k, v := range s.plans {
		c.plans[k] = v.Clone()
	}
	c.events = make([]*models.DomainEvent, len(s.events))
	for i, e := range s.events {
		c.events[i] = e.Clone()
	}
	return c
}

// MemoryStore keeps everything in process. Units of work run one at a time
// against a private copy of the state which replaces the committed state
// only when the work succeeds.
type MemoryStore struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	state  *memState
	faults map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState(), faults: make(map[string]error)}
}

// InjectFault makes the named write operation (e.g. "plans.create") fail
// with err until cleared with a nil err.
func (s *MemoryStore) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *MemoryStore) fault(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults[op]
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Repos() Repos {
	return s.repos(&memView{store: s})
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Repos) error) error {
	if err := ctx.Err(); err != nil {
		return &utils.InfrastructureError{Op: "begin", Err: err}
	}
	return s.apply(func(staged *memState) error {
		return fn(s.repos(&memView{store: s, staged: staged}))
	})
}

func (s *MemoryStore) apply(fn func(staged *memState) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.state.clone()
	s.mu.RUnlock()

	if err := fn(staged); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = staged
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) repos(v *memView) Repos {
	return Repos{
		Units:  &memUnitRepo{v},
		Sales:  &memSaleRepo{v},
		Rules:  &memRuleRepo{v},
		Plans:  &memPlanRepo{v},
		Events: &memEventRepo{v},
	}
}

// memView reads committed state under the read lock, or the staged copy
// owned by the running unit of work.
type memView struct {
	store  *MemoryStore
	staged *memState
}

func (v *memView) read() (*memState, func()) {
	if v.staged != nil {
		return v.staged, func() {}
	}
	v.store.mu.RLock()
	return v.store.state, v.store.mu.RUnlock
}

// write runs fn against the staged state, or commits a single write
// directly when called outside a unit of work.
func (v *memView) write(op string, fn func(st *memState) error) error {
	if err := v.store.fault(op); err != nil {
		return err
	}
	if v.staged != nil {
		return fn(v.staged)
	}
	return v.store.apply(fn)
}

// ---------------------------------------------------------------------------
// units
// ---------------------------------------------------------------------------

type memUnitRepo struct{ *memView }

func (r *memUnitRepo) Create(_ context.Context, u *models.Unit) error {
	return r.write("units.create", func(st *memState) error {
		if _, ok := st.units[u.ID]; ok {
			return &utils.InfrastructureError{Op: "units.create", Err: errDuplicateKey}
		}
		u.RowVersion = 1
		st.units[u.ID] = u.Clone()
		return nil
	})
}

func (r *memUnitRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Unit, error) {
	st, done := r.read()
	defer done()
	return st.units[id].Clone(), nil
}

func (r *memUnitRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	return r.GetByID(ctx, id)
}

func (r *memUnitRepo) UpdateIfVersion(_ context.Context, u *models.Unit, expectedVersion int64) error {
	return r.write("units.update", func(st *memState) error {
		cur, ok := st.units[u.ID]
		if !ok || cur.RowVersion != expectedVersion {
			return utils.ErrRowVersionConflict
		}
		u.RowVersion = expectedVersion + 1
		st.units[u.ID] = u.Clone()
		return nil
	})
}

func (r *memUnitRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.write("units.delete", func(st *memState) error {
		delete(st.units, id)
		return nil
	})
}

func (r *memUnitRepo) ListExpiredOffers(_ context.Context, now time.Time) ([]*models.Unit, error) {
	st, done := r.read()
	defer done()
	var out []*models.Unit
	for _, u := range st.units {
		if u.Status == models.UnitStatusOffered &&
			u.OfferExpiresAt != nil && u.OfferExpiresAt.Before(now) &&
			u.OfferExpiryEmittedAt == nil && u.ArchivedAt == nil {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferExpiresAt.Before(*out[j].OfferExpiresAt) })
	return out, nil
}

// ---------------------------------------------------------------------------
// sales
// ---------------------------------------------------------------------------

type memSaleRepo struct{ *memView }

func (r *memSaleRepo) Create(_ context.Context, s *models.Sale) error {
	return r.write("sales.create", func(st *memState) error {
		if _, ok := st.sales[s.ID]; ok {
			return &utils.InfrastructureError{Op: "sales.create", Err: errDuplicateKey}
		}
		if s.IsActive() {
			for _, other := range st.sales {
				if other.UnitID == s.UnitID && other.IsActive() {
					return &utils.InfrastructureError{Op: "sales.create", Err: errDuplicateKey}
				}
			}
		}
		s.RowVersion = 1
		st.sales[s.ID] = s.Clone()
		return nil
	})
}

func (r *memSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Sale, error) {
	st, done := r.read()
	defer done()
	return st.sales[id].Clone(), nil
}

func (r *memSaleRepo) GetActiveByUnit(_ context.Context, unitID uuid.UUID) (*models.Sale, error) {
	st, done := r.read()
	defer done()
	for _, s := range st.sales {
		if s.UnitID == unitID && s.IsActive() {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memSaleRepo) UpdateIfVersion(_ context.Context, s *models.Sale, expectedVersion int64) error {
	return r.write("sales.update", func(st *memState) error {
		cur, ok := st.sales[s.ID]
		if !ok || cur.RowVersion != expectedVersion {
			return utils.ErrRowVersionConflict
		}
		next := cur.Clone()
		next.Status = s.Status
		next.CommissionStatus = s.CommissionStatus
		next.RevokedAt = s.RevokedAt
		next.RevocationReason = s.RevocationReason
		next.UpdatedAt = s.UpdatedAt
		next.RowVersion = expectedVersion + 1
		s.RowVersion = next.RowVersion
		st.sales[s.ID] = next
		return nil
	})
}

func (r *memSaleRepo) CountByRule(_ context.Context, ruleID uuid.UUID) (int, error) {
	st, done := r.read()
	defer done()
	n := 0
	for _, s := range st.sales {
		if s.CommissionRuleID != nil && *s.CommissionRuleID == ruleID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// commission rules
// ---------------------------------------------------------------------------

type memRuleRepo struct{ *memView }

func (r *memRuleRepo) Create(_ context.Context, rule *models.CommissionRule) error {
	return r.write("rules.create", func(st *memState) error {
		if _, ok := st.rules[rule.ID]; ok {
			return &utils.InfrastructureError{Op: "rules.create", Err: errDuplicateKey}
		}
		rule.RowVersion = 1
		st.rules[rule.ID] = rule.Clone()
		return nil
	})
}

func (r *memRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CommissionRule, error) {
	st, done := r.read()
	defer done()
	return st.rules[id].Clone(), nil
}

func (r *memRuleRepo) ListByMarketer(_ context.Context, marketerID uuid.UUID) ([]*models.CommissionRule, error) {
	st, done := r.read()
	defer done()
	var out []*models.CommissionRule
	for _, rule := range st.rules {
		if rule.MarketerID == marketerID {
			out = append(out, rule.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].EffectiveRange.Start, out[j].EffectiveRange.Start
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memRuleRepo) UpdateIfVersion(_ context.Context, rule *models.CommissionRule, expectedVersion int64) error {
	return r.write("rules.update", func(st *memState) error {
		cur, ok := st.rules[rule.ID]
		if !ok || cur.RowVersion != expectedVersion {
			return utils.ErrRowVersionConflict
		}
		rule.RowVersion = expectedVersion + 1
		st.rules[rule.ID] = rule.Clone()
		return nil
	})
}

func (r *memRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.write("rules.delete", func(st *memState) error {
		delete(st.rules, id)
		return nil
	})
}

// LockMarketer is a no-op: units of work are already serialized.
func (r *memRuleRepo) LockMarketer(context.Context, uuid.UUID) error {
	return r.store.fault("rules.lock")
}

// ---------------------------------------------------------------------------
// installment plans
// ---------------------------------------------------------------------------

type memPlanRepo struct{ *memView }

func (r *memPlanRepo) Create(_ context.Context, p *models.InstallmentPlan) error {
	return r.write("plans.create", func(st *memState) error {
		if _, ok := st.plans[p.ID]; ok {
			return &utils.InfrastructureError{Op: "plans.create", Err: errDuplicateKey}
		}
		p.RowVersion = 1
		st.plans[p.ID] = p.Clone()
		return nil
	})
}

func (r *memPlanRepo) GetByID(_ context.Context, id uuid.UUID) (*models.InstallmentPlan, error) {
	st, done := r.read()
	defer done()
	return st.plans[id].Clone(), nil
}

func (r *memPlanRepo) GetBySale(_ context.Context, saleID uuid.UUID) (*models.InstallmentPlan, error) {
	st, done := r.read()
	defer done()
	for _, p := range st.plans {
		if p.SaleID == saleID {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memPlanRepo) GetByInstallment(_ context.Context, installmentID uuid.UUID) (*models.InstallmentPlan, error) {
	st, done := r.read()
	defer done()
	for _, p := range st.plans {
		if p.Find(installmentID) != nil {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memPlanRepo) UpdateIfVersion(_ context.Context, p *models.InstallmentPlan, expectedVersion int64) error {
	return r.write("plans.update", func(st *memState) error {
		cur, ok := st.plans[p.ID]
		if !ok || cur.RowVersion != expectedVersion {
			return utils.ErrRowVersionConflict
		}
		p.RowVersion = expectedVersion + 1
		st.plans[p.ID] = p.Clone()
		return nil
	})
}

// ---------------------------------------------------------------------------
// domain events
// ---------------------------------------------------------------------------

type memEventRepo struct{ *memView }

func (r *memEventRepo) Append(_ context.Context, e *models.DomainEvent) error {
	return r.write("events.append", func(st *memState) error {
		c := e.Clone()
		c.DeliveryStatus = models.EventDeliveryPending
		st.events = append(st.events, c)
		return nil
	})
}

func (r *memEventRepo) ListPending(_ context.Context, limit int) ([]*models.DomainEvent, error) {
	st, done := r.read()
	defer done()
	var out []*models.DomainEvent
	for _, e := range st.events {
		if e.DeliveryStatus != models.EventDeliveryPending {
			continue
		}
		out = append(out, e.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memEventRepo) MarkDispatched(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.write("events.update", func(st *memState) error {
		if e := findEvent(st.events, id); e != nil {
			e.DeliveryStatus = models.EventDeliveryDispatched
			e.DispatchedAt = &at
			e.Attempts++
		}
		return nil
	})
}

func (r *memEventRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string, giveUp bool) error {
	return r.write("events.update", func(st *memState) error {
		if e := findEvent(st.events, id); e != nil {
			e.Attempts++
			e.LastFailureReason = &reason
			if giveUp {
				e.DeliveryStatus = models.EventDeliveryFailed
			}
		}
		return nil
	})
}

func findEvent(events []*models.DomainEvent, id uuid.UUID) *models.DomainEvent {
	i := slices.IndexFunc(events, func(e *models.DomainEvent) bool { return e.ID == id })
	if i < 0 {
		return nil
	}
	return events[i]
}

// AllEvents returns every recorded event in append order.
func (s *MemoryStore) AllEvents() []*models.DomainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DomainEvent, len(s.state.events))
	for i, e := range s.state.events {
		out[i] = e.Clone()
	}
	return out
}
