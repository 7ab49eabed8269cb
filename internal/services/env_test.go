package services

import (
	"context"
	"testing"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/testhelpers"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	jan1 = ledger.MustDate("2024-01-01")
	feb1 = ledger.MustDate("2024-02-01")
)

type testEnv struct {
	ctx   context.Context
	cfg   *config.Config
	clock *testhelpers.FixedClock
	store *repositories.MemoryStore
	comm  *CommissionService
	svc   *AllocationService

	projectID  uuid.UUID
	marketerID uuid.UUID
	clientID   uuid.UUID
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testhelpers.Config()
	for _, m := range mutate {
		m(cfg)
	}
	clock := testhelpers.NewFixedClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	store := repositories.NewMemoryStore()
	comm := NewCommissionService(cfg, store, clock)
	return &testEnv{
		ctx:        utils.WithActorID(context.Background(), "desk-officer-1"),
		cfg:        cfg,
		clock:      clock,
		store:      store,
		comm:       comm,
		svc:        NewAllocationService(cfg, store, comm, nil, clock),
		projectID:  uuid.New(),
		marketerID: uuid.New(),
		clientID:   uuid.New(),
	}
}

// unit seeds an available ₦25m unit in the env's project.
func (e *testEnv) unit(t *testing.T) *models.Unit {
	t.Helper()
	u := testhelpers.Unit(e.projectID, "Plot "+uuid.NewString()[:4], ledger.FromMajor(25_000_000))
	testhelpers.Seed(t, e.store, []*models.Unit{u}, nil)
	return u
}

func (e *testEnv) rules(t *testing.T, rules ...*models.CommissionRule) {
	t.Helper()
	testhelpers.Seed(t, e.store, nil, rules)
}

// projectAndDefaultRules is the 3.0% project rule plus 2.5% default setup.
func (e *testEnv) projectAndDefaultRules(t *testing.T) (project, fallback *models.CommissionRule) {
	t.Helper()
	pid := e.projectID
	project = testhelpers.PercentageRule(e.marketerID, &pid, "3.0", jan1, nil)
	fallback = testhelpers.PercentageRule(e.marketerID, nil, "2.5", jan1, nil)
	e.rules(t, project, fallback)
	return project, fallback
}

// twoStages splits total into a 20% deposit and a balance due in May.
func twoStages(total ledger.Money) []StageInput {
	deposit := ledger.Money(total.Int64() / 5)
	return []StageInput{
		{StageName: "Deposit", Amount: deposit, DueDate: ledger.MustDate("2024-02-01")},
		{StageName: "Balance", Amount: total.Sub(deposit), DueDate: ledger.MustDate("2024-05-01")},
	}
}

func (e *testEnv) allocateInput(unitID, clientID uuid.UUID) AllocateUnitInput {
	amount := ledger.FromMajor(25_000_000)
	return AllocateUnitInput{
		UnitID:     unitID,
		ClientID:   clientID,
		MarketerID: e.marketerID,
		SaleAmount: amount,
		SaleDate:   feb1,
		Stages:     twoStages(amount),
	}
}

func (e *testEnv) allocate(t *testing.T, unitID uuid.UUID) *AllocationResult {
	t.Helper()
	res, err := e.svc.AllocateUnit(e.ctx, e.allocateInput(unitID, e.clientID))
	require.NoError(t, err)
	return res
}

func (e *testEnv) loadUnit(t *testing.T, id uuid.UUID) *models.Unit {
	t.Helper()
	u, err := e.store.Repos().Units.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (e *testEnv) activeSale(t *testing.T, unitID uuid.UUID) *models.Sale {
	t.Helper()
	s, err := e.store.Repos().Sales.GetActiveByUnit(context.Background(), unitID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) eventTypes() []models.DomainEventType {
	var out []models.DomainEventType
	for _, ev := range e.store.AllEvents() {
		out = append(out, ev.Type)
	}
	return out
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind, "got %v", err)
}
