package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/engine"
	"github.com/xela07ax/retention-registry/internal/infra"
	"github.com/xela07ax/retention-registry/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]domain.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	var ev domain.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]domain.ChangeEvent{}
	}
	p.events[channel] = append(p.events[channel], ev)
	return nil
}

type fixture struct {
	db       *memory.DB
	models   *ModelService
	policies *PolicyService
	pub      *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	pub := &recordingPublisher{}
	metrics := engine.NewMetrics(nil)
	return &fixture{
		db:       db,
		models:   NewModelService(db.Models(), pub, metrics, zap.NewNop()),
		policies: NewPolicyService(db.Policies(), pub, metrics, zap.NewNop()),
		pub:      pub,
	}
}

func (f *fixture) model(t *testing.T, name string, retention int) domain.Model {
	t.Helper()
	m, err := f.models.Create(context.Background(), domain.ModelFields{Name: name, RetentionPeriod: retention}, "alice")
	require.NoError(t, err)
	return m
}

func (f *fixture) policy(t *testing.T, modelID domain.ID, tenant string) domain.Policy {
	t.Helper()
	p, err := f.policies.Create(context.Background(), domain.PolicyDraft{ModelID: modelID, Action: "purge", Tenant: tenant}, "alice")
	require.NoError(t, err)
	return p
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "PII-30d", 30)
	require.Equal(t, domain.ID(1), m.ID)

	p := f.policy(t, m.ID, "acme")
	assert.Equal(t, 30, p.Fields.RetentionPeriod)

	_, err := f.models.Update(ctx, m.ID, domain.ModelPatch{RetentionPeriod: domain.Some(60)}, "bob")
	require.ErrorIs(t, err, domain.ErrReferenceConflict)

	_, err = f.policies.Delete(ctx, p.ID, "bob")
	require.NoError(t, err)

	next, err := f.models.Update(ctx, m.ID, domain.ModelPatch{RetentionPeriod: domain.Some(60)}, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ID(2), next.ID)
	assert.Equal(t, 60, next.Fields.RetentionPeriod)

	old, ok := f.db.Models().Version(m.ID)
	require.True(t, ok)
	require.NotNil(t, old.Retired)
	assert.Equal(t, "bob", old.Retired.By)
	require.NotNil(t, old.Retired.SupersededBy)
	assert.Equal(t, domain.ID(2), *old.Retired.SupersededBy)
}

func TestSingleLiveRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "a", 10)
	ids := []domain.ID{m.ID}
	for i := 0; i < 5; i++ {
		next, err := f.models.Update(ctx, ids[len(ids)-1], domain.ModelPatch{RetentionPeriod: domain.Some(10 + i)}, "bob")
		require.NoError(t, err)
		ids = append(ids, next.ID)
	}

	live := 0
	for _, id := range ids {
		row, ok := f.db.Models().Version(id)
		require.True(t, ok)
		if row.Live() {
			live++
		}
	}
	assert.Equal(t, 1, live)

	_, err := f.models.Delete(ctx, ids[len(ids)-1], "carol")
	require.NoError(t, err)
	models, err := f.models.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestChainLinkage(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "a", 10)

	next, err := f.models.Update(context.Background(), m.ID, domain.ModelPatch{Name: domain.Some("b")}, "bob")
	require.NoError(t, err)
	assert.True(t, next.Live())
	assert.Equal(t, "bob", next.CreatedBy)

	prev, _ := f.db.Models().Version(m.ID)
	require.NotNil(t, prev.Retired)
	assert.Equal(t, "bob", prev.Retired.By)
	assert.Equal(t, next.ID, *prev.Retired.SupersededBy)
}

func TestPartialUpdatePreservesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Create(ctx, domain.ModelFields{
		Name:            "pii",
		Ownership:       "legal",
		Description:     "customer data",
		RetentionPeriod: 30,
		SensitiveFields: "email,phone",
	}, "alice")
	require.NoError(t, err)

	t.Run("omitted fields fall back", func(t *testing.T) {
		next, err := f.models.Update(ctx, m.ID, domain.ModelPatch{Ownership: domain.Some("security")}, "bob")
		require.NoError(t, err)

		want := m.Fields
		want.Ownership = "security"
		assert.Equal(t, want, next.Fields)
		m = next
	})

	t.Run("explicit empty value overrides", func(t *testing.T) {
		next, err := f.models.Update(ctx, m.ID, domain.ModelPatch{Description: domain.Some("")}, "bob")
		require.NoError(t, err)
		assert.Equal(t, "", next.Fields.Description)
		assert.Equal(t, "security", next.Fields.Ownership)
	})
}

func TestGuardBlocksAndReleases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "a", 10)
	p := f.policy(t, m.ID, "acme")

	_, err := f.models.Update(ctx, m.ID, domain.ModelPatch{Name: domain.Some("b")}, "bob")
	assert.ErrorIs(t, err, domain.ErrReferenceConflict)
	_, err = f.models.Delete(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrReferenceConflict)

	got, err := f.models.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = f.policies.Delete(ctx, p.ID, "bob")
	require.NoError(t, err)

	_, err = f.models.Delete(ctx, m.ID, "bob")
	assert.NoError(t, err)
}

func TestStaleIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "a", 10)
	_, err := f.models.Update(ctx, m.ID, domain.ModelPatch{Name: domain.Some("b")}, "bob")
	require.NoError(t, err)

	_, err = f.models.Get(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.models.Update(ctx, m.ID, domain.ModelPatch{Name: domain.Some("c")}, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.models.Delete(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.models.Delete(ctx, 999, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "a", 10)
	a1 := f.policy(t, m.ID, "acme")
	f.policy(t, m.ID, "globex")
	a2 := f.policy(t, m.ID, "acme")
	a3 := f.policy(t, m.ID, "acme")

	_, err := f.policies.Delete(ctx, a2.ID, "bob")
	require.NoError(t, err)
	a3next, err := f.policies.Update(ctx, a3.ID, domain.PolicyPatch{Action: domain.Some("archive")}, "bob")
	require.NoError(t, err)

	got, err := f.policies.ListByTenant(ctx, "acme")
	require.NoError(t, err)

	ids := make([]domain.ID, 0, len(got))
	for _, p := range got {
		assert.True(t, p.Live())
		assert.Equal(t, "acme", p.Fields.Tenant)
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []domain.ID{a1.ID, a3next.ID}, ids)

	_, err = f.policies.ListByTenant(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// Пробельный tenant одинаково отклоняется при создании и при выборке,
// поэтому живой политики с таким tenant, невидимой для ListByTenant, не бывает.
func TestBlankTenantRejectedOnBothPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.model(t, "a", 10)

	for _, tenant := range []string{" ", "\t", "  \n "} {
		_, err := f.policies.Create(ctx, domain.PolicyDraft{ModelID: m.ID, Action: "purge", Tenant: tenant}, "alice")
		assert.ErrorIs(t, err, domain.ErrValidation, "create %q", tenant)

		_, err = f.policies.ListByTenant(ctx, tenant)
		assert.ErrorIs(t, err, domain.ErrValidation, "list %q", tenant)
	}

	all, err := f.policies.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Пробелы вокруг значимого tenant сохраняются и участвуют в точном сравнении.
	p := f.policy(t, m.ID, " acme ")
	got, err := f.policies.ListByTenant(ctx, " acme ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)

	got, err = f.policies.ListByTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPolicyCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.model(t, "a", 30)

	t.Run("explicit retention wins", func(t *testing.T) {
		p, err := f.policies.Create(ctx, domain.PolicyDraft{
			ModelID: m.ID, RetentionPeriod: domain.Some(7), Action: "purge", Tenant: "acme",
		}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 7, p.Fields.RetentionPeriod)
	})

	t.Run("unknown model is dangling", func(t *testing.T) {
		_, err := f.policies.Create(ctx, domain.PolicyDraft{ModelID: 42, Action: "purge", Tenant: "acme"}, "alice")
		assert.ErrorIs(t, err, domain.ErrDanglingReference)
	})

	t.Run("retired model is dangling", func(t *testing.T) {
		old := f.model(t, "old", 5)
		_, err := f.models.Delete(ctx, old.ID, "alice")
		require.NoError(t, err)

		_, err = f.policies.Create(ctx, domain.PolicyDraft{ModelID: old.ID, Action: "purge", Tenant: "acme"}, "alice")
		assert.ErrorIs(t, err, domain.ErrDanglingReference)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := f.policies.Create(ctx, domain.PolicyDraft{ModelID: m.ID, Action: "purge"}, "alice")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := f.policies.Create(ctx, domain.PolicyDraft{ModelID: m.ID, Action: "purge", Tenant: "acme"}, "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestPolicyUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1 := f.model(t, "a", 30)
	m2 := f.model(t, "b", 90)
	p := f.policy(t, m1.ID, "acme")

	t.Run("tenant is kept and model can move", func(t *testing.T) {
		next, err := f.policies.Update(ctx, p.ID, domain.PolicyPatch{ModelID: domain.Some(m2.ID)}, "bob")
		require.NoError(t, err)
		assert.Equal(t, m2.ID, next.Fields.ModelID)
		assert.Equal(t, "acme", next.Fields.Tenant)
		assert.Equal(t, 30, next.Fields.RetentionPeriod)
		p = next
	})

	t.Run("retired target model is dangling and nothing is written", func(t *testing.T) {
		_, err := f.models.Delete(ctx, m1.ID, "bob")
		require.NoError(t, err)

		_, err = f.policies.Update(ctx, p.ID, domain.PolicyPatch{ModelID: domain.Some(m1.ID)}, "bob")
		assert.ErrorIs(t, err, domain.ErrDanglingReference)

		got, err := f.policies.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, m2.ID, got.Fields.ModelID)
	})
}

func TestDeleteUsesThreadedActor(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "a", 10)
	p := f.policy(t, m.ID, "acme")

	retired, err := f.policies.Delete(context.Background(), p.ID, "dave")
	require.NoError(t, err)
	require.NotNil(t, retired.Retired)
	assert.Equal(t, "dave", retired.Retired.By)
	assert.Nil(t, retired.Retired.SupersededBy)

	_, err = f.models.Delete(context.Background(), m.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestChangeEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.model(t, "a", 10)
	next, err := f.models.Update(ctx, m.ID, domain.ModelPatch{Name: domain.Some("b")}, "bob")
	require.NoError(t, err)
	_, err = f.models.Delete(ctx, next.ID, "carol")
	require.NoError(t, err)

	events := f.pub.events[infra.RedisChanModelChanges]
	require.Len(t, events, 3)
	assert.Equal(t, domain.OpCreate, events[0].Op)
	assert.Equal(t, domain.OpUpdate, events[1].Op)
	assert.Equal(t, next.ID, events[1].ID)
	require.NotNil(t, events[1].PreviousID)
	assert.Equal(t, m.ID, *events[1].PreviousID)
	assert.Equal(t, domain.OpDelete, events[2].Op)
	assert.Equal(t, "carol", events[2].Actor)
	assert.Equal(t, domain.KindModel, events[2].Kind)

	_, err = f.models.Update(ctx, 999, domain.ModelPatch{}, "bob")
	require.Error(t, err)
	assert.Len(t, f.pub.events[infra.RedisChanModelChanges], 3)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("redis down")

	m, err := f.models.Create(context.Background(), domain.ModelFields{RetentionPeriod: 1}, "alice")
	require.NoError(t, err)

	got, err := f.models.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

// cancelingPublisher отменяет контекст запроса в момент доставки и
// запоминает, в каком состоянии был контекст самой доставки.
type cancelingPublisher struct {
	cancelRequest context.CancelFunc
	err           error
	deadline      time.Time
	hasDeadline   bool
}

func (p *cancelingPublisher) Publish(ctx context.Context, _ string, _ []byte) error {
	p.cancelRequest()
	p.err = ctx.Err()
	p.deadline, p.hasDeadline = ctx.Deadline()
	return nil
}

func TestDeliveryOutlivesRequestCancel(t *testing.T) {
	db := memory.New()
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &cancelingPublisher{cancelRequest: cancel}
	models := NewModelService(db.Models(), pub, nil, zap.NewNop())

	start := time.Now()
	m, err := models.Create(reqCtx, domain.ModelFields{Name: "a", RetentionPeriod: 1}, "alice")
	require.NoError(t, err)

	assert.Error(t, reqCtx.Err())
	assert.NoError(t, pub.err)
	require.True(t, pub.hasDeadline)
	assert.WithinDuration(t, start.Add(deliveryDeadline), pub.deadline, time.Second)

	got, err := models.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

// Конкурентные update одной строки: ровно один выигрывает, остальные видят NotFound.
func TestConcurrentUpdatesOfSameRow(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "a", 10)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.models.Update(context.Background(), m.ID, domain.ModelPatch{RetentionPeriod: domain.Some(20 + i)}, "bob")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrNotFound):
				notFound++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, notFound)

	models, err := f.models.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

// Гонка "update модели" против "create политики": ни одна живая политика
// не должна ссылаться на выведенную строку модели.
func TestGuardUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	m := f.model(t, "a", 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.models.Update(context.Background(), m.ID, domain.ModelPatch{Name: domain.Some("x")}, "bob")
		}()
		go func() {
			defer wg.Done()
			_, _ = f.policies.Create(context.Background(), domain.PolicyDraft{ModelID: m.ID, Action: "purge", Tenant: "acme"}, "alice")
		}()
	}
	wg.Wait()

	policies, err := f.policies.List(context.Background())
	require.NoError(t, err)
	for _, p := range policies {
		model, ok := f.db.Models().Version(p.Fields.ModelID)
		require.True(t, ok)
		assert.True(t, model.Live(), "policy %s references retired model %s", p.ID, model.ID)
	}
}
