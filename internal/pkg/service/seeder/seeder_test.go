package seeder_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/bootflag"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/distlock"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/config"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/template"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

type fixture struct {
	logger      log.DebugLogger
	clock       *clockwork.FakeClock
	mutex       *fakeMutex
	flags       *fakeFlags
	groups      *fakeGroups
	rules       *fakeRules
	simulations *fakeSimulations
	templates   *fakeTemplates
}

func newFixture(t *testing.T) (*fixture, config.Config) {
	t.Helper()
	f := &fixture{
		logger:      log.NewDebugLogger(),
		clock:       clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		mutex:       &fakeMutex{},
		flags:       &fakeFlags{data: make(map[string]bootflag.Marker)},
		groups:      &fakeGroups{},
		rules:       &fakeRules{},
		simulations: &fakeSimulations{},
		templates:   &fakeTemplates{tmpl: testTemplate()},
	}
	cfg := config.New()
	cfg.InstanceID = "node-1"
	cfg.TemplateName = "default"
	return f, cfg
}

func (f *fixture) newSeeder(cfg config.Config) *seeder.Seeder {
	return seeder.New(cfg, seeder.Dependencies{
		Logger:      f.logger,
		Clock:       f.clock,
		Mutex:       f.mutex,
		Flags:       f.flags,
		Groups:      f.groups,
		Rules:       f.rules,
		Simulations: f.simulations,
		Templates:   f.templates,
	})
}

func testTemplate() *template.Template {
	return &template.Template{
		Groups: []template.Group{
			{ID: "g1", DisplayName: "Floor1"},
			{ID: "g2", DisplayName: "Floor2"},
		},
		Rules: []template.Rule{
			{ID: "r1", GroupID: "g1", Description: "HighTemp"},
			{ID: "r2", GroupID: "g2", Description: "LowPressure"},
		},
		Simulations: []template.Simulation{
			template.Simulation(`{"name":"default"}`),
		},
	}
}

func TestTrySeed_NoTemplateConfigured(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	cfg.TemplateName = ""

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))
	assert.Equal(t, 0, f.mutex.tryLockCalls)
	assert.Empty(t, f.groups.upserted)
	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"skipped seeding, no template is configured"}
`)
}

func TestTrySeed_LockContention(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.mutex.held = true

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))
	assert.Empty(t, f.groups.upserted)
	assert.Empty(t, f.rules.upserted)
	assert.Empty(t, f.simulations.created)
	assert.Empty(t, f.flags.data)
	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"skipped seeding, another instance is seeding: already locked \"seed\""}
`)
}

func TestTrySeed_LockBackendUnreachable(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.mutex.lockErr = errors.New("connection refused")

	// Unreachable lock backend is a skip, not an error
	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))
	assert.Empty(t, f.groups.upserted)
	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"skipped seeding, cannot acquire lock: connection refused"}
`)
}

func TestTrySeed_AlreadyCompleted(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.flags.data[seeder.CompletionFlagKey] = bootflag.Marker{Done: true, By: "node-0", SeededAt: f.clock.Now()}

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))
	assert.Empty(t, f.groups.upserted)
	assert.Empty(t, f.rules.upserted)
	assert.Empty(t, f.simulations.created)
	// The acquired lock must be released even on the no-op path
	assert.Equal(t, 1, f.mutex.unlockCalls)
	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"skipped seeding, already completed at 2024-05-01T12:00:00Z by \"node-0\""}
`)
}

func TestTrySeed_Success(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))

	// Upserts follow the template order
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Equal(t, []string{"r1", "r2"}, f.rules.upserted)
	require.Len(t, f.simulations.created, 1)
	assert.JSONEq(t, `{"name":"default"}`, string(f.simulations.created[0]))

	// The completion flag is set, then the lock is released
	marker, found := f.flags.get(seeder.CompletionFlagKey)
	require.True(t, found)
	assert.True(t, marker.Done)
	assert.Equal(t, "node-1", marker.By)
	assert.Equal(t, f.clock.Now().UTC(), marker.SeededAt)
	assert.Equal(t, 1, f.mutex.unlockCalls)

	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"seeding from template \"default\"","component":"seeder"}
{"level":"info","message":"seeded group \"g1\""}
{"level":"info","message":"seeded group \"g2\""}
{"level":"info","message":"seeded rule \"r1\""}
{"level":"info","message":"seeded rule \"r2\""}
{"level":"info","message":"seeded 1 simulations"}
{"level":"info","message":"seeding completed"}
`)
}

func TestTrySeed_CompletionGating(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	s := f.newSeeder(cfg)

	require.NoError(t, s.TrySeed(context.Background()))
	require.NoError(t, s.TrySeed(context.Background()))

	// The second run performs zero writes
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Equal(t, []string{"r1", "r2"}, f.rules.upserted)
	assert.Len(t, f.simulations.created, 1)
}

func TestTrySeed_AbortOnGroupFailure(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.templates.tmpl.Groups = []template.Group{
		{ID: "g1"}, {ID: "g2"}, {ID: "g3"}, {ID: "g4"}, {ID: "g5"},
	}
	f.groups.failOn = "g3"

	err := f.newSeeder(cfg).TrySeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot seed group "g3"`)

	// Writes before the failure stay, later groups and all rules are never attempted
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Empty(t, f.rules.upserted)
	assert.Empty(t, f.simulations.created)
	assert.Empty(t, f.flags.data)
	// The lock is left to expire with the lease
	assert.Equal(t, 0, f.mutex.unlockCalls)
}

func TestTrySeed_AbortOnRuleFailure(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.rules.failOn = "r2"

	err := f.newSeeder(cfg).TrySeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot seed rule "r2"`)
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Equal(t, []string{"r1"}, f.rules.upserted)
	assert.Empty(t, f.flags.data)
}

func TestTrySeed_ValidationWarningsNotFatal(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.templates.tmpl.Groups = []template.Group{
		{ID: "g1", DisplayName: "A"},
		{ID: "g1", DisplayName: "B"},
	}
	f.templates.tmpl.Rules = nil

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))

	// Both groups are upserted in order despite the duplicate id
	assert.Equal(t, []string{"g1", "g1"}, f.groups.upserted)
	f.logger.AssertJSONMessages(t, `
{"level":"warn","message":"template \"default\": duplicate group id \"g1\""}
`)
}

func TestTrySeed_DeviceSimulationMode(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	cfg.Mode = config.ModeDeviceSimulation

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))

	// Groups and rules are not applicable in this mode
	assert.Empty(t, f.groups.upserted)
	assert.Empty(t, f.rules.upserted)
	assert.Len(t, f.simulations.created, 1)
	_, found := f.flags.get(seeder.CompletionFlagKey)
	assert.True(t, found)
}

func TestTrySeed_DefaultSimulationExists(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.simulations.existing = template.Simulation(`{"name":"default"}`)

	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))

	// No new simulation, the rest of the sequence still completes
	assert.Empty(t, f.simulations.created)
	_, found := f.flags.get(seeder.CompletionFlagKey)
	assert.True(t, found)
	f.logger.AssertJSONMessages(t, `
{"level":"info","message":"skipped simulation seeding, default simulation exists"}
`)
}

func TestTrySeed_SimulationCheckFailure(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.simulations.defaultErr = errors.New("http code 503")

	err := f.newSeeder(cfg).TrySeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot check default simulation")

	// Groups and rules were written, the marker was not
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Empty(t, f.flags.data)
}

func TestTrySeed_TemplateNotFound(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.templates.err = template.NotFoundError{Name: "default", Path: "/data/default.json"}

	err := f.newSeeder(cfg).TrySeed(context.Background())
	require.Error(t, err)

	notFoundErr := template.NotFoundError{}
	assert.ErrorAs(t, err, &notFoundErr)
	assert.Empty(t, f.groups.upserted)
	assert.Empty(t, f.flags.data)
}

func TestTrySeed_FlagWriteConflict(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.flags.putConflict = true

	// A flag written elsewhere in the meantime is not an error
	require.NoError(t, f.newSeeder(cfg).TrySeed(context.Background()))
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Equal(t, 1, f.mutex.unlockCalls)
	f.logger.AssertJSONMessages(t, `
{"level":"warn","message":"seed completion flag already set"}
{"level":"info","message":"seeding completed"}
`)
}

func TestTrySeed_FlagWriteFailure(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	f.flags.putErr = errors.New("etcd unavailable")

	err := f.newSeeder(cfg).TrySeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot write seed completion flag")
	assert.Equal(t, 0, f.mutex.unlockCalls)
}

func TestTrySeed_MutualExclusion(t *testing.T) {
	t.Parallel()

	f, cfg := newFixture(t)
	s1 := f.newSeeder(cfg)
	cfg2 := cfg
	cfg2.InstanceID = "node-2"
	s2 := f.newSeeder(cfg2)

	// Both instances race for the same mutex
	wg := sync.WaitGroup{}
	for _, s := range []*seeder.Seeder{s1, s2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.TrySeed(context.Background()))
		}()
	}
	wg.Wait()

	// Exactly one instance performed the writes
	assert.Equal(t, []string{"g1", "g2"}, f.groups.upserted)
	assert.Equal(t, []string{"r1", "r2"}, f.rules.upserted)
	assert.Len(t, f.simulations.created, 1)
}

// ---------------------------------------------------------------------------

type fakeMutex struct {
	lock         sync.Mutex
	held         bool
	lockErr      error
	tryLockCalls int
	unlockCalls  int
}

func (m *fakeMutex) Name() string {
	return "seed"
}

func (m *fakeMutex) TryLock(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tryLockCalls++
	if m.lockErr != nil {
		return m.lockErr
	}
	if m.held {
		return distlock.AlreadyLockedError{Name: "seed"}
	}
	m.held = true
	return nil
}

func (m *fakeMutex) Unlock(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.held = false
	m.unlockCalls++
	return nil
}

type fakeFlags struct {
	lock        sync.Mutex
	data        map[string]bootflag.Marker
	getErr      error
	putErr      error
	putConflict bool
}

func (f *fakeFlags) Get(ctx context.Context, key string) (bootflag.Marker, bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.getErr != nil {
		return bootflag.Marker{}, false, f.getErr
	}
	marker, found := f.data[key]
	return marker, found, nil
}

func (f *fakeFlags) PutIfNotExists(ctx context.Context, key string, marker bootflag.Marker) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.putErr != nil {
		return false, f.putErr
	}
	if f.putConflict {
		return false, nil
	}
	if _, found := f.data[key]; found {
		return false, nil
	}
	f.data[key] = marker
	return true, nil
}

func (f *fakeFlags) get(key string) (bootflag.Marker, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	marker, found := f.data[key]
	return marker, found
}

type fakeGroups struct {
	lock     sync.Mutex
	upserted []string
	failOn   string
}

func (f *fakeGroups) UpsertGroup(ctx context.Context, group template.Group) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.failOn == group.ID {
		return errors.New("http code 500")
	}
	f.upserted = append(f.upserted, group.ID)
	return nil
}

type fakeRules struct {
	lock     sync.Mutex
	upserted []string
	failOn   string
}

func (f *fakeRules) UpsertRule(ctx context.Context, rule template.Rule) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.failOn == rule.ID {
		return errors.New("http code 500")
	}
	f.upserted = append(f.upserted, rule.ID)
	return nil
}

type fakeSimulations struct {
	lock       sync.Mutex
	existing   template.Simulation
	created    []template.Simulation
	defaultErr error
	createErr  error
}

func (f *fakeSimulations) DefaultSimulation(ctx context.Context) (template.Simulation, bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.defaultErr != nil {
		return nil, false, f.defaultErr
	}
	if f.existing != nil {
		return f.existing, true, nil
	}
	return nil, false, nil
}

func (f *fakeSimulations) CreateSimulation(ctx context.Context, sim template.Simulation) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sim)
	f.existing = sim
	return nil
}

type fakeTemplates struct {
	tmpl *template.Template
	err  error
}

func (f *fakeTemplates) Load(name string) (*template.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tmpl, nil
}
