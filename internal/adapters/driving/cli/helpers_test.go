package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	coreservices "github.com/custodia-labs/catalog-sync/internal/core/services"
)

// mockCatalogSync implements driving.CatalogSync for testing.
type mockCatalogSync struct {
	mu     sync.Mutex
	run    *domain.SyncRun
	err    error
	events []domain.Progress
	opts   []domain.SyncOptions
}

func (m *mockCatalogSync) Sync(_ context.Context, opts domain.SyncOptions) (*domain.SyncRun, error) {
	m.mu.Lock()
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if opts.OnProgress != nil {
		for _, ev := range m.events {
			opts.OnProgress(ev)
		}
	}
	return m.run, m.err
}

func (m *mockCatalogSync) Status() *domain.SyncRun {
	return m.run
}

func (m *mockCatalogSync) lastMode() domain.SyncMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.opts) == 0 {
		return ""
	}
	return m.opts[len(m.opts)-1].Mode
}

type mockNotifier struct {
	mu   sync.Mutex
	runs []*domain.SyncRun
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return m.err
}

// mockScheduler runs the hook once per scripted record and returns.
// With block set it then waits for ctx like a real scheduler.
type mockScheduler struct {
	interval time.Duration
	hook     func(domain.RunRecord)
	records  []domain.RunRecord
	err      error
	block    bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	for _, r := range m.records {
		m.hook(r)
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

func (m *mockScheduler) Stop() error { return nil }

type testEnv struct {
	sync      *mockCatalogSync
	records   *memory.RecordStore
	history   *memory.HistoryStore
	config    *memory.ConfigStore
	notifier  *mockNotifier
	scheduler *mockScheduler
	svc       *Services
}

func finishedRun() *domain.SyncRun {
	start := time.Now().Add(-time.Second)
	return &domain.SyncRun{
		ID:         "run-1",
		Mode:       domain.SyncModeIncremental,
		Phase:      domain.PhaseDone,
		Processed:  3,
		Created:    2,
		Updated:    1,
		Errors:     []string{},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

// setupTestEnv installs in-memory services and resets command flags.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		sync:      &mockCatalogSync{run: finishedRun()},
		records:   memory.NewRecordStore(),
		history:   memory.NewHistoryStore(),
		config:    memory.NewConfigStore(),
		notifier:  &mockNotifier{},
		scheduler: &mockScheduler{},
	}
	env.svc = &Services{
		Sync:     env.sync,
		Settings: coreservices.NewSettingsService(env.config),
		Records:  env.records,
		History:  env.history,
		Notifier: env.notifier,
		NewScheduler: func(interval time.Duration, hook func(domain.RunRecord)) driving.Scheduler {
			env.scheduler.interval = interval
			env.scheduler.hook = hook
			return env.scheduler
		},
		WatchInterval: 15 * time.Minute,
	}

	oldServices, oldBootstrap := services, bootstrap
	services = env.svc
	bootstrap = nil
	resetFlags()

	t.Cleanup(func() {
		services = oldServices
		bootstrap = oldBootstrap
		bootstrapped = false
		resetFlags()
		rootCmd.SetArgs(nil)
	})
	return env
}

func resetFlags() {
	verbose = false
	configDir = ""
	dataDir = ""
	syncFull = false
	syncWorkers = 0
	syncNotify = false
	syncPlain = false
	recordsMissingDetail = false
	recordsLimit = 50
	recordsJSON = false
	historyLimit = 20
	watchInterval = 0
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

var errBoom = errors.New("boom")
