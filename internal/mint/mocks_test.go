package mint

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/provider"
	"github.com/tabbylabs/mintpipe/internal/testutils"
)

func testLogger() *slog.Logger {
	return testutils.DiscardLogger()
}

// harness bundles a fully wired coordinator over in-memory stores.
type harness struct {
	tasks      *testutils.MemTaskStore
	states     *testutils.MemStateStore
	metrics    *testutils.MemMetricsStore
	prefs      *testutils.MemPreferenceStore
	registry   *provider.Registry
	finalizer  *testutils.MockFinalizer
	queue      *Queue
	service    *Service
	dispatcher *Dispatcher
	sweeper    *Sweeper
	tick       *TickHandler
}

type harnessConfig struct {
	adapters    []provider.Adapter
	concurrency int
	taskTimeout time.Duration
	cleanupTTL  time.Duration
	tickBudget  time.Duration
}

func newHarness(cfg harnessConfig) *harness {
	if cfg.concurrency == 0 {
		cfg.concurrency = 2
	}
	if cfg.taskTimeout == 0 {
		cfg.taskTimeout = time.Minute
	}
	if cfg.cleanupTTL == 0 {
		cfg.cleanupTTL = 24 * time.Hour
	}
	if cfg.tickBudget == 0 {
		cfg.tickBudget = 10 * time.Second
	}
	if cfg.adapters == nil {
		cfg.adapters = []provider.Adapter{
			&testutils.StubAdapter{AdapterName: provider.NameDallE},
			&testutils.StubAdapter{AdapterName: provider.NameStability},
			&testutils.StubAdapter{AdapterName: provider.NameHuggingFace},
		}
	}

	log := testLogger()
	txs := testutils.NoopTxRunner{}
	h := &harness{
		tasks:     testutils.NewMemTaskStore(),
		states:    testutils.NewMemStateStore(),
		metrics:   &testutils.MemMetricsStore{},
		prefs:     testutils.NewMemPreferenceStore(),
		registry:  provider.NewRegistry(),
		finalizer: testutils.NewMockFinalizer(),
		queue:     NewQueue(100),
	}

	traits := []provider.Traits{
		{Quality: 0.95, Speed: 0.6, Cost: 0.8},
		{Quality: 0.85, Speed: 0.8, Cost: 0.4},
		{Quality: 0.6, Speed: 0.4, Cost: 0.3, OpenSource: true},
	}
	for i, adapter := range cfg.adapters {
		t := provider.Traits{Quality: 0.5, Speed: 0.5, Cost: 0.5}
		if i < len(traits) {
			t = traits[i]
		}
		h.registry.Register(adapter, t)
	}

	h.service = NewService(log, txs, h.tasks, h.metrics, h.prefs, h.registry, h.queue, 10000, cfg.taskTimeout)
	h.dispatcher = NewDispatcher(log, txs, h.tasks, h.metrics, h.registry, h.finalizer, h.queue, cfg.concurrency)
	h.sweeper = NewSweeper(log, txs, h.tasks, h.metrics, cfg.cleanupTTL)
	h.tick = NewTickHandler(log, h.states, h.tasks, h.sweeper, h.dispatcher, h.queue, cfg.tickBudget)
	return h
}

func (h *harness) enqueue(t *testing.T, req EnqueueRequest) *domain.Task {
	t.Helper()
	res, err := h.service.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if res.AlreadyProcessed {
		t.Fatalf("enqueue unexpectedly reported already processed")
	}
	return res.Task
}
