// Package trade runs the engine's tick scheduler. It owns the emitters that
// drive every periodic behavior, the routing table from bus topics to
// listeners, and the shutdown sequence.
package trade

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"trade_engine/internal/config"
	"trade_engine/internal/core"
	"trade_engine/internal/events"
	"trade_engine/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// orderingOverride is how long a running ordering cycle may block the
	// next one before it is presumed stuck and overridden.
	orderingOverride = 20 * time.Second

	// terminateTimeout bounds the shutdown flush. After it the process is
	// forced down; a hung exchange call must not keep the engine alive.
	terminateTimeout = 7500 * time.Millisecond

	// maintenanceInterval is the cadence of the log cleanup job. Just over a
	// day so the run time drifts across the clock instead of pinning to one
	// busy hour.
	maintenanceInterval = 86455 * time.Second
)

// Trade is the engine scheduler. It implements bootstrap.Runner.
type Trade struct {
	cfg       *config.Config
	bus       *events.Bus
	tickers   core.ITickerCache
	pairState core.IPairStateExecutor
	adjuster  core.IOrderAdjuster
	notifier  core.INotifier
	logRepos  []core.ILogRepository
	logger    core.ILogger

	instanceID string
	startedAt  time.Time

	orderingMu    sync.Mutex
	orderingSince time.Time

	// hardExit runs when the shutdown flush overruns terminateBudget.
	// Replaceable in tests.
	hardExit        func()
	terminateBudget time.Duration

	tickCounter metric.Int64Counter
	skipCounter metric.Int64Counter
}

// New creates the scheduler and installs its own ordering-cycle handler on
// the bus. Listener registration happens separately during wiring.
func New(cfg *config.Config, bus *events.Bus, tickers core.ITickerCache, pairState core.IPairStateExecutor, adjuster core.IOrderAdjuster, notifier core.INotifier, logRepos []core.ILogRepository, logger core.ILogger) *Trade {
	meter := telemetry.GetMeter("trade-scheduler")
	tickCounter, _ := meter.Int64Counter("trade_engine_ticks_emitted_total",
		metric.WithDescription("Total number of scheduler ticks emitted"))
	skipCounter, _ := meter.Int64Counter("trade_engine_ordering_skips_total",
		metric.WithDescription("Total number of ordering cycles skipped because one was running"))

	t := &Trade{
		cfg:             cfg,
		bus:             bus,
		tickers:         tickers,
		pairState:       pairState,
		adjuster:        adjuster,
		notifier:        notifier,
		logRepos:        logRepos,
		logger:          logger.WithField("component", "trade_scheduler"),
		instanceID:      uuid.NewString(),
		hardExit:        func() { os.Exit(1) },
		terminateBudget: terminateTimeout,
		tickCounter:     tickCounter,
		skipCounter:     skipCounter,
	}

	bus.Subscribe(events.TopicOrdering, func(ctx context.Context, _ events.Event) {
		t.runOrderingCycle(ctx)
	})
	bus.Subscribe(events.TopicTicker, func(ctx context.Context, event events.Event) {
		if tickerEvent, ok := event.Payload.(core.TickerEvent); ok {
			t.tickers.Set(tickerEvent.Ticker)
		}
	})

	return t
}

// RegisterTickListener routes market ticks to the listener.
func (t *Trade) RegisterTickListener(listener core.ITickListener) {
	t.bus.Subscribe(events.TopicTick, func(ctx context.Context, _ events.Event) {
		listener.OnTick(ctx)
	})
}

// RegisterSignalListener routes signal ticks to the listener.
func (t *Trade) RegisterSignalListener(listener core.ISignalListener) {
	t.bus.Subscribe(events.TopicSignalTick, func(ctx context.Context, _ events.Event) {
		listener.OnSignalTick(ctx)
	})
}

// RegisterWatchdogListener routes watchdog ticks and position changes.
func (t *Trade) RegisterWatchdogListener(listener core.IWatchdogListener) {
	t.bus.Subscribe(events.TopicWatchdog, func(ctx context.Context, _ events.Event) {
		listener.OnTick(ctx)
	})
	t.bus.Subscribe(events.TopicPositionStateChange, func(ctx context.Context, event events.Event) {
		if change, ok := event.Payload.(core.PositionStateChangeEvent); ok {
			listener.OnPositionChanged(ctx, change)
		}
	})
}

// RegisterPositionWatcher polls the watcher on watchdog ticks.
func (t *Trade) RegisterPositionWatcher(watcher core.IPositionWatcher) {
	t.bus.Subscribe(events.TopicWatchdog, func(ctx context.Context, _ events.Event) {
		watcher.OnPositionStateChangeTick(ctx)
	})
}

// RegisterCreateOrderListener routes order intents to the listener.
func (t *Trade) RegisterCreateOrderListener(listener core.ICreateOrderListener) {
	t.bus.Subscribe(events.TopicOrder, func(ctx context.Context, event events.Event) {
		if orderEvent, ok := event.Payload.(core.OrderEvent); ok {
			listener.OnCreateOrder(ctx, orderEvent)
		}
	})
}

// RegisterTickerListener routes ticker observations to the listener. The
// cache is always updated first regardless of registered listeners.
func (t *Trade) RegisterTickerListener(listener core.ITickerListener) {
	t.bus.Subscribe(events.TopicTicker, func(ctx context.Context, event events.Event) {
		if tickerEvent, ok := event.Payload.(core.TickerEvent); ok {
			listener.OnTicker(ctx, tickerEvent)
		}
	})
}

// Run announces startup, sits out the warmup window, then emits ticks until
// the context is canceled and flushes open orders on the way out.
func (t *Trade) Run(ctx context.Context) error {
	t.startedAt = time.Now()
	t.announceStartup(ctx)

	t.logger.Info("Warming up", "duration", t.cfg.TickWarmup().String())
	select {
	case <-ctx.Done():
		return t.shutdown()
	case <-time.After(t.cfg.TickWarmup()):
	}

	t.logger.Info("Scheduler started",
		"instance_id", t.instanceID,
		"tick", t.cfg.TickDefault().String(),
		"signal", t.cfg.TickSignal().String(),
		"watchdog", t.cfg.TickWatchdog().String(),
		"ordering", t.cfg.TickOrdering().String())

	tick := time.NewTicker(t.cfg.TickDefault())
	defer tick.Stop()
	signalTick := time.NewTicker(t.cfg.TickSignal())
	defer signalTick.Stop()
	watchdogTick := time.NewTicker(t.cfg.TickWatchdog())
	defer watchdogTick.Stop()
	orderingTick := time.NewTicker(t.cfg.TickOrdering())
	defer orderingTick.Stop()
	maintenanceTick := time.NewTicker(maintenanceInterval)
	defer maintenanceTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return t.shutdown()
		case <-tick.C:
			t.emit(ctx, events.TopicTick)
		case <-signalTick.C:
			t.emit(ctx, events.TopicSignalTick)
		case <-watchdogTick.C:
			t.emit(ctx, events.TopicWatchdog)
		case <-orderingTick.C:
			t.emit(ctx, events.TopicOrdering)
		case <-maintenanceTick.C:
			t.runMaintenance(ctx)
		}
	}
}

func (t *Trade) emit(ctx context.Context, topic events.Topic) {
	t.tickCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", string(topic)),
	))
	t.bus.Publish(ctx, events.Event{Topic: topic})
}

// runOrderingCycle executes pair-state orchestration followed by the
// open-order adjustment pass. Cycles never overlap: a new tick is dropped
// while one runs, unless the running one is old enough to be presumed stuck.
func (t *Trade) runOrderingCycle(ctx context.Context) {
	t.orderingMu.Lock()
	if !t.orderingSince.IsZero() {
		age := time.Since(t.orderingSince)
		if age < orderingOverride {
			t.orderingMu.Unlock()
			t.skipCounter.Add(ctx, 1)
			t.logger.Debug("Ordering cycle still running, skipping", "age", age.String())
			return
		}
		t.logger.Warn("Ordering cycle presumed stuck, overriding", "age", age.String())
	}
	t.orderingSince = time.Now()
	t.orderingMu.Unlock()

	defer func() {
		t.orderingMu.Lock()
		t.orderingSince = time.Time{}
		t.orderingMu.Unlock()
	}()

	t.pairState.OnPairStateExecutionTick(ctx)
	t.adjuster.AdjustOpenOrders(ctx)
}

func (t *Trade) runMaintenance(ctx context.Context) {
	t.logger.Info("Running log maintenance", "repositories", len(t.logRepos))
	for _, repo := range t.logRepos {
		if err := repo.CleanOldEntries(ctx); err != nil {
			t.logger.Error("Log maintenance failed", "error", err.Error())
		}
	}
}

func (t *Trade) announceStartup(ctx context.Context) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pairs := make([]string, 0, len(t.cfg.WatchedPairs()))
	for _, pair := range t.cfg.WatchedPairs() {
		pairs = append(pairs, core.Pair{Exchange: pair.Exchange, Symbol: pair.Symbol}.String())
	}

	message := fmt.Sprintf("Trade engine started\ninstance: %s\nhost: %s (%s/%s)\nstarted: %s\npairs: %s",
		t.instanceID,
		hostname,
		runtime.GOOS, runtime.GOARCH,
		t.startedAt.UTC().Format(time.RFC3339),
		strings.Join(pairs, ", "))

	go t.notifier.Send(ctx, message)
}

// shutdown flushes open orders, racing the flush against the hard-exit
// budget.
func (t *Trade) shutdown() error {
	t.logger.Info("Shutting down, flushing open orders")

	flushCtx, cancel := context.WithTimeout(context.Background(), t.terminateBudget)
	defer cancel()

	done := make(chan struct{})
	go func() {
		t.pairState.OnTerminate(flushCtx)
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Shutdown flush complete")
	case <-time.After(t.terminateBudget):
		t.logger.Error("Shutdown flush overran budget, forcing exit")
		t.hardExit()
	}

	return nil
}
