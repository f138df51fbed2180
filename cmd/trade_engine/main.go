package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"trade_engine/internal/alert"
	"trade_engine/internal/bootstrap"
	"trade_engine/internal/core"
	"trade_engine/internal/events"
	"trade_engine/internal/exchange"
	"trade_engine/internal/infrastructure/metrics"
	"trade_engine/internal/mock"
	"trade_engine/internal/pricing"
	"trade_engine/internal/storage"
	"trade_engine/internal/ticker"
	"trade_engine/internal/trade"
	"trade_engine/internal/trading/order"
	"trade_engine/internal/trading/pairstate"
	"trade_engine/internal/trading/watchdog"
	"trade_engine/pkg/concurrency"
	"trade_engine/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/trade_engine.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("trade_engine version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	cfg, logger := app.Cfg, app.Logger

	logger.Info("Starting trade_engine",
		"version", version,
		"pairs", len(cfg.WatchedPairs()),
	)

	tel, err := telemetry.Setup("trade_engine")
	if err != nil {
		logger.Error("Failed to set up telemetry", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err.Error())
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsServer.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(ctx)
		}()
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.Storage.Path, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	eventLog := storage.NewEventLogRepository(db, cfg.StorageMaxAge())
	tickerLog := storage.NewTickerLogRepository(db, cfg.StorageMaxAge())

	alerts := alert.NewAlertManager(logger)
	alerts.AddChannel(alert.NewTelegramChannel(cfg.Alerting.TelegramBotToken, cfg.Alerting.TelegramChatID))
	alerts.AddChannel(alert.NewSlackChannel(cfg.Alerting.SlackWebhookURL))
	notifier := alert.NewNotifier(alerts, "Trade Engine")

	exchanges := exchange.NewManager(logger)
	for name := range cfg.Exchanges {
		// Paper gateways; real adapters register here once wired to
		// credentials.
		exchanges.Register(mock.NewExchange(name))
	}

	tickerCache := ticker.NewCache()
	oracle := pricing.NewOracle(tickerCache, logger,
		pricing.WithRetries(cfg.Ticker.PriceRetries),
		pricing.WithInterval(cfg.TickerPriceInterval()),
		pricing.WithMaxAge(cfg.TickerMaxAge()),
	)

	executor := order.NewExecutor(exchanges, oracle, eventLog, logger, cfg.Order.Retry, cfg.OrderRetryDelay())

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "order-adjuster",
		MaxWorkers: 8,
	}, logger)
	defer pool.Stop()

	guard := order.NewAdjustmentGuard()
	adjuster := order.NewAdjuster(executor, exchanges, oracle, guard, pool, logger)

	pairs := make([]core.Pair, 0, len(cfg.WatchedPairs()))
	for _, pair := range cfg.WatchedPairs() {
		pairs = append(pairs, core.Pair{Exchange: pair.Exchange, Symbol: pair.Symbol})
	}

	pairState := pairstate.NewManager(executor, pairs, logger)
	bus := events.NewBus(logger)

	scheduler := trade.New(cfg, bus, tickerCache, pairState, adjuster, notifier,
		[]core.ILogRepository{eventLog, tickerLog}, logger)
	scheduler.RegisterCreateOrderListener(order.NewCreateOrderListener(executor, logger))
	scheduler.RegisterTickerListener(ticker.NewDatabaseListener(tickerLog, logger))

	dog := watchdog.New(executor, exchanges, notifier, logger)
	scheduler.RegisterWatchdogListener(dog)
	scheduler.RegisterPositionWatcher(watchdog.NewPositionWatcher(executor, bus, pairs, logger))

	if err := app.Run(scheduler); err != nil {
		os.Exit(1)
	}
}
