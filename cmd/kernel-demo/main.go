// kernel-demo is the reference entry point for the kernel: an event-driven
// trading platform core that runs strategies against either live venue
// adapters or a deterministic in-process matching engine from the same
// code path.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires the kernel, waits for SIGINT/SIGTERM
//	internal/kernel           — single cooperative event loop; Cache/MessageBus/DataEngine/RiskEngine/ExecutionEngine/Portfolio
//	internal/adapter          — simulated-venue DataClient + ExecutionClient pair (REST + WS)
//	internal/matching          — backtest venue: deterministic order book + pluggable FillModel
//	internal/cache/persist.go — durable position/account snapshots to MongoDB
//	internal/msgbus/bridge.go — forwards a topic whitelist onto a Redis stream for a dashboard
//	internal/catalog           — day-partitioned historical quote/trade/bar store
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nautilus-go/core/internal/adapter"
	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/config"
	"github.com/nautilus-go/core/internal/kernel"
	"github.com/nautilus-go/core/internal/matching"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/internal/risk"
	"github.com/nautilus-go/core/pkg/model"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("NAUTILUS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(3)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(3)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	k, adapters, err := buildKernel(*cfg, logger)
	if err != nil {
		logger.Error("failed to build kernel", "error", err)
		os.Exit(3)
	}

	var store *cache.Store
	if cfg.Store.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err = cache.NewStore(ctx, cfg.Store.MongoURI)
		cancel()
		if err != nil {
			logger.Error("failed to connect position store", "error", err)
			os.Exit(1)
		}
		logger.Info("connected position store", "uri", cfg.Store.MongoURI)
	}

	var bridge *msgbus.Bridge
	if cfg.Bridge.Enabled {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.Bridge.RedisAddr}})
		bridgeCfg := msgbus.BridgeConfig{
			Topics:          cfg.Bridge.Topics,
			StreamPrefix:    cfg.Bridge.StreamPrefix,
			UseTraderID:     cfg.Bridge.UseTraderID,
			UseInstanceID:   cfg.Bridge.UseInstanceID,
			StreamPerTopic:  cfg.Bridge.StreamPerTopic,
			MaxStreamLen:    cfg.Bridge.MaxStreamLen,
			TraderID:        cfg.Kernel.TraderID,
			InstanceID:      cfg.Bridge.InstanceID,
		}
		bridge = msgbus.NewBridge(bridgeCfg, rdb, logger)
		if err := bridge.Attach(k.Bus()); err != nil {
			logger.Error("failed to attach message bus bridge", "error", err)
			os.Exit(1)
		}
		logger.Info("attached message bus bridge", "redis_addr", cfg.Bridge.RedisAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, a := range adapters {
		if err := a.Connect(ctx); err != nil {
			logger.Error("failed to connect venue adapter", "venue", a.Venue(), "error", err)
			os.Exit(1)
		}
	}

	if err := k.Start(); err != nil {
		logger.Error("failed to start kernel", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — strategies run but no live orders are submitted")
	}
	logger.Info("kernel started",
		"trader_id", cfg.Kernel.TraderID,
		"oms", cfg.Kernel.Oms,
		"backtest", cfg.Kernel.Backtest,
		"venues", len(cfg.Venues),
	)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- k.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-runErrCh:
		if err != nil {
			logger.Error("kernel run loop exited", "error", err)
		}
	}

	cancel()
	k.Stop()
	for _, a := range adapters {
		if err := a.Disconnect(context.Background()); err != nil {
			logger.Warn("error disconnecting venue adapter", "venue", a.Venue(), "error", err)
		}
	}
	if store != nil {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("error closing position store", "error", err)
		}
	}
}

// buildKernel wires a Kernel per cfg: a LiveClock and adapter.Adapter pairs
// registered as both DataClient and ExecutionClient per venue in live mode,
// or a TestClock with one RegisterBacktestVenue per configured venue in
// backtest mode (backtest and live share every code path except
// the clock and the venue boundary).
func buildKernel(cfg config.Config, logger *slog.Logger) (*kernel.Kernel, []*adapter.Adapter, error) {
	traderID, err := model.NewTraderId(cfg.Kernel.TraderID)
	if err != nil {
		return nil, nil, fmt.Errorf("trader id: %w", err)
	}
	oms := model.OmsNetting
	if cfg.Kernel.Oms == "hedging" {
		oms = model.OmsHedging
	}
	rateLimit := risk.RateLimitConfig{MaxOrders: cfg.Risk.MaxOrders, WindowNs: cfg.Risk.Window.Nanoseconds()}

	var clk clock.Clock
	if cfg.Kernel.Backtest {
		clk = clock.NewTestClock()
	} else {
		clk = clock.NewLiveClock()
	}

	k := kernel.New(traderID, clk, oms, rateLimit, cfg.Risk.KillSwitchCooldown.Nanoseconds(), cfg.Kernel.Backtest, logger)

	var adapters []*adapter.Adapter
	for _, v := range cfg.Venues {
		if cfg.Kernel.Backtest {
			if _, err := k.RegisterBacktestVenue(v.Name, matching.L1BestPriceFill{}); err != nil {
				return nil, nil, fmt.Errorf("register backtest venue %q: %w", v.Name, err)
			}
			continue
		}
		wsCfg := adapter.WSConfig{
			PingInterval:     v.PingInterval,
			ReadTimeout:      v.ReadTimeout,
			WriteTimeout:     v.WriteTimeout,
			MaxReconnectWait: v.MaxReconnectWait,
		}
		rlCfg := adapter.RateLimitConfig{
			OrderCapacity:  v.OrderRateBurst,
			OrderRate:      v.OrderRatePerSec,
			CancelCapacity: v.CancelRateBurst,
			CancelRate:     v.CancelRatePerSec,
			BookCapacity:   v.BookRateBurst,
			BookRate:       v.BookRatePerSec,
		}
		a := adapter.New(v.Name, v.RestURL, v.WSURL, wsCfg, rlCfg, k.Cache(), k.DataEngine(), k.ExecutionEngine(), logger)
		k.RegisterDataClient(v.Name, a)
		k.RegisterExecutionClient(a)
		adapters = append(adapters, a)
	}

	return k, adapters, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
