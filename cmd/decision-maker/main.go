package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"decision-maker/internal/config"
	"decision-maker/internal/core"
	"decision-maker/internal/fsm"
	"decision-maker/internal/logger"
	"decision-maker/internal/messaging"
	"decision-maker/internal/metrics"
	"decision-maker/internal/spatial"
	"decision-maker/internal/state"
)

func main() {
	// Service log level; -1 keeps the configured level
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", -1, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	redisHost := flag.String("redis-host", "", "Redis host (overrides config)")
	redisPort := flag.Int("redis-port", 0, "Redis port (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Metrics listen address (overrides config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	level := logger.ParseLogLevel(cfg.LogLevel)
	if serviceLogLevel >= 0 {
		level = logger.LogLevel(serviceLogLevel)
	}
	l := logger.NewLogger(level)
	defer l.Sync()

	if err != nil {
		l.Fatalf("Failed to load configuration: %v", err)
	}
	if *redisHost != "" {
		cfg.Redis.Host = *redisHost
	}
	if *redisPort != 0 {
		cfg.Redis.Port = *redisPort
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	l.Infof("Starting decision maker...")

	axes, err := fsm.Build(cfg.Axes, l)
	if err != nil {
		l.Fatalf("Failed to build decision axes: %v", err)
	}
	for _, axis := range axes {
		axis.SetObserver(fsm.ObserverFunc(metrics.ObserveTransition))
	}
	stateCtx := state.FromAxes(axes, l)
	for _, kind := range stateCtx.Kinds() {
		metrics.InitAxisState(kind, stateCtx.CurrentStateName(kind), stateCtx.DeclaredStates(kind))
	}
	spatialCtx := spatial.NewContext(cfg.Crossroad.Scale)

	inputs := messaging.NewInputs()
	redis := messaging.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.DB, cfg.Redis.ConnectRetries, inputs, l)
	if err := redis.Connect(); err != nil {
		l.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	node := core.NewDecisionNode(redis, inputs, spatialCtx, stateCtx, core.Options{
		Period: time.Duration(cfg.CyclePeriod),
		Plan: core.SubscriptionPlan{
			Default: cfg.Subscriptions.Default,
			ByState: cfg.Subscriptions.ByState,
		},
		VelocityArrayLen: cfg.SpeedArray.Length,
		VelocityUnit:     cfg.SpeedArray.Unit,
	}, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Start(ctx); err != nil {
		l.Fatalf("Failed to bind inbound channels: %v", err)
	}
	l.Infof("Decision node %s started, inbound channels: %v", node.NodeID(), redis.Bound())

	server := metrics.NewServer(cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return node.Run(gctx)
	})
	g.Go(func() error {
		return redis.Listen(gctx)
	})
	g.Go(func() error {
		l.Infof("Serving metrics on %s", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf("Decision maker stopped: %v", err)
		l.Sync()
		redis.Close()
		os.Exit(1)
	}
	l.Infof("Shutdown complete")
}
