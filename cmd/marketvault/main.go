package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketVault/internal/cache"
	"MarketVault/internal/config"
	"MarketVault/internal/estimate"
	"MarketVault/internal/history"
	"MarketVault/internal/orchestrator"
	"MarketVault/internal/provider"
	"MarketVault/internal/scheduler"
	"MarketVault/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] MarketVault starting...")

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init store
	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()
	st.FailureThreshold = cfg.FailureThreshold

	// Init cache: Redis primary with in-process fallback. A missing
	// Redis is a warning, not a failure.
	ttls := cache.DefaultTTLs()
	for class, secs := range cfg.CacheTTLSeconds {
		ttls[cache.Class(class)] = time.Duration(secs) * time.Second
	}
	redisTier := cache.NewRedisTier(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	var primary cache.Tier
	if redisTier != nil {
		primary = redisTier
		defer redisTier.Close()
	}
	c := cache.New(primary, ttls)

	// Init providers in configured order
	providers := buildProviders(cfg)
	if len(providers) == 0 {
		log.Fatalf("[FATAL] no providers configured")
	}
	for _, p := range providers {
		log.Printf("[INFO] provider enabled: %s", p.Name())
	}

	// Init estimation fallback (historical only)
	est := estimate.New(cfg.Estimation.GoogleAPIKey, cfg.Estimation.Model)
	var fallback orchestrator.Estimator
	if est != nil {
		fallback = est
		log.Println("[INFO] estimation fallback enabled")
	}

	orch := orchestrator.New(providers, fallback)
	hs := history.New(st, orch, c)

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, hs, st, c, cfg.PrioritySymbols)
	sched.FetchDelay = time.Duration(cfg.FetchDelaySeconds) * time.Second
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.SweepCron, cfg.Schedule.RetentionCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.RunOnStart {
		log.Println("[INFO] RUN_ON_START enabled, warming priority symbols now")
		go sched.RunRefreshNow()
	}

	log.Println("[INFO] MarketVault is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] MarketVault stopped")
}

func buildProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	for _, name := range cfg.Providers.Order {
		switch name {
		case "twelve_data":
			if cfg.Providers.TwelveDataKey != "" {
				providers = append(providers, provider.NewTwelveData(cfg.Providers.TwelveDataKey))
			}
		case "finnhub":
			if cfg.Providers.FinnhubKey != "" {
				providers = append(providers, provider.NewFinnhub(cfg.Providers.FinnhubKey))
			}
		case "alpha_vantage":
			if cfg.Providers.AlphaVantageKey != "" {
				providers = append(providers, provider.NewAlphaVantage(cfg.Providers.AlphaVantageKey))
			}
		}
	}
	return providers
}
