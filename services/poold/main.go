package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	poolcfg "liquidpool/config"
	"liquidpool/crypto"
	nativecommon "liquidpool/native/common"
	"liquidpool/native/lending"
	"liquidpool/native/pool"
	"liquidpool/native/reserve"
	"liquidpool/native/vault"
	"liquidpool/observability"
	"liquidpool/observability/logging"
	"liquidpool/observability/telemetry"
	daemoncfg "liquidpool/services/poold/config"
	"liquidpool/services/poold/server"
	"liquidpool/state"
	"liquidpool/storage"
)

func main() {
	configPath := flag.String("config", "poold.yaml", "path to the daemon configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "poold: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := daemoncfg.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "poold",
	})
	if err != nil {
		return err
	}

	telemetryShutdown := func(context.Context) error { return nil }
	if otelCfg := telemetry.FromEnv("poold", cfg.Environment); otelCfg.Enabled() {
		shutdown, err := telemetry.Init(context.Background(), otelCfg)
		if err != nil {
			return fmt.Errorf("poold: telemetry: %w", err)
		}
		telemetryShutdown = shutdown
		logger.Info("telemetry exporting", "endpoint", otelCfg.Endpoint)
	}

	econ, err := poolcfg.Load(cfg.PoolConfigPath)
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		return err
	}
	defer db.Close()
	store := state.NewStore(db)

	engine, err := buildEngine(store, econ)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)
	svc := server.NewService(engine, logger, metrics)

	scheduler, err := startScheduler(cfg, svc, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	auth := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: cfg.AdminJWTSecret,
		Issuer:     cfg.AdminJWTIssuer,
		Audience:   cfg.AdminJWTAudience,
	}, logger)
	if auth == nil {
		logger.Warn("admin routes closed: no admin_jwt_secret configured")
	}

	limiter := server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, metrics)
	router := server.Router(svc, metrics, limiter, auth)
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(router, "poold"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return telemetryShutdown(ctx)
}

// buildEngine wires the pool engine, its liquidity tiers, and the persisted
// role and pause tables from configuration.
func buildEngine(store *state.Store, econ *poolcfg.Config) (*pool.Engine, error) {
	moduleAddr := crypto.ModuleAddress("pool")
	burnAddr := crypto.ModuleAddress("pool/burn")
	custodianAddr := crypto.ModuleAddress("pool/custodian")
	reserveAddr := crypto.ModuleAddress("pool/reserve")
	lendingAddr := crypto.ModuleAddress("pool/lending")

	assetVault := vault.New()
	assetVault.SetState(store)

	reserveTier := reserve.NewTier(reserveAddr)
	reserveTier.SetState(store)

	facility := lending.NewFacility(lendingAddr)
	facility.SetState(store)
	facility.Whitelist(moduleAddr)
	for _, raw := range econ.LendingWhitelist {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("poold: lending whitelist entry %q: %w", raw, err)
		}
		facility.Whitelist(addr)
	}

	engine := pool.NewEngine(moduleAddr, burnAddr, custodianAddr)
	engine.SetState(store)
	engine.SetPauses(nativecommon.NewPauses())
	engine.SetRoles(store)
	engine.SetTiers(assetVault, reserveTier, facility)
	engine.SetAtomicBuy(econ.AtomicBuyEnabled)

	for _, raw := range econ.AdminAddresses {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("poold: admin address %q: %w", raw, err)
		}
		if err := store.GrantRole(nativecommon.RolePoolAdmin, addr.Key()); err != nil {
			return nil, err
		}
	}
	for _, raw := range econ.CustodianAddresses {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("poold: custodian address %q: %w", raw, err)
		}
		if err := store.GrantRole(nativecommon.RoleCustodian, addr.Key()); err != nil {
			return nil, err
		}
	}

	// Seed the pool record on first boot. Later boots keep the persisted
	// values; configuration changes go through the admin surface.
	existing, err := store.PoolGet()
	if err != nil {
		return nil, err
	}
	if existing == nil {
		seeded := (&pool.Pool{}).Normalize()
		seeded.ReservePercentageBps = econ.ReservePercentageBps
		maxSupply, err := econ.MaxSupplyAmount()
		if err != nil {
			return nil, err
		}
		seeded.MaxSupply = maxSupply
		if err := store.PoolPut(seeded); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// startScheduler registers the daily rebalance. An empty schedule or missing
// operator disables it; the admin endpoint still works.
func startScheduler(cfg daemoncfg.Config, svc *server.Service, logger *slog.Logger) (*cron.Cron, error) {
	if cfg.RebalanceSchedule == "" || cfg.OperatorAddress == "" {
		logger.Warn("rebalance scheduler disabled")
		return nil, nil
	}
	operator, err := crypto.DecodeAddress(cfg.OperatorAddress)
	if err != nil {
		return nil, fmt.Errorf("poold: operator address: %w", err)
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RebalanceSchedule, func() {
		if _, err := svc.Rebalance(operator); err != nil {
			logger.Error("scheduled rebalance failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("poold: rebalance schedule %q: %w", cfg.RebalanceSchedule, err)
	}
	scheduler.Start()
	logger.Info("rebalance scheduler started", "schedule", cfg.RebalanceSchedule)
	return scheduler, nil
}
