package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rampart/config"
	"rampart/core/events"
	"rampart/core/types"
	"rampart/native/amm"
	"rampart/native/bidwall"
	"rampart/native/common"
	"rampart/observability/logging"
	"rampart/observability/otel"
	"rampart/service"
	"rampart/storage"
)

const serviceName = "rampartd"

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	manifestPath := flag.String("genesis", "", "override the pool manifest path from the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *manifestPath != "" {
		cfg.GenesisManifest = *manifestPath
	}

	logger := logging.Setup(serviceName, cfg.Env, logging.Options{
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: serviceName,
			Environment: cfg.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err.Error())
			}
		}()
	}

	wiring, err := cfg.Engine.Resolve()
	if err != nil {
		log.Fatalf("resolve engine wiring: %v", err)
	}
	if wiring.TrustedCaller.IsZero() || wiring.Owner.IsZero() {
		log.Fatalf("engine trusted caller and owner must be configured before serving")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	kv := storage.NewKV(db)
	store := bidwall.NewStore(kv)
	pool := amm.NewEngine()
	directory := bidwall.NewStaticDirectory()

	native := wiring.NativeToken
	if cfg.GenesisManifest != "" {
		native, err = seedPools(cfg.GenesisManifest, wiring, pool, directory)
		if err != nil {
			log.Fatalf("seed pools: %v", err)
		}
	}
	if native.IsZero() {
		log.Fatalf("native token must come from the config or the pool manifest")
	}

	if err := seedParams(store, wiring); err != nil {
		log.Fatalf("seed params: %v", err)
	}

	bus := events.NewBus(events.DefaultBacklog)
	engine := bidwall.NewEngine()
	engine.SetState(store)
	engine.SetPoolEngine(pool)
	engine.SetEmitter(bus)
	engine.SetPauses(common.NewPauses())
	engine.SetTrustedCaller(wiring.TrustedCaller)
	engine.SetOwner(wiring.Owner)
	engine.SetNativeToken(native)
	engine.SetTokenDirectory(directory)
	if err := engine.LoadParams(); err != nil {
		log.Fatalf("load engine params: %v", err)
	}

	handler := service.NewServer(engine, service.Options{
		Bus: bus,
		Auth: service.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: service.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: int(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
		Log: logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(handler, "rampart.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err.Error())
		}
	}()

	logger.Info("serving", "listen", cfg.ListenAddress, "backend", cfg.StorageBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
	logger.Info("shutdown complete")
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "rampart.db"), nil)
	case config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "leveldb"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// seedPools loads the devnet manifest into the reference pool engine and the
// token directory, funding the module account for each entry.
func seedPools(path string, wiring config.EngineWiring, pool *amm.Engine, directory *bidwall.StaticDirectory) (types.Address, error) {
	manifest, err := config.LoadManifest(path)
	if err != nil {
		return types.Address{}, err
	}
	native, seeds, err := manifest.Seeds()
	if err != nil {
		return types.Address{}, err
	}
	if !wiring.NativeToken.IsZero() && wiring.NativeToken != native {
		return types.Address{}, fmt.Errorf("manifest native %s conflicts with configured native %s", native, wiring.NativeToken)
	}
	for _, seed := range seeds {
		if _, err := pool.CreatePool(seed.Key, seed.InitialTick); err != nil {
			return types.Address{}, fmt.Errorf("pool %s: %w", seed.Token, err)
		}
		if seed.ModuleFunding.Sign() > 0 {
			pool.Fund(native, wiring.TrustedCaller, seed.ModuleFunding)
		}
		directory.Register(seed.Token, seed.Creator, seed.Treasury)
	}
	return native, nil
}

// seedParams writes the configured defaults on first boot; persisted operator
// overrides win on every later start.
func seedParams(store *bidwall.Store, wiring config.EngineWiring) error {
	_, ok, err := store.GetParams()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return store.PutParams(&bidwall.Params{
		SwapFeeThreshold:   wiring.SwapFeeThreshold,
		StaleWindowSeconds: wiring.StaleWindowSeconds,
	})
}
