package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/ledger/handlers"
	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/metrics"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/redis"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Chain struct {
			GenesisPath string        `conf:"default:zblock/genesis.json"`
			Workers     int           `conf:"default:0,help:goroutines searching for a nonce where 0 uses every CPU"`
			Attempts    uint          `conf:"default:3,help:times a block is mined before a timeout is returned"`
			RetryDelay  time.Duration `conf:"default:1s"`
		}
		Storage struct {
			Kind          string        `conf:"default:disk,help:memory|disk|redis"`
			DBPath        string        `conf:"default:zblock/blocks"`
			RedisAddr     string        `conf:"default:localhost:6379"`
			RedisUser     string
			RedisPassword string        `conf:"mask"`
			RedisDB       int           `conf:"default:0"`
			RedisTimeout  time.Duration `conf:"default:5s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "hash-linked proof of work ledger",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.Chain.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}
	log.Infow("startup", "status", "genesis loaded", "chainid", gen.ChainID, "difficulty", gen.Difficulty, "strategy", gen.HashStrategy)

	storage, err := openStorage(cfg.Storage.Kind, cfg.Storage.DBPath, redis.Config{
		Addr:     cfg.Storage.RedisAddr,
		Username: cfg.Storage.RedisUser,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
		ChainID:  gen.ChainID,
		Timeout:  cfg.Storage.RedisTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	log.Infow("startup", "status", "storage opened", "kind", cfg.Storage.Kind)

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	traceID := uuid.NewString()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", traceID)
		evts.Send(s)
	}

	workers := cfg.Chain.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	db, err := database.New(context.Background(), database.Config{
		Genesis:   gen,
		Storage:   storage,
		Validator: ledger.ValidateTx,
		Workers:   workers,
		EvHandler: ev,
	})
	if err != nil {
		storage.Close()
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	if err := m.RegisterChain(db.Length); err != nil {
		return fmt.Errorf("registering chain metrics: %w", err)
	}

	core := ledger.NewCore(ledger.Config{
		Log:        log,
		DB:         db,
		Metrics:    m,
		Attempts:   cfg.Chain.Attempts,
		RetryDelay: cfg.Chain.RetryDelay,
	})

	// Reject a chain that was changed while the service was down.
	if err := core.Validate(); err != nil {
		return fmt.Errorf("validating chain: %w", err)
	}
	log.Infow("startup", "status", "chain validated", "height", core.Height(), "latest", core.LatestBlock().Hash)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, m, core)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.APIMuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Metrics:    m,
		Core:       core,
		Evts:       evts,
		CORSOrigin: cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// openStorage constructs the storage for the blocks based on the kind.
func openStorage(kind string, dbPath string, redisCfg redis.Config) (database.Storage, error) {
	switch kind {
	case "memory":
		return memory.New(), nil

	case "disk":
		return disk.New(dbPath)

	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), redisCfg.Timeout)
		defer cancel()

		return redis.New(ctx, redisCfg)
	}

	return nil, fmt.Errorf("unknown storage kind %q", kind)
}
