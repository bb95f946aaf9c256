package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/mirrorsync/internal/infra/buildinfo"
	"github.com/yndnr/mirrorsync/internal/infra/confloader"
	"github.com/yndnr/mirrorsync/internal/infra/shutdown"
	"github.com/yndnr/mirrorsync/internal/infra/tlsroots"
	"github.com/yndnr/mirrorsync/internal/registry"
	"github.com/yndnr/mirrorsync/internal/server/config"
	"github.com/yndnr/mirrorsync/internal/server/httpserver"
	"github.com/yndnr/mirrorsync/internal/server/rpcserver"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/logger"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
	"github.com/yndnr/mirrorsync/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		genToken    = flag.Bool("gen-token", false, "Print a new random auth token and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mirrorsync-server %s\n", buildinfo.String())
		return nil
	}
	if *genToken {
		tok, err := token.Generate()
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := initLogger(cfg)
	info := buildinfo.Get()
	log.Info("starting mirrorsync-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	metrics := metric.NewRegistry()

	backend, err := initStorage(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	svc := rpcserver.New(backend,
		rpcserver.WithLogger(log),
		rpcserver.WithStreamBuffer(cfg.Server.WatchBuffer))
	rpcPath, rpcHandler := svc.Handler(connect.WithInterceptors(rpcserver.DefaultInterceptors(log)...))

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		RPCPath:            rpcPath,
		RPCHandler:         rpcHandler,
		Metrics:            metrics.Handler(),
		Backend:            backend,
		Logger:             log,
		AuthToken:          cfg.Server.AuthToken,
		AllowList:          cfg.Server.AllowList,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimit:          cfg.Server.RateLimit,
		RateBurst:          cfg.Server.RateBurst,
		AccessLog:          cfg.Server.AccessLog,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	useTLS := cfg.Server.HTTP.TLSCertFile != ""
	if useTLS {
		reloader, err := initTLS(cfg, log, httpServer)
		if err != nil {
			_ = storage.Close(backend)
			return fmt.Errorf("init tls: %w", err)
		}
		shutdownHandler.OnShutdown(func(context.Context) error {
			return reloader.Close()
		})
	}

	// Hooks run in reverse order: HTTP first, storage last.
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing storage backend")
		return storage.Close(backend)
	})

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr, "rpc", rpcPath)

		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) *slog.Logger {
	lc := cfg.Log
	lc.Output = os.Stdout
	log := logger.New(lc)
	slog.SetDefault(log)
	return log
}

// initStorage opens the configured backend and checks that it accepts writes.
func initStorage(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (storage.Backend, error) {
	b, err := registry.OpenBackend(cfg.Storage.Backend, cfg.Storage.StorageConfig(), log, metrics.Prometheus())
	if err != nil {
		return nil, err
	}

	c := storage.Probe(context.Background(), cfg.Storage.Backend, b)
	if !c.Usable {
		storage.Close(b)
		return nil, c.Err
	}
	log.Info("storage backend ready", "backend", cfg.Storage.Backend, "dir", cfg.Storage.Dir, "probe", c.Latency)

	return storage.Guarded(b), nil
}

// watchConfig re-reads the file on change and applies the new log level.
// Other settings need a restart.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}

// initTLS serves the configured key pair and reloads it when the files
// change.
func initTLS(cfg *config.ServerConfig, log *slog.Logger, srv *httpserver.Server) (*tlsroots.Reloader, error) {
	reloader, err := tlsroots.NewReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
		tlsroots.WithLogger(log))
	if err != nil {
		return nil, err
	}
	tlsCfg, err := tlsroots.ServerConfig(reloader, cfg.Server.HTTP.TLSClientCAFile)
	if err != nil {
		reloader.Close()
		return nil, err
	}
	if err := reloader.Start(); err != nil {
		log.Warn("certificate reload disabled", "error", err)
	}
	srv.SetTLSConfig(tlsCfg)
	return reloader, nil
}
