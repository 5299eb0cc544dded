package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/internal/telemetry"
	"github.com/marmos91/distfs/pkg/api"
	"github.com/marmos91/distfs/pkg/backup"
	"github.com/marmos91/distfs/pkg/config"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/metrics/prometheus"
	"github.com/marmos91/distfs/pkg/server"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the command server, HTTP API and backup scheduler",
	Long: `Run the packet command server on the configured transport, together with
the HTTP API, the metrics endpoint and the backup scheduler when they are
enabled.

With the network transport the server accepts any number of clients on
server.network.host:port. With uart, spi or i2c it serves the single link
until it is closed.

Examples:
  distfs serve --config /etc/distfs/config.yaml
  DISTFS_LOGGING_LEVEL=DEBUG distfs serve`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{configLogs: annotationOn},
	RunE:        runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Start(ctx, telemetry.FromConfig(cfg.Telemetry, Version, cfg.Device.Path))
	if err != nil {
		_ = telemetryShutdown(context.Background())
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by now
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("distfs starting",
		"version", Version,
		"config", configSource(),
		logger.KeyDevice, cfg.Device.Path,
		logger.KeyTransport, cfg.Server.Transport.Type)

	var (
		storeMetrics    metrics.StoreMetrics
		protocolMetrics metrics.ProtocolMetrics
		backupMetrics   metrics.BackupMetrics
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		storeMetrics = prometheus.NewStoreMetrics()
		protocolMetrics = prometheus.NewProtocolMetrics()
		backupMetrics = prometheus.NewBackupMetrics()
		logger.Info("Metrics enabled")
	}

	st, err := openStore(storeMetrics)
	if err != nil {
		return err
	}

	srv, err := server.New(st, server.Config{
		IOTimeout:       cfg.Server.IOTimeout,
		SpoolDir:        cfg.Server.SpoolDir,
		MaxConnections:  cfg.Server.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         protocolMetrics,
	})
	if err != nil {
		return err
	}

	watchConfig()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 4)
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				stop()
			}
		}()
	}

	run("command server", func(ctx context.Context) error {
		// A serial link that closes ends the process too.
		defer stop()
		return serveCommands(ctx, srv)
	})

	if cfg.API.Enabled {
		apiServer := api.NewServer(api.APIConfig{
			Port:           cfg.API.Port,
			ReadTimeout:    cfg.API.ReadTimeout,
			WriteTimeout:   cfg.API.WriteTimeout,
			IdleTimeout:    cfg.API.IdleTimeout,
			RequestTimeout: cfg.API.RequestTimeout,
			MetricsEnabled: cfg.Metrics.Enabled,
		}, st)
		run("API server", apiServer.Start)
	} else if cfg.Metrics.Enabled {
		run("metrics server", serveMetrics)
	}

	if cfg.Backup.Enabled {
		scheduler, closeBackup, err := newBackupScheduler(ctx, st, backupMetrics)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		defer closeBackup()
		run("backup scheduler", func(ctx context.Context) error {
			scheduler.Start(ctx)
			return nil
		})
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("Shutdown signal received, initiating graceful shutdown")
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		logger.Error("Component failed", logger.Err(err))
		all = append(all, err)
	}
	if len(all) == 0 {
		logger.Info("Server stopped gracefully")
	}
	return errors.Join(all...)
}

// serveCommands runs the packet server on the configured transport.
func serveCommands(ctx context.Context, srv *server.Server) error {
	tcfg, err := transportConfig(true)
	if err != nil {
		return err
	}

	if tcfg.Type == transport.TypeNetwork {
		l, err := transport.Listen(ctx, tcfg.Address())
		if err != nil {
			return err
		}
		defer l.Close()
		logger.Info("Command server listening", logger.KeyAddress, l.Addr().String())
		return srv.Serve(ctx, l)
	}

	t, err := transport.DefaultRegistry().Open(ctx, tcfg)
	if err != nil {
		return err
	}
	logger.Info("Command server attached", logger.KeyTransport, string(tcfg.Type), logger.KeyDevice, tcfg.Device)
	return srv.ServeTransport(ctx, t, tcfg.Device)
}

// transportConfig maps the server section onto a transport.Config.
func transportConfig(listen bool) (transport.Config, error) {
	typ, err := transport.ParseType(cfg.Server.Transport.Type)
	if err != nil {
		return transport.Config{}, err
	}
	return transport.Config{
		Type:           typ,
		Device:         cfg.Server.Transport.Device,
		BaudRate:       cfg.Server.Transport.BaudRate,
		SPIMode:        cfg.Server.Transport.SPIMode,
		SPIBitsPerWord: cfg.Server.Transport.SPIBitsPerWord,
		SPISpeedHz:     cfg.Server.Transport.SPISpeedHz,
		Host:           cfg.Server.Network.Host,
		Port:           cfg.Server.Network.Port,
		Listen:         listen,
		DialTimeout:    cfg.Server.IOTimeout,
	}, nil
}

// serveMetrics exposes /metrics on its own port when the API is disabled.
func serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	hs := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", "port", cfg.Metrics.Port)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newBackupScheduler(ctx context.Context, st *store.Store, m metrics.BackupMetrics) (*backup.Scheduler, func(), error) {
	interval, err := config.ParseSchedule(cfg.Backup.Schedule)
	if err != nil {
		return nil, nil, err
	}
	runner, closeRunner, err := newBackupRunner(ctx, st, m)
	if err != nil {
		return nil, nil, err
	}
	return backup.NewScheduler(runner, interval), closeRunner, nil
}

func newBackupRunner(ctx context.Context, st *store.Store, m metrics.BackupMetrics) (*backup.Runner, func(), error) {
	target, err := backup.TargetFromConfig(ctx, cfg.Backup)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.Backup.ManifestDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	manifest, err := backup.OpenManifest(cfg.Backup.ManifestDir)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := manifest.Close(); err != nil {
			logger.Warn("Failed to close backup manifest", logger.Err(err))
		}
	}
	return backup.NewRunner(st, target, manifest, m), closeFn, nil
}

// watchConfig follows the config file and applies log level changes without
// a restart. Other settings need a restart.
func watchConfig() {
	path := cfgFile
	if path == "" {
		if !config.DefaultConfigExists() {
			return
		}
		path = config.GetDefaultConfigPath()
	}
	if config.IsLegacyFile(path) {
		return
	}

	err := config.Watch(path, func(c *config.Config, err error) {
		if err != nil {
			logger.Warn("Ignoring invalid config change", logger.KeyPath, path, logger.Err(err))
			return
		}
		if !verbose {
			logger.SetLevel(c.Logging.Level)
		}
		logger.Info("Config reloaded", logger.KeyPath, path, "level", c.Logging.Level)
	})
	if err != nil {
		logger.Warn("Config watch disabled", logger.KeyPath, path, logger.Err(err))
	}
}
