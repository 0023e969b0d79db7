package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort/internal/config"
	"github.com/aretw0/cardsort/internal/metrics"
	"github.com/aretw0/cardsort/pkg/adapters/file"
	httpAdapter "github.com/aretw0/cardsort/pkg/adapters/http"
	"github.com/aretw0/cardsort/pkg/adapters/mqtt"
	"github.com/aretw0/cardsort/pkg/adapters/redis"
	"github.com/aretw0/cardsort/pkg/adapters/sqlite"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/aretw0/cardsort/pkg/sorter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sorter with its HTTP control surface",
	Long: `Starts the sorting orchestrator and exposes the control surface over HTTP.
Sorting does not begin until POST /sorting/start.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides http.addr)")
	serveCmd.Flags().Bool("autostart", false, "Start sorting as soon as the server is up")
}

// cleanup runs deferred closers in reverse order.
type cleanup []func() error

func (c *cleanup) add(fn func() error) { *c = append(*c, fn) }

func (c cleanup) run(logger *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Warn("cleanup failed", "err", err)
		}
	}
}

func runServe(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	ctx := cmd.Context()
	var closers cleanup
	defer closers.run(logger)

	m, err := openMachine(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	closers.add(m.Close)

	counters, lost, err := openCounters(ctx, cfg, &closers, logger)
	if err != nil {
		return err
	}

	var archive ports.CardArchive
	if cfg.Storage.Archive.Path != "" {
		a, err := sqlite.Open(cfg.Storage.Archive.Path)
		if err != nil {
			return err
		}
		closers.add(a.Close)
		archive = a
	}

	identifier, err := m.identifier()
	if err != nil {
		return err
	}

	streams := httpAdapter.NewStreamManager(logger.With("component", "events"))
	hooks := streams.Hooks()
	handlerOpts := []httpAdapter.Option{
		httpAdapter.WithStreams(streams),
		httpAdapter.WithLogger(logger.With("component", "http")),
	}

	if cfg.Metrics.Enabled {
		mx := metrics.New()
		hooks = hooks.Merge(mx.Hooks())
		handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(mx.Handler()))
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, 10*time.Second)
		if err != nil {
			return err
		}
		closers.add(func() error {
			client.Disconnect(250)
			return nil
		})
		pub := mqtt.New(client, cfg.MQTT.Topic, mqtt.WithLogger(logger.With("component", "mqtt")))
		hooks = hooks.Merge(pub.Hooks())
	}

	feeder, err := m.feeder(hooks)
	if err != nil {
		return err
	}
	dispenser, err := m.dispenser()
	if err != nil {
		return err
	}

	srt, err := sorter.New(ctx, sorter.Deps{
		Feeder:     feeder,
		Identifier: identifier,
		Dispenser:  dispenser,
		Counters:   counters,
		Criteria:   file.NewCriteriaStore(cfg.Storage.CriteriaPath),
	},
		sorter.WithArtifacts(&file.ArtifactStore{
			ScanPath:    cfg.Identify.ScanPath,
			CropPath:    cfg.Identify.CropPath,
			DisplayPath: cfg.Identify.DisplayPath,
			FailedDir:   cfg.Identify.FailedDir,
		}),
		sorter.WithArchive(archive, cfg.Storage.Archive.Enabled),
		sorter.WithPanel(m.panel()...),
		sorter.WithHooks(hooks),
		sorter.WithTiming(cfg.SorterTiming()),
		sorter.WithLogger(logger.With("component", "sorter")),
	)
	if err != nil {
		return err
	}

	// Only the feed timing is reloadable; pins and servos need a restart.
	handlerOpts = append(handlerOpts, httpAdapter.WithReload(func(ctx context.Context) error {
		next, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return srt.WhileStopped(func() error {
			if err := feeder.Configure(next.FeedTiming()); err != nil {
				return err
			}
			logger.Info("feed timing reloaded", "extra_feed", next.Feed.ExtraFeed)
			return nil
		})
	}))

	// Event streams end when shutdown begins instead of holding it open.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpAdapter.NewHandler(srt, handlerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("control surface listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	if autostart, _ := cmd.Flags().GetBool("autostart"); autostart {
		srt.Start()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var exitErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			exitErr = err
		}
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())
	case <-lost:
		logger.Error("machine lock lost, another controller may own the board")
		exitErr = errors.New("machine lock lost")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Sorter.StopTimeout+time.Second)
	defer cancel()
	if err := srt.Stop(stopCtx); errors.Is(err, domain.ErrStopTimeout) {
		// The card in flight is finished first; a second signal cuts the feed short.
		logger.Warn("waiting for the current cycle to finish, signal again to halt the feed")
		haltCtx, stopHalt := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		unregister := context.AfterFunc(haltCtx, srt.Halt)
		_ = srt.Wait(context.Background())
		unregister()
		stopHalt()
	} else if err != nil {
		logger.Error("sorter did not stop cleanly", "err", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", "err", err)
		_ = srv.Close()
	}
	logger.Info("cardsort stopped")
	return exitErr
}

// openCounters selects the counter backend. With redis the machine lock is held
// for the life of the process and lost is closed if it expires.
func openCounters(ctx context.Context, cfg config.Config, closers *cleanup, logger *slog.Logger) (ports.CounterStore, <-chan struct{}, error) {
	if cfg.Storage.Counters != config.BackendRedis {
		return file.NewCounterStore(cfg.Storage.Dir), nil, nil
	}

	rc := cfg.Storage.Redis
	store, err := redis.New(ctx, rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix))
	if err != nil {
		return nil, nil, err
	}
	closers.add(store.Close)

	lockCtx, cancel := context.WithTimeout(ctx, rc.LockTTL)
	defer cancel()
	unlock, lost, err := redis.NewLocker(store.Client(), rc.Prefix).Hold(lockCtx, "machine", rc.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("machine is in use by another controller: %w", err)
	}
	closers.add(func() error {
		return unlock(context.Background())
	})
	logger.Info("counters on redis", "addr", rc.Addr)
	return store, lost, nil
}

var _ httpAdapter.Controller = (*sorter.Sorter)(nil)
