// Package main is used for the boosterd daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/sidecartridge/booster/boosterd/internal/config"
	"github.com/sidecartridge/booster/boosterd/internal/flash"
	"github.com/sidecartridge/booster/boosterd/internal/manager"
	"github.com/sidecartridge/booster/boosterd/internal/providers"
	"github.com/sidecartridge/booster/boosterd/internal/reset"
	"github.com/sidecartridge/booster/boosterd/internal/rest"
	"github.com/sidecartridge/booster/boosterd/internal/scheduling"
	"github.com/sidecartridge/booster/boosterd/internal/state"
	"github.com/sidecartridge/booster/boosterd/internal/storage"
)

func main() {
	// Load the configuration.
	cfg, err := config.Load(os.Getenv("BOOSTER_CONFIG"))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "boosterd: %v\n", err)
		os.Exit(1)
	}

	// Prepare a logger.
	var level slog.Level

	err = level.UnmarshalText([]byte(cfg.LogLevel))
	if err != nil {
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Run the daemon.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer cancel()

	err = run(ctx, cfg)
	if err != nil {
		slog.Error(err.Error())

		// Sleep for a second to allow output buffers to flush.
		time.Sleep(1 * time.Second)

		os.Exit(1) //nolint:gocritic
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	layout := cfg.Layout()

	// Open the flash.
	dev, err := flash.OpenFile(cfg.FlashImage, layout.Size(), layout.Geometry)
	if err != nil {
		if errors.Is(err, flash.ErrLocked) {
			return errors.New("flash image is in use by another process")
		}

		return err
	}

	defer func() { _ = dev.Close() }()

	// Get persistent settings.
	settings, err := state.LoadOrCreate(cfg.StatePath, map[string]string{
		state.SettingAppsFolder: cfg.AppsFolder,
	})
	if err != nil {
		return err
	}

	// The persisted setting wins over the configuration, which only seeds it.
	appsFolder := settings.GetOr(state.SettingAppsFolder, cfg.AppsFolder)

	slog.InfoContext(ctx, "Starting boosterd", "apps", appsFolder, "flash", cfg.FlashImage, "boot", settings.Get(state.SettingBootFeature))

	mgr := manager.New(manager.Config{
		Fs:         afero.NewOsFs(),
		AppsFolder: appsFolder,
		Device:     dev,
		Layout:     layout,
		Loader:     providers.NewRegistry(&http.Client{}, cfg.LocalPath),
		Settings:   settings,
		Resetter:   reset.NewCommand(cfg.Launch.ResetCommand),
		Prober:     storage.StatfsProber(cfg.StorageRoot, appsFolder),

		MaxContentLength: cfg.Download.MaxSize,
		DownloadTimeout:  cfg.Download.Timeout,
		StartDelay:       cfg.Download.StartDelay,
		PollWait:         cfg.Download.PollWait,
		LaunchDelay:      cfg.Launch.Delay,
		LaunchPageSize:   cfg.Flash.BlockSize,
	})

	info := mgr.Storage()
	if !info.Ready {
		slog.WarnContext(ctx, "Storage not ready", "root", cfg.StorageRoot)
	}

	// Schedule the control loop and the storage probe.
	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	err = scheduler.RegisterInterval("control-loop", cfg.TickInterval, func(ctx context.Context) error {
		mgr.Tick(ctx)

		return nil
	})
	if err != nil {
		return err
	}

	err = scheduler.RegisterJob("storage-probe", "* * * * *", func(context.Context) error {
		info := mgr.RefreshStorage()
		if !info.Ready {
			return storage.ErrNotReady
		}

		return nil
	})
	if err != nil {
		return err
	}

	server, err := rest.NewServer(ctx, mgr, cfg.SocketPath)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(ctx)
	})

	g.Go(func() error {
		scheduler.Start()

		<-ctx.Done()

		slog.Info("Shutting down scheduler")

		return scheduler.Shutdown()
	})

	return g.Wait()
}
