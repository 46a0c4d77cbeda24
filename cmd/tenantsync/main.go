package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tenantsync/internal/api"
	"tenantsync/internal/attachment"
	"tenantsync/internal/config"
	"tenantsync/internal/cron"
	"tenantsync/internal/gateway"
	"tenantsync/internal/notify"
	"tenantsync/internal/store"
	syncengine "tenantsync/internal/sync"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("tenantsync v%s\n", version)
	case "init":
		if err := initConfig(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "serve":
		if err := serve(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("tenantsync - tenant chat sync daemon")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tenantsync serve     Start the sync daemon and local gateway")
	fmt.Println("  tenantsync init      Create a config file with a fresh gateway token")
	fmt.Println("  tenantsync version   Show version info")
}

func initConfig() error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.CreateFromExample(path); err != nil {
		return err
	}
	fmt.Printf("config written to %s\n", path)
	return nil
}

func serve() error {
	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	home := config.ResolveHome()
	slog.Info("tenantsync starting", "version", version, "home", home)

	// Ensure directories
	for _, dir := range []string{
		config.BlobDir(),
		config.LogsDir(),
	} {
		os.MkdirAll(dir, 0755)
	}

	// Load config
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}
	config.Set(cfg)

	if cfg.Platform.Token == "" {
		slog.Warn("platform token not configured; polling will fail until it is set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	// Hot-reload the config file while running.
	go config.Watch(ctx)

	client := api.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token)
	blobs := attachment.NewCache(client, config.BlobDir())
	session := store.NewCache(config.CachePath())
	bus := notify.NewBus()

	engine := syncengine.NewEngine(client, blobs, session, bus, cfg.Sync)
	engine.Start(ctx)
	defer engine.Close()

	// Background housekeeping.
	janitor := cron.NewScheduler()
	if err := janitor.Register(cron.Task{
		Name:     "blob-sweep",
		Schedule: cfg.Janitor.BlobSweep,
		Run: func() error {
			n, err := blobs.Sweep()
			if n > 0 {
				slog.Info("blob sweep", "removed", n)
			}
			return err
		},
	}); err != nil {
		return fmt.Errorf("register blob sweep: %w", err)
	}
	if err := janitor.Register(cron.Task{
		Name:     "cache-flush",
		Schedule: cfg.Janitor.CacheFlush,
		Run: func() error {
			engine.FlushSession()
			return nil
		},
	}); err != nil {
		return fmt.Errorf("register cache flush: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	srv := gateway.NewServer(cfg, engine, bus)

	// Hot-reload consumers: a rotated gateway token and new sync cadences
	// take effect without a restart.
	config.RegisterOnReload(func(c *config.Config) {
		engine.ApplySync(c.Sync)
		srv.UpdateConfig(c)
	})

	return srv.Start(ctx)
}
