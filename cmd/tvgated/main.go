// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tvgate/tvgate/internal/channels"
	"github.com/tvgate/tvgate/internal/config"
	"github.com/tvgate/tvgate/internal/dvr"
	"github.com/tvgate/tvgate/internal/history"
	tvlog "github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/observe"
	"github.com/tvgate/tvgate/internal/proc"
	"github.com/tvgate/tvgate/internal/profile"
	"github.com/tvgate/tvgate/internal/session"
	"github.com/tvgate/tvgate/internal/settings"
	"github.com/tvgate/tvgate/internal/store"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.FromEnv()

	tvlog.Configure(tvlog.Config{
		Level:   cfg.LogLevel,
		Service: "tvgate",
		Version: version,
	})
	logger := tvlog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath(), store.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath()).Msg("failed to open database")
	}
	defer db.Close()

	prefs, err := settings.Load(filepath.Join(cfg.DataDir, "settings.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load settings")
	}
	directory, err := channels.LoadFile(filepath.Join(cfg.DataDir, "channels.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load channel directory")
	}

	hub := observe.NewHub()
	recorder := history.NewRecorder(db)
	resolver := profile.NewResolver(prefs)
	runner := proc.NewRunner(cfg.KillTimeout)

	sessions := session.NewManager(resolver, runner, directory, recorder, hub)
	janitor := &session.Janitor{
		Manager:  sessions,
		Interval: cfg.JanitorInterval,
		Timeout:  cfg.InactivityTimeout,
	}

	scheduler := dvr.NewManager(db, directory, resolver, runner, recorder, hub, dvr.Options{
		RecordingsDir:           cfg.RecordingsDir,
		MaxConcurrentRecordings: cfg.MaxConcurrentRecordings,
		PreBuffer:               minutes(cfg.PreBufferMinutes),
		PostBuffer:              minutes(cfg.PostBufferMinutes),
	})

	// Recovery must complete before anything can touch the job table.
	if err := scheduler.Recover(ctx); err != nil {
		logger.Fatal().Err(err).Msg("dvr startup recovery failed")
	}

	retentionCron := cron.New()
	if _, err := retentionCron.AddFunc(cfg.AutoDeleteCron, func() {
		scheduler.RunAutoDelete(ctx, prefs)
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.AutoDeleteCron).Msg("invalid auto-delete cron spec")
	}
	retentionCron.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		janitor.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		<-retentionCron.Stop().Done()
		sessions.Shutdown()
		scheduler.Shutdown()
		return nil
	})

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("recordings_dir", cfg.RecordingsDir).
		Msg("tvgate daemon started")

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
