package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"pressflow/internal/api"
	"pressflow/internal/collab"
	"pressflow/internal/config"
	"pressflow/internal/executor"
	"pressflow/internal/queue"
	"pressflow/internal/scheduler"
	"pressflow/internal/sitemap"
)

// staleVisibility is how long an item may sit in generating before a restart
// reclaims it.
const staleVisibility = 10 * time.Minute

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file")
		addr       = flag.String("addr", "", "HTTP bind address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite DB path (overrides config)")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := queue.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	store := queue.NewSQLiteStore(db)

	if n, err := store.RecoverStale(context.Background(), time.Now().UTC(), staleVisibility); err != nil {
		log.Error().Err(err).Msg("stale item recovery failed")
	} else if n > 0 {
		log.Info().Int("recovered", n).Msg("recovered stale generating items")
	}

	gen := collab.NewGeneratorClient(cfg.Generator.BaseURL, cfg.Generator.APIKey,
		&http.Client{Timeout: cfg.GenTimeout.Duration})
	pub := collab.NewWordPressPublisher(&http.Client{Timeout: cfg.PublishTimeout.Duration})
	var social executor.SocialPoster
	if cfg.Social.WebhookURL != "" {
		social = collab.NewSocialClient(cfg.Social.WebhookURL, &http.Client{Timeout: cfg.PublishTimeout.Duration})
	}
	snapshots := sitemap.NewCache(store, collab.NewSitemapFetcher(&http.Client{Timeout: cfg.SitemapTimeout.Duration}))

	runner := executor.New(store, gen, pub, social, snapshots, executor.Config{
		BatchLimit:     cfg.BatchLimit,
		ItemDelay:      cfg.ItemDelay.Duration,
		GenTimeout:     cfg.GenTimeout.Duration,
		PublishTimeout: cfg.PublishTimeout.Duration,
	})

	ctx, cancel := context.WithCancel(context.Background())

	svc := scheduler.NewService(store, cfg.ScheduleInterval.Duration)
	go svc.Start(ctx)

	trigger := cron.New()
	if _, err := trigger.AddFunc(cfg.ExecutorCron, func() {
		if _, err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("executor pass failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.ExecutorCron).Msg("invalid executor cron")
	}
	trigger.Start()

	srv := &http.Server{Addr: cfg.Addr, Handler: api.NewServer(store, runner, cfg.RunSecret)}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	cancel()
	<-trigger.Stop().Done()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
