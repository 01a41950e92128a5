package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/souhailsouid/adele/internal/alerts"
	"github.com/souhailsouid/adele/internal/analyze"
	"github.com/souhailsouid/adele/internal/api/fmp"
	"github.com/souhailsouid/adele/internal/api/unusualwhales"
	"github.com/souhailsouid/adele/internal/cache"
	"github.com/souhailsouid/adele/internal/config"
	"github.com/souhailsouid/adele/internal/database"
	"github.com/souhailsouid/adele/internal/feeds"
	"github.com/souhailsouid/adele/internal/institutional"
	"github.com/souhailsouid/adele/internal/payment"
	"github.com/souhailsouid/adele/internal/scheduler"
	"github.com/souhailsouid/adele/internal/server"
	"github.com/souhailsouid/adele/internal/weights"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := cfg.SetupLogging()

	w, err := weights.Load(cfg.WeightsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.WeightsFile).Msg("Failed to load weights")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	whales := unusualwhales.NewClient(unusualwhales.ClientOptions{
		APIKey:         cfg.UnusualWhalesAPIKey,
		BaseURL:        cfg.UnusualWhalesBaseURL,
		RequestTimeout: timeout,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	market := fmp.NewClient(fmp.ClientOptions{
		APIKey:         cfg.FMPAPIKey,
		BaseURL:        cfg.FMPBaseURL,
		RequestTimeout: timeout,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CachePath).Msg("Failed to open cache")
	}
	defer store.Close()

	collector := feeds.NewCollector(whales, market, store, feeds.Options{Concurrency: cfg.ScanConcurrency})
	recommender := analyze.NewRecommender(w.Recommendation)
	detector := institutional.NewDetector(w.Flow, collector, cfg.ScanConcurrency)

	srvCfg := server.Config{
		Port:                cfg.Port,
		Log:                 logger,
		DevMode:             cfg.LogFormat == "console",
		AllowedOrigins:      cfg.AllowedOrigins,
		Market:              collector,
		Recommender:         recommender,
		Detector:            detector,
		Cache:               store,
		RawSources:          map[string]server.RawSource{"uw": whales, "fmp": market},
		RequireSubscription: cfg.RequireSubscription,
	}

	sched := scheduler.New(logger)
	maintenance := []scheduler.Job{&scheduler.CacheCleanupJob{Cache: store, Log: logger}}

	scanJob := &scheduler.ScanJob{
		Scanner:        detector,
		Recommender:    recommender,
		DefaultTickers: cfg.DefaultTickers,
		Concurrency:    cfg.ScanConcurrency,
		Log:            logger,
	}

	if cfg.DatabaseEnabled() {
		db, err := database.New(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()

		srvCfg.Store = db
		scanJob.Tickers = db
		scanJob.Store = db
		maintenance = append(maintenance, &scheduler.ExpirationJob{Subscriptions: db, Log: logger})
	} else {
		log.Warn().Msg("DB_USER not set, running without persistence")
		if cfg.RequireSubscription {
			log.Fatal().Msg("REQUIRE_SUBSCRIPTION needs a database")
		}
	}

	if cfg.StripeEnabled() {
		srvCfg.Billing = payment.NewStripeService(payment.Options{
			APIKey:              cfg.StripeAPIKey,
			SubscriptionPriceID: cfg.StripeSubscriptionPriceID,
			WebhookSecret:       cfg.StripeWebhookSecret,
			SuccessURL:          cfg.StripeSuccessURL,
			CancelURL:           cfg.StripeCancelURL,
		})
	}

	if cfg.TelegramEnabled() {
		notifier, err := alerts.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.AlertCooldown)
		if err != nil {
			log.Error().Err(err).Msg("Telegram alerts disabled")
		} else {
			scanJob.Notifier = notifier
		}
	}

	// sweep once at startup so a restart does not wait for the next hour
	for _, job := range maintenance {
		if err := sched.RunNow(job); err != nil {
			log.Warn().Err(err).Str("job", job.Name()).Msg("Startup maintenance failed")
		}
		if err := sched.AddJob("@hourly", job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register maintenance job")
		}
	}

	if err := sched.AddJob(cfg.ScanSchedule, scanJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ScanSchedule).Msg("Invalid scan schedule")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(srvCfg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
