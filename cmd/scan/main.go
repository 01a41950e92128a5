package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/souhailsouid/adele/internal/alerts"
	"github.com/souhailsouid/adele/internal/analyze"
	"github.com/souhailsouid/adele/internal/api/fmp"
	"github.com/souhailsouid/adele/internal/api/unusualwhales"
	"github.com/souhailsouid/adele/internal/cache"
	"github.com/souhailsouid/adele/internal/config"
	"github.com/souhailsouid/adele/internal/feeds"
	"github.com/souhailsouid/adele/internal/institutional"
	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/weights"
)

func main() {
	notify := flag.Bool("notify", false, "send HIGH_ALERT detections to Telegram")
	noCache := flag.Bool("no-cache", false, "bypass the response cache")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scan [options] TICKER [TICKER...]\n\n")
		fmt.Fprintf(os.Stderr, "Scores each ticker and prints the recommendation and institutional flow.\n")
		fmt.Fprintf(os.Stderr, "Without tickers, DEFAULT_TICKERS is used.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.SetupLogging()

	tickers := flag.Args()
	if len(tickers) == 0 {
		tickers = cfg.DefaultTickers
	}
	if len(tickers) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	w, err := weights.Load(cfg.WeightsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load weights")
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

	var store *cache.Store
	if !*noCache {
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open cache")
		}
		defer store.Close()
	}

	collector := feeds.NewCollector(whales, market, store, feeds.Options{Concurrency: cfg.ScanConcurrency})
	recommender := analyze.NewRecommender(w.Recommendation)
	detector := institutional.NewDetector(w.Flow, collector, cfg.ScanConcurrency)

	var notifier *alerts.Notifier
	if *notify {
		if !cfg.TelegramEnabled() {
			log.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required with -notify")
		}
		notifier, err = alerts.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.AlertCooldown)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := 0
	for _, ticker := range tickers {
		detection, snap, err := detector.Scan(ctx, ticker)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("Scan failed")
			failed++
			continue
		}
		recommendation := recommender.Recommend(snap)
		printReport(snap, recommendation, detection)

		if notifier != nil {
			if _, err := notifier.Notify(ctx, detection); err != nil {
				log.Error().Err(err).Str("ticker", ticker).Msg("Failed to send alert")
			}
		}
	}

	if failed == len(tickers) {
		os.Exit(1)
	}
}

func printReport(snap *model.Snapshot, r *model.Recommendation, d *model.FlowDetection) {
	fmt.Printf("\n===== %s =====\n", snap.Ticker)
	if price := snap.LastPrice(); price > 0 {
		fmt.Printf("Price: %.2f\n", price)
	}

	fmt.Printf("\nRecommendation: %s (composite %+.2f, confidence %.0f%%)\n",
		r.Recommendation, r.Composite, r.Confidence*100)
	for _, f := range r.Factors {
		if f.Available {
			fmt.Printf("  %-14s %+.2f  w=%.2f  %s\n", f.Name, f.Score, f.Weight, f.Reason)
		} else {
			fmt.Printf("  %-14s   n/a  w=%.2f  %s\n", f.Name, f.Weight, f.Reason)
		}
	}

	fmt.Printf("\nInstitutional flow: %s %s (score %.0f/100)\n", d.AlertLevel, d.Direction, d.Composite*100)
	for _, f := range d.Factors {
		fmt.Printf("  %-14s %.2f  w=%.2f  %s\n", f.Name, f.Score, f.Weight, f.Reason)
	}
	if d.Anomaly != nil && d.Anomaly.IsAnomaly {
		fmt.Printf("Anomaly: %s (%.2f) %s\n", d.Anomaly.AnomalyType, d.Anomaly.AnomalyScore, strings.Join(d.Anomaly.RecommendedFlags, ", "))
	}
	if len(snap.Errors) > 0 {
		fmt.Println("\nUnavailable feeds:")
		for feed, msg := range snap.Errors {
			fmt.Printf("  %s: %s\n", feed, msg)
		}
	}
}
