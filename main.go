package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"rental-sync/config"
	"rental-sync/metrics"
	"rental-sync/models"
	"rental-sync/scraper/rightmove"
	"rental-sync/services"
	"rental-sync/storage"
	"rental-sync/traveltime"
	"rental-sync/utils"
)

type options struct {
	reset      bool
	skipRemote bool
}

func main() {
	query := flag.String("query", "", "location to search, e.g. \"london\" (default: searches from SEARCHES_FILE)")
	results := flag.Int("results", 0, "target number of listings per search (default: TARGET_RESULTS)")
	reset := flag.Bool("reset", false, "drop properties_data in both stores before syncing")
	skipRemote := flag.Bool("skip-remote", false, "do not sync to the remote Postgres store")
	flag.Parse()

	cfg := config.Load()
	runID := uuid.NewString()
	logger := utils.NewLogger().With("run_id", runID)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Rental sync starting ===")
	logger.Info("Config | page size: %d | cap: %d | concurrency: %d | rate: %dms | transport: %s",
		cfg.PageSize, cfg.MaxAPIResults, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.Transport)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("Metrics server stopped: %v", err)
			}
		}()
		logger.Info("Metrics on http://%s/metrics", cfg.MetricsAddr)
	}

	searches, err := searchesFor(cfg, *query, *results)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	opts := options{reset: *reset, skipRemote: *skipRemote || !cfg.RemoteSync}
	if err := run(ctx, cfg, logger, searches, opts); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func searchesFor(cfg *config.Config, query string, results int) ([]config.Search, error) {
	target := cfg.TargetResults
	if results > 0 {
		target = results
	}
	if query != "" {
		return []config.Search{{Name: query, Query: query, TargetResults: target}}, nil
	}
	if cfg.SearchesFile == "" {
		return nil, eris.New("no -query given and SEARCHES_FILE is not set")
	}
	return config.LoadSearches(cfg.SearchesFile, target)
}

// stage names the pipeline step an error came from.
func stage(name string, err error) error {
	return eris.Wrapf(err, "%s stage failed", name)
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger, searches []config.Search, opts options) error {
	transport, closeTransport, err := newTransport(cfg, logger)
	if err != nil {
		return stage("resolve", err)
	}
	defer closeTransport()

	local, err := storage.NewSQLiteStore(ctx, cfg.LocalDBPath, logger)
	if err != nil {
		return stage("local-sync", err)
	}
	defer local.Close()

	var remote storage.RemoteStore
	if !opts.skipRemote {
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN(), logger)
		if err != nil {
			return stage("remote-sync", err)
		}
		defer pg.Close()
		remote = pg
	}

	syncer := services.NewSynchronizer(local, remote, logger)
	if opts.reset {
		logger.Warn("Reset requested: dropping %s", storage.TableName)
		if err := syncer.Reset(ctx); err != nil {
			return stage("reset", err)
		}
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		return stage("clean", err)
	}
	defer csvWriter.Close()

	resolver := rightmove.NewResolver(transport, cfg.TypeaheadURL, logger)
	searcher := rightmove.NewSearcher(transport, rightmove.SearchConfig{
		BaseURL:        cfg.SearchURL,
		PageSize:       cfg.PageSize,
		MaxResults:     cfg.MaxAPIResults,
		MaxConcurrency: cfg.MaxConcurrency,
		RateLimitMs:    cfg.RateLimitMs,
		MaxRetries:     cfg.MaxRetries,
	}, logger)
	cleaner := services.NewCleaner(logger)

	for _, s := range searches {
		if err := collect(ctx, s, resolver, searcher, cleaner, csvWriter, syncer, logger); err != nil {
			return err
		}
	}

	if cfg.TravelTimeEnabled() {
		if err := addTravelTimes(ctx, cfg, local, syncer, logger); err != nil {
			return stage("travel-time", err)
		}
	} else {
		logger.Warn("TRAVELTIME_APP_ID/TRAVELTIME_API_KEY not set, using stored travel times only")
	}

	stored, err := local.LoadAll(ctx)
	if err != nil {
		return stage("local-sync", err)
	}

	enricher := services.NewEnricher(logger)
	prepared := enricher.PrepareForModel(stored, cfg.Frequencies)
	enriched, err := predict(enricher, prepared, logger)
	if err != nil {
		return stage("regression", err)
	}

	if _, err := syncer.SyncLocal(ctx, enriched); err != nil {
		return stage("local-sync", err)
	}
	if remote != nil {
		if _, err := syncer.SyncRemote(ctx, enriched); err != nil {
			return stage("remote-sync", err)
		}
	}

	insights := services.NewInsightService(cfg.SiteOrigin, logger)
	insights.Print(insights.Generate(enriched, cfg.UserBudget))

	metrics.LastRunTimestamp.SetToCurrentTime()
	fmt.Printf("  Done. Clean CSV → %s | Local store → %s\n\n", cfg.CSVOutputPath, cfg.LocalDBPath)
	return nil
}

// collect runs one search from query to local store.
func collect(ctx context.Context, s config.Search,
	resolver *rightmove.Resolver, searcher *rightmove.Searcher, cleaner *services.Cleaner,
	rows storage.RowWriter, syncer *services.Synchronizer, logger *utils.Logger,
) error {
	logger.Info("── Search %q (%q, up to %d results) ──", s.Name, s.Query, s.TargetResults)

	ids, err := resolver.Resolve(ctx, s.Query)
	if err != nil {
		return stage("resolve", err)
	}
	if len(ids) == 0 {
		logger.Warn("No locations match %q, skipping", s.Query)
		return nil
	}

	raw, err := searcher.Fetch(ctx, ids[0], s.TargetResults)
	if err != nil {
		return stage("fetch", err)
	}

	cleaned, err := cleaner.Clean(raw)
	if err != nil {
		return stage("clean", err)
	}
	cleaned = cleaner.Rename(cleaned)
	if err := rows.WriteRows(cleaned); err != nil {
		logger.Warn("CSV write failed: %v", err)
	}

	listings, err := cleaner.ToListings(cleaned)
	if err != nil {
		return stage("clean", err)
	}
	if _, err := syncer.SyncLocal(ctx, listings); err != nil {
		return stage("local-sync", err)
	}
	return nil
}

func addTravelTimes(ctx context.Context, cfg *config.Config, local storage.LocalStore, syncer *services.Synchronizer, logger *utils.Logger) error {
	stored, err := local.LoadAll(ctx)
	if err != nil {
		return err
	}

	client := traveltime.NewClient(traveltime.Config{
		URL:       cfg.TravelTimeURL,
		AppID:     cfg.TravelTimeAppID,
		APIKey:    cfg.TravelTimeAPIKey,
		OriginLat: cfg.OriginLat,
		OriginLng: cfg.OriginLng,
		BatchSize: cfg.TravelTimeBatch,
		Timeout:   cfg.RequestTimeout,
	}, logger)

	updated, err := client.Enrich(ctx, stored)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return nil
	}
	_, err = syncer.SyncLocal(ctx, updated)
	return err
}

// predict fits the price model on prepared listings and attaches its
// predictions. Too few listings to fit yields no predictions.
func predict(enricher *services.Enricher, prepared []*models.Listing, logger *utils.Logger) ([]*models.Listing, error) {
	// intercept plus (travel_time, bathrooms)
	if len(prepared) < 3 {
		logger.Warn("Only %d listing(s) usable for the price model, skipping predictions", len(prepared))
		return nil, nil
	}

	features, err := services.FeatureMatrix(prepared)
	if err != nil {
		return nil, err
	}
	target := make([]float64, len(prepared))
	for i, l := range prepared {
		target[i] = *l.PricePerBed
	}

	model, err := services.FitLinearModel(features, target)
	if err != nil {
		return nil, err
	}
	if model.Rank < len(features[0])+1 {
		logger.Warn("Price model features are collinear (rank %d), using the minimum-norm fit", model.Rank)
	}
	return enricher.AttachPredictions(prepared, model)
}

func newTransport(cfg *config.Config, logger *utils.Logger) (rightmove.Transport, func(), error) {
	if cfg.Transport == "browser" {
		bt, err := rightmove.NewBrowserTransport(cfg.SiteOrigin, cfg.ChromeBin, cfg.UserAgent, cfg.RequestTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return bt, bt.Close, nil
	}

	ct, err := rightmove.NewCollyTransport(rightmove.TransportConfig{
		Origin:      cfg.SiteOrigin,
		UserAgent:   cfg.UserAgent,
		Parallelism: cfg.MaxConcurrency,
		Timeout:     cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return ct, func() {}, nil
}
