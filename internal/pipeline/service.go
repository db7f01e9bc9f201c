package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/logbuf"
	"github.com/zrouga/CoAI-app/internal/progress"
	"github.com/zrouga/CoAI-app/internal/telemetry"
)

const (
	// enrichLimit caps stage-2 to the first N recently-discovered products,
	// protecting the third-party traffic API and bounding run latency.
	enrichLimit = 10
	// recentWindow selects products persisted by the just-finished stage 1.
	recentWindow = 5 * time.Minute
	// runGrace pads the background run context past the scrape budget so
	// stage 2 and finalization are never cut off mid-write.
	runGrace = 10 * time.Minute
)

// Service orchestrates pipeline runs. Runs execute on background goroutines;
// submission returns immediately with the registry snapshot.
type Service struct {
	store    intel.Store
	scraper  intel.Scraper
	traffic  intel.TrafficLookup
	registry *Registry
	broker   *progress.Broker
	logs     *logbuf.Buffer
	logger   *zap.Logger

	nowFn func() time.Time
}

// NewService wires the orchestrator. A nil logger is replaced with a no-op.
func NewService(
	store intel.Store,
	scraper intel.Scraper,
	traffic intel.TrafficLookup,
	registry *Registry,
	broker *progress.Broker,
	logs *logbuf.Buffer,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		scraper:  scraper,
		traffic:  traffic,
		registry: registry,
		broker:   broker,
		logs:     logs,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Submit validates the request and launches a background run for the
// keyword. If a run is already active for the keyword the existing snapshot
// is returned unchanged and no new run starts.
func (s *Service) Submit(_ context.Context, req RunRequest) (Run, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return Run{}, err
	}

	run, started := s.registry.BeginRun(req.Keyword)
	if !started {
		s.logger.Info("pipeline already running, echoing snapshot",
			zap.String("keyword", req.Keyword),
			zap.String("status", string(run.Status)),
		)
		return run, nil
	}

	telemetry.SetActiveRuns(s.registry.ActiveCount())
	go s.run(req)
	return run, nil
}

// Status returns the keyword's run snapshot. When not resident it is
// reconstructed from persisted products (a completed view), cached, and
// returned. intel.ErrNotFound when neither exists.
func (s *Service) Status(ctx context.Context, keyword string) (Run, error) {
	if run, ok := s.registry.Get(keyword); ok {
		return run, nil
	}

	page, err := s.store.ProductsByKeyword(ctx, keyword, intel.SortDiscoveredAt, false, 0, 0)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		Keyword:       keyword,
		Status:        StatusCompleted,
		Step1Products: page.Total,
		Errors:        []string{},
	}
	ids := make([]int64, 0, len(page.Products))
	first, last := time.Time{}, time.Time{}
	for _, p := range page.Products {
		ids = append(ids, p.ID)
		if first.IsZero() || p.FirstDiscovered.Before(first) {
			first = p.FirstDiscovered
		}
		if p.FirstDiscovered.After(last) {
			last = p.FirstDiscovered
		}
	}
	if !first.IsZero() {
		run.StartedAt = &first
		run.CompletedAt = &last
		dur := last.Sub(first).Seconds()
		run.DurationSeconds = &dur
	}
	traffic, err := s.store.TrafficForProducts(ctx, ids)
	if err != nil {
		return Run{}, err
	}
	for _, t := range traffic {
		if t.Enriched() {
			run.Step2Enriched++
		}
	}

	s.registry.Put(run)
	return run, nil
}

// ActiveRuns reports how many runs are currently in flight.
func (s *Service) ActiveRuns() int {
	return s.registry.ActiveCount()
}

// Delete removes everything persisted and resident for the keyword as one
// logical unit: store rows, registry entry, log buffer, and the broker's
// state snapshot. intel.ErrNotFound when nothing is persisted.
func (s *Service) Delete(ctx context.Context, keyword string) error {
	if err := s.store.DeleteKeywordResults(ctx, keyword); err != nil {
		return err
	}
	s.registry.Delete(keyword)
	s.logs.Clear(keyword)
	s.broker.ClearState(keyword)
	s.logger.Info("deleted keyword results", zap.String("keyword", keyword))
	return nil
}

// run executes the two-stage workflow for one keyword. It never returns an
// error: every failure path marks the run failed, records the message, and
// emits a pipeline_error event.
func (s *Service) run(req RunRequest) {
	keyword := req.Keyword
	emitter := progress.NewEmitter(s.broker, keyword)

	ctx, cancel := context.WithTimeout(context.Background(), req.Timeout()+runGrace)
	defer cancel()

	// keywordID is zero until the keyword row exists; fail skips the row
	// write in that case.
	var keywordID int64
	defer func() {
		if p := recover(); p != nil {
			s.fail(ctx, keywordID, emitter, keyword, fmt.Sprintf("Pipeline failed: panic: %v", p))
		}
		telemetry.SetActiveRuns(s.registry.ActiveCount())
		s.refreshStoreGauges(ctx)
	}()

	started := s.nowFn()
	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusRunningStep1
		run.StartedAt = &started
	})

	emitter.EmitStart(req.configMap())
	s.log(keyword, "INFO", fmt.Sprintf("Starting pipeline for keyword: %s", keyword), req.configMap())
	s.logger.Info("pipeline start",
		zap.String("keyword", keyword),
		zap.Int("max_ads", req.MaxAds),
		zap.String("correlation_id", emitter.CorrelationID()),
	)

	kw, err := s.store.GetOrCreateKeyword(ctx, keyword)
	if err != nil {
		s.fail(ctx, 0, emitter, keyword, fmt.Sprintf("Pipeline failed: %v", err))
		return
	}
	keywordID = kw.ID
	if err := s.store.MarkKeywordProcessing(ctx, kw.ID); err != nil {
		s.logger.Warn("keyword processing mark failed", zap.String("keyword", keyword), zap.Error(err))
	}
	emitter.EmitLog("info", fmt.Sprintf("Using keyword record: %s, id=%d", keyword, kw.ID))

	products, ok := s.runStep1(ctx, req, kw.ID, emitter)
	if !ok {
		return
	}
	if len(products) == 0 {
		s.finishEmpty(ctx, kw.ID, emitter, keyword)
		return
	}

	subset, err := s.selectEnrichment(ctx, req)
	if err != nil {
		s.fail(ctx, kw.ID, emitter, keyword, fmt.Sprintf("Pipeline failed: %v", err))
		return
	}
	emitter.EmitLog("info", fmt.Sprintf("Found %d recent products for enrichment", len(subset)))

	enriched := s.runStep2(ctx, subset, emitter, keyword)

	s.finalize(ctx, kw.ID, emitter, keyword, len(products), enriched, started)
}

// runStep1 drives the scrape stage. ok=false means the run was failed.
func (s *Service) runStep1(ctx context.Context, req RunRequest, keywordID int64, emitter *progress.Emitter) ([]intel.Product, bool) {
	keyword := req.Keyword
	emitter.EmitStepStart(1, "Facebook Ad Scraping",
		fmt.Sprintf("Scrape ads for keyword '%s'", keyword))

	step1Start := s.nowFn()
	products, err := s.scraper.Scrape(ctx, intel.ScrapeRequest{
		Keyword:   keyword,
		KeywordID: keywordID,
		MaxItems:  req.MaxAds,
		Timeout:   req.Timeout(),
		Filters:   intel.ScrapeFilters{MinSpendUSD: req.MinAdSpendUSD},
	})
	if err != nil {
		emitter.EmitError(fmt.Sprintf("Step 1 failed: %v", err), 1)
		s.fail(ctx, keywordID, emitter, keyword, fmt.Sprintf("Pipeline failed: %v", err))
		return nil, false
	}
	step1Dur := s.nowFn().Sub(step1Start)

	s.registry.Update(keyword, func(run *Run) {
		run.Step1Products = len(products)
	})
	emitter.EmitStepComplete(1, map[string]any{
		"products_found":   len(products),
		"duration_seconds": round1(step1Dur.Seconds()),
	})
	s.log(keyword, "INFO", fmt.Sprintf("Step 1 found %d products", len(products)), nil)
	return products, true
}

// finishEmpty finalizes a run whose scrape found nothing; stage 2 never runs.
func (s *Service) finishEmpty(ctx context.Context, keywordID int64, emitter *progress.Emitter, keyword string) {
	emitter.EmitLog("warning", "No products found. Pipeline complete.")
	now := s.nowFn()
	var dur *float64
	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusCompleted
		run.CompletedAt = &now
		if run.StartedAt != nil {
			d := now.Sub(*run.StartedAt).Seconds()
			run.DurationSeconds = &d
			dur = &d
		}
	})
	if err := s.store.UpdateKeywordResult(ctx, keywordID, intel.KeywordCompleted, 0, dur, nil); err != nil {
		s.logger.Warn("keyword finalize failed", zap.String("keyword", keyword), zap.Error(err))
	}
	emitter.EmitPipelineComplete(map[string]any{
		"products_discovered": 0,
		"traffic_enriched":    0,
	})
	telemetry.ObservePipelineRun(string(StatusCompleted))
	s.log(keyword, "INFO", "Pipeline completed with no products", nil)
}

// selectEnrichment re-queries recently persisted products and caps the subset
// to the stage-2 limit, first by the requested max as a safety bound.
func (s *Service) selectEnrichment(ctx context.Context, req RunRequest) ([]intel.Product, error) {
	cutoff := s.nowFn().Add(-recentWindow)
	recent, err := s.store.RecentProducts(ctx, cutoff, req.MaxAds)
	if err != nil {
		return nil, fmt.Errorf("select enrichment subset: %w", err)
	}
	if len(recent) > enrichLimit {
		recent = recent[:enrichLimit]
	}
	return recent, nil
}

// runStep2 sequentially enriches the subset. Per-domain failures are recorded
// on the run and never abort the batch; the write happens for no-data
// outcomes too so empty domains are not re-queried.
func (s *Service) runStep2(ctx context.Context, subset []intel.Product, emitter *progress.Emitter, keyword string) int {
	emitter.EmitStepStart(2, "Traffic Data Enrichment",
		fmt.Sprintf("Enrich %d domains with traffic data", len(subset)))
	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusRunningStep2
	})

	step2Start := s.nowFn()
	enriched := 0
	for i, product := range subset {
		domain := product.BrandDomain
		emitter.EmitStepProgress(2, i, len(subset), fmt.Sprintf("Processing %s", domain))

		result, err := s.traffic.Lookup(ctx, domain)
		if err != nil {
			telemetry.ObserveTrafficLookup("error")
			msg := fmt.Sprintf("Traffic lookup failed for %s: %v", domain, err)
			emitter.EmitLog("error", msg)
			s.log(keyword, "ERROR", msg, nil)
			s.registry.Update(keyword, func(run *Run) {
				run.Errors = append(run.Errors, msg)
			})
			result = intel.TrafficResult{Source: fmt.Sprintf("error: %v", err)}
		}

		if err := s.store.UpsertTraffic(ctx, intel.TrafficIntelligence{
			ProductID:     product.ID,
			MonthlyVisits: result.MonthlyVisits,
			DataSource:    result.Source,
		}); err != nil {
			msg := fmt.Sprintf("Traffic persist failed for %s: %v", domain, err)
			s.log(keyword, "ERROR", msg, nil)
			s.registry.Update(keyword, func(run *Run) {
				run.Errors = append(run.Errors, msg)
			})
			continue
		}

		if result.MonthlyVisits != nil && *result.MonthlyVisits > 0 {
			telemetry.ObserveTrafficLookup("enriched")
			emitter.EmitLog("info", fmt.Sprintf("Traffic data for %s: %d monthly visits (via %s)",
				domain, *result.MonthlyVisits, result.Source))
			enriched++
		} else if err == nil {
			telemetry.ObserveTrafficLookup("no_data")
			emitter.EmitLog("warning", fmt.Sprintf("No traffic data available for %s: %s", domain, result.Source))
		}
	}
	step2Dur := s.nowFn().Sub(step2Start)

	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusStep2Complete
		run.Step2Enriched = enriched
	})
	emitter.EmitStepComplete(2, map[string]any{
		"domains_enriched":  enriched,
		"domains_processed": len(subset),
		"duration_seconds":  round1(step2Dur.Seconds()),
	})
	return enriched
}

// finalize marks the run completed and mirrors the result onto the keyword row.
func (s *Service) finalize(ctx context.Context, keywordID int64, emitter *progress.Emitter, keyword string, discovered, enriched int, started time.Time) {
	now := s.nowFn()
	dur := now.Sub(started).Seconds()
	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusCompleted
		run.CompletedAt = &now
		run.DurationSeconds = &dur
	})
	if err := s.store.UpdateKeywordResult(ctx, keywordID, intel.KeywordCompleted, discovered, &dur, nil); err != nil {
		s.logger.Warn("keyword finalize failed", zap.String("keyword", keyword), zap.Error(err))
	}

	emitter.EmitPipelineComplete(map[string]any{
		"products_discovered":    discovered,
		"traffic_enriched":       enriched,
		"total_duration_seconds": round1(dur),
	})
	telemetry.ObservePipelineRun(string(StatusCompleted))

	s.log(keyword, "INFO", fmt.Sprintf("Pipeline completed for keyword: %s", keyword), map[string]any{
		"step1_products":   discovered,
		"step2_enriched":   enriched,
		"duration_seconds": dur,
	})
	s.logger.Info("pipeline complete",
		zap.String("keyword", keyword),
		zap.Int("step1_products", discovered),
		zap.Int("step2_enriched", enriched),
		zap.Float64("duration_seconds", dur),
	)
}

// fail marks the run failed, mirrors the failure onto the keyword row when
// one exists, records timing, and emits the terminal error.
func (s *Service) fail(ctx context.Context, keywordID int64, emitter *progress.Emitter, keyword, msg string) {
	now := s.nowFn()
	var dur *float64
	products := 0
	s.registry.Update(keyword, func(run *Run) {
		run.Status = StatusFailed
		run.Errors = append(run.Errors, msg)
		run.CompletedAt = &now
		if run.StartedAt != nil {
			d := now.Sub(*run.StartedAt).Seconds()
			run.DurationSeconds = &d
			dur = &d
		}
		products = run.Step1Products
	})
	if keywordID != 0 {
		if err := s.store.UpdateKeywordResult(ctx, keywordID, intel.KeywordFailed, products, dur, &msg); err != nil {
			s.logger.Warn("keyword failure record failed", zap.String("keyword", keyword), zap.Error(err))
		}
	}
	emitter.EmitError(msg, 0)
	telemetry.ObservePipelineRun(string(StatusFailed))
	s.log(keyword, "ERROR", msg, nil)
	s.logger.Error("pipeline failed", zap.String("keyword", keyword), zap.String("error", msg))
}

func (s *Service) refreshStoreGauges(ctx context.Context) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.logger.Debug("store counts refresh failed", zap.Error(err))
		return
	}
	telemetry.SetStoreCounts(counts.Keywords, counts.Products, counts.ProductsWithTraffic)
}

func (s *Service) log(keyword, level, message string, context map[string]any) {
	s.logs.Append(keyword, logbuf.Entry{
		Timestamp: s.nowFn(),
		Level:     level,
		Message:   message,
		Keyword:   keyword,
		Context:   context,
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
