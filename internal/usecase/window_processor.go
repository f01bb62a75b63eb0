package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ValueFlow/internal/domain/models"
	drepo "ValueFlow/internal/domain/repository"
	"ValueFlow/internal/engine/graph"
	"ValueFlow/internal/engine/quality"
	"ValueFlow/internal/engine/registry"
	"ValueFlow/internal/engine/resolve"
	"ValueFlow/internal/engine/store"
	applogger "ValueFlow/pkg/logger"

	"github.com/google/uuid"
)

// EngineSettings tunes validation, merge, and graph construction for the
// window processor.
type EngineSettings struct {
	BaseSymbol      string
	MinConfidence   float64
	MinValue        float64
	MaxValue        float64
	MaxGap          time.Duration
	Frequency       time.Duration
	PrioritySources []string
	PageRank        graph.PageRankConfig

	ShortWindow      int
	LongWindow       int
	AnomalyThreshold float64
	VolWindow        int
}

// WindowProcessor drives one observation window through the full pipeline:
// validate, ingest, merge, cross-check, build the graph, resolve values,
// persist and publish. One processor instance serves consecutive windows;
// the store is cleared after each run.
type WindowProcessor struct {
	settings EngineSettings
	reg      *registry.Registry
	store    *store.Store
	builder  *graph.Builder
	resolver *resolve.Resolver
	sink     drepo.ValuationSink
	pub      drepo.ResultPublisher
	metrics  drepo.Metrics
	l        *applogger.Logger

	baseID int64

	mu             sync.RWMutex
	rawPrices      []models.RawRecord
	rawRates       []models.RawRecord
	validation     map[string]models.ValidationReport
	sourceFailures map[string]string
	ingested       int

	lastGraph  *graph.ValueGraph
	lastMerged []models.MergedPoint
	lastResult *models.WindowResult
}

// NewWindowProcessor creates a processor anchored at settings.BaseSymbol. The
// base item is registered up front so every window shares its identity.
func NewWindowProcessor(
	settings EngineSettings,
	reg *registry.Registry,
	sink drepo.ValuationSink,
	pub drepo.ResultPublisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *WindowProcessor {
	base := reg.Ensure(settings.BaseSymbol, models.CategoryBaseUnit)
	return &WindowProcessor{
		settings:       settings,
		reg:            reg,
		store:          store.New(),
		builder:        graph.NewBuilder(base.ID, graph.WithPageRank(settings.PageRank)),
		resolver:       resolve.New(reg),
		sink:           sink,
		pub:            pub,
		metrics:        metrics,
		l:              l,
		baseID:         base.ID,
		validation:     make(map[string]models.ValidationReport),
		sourceFailures: make(map[string]string),
	}
}

// Registry exposes the item registry for handlers.
func (p *WindowProcessor) Registry() *registry.Registry { return p.reg }

// Statistics summarizes the current observation buffer.
func (p *WindowProcessor) Statistics() models.StoreStatistics { return p.store.Statistics() }

// IngestBatch validates one source batch and, if it passes, appends it to the
// observation buffer. A failing batch is recorded against its source and
// skipped; it never poisons the window.
func (p *WindowProcessor) IngestBatch(ctx context.Context, batch *models.ObservationBatch) error {
	if batch == nil {
		return fmt.Errorf("batch is nil")
	}

	var rep models.ValidationReport
	switch batch.Kind {
	case models.KindRate:
		rep = quality.ValidateRates(batch.Records, p.settings.MinValue, p.settings.MaxValue, p.settings.MaxGap)
	default:
		rep = quality.ValidatePrices(batch.Records, p.settings.MinValue, p.settings.MaxValue, p.settings.MaxGap)
	}

	p.mu.Lock()
	if prev, ok := p.validation[batch.Source]; ok {
		// A source may ship several batches per window; reports accumulate.
		p.validation[batch.Source] = prev.Merge(rep)
	} else {
		p.validation[batch.Source] = rep
	}
	p.mu.Unlock()

	if !rep.Passed {
		p.metrics.RecordValidationFailure(string(batch.Kind))
		p.failSource(batch.Source, fmt.Sprintf("validation failed: %d invalid of %d records", rep.InvalidRecords, rep.TotalRecords))
		return fmt.Errorf("batch %s from %s failed validation", batch.BatchID, batch.Source)
	}

	n, err := p.store.Ingest(*batch)
	if err != nil {
		p.metrics.RecordError("ingest")
		p.failSource(batch.Source, err.Error())
		var malformed *models.MalformedRecordError
		if errors.As(err, &malformed) {
			return fmt.Errorf("batch %s from %s: %w", batch.BatchID, batch.Source, err)
		}
		return err
	}

	p.mu.Lock()
	p.ingested += n
	switch batch.Kind {
	case models.KindRate:
		p.rawRates = append(p.rawRates, batch.Records...)
	default:
		p.rawPrices = append(p.rawPrices, batch.Records...)
	}
	p.mu.Unlock()

	p.metrics.RecordBatchIngested(batch.Source, string(batch.Kind), n)
	p.l.Debug("batch ingested",
		applogger.String("source", batch.Source),
		applogger.String("kind", string(batch.Kind)),
		applogger.Int("records", n),
	)
	return nil
}

func (p *WindowProcessor) failSource(source, reason string) {
	p.mu.Lock()
	p.sourceFailures[source] = reason
	p.mu.Unlock()
	p.l.Warn("source batch rejected",
		applogger.String("source", source),
		applogger.String("reason", reason),
	)
}

// ProcessWindow runs the buffered observations through merge, cross-source
// checks, graph construction, and valuation, then persists and publishes the
// result. The buffer and per-window accumulators are reset afterwards.
func (p *WindowProcessor) ProcessWindow(ctx context.Context, start, end time.Time) (*models.WindowResult, error) {
	windowID := uuid.NewString()
	startedAt := time.Now().UTC()

	p.mu.Lock()
	rawPrices := p.rawPrices
	rawRates := p.rawRates
	validation := p.validation
	failures := p.sourceFailures
	ingested := p.ingested
	p.rawPrices = nil
	p.rawRates = nil
	p.validation = make(map[string]models.ValidationReport)
	p.sourceFailures = make(map[string]string)
	p.ingested = 0
	p.mu.Unlock()

	stats := p.store.Statistics()

	merged := p.store.Merge(store.MergeOptions{
		PrioritySources: p.settings.PrioritySources,
		MinConfidence:   p.settings.MinConfidence,
	})
	p.metrics.RecordMergedPoints(len(merged))

	consistency := quality.ValidateConsistency(rawPrices, rawRates)
	if !consistency.Passed {
		p.metrics.RecordValidationFailure("consistency")
	}
	completeness := quality.ValidateCompleteness(rawPrices, rawRates, start, end, p.settings.Frequency)
	if !completeness.Passed {
		p.metrics.RecordValidationFailure("completeness")
	}

	// The graph sees the merged view only. Building from the raw buffer
	// would reintroduce the same-instant duplicates Merge just collapsed
	// and let a high-confidence source shadow a priority one.
	obs := make([]models.Observation, len(merged))
	for i := range merged {
		obs[i] = merged[i].Observation
	}

	buildStart := time.Now()
	g := p.builder.Build(obs, start, end, p.settings.MinConfidence)
	p.metrics.RecordGraphBuild(time.Since(buildStart).Seconds(), g.NodeCount(), g.EdgeCount())

	result := &models.WindowResult{
		Validation:   validation,
		Consistency:  consistency,
		Completeness: completeness,
		Statistics:   stats,
	}
	log := models.ProcessingLog{
		WindowID:        windowID,
		WindowStart:     start,
		WindowEnd:       end,
		RecordsIngested: ingested,
		PointsMerged:    len(merged),
		SourceFailures:  failures,
		StartedAt:       startedAt,
	}

	resolutions, failedItems, err := p.resolver.ResolveAll(g)
	if err != nil {
		// An edgeless window resolves nothing but still leaves a log entry.
		if !errors.Is(err, models.ErrEmptyGraph) {
			p.metrics.RecordError("resolve")
		}
		p.l.Warn("window produced no valuations",
			applogger.String("window_id", windowID),
			applogger.Error(err),
		)
		log.Status = models.StatusFailed
		log.FinishedAt = time.Now().UTC()
		result.Log = log
		p.finishWindow(ctx, g, merged, result)
		return result, err
	}

	for range resolutions {
		p.metrics.RecordResolution("resolved")
	}
	for range failedItems {
		p.metrics.RecordResolution("unreachable")
	}

	log.ItemsResolved = len(resolutions)
	log.ItemsUnreachable = len(failedItems)
	for sym, ferr := range failedItems {
		if log.SourceFailures == nil {
			log.SourceFailures = make(map[string]string)
		}
		log.SourceFailures["item:"+sym] = ferr.Error()
	}

	switch {
	case len(resolutions) == 0:
		log.Status = models.StatusFailed
	case len(failures) > 0 || len(failedItems) > 0:
		log.Status = models.StatusPartial
	default:
		log.Status = models.StatusSuccess
	}
	log.FinishedAt = time.Now().UTC()

	result.Log = log
	result.Resolutions = resolutions

	if p.sink != nil {
		if serr := p.sink.StoreResolutions(ctx, windowID, resolutions); serr != nil {
			p.metrics.RecordError("sink_resolutions")
			p.l.Error("store resolutions failed", applogger.String("window_id", windowID), applogger.Error(serr))
		}
	}
	if p.pub != nil {
		if perr := p.pub.PublishResolutions(ctx, windowID, resolutions); perr != nil {
			p.metrics.RecordError("publish_resolutions")
			p.l.Error("publish resolutions failed", applogger.String("window_id", windowID), applogger.Error(perr))
		}
	}

	p.finishWindow(ctx, g, merged, result)

	p.l.Info("window processed",
		applogger.String("window_id", windowID),
		applogger.String("status", string(log.Status)),
		applogger.Int("ingested", log.RecordsIngested),
		applogger.Int("merged", log.PointsMerged),
		applogger.Int("resolved", log.ItemsResolved),
		applogger.Int("unreachable", log.ItemsUnreachable),
		applogger.Duration("duration_ms", log.FinishedAt.Sub(log.StartedAt)),
	)
	return result, nil
}

// finishWindow persists the log, caches the window output for read paths, and
// resets the observation buffer.
func (p *WindowProcessor) finishWindow(ctx context.Context, g *graph.ValueGraph, merged []models.MergedPoint, result *models.WindowResult) {
	if p.sink != nil {
		if err := p.sink.StoreLog(ctx, result.Log); err != nil {
			p.metrics.RecordError("sink_log")
			p.l.Error("store processing log failed",
				applogger.String("window_id", result.Log.WindowID),
				applogger.Error(err),
			)
		}
	}

	p.mu.Lock()
	p.lastGraph = g
	p.lastMerged = merged
	p.lastResult = result
	p.mu.Unlock()

	p.store.Clear()
}

// LastResult returns the most recently processed window, or nil before the
// first run.
func (p *WindowProcessor) LastResult() *models.WindowResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastResult
}

// LastGraph returns the most recently built graph, or nil before the first run.
func (p *WindowProcessor) LastGraph() *graph.ValueGraph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastGraph
}

// LastMerged returns the merged points of the most recent window.
func (p *WindowProcessor) LastMerged() []models.MergedPoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastMerged
}

// ResolveSymbol values one item against the base unit over the most recent
// graph.
func (p *WindowProcessor) ResolveSymbol(symbol string) (models.Resolution, error) {
	it, ok := p.reg.Lookup(symbol)
	if !ok {
		return models.Resolution{}, fmt.Errorf("unknown item: %s", symbol)
	}
	g := p.LastGraph()
	if g == nil {
		return models.Resolution{}, models.ErrEmptyGraph
	}
	return p.resolver.Resolve(it.ID, g)
}

// Close releases the downstream collaborators.
func (p *WindowProcessor) Close() {
	if p.sink != nil {
		_ = p.sink.Close()
	}
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
