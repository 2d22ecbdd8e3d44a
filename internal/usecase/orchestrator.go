package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// OrchestratorDeps wires the registry and driven adapters into the
// orchestration component.
type OrchestratorDeps struct {
	Registry ports.NicheRegistry
	Stages   *Stages
	Sink     ports.OutputSink
	Cache    ports.ArtifactCache
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// Orchestrator owns the niche lifecycle: it is the only component that
// writes to the registry, and it drives the four pipeline stages in order.
type Orchestrator struct {
	registry ports.NicheRegistry
	stages   *Stages
	sink     ports.OutputSink
	cache    ports.ArtifactCache
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		registry: deps.Registry,
		stages:   deps.Stages,
		sink:     deps.Sink,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		logger:   deps.Logger,
	}
}

var stageOrder = []domain.Stage{
	domain.StageOutline,
	domain.StageExpand,
	domain.StageEnrich,
	domain.StagePolish,
}

// Process registers the niche (idempotently) and runs the pipeline to
// completion, resuming at the stage implied by the record's status.
//
// Generation failures are recorded on the record (status=failed, last_error
// set) and returned with a nil error; only caller mistakes (bad input),
// state-machine violations and cancellation surface as errors.
func (o *Orchestrator) Process(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, error) {
	rec, created, err := o.registry.Register(ctx, slug, keywords)
	if err != nil {
		return domain.NicheRecord{}, err
	}

	log := o.componentLog(rec.Slug)
	if !created {
		switch rec.Status {
		case domain.StatusPublished:
			log.Debug("niche already published, skipping")
			return rec, nil
		case domain.StatusFailed:
			log.Debug("niche previously failed, waiting for manual retry", "last_error", rec.LastError)
			return rec, nil
		}
	}

	return o.run(ctx, rec, log)
}

// Retry resets a failed niche to planned so the next Process call restarts
// the pipeline at the outline stage. This is the only edge out of failed,
// and it is operator-initiated.
func (o *Orchestrator) Retry(ctx context.Context, slug string) (domain.NicheRecord, error) {
	if err := o.registry.UpdateStatus(ctx, slug, domain.StatusPlanned, ""); err != nil {
		return domain.NicheRecord{}, err
	}
	return o.registry.Get(ctx, slug)
}

// Sweep processes every planned niche, one goroutine per niche. Cross-slug
// independence makes the concurrency safe; per-slug serialization is the
// registry's job.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	planned := domain.StatusPlanned
	recs, err := o.registry.List(ctx, &planned)
	if err != nil {
		return fmt.Errorf("list planned niches: %w", err)
	}

	var wg sync.WaitGroup
	for _, rec := range recs {
		wg.Add(1)
		go func(rec domain.NicheRecord) {
			defer wg.Done()
			if _, err := o.Process(ctx, rec.Slug, rec.Keywords); err != nil {
				o.componentLog(rec.Slug).Error("sweep processing failed", "error", err)
			}
		}(rec)
	}
	wg.Wait()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, rec domain.NicheRecord, log *slog.Logger) (domain.NicheRecord, error) {
	start, ok := domain.StageForStatus(rec.Status)
	if !ok {
		return rec, nil
	}

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	var (
		outline  domain.Outline
		sections domain.Sections
		enriched domain.Enriched
	)

	// Each stage consumes only its predecessor's artifact (expansion and
	// enrichment carry the outline along inside theirs), so resume falls
	// back one stage at a time until the needed input is cached.
	startIdx := stageIndex(start)
	if startIdx == 3 && !o.loadCached(rec.Slug, domain.StageEnrich, &enriched, log) {
		startIdx = 2
	}
	if startIdx == 2 && !o.loadCached(rec.Slug, domain.StageExpand, &sections, log) {
		startIdx = 1
	}
	if startIdx == 1 && !o.loadCached(rec.Slug, domain.StageOutline, &outline, log) {
		startIdx = 0
	}
	if startIdx != stageIndex(start) {
		log.Info("missing cached artifacts, moving resume point",
			"wanted", string(start), "actual", string(stageOrder[startIdx]))
	}

	for i := startIdx; i < len(stageOrder); i++ {
		stage := stageOrder[i]

		// Cancellation is honored at stage boundaries; in-flight calls
		// inside a stage run to completion.
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled between stages", "next_stage", string(stage))
			return rec, err
		}

		if rec.Status != stage.RunningStatus() {
			if err := o.registry.UpdateStatus(ctx, rec.Slug, stage.RunningStatus(), ""); err != nil {
				// An invalid transition means another worker advanced this
				// slug underneath us. That is a bug, not a domain failure.
				return rec, fmt.Errorf("enter stage %s: %w", stage, err)
			}
			rec.Status = stage.RunningStatus()
		}
		log.Info("stage started", "stage", string(stage))

		var stageErr error
		switch stage {
		case domain.StageOutline:
			outline, stageErr = o.stages.Outline(ctx, rec.Slug, rec.Keywords)
			o.cacheArtifact(rec.Slug, stage, outline, stageErr, log)
		case domain.StageExpand:
			sections, stageErr = o.stages.Expand(ctx, outline)
			o.cacheArtifact(rec.Slug, stage, sections, stageErr, log)
		case domain.StageEnrich:
			enriched, stageErr = o.stages.Enrich(ctx, sections)
			o.cacheArtifact(rec.Slug, stage, enriched, stageErr, log)
		case domain.StagePolish:
			var doc domain.Document
			doc, stageErr = o.stages.Polish(ctx, enriched)
			if stageErr == nil {
				stageErr = o.publish(ctx, &rec, doc, log)
				if stageErr == nil {
					return o.refresh(ctx, rec)
				}
			}
		}

		if stageErr != nil {
			return o.fail(ctx, rec, stage, stageErr, log)
		}
		log.Info("stage completed", "stage", string(stage))
	}

	return o.refresh(ctx, rec)
}

// publish writes the final document and flips the record to published.
func (o *Orchestrator) publish(ctx context.Context, rec *domain.NicheRecord, doc domain.Document, log *slog.Logger) error {
	path, err := o.sink.WriteDocument(ctx, rec.Slug, doc)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if err := o.registry.UpdateStatus(ctx, rec.Slug, domain.StatusPublished, ""); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	rec.Status = domain.StatusPublished
	log.Info("niche published", "path", path)

	if o.notifier != nil {
		if err := o.notifier.NotifyPublished(ctx, *rec, path); err != nil {
			log.Warn("publish notification failed", "error", err)
		}
	}
	return nil
}

// fail records the failure as durable state. Generation errors become data
// (nil error to the caller); anything else still propagates after the
// record is marked.
func (o *Orchestrator) fail(ctx context.Context, rec domain.NicheRecord, stage domain.Stage, stageErr error, log *slog.Logger) (domain.NicheRecord, error) {
	if errors.Is(stageErr, context.Canceled) || errors.Is(stageErr, context.DeadlineExceeded) {
		// Leave the mid-pipeline status in place so the run can resume.
		log.Info("stage cancelled", "stage", string(stage))
		return rec, stageErr
	}

	log.Error("stage failed", "stage", string(stage), "error", stageErr)
	if err := o.registry.UpdateStatus(ctx, rec.Slug, domain.StatusFailed, stageErr.Error()); err != nil {
		return rec, fmt.Errorf("mark failed: %w", err)
	}

	rec, err := o.registry.Get(ctx, rec.Slug)
	if err != nil {
		return rec, err
	}

	var ge *domain.GenerationError
	if errors.As(stageErr, &ge) {
		return rec, nil
	}
	return rec, stageErr
}

func (o *Orchestrator) refresh(ctx context.Context, rec domain.NicheRecord) (domain.NicheRecord, error) {
	fresh, err := o.registry.Get(ctx, rec.Slug)
	if err != nil {
		return rec, err
	}
	return fresh, nil
}

func (o *Orchestrator) loadCached(slug string, stage domain.Stage, into any, log *slog.Logger) bool {
	if o.cache == nil {
		return false
	}
	ok, err := o.cache.Get(slug, stage, into)
	if err != nil {
		log.Warn("artifact cache read failed", "stage", string(stage), "error", err)
		return false
	}
	return ok
}

func (o *Orchestrator) cacheArtifact(slug string, stage domain.Stage, artifact any, stageErr error, log *slog.Logger) {
	if o.cache == nil || stageErr != nil {
		return
	}
	if err := o.cache.Put(slug, stage, artifact); err != nil {
		log.Warn("artifact cache write failed", "stage", string(stage), "error", err)
	}
}

func (o *Orchestrator) componentLog(slug string) *slog.Logger {
	if o.logger != nil {
		return o.logger.With("slug", slug)
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stageIndex(stage domain.Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return 0
}
