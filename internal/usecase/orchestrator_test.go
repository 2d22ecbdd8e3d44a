package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NichePress/internal/domain"
	"NichePress/internal/infrastructure/artifacts"
	"NichePress/internal/infrastructure/sitewriter"
	"NichePress/internal/registry"
)

type testHarness struct {
	orchestrator *Orchestrator
	registry     *registry.Memory
	generator    *fakeGenerator
	sitesDir     string
}

func newHarness(t *testing.T, gen *fakeGenerator) *testHarness {
	t.Helper()

	reg := registry.NewMemory()
	sitesDir := t.TempDir()
	orchestrator := NewOrchestrator(OrchestratorDeps{
		Registry: reg,
		Stages: NewStages(StageDeps{
			Generator:           gen,
			MaxAttempts:         1,
			RetryBackoff:        time.Millisecond,
			PlaceholderSections: true,
		}),
		Sink:  sitewriter.NewMarkdownWriter(sitesDir),
		Cache: artifacts.NewFileCache(t.TempDir()),
	})
	return &testHarness{
		orchestrator: orchestrator,
		registry:     reg,
		generator:    gen,
		sitesDir:     sitesDir,
	}
}

func (h *testHarness) document(t *testing.T, slug string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.sitesDir, slug, "index.md"))
	if err != nil {
		t.Fatalf("read published document: %v", err)
	}
	return string(data)
}

func outlineReply() (string, error) {
	return `{
		"sections": [
			{"title": "Why Court Shoes Matter"},
			{"title": "Top Picks"},
			{"title": "Buying Guide"}
		],
		"faqs": ["Can I use running shoes?"],
		"products": ["Court Flyer 2"]
	}`, nil
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: outlineReply}
	gen.onSection = func(prompt string) (string, error) {
		title := sectionTitle(prompt)
		// Completion order deliberately inverted relative to the outline.
		switch title {
		case "Why Court Shoes Matter":
			time.Sleep(30 * time.Millisecond)
		case "Top Picks":
			time.Sleep(15 * time.Millisecond)
		}
		return "Body for " + title + ".", nil
	}
	h := newHarness(t, gen)

	rec, err := h.orchestrator.Process(context.Background(), "pickleball-shoes", []string{"pickleball shoes", "best court shoes"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if rec.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s (%s)", rec.Status, rec.LastError)
	}

	doc := h.document(t, "pickleball-shoes")

	if got := strings.Count(doc, "Disclosure"); got != 1 {
		t.Fatalf("expected exactly one disclosure block, got %d", got)
	}

	first := strings.Index(doc, "## Why Court Shoes Matter")
	second := strings.Index(doc, "## Top Picks")
	third := strings.Index(doc, "## Buying Guide")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Fatalf("sections out of outline order:\n%s", doc)
	}
	if !strings.Contains(doc, "Body for Top Picks.") {
		t.Fatalf("section body missing:\n%s", doc)
	}
	if !strings.Contains(doc, "Can I use running shoes?") {
		t.Fatalf("FAQ block missing:\n%s", doc)
	}
}

func TestProcessOutlineFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: func() (string, error) {
		return "", domain.NewGenerationError("", false, errors.New("invalid api key"))
	}}
	h := newHarness(t, gen)

	rec, err := h.orchestrator.Process(context.Background(), "doomed-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("generation failures are data, not errors: %v", err)
	}
	if rec.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if !strings.Contains(rec.LastError, "outline") {
		t.Fatalf("last_error should mention the failing stage: %q", rec.LastError)
	}

	if _, err := os.Stat(filepath.Join(h.sitesDir, "doomed-niche")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no output must be written for a failed niche, stat err: %v", err)
	}
}

func TestProcessPublishedIsNoOp(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: outlineReply}
	h := newHarness(t, gen)
	ctx := context.Background()

	first, err := h.orchestrator.Process(ctx, "done-niche", []string{"kw one"})
	if err != nil || first.Status != domain.StatusPublished {
		t.Fatalf("setup run failed: %v %s", err, first.Status)
	}
	callsAfterFirst := len(gen.calls)

	// Re-registration with different keywords: same record, no new calls.
	second, err := h.orchestrator.Process(ctx, "done-niche", []string{"other keywords"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if second.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", second.Status)
	}
	if len(second.Keywords) != 1 || second.Keywords[0] != "kw one" {
		t.Fatalf("keywords overwritten on re-registration: %v", second.Keywords)
	}
	if len(gen.calls) != callsAfterFirst {
		t.Fatalf("published niche must not trigger generation, calls %d -> %d", callsAfterFirst, len(gen.calls))
	}
}

func TestProcessFailedWaitsForManualRetry(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: func() (string, error) {
		return "", domain.NewGenerationError("", false, errors.New("nope"))
	}}
	h := newHarness(t, gen)
	ctx := context.Background()

	if _, err := h.orchestrator.Process(ctx, "stuck-niche", []string{"kw"}); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	callsAfterFailure := len(gen.calls)

	// No automatic transition leaves failed: processing again is a no-op.
	rec, err := h.orchestrator.Process(ctx, "stuck-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if rec.Status != domain.StatusFailed || len(gen.calls) != callsAfterFailure {
		t.Fatalf("failed niche must wait for manual retry, got %s with %d calls", rec.Status, len(gen.calls))
	}
}

func TestRetryRestartsAtStageOne(t *testing.T) {
	t.Parallel()

	failing := true
	gen := &fakeGenerator{onOutline: func() (string, error) {
		if failing {
			return "", domain.NewGenerationError("", false, errors.New("flaky upstream"))
		}
		return outlineReply()
	}}
	h := newHarness(t, gen)
	ctx := context.Background()

	if _, err := h.orchestrator.Process(ctx, "retry-niche", []string{"kw"}); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	rec, err := h.orchestrator.Retry(ctx, "retry-niche")
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if rec.Status != domain.StatusPlanned || rec.LastError != "" {
		t.Fatalf("expected clean planned record, got %s %q", rec.Status, rec.LastError)
	}

	// The rerun re-enters at the outline stage, not at the failed stage.
	outlineCallsBefore := gen.callCount(outlineSystem)
	failing = false
	rec, err = h.orchestrator.Process(ctx, "retry-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("Process after retry error: %v", err)
	}
	if rec.Status != domain.StatusPublished {
		t.Fatalf("expected published after retry, got %s (%s)", rec.Status, rec.LastError)
	}
	if gen.callCount(outlineSystem) != outlineCallsBefore+1 {
		t.Fatal("retry must re-run the outline stage")
	}
}

func TestRetryRejectsNonFailedRecords(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: outlineReply}
	h := newHarness(t, gen)
	ctx := context.Background()

	if _, err := h.orchestrator.Process(ctx, "fine-niche", []string{"kw"}); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if _, err := h.orchestrator.Retry(ctx, "fine-niche"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition retrying a published niche, got %v", err)
	}
}

func TestProcessResumesFromCachedArtifacts(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: func() (string, error) {
		return "", domain.NewGenerationError("", false, errors.New("outline must not run on resume"))
	}}
	h := newHarness(t, gen)
	ctx := context.Background()

	// Simulate a run that crashed after the outline stage: registry says
	// expanding, the outline artifact is cached.
	h.registry.Register(ctx, "resumed-niche", []string{"kw"})
	h.registry.UpdateStatus(ctx, "resumed-niche", domain.StatusOutlining, "")
	h.registry.UpdateStatus(ctx, "resumed-niche", domain.StatusExpanding, "")

	outline := domain.Outline{
		NicheSlug: "resumed-niche",
		Sections:  []domain.SectionPlan{{Title: "Recovered Section"}},
	}
	if err := h.orchestrator.cache.Put("resumed-niche", domain.StageOutline, outline); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	rec, err := h.orchestrator.Process(ctx, "resumed-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if rec.Status != domain.StatusPublished {
		t.Fatalf("expected published after resume, got %s (%s)", rec.Status, rec.LastError)
	}
	if gen.callCount(outlineSystem) != 0 {
		t.Fatal("resume must not re-run the outline stage")
	}
	if !strings.Contains(h.document(t, "resumed-niche"), "## Recovered Section") {
		t.Fatal("resumed run lost the cached outline")
	}
}

func TestProcessResumesAtPolishWithOnlyEnrichArtifact(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: func() (string, error) {
		return "", domain.NewGenerationError("", false, errors.New("outline must not run on resume"))
	}}
	h := newHarness(t, gen)
	ctx := context.Background()

	// Crash just before polish: only the enrichment artifact survives.
	// Polish consumes that artifact alone, so the earlier caches being
	// gone must not drag the run back to expansion.
	h.registry.Register(ctx, "late-niche", []string{"kw"})
	for _, status := range []domain.Status{
		domain.StatusOutlining, domain.StatusExpanding,
		domain.StatusEnriching, domain.StatusPolishing,
	} {
		if err := h.registry.UpdateStatus(ctx, "late-niche", status, ""); err != nil {
			t.Fatalf("walk to %s: %v", status, err)
		}
	}

	enriched := domain.Enriched{
		NicheSlug: "late-niche",
		Outline: domain.Outline{
			NicheSlug: "late-niche",
			Sections:  []domain.SectionPlan{{Title: "Enriched Survivor"}},
			FAQs:      []string{"Is resume safe?"},
		},
		Items: []domain.EnrichedSection{{
			Section: domain.Section{Index: 0, Heading: "Enriched Survivor", Body: "Kept body."},
		}},
	}
	if err := h.orchestrator.cache.Put("late-niche", domain.StageEnrich, enriched); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	rec, err := h.orchestrator.Process(ctx, "late-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if rec.Status != domain.StatusPublished {
		t.Fatalf("expected published after resume, got %s (%s)", rec.Status, rec.LastError)
	}

	for _, system := range []string{outlineSystem, sectionSystem, enrichSystem} {
		if n := gen.callCount(system); n != 0 {
			t.Fatalf("resume at polish re-ran %q %d times", system, n)
		}
	}
	if gen.callCount(polishSystem) != 1 {
		t.Fatalf("expected one polish call, got %d", gen.callCount(polishSystem))
	}

	doc := h.document(t, "late-niche")
	if !strings.Contains(doc, "## Enriched Survivor") || !strings.Contains(doc, "Is resume safe?") {
		t.Fatalf("resumed run lost the cached enrichment:\n%s", doc)
	}
}

func TestProcessRestartsWhenCacheMissing(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: outlineReply}
	h := newHarness(t, gen)
	ctx := context.Background()

	// Registry says expanding but no artifact survives: fall back to outline.
	h.registry.Register(ctx, "cold-niche", []string{"kw"})
	h.registry.UpdateStatus(ctx, "cold-niche", domain.StatusOutlining, "")
	h.registry.UpdateStatus(ctx, "cold-niche", domain.StatusExpanding, "")

	rec, err := h.orchestrator.Process(ctx, "cold-niche", []string{"kw"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if rec.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s (%s)", rec.Status, rec.LastError)
	}
	if gen.callCount(outlineSystem) != 1 {
		t.Fatalf("expected outline re-run on cache miss, got %d calls", gen.callCount(outlineSystem))
	}
}

func TestProcessHonorsCancellationBetweenStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{onOutline: func() (string, error) {
		// Cancel while the outline stage is in flight; the next stage
		// boundary must observe it.
		cancel()
		return outlineReply()
	}}
	h := newHarness(t, gen)

	_, err := h.orchestrator.Process(ctx, "cancelled-niche", []string{"kw"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The record keeps its mid-pipeline status so a later run can resume.
	rec, getErr := h.registry.Get(context.Background(), "cancelled-niche")
	if getErr != nil {
		t.Fatalf("Get error: %v", getErr)
	}
	if rec.Status != domain.StatusOutlining {
		t.Fatalf("expected outlining preserved for resume, got %s", rec.Status)
	}
	if gen.callCount(sectionSystem) != 0 {
		t.Fatal("cancelled run must not start the next stage")
	}
}

func TestSweepProcessesPlannedNiches(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{onOutline: outlineReply}
	h := newHarness(t, gen)
	ctx := context.Background()

	h.registry.Register(ctx, "niche-one", []string{"kw"})
	h.registry.Register(ctx, "niche-two", []string{"kw"})

	if err := h.orchestrator.Sweep(ctx); err != nil {
		t.Fatalf("Sweep error: %v", err)
	}

	for _, slug := range []string{"niche-one", "niche-two"} {
		rec, err := h.registry.Get(ctx, slug)
		if err != nil {
			t.Fatalf("Get %s: %v", slug, err)
		}
		if rec.Status != domain.StatusPublished {
			t.Fatalf("expected %s published after sweep, got %s (%s)", slug, rec.Status, rec.LastError)
		}
	}
}

func TestProcessRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeGenerator{})
	ctx := context.Background()

	if _, err := h.orchestrator.Process(ctx, "Bad Slug!", []string{"kw"}); !errors.Is(err, domain.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
	if _, err := h.orchestrator.Process(ctx, "fine-slug", nil); !errors.Is(err, domain.ErrInvalidKeywords) {
		t.Fatalf("expected ErrInvalidKeywords, got %v", err)
	}
}
