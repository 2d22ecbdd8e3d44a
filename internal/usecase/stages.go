package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

const sectionPlaceholder = "_Content for this section is being prepared._"

// StageDeps wires the driven adapters used by the stage executors.
type StageDeps struct {
	Generator ports.Generator
	Images    ports.ImageSource
	Citations ports.CitationResolver
	Logger    *slog.Logger

	MaxAttempts         int
	RetryBackoff        time.Duration
	PlaceholderSections bool
}

// Stages holds the four ordered executors of the generation pipeline.
// Each executor is a pure transformation of the prior artifact; retry of
// transient generation failures happens inside the executor.
type Stages struct {
	generator ports.Generator
	images    ports.ImageSource
	citations ports.CitationResolver
	logger    *slog.Logger

	maxAttempts  int
	retryBackoff time.Duration
	placeholders bool
}

// NewStages constructs the stage executors.
func NewStages(deps StageDeps) *Stages {
	attempts := deps.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := deps.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Stages{
		generator:    deps.Generator,
		images:       deps.Images,
		citations:    deps.Citations,
		logger:       deps.Logger,
		maxAttempts:  attempts,
		retryBackoff: backoff,
		placeholders: deps.PlaceholderSections,
	}
}

// Outline turns seed keywords into an ordered section plan. A reply that is
// not valid JSON degrades to a single-section outline rather than failing;
// an empty reply or call failure is a GenerationError.
func (s *Stages) Outline(ctx context.Context, slug string, keywords []string) (domain.Outline, error) {
	prompt := fmt.Sprintf("%s\n\nniche: %s\nkeywords: %s",
		outlinePrompt, slug, strings.Join(keywords, ", "))

	reply, err := s.generate(ctx, domain.StageOutline, ports.GenerateRequest{
		System: outlineSystem,
		Prompt: prompt,
	})
	if err != nil {
		return domain.Outline{}, err
	}

	var outline domain.Outline
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &outline); err != nil {
		s.warn("outline reply is not valid JSON, using fallback outline", "slug", slug, "error", err)
		outline = domain.Outline{
			Sections: []domain.SectionPlan{{Title: "Introduction"}},
		}
	}
	if len(outline.Sections) == 0 {
		outline.Sections = []domain.SectionPlan{{Title: "Introduction"}}
	}
	outline.NicheSlug = slug

	return outline, nil
}

// Expand generates one body per outline section. Sections run concurrently;
// assembly restores outline order regardless of completion order. A section
// whose generation fails permanently either fails the stage or, with the
// placeholder policy enabled, is published with a placeholder body.
func (s *Stages) Expand(ctx context.Context, outline domain.Outline) (domain.Sections, error) {
	type result struct {
		body string
		err  error
	}

	results := make([]result, len(outline.Sections))
	var wg sync.WaitGroup
	for i, plan := range outline.Sections {
		wg.Add(1)
		go func(i int, plan domain.SectionPlan) {
			defer wg.Done()
			body, err := s.expandSection(ctx, plan, outline.Products)
			results[i] = result{body: body, err: err}
		}(i, plan)
	}
	wg.Wait()

	sections := domain.Sections{
		NicheSlug: outline.NicheSlug,
		Outline:   outline,
		Items:     make([]domain.Section, len(outline.Sections)),
	}
	for i, plan := range outline.Sections {
		res := results[i]
		if res.err != nil {
			if !s.placeholders {
				return domain.Sections{}, res.err
			}
			s.warn("section generation failed, inserting placeholder",
				"slug", outline.NicheSlug, "section", plan.Title, "error", res.err)
			res.body = sectionPlaceholder
		}
		sections.Items[i] = domain.Section{
			Index:   i,
			Heading: plan.Title,
			Body:    res.body,
		}
	}

	return sections, nil
}

func (s *Stages) expandSection(ctx context.Context, plan domain.SectionPlan, products []string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"title":         plan.Title,
		"intent":        plan.Intent,
		"bullet_points": plan.Bullets,
		"products":      products,
	})
	if err != nil {
		return "", domain.NewGenerationError(domain.StageExpand, false, fmt.Errorf("marshal section payload: %w", err))
	}

	return s.generate(ctx, domain.StageExpand, ports.GenerateRequest{
		System: sectionSystem,
		Prompt: sectionPrompt + "\n\n" + string(payload),
	})
}

// Enrich annotates sections with statistics, resolved citations and images.
// Every failure here is soft: the section keeps its unenriched body and a
// warning is logged, because content without enrichment is still publishable.
func (s *Stages) Enrich(ctx context.Context, sections domain.Sections) (domain.Enriched, error) {
	enriched := domain.Enriched{
		NicheSlug: sections.NicheSlug,
		Outline:   sections.Outline,
		Items:     make([]domain.EnrichedSection, len(sections.Items)),
	}
	for i, sec := range sections.Items {
		enriched.Items[i] = domain.EnrichedSection{Section: sec}
	}

	s.applyAnnotations(ctx, &enriched)
	s.attachImages(ctx, &enriched)

	return enriched, nil
}

func (s *Stages) applyAnnotations(ctx context.Context, enriched *domain.Enriched) {
	payload, err := json.Marshal(enriched.Items)
	if err != nil {
		s.warn("marshal sections for enrichment", "slug", enriched.NicheSlug, "error", err)
		return
	}

	reply, err := s.generate(ctx, domain.StageEnrich, ports.GenerateRequest{
		System: enrichSystem,
		Prompt: enrichPrompt + "\n\n" + string(payload),
	})
	if err != nil {
		s.warn("enrichment call failed, publishing unenriched sections",
			"slug", enriched.NicheSlug, "error", err)
		return
	}

	var annotations []struct {
		Index        int      `json:"index"`
		Stats        []string `json:"stats"`
		CitationURLs []string `json:"citation_urls"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &annotations); err != nil {
		s.warn("enrichment reply is not valid JSON, publishing unenriched sections",
			"slug", enriched.NicheSlug, "error", err)
		return
	}

	for _, ann := range annotations {
		if ann.Index < 0 || ann.Index >= len(enriched.Items) {
			continue
		}
		item := &enriched.Items[ann.Index]
		item.Stats = ann.Stats
		for _, rawURL := range ann.CitationURLs {
			item.Citations = append(item.Citations, s.resolveCitation(ctx, enriched.NicheSlug, rawURL))
		}
	}
}

func (s *Stages) resolveCitation(ctx context.Context, slug, rawURL string) domain.Citation {
	if s.citations == nil {
		return domain.Citation{URL: rawURL}
	}
	cit, err := s.citations.Resolve(ctx, rawURL)
	if err != nil {
		s.warn("citation resolution failed, keeping bare URL", "slug", slug, "url", rawURL, "error", err)
		return domain.Citation{URL: rawURL}
	}
	return cit
}

func (s *Stages) attachImages(ctx context.Context, enriched *domain.Enriched) {
	if s.images == nil {
		return
	}
	for i := range enriched.Items {
		item := &enriched.Items[i]
		query := domain.TitleFromSlug(enriched.NicheSlug) + " " + item.Heading
		ref, err := s.images.Search(ctx, query)
		if err != nil {
			if !errors.Is(err, domain.ErrNoImage) {
				s.warn("image lookup failed", "slug", enriched.NicheSlug, "section", item.Heading, "error", err)
			}
			continue
		}
		item.Image = &ref
	}
}

// Polish merges the enriched sections into the final document and runs one
// editing pass over it. Any polishing failure falls back to the unpolished
// document; degraded prose never blocks publication.
func (s *Stages) Polish(ctx context.Context, enriched domain.Enriched) (domain.Document, error) {
	merged := assembleDocument(enriched)

	reply, err := s.generate(ctx, domain.StagePolish, ports.GenerateRequest{
		System: polishSystem,
		Prompt: polishPrompt + "\n\n" + merged,
	})
	if err != nil {
		s.warn("polish call failed, publishing unpolished document",
			"slug", enriched.NicheSlug, "error", err)
		reply = merged
	}

	return domain.Document{NicheSlug: enriched.NicheSlug, Markdown: reply}, nil
}

// generate runs one generation call with bounded retry of transient
// failures. Exhausted retries escalate to a permanent stage error.
func (s *Stages) generate(ctx context.Context, stage domain.Stage, req ports.GenerateRequest) (string, error) {
	if s.generator == nil {
		return "", domain.NewGenerationError(stage, false, errors.New("no generator configured"))
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		reply, err := s.generator.Generate(ctx, req)
		if err == nil {
			if strings.TrimSpace(reply) == "" {
				return "", domain.NewGenerationError(stage, false, errors.New("empty completion"))
			}
			return reply, nil
		}

		err = tagStage(err, stage)
		if !domain.IsTransient(err) {
			return "", err
		}
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}
		s.warn("transient generation failure, backing off",
			"stage", string(stage), "attempt", attempt, "error", err)
		if err := sleepCtx(ctx, s.retryBackoff<<(attempt-1)); err != nil {
			return "", domain.NewGenerationError(stage, false, err)
		}
	}

	return "", domain.NewGenerationError(stage, false,
		fmt.Errorf("retries exhausted after %d attempts: %w", s.maxAttempts, lastErr))
}

// tagStage stamps the failing stage onto a generation error, wrapping
// foreign errors as permanent. The original error is never mutated: a
// generator may hand the same error value to concurrent section calls.
func tagStage(err error, stage domain.Stage) error {
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		if ge.Stage != "" {
			return err
		}
		tagged := *ge
		tagged.Stage = stage
		return &tagged
	}
	return domain.NewGenerationError(stage, false, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stripCodeFence unwraps replies the model wrapped in a ``` block.
func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func (s *Stages) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
