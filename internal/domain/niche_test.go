package domain

import (
	"errors"
	"testing"
)

func TestValidSlug(t *testing.T) {
	t.Parallel()

	valid := []string{"pickleball-shoes", "a", "best-4k-tvs", "x1-y2-z3"}
	for _, slug := range valid {
		if !ValidSlug(slug) {
			t.Errorf("expected %q to be valid", slug)
		}
	}

	invalid := []string{"", " ", "Pickleball-Shoes", "-leading", "trailing-", "double--dash", "spa ce", "slash/slug", "ünïcode"}
	for _, slug := range invalid {
		if ValidSlug(slug) {
			t.Errorf("expected %q to be invalid", slug)
		}
	}
}

func TestNormalizeSlug(t *testing.T) {
	t.Parallel()

	if got := NormalizeSlug("  Pickleball-Shoes "); got != "pickleball-shoes" {
		t.Fatalf("unexpected normalized slug: %q", got)
	}
}

func TestTitleFromSlug(t *testing.T) {
	t.Parallel()

	if got := TitleFromSlug("pickleball-shoes"); got != "Pickleball Shoes" {
		t.Fatalf("unexpected title: %q", got)
	}
	if got := TitleFromSlug("best-4k-tvs"); got != "Best 4k Tvs" {
		t.Fatalf("unexpected title: %q", got)
	}
}

func TestValidateRegistration(t *testing.T) {
	t.Parallel()

	if err := ValidateRegistration("pickleball-shoes", []string{"court shoes"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ValidateRegistration("Bad Slug", []string{"kw"}); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
	if err := ValidateRegistration("good-slug", nil); !errors.Is(err, ErrInvalidKeywords) {
		t.Fatalf("expected ErrInvalidKeywords, got %v", err)
	}
	if err := ValidateRegistration("good-slug", []string{"ok", "  "}); !errors.Is(err, ErrInvalidKeywords) {
		t.Fatalf("expected ErrInvalidKeywords for blank keyword, got %v", err)
	}
}

func TestStatusNextChain(t *testing.T) {
	t.Parallel()

	order := []Status{StatusPlanned, StatusOutlining, StatusExpanding, StatusEnriching, StatusPolishing, StatusPublished}
	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		if !ok || next != order[i+1] {
			t.Fatalf("expected %s -> %s, got %s (ok=%v)", order[i], order[i+1], next, ok)
		}
	}

	if _, ok := StatusPublished.Next(); ok {
		t.Fatal("published must have no successor")
	}
	if _, ok := StatusFailed.Next(); ok {
		t.Fatal("failed must have no successor")
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := [][2]Status{
		{StatusPlanned, StatusOutlining},
		{StatusOutlining, StatusExpanding},
		{StatusExpanding, StatusEnriching},
		{StatusEnriching, StatusPolishing},
		{StatusPolishing, StatusPublished},
		{StatusPlanned, StatusFailed},
		{StatusOutlining, StatusFailed},
		{StatusExpanding, StatusFailed},
		{StatusEnriching, StatusFailed},
		{StatusPolishing, StatusFailed},
		{StatusFailed, StatusPlanned},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	forbidden := [][2]Status{
		{StatusPlanned, StatusExpanding},
		{StatusPlanned, StatusPublished},
		{StatusOutlining, StatusOutlining},
		{StatusPublished, StatusPlanned},
		{StatusPublished, StatusFailed},
		{StatusFailed, StatusOutlining},
		{StatusFailed, StatusFailed},
		{StatusExpanding, StatusOutlining},
	}
	for _, pair := range forbidden {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be forbidden", pair[0], pair[1])
		}
	}
}

func TestStageForStatus(t *testing.T) {
	t.Parallel()

	cases := map[Status]Stage{
		StatusPlanned:   StageOutline,
		StatusOutlining: StageOutline,
		StatusExpanding: StageExpand,
		StatusEnriching: StageEnrich,
		StatusPolishing: StagePolish,
	}
	for status, want := range cases {
		got, ok := StageForStatus(status)
		if !ok || got != want {
			t.Errorf("StageForStatus(%s) = %s (ok=%v), want %s", status, got, ok, want)
		}
	}

	for _, status := range []Status{StatusPublished, StatusFailed} {
		if _, ok := StageForStatus(status); ok {
			t.Errorf("expected no stage for terminal status %s", status)
		}
	}
}

func TestGenerationError(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := NewGenerationError(StageOutline, true, inner)

	if !IsTransient(err) {
		t.Fatal("expected transient")
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected unwrap to reach inner error")
	}

	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Stage != StageOutline {
		t.Fatalf("expected outline stage, got %+v", ge)
	}

	perm := NewGenerationError(StagePolish, false, inner)
	if IsTransient(perm) {
		t.Fatal("expected permanent")
	}
}
