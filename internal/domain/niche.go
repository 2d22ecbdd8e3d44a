package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status enumerates the niche lifecycle states.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusOutlining Status = "outlining"
	StatusExpanding Status = "expanding"
	StatusEnriching Status = "enriching"
	StatusPolishing Status = "polishing"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// NicheRecord is the core entity tracked by the registry; one record per
// topic cluster, never deleted once created.
type NicheRecord struct {
	Slug      string
	Keywords  []string
	Status    Status
	SiteURL   string
	CreatedAt time.Time
	UpdatedAt time.Time
	LastError string
}

var slugExpr = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NormalizeSlug trims and lowercases a raw slug before validation.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidSlug reports whether the slug is non-empty and URL-safe.
func ValidSlug(slug string) bool {
	return slugExpr.MatchString(slug)
}

// TitleFromSlug converts "pickleball-shoes" into "Pickleball Shoes".
func TitleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ValidateRegistration checks the register inputs: slug must be URL-safe,
// keywords non-empty with no blank entries.
func ValidateRegistration(slug string, keywords []string) error {
	if !ValidSlug(slug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	if len(keywords) == 0 {
		return fmt.Errorf("%w: at least one seed keyword required", ErrInvalidKeywords)
	}
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("%w: blank keyword", ErrInvalidKeywords)
		}
	}
	return nil
}

// Terminal reports whether no automatic transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// nextStatus maps each pipeline state to its successor on stage completion.
var nextStatus = map[Status]Status{
	StatusPlanned:   StatusOutlining,
	StatusOutlining: StatusExpanding,
	StatusExpanding: StatusEnriching,
	StatusEnriching: StatusPolishing,
	StatusPolishing: StatusPublished,
}

// Next returns the successor status in the pipeline order, or false for
// terminal states.
func (s Status) Next() (Status, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// CanTransition reports whether the state machine allows from -> to.
// Any non-terminal state may move to failed; failed may only be reset to
// planned (the manual-retry edge); published is terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusPublished:
		return false
	case StatusFailed:
		return to == StatusPlanned
	}
	if to == StatusFailed {
		return true
	}
	return nextStatus[from] == to
}
