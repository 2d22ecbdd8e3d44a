package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// Memory is a mutex-guarded in-process registry. It backs tests and
// DSN-less runs; the Postgres implementation is the durable one.
type Memory struct {
	mu      sync.Mutex
	records map[string]*domain.NicheRecord
	now     func() time.Time
}

var _ ports.NicheRegistry = (*Memory)(nil)

// NewMemory builds an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		records: map[string]*domain.NicheRecord{},
		now:     time.Now,
	}
}

// Register inserts a planned niche or returns the existing record untouched.
func (m *Memory) Register(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, bool, error) {
	slug = domain.NormalizeSlug(slug)
	if err := domain.ValidateRegistration(slug, keywords); err != nil {
		return domain.NicheRecord{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[slug]; ok {
		return *existing, false, nil
	}

	now := m.now().UTC()
	rec := &domain.NicheRecord{
		Slug:      slug,
		Keywords:  append([]string(nil), keywords...),
		Status:    domain.StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[slug] = rec
	return *rec, true, nil
}

// Get returns a copy of the record or domain.ErrNotFound.
func (m *Memory) Get(ctx context.Context, slug string) (domain.NicheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[domain.NormalizeSlug(slug)]
	if !ok {
		return domain.NicheRecord{}, fmt.Errorf("%w: %s", domain.ErrNotFound, slug)
	}
	return *rec, nil
}

// UpdateStatus moves a niche along the state machine under the lock, so
// concurrent runs cannot advance the same slug past each other.
func (m *Memory) UpdateStatus(ctx context.Context, slug string, next domain.Status, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[domain.NormalizeSlug(slug)]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, slug)
	}
	if !domain.CanTransition(rec.Status, next) {
		return fmt.Errorf("%w: %s -> %s for %s", domain.ErrInvalidTransition, rec.Status, next, slug)
	}

	rec.Status = next
	if next == domain.StatusFailed {
		rec.LastError = lastError
	} else {
		rec.LastError = ""
	}

	now := m.now().UTC()
	if now.After(rec.UpdatedAt) {
		rec.UpdatedAt = now
	}
	return nil
}

// List returns records ordered by creation time ascending.
func (m *Memory) List(ctx context.Context, filter *domain.Status) ([]domain.NicheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NicheRecord, 0, len(m.records))
	for _, rec := range m.records {
		if filter != nil && rec.Status != *filter {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Slug < out[j].Slug
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
