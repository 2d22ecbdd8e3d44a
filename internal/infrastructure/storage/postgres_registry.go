package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// PostgresRegistry persists niche records into Postgres.
//
// Expected schema:
//
//	CREATE TABLE niches (
//	    slug       TEXT PRIMARY KEY,
//	    keywords   TEXT[] NOT NULL,
//	    site_url   TEXT NOT NULL DEFAULT '',
//	    status     TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    last_error TEXT NOT NULL DEFAULT ''
//	);
type PostgresRegistry struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.NicheRegistry = (*PostgresRegistry)(nil)

// NewPostgresRegistry wires a sql.DB implementation.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const nicheColumns = "slug, keywords, site_url, status, created_at, updated_at, last_error"

// Register inserts a planned niche; an existing slug is returned untouched.
// ON CONFLICT DO NOTHING keeps the insert idempotent under concurrent calls.
func (r *PostgresRegistry) Register(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, bool, error) {
	slug = domain.NormalizeSlug(slug)
	if err := domain.ValidateRegistration(slug, keywords); err != nil {
		return domain.NicheRecord{}, false, err
	}

	query, args, err := r.sb.Insert("niches").
		Columns("slug", "keywords", "status").
		Values(slug, pq.StringArray(keywords), string(domain.StatusPlanned)).
		Suffix("ON CONFLICT (slug) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.NicheRecord{}, false, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.NicheRecord{}, false, fmt.Errorf("insert niche: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return domain.NicheRecord{}, false, fmt.Errorf("rows affected: %w", err)
	}

	rec, err := r.Get(ctx, slug)
	if err != nil {
		return domain.NicheRecord{}, false, err
	}
	return rec, inserted == 1, nil
}

// Get returns the record or domain.ErrNotFound.
func (r *PostgresRegistry) Get(ctx context.Context, slug string) (domain.NicheRecord, error) {
	query, args, err := r.sb.Select(nicheColumns).
		From("niches").
		Where(sq.Eq{"slug": domain.NormalizeSlug(slug)}).
		ToSql()
	if err != nil {
		return domain.NicheRecord{}, fmt.Errorf("build select: %w", err)
	}

	rec, err := scanNiche(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NicheRecord{}, fmt.Errorf("%w: %s", domain.ErrNotFound, slug)
	}
	if err != nil {
		return domain.NicheRecord{}, fmt.Errorf("select niche: %w", err)
	}
	return rec, nil
}

// UpdateStatus performs a compare-and-set conditioned on the set of states
// the target is reachable from, so two concurrent runs cannot both advance
// the same niche.
func (r *PostgresRegistry) UpdateStatus(ctx context.Context, slug string, next domain.Status, lastError string) error {
	slug = domain.NormalizeSlug(slug)

	if next != domain.StatusFailed {
		lastError = ""
	}

	from := reachableFrom(next)
	query, args, err := r.sb.Update("niches").
		Set("status", string(next)).
		Set("last_error", lastError).
		Set("updated_at", sq.Expr("GREATEST(updated_at, NOW())")).
		Where(sq.Eq{"slug": slug, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	cur, err := r.Get(ctx, slug)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s for %s", domain.ErrInvalidTransition, cur.Status, next, slug)
}

// List returns records ordered by creation time ascending.
func (r *PostgresRegistry) List(ctx context.Context, filter *domain.Status) ([]domain.NicheRecord, error) {
	builder := r.sb.Select(nicheColumns).
		From("niches").
		OrderBy("created_at ASC")
	if filter != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list niches: %w", err)
	}
	defer rows.Close()

	var out []domain.NicheRecord
	for rows.Next() {
		rec, err := scanNiche(rows)
		if err != nil {
			return nil, fmt.Errorf("scan niche: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNiche(row rowScanner) (domain.NicheRecord, error) {
	var (
		rec      domain.NicheRecord
		keywords pq.StringArray
		status   string
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&rec.Slug, &keywords, &rec.SiteURL, &status, &created, &updated, &rec.LastError); err != nil {
		return domain.NicheRecord{}, err
	}
	rec.Keywords = []string(keywords)
	rec.Status = domain.Status(status)
	rec.CreatedAt = created.UTC()
	rec.UpdatedAt = updated.UTC()
	return rec, nil
}

// reachableFrom lists every status from which `next` is a legal transition.
func reachableFrom(next domain.Status) []string {
	all := []domain.Status{
		domain.StatusPlanned,
		domain.StatusOutlining,
		domain.StatusExpanding,
		domain.StatusEnriching,
		domain.StatusPolishing,
		domain.StatusPublished,
		domain.StatusFailed,
	}
	var from []string
	for _, s := range all {
		if domain.CanTransition(s, next) {
			from = append(from, string(s))
		}
	}
	return from
}
