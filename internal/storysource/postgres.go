package storysource

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storyworld/internal/story"
)

const (
	getStoryQuery    = `SELECT document FROM stories WHERE id = $1`
	listStoriesQuery = `SELECT id, title FROM stories`
	upsertStoryQuery = `
INSERT INTO stories (id, title, document)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = NOW()`
)

// Postgres reads story graphs from the stories table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Source = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed source.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{
		pool:   pool,
		logger: logger.Named("PgStorySource"),
	}
}

func (p *Postgres) Get(ctx context.Context, id string) (*story.Graph, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, getStoryQuery, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", story.ErrStoryNotFound, id)
		}
		p.logger.Error("Failed to query story", zap.String("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("%w: query story %q: %w", story.ErrLoadTransport, id, err)
	}

	g, err := story.DecodeGraph(id, raw, story.FormatJSON)
	if err != nil {
		p.logger.Error("Stored story document is malformed", zap.String("storyID", id), zap.Error(err))
		return nil, err
	}
	return g, nil
}

func (p *Postgres) List(ctx context.Context) ([]story.Summary, error) {
	var out []story.Summary
	if err := pgxscan.Select(ctx, p.pool, &out, listStoriesQuery); err != nil {
		p.logger.Error("Failed to list stories", zap.Error(err))
		return nil, fmt.Errorf("%w: list stories: %w", story.ErrLoadTransport, err)
	}
	SortSummaries(out)
	return out, nil
}

// Save upserts the given graphs in one transaction.
func (p *Postgres) Save(ctx context.Context, graphs ...*story.Graph) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	for _, g := range graphs {
		doc, err := story.EncodeGraph(g)
		if err != nil {
			return fmt.Errorf("encode story %q: %w", g.ID(), err)
		}
		if _, err := tx.Exec(ctx, upsertStoryQuery, g.ID(), g.Title(), doc); err != nil {
			return fmt.Errorf("upsert story %q: %w", g.ID(), err)
		}
		p.logger.Debug("Story saved", zap.String("storyID", g.ID()), zap.Int("nodes", g.Len()))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
