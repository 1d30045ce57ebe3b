package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
)

// KnowledgeRepository は core/knowledge.Repository を実装する PostgreSQL リポジトリ。
type KnowledgeRepository struct {
	db *DB
}

// NewKnowledgeRepository は新しい KnowledgeRepository を返す。
func NewKnowledgeRepository(db *DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

var _ knowledge.Repository = (*KnowledgeRepository)(nil)

const sourceColumns = `id, name, description, file_path, is_enabled, created_at, updated_at`

func scanSource(row pgx.Row) (*knowledge.Source, error) {
	var s knowledge.Source
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.FilePath, &s.IsEnabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *KnowledgeRepository) GetSourceByID(ctx context.Context, id string) (mo.Option[*knowledge.Source], error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_base_sources WHERE id = $1`,
		id,
	)

	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*knowledge.Source](), nil
		}
		return mo.None[*knowledge.Source](), fmt.Errorf("failed to get source: %w", err)
	}
	return mo.Some(source), nil
}

func (r *KnowledgeRepository) ListEnabledSources(ctx context.Context) ([]*knowledge.Source, error) {
	return r.listSources(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_base_sources WHERE is_enabled ORDER BY id`,
	)
}

func (r *KnowledgeRepository) ListSources(ctx context.Context) ([]*knowledge.Source, error) {
	return r.listSources(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_base_sources ORDER BY id`,
	)
}

func (r *KnowledgeRepository) listSources(ctx context.Context, query string) ([]*knowledge.Source, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*knowledge.Source, 0)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

func (r *KnowledgeRepository) CreateSourceIfNotExists(ctx context.Context, source *knowledge.Source) (*knowledge.Source, error) {
	row := r.db.Pool.QueryRow(ctx, `
		INSERT INTO knowledge_base_sources (id, name, description, file_path, is_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET id = knowledge_base_sources.id
		RETURNING `+sourceColumns,
		source.ID, source.Name, source.Description, source.FilePath, source.IsEnabled,
	)

	created, err := scanSource(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	return created, nil
}

func (r *KnowledgeRepository) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE knowledge_base_sources SET is_enabled = $2, updated_at = now() WHERE id = $1`,
		id, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}

func (r *KnowledgeRepository) UpsertChunk(ctx context.Context, chunk *knowledge.Chunk) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO knowledge_base_embeddings (id, content_id, title, content, source, token_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (content_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		uuid.New(),
		chunk.ContentID,
		chunk.Title,
		chunk.Content,
		chunk.Source,
		chunk.TokenCount,
		pgvector.NewVector(chunk.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) CountChunksBySource(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM knowledge_base_embeddings WHERE source = $1`,
		source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
