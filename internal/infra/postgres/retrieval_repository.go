package postgres

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/eznarratives/protocol-kb/internal/core/retrieval"
)

// RetrievalRepository は core/retrieval.Repository を実装する PostgreSQL リポジトリ。
type RetrievalRepository struct {
	db *DB
}

// NewRetrievalRepository は新しい RetrievalRepository を返す。
func NewRetrievalRepository(db *DB) *RetrievalRepository {
	return &RetrievalRepository{db: db}
}

var _ retrieval.Repository = (*RetrievalRepository)(nil)

// MatchChunks はコサイン類似度が threshold を超えるチャンクを類似度の
// 降順で最大 limit 件返す。類似度が同値の場合は content_id の昇順で
// 安定した順序になる。
func (r *RetrievalRepository) MatchChunks(ctx context.Context, embedding []float32, sources []string, threshold float64, limit int) ([]*retrieval.Snippet, error) {
	if len(sources) == 0 {
		return []*retrieval.Snippet{}, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, content_id, title, content, source, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_base_embeddings
		WHERE source = ANY($2)
		  AND 1 - (embedding <=> $1) > $3
		ORDER BY similarity DESC, content_id ASC
		LIMIT $4`,
		pgvector.NewVector(embedding),
		sources,
		threshold,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match chunks: %w", err)
	}
	defer rows.Close()

	snippets := make([]*retrieval.Snippet, 0)
	for rows.Next() {
		var s retrieval.Snippet
		if err := rows.Scan(&s.ID, &s.ContentID, &s.Title, &s.Content, &s.Source, &s.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snippets: %w", err)
	}
	return snippets, nil
}
