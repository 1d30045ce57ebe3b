package knowledge_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	mu      sync.Mutex
	chunks  map[string]*knowledge.Chunk
	sources []*knowledge.Source

	upsertErrOn map[string]error // content_id -> 返すエラー
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		chunks:      make(map[string]*knowledge.Chunk),
		upsertErrOn: make(map[string]error),
	}
}

func (r *stubRepository) GetSourceByID(_ context.Context, id string) (mo.Option[*knowledge.Source], error) {
	for _, s := range r.sources {
		if s.ID == id {
			return mo.Some(s), nil
		}
	}
	return mo.None[*knowledge.Source](), nil
}

func (r *stubRepository) ListEnabledSources(_ context.Context) ([]*knowledge.Source, error) {
	var enabled []*knowledge.Source
	for _, s := range r.sources {
		if s.IsEnabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (r *stubRepository) ListSources(_ context.Context) ([]*knowledge.Source, error) {
	return r.sources, nil
}

func (r *stubRepository) CreateSourceIfNotExists(_ context.Context, source *knowledge.Source) (*knowledge.Source, error) {
	r.sources = append(r.sources, source)
	return source, nil
}

func (r *stubRepository) SetSourceEnabled(_ context.Context, id string, enabled bool) error {
	for _, s := range r.sources {
		if s.ID == id {
			s.IsEnabled = enabled
			return nil
		}
	}
	return errors.New("not found")
}

func (r *stubRepository) UpsertChunk(_ context.Context, chunk *knowledge.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.upsertErrOn[chunk.ContentID]; ok {
		return err
	}
	r.chunks[chunk.ContentID] = chunk
	return nil
}

func (r *stubRepository) CountChunksBySource(_ context.Context, source string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, c := range r.chunks {
		if c.Source == source {
			count++
		}
	}
	return count, nil
}

var _ knowledge.Repository = (*stubRepository)(nil)

type stubEmbedder struct {
	mu       sync.Mutex
	calls    int
	failOn   map[string]error // 入力テキスト -> 返すエラー
	metadata knowledge.EmbedderMetadata
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		failOn: make(map[string]error),
		metadata: knowledge.EmbedderMetadata{
			ModelName: "text-embedding-3-small",
			Dimension: 3,
		},
	}
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if err, ok := e.failOn[text]; ok {
		return nil, err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *stubEmbedder) Metadata() knowledge.EmbedderMetadata {
	return e.metadata
}

var _ knowledge.Embedder = (*stubEmbedder)(nil)

type stubTokenCounter struct {
	err error
}

func (c *stubTokenCounter) Count(text string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return len([]rune(text)), nil
}

var _ knowledge.TokenCounter = (*stubTokenCounter)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPipelineProcessRecords(t *testing.T) {
	t.Run("空コンテンツのレコードをスキップして残りを保存する", func(t *testing.T) {
		repo := newStubRepository()
		embedder := newStubEmbedder()
		pipeline := knowledge.NewPipeline(repo, embedder, &stubTokenCounter{}, nil, discardLogger())

		records := []knowledge.RawRecord{
			{Text: "胸痛の評価手順", Title: "胸痛", ChunkID: "1"},
			{Title: "本文なし", ChunkID: "2"},
			{Content: "外傷搬送基準", ID: "3"},
		}

		stats, err := pipeline.ProcessRecords(context.Background(), "test-src", records)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 1, stats.Skipped)
		assert.Equal(t, 0, stats.Failed)

		require.Len(t, repo.chunks, 2)
		assert.Contains(t, repo.chunks, "test-src-1")
		assert.Contains(t, repo.chunks, "test-src-3")

		chunk := repo.chunks["test-src-1"]
		assert.Equal(t, "胸痛", chunk.Title)
		assert.Equal(t, "胸痛の評価手順", chunk.Content)
		assert.Equal(t, "test-src", chunk.Source)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, chunk.Embedding)
	})

	t.Run("Embedding失敗は該当レコードのみ失敗扱いで処理を継続する", func(t *testing.T) {
		repo := newStubRepository()
		embedder := newStubEmbedder()
		embedder.failOn["b"] = errors.New("rate limited")
		pipeline := knowledge.NewPipeline(repo, embedder, &stubTokenCounter{}, nil, discardLogger())

		records := []knowledge.RawRecord{
			{Text: "a", ChunkID: "1"},
			{Text: "b", ChunkID: "2"},
			{Text: "c", ChunkID: "3"},
		}

		stats, err := pipeline.ProcessRecords(context.Background(), "src", records)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 0, stats.Skipped)
		assert.NotContains(t, repo.chunks, "src-2")
	})

	t.Run("保存失敗も該当レコードのみ失敗扱いになる", func(t *testing.T) {
		repo := newStubRepository()
		repo.upsertErrOn["src-2"] = errors.New("connection refused")
		pipeline := knowledge.NewPipeline(repo, newStubEmbedder(), &stubTokenCounter{}, nil, discardLogger())

		records := []knowledge.RawRecord{
			{Text: "a", ChunkID: "1"},
			{Text: "b", ChunkID: "2"},
		}

		stats, err := pipeline.ProcessRecords(context.Background(), "src", records)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Processed)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("空のレコード列は何もせず完了する", func(t *testing.T) {
		repo := newStubRepository()
		embedder := newStubEmbedder()
		pipeline := knowledge.NewPipeline(repo, embedder, &stubTokenCounter{}, nil, discardLogger())

		stats, err := pipeline.ProcessRecords(context.Background(), "src", nil)
		require.NoError(t, err)

		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, 0, stats.Processed)
		assert.Equal(t, 0, embedder.calls)
		assert.Empty(t, repo.chunks)
	})

	t.Run("バッチサイズより多いレコードも全件処理する", func(t *testing.T) {
		repo := newStubRepository()
		embedder := newStubEmbedder()
		config := &knowledge.PipelineConfig{BatchSize: 4}
		pipeline := knowledge.NewPipeline(repo, embedder, &stubTokenCounter{}, config, discardLogger())

		records := make([]knowledge.RawRecord, 0, 25)
		for i := 0; i < 25; i++ {
			records = append(records, knowledge.RawRecord{Text: "本文", ChunkID: fmt.Sprintf("c%d", i)})
		}

		stats, err := pipeline.ProcessRecords(context.Background(), "src", records)
		require.NoError(t, err)

		assert.Equal(t, 25, stats.Processed)
		assert.Equal(t, 25, embedder.calls)
		assert.Len(t, repo.chunks, 25)
	})

	t.Run("トークン数の取得失敗はレコードを失敗扱いにしない", func(t *testing.T) {
		repo := newStubRepository()
		counter := &stubTokenCounter{err: errors.New("unknown encoding")}
		pipeline := knowledge.NewPipeline(repo, newStubEmbedder(), counter, nil, discardLogger())

		stats, err := pipeline.ProcessRecords(context.Background(), "src", []knowledge.RawRecord{
			{Text: "a", ChunkID: "1"},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Processed)
		assert.Equal(t, 0, repo.chunks["src-1"].TokenCount)
	})

	t.Run("キャンセル済みコンテキストでは新しいバッチを開始しない", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pipeline := knowledge.NewPipeline(newStubRepository(), newStubEmbedder(), &stubTokenCounter{}, nil, discardLogger())

		_, err := pipeline.ProcessRecords(ctx, "src", []knowledge.RawRecord{
			{Text: "a", ChunkID: "1"},
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
