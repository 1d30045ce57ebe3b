package knowledge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocumentFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestServiceIngestFile(t *testing.T) {
	t.Run("JSONドキュメントを取り込んで統計を返す", func(t *testing.T) {
		dir := t.TempDir()
		path := writeDocumentFile(t, dir, "ems.json", `[
			{"text": "胸痛の評価手順", "title": "胸痛", "chunk_id": "1"},
			{"title": "本文なし", "chunk_id": "2"},
			{"content": "外傷搬送基準", "id": "3"}
		]`)

		repo := newStubRepository()
		service := knowledge.NewIngestService(repo, newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		result, err := service.IngestFile(context.Background(), "ems-protocols", path)
		require.NoError(t, err)

		assert.Equal(t, "ems-protocols", result.Source)
		assert.Equal(t, 2, result.Stats.Processed)
		assert.Equal(t, 1, result.Stats.Skipped)
		assert.Equal(t, int64(2), result.ChunkRows)
	})

	t.Run("不正なJSONはエラーを返す", func(t *testing.T) {
		dir := t.TempDir()
		path := writeDocumentFile(t, dir, "broken.json", `{"not": "an array"`)

		service := knowledge.NewIngestService(newStubRepository(), newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		_, err := service.IngestFile(context.Background(), "src", path)
		assert.Error(t, err)
	})

	t.Run("存在しないファイルはエラーを返す", func(t *testing.T) {
		service := knowledge.NewIngestService(newStubRepository(), newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		_, err := service.IngestFile(context.Background(), "src", filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("相対パスはデータディレクトリ基準で解決する", func(t *testing.T) {
		dir := t.TempDir()
		writeDocumentFile(t, dir, "ems.json", `[{"text": "a", "chunk_id": "1"}]`)

		repo := newStubRepository()
		service := knowledge.NewIngestService(repo, newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
			knowledge.WithIngestDataDir(dir),
		)

		result, err := service.IngestFile(context.Background(), "src", "ems.json")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Stats.Processed)
	})
}

func TestIngestServiceIngestSource(t *testing.T) {
	t.Run("ソース定義のfile_pathから取り込む", func(t *testing.T) {
		dir := t.TempDir()
		path := writeDocumentFile(t, dir, "fire.json", `[{"text": "放水要領", "chunk_id": "1"}]`)

		repo := newStubRepository()
		repo.sources = append(repo.sources, &knowledge.Source{
			ID:        "fire-sop",
			Name:      "消防活動基準",
			FilePath:  path,
			IsEnabled: true,
		})

		service := knowledge.NewIngestService(repo, newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		result, err := service.IngestSource(context.Background(), "fire-sop")
		require.NoError(t, err)

		assert.Equal(t, "fire-sop", result.Source)
		assert.Contains(t, repo.chunks, "fire-sop-1")
	})

	t.Run("未登録のソースIDはエラーを返す", func(t *testing.T) {
		service := knowledge.NewIngestService(newStubRepository(), newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		_, err := service.IngestSource(context.Background(), "unknown")
		assert.ErrorContains(t, err, "unknown")
	})
}

func TestIngestServiceIngestAll(t *testing.T) {
	t.Run("有効なソースのみ取り込み失敗はスキップする", func(t *testing.T) {
		dir := t.TempDir()
		emsPath := writeDocumentFile(t, dir, "ems.json", `[{"text": "a", "chunk_id": "1"}]`)

		repo := newStubRepository()
		repo.sources = append(repo.sources,
			&knowledge.Source{ID: "ems-protocols", FilePath: emsPath, IsEnabled: true},
			&knowledge.Source{ID: "broken", FilePath: filepath.Join(dir, "missing.json"), IsEnabled: true},
			&knowledge.Source{ID: "disabled", FilePath: emsPath, IsEnabled: false},
		)

		service := knowledge.NewIngestService(repo, newStubEmbedder(), &stubTokenCounter{},
			knowledge.WithIngestLogger(discardLogger()),
		)

		results, err := service.IngestAll(context.Background())
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, "ems-protocols", results[0].Source)
		assert.Contains(t, repo.chunks, "ems-protocols-1")
	})
}
