package knowledge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	// DefaultBatchSize はデフォルトのバッチサイズ。
	// 1バッチあたりのEmbedding同時実行数の上限でもあり、
	// Embeddingプロバイダへの同時アウトバウンド呼び出しを抑える。
	DefaultBatchSize = 10
)

// PipelineConfig はパイプライン処理の設定
type PipelineConfig struct {
	// BatchSize は1バッチで並行処理するレコード数
	BatchSize int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		BatchSize: DefaultBatchSize,
	}
}

// PipelineStats はパイプライン処理の統計情報
type PipelineStats struct {
	Total     int // 入力レコード総数
	Processed int // 正常に保存されたチャンク数
	Skipped   int // コンテンツが空でスキップされたレコード数
	Failed    int // Embedding生成または保存に失敗したレコード数
}

// Pipeline はナレッジベースドキュメントのレコード列をチャンクとして取り込む。
// レコードはバッチ単位で並行処理され、バッチ間は厳密に逐次実行される
// （バッチNが全件完了するまでバッチN+1は開始しない）。
type Pipeline struct {
	repository Repository
	embedder   Embedder
	tokens     TokenCounter
	config     *PipelineConfig
	logger     *slog.Logger
}

// NewPipeline は新しいPipelineを作成する
func NewPipeline(
	repository Repository,
	embedder Embedder,
	tokens TokenCounter,
	config *PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if config.BatchSize <= 0 {
		config = &PipelineConfig{BatchSize: DefaultBatchSize}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		repository: repository,
		embedder:   embedder,
		tokens:     tokens,
		config:     config,
		logger:     logger,
	}
}

// ProcessRecords はレコード列を正規化し、バッチ単位でEmbeddingを生成して
// チャンクストアへupsertする。
//
// 個々のレコードの失敗（Embedding生成・保存エラー）はログに記録して
// 処理を継続し、バッチもパイプラインも中断しない。コンテンツが空の
// レコードは黙ってスキップされる（エラーではなく、成功にも数えない）。
// 最終的な成功件数は入力総数を下回ることがある。
func (p *Pipeline) ProcessRecords(ctx context.Context, source string, records []RawRecord) (*PipelineStats, error) {
	total := len(records)
	stats := &PipelineStats{Total: total}

	if total == 0 {
		p.logger.Info("取り込み対象のレコードがありません", "source", source)
		return stats, nil
	}

	var processed, skipped, failed atomic.Int64

	for start := 0; start < total; start += p.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.config.BatchSize, total)
		batch := records[start:end]

		var wg sync.WaitGroup
		wg.Add(len(batch))
		for offset, raw := range batch {
			index := start + offset
			go func() {
				defer wg.Done()

				record := Normalize(raw, source, index)
				if record.Empty() {
					skipped.Add(1)
					return
				}

				if err := p.processRecord(ctx, source, record); err != nil {
					p.logger.Warn("レコードの取り込みに失敗",
						"source", source,
						"contentID", record.ContentID,
						"error", err,
					)
					failed.Add(1)
					return
				}
				processed.Add(1)
			}()
		}
		wg.Wait()

		// バッチ完了ごとに進捗を報告する
		p.logger.Info("取り込み進捗",
			"source", source,
			"progress", end,
			"total", total,
		)
	}

	stats.Processed = int(processed.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load())

	return stats, nil
}

// processRecord は1レコードをEmbedding生成してチャンクとして保存する
func (p *Pipeline) processRecord(ctx context.Context, source string, record Record) error {
	vector, err := p.embedder.Embed(ctx, record.Content)
	if err != nil {
		return err
	}

	tokenCount := 0
	if p.tokens != nil {
		// トークン数はコスト把握用の付加情報。数えられなくても取り込みは止めない
		if n, err := p.tokens.Count(record.Content); err == nil {
			tokenCount = n
		}
	}

	return p.repository.UpsertChunk(ctx, &Chunk{
		ContentID:  record.StorageKey(source),
		Title:      record.Title,
		Content:    record.Content,
		Source:     source,
		TokenCount: tokenCount,
		Embedding:  vector,
	})
}
