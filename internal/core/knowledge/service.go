package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// IngestResult は取り込み処理の結果を表す
type IngestResult struct {
	Source    string
	Stats     *PipelineStats
	Duration  time.Duration
	ChunkRows int64 // 取り込み後のソース内チャンク総数
}

// IngestService はナレッジベース取り込みのユースケースを提供する
type IngestService struct {
	repository     Repository
	embedder       Embedder
	tokens         TokenCounter
	pipelineConfig *PipelineConfig
	dataDir        string
	logger         *slog.Logger
}

type ingestServiceOptions struct {
	pipelineConfig *PipelineConfig
	dataDir        string
	logger         *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// WithIngestPipelineConfig はパイプライン設定を上書きする
func WithIngestPipelineConfig(cfg *PipelineConfig) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.pipelineConfig = cfg
	}
}

// WithIngestDataDir はソースの file_path が相対パスの場合の基準ディレクトリを設定する
func WithIngestDataDir(dir string) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.dataDir = dir
	}
}

// NewIngestService は新しいIngestServiceを作成する
func NewIngestService(
	repository Repository,
	embedder Embedder,
	tokens TokenCounter,
	opts ...IngestServiceOption,
) *IngestService {
	options := ingestServiceOptions{
		pipelineConfig: DefaultPipelineConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.pipelineConfig == nil {
		options.pipelineConfig = DefaultPipelineConfig()
	}

	return &IngestService{
		repository:     repository,
		embedder:       embedder,
		tokens:         tokens,
		pipelineConfig: options.pipelineConfig,
		dataDir:        options.dataDir,
		logger:         options.logger,
	}
}

// IngestFile はJSONドキュメントファイルを指定ソースとして取り込む
func (s *IngestService) IngestFile(ctx context.Context, source string, filePath string) (*IngestResult, error) {
	if source == "" {
		return nil, fmt.Errorf("source は必須です")
	}
	if filePath == "" {
		return nil, fmt.Errorf("filePath は必須です")
	}

	records, err := s.loadRecords(filePath)
	if err != nil {
		return nil, err
	}

	return s.ingest(ctx, source, records)
}

// IngestSource はソース定義（sources テーブル）の file_path から取り込む
func (s *IngestService) IngestSource(ctx context.Context, sourceID string) (*IngestResult, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("sourceID は必須です")
	}

	sourceOpt, err := s.repository.GetSourceByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗: %w", err)
	}
	source, ok := sourceOpt.Get()
	if !ok {
		return nil, fmt.Errorf("ソースが見つかりません: %s", sourceID)
	}

	records, err := s.loadRecords(source.FilePath)
	if err != nil {
		return nil, err
	}

	return s.ingest(ctx, source.ID, records)
}

// IngestAll は有効な全ソースを順番に取り込む。
// 個々のソースの失敗はログに記録して次のソースへ進む。
func (s *IngestService) IngestAll(ctx context.Context) ([]*IngestResult, error) {
	sources, err := s.repository.ListEnabledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗: %w", err)
	}

	results := make([]*IngestResult, 0, len(sources))
	for _, source := range sources {
		result, err := s.IngestSource(ctx, source.ID)
		if err != nil {
			s.logger.Warn("ソースの取り込みに失敗",
				"source", source.ID,
				"error", err,
			)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// ingest はレコード列をパイプラインで取り込み、結果を集計する
func (s *IngestService) ingest(ctx context.Context, source string, records []RawRecord) (*IngestResult, error) {
	startTime := time.Now()

	s.logger.Info("取り込みを開始",
		"source", source,
		"records", len(records),
		"model", s.embedder.Metadata().ModelName,
	)

	pipeline := NewPipeline(s.repository, s.embedder, s.tokens, s.pipelineConfig, s.logger)
	stats, err := pipeline.ProcessRecords(ctx, source, records)
	if err != nil {
		return nil, fmt.Errorf("パイプライン処理に失敗: %w", err)
	}

	chunkRows, err := s.repository.CountChunksBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("チャンク数の取得に失敗: %w", err)
	}

	duration := time.Since(startTime)

	s.logger.Info("取り込みが完了",
		"source", source,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", duration,
	)

	return &IngestResult{
		Source:    source,
		Stats:     stats,
		Duration:  duration,
		ChunkRows: chunkRows,
	}, nil
}

// loadRecords はJSONドキュメントファイルを読み込んでRawRecord列に変換する
func (s *IngestService) loadRecords(filePath string) ([]RawRecord, error) {
	path := filePath
	if !filepath.IsAbs(path) && s.dataDir != "" {
		path = filepath.Join(s.dataDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントファイルの読み込みに失敗: %w", err)
	}

	var records []RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ドキュメントファイルのパースに失敗: %w", err)
	}

	return records, nil
}
