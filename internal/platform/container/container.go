package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/eznarratives/protocol-kb/internal/core/preference"
	"github.com/eznarratives/protocol-kb/internal/core/retrieval"
	"github.com/eznarratives/protocol-kb/internal/infra/openai"
	"github.com/eznarratives/protocol-kb/internal/infra/postgres"
	"github.com/eznarratives/protocol-kb/internal/infra/tokenizer"
	"github.com/eznarratives/protocol-kb/internal/platform/config"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	IngestService     *knowledge.IngestService
	RetrievalService  *retrieval.Service
	PreferenceService *preference.Service
	KnowledgeRepo     knowledge.Repository

	logger   *slog.Logger
	database *postgres.DB
}

type containerOptions struct {
	logger       *slog.Logger
	embedder     knowledge.Embedder
	tokenCounter knowledge.TokenCounter
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder knowledge.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter knowledge.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// NewContainer は設定からコンテナを生成する。
// マイグレーションを適用してから接続プールを作成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	params := postgres.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	if err := postgres.Migrate(params); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}

	db, err := postgres.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	container, err := NewContainerWithDB(cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return container, nil
}

// NewContainerWithDB は既存の DB を受け取りコンテナを生成する。
func NewContainerWithDB(cfg *config.Config, db *postgres.DB, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithMaxRetries(cfg.OpenAI.MaxRetries),
		)
	}

	// TokenCounter (tiktoken)
	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		counter, err := tokenizer.NewCounter()
		if err != nil {
			return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
		}
		tokenCounter = counter
	}

	// Repository (PostgreSQL)
	knowledgeRepo := postgres.NewKnowledgeRepository(db)
	retrievalRepo := postgres.NewRetrievalRepository(db)
	preferenceRepo := postgres.NewPreferenceRepository(db)

	// IngestService
	ingestService := knowledge.NewIngestService(
		knowledgeRepo,
		embedder,
		tokenCounter,
		knowledge.WithIngestLogger(options.logger),
		knowledge.WithIngestPipelineConfig(&knowledge.PipelineConfig{
			BatchSize: cfg.KnowledgeBase.BatchSize,
		}),
		knowledge.WithIngestDataDir(cfg.KnowledgeBase.DataDir),
	)

	// RetrievalService
	retrievalService := retrieval.NewService(
		retrievalRepo,
		embedder,
		retrieval.WithMatchThreshold(cfg.KnowledgeBase.MatchThreshold),
		retrieval.WithTopK(cfg.KnowledgeBase.TopK),
		retrieval.WithLogger(options.logger),
	)

	// PreferenceService
	preferenceService := preference.NewService(preferenceRepo, options.logger)

	return &ServiceContainer{
		IngestService:     ingestService,
		RetrievalService:  retrievalService,
		PreferenceService: preferenceService,
		KnowledgeRepo:     knowledgeRepo,
		logger:            options.logger,
		database:          db,
	}, nil
}

// Close はコンテナが保持するリソースを解放する。
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}
