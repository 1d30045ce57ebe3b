package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultMatchThreshold はコサイン類似度の足切り閾値のデフォルト値
	DefaultMatchThreshold = 0.7

	// DefaultTopK は返却するスニペット数のデフォルト上限
	DefaultTopK = 5
)

// Service はナレッジベースに対する類似検索のユースケースを提供する
type Service struct {
	repository Repository
	embedder   Embedder
	threshold  float64
	topK       int
	logger     *slog.Logger
}

type serviceOptions struct {
	threshold float64
	topK      int
	logger    *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithMatchThreshold は類似度の足切り閾値を設定する
func WithMatchThreshold(threshold float64) ServiceOption {
	return func(o *serviceOptions) {
		o.threshold = threshold
	}
}

// WithTopK は返却するスニペット数の上限を設定する
func WithTopK(topK int) ServiceOption {
	return func(o *serviceOptions) {
		o.topK = topK
	}
}

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(repository Repository, embedder Embedder, opts ...ServiceOption) *Service {
	options := serviceOptions{
		threshold: DefaultMatchThreshold,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.topK <= 0 {
		options.topK = DefaultTopK
	}

	return &Service{
		repository: repository,
		embedder:   embedder,
		threshold:  options.threshold,
		topK:       options.topK,
		logger:     options.logger,
	}
}

// Query は質問文をEmbeddingに変換し、指定ソース群から関連スニペットを検索する。
// sources が空の場合はストアに問い合わせず空の結果を返す。
// topK が正の場合はサービスのデフォルト件数上限を呼び出し単位で上書きする。
func (s *Service) Query(ctx context.Context, question string, sources []string, topK int) ([]*Snippet, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("質問文は必須です")
	}

	if len(sources) == 0 {
		s.logger.Debug("検索対象ソースが空のため検索をスキップ")
		return []*Snippet{}, nil
	}

	limit := s.topK
	if topK > 0 {
		limit = topK
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("クエリのEmbedding生成に失敗: %w", err)
	}

	snippets, err := s.repository.MatchChunks(ctx, embedding, sources, s.threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("類似検索に失敗: %w", err)
	}

	s.logger.Debug("類似検索が完了",
		"sources", sources,
		"matches", len(snippets),
	)

	return snippets, nil
}

// FormatContext はスニペット列をLLMプロンプトへ埋め込むテキストに整形する。
// ヒットが無い場合は空文字列を返す。
func FormatContext(snippets []*Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	for i, snippet := range snippets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if snippet.Title != "" {
			fmt.Fprintf(&b, "[%s] %s\n", snippet.Source, snippet.Title)
		} else {
			fmt.Fprintf(&b, "[%s]\n", snippet.Source)
		}
		b.WriteString(snippet.Content)
	}
	return b.String()
}
