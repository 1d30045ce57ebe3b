package knowledge

import (
	"context"

	"github.com/samber/mo"
)

// Repository はナレッジベースの永続化を統合するインターフェース。
// テスト時のモック用に消費者側で定義する。
type Repository interface {
	// Source
	GetSourceByID(ctx context.Context, id string) (mo.Option[*Source], error)
	ListEnabledSources(ctx context.Context) ([]*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)
	CreateSourceIfNotExists(ctx context.Context, source *Source) (*Source, error)
	SetSourceEnabled(ctx context.Context, id string, enabled bool) error

	// Chunk
	// UpsertChunk は content_id をキーに挿入または上書きする。
	// 同一キーへの再取り込みは重複を作らず既存行を更新する。
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	CountChunksBySource(ctx context.Context, source string) (int64, error)
}

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// Metadata はモデル情報を返す
	Metadata() EmbedderMetadata
}

// EmbedderMetadata はEmbeddingモデルの情報
type EmbedderMetadata struct {
	ModelName string
	Dimension int
}

// TokenCounter はテキストのトークン数を数えるインターフェース
type TokenCounter interface {
	Count(text string) (int, error)
}
