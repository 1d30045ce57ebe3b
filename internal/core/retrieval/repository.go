package retrieval

import "context"

// Repository はチャンクストアに対する類似検索インターフェース。
// テスト時のモック用に消費者側で定義する。
type Repository interface {
	// MatchChunks はクエリベクトルとのコサイン類似度が threshold を
	// 超えるチャンクを、指定ソース群に限定して類似度の降順で最大
	// limit 件返す。sources が空の場合は常に空の結果を返す。
	MatchChunks(ctx context.Context, embedding []float32, sources []string, threshold float64, limit int) ([]*Snippet, error)
}

// Embedder は検索クエリのEmbedding生成インターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
