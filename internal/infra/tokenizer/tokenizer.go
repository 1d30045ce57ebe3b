package tokenizer

import (
	"fmt"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は text-embedding-3 系モデルが使うエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter は tiktoken を利用したトークンカウンタ
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は cl100k_base エンコーディングのカウンタを作成する
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &Counter{encoding: enc}, nil
}

// Count はテキストのトークン数を返す
func (c *Counter) Count(text string) (int, error) {
	return len(c.encoding.Encode(text, nil, nil)), nil
}

// インターフェース実装の確認
var _ knowledge.TokenCounter = (*Counter)(nil)
