package retrieval

// Snippet は類似検索でヒットした1パッセージを表す
type Snippet struct {
	// ID はチャンクストアの行識別子（UUID）
	ID         string
	ContentID  string
	Title      string
	Content    string
	Source     string
	Similarity float64
}
