package knowledge

import (
	"fmt"
	"time"
)

// RawRecord はナレッジベースJSONドキュメントの1要素を表す。
// 元データはフィールド名が揺れている（text/content、chunk_id/id）ため、
// この型は取り込み境界でのみ使用し、Normalize で厳密な Record に変換する。
type RawRecord struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Title   string `json:"title"`
	ChunkID string `json:"chunk_id"`
	ID      string `json:"id"`
}

// Record は正規化済みの取り込みレコード
type Record struct {
	// ContentID はソース内でのレコード識別子（ソースプレフィックス付与前）
	ContentID string
	Title     string
	Content   string
}

// Normalize は RawRecord を厳密な Record に変換する。
// content は text フィールドを優先し、無ければ content フィールドを使う。
// ID は chunk_id、id の順で採用し、どちらも無ければ {source}-{index} を
// フォールバックとして生成する。
func Normalize(raw RawRecord, source string, index int) Record {
	content := raw.Text
	if content == "" {
		content = raw.Content
	}

	contentID := raw.ChunkID
	if contentID == "" {
		contentID = raw.ID
	}
	if contentID == "" {
		contentID = fmt.Sprintf("%s-%d", source, index)
	}

	return Record{
		ContentID: contentID,
		Title:     raw.Title,
		Content:   content,
	}
}

// Empty は取り込み対象となるコンテンツを持たないレコードかどうかを返す。
// 空レコードはエラーではなく、チャンクを作成せずスキップされる。
func (r Record) Empty() bool {
	return r.Content == ""
}

// StorageKey はチャンクストアのユニークキー（content_id カラム値）を返す。
// 形式: {source}-{contentID}
func (r Record) StorageKey(source string) string {
	return fmt.Sprintf("%s-%s", source, r.ContentID)
}

// Chunk は埋め込み済みの1パッセージ（検索の最小単位）を表す
type Chunk struct {
	ContentID  string
	Title      string
	Content    string
	Source     string
	TokenCount int
	Embedding  []float32
}

// Source はナレッジベースソース（1つの論理的なドキュメント集合）を表す。
// アクセス制御と検索フィルタの単位となる。
type Source struct {
	ID          string
	Name        string
	Description *string
	FilePath    string
	IsEnabled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
