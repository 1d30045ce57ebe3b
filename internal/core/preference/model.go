package preference

import "time"

// Preference はユーザーごとのナレッジベース設定を表す
type Preference struct {
	UserID          string
	SelectedSources []string
	UseWebSearch    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RetrievalMode は質問応答時のナレッジベース利用方針
type RetrievalMode int

const (
	// ModeUngrounded はナレッジベースを参照せずに回答するモード
	ModeUngrounded RetrievalMode = iota

	// ModeGrounded は選択されたソース群のスニペットを根拠として回答するモード
	ModeGrounded
)

// String は RetrievalMode の文字列表現を返す
func (m RetrievalMode) String() string {
	switch m {
	case ModeGrounded:
		return "grounded"
	default:
		return "ungrounded"
	}
}

// Resolution はモード解決の結果。Grounded の場合のみ Sources を持つ。
type Resolution struct {
	Mode    RetrievalMode
	Sources []string
}
