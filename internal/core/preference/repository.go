package preference

import (
	"context"

	"github.com/samber/mo"
)

// Repository はユーザー設定の永続化インターフェース。
// テスト時のモック用に消費者側で定義する。
type Repository interface {
	// Get はユーザーの設定を返す。未登録の場合は None を返す。
	Get(ctx context.Context, userID string) (mo.Option[*Preference], error)

	// Upsert はユーザーの設定を挿入または全置換する
	Upsert(ctx context.Context, pref *Preference) error
}
