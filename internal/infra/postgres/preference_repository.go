package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/eznarratives/protocol-kb/internal/core/preference"
)

// PreferenceRepository は core/preference.Repository を実装する PostgreSQL リポジトリ。
type PreferenceRepository struct {
	db *DB
}

// NewPreferenceRepository は新しい PreferenceRepository を返す。
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

var _ preference.Repository = (*PreferenceRepository)(nil)

func (r *PreferenceRepository) Get(ctx context.Context, userID string) (mo.Option[*preference.Preference], error) {
	var p preference.Preference
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, selected_sources, use_web_search, created_at, updated_at
		FROM user_kb_preferences
		WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.SelectedSources, &p.UseWebSearch, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*preference.Preference](), nil
		}
		return mo.None[*preference.Preference](), fmt.Errorf("failed to get preference: %w", err)
	}
	return mo.Some(&p), nil
}

func (r *PreferenceRepository) Upsert(ctx context.Context, pref *preference.Preference) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_kb_preferences (user_id, selected_sources, use_web_search)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			selected_sources = EXCLUDED.selected_sources,
			use_web_search = EXCLUDED.use_web_search,
			updated_at = now()`,
		pref.UserID,
		pref.SelectedSources,
		pref.UseWebSearch,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}
