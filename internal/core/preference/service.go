package preference

import (
	"context"
	"fmt"
	"log/slog"
)

// Service はユーザー設定のユースケースを提供する
type Service struct {
	repository Repository
	logger     *slog.Logger
}

// NewService は新しいServiceを作成する
func NewService(repository Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repository,
		logger:     logger,
	}
}

// Get はユーザーの設定を返す。未登録の場合はソース未選択のデフォルト設定を返す。
func (s *Service) Get(ctx context.Context, userID string) (*Preference, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID は必須です")
	}

	prefOpt, err := s.repository.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の取得に失敗: %w", err)
	}

	pref, ok := prefOpt.Get()
	if !ok {
		return &Preference{
			UserID:          userID,
			SelectedSources: []string{},
			UseWebSearch:    false,
		}, nil
	}
	return pref, nil
}

// Set はユーザーの設定を全置換で保存する。部分更新ではなく、
// SelectedSources と UseWebSearch は渡された値がそのまま新しい状態になる。
func (s *Service) Set(ctx context.Context, userID string, selectedSources []string, useWebSearch bool) (*Preference, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID は必須です")
	}
	if selectedSources == nil {
		selectedSources = []string{}
	}

	pref := &Preference{
		UserID:          userID,
		SelectedSources: selectedSources,
		UseWebSearch:    useWebSearch,
	}
	if err := s.repository.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("ユーザー設定の保存に失敗: %w", err)
	}

	s.logger.Info("ユーザー設定を更新",
		"userID", userID,
		"sources", len(selectedSources),
		"useWebSearch", useWebSearch,
	)

	return pref, nil
}

// ResolveMode はユーザー設定から質問応答時の検索モードを決定する。
// 設定が未登録、またはソースが1つも選択されていない場合は Ungrounded となり、
// UseWebSearch の値はモード決定に影響しない。
func (s *Service) ResolveMode(ctx context.Context, userID string) (*Resolution, error) {
	prefOpt, err := s.repository.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の取得に失敗: %w", err)
	}

	pref, ok := prefOpt.Get()
	if !ok || len(pref.SelectedSources) == 0 {
		return &Resolution{Mode: ModeUngrounded}, nil
	}

	return &Resolution{
		Mode:    ModeGrounded,
		Sources: pref.SelectedSources,
	}, nil
}
