package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/eznarratives/protocol-kb/internal/core/preference"
)

// QueryAction はナレッジベースを検索するコマンドのアクション。
// --user を指定するとユーザー設定から検索モードとソースを解決する。
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	question := cmd.String("question")
	sources := cmd.StringSlice("sources")
	userID := cmd.String("user")

	if len(sources) == 0 && userID != "" {
		resolution, err := appCtx.Container.PreferenceService.ResolveMode(ctx, userID)
		if err != nil {
			return fmt.Errorf("検索モードの解決に失敗: %w", err)
		}
		if resolution.Mode == preference.ModeUngrounded {
			fmt.Println("ソースが選択されていないため検索しません (ungrounded)")
			return nil
		}
		sources = resolution.Sources
	}

	snippets, err := appCtx.Container.RetrievalService.Query(ctx, question, sources, cmd.Int("top-k"))
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	if len(snippets) == 0 {
		fmt.Println("該当するスニペットはありませんでした")
		return nil
	}

	for i, snippet := range snippets {
		fmt.Printf("--- [%d] %s (%s, similarity=%.3f)\n", i+1, snippet.Title, snippet.Source, snippet.Similarity)
		fmt.Println(snippet.Content)
		fmt.Println()
	}
	return nil
}
