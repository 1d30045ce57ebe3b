package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// PrefsShowAction はユーザー設定を表示するコマンドのアクション
func PrefsShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	pref, err := appCtx.Container.PreferenceService.Get(ctx, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("ユーザー設定の取得に失敗: %w", err)
	}

	fmt.Printf("user: %s\n", pref.UserID)
	if len(pref.SelectedSources) == 0 {
		fmt.Println("sources: (none)")
	} else {
		fmt.Printf("sources: %s\n", strings.Join(pref.SelectedSources, ", "))
	}
	fmt.Printf("web search: %t\n", pref.UseWebSearch)
	return nil
}

// PrefsSetAction はユーザー設定を保存するコマンドのアクション
func PrefsSetAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	pref, err := appCtx.Container.PreferenceService.Set(ctx,
		cmd.String("user"),
		cmd.StringSlice("sources"),
		cmd.Bool("web-search"),
	)
	if err != nil {
		return fmt.Errorf("ユーザー設定の保存に失敗: %w", err)
	}

	appCtx.Logger().Info("ユーザー設定を保存しました",
		"user", pref.UserID,
		"sources", pref.SelectedSources,
	)
	return nil
}
