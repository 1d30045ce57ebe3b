package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
)

// SourceListAction はソース一覧を表示するコマンドのアクション
func SourceListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sources, err := appCtx.Container.KnowledgeRepo.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("ソース一覧の取得に失敗: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED\tCHUNKS\tFILE")
	for _, source := range sources {
		count, err := appCtx.Container.KnowledgeRepo.CountChunksBySource(ctx, source.ID)
		if err != nil {
			return fmt.Errorf("チャンク数の取得に失敗: %w", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", source.ID, source.Name, source.IsEnabled, count, source.FilePath)
	}
	return w.Flush()
}

// SourceAddAction はソースを登録するコマンドのアクション
func SourceAddAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var description *string
	if d := cmd.String("description"); d != "" {
		description = &d
	}

	source, err := appCtx.Container.KnowledgeRepo.CreateSourceIfNotExists(ctx, &knowledge.Source{
		ID:          cmd.String("id"),
		Name:        cmd.String("name"),
		Description: description,
		FilePath:    cmd.String("file"),
		IsEnabled:   true,
	})
	if err != nil {
		return fmt.Errorf("ソースの登録に失敗: %w", err)
	}

	appCtx.Logger().Info("ソースを登録しました", "id", source.ID, "file", source.FilePath)
	return nil
}

// SourceEnableAction はソースを有効化するコマンドのアクション
func SourceEnableAction(ctx context.Context, cmd *cli.Command) error {
	return setSourceEnabled(ctx, cmd, true)
}

// SourceDisableAction はソースを無効化するコマンドのアクション
func SourceDisableAction(ctx context.Context, cmd *cli.Command) error {
	return setSourceEnabled(ctx, cmd, false)
}

func setSourceEnabled(ctx context.Context, cmd *cli.Command, enabled bool) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id := cmd.String("id")
	if err := appCtx.Container.KnowledgeRepo.SetSourceEnabled(ctx, id, enabled); err != nil {
		return fmt.Errorf("ソースの更新に失敗: %w", err)
	}

	appCtx.Logger().Info("ソースを更新しました", "id", id, "enabled", enabled)
	return nil
}
