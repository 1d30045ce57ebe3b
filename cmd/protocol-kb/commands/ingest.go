package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/eznarratives/protocol-kb/internal/infra/postgres"
	"github.com/eznarratives/protocol-kb/internal/platform/config"
)

// KBInitAction はマイグレーションのみを適用するコマンドのアクション。
// データベースの初期化を取り込みと切り離して実行できる。
func KBInitAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	params := postgres.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}
	if err := postgres.Migrate(params); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	fmt.Println("マイグレーションを適用しました")
	return nil
}

// KBIngestAction は単一ソースを取り込むコマンドのアクション
func KBIngestAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sourceID := cmd.String("source")
	file := cmd.String("file")

	service := appCtx.Container.IngestService

	if file != "" {
		ingestResult, err := service.IngestFile(ctx, sourceID, file)
		if err != nil {
			return fmt.Errorf("取り込みに失敗: %w", err)
		}
		printIngestResult(ingestResult.Source, ingestResult.Stats.Processed, ingestResult.Stats.Skipped, ingestResult.Stats.Failed, ingestResult.ChunkRows)
		return nil
	}

	ingestResult, err := service.IngestSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("取り込みに失敗: %w", err)
	}
	printIngestResult(ingestResult.Source, ingestResult.Stats.Processed, ingestResult.Stats.Skipped, ingestResult.Stats.Failed, ingestResult.ChunkRows)
	return nil
}

// KBIngestAllAction は有効な全ソースを取り込むコマンドのアクション
func KBIngestAllAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.Container.IngestService.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("取り込みに失敗: %w", err)
	}

	for _, result := range results {
		printIngestResult(result.Source, result.Stats.Processed, result.Stats.Skipped, result.Stats.Failed, result.ChunkRows)
	}
	return nil
}

func printIngestResult(source string, processed, skipped, failed int, total int64) {
	fmt.Printf("%s: processed=%d skipped=%d failed=%d (total chunks: %d)\n",
		source, processed, skipped, failed, total)
}
