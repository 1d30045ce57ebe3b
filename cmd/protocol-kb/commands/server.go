package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/eznarratives/protocol-kb/internal/interface/api"
)

// ServerStartAction は API サーバーを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := cmd.Int("port")
	if port == 0 {
		port = appCtx.Config.Server.Port
	}

	server, err := api.NewServer(api.ServerConfig{
		Logger:      appCtx.Logger(),
		Retrieval:   appCtx.Container.RetrievalService,
		Preferences: appCtx.Container.PreferenceService,
		Sources:     appCtx.Container.KnowledgeRepo,
	})
	if err != nil {
		return fmt.Errorf("APIサーバーの初期化に失敗: %w", err)
	}

	return server.Run(ctx, port)
}
