package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eznarratives/protocol-kb/cmd/protocol-kb/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "protocol-kb",
		Usage: "EMS/消防プロトコルナレッジベースの取り込みと検索",
		Commands: []*cli.Command{
			{
				Name:  "source",
				Usage: "ナレッジベースソース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "ソース一覧を表示",
						Flags:  []cli.Flag{envFlag},
						Action: commands.SourceListAction,
					},
					{
						Name:  "add",
						Usage: "ソースを登録",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ソースID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "name",
								Usage:    "表示名",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "JSONドキュメントファイルのパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "description",
								Usage: "説明",
							},
						},
						Action: commands.SourceAddAction,
					},
					{
						Name:  "enable",
						Usage: "ソースを有効化",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ソースID",
								Required: true,
							},
						},
						Action: commands.SourceEnableAction,
					},
					{
						Name:  "disable",
						Usage: "ソースを無効化",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ソースID",
								Required: true,
							},
						},
						Action: commands.SourceDisableAction,
					},
				},
			},
			{
				Name:  "kb",
				Usage: "ナレッジベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "マイグレーションを適用",
						Flags:  []cli.Flag{envFlag},
						Action: commands.KBInitAction,
					},
					{
						Name:  "ingest",
						Usage: "単一ソースを取り込み",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "source",
								Usage:    "ソースID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "file",
								Usage: "JSONドキュメントファイルのパス（ソース定義のfile_pathを上書き）",
							},
						},
						Action: commands.KBIngestAction,
					},
					{
						Name:   "ingest-all",
						Usage:  "有効な全ソースを取り込み",
						Flags:  []cli.Flag{envFlag},
						Action: commands.KBIngestAllAction,
					},
				},
			},
			{
				Name:  "query",
				Usage: "ナレッジベースを検索",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "sources",
						Usage: "検索対象のソースID",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "ユーザーID（設定からソースを解決）",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "返却するスニペット数の上限（未指定なら設定値）",
					},
				},
				Action: commands.QueryAction,
			},
			{
				Name:  "prefs",
				Usage: "ユーザー設定管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "ユーザー設定を表示",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "user",
								Usage:    "ユーザーID",
								Required: true,
							},
						},
						Action: commands.PrefsShowAction,
					},
					{
						Name:  "set",
						Usage: "ユーザー設定を保存",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "user",
								Usage:    "ユーザーID",
								Required: true,
							},
							&cli.StringSliceFlag{
								Name:  "sources",
								Usage: "選択するソースID",
							},
							&cli.BoolFlag{
								Name:  "web-search",
								Usage: "Web検索フォールバックを有効化",
							},
						},
						Action: commands.PrefsSetAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "APIサーバー管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "APIサーバーを起動",
						Flags: []cli.Flag{
							envFlag,
							&cli.IntFlag{
								Name:  "port",
								Usage: "待ち受けポート（未指定なら設定値）",
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatalf("エラー: %v", err)
	}
}
