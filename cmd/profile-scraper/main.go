package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/profile-scraper/cmd/profile-scraper/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（設定読み込み後に LOG_LEVEL / LOG_FORMAT で置き換わる）
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "profile-scraper",
		Usage: "SNSプロフィールの投稿・インタラクション収集システム",
		Commands: []*cli.Command{
			{
				Name:  "scrape",
				Usage: "スクレイピングコマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "ジョブを介さずにプロフィールを同期スクレイピング",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "url",
								Usage:    "プロフィールURLまたはユーザー名",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "max-posts",
								Usage: "取得する最大投稿数（0 の場合は設定値）",
							},
							&cli.BoolFlag{
								Name:  "no-persist",
								Usage: "結果をDBに保存しない",
							},
						},
						Action: commands.ScrapeRunAction,
					},
					{
						Name:  "submit",
						Usage: "スクレイピングジョブを登録",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "url",
								Usage:    "プロフィールURLまたはユーザー名",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "wait",
								Usage: "登録したジョブをこのプロセスで実行し完了まで待つ",
							},
						},
						Action: commands.ScrapeSubmitAction,
					},
				},
			},
			{
				Name:  "job",
				Usage: "ジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "最近のジョブ一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
								Value: 20,
							},
						},
						Action: commands.JobListAction,
					},
					{
						Name:  "status",
						Usage: "ジョブの状態を表示",
						Flags: []cli.Flag{
							envFlag(),
							jobIDFlag(),
						},
						Action: commands.JobStatusAction,
					},
					{
						Name:  "results",
						Usage: "完了したジョブの結果を表示",
						Flags: []cli.Flag{
							envFlag(),
							jobIDFlag(),
							&cli.BoolFlag{
								Name:  "json",
								Usage: "JSON形式で出力",
							},
						},
						Action: commands.JobResultsAction,
					},
					{
						Name:  "run",
						Usage: "登録済みのジョブを実行",
						Flags: []cli.Flag{
							envFlag(),
							jobIDFlag(),
						},
						Action: commands.JobRunAction,
					},
				},
			},
			{
				Name:  "likes",
				Usage: "いいね取得コマンド",
				Commands: []*cli.Command{
					{
						Name:  "recent",
						Usage: "直近投稿のいいねユーザーを取得",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "url",
								Usage:    "プロフィールURLまたはユーザー名",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "max-posts",
								Usage: "確認する最大投稿数",
							},
							&cli.IntFlag{
								Name:  "window-hours",
								Usage: "直近とみなす時間幅",
							},
							&cli.IntFlag{
								Name:  "max-users",
								Usage: "投稿ごとの最大いいねユーザー数",
							},
							&cli.BoolFlag{
								Name:  "enrich",
								Usage: "いいねユーザーのプロフィール情報も取得",
							},
							&cli.BoolFlag{
								Name:  "persist",
								Usage: "いいねユーザーをDBに保存",
							},
						},
						Action: commands.LikesRecentAction,
					},
				},
			},
			{
				Name:  "schedule",
				Usage: "定期実行コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "設定されたプロフィールの定期スクレイピングを開始",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "run-now",
								Usage: "起動直後に1回実行する",
							},
						},
						Action: commands.ScheduleStartAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "HTTP APIサーバコマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTP APIサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "host",
								Usage: "待ち受けホスト",
							},
							&cli.IntFlag{
								Name:  "port",
								Usage: "待ち受けポート（0 の場合は設定値）",
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:  "backend",
				Usage: "外部バックエンドコマンド",
				Commands: []*cli.Command{
					{
						Name:  "health",
						Usage: "ブラウザ自動化バックエンドとDBの疎通を確認",
						Flags: []cli.Flag{
							envFlag(),
						},
						Action: commands.BackendHealthAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "データベースコマンド",
				Commands: []*cli.Command{
					{
						Name:  "migrate",
						Usage: "スキーマを適用",
						Flags: []cli.Flag{
							envFlag(),
						},
						Action: commands.DBMigrateAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func jobIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "ジョブID",
		Required: true,
	}
}
