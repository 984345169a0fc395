package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// ScrapeRunAction はジョブを介さずにプロフィールを同期的にスクレイピングするコマンドのアクション
func ScrapeRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	profileURL := cmd.String("url")
	noPersist := cmd.Bool("no-persist")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	maxPosts := cmd.Int("max-posts")
	if maxPosts <= 0 {
		maxPosts = appCtx.Config.Scraper.MaxPosts
	}

	var store scraping.Store
	if !noPersist {
		store, err = appCtx.Container.NewStore(ctx)
		if err != nil {
			return fmt.Errorf("ストアの初期化に失敗: %w", err)
		}
	}

	slog.Info("スクレイピングを開始", "url", profileURL, "maxPosts", maxPosts, "persist", !noPersist)

	result, err := appCtx.Container.Orchestrator.ScrapeProfile(ctx, profileURL, maxPosts, store)
	if err != nil {
		return fmt.Errorf("スクレイピングに失敗: %w", err)
	}

	slog.Info("スクレイピングが完了しました",
		"posts", result.Summary.TotalPosts,
		"interactions", result.Summary.TotalInteractions,
		"conditions", len(result.Conditions),
	)
	return writeJSON(os.Stdout, result)
}

// ScrapeSubmitAction はスクレイピングジョブを登録するコマンドのアクション
// --wait 指定時はこのプロセスでジョブを実行し、終了状態を表示する
func ScrapeSubmitAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	profileURL := cmd.String("url")
	wait := cmd.Bool("wait")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobs := appCtx.Container.Jobs

	job, err := jobs.Create(ctx, profileURL)
	if err != nil {
		return fmt.Errorf("ジョブの登録に失敗: %w", err)
	}
	fmt.Printf("ジョブを登録しました: %s\n", job.ID)

	if !wait {
		fmt.Printf("実行するには: profile-scraper job run --id %s\n", job.ID)
		return nil
	}

	if err := jobs.Run(ctx, job.ID); err != nil {
		return fmt.Errorf("ジョブの実行に失敗: %w", err)
	}

	finished, err := jobs.Status(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
	}
	renderJobDetail(os.Stdout, finished)
	return nil
}
