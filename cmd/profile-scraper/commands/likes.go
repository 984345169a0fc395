package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// LikesRecentAction は直近投稿のいいねユーザーを取得するコマンドのアクション
func LikesRecentAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	profileURL := cmd.String("url")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	opts := recentLikesOptions(appCtx.Container.RecentLikesOptions(), cmd)

	var store scraping.Store
	if opts.PersistLikers {
		store, err = appCtx.Container.NewStore(ctx)
		if err != nil {
			return fmt.Errorf("ストアの初期化に失敗: %w", err)
		}
	}

	slog.Info("直近いいねの取得を開始",
		"url", profileURL,
		"maxPosts", opts.MaxPosts,
		"windowHours", opts.WindowHours,
		"maxUsersPerPost", opts.MaxLikeUsersPerPost,
		"enrich", opts.CollectLikerProfiles,
	)

	result, err := appCtx.Container.Orchestrator.ScrapeRecentLikes(ctx, profileURL, opts, store)
	if err != nil {
		return fmt.Errorf("直近いいねの取得に失敗: %w", err)
	}

	slog.Info("直近いいねの取得が完了しました",
		"recentPosts", result.Summary.RecentPosts,
		"likeUsers", result.Summary.TotalLikeUsers,
	)
	return writeJSON(os.Stdout, result)
}

// recentLikesOptions は設定値の既定をフラグで上書きする
// 未指定のフラグは既定値のまま残る
func recentLikesOptions(defaults scraping.RecentLikesOptions, cmd *cli.Command) scraping.RecentLikesOptions {
	opts := defaults
	if cmd.IsSet("max-posts") {
		opts.MaxPosts = cmd.Int("max-posts")
	}
	if cmd.IsSet("window-hours") {
		opts.WindowHours = cmd.Int("window-hours")
	}
	if cmd.IsSet("max-users") {
		opts.MaxLikeUsersPerPost = cmd.Int("max-users")
	}
	if cmd.IsSet("enrich") {
		opts.CollectLikerProfiles = cmd.Bool("enrich")
	}
	opts.PersistLikers = cmd.Bool("persist")
	return opts
}
