package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/profile-scraper/internal/interface/server"
	"github.com/jinford/profile-scraper/internal/platform/container"
)

const shutdownTimeout = 30 * time.Second

// ServerStartAction はHTTP APIサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := cmd.Int("port")
	if port <= 0 {
		port = appCtx.Config.Server.Port
	}

	srv := server.New(serverConfig(appCtx, cmd.String("host"), port), serverDependencies(appCtx.Container), appCtx.Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("サーバの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("サーバを停止しています")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバの停止に失敗: %w", err)
	}

	return drainJobs(appCtx)
}

func serverConfig(appCtx *AppContext, host string, port int) server.Config {
	cfg := appCtx.Config
	return server.Config{
		Host:        host,
		Port:        port,
		APIKeys:     cfg.Server.APIKeys,
		AuthHeader:  cfg.Server.AuthHeader,
		PublicPaths: cfg.Server.PublicPaths,
		RecentLikes: server.RecentLikesDefaults{
			MaxPosts:        cfg.Scraper.RecentLikes.MaxPosts,
			WindowHours:     cfg.Scraper.RecentLikes.WindowHours,
			MaxUsersPerPost: cfg.Scraper.RecentLikes.MaxUsersPerPost,
			Enrich:          cfg.Scraper.RecentLikes.Enrich,
		},
	}
}

func serverDependencies(c *container.Container) server.Dependencies {
	return server.Dependencies{
		Jobs:        c.Jobs,
		Profiles:    c.Results,
		RecentLikes: c.Orchestrator,
		Stores:      c.NewStore,
	}
}
