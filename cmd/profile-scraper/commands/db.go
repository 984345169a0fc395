package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/profile-scraper/internal/platform/database"
)

// DBMigrateAction はスキーマを適用するコマンドのアクション
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := database.Migrate(ctx, appCtx.Container.Database.Pool); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	slog.Info("マイグレーションが完了しました")
	return nil
}
