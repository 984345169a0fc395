package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// ScheduleStartAction は設定されたプロフィールの定期スクレイピングを開始するコマンドのアクション
// シグナルを受けるまでブロックし、停止時は実行中のジョブの完了を待つ
func ScheduleStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	runNow := cmd.Bool("run-now")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	scheduler := appCtx.Container.Scheduler

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("スケジューラの起動に失敗: %w", err)
	}
	if runNow {
		jobs := scheduler.RunOnce(ctx)
		slog.Info("初回ジョブを投入しました", "jobs", len(jobs))
	}

	<-ctx.Done()
	slog.Info("スケジューラを停止しています")
	<-scheduler.Stop().Done()

	return drainJobs(appCtx)
}

// drainJobs はバックグラウンドで実行中のジョブの終了を待つ
func drainJobs(appCtx *AppContext) error {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := appCtx.Container.Jobs.Wait(drainCtx); err != nil {
		return fmt.Errorf("実行中ジョブの終了待ちに失敗: %w", err)
	}
	slog.Info("全てのジョブが終了しました")
	return nil
}
