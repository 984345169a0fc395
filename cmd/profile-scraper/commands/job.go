package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	jobapp "github.com/jinford/profile-scraper/internal/module/job/application"
	jobdomain "github.com/jinford/profile-scraper/internal/module/job/domain"
)

// JobStatusAction はジョブの状態を表示するコマンドのアクション
func JobStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("ジョブIDが不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job, err := appCtx.Container.Jobs.Status(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
	}

	renderJobDetail(os.Stdout, job)
	return nil
}

// JobRunAction は登録済みのジョブをこのプロセスで実行するコマンドのアクション
func JobRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("ジョブIDが不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Jobs.Run(ctx, id); err != nil {
		return fmt.Errorf("ジョブの実行に失敗: %w", err)
	}

	job, err := appCtx.Container.Jobs.Status(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
	}
	renderJobDetail(os.Stdout, job)
	return nil
}

// JobResultsAction は完了したジョブの結果を表示するコマンドのアクション
func JobResultsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	asJSON := cmd.Bool("json")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("ジョブIDが不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.Jobs.Results(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブ結果の取得に失敗: %w", err)
	}

	if asJSON {
		return writeJSON(os.Stdout, result)
	}
	renderResultTree(os.Stdout, result)
	return nil
}

// JobListAction は最近のジョブ一覧を表示するコマンドのアクション
func JobListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	limit := cmd.Int("limit")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobs, err := appCtx.Container.Jobs.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("ジョブ一覧の取得に失敗: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("ジョブがありません")
		return nil
	}
	renderJobTable(os.Stdout, jobs)
	return nil
}

func renderJobTable(w io.Writer, jobs []*jobdomain.Job) {
	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Profile URL", "Status", "Posts", "Interactions", "Created At")
	for _, job := range jobs {
		table.Append(
			job.ID.String(),
			job.ProfileURL,
			string(job.Status),
			fmt.Sprintf("%d", job.PostsScraped),
			fmt.Sprintf("%d", job.InteractionsScraped),
			job.CreatedAt.Format(time.DateTime),
		)
	}
	table.Render()
}

func renderJobDetail(w io.Writer, job *jobdomain.Job) {
	table := tablewriter.NewWriter(w)
	table.Header("項目", "値")
	table.Append("ジョブID", job.ID.String())
	table.Append("プロフィールURL", job.ProfileURL)
	table.Append("状態", string(job.Status))
	table.Append("投稿数", fmt.Sprintf("%d", job.PostsScraped))
	table.Append("インタラクション数", fmt.Sprintf("%d", job.InteractionsScraped))
	table.Append("登録日時", job.CreatedAt.Format(time.DateTime))
	if job.StartedAt != nil {
		table.Append("開始日時", job.StartedAt.Format(time.DateTime))
	}
	if job.CompletedAt != nil {
		table.Append("終了日時", job.CompletedAt.Format(time.DateTime))
	}
	if job.ErrorMessage != nil {
		table.Append("エラー", *job.ErrorMessage)
	}
	table.Render()
}

func renderResultTree(w io.Writer, result *jobapp.Result) {
	profile := result.Tree.Profile
	fmt.Fprintf(w, "@%s (%s) 投稿 %d 件 / インタラクション %d 件\n",
		profile.Username, profile.URL, result.Tree.TotalPosts, result.Tree.TotalInteractions)

	table := tablewriter.NewWriter(w)
	table.Header("Post URL", "Type", "User", "Detail")
	for _, post := range result.Tree.Posts {
		if len(post.Interactions) == 0 {
			table.Append(post.Post.PostURL, "-", "-", "-")
			continue
		}
		for _, i := range post.Interactions {
			detail := ""
			switch {
			case i.AggregateCount != nil:
				detail = fmt.Sprintf("%d 件", *i.AggregateCount)
			case i.CommentText != nil:
				detail = *i.CommentText
			}
			table.Append(post.Post.PostURL, string(i.Type), i.UserUsername, detail)
		}
	}
	table.Render()
}
