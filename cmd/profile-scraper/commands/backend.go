package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/profile-scraper/internal/module/automation/adapter/browserless"
)

// healthRow はヘルスチェック結果の1行
type healthRow struct {
	Component string
	OK        bool
	Detail    string
}

// BackendHealthAction はブラウザ自動化バックエンドとDBの疎通を確認するコマンドのアクション
func BackendHealthAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	rows := []healthRow{
		{Component: "browserless", OK: c.Automation.HealthCheck(ctx), Detail: appCtx.Config.Browserless.Host},
		{Component: "database", OK: c.Database.HealthCheck(ctx), Detail: appCtx.Config.Database.DBName},
	}
	if client, ok := c.Automation.(*browserless.Client); ok {
		rows = append(rows, healthRow{Component: "limiter", OK: true, Detail: client.Limiter().Status().String()})
	}

	renderHealth(os.Stdout, rows)

	for _, row := range rows {
		if !row.OK {
			return fmt.Errorf("%s への接続に失敗しました", row.Component)
		}
	}
	return nil
}

func renderHealth(w io.Writer, rows []healthRow) {
	table := tablewriter.NewWriter(w)
	table.Header("Component", "Status", "Detail")
	for _, row := range rows {
		status := "OK"
		if !row.OK {
			status = "NG"
		}
		table.Append(row.Component, status, row.Detail)
	}
	table.Render()
}
