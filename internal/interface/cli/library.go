package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// LibraryListAction は保存済みの文字起こし一覧を表示するコマンドのアクション
func LibraryListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	limit := int(cmd.Int("limit"))

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	session, err := appCtx.Container.NewSession(ctx)
	if err != nil {
		return err
	}

	jobs := session.Registry.ListAll()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	w := output(cmd)
	if len(jobs) == 0 {
		fmt.Fprintln(w, "文字起こしはありません")
		return nil
	}
	renderJobsTable(w, jobs)
	if session.Bootstrap != nil && session.Bootstrap.LimitReached {
		fmt.Fprintf(w, "※ スキャン上限 (%d) に達したため一部のみ表示しています\n", appCtx.Config.LibraryScanLimit)
	}
	return nil
}
