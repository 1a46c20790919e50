package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// StorageListAction はストレージ領域のオブジェクト一覧を表示するコマンドのアクション
func StorageListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")

	section, err := domain.ParseSection(cmd.String("section"))
	if err != nil {
		return err
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}

	objects, err := appCtx.Container.Maintenance.List(ctx, section, name)
	if err != nil {
		return fmt.Errorf("オブジェクト一覧の取得に失敗: %w", err)
	}

	w := output(cmd)
	if len(objects) == 0 {
		fmt.Fprintln(w, "オブジェクトはありません")
		return nil
	}
	renderObjectsTable(w, objects)
	return nil
}

// StorageDeleteAction はストレージ領域のオブジェクトを削除するコマンドのアクション
func StorageDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")
	dryRun := cmd.Bool("dry-run")
	yes := cmd.Bool("yes")

	section, err := domain.ParseSection(cmd.String("section"))
	if err != nil {
		return err
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}

	objects, err := appCtx.Container.Maintenance.List(ctx, section, name)
	if err != nil {
		return fmt.Errorf("オブジェクト一覧の取得に失敗: %w", err)
	}

	w := output(cmd)
	if len(objects) == 0 {
		fmt.Fprintln(w, "削除対象はありません")
		return nil
	}
	renderObjectsTable(w, objects)

	if !dryRun && !yes {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("%d 件を削除しますか", len(objects)),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				fmt.Fprintln(w, "削除を中止しました")
				return nil
			}
			return fmt.Errorf("入力エラー: %w", err)
		}
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	report, err := appCtx.Container.Maintenance.Delete(ctx, keys, dryRun)
	if report != nil {
		renderDeleteReport(w, report)
	}
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗: %w", err)
	}
	return nil
}
