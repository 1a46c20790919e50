package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	httpapi "github.com/jinford/srt-generator/internal/interface/http"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	port := int(cmd.Int("port"))

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(appCtx.Container, port)
	if err := server.Run(ctx); err != nil {
		slog.Error("HTTPサーバが異常終了しました", "error", err)
		return err
	}

	slog.Info("HTTPサーバを停止しました")
	return nil
}
