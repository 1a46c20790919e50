package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// JobSubmitAction は音声をアップロードして文字起こしジョブを投入するコマンドのアクション
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	path := cmd.String("file")
	noWait := cmd.Bool("no-wait")

	opts := domain.DefaultOptions()
	opts.EditorName = strings.TrimSpace(cmd.String("editor"))
	opts.VADFilter = cmd.Bool("vad")
	opts.MaxWordsPerLine = int(cmd.Int("max-words"))
	if lang := strings.TrimSpace(cmd.String("language")); lang != "" {
		opts.Language = lang
	}
	if opts.EditorName == "" {
		return fmt.Errorf("--editor は必須です")
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("バリデーションエラー: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("音声ファイルの読み込みに失敗: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	session, err := appCtx.Container.NewSession(ctx)
	if err != nil {
		return err
	}

	filename := filepath.Base(path)
	slog.Info("ジョブ投入を開始", "filename", filename, "bytes", len(data))

	job, err := session.Jobs.UploadAndSubmit(ctx, data, filename, opts)
	if err != nil {
		return fmt.Errorf("ジョブの投入に失敗: %w", err)
	}

	w := output(cmd)
	fmt.Fprintf(w, "✓ ジョブを投入しました: %s\n", job.JobID)
	if noWait {
		return nil
	}

	job, err = session.Jobs.Poll(ctx, job.JobID, appCtx.Container.PollOptions())
	if err != nil {
		if errors.Is(err, domain.ErrPollingTimeout) {
			return fmt.Errorf("ジョブ %s は待機上限までに完了しませんでした。`job status --job-id %s --filename %s` で確認してください: %w",
				job.JobID, job.JobID, filename, err)
		}
		return fmt.Errorf("ジョブの待機に失敗: %w", err)
	}

	renderJobDetail(w, job)
	return nil
}

// JobStatusAction はジョブの状態を1回確認するコマンドのアクション
func JobStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	jobID := strings.TrimSpace(cmd.String("job-id"))
	filename := strings.TrimSpace(cmd.String("filename"))

	if jobID == "" {
		return fmt.Errorf("--job-id は必須です")
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	session, err := appCtx.Container.NewSession(ctx)
	if err != nil {
		return err
	}

	// ライブラリに無いジョブはファイル名が分かれば追跡を再開できる
	if _, err := session.Registry.Get(jobID); errors.Is(err, domain.ErrJobNotFound) && filename != "" {
		session.Registry.Restore(&domain.JobRecord{
			JobID:     jobID,
			Filename:  filename,
			Status:    domain.JobStatusUnknown,
			CreatedAt: time.Now(),
			Options:   domain.DefaultOptions(),
		})
	}

	result, err := session.Jobs.Check(ctx, jobID)
	if err != nil {
		return fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
	}

	w := output(cmd)
	renderJobDetail(w, result.Job)
	if result.PollErr != nil {
		fmt.Fprintf(w, "⚠ 状態の問い合わせに失敗しました（前回の状態を表示しています）: %v\n", result.PollErr)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ %v\n", warning)
	}
	return nil
}
