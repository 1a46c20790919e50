package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// feedbackInput はフィードバック記録の入力
type feedbackInput struct {
	Filename string
	Username string
	Text     string
	JobID    string
}

func (in feedbackInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Filename) == "" {
		missing = append(missing, "filename")
	}
	if strings.TrimSpace(in.Username) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(in.Text) == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s は必須です", strings.Join(missing, ", "))
	}
	return nil
}

// FeedbackRecordAction はフィードバックを記録するコマンドのアクション
func FeedbackRecordAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	interactive := cmd.Bool("interactive")

	var (
		input feedbackInput
		err   error
	)
	if interactive {
		// インタラクティブモード
		input, err = promptFeedback()
		if err != nil {
			return fmt.Errorf("入力エラー: %w", err)
		}
	} else {
		// フラグベースモード
		input = feedbackInput{
			Filename: cmd.String("filename"),
			Username: cmd.String("user"),
			Text:     cmd.String("text"),
			JobID:    cmd.String("job-id"),
		}
	}

	// バリデーション
	if err := input.validate(); err != nil {
		return fmt.Errorf("バリデーションエラー: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}

	location, err := appCtx.Container.Feedback.Record(ctx, input.Filename, input.Username, input.Text, strings.TrimSpace(input.JobID))
	if err != nil {
		return fmt.Errorf("フィードバックの記録に失敗: %w", err)
	}

	w := output(cmd)
	fmt.Fprintf(w, "✓ フィードバックを記録しました\n")
	fmt.Fprintf(w, "  Location: %s\n", location)

	slog.Info("フィードバックを記録", "location", location)
	return nil
}

// FeedbackListAction はフィードバック一覧を表示するコマンドのアクション
func FeedbackListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	sortBy, err := parseFeedbackSort(cmd.String("sort"))
	if err != nil {
		return err
	}
	query := application.FeedbackQuery{
		Filter: domain.FeedbackFilter{
			Filename: cmd.String("filename"),
			Username: cmd.String("user"),
			Text:     cmd.String("text"),
		},
		SortBy:    sortBy,
		Ascending: cmd.Bool("asc"),
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}

	records, err := appCtx.Container.Feedback.List(ctx, query)
	if err != nil {
		return fmt.Errorf("フィードバックの取得に失敗: %w", err)
	}

	w := output(cmd)
	if len(records) == 0 {
		fmt.Fprintln(w, "フィードバックはありません")
		return nil
	}
	renderFeedbackTable(w, records)
	return nil
}

func parseFeedbackSort(s string) (application.FeedbackSort, error) {
	switch application.FeedbackSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", application.FeedbackSortCreatedAt:
		return application.FeedbackSortCreatedAt, nil
	case application.FeedbackSortFilename:
		return application.FeedbackSortFilename, nil
	case application.FeedbackSortUsername:
		return application.FeedbackSortUsername, nil
	default:
		return "", fmt.Errorf("--sort は created_at / filename / username のいずれかです: %q", s)
	}
}

// promptFeedback は対話形式でフィードバックを入力させる
func promptFeedback() (feedbackInput, error) {
	notBlank := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("入力してください")
		}
		return nil
	}

	promptFilename := promptui.Prompt{
		Label:    "ファイル名",
		Validate: notBlank,
	}
	filename, err := promptFilename.Run()
	if err != nil {
		return feedbackInput{}, err
	}

	promptUser := promptui.Prompt{
		Label:    "ユーザー名",
		Validate: notBlank,
	}
	username, err := promptUser.Run()
	if err != nil {
		return feedbackInput{}, err
	}

	promptText := promptui.Prompt{
		Label:    "フィードバック",
		Validate: notBlank,
	}
	text, err := promptText.Run()
	if err != nil {
		return feedbackInput{}, err
	}

	promptJobID := promptui.Prompt{
		Label:   "Job ID (オプション)",
		Default: "",
	}
	jobID, err := promptJobID.Run()
	if err != nil {
		return feedbackInput{}, err
	}

	return feedbackInput{
		Filename: filename,
		Username: username,
		Text:     text,
		JobID:    jobID,
	}, nil
}
