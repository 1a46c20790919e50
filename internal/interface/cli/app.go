package cli

import (
	"github.com/urfave/cli/v3"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

// NewApp はコマンドツリーを組み立てる
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "srt-generator",
		Usage: "音声ファイルから字幕 (SRT) とテキストを生成する文字起こしツール",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数またはデフォルトの8080）",
							},
						},
						Action: ServerStartAction,
					},
				},
			},
			{
				Name:  "job",
				Usage: "文字起こしジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: "音声ファイルをアップロードしてジョブを投入",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "音声ファイルパス (mp3/wav)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "editor",
								Usage:    "編集者名",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "vad",
								Usage: "無音区間の除去 (VAD) を有効にする",
								Value: true,
							},
							&cli.IntFlag{
								Name:  "max-words",
								Usage: "1行あたりの最大単語数",
								Value: domain.DefaultMaxWordsPerLine,
							},
							&cli.StringFlag{
								Name:  "language",
								Usage: "言語コード",
								Value: domain.DefaultLanguage,
							},
							&cli.BoolFlag{
								Name:  "no-wait",
								Usage: "投入後に完了を待たない",
							},
						},
						Action: JobSubmitAction,
					},
					{
						Name:  "status",
						Usage: "ジョブの状態を確認",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "job-id",
								Usage:    "Job ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "filename",
								Usage: "ライブラリに無いジョブを追跡する場合の元ファイル名",
							},
						},
						Action: JobStatusAction,
					},
				},
			},
			{
				Name:  "library",
				Usage: "保存済み文字起こしコマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "保存済みの文字起こし一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数の上限",
							},
						},
						Action: LibraryListAction,
					},
				},
			},
			{
				Name:  "feedback",
				Usage: "フィードバック管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "record",
						Usage: "フィードバックを記録",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "interactive",
								Usage: "インタラクティブモードで入力",
							},
							&cli.StringFlag{
								Name:  "filename",
								Usage: "対象の音声ファイル名",
							},
							&cli.StringFlag{
								Name:  "user",
								Usage: "ユーザー名",
							},
							&cli.StringFlag{
								Name:  "text",
								Usage: "フィードバック本文",
							},
							&cli.StringFlag{
								Name:  "job-id",
								Usage: "関連する Job ID",
							},
						},
						Action: FeedbackRecordAction,
					},
					{
						Name:  "list",
						Usage: "フィードバック一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "filename",
								Usage: "ファイル名でフィルタ（部分一致）",
							},
							&cli.StringFlag{
								Name:  "user",
								Usage: "ユーザー名でフィルタ（部分一致）",
							},
							&cli.StringFlag{
								Name:  "text",
								Usage: "本文でフィルタ（部分一致）",
							},
							&cli.StringFlag{
								Name:  "sort",
								Usage: "並び順 (created_at/filename/username)",
								Value: "created_at",
							},
							&cli.BoolFlag{
								Name:  "asc",
								Usage: "昇順で表示",
							},
						},
						Action: FeedbackListAction,
					},
				},
			},
			{
				Name:  "storage",
				Usage: "ストレージ保守コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "領域内のオブジェクトを表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "section",
								Usage:    "領域 (uploads/transcriptions/feedback)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "ファイル名でフィルタ（部分一致）",
							},
						},
						Action: StorageListAction,
					},
					{
						Name:  "delete",
						Usage: "領域内のオブジェクトを削除",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "section",
								Usage:    "領域 (uploads/transcriptions/feedback)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "ファイル名でフィルタ（部分一致）",
							},
							&cli.BoolFlag{
								Name:  "dry-run",
								Usage: "削除せず対象のみ表示",
							},
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "確認せずに削除",
							},
						},
						Action: StorageDeleteAction,
					},
				},
			},
		},
	}
}
