package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration は必須設定（認証情報・エンドポイント）が欠けている場合のエラー
	ErrConfiguration = errors.New("configuration error")

	// ErrConnectivity はストレージまたは計算エンドポイントに到達できない場合のエラー
	ErrConnectivity = errors.New("connectivity error")

	// ErrSubmission は計算サービスがジョブIDを返さなかった、または投入を拒否した場合のエラー
	ErrSubmission = errors.New("submission error")

	// ErrPollingFailure はステータス確認中の一時的な失敗を表します
	ErrPollingFailure = errors.New("polling failure")

	// ErrPollingTimeout はポーリングの待機時間を使い切った場合のエラー
	ErrPollingTimeout = errors.New("polling timeout")

	// ErrPersistence は成果物の書き込み失敗を表します
	ErrPersistence = errors.New("persistence warning")

	// ErrParse は保存済みメタデータが解析できない場合のエラー
	ErrParse = errors.New("parse error")

	// ErrJobNotFound はレジストリにジョブが存在しない場合のエラー
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJobID はジョブIDが空の場合のエラー
	ErrInvalidJobID = errors.New("job id is required")

	// ErrInvalidOptions は文字起こし設定が範囲外の場合のエラー
	ErrInvalidOptions = errors.New("invalid options")

	// ErrObjectNotFound はストレージにオブジェクトが存在しない場合のエラー
	ErrObjectNotFound = errors.New("object not found")

	// ErrStopWalk は Walk のコールバックから返すと走査を途中で終了します
	ErrStopWalk = errors.New("stop walk")
)

// PersistenceWarning は個々の成果物の書き込み失敗を表します。
// ジョブの状態には影響しません。
type PersistenceWarning struct {
	Artifact string
	Key      string
	Err      error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("failed to write %s (%s): %v", w.Artifact, w.Key, w.Err)
}

// Unwrap は errors.Is(w, ErrPersistence) と元のエラーの両方を満たすようにします
func (w *PersistenceWarning) Unwrap() []error {
	return []error{ErrPersistence, w.Err}
}
