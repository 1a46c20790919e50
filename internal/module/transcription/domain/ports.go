package domain

import (
	"context"
	"time"
)

// === Object Store Port ===

// ObjectInfo は一覧取得で得られるオブジェクト情報です
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// DeleteError はキー単位の削除失敗です
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

// ObjectStore はキーで管理されるバイト列ストレージのポートです
type ObjectStore interface {
	ObjectReader
	ObjectWriter
	// Location はキーの完全修飾された場所（s3://bucket/key）を返します
	Location(key string) string
	// Bucket は格納先のバケット名を返します
	Bucket() string
}

// ObjectReader はストレージの読み取り操作を定義します
type ObjectReader interface {
	// Get は存在しない場合 ErrObjectNotFound を返します
	Get(ctx context.Context, key string) ([]byte, error)
	// Walk はプレフィックス配下を順に fn へ渡します。fn が ErrStopWalk を返すと正常終了します。
	Walk(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}

// ObjectWriter はストレージの書き込み操作を定義します
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteMany(ctx context.Context, keys []string) (int, []DeleteError, error)
}

// === Compute Submission Port ===

// JobInput は計算サービスへ投入する内容です
type JobInput struct {
	Source          SourceLocation
	Extension       string
	Language        string
	VADFilter       bool
	MaxWordsPerLine int
	GenerateSRT     Flag
	GenerateTXT     Flag
}

// NewJobInput は投入元と設定から JobInput を作成します
func NewJobInput(source SourceLocation, opts Options) JobInput {
	return JobInput{
		Source:          source,
		Extension:       opts.Extension,
		Language:        opts.Language,
		VADFilter:       opts.VADFilter,
		MaxWordsPerLine: opts.MaxWordsPerLine,
		GenerateSRT:     opts.GenerateSRT,
		GenerateTXT:     opts.GenerateTXT,
	}
}

// StatusReport はステータス取得の結果です
type StatusReport struct {
	JobID     string
	Status    JobStatus
	RawStatus string
	Output    *Output
	Error     string
}

// ComputeClient は文字起こし計算サービスのポートです
type ComputeClient interface {
	Submit(ctx context.Context, input JobInput) (string, error)
	Status(ctx context.Context, jobID string) (*StatusReport, error)
}
