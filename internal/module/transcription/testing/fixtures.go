package testing

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// TestBucket はテストで使うバケット名です
const TestBucket = "test-volume"

// TestSRT は1字幕ブロックだけの SRT です
const TestSRT = "1\n00:00:00,000 --> 00:00:01,500\nhello world\n"

// TestTXT は TestSRT に対応するプレーンテキストです
const TestTXT = "hello world"

// NopLogger は出力しないロガーを返します
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestOutput は txt と srt を含む結果を生成します
func TestOutput() *domain.Output {
	raw, _ := json.Marshal(map[string]string{"txt": TestTXT, "srt": TestSRT})
	out, _ := domain.ParseOutput(raw)
	return out
}

// Report は指定した状態のステータス報告を生成します
func Report(status domain.JobStatus, output *domain.Output) *domain.StatusReport {
	return &domain.StatusReport{Status: status, RawStatus: string(status), Output: output}
}
