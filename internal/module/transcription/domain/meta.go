package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EpochTime は meta.json の created_at（UNIX秒の浮動小数点）を表します。
// 読み込み時は数値・数値文字列・RFC3339文字列を受け付けます。
type EpochTime struct {
	time.Time
}

// MarshalJSON はマイクロ秒精度のUNIX秒として出力します
func (t EpochTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	secs := float64(t.UnixMicro()) / 1e6
	return []byte(strconv.FormatFloat(secs, 'f', -1, 64)), nil
}

// UnmarshalJSON は複数の表現を受け付けます
func (t *EpochTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			t.Time = time.Time{}
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, str); err == nil {
			t.Time = parsed
			return nil
		}
		s = str
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(frac*1e9)).UTC()
	return nil
}

// ArtifactSizes は txt/srt のバイト長です
type ArtifactSizes struct {
	TXTLen int `json:"txt_len"`
	SRTLen int `json:"srt_len"`
}

// MetaJobID は meta.json の job_id です。文字列と数値のどちらも受け付けます。
type MetaJobID string

// UnmarshalJSON は数値の job_id を文字列に変換します
func (id *MetaJobID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = MetaJobID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid job_id %s: %w", s, err)
	}
	*id = MetaJobID(n.String())
	return nil
}

// MetaDocument は meta.json のスキーマです
type MetaDocument struct {
	JobID        MetaJobID     `json:"job_id"`
	Filename     string        `json:"filename"`
	CreatedAt    EpochTime     `json:"created_at"`
	Status       JobStatus     `json:"status"`
	SourceBucket string        `json:"source_bucket"`
	SourceKey    string        `json:"source_key"`
	Options      Options       `json:"options"`
	Sizes        ArtifactSizes `json:"sizes"`
}

// NewMetaDocument はジョブ記録から meta.json の内容を作成します
func NewMetaDocument(job *JobRecord, output *Output) MetaDocument {
	meta := MetaDocument{
		JobID:        MetaJobID(job.JobID),
		Filename:     job.Filename,
		CreatedAt:    EpochTime{job.CreatedAt},
		Status:       job.Status,
		SourceBucket: job.Source.Bucket,
		SourceKey:    job.Source.Key,
		Options:      job.Options,
	}
	if output != nil {
		meta.Sizes = ArtifactSizes{
			TXTLen: len(output.TXT),
			SRTLen: len(output.SRT),
		}
	}
	return meta
}
