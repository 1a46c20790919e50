package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// === Job集約 ===

// JobStatus は計算サービスが報告するジョブの状態を表します
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
	JobStatusUnknown    JobStatus = "UNKNOWN"
)

// ParseJobStatus は計算サービスの状態文字列を JobStatus に変換します。
// 認識できない値は JobStatusUnknown になります。
func ParseJobStatus(raw string) JobStatus {
	switch s := JobStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case JobStatusQueued, JobStatusInProgress, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return s
	case "IN_QUEUE":
		return JobStatusQueued
	case "TIMED_OUT":
		return JobStatusFailed
	default:
		return JobStatusUnknown
	}
}

// IsTerminal は終端状態かどうかを返します
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// rank は状態機械上の進行度を返します。UNKNOWN は -1
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusInProgress:
		return 1
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return 2
	default:
		return -1
	}
}

// NextStatus は現在の状態にポーリング結果を適用した後の状態を返します。
// 状態は前進のみで、UNKNOWN が既知の状態を上書きすることはありません。
func NextStatus(current, observed JobStatus) JobStatus {
	if observed.rank() < 0 {
		if current == "" {
			return JobStatusUnknown
		}
		return current
	}
	if current.IsTerminal() && !observed.IsTerminal() {
		return current
	}
	if observed.rank() < current.rank() {
		return current
	}
	return observed
}

// Flag はワーカーとの互換のため "True"/"False" 文字列として送受信される真偽値です
type Flag bool

// MarshalJSON は Flag を "True" / "False" にエンコードします
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"True"`), nil
	}
	return []byte(`"False"`), nil
}

// UnmarshalJSON は真偽値と文字列表現の両方を受け付けます
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid flag value %s: %w", string(data), err)
	}
	if s == nil {
		*f = false
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

const (
	DefaultLanguage        = "en"
	DefaultMaxWordsPerLine = 7
	MinWordsPerLine        = 3
	MaxWordsPerLine        = 12
)

// Options は投入時に指定された文字起こし設定です
type Options struct {
	Language        string `json:"language"`
	VADFilter       bool   `json:"vad_filter"`
	MaxWordsPerLine int    `json:"max_words_per_line"`
	GenerateSRT     Flag   `json:"generate_srt"`
	GenerateTXT     Flag   `json:"generate_txt"`
	Extension       string `json:"extension"`
	EditorName      string `json:"editor_name"`
}

// DefaultOptions はデフォルトの文字起こし設定を返します
func DefaultOptions() Options {
	return Options{
		Language:        DefaultLanguage,
		VADFilter:       true,
		MaxWordsPerLine: DefaultMaxWordsPerLine,
		GenerateSRT:     true,
		GenerateTXT:     true,
	}
}

// Validate は設定値の範囲を検証します
func (o Options) Validate() error {
	if strings.TrimSpace(o.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrInvalidOptions)
	}
	if o.MaxWordsPerLine < MinWordsPerLine || o.MaxWordsPerLine > MaxWordsPerLine {
		return fmt.Errorf("%w: max_words_per_line must be between %d and %d, got %d", ErrInvalidOptions, MinWordsPerLine, MaxWordsPerLine, o.MaxWordsPerLine)
	}
	return nil
}

// SourceLocation はアップロード済み音声オブジェクトの参照です
type SourceLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// URI は s3:// 形式の参照を返します
func (l SourceLocation) URI() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// Output は計算サービスが返した結果です。Raw は受信したままの構造を保持します。
type Output struct {
	TXT string          `json:"txt,omitempty"`
	SRT string          `json:"srt,omitempty"`
	Raw json.RawMessage `json:"-"`
}

// ParseOutput は結果のJSONを検証して Output に変換します。
// null / 空オブジェクトは nil を返し、オブジェクト以外は ErrParse になります。
func ParseOutput(raw json.RawMessage) (*Output, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: output is not an object: %v", ErrParse, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	out := &Output{Raw: append(json.RawMessage(nil), raw...)}
	// 文字列以外の txt/srt は存在しないものとして扱う
	if v, ok := fields["txt"]; ok {
		_ = json.Unmarshal(v, &out.TXT)
	}
	if v, ok := fields["srt"]; ok {
		_ = json.Unmarshal(v, &out.SRT)
	}
	return out, nil
}

// RawJSON は output.json に書き込む内容を返します
func (o *Output) RawJSON() json.RawMessage {
	if o == nil {
		return json.RawMessage("{}")
	}
	if len(o.Raw) > 0 {
		return o.Raw
	}
	b, err := json.Marshal(o)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func (o *Output) clone() *Output {
	if o == nil {
		return nil
	}
	c := *o
	c.Raw = append(json.RawMessage(nil), o.Raw...)
	return &c
}

// 成果物の名前
const (
	ArtifactMeta       = "meta"
	ArtifactOutputJSON = "output_json"
	ArtifactSRT        = "srt"
	ArtifactTXT        = "txt"
)

// JobRecord は投入された1件の文字起こしリクエストを表します
type JobRecord struct {
	JobID    string         `json:"job_id"`
	Filename string         `json:"filename"`
	Source   SourceLocation `json:"source"`
	Status   JobStatus      `json:"status"`
	Output   *Output        `json:"output,omitempty"`
	// PersistedLocations は成果物名からストレージ上の場所への対応。
	// nil の間は未保存で、値があれば再保存しません。
	PersistedLocations map[string]string `json:"persisted_locations,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	Options            Options           `json:"options"`
}

// IsPersisted は成果物の保存が済んでいるかを返します
func (j *JobRecord) IsPersisted() bool {
	return j.PersistedLocations != nil
}

// Clone はレジストリ外へ渡すためのコピーを返します
func (j *JobRecord) Clone() *JobRecord {
	if j == nil {
		return nil
	}
	c := *j
	c.Output = j.Output.clone()
	if j.PersistedLocations != nil {
		c.PersistedLocations = maps.Clone(j.PersistedLocations)
	}
	return &c
}
