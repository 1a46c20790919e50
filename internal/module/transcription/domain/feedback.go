package domain

import (
	"strings"
	"time"
)

// FeedbackRecord はファイルとユーザーに紐づく自由記述のフィードバックです
type FeedbackRecord struct {
	JobID     string    `json:"job_id,omitempty"`
	Filename  string    `json:"filename"`
	Username  string    `json:"username"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`

	// Key は一覧取得時に読み込んだオブジェクトのキー
	Key string `json:"-"`
}

// FeedbackFilter はフィードバック一覧の絞り込み条件（部分一致・大文字小文字を区別しない）
type FeedbackFilter struct {
	Filename string
	Username string
	Text     string
}

// Matches はレコードが条件を満たすかを返します
func (f FeedbackFilter) Matches(r *FeedbackRecord) bool {
	return containsFold(r.Filename, f.Filename) &&
		containsFold(r.Username, f.Username) &&
		containsFold(r.Feedback, f.Text)
}

func containsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
