package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const contentTypeFeedback = "application/json; charset=utf-8"

// DefaultFeedbackListLimit は一覧取得で読み込むフィードバック数の上限です
const DefaultFeedbackListLimit = 5000

// FeedbackSort はフィードバック一覧の並び順です
type FeedbackSort string

const (
	FeedbackSortCreatedAt FeedbackSort = "created_at"
	FeedbackSortFilename  FeedbackSort = "filename"
	FeedbackSortUsername  FeedbackSort = "username"
)

// FeedbackRecorder はフィードバックを決定的なキーで保存します
type FeedbackRecorder struct {
	store  domain.ObjectStore
	layout domain.Layout
	log    *slog.Logger
	now    func() time.Time
}

// NewFeedbackRecorder は新しい FeedbackRecorder を作成します
func NewFeedbackRecorder(store domain.ObjectStore, layout domain.Layout, log *slog.Logger) *FeedbackRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &FeedbackRecorder{
		store:  store,
		layout: layout,
		log:    log,
		now:    time.Now,
	}
}

// Record はフィードバックを feedback/<slug(filename)>-<slug(username)> に上書き保存し、保存先を返します
func (f *FeedbackRecorder) Record(ctx context.Context, filename, username, text, jobID string) (string, error) {
	record := domain.FeedbackRecord{
		JobID:     jobID,
		Filename:  filename,
		Username:  username,
		Feedback:  text,
		CreatedAt: f.now().UTC(),
	}

	body, err := encodeJSON(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode feedback: %w", err)
	}

	key := f.layout.FeedbackKey(filename, username)
	location, err := f.store.Put(ctx, key, body, contentTypeFeedback)
	if err != nil {
		f.log.Error("Failed to save feedback",
			"key", key,
			"error", err,
		)
		return "", fmt.Errorf("failed to save feedback: %w", err)
	}

	f.log.Info("Feedback recorded", "key", key, "jobID", jobID)
	return location, nil
}

// FeedbackQuery はフィードバック一覧の取得条件です
type FeedbackQuery struct {
	Filter    domain.FeedbackFilter
	SortBy    FeedbackSort
	Ascending bool
	Limit     int
}

// List は現行と旧レイアウトのフィードバックを読み込み、絞り込みと並べ替えを行います
func (f *FeedbackRecorder) List(ctx context.Context, query FeedbackQuery) ([]*domain.FeedbackRecord, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultFeedbackListLimit
	}

	var keys []string
	for _, prefix := range f.layout.SectionPrefixes(domain.SectionFeedback) {
		err := f.store.Walk(ctx, prefix, func(obj domain.ObjectInfo) error {
			if strings.HasSuffix(obj.Key, "/") {
				return nil
			}
			keys = append(keys, obj.Key)
			if len(keys) >= limit {
				return domain.ErrStopWalk
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list feedback under %s: %w", prefix, err)
		}
		if len(keys) >= limit {
			break
		}
	}

	records := make([]*domain.FeedbackRecord, 0, len(keys))
	for _, key := range keys {
		data, err := f.store.Get(ctx, key)
		if err != nil {
			f.log.Warn("Failed to read feedback", "key", key, "error", err)
			continue
		}
		var record domain.FeedbackRecord
		if err := json.Unmarshal(data, &record); err != nil {
			f.log.Debug("Skipped unreadable feedback", "key", key, "error", err)
			continue
		}
		record.Key = key
		if query.Filter.Matches(&record) {
			records = append(records, &record)
		}
	}

	sortFeedback(records, query.SortBy, query.Ascending)
	return records, nil
}

func sortFeedback(records []*domain.FeedbackRecord, by FeedbackSort, ascending bool) {
	less := func(a, b *domain.FeedbackRecord) bool {
		switch by {
		case FeedbackSortFilename:
			return strings.ToLower(a.Filename) < strings.ToLower(b.Filename)
		case FeedbackSortUsername:
			return strings.ToLower(a.Username) < strings.ToLower(b.Username)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if ascending {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}
