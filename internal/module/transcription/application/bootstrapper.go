package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// DefaultScanLimit は1回の起動で復元するジョブ数の上限です
const DefaultScanLimit = 1000

// BootstrapResult はライブラリ復元の結果です
type BootstrapResult struct {
	Recovered    int
	Skipped      int
	LimitReached bool
}

// LibraryBootstrapper は保存済みの meta.json からレジストリを再構築します
type LibraryBootstrapper struct {
	store  domain.ObjectStore
	layout domain.Layout
	limit  int
	log    *slog.Logger
}

// NewLibraryBootstrapper は新しい LibraryBootstrapper を作成します。limit が0以下ならデフォルト値を使います。
func NewLibraryBootstrapper(store domain.ObjectStore, layout domain.Layout, limit int, log *slog.Logger) *LibraryBootstrapper {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &LibraryBootstrapper{
		store:  store,
		layout: layout,
		limit:  limit,
		log:    log,
	}
}

// Run は現行と旧レイアウトの成果物ディレクトリを走査し、見つかったジョブを registry に登録します。
// 壊れたメタデータは読み飛ばします。
func (b *LibraryBootstrapper) Run(ctx context.Context, registry *Registry) (*BootstrapResult, error) {
	result := &BootstrapResult{}

	for _, prefix := range b.layout.SectionPrefixes(domain.SectionTranscriptions) {
		err := b.store.Walk(ctx, prefix, func(obj domain.ObjectInfo) error {
			if !domain.IsMetaKey(obj.Key) {
				return nil
			}

			job, err := b.recover(ctx, obj)
			if err != nil {
				result.Skipped++
				b.log.Debug("Skipped unreadable job metadata",
					"key", obj.Key,
					"error", err,
				)
				return nil
			}

			registry.Restore(job)
			result.Recovered++
			if result.Recovered >= b.limit {
				result.LimitReached = true
				return domain.ErrStopWalk
			}
			return nil
		})
		if err != nil {
			b.log.Error("Failed to scan job library",
				"prefix", prefix,
				"error", err,
			)
			return result, fmt.Errorf("failed to scan %s: %w", prefix, err)
		}
		if result.LimitReached {
			break
		}
	}

	b.log.Info("Job library bootstrapped",
		"recovered", result.Recovered,
		"skipped", result.Skipped,
		"limitReached", result.LimitReached,
	)

	return result, nil
}

// recover は1件の meta.json からジョブ記録を組み立てます
func (b *LibraryBootstrapper) recover(ctx context.Context, obj domain.ObjectInfo) (*domain.JobRecord, error) {
	data, err := b.store.Get(ctx, obj.Key)
	if err != nil {
		return nil, err
	}

	var meta domain.MetaDocument
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if isEmptyMeta(data) {
		return nil, fmt.Errorf("%w: empty metadata", domain.ErrParse)
	}

	dir := strings.TrimSuffix(obj.Key, "/meta.json")
	dirName := dir[strings.LastIndex(dir, "/")+1:]

	jobID := strings.TrimSpace(string(meta.JobID))
	if jobID == "" {
		jobID = dirName[strings.LastIndex(dirName, "_")+1:]
	}
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id cannot be derived from %s", domain.ErrParse, obj.Key)
	}

	filename := meta.Filename
	if filename == "" {
		filename = dirName
	}

	status := domain.JobStatusCompleted
	if meta.Status != "" {
		status = domain.ParseJobStatus(string(meta.Status))
	}

	createdAt := meta.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = obj.LastModified
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	bucket := meta.SourceBucket
	if bucket == "" {
		bucket = b.store.Bucket()
	}

	return &domain.JobRecord{
		JobID:              jobID,
		Filename:           filename,
		Source:             domain.SourceLocation{Bucket: bucket, Key: meta.SourceKey},
		Status:             status,
		PersistedLocations: domain.ArtifactLocations(b.store.Location, domain.ArtifactKeys(dir, filename)),
		CreatedAt:          createdAt,
		Options:            meta.Options,
	}, nil
}

func isEmptyMeta(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return true
	}
	return len(fields) == 0
}

// IsBootstrapFatal は起動を止めるべき失敗かどうかを返します
func IsBootstrapFatal(err error) bool {
	return errors.Is(err, domain.ErrConnectivity) || errors.Is(err, domain.ErrConfiguration)
}
