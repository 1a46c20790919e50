package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// Registry はセッション中に把握している全ジョブの唯一の情報源です。
// セッションごとに1つ作成し、セッション終了時に破棄します。
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.JobRecord
	compute domain.ComputeClient
	log     *slog.Logger
	now     func() time.Time
}

// NewRegistry は空のレジストリを作成します
func NewRegistry(compute domain.ComputeClient, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		jobs:    make(map[string]*domain.JobRecord),
		compute: compute,
		log:     log,
		now:     time.Now,
	}
}

// Create は QUEUED 状態の新しいジョブを登録します
func (r *Registry) Create(jobID, filename string, source domain.SourceLocation, opts domain.Options) (*domain.JobRecord, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrSubmission, domain.ErrInvalidJobID)
	}

	job := &domain.JobRecord{
		JobID:     jobID,
		Filename:  filename,
		Source:    source,
		Status:    domain.JobStatusQueued,
		CreatedAt: r.now().UTC(),
		Options:   opts,
	}

	r.mu.Lock()
	r.jobs[jobID] = job
	r.mu.Unlock()

	return job.Clone(), nil
}

// Restore は保存済みメタデータから復元したジョブを登録します。
// 同じIDが既にあれば後から登録した方が残ります。
func (r *Registry) Restore(job *domain.JobRecord) {
	if job == nil || job.JobID == "" {
		return
	}
	r.mu.Lock()
	r.jobs[job.JobID] = job.Clone()
	r.mu.Unlock()
}

// Get はジョブのスナップショットを返します
func (r *Registry) Get(jobID string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

// ListAll は作成日時の新しい順にジョブを返します
func (r *Registry) ListAll() []*domain.JobRecord {
	r.mu.RLock()
	jobs := make([]*domain.JobRecord, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Len は登録済みジョブ数を返します
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Refresh は計算サービスに現在の状態を問い合わせ、記録に反映します。
// 問い合わせに失敗した場合は記録を変更せず、ErrPollingFailure を返します。
func (r *Registry) Refresh(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	current, err := r.Get(jobID)
	if err != nil {
		return nil, err
	}

	report, err := r.compute.Status(ctx, jobID)
	if err != nil {
		r.log.Warn("Failed to refresh job status",
			"jobID", jobID,
			"error", err,
		)
		return current, fmt.Errorf("%w: %w", domain.ErrPollingFailure, err)
	}

	return r.apply(jobID, report)
}

// apply はポーリング結果をマージします
func (r *Registry) apply(jobID string, report *domain.StatusReport) (*domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	next := domain.NextStatus(job.Status, report.Status)
	if next != job.Status {
		r.log.Info("Job status changed",
			"jobID", jobID,
			"from", job.Status,
			"to", next,
		)
	} else if report.Status != job.Status {
		r.log.Debug("Ignored status observation",
			"jobID", jobID,
			"current", job.Status,
			"observed", report.RawStatus,
		)
	}
	job.Status = next

	if report.Output != nil {
		job.Output = report.Output
	}

	return job.Clone(), nil
}

// MarkPersisted は成果物の保存先を記録します。記録は1回だけで、2回目以降は false を返します。
func (r *Registry) MarkPersisted(jobID string, locations map[string]string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if job.PersistedLocations != nil {
		return false, nil
	}

	job.PersistedLocations = make(map[string]string, len(locations))
	for name, loc := range locations {
		job.PersistedLocations[name] = loc
	}
	return true, nil
}

// SetOutput は遅延読み込みした結果を記録します
func (r *Registry) SetOutput(jobID string, output *domain.Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	job.Output = output
	return nil
}
