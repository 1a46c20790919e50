package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollMaxWait  = 20 * time.Minute
)

// ErrUnsupportedFile はアップロードできない拡張子の場合のエラー
var ErrUnsupportedFile = errors.New("unsupported audio file type")

var supportedExtensions = map[string]string{
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
}

// PollOptions はポーリングの間隔と待機上限です
type PollOptions struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// CheckResult は1回のステータス確認の結果です
type CheckResult struct {
	Job      *domain.JobRecord
	Terminal bool
	// PollErr は一時的な確認失敗。直前の状態は保持されています。
	PollErr error
	// Warnings は成果物保存時の警告
	Warnings []error
}

// JobService はアップロードから投入・状態確認・成果物保存までのユースケースを提供します
type JobService struct {
	registry  *Registry
	compute   domain.ComputeClient
	store     domain.ObjectStore
	persister *ArtifactPersister
	layout    domain.Layout
	log       *slog.Logger
	now       func() time.Time
}

// NewJobService は新しい JobService を作成します
func NewJobService(
	registry *Registry,
	compute domain.ComputeClient,
	store domain.ObjectStore,
	persister *ArtifactPersister,
	layout domain.Layout,
	log *slog.Logger,
) *JobService {
	if log == nil {
		log = slog.Default()
	}
	return &JobService{
		registry:  registry,
		compute:   compute,
		store:     store,
		persister: persister,
		layout:    layout,
		log:       log,
		now:       time.Now,
	}
}

// Registry はこのサービスが使うレジストリを返します
func (s *JobService) Registry() *Registry {
	return s.registry
}

// Upload は音声を uploads/<uuid>_<filename> に保存します
func (s *JobService) Upload(ctx context.Context, data []byte, filename string) (domain.SourceLocation, error) {
	ext := domain.Extension(filename)
	fallback, ok := supportedExtensions[ext]
	if !ok {
		return domain.SourceLocation{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}
	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = fallback
	}

	key := s.layout.UploadKey(uuid.NewString(), filename)
	if _, err := s.store.Put(ctx, key, data, contentType); err != nil {
		s.log.Error("Failed to upload audio",
			"filename", filename,
			"key", key,
			"error", err,
		)
		return domain.SourceLocation{}, fmt.Errorf("failed to upload audio: %w", err)
	}

	s.log.Info("Audio uploaded", "filename", filename, "key", key, "bytes", len(data))
	return domain.SourceLocation{Bucket: s.store.Bucket(), Key: key}, nil
}

// Submit は計算サービスにジョブを投入し、レジストリに登録します
func (s *JobService) Submit(ctx context.Context, source domain.SourceLocation, filename string, opts domain.Options) (*domain.JobRecord, error) {
	opts.Extension = jobExtension(filename, source.Key)
	opts.EditorName = strings.TrimSpace(opts.EditorName)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	jobID, err := s.compute.Submit(ctx, domain.NewJobInput(source, opts))
	if err != nil {
		s.log.Error("Failed to submit job",
			"filename", filename,
			"key", source.Key,
			"error", err,
		)
		if errors.Is(err, domain.ErrSubmission) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}

	job, err := s.registry.Create(jobID, filename, source, opts)
	if err != nil {
		s.log.Error("Compute service returned no job id", "filename", filename)
		return nil, err
	}

	s.log.Info("Job submitted", "jobID", job.JobID, "filename", filename)
	return job, nil
}

// UploadAndSubmit はアップロードと投入をまとめて行います
func (s *JobService) UploadAndSubmit(ctx context.Context, data []byte, filename string, opts domain.Options) (*domain.JobRecord, error) {
	source, err := s.Upload(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, source, filename, opts)
}

// Check は状態を1回確認し、終端に達していれば成果物を保存します。
// 全ての成果物を書き込めた時点で保存済みとし、以降は書き込みません。
func (s *JobService) Check(ctx context.Context, jobID string) (*CheckResult, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{}
	// 保存済みの終端ジョブはこれ以上遷移しないため問い合わせない
	if !(job.Status.IsTerminal() && job.IsPersisted()) {
		job, err = s.registry.Refresh(ctx, jobID)
		if err != nil {
			if !errors.Is(err, domain.ErrPollingFailure) {
				return nil, err
			}
			result.PollErr = err
		}
	}

	if job.Status.IsTerminal() && job.Output != nil && !job.IsPersisted() {
		persisted := s.persister.Persist(ctx, job, job.Output)
		result.Warnings = persisted.Warnings
		// 一部でも失敗した場合は次回の確認で全成果物を書き直す
		if persisted.Complete() {
			if _, err := s.registry.MarkPersisted(jobID, persisted.Locations); err != nil {
				return nil, err
			}
		}
	}

	if job.Status.IsTerminal() {
		if _, err := s.LoadOutput(ctx, jobID); err != nil && !errors.Is(err, domain.ErrObjectNotFound) {
			s.log.Warn("Failed to load job output", "jobID", jobID, "error", err)
		}
	}

	job, err = s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	result.Job = job
	result.Terminal = job.Status.IsTerminal()
	return result, nil
}

// LoadOutput は結果を返します。未取得の場合は保存済みの output.json から読み込みます。
func (s *JobService) LoadOutput(ctx context.Context, jobID string) (*domain.Output, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Output != nil {
		return job.Output, nil
	}

	location := job.PersistedLocations[domain.ArtifactOutputJSON]
	if location == "" {
		return nil, fmt.Errorf("%w: no output for job %s", domain.ErrObjectNotFound, jobID)
	}

	data, err := s.store.Get(ctx, domain.KeyFromLocation(location))
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	output, err := domain.ParseOutput(data)
	if err != nil {
		return nil, err
	}
	if output == nil {
		return nil, fmt.Errorf("%w: empty output for job %s", domain.ErrObjectNotFound, jobID)
	}

	if err := s.registry.SetOutput(jobID, output); err != nil {
		return nil, err
	}
	return output, nil
}

// Artifact は txt / srt の内容とダウンロード用のファイル名を返します
func (s *JobService) Artifact(ctx context.Context, jobID, kind string) (string, []byte, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return "", nil, err
	}
	output, err := s.LoadOutput(ctx, jobID)
	if err != nil {
		return "", nil, err
	}

	var content string
	switch kind {
	case domain.ArtifactTXT:
		content = output.TXT
	case domain.ArtifactSRT:
		content = output.SRT
	default:
		return "", nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	if content == "" {
		return "", nil, fmt.Errorf("%w: job %s has no %s", domain.ErrObjectNotFound, jobID, kind)
	}

	return domain.Basename(job.Filename) + "." + kind, []byte(content), nil
}

// Poll は終端に達するか待機上限を超えるまで Check を繰り返します。
// 上限を超えた場合はジョブを保持したまま ErrPollingTimeout を返します。
func (s *JobService) Poll(ctx context.Context, jobID string, opts PollOptions) (*domain.JobRecord, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultPollMaxWait
	}
	deadline := s.now().Add(opts.MaxWait)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		result, err := s.Check(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if result.PollErr != nil {
			s.log.Debug("Status check failed, retrying", "jobID", jobID, "error", result.PollErr)
		}
		if result.Terminal {
			return result.Job, nil
		}
		if !s.now().Before(deadline) {
			return result.Job, fmt.Errorf("%w: job %s still %s after %s", domain.ErrPollingTimeout, jobID, result.Job.Status, opts.MaxWait)
		}

		s.log.Debug("Job not finished yet", "jobID", jobID, "status", result.Job.Status)
		timer.Reset(opts.Interval)
	}
}

// IsPollingOverdue は非終端のジョブが待機上限を超えているかを返します
func IsPollingOverdue(job *domain.JobRecord, maxWait time.Duration, now time.Time) bool {
	if job == nil || job.Status.IsTerminal() || maxWait <= 0 {
		return false
	}
	return now.Sub(job.CreatedAt) > maxWait
}

func jobExtension(filename, key string) string {
	ext := domain.Extension(filename)
	if ext == "" {
		ext = domain.Extension(key)
	}
	if ext == "wav" {
		return "wav"
	}
	return "mp3"
}
