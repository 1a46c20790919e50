package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/srt-generator/internal/module/transcription/adapter/memstore"
	"github.com/jinford/srt-generator/internal/module/transcription/adapter/runpod"
	"github.com/jinford/srt-generator/internal/module/transcription/adapter/s3store"
	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	"github.com/jinford/srt-generator/internal/platform/config"
)

// ServiceContainer はプロセス全体で共有する依存関係を保持する。
// ジョブのレジストリは共有せず、NewSession ごとに作成する。
type ServiceContainer struct {
	Store       domain.ObjectStore
	Compute     domain.ComputeClient
	Layout      domain.Layout
	Persister   *application.ArtifactPersister
	Feedback    *application.FeedbackRecorder
	Maintenance *application.StorageMaintenance

	cfg     *config.Config
	logger  *slog.Logger
	library *librarySnapshot
}

// librarySnapshot は新規セッション間で共有するライブラリ復元結果
type librarySnapshot struct {
	mu       sync.Mutex
	ttl      time.Duration
	jobs     []*domain.JobRecord
	result   *application.BootstrapResult
	loadedAt time.Time
}

// DefaultLibraryCacheTTL はライブラリ復元結果を共有する既定の期間
const DefaultLibraryCacheTTL = 30 * time.Second

type containerOptions struct {
	logger   *slog.Logger
	store    domain.ObjectStore
	compute  domain.ComputeClient
	cacheTTL *time.Duration
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerObjectStore はオブジェクトストアを差し替える。指定した場合は接続確認を行わない。
func WithContainerObjectStore(store domain.ObjectStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerComputeClient は計算サービスクライアントを差し替える
func WithContainerComputeClient(compute domain.ComputeClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.compute = compute
	}
}

// WithContainerLibraryCacheTTL はライブラリ復元結果の共有期間を差し替える。0 以下で共有しない。
func WithContainerLibraryCacheTTL(ttl time.Duration) ContainerOption {
	return func(opts *containerOptions) {
		opts.cacheTTL = &ttl
	}
}

// NewContainer は設定からコンテナを生成する。
// 設定不足とストレージへの到達不能はここで致命的エラーとして返す。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := &containerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	// ComputeClient (RunPod)
	compute := options.compute
	if compute == nil {
		client, err := runpod.NewClient(runpod.ClientConfig{
			APIKey:        cfg.RunPod.APIKey,
			EndpointID:    cfg.RunPod.EndpointID,
			BaseURL:       cfg.RunPod.BaseURL,
			SubmitTimeout: cfg.RunPod.SubmitTimeout,
			StatusTimeout: cfg.RunPod.StatusTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("RunPod クライアントの初期化に失敗しました: %w", err)
		}
		compute = client
	}

	// ObjectStore (S3 / memory)
	store := options.store
	if store == nil {
		var err error
		store, err = newObjectStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	layout := domain.NewLayout(cfg.Storage.RootPrefix)

	cacheTTL := cfg.LibraryCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultLibraryCacheTTL
	}
	if options.cacheTTL != nil {
		cacheTTL = *options.cacheTTL
	}

	return &ServiceContainer{
		Store:       store,
		Compute:     compute,
		Layout:      layout,
		Persister:   application.NewArtifactPersister(store, layout, logger),
		Feedback:    application.NewFeedbackRecorder(store, layout, logger),
		Maintenance: application.NewStorageMaintenance(store, layout, logger),
		cfg:         cfg,
		logger:      logger,
		library:     &librarySnapshot{ttl: cacheTTL},
	}, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory object store; artifacts are lost on exit")
		bucket := cfg.Storage.Bucket
		if bucket == "" {
			bucket = "memory"
		}
		return memstore.New(bucket), nil
	default:
		if err := cfg.CheckStorageEndpoint(ctx, nil); err != nil {
			return nil, fmt.Errorf("ストレージへの接続確認に失敗しました: %w", err)
		}
		store, err := s3store.New(s3store.Config{
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Timeout:   cfg.Storage.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("ストレージクライアントの初期化に失敗しました: %w", err)
		}
		return store, nil
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Config は設定を返す。
func (c *ServiceContainer) Config() *config.Config {
	return c.cfg
}

// PollOptions は設定されたポーリング間隔と待機上限を返す。
func (c *ServiceContainer) PollOptions() application.PollOptions {
	return application.PollOptions{
		Interval: c.cfg.Poll.Interval,
		MaxWait:  c.cfg.Poll.MaxWait,
	}
}

// Session は1利用者分のレジストリとジョブ操作を保持する。
type Session struct {
	ID        string
	Registry  *application.Registry
	Jobs      *application.JobService
	Bootstrap *application.BootstrapResult
}

// NewSession は新しいレジストリを作成し、ストレージ上のライブラリから復元する。
// 復元結果は共有期間内であれば使い回し、セッションごとにストレージを走査しない。
// 復元の失敗は接続・設定の問題以外は警告に留める。
func (c *ServiceContainer) NewSession(ctx context.Context) (*Session, error) {
	logger := c.Logger()
	id := uuid.NewString()

	jobs, result, err := c.loadLibrary(ctx)
	if err != nil {
		return nil, err
	}

	registry := application.NewRegistry(c.Compute, logger)
	for _, job := range jobs {
		registry.Restore(job)
	}

	return &Session{
		ID:        id,
		Registry:  registry,
		Jobs:      application.NewJobService(registry, c.Compute, c.Store, c.Persister, c.Layout, logger),
		Bootstrap: result,
	}, nil
}

// loadLibrary は共有中の復元結果を返す。期限切れか未取得の場合のみストレージを走査する。
// 走査が不完全だった場合は結果を共有しない。
func (c *ServiceContainer) loadLibrary(ctx context.Context) ([]*domain.JobRecord, *application.BootstrapResult, error) {
	lib := c.library
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if lib.result != nil && lib.ttl > 0 && time.Since(lib.loadedAt) < lib.ttl {
		return lib.jobs, lib.result, nil
	}

	logger := c.Logger()
	scratch := application.NewRegistry(c.Compute, logger)
	bootstrapper := application.NewLibraryBootstrapper(c.Store, c.Layout, c.cfg.LibraryScanLimit, logger)
	result, err := bootstrapper.Run(ctx, scratch)
	if err != nil {
		if application.IsBootstrapFatal(err) {
			return nil, nil, fmt.Errorf("ライブラリの復元に失敗しました: %w", err)
		}
		logger.Warn("Library bootstrap incomplete", "error", err)
		return scratch.ListAll(), result, nil
	}

	lib.jobs = scratch.ListAll()
	lib.result = result
	lib.loadedAt = time.Now()
	return lib.jobs, lib.result, nil
}
