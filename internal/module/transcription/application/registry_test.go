package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	testutil "github.com/jinford/srt-generator/internal/module/transcription/testing"
)

var testSource = domain.SourceLocation{Bucket: testutil.TestBucket, Key: "Srt-model/uploads/u1_talk.mp3"}

func TestRegistry_Create(t *testing.T) {
	// Setup
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())

	// Execute
	created, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
	require.NoError(t, err)
	got, err := registry.Get("J1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Nil(t, got.PersistedLocations)
	assert.False(t, got.IsPersisted())
	assert.Equal(t, created, got)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second)
}

func TestRegistry_Create_EmptyJobID(t *testing.T) {
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())

	_, err := registry.Create("  ", "talk.mp3", testSource, domain.DefaultOptions())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.ErrorIs(t, err, domain.ErrInvalidJobID)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())

	_, err := registry.Get("missing")

	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRegistry_Refresh_Monotonic(t *testing.T) {
	tests := []struct {
		name     string
		sequence []domain.JobStatus
		want     domain.JobStatus
	}{
		{
			name:     "完了後の UNKNOWN で状態は変わらない",
			sequence: []domain.JobStatus{domain.JobStatusInProgress, domain.JobStatusCompleted, domain.JobStatusUnknown},
			want:     domain.JobStatusCompleted,
		},
		{
			name:     "処理中から待機に戻らない",
			sequence: []domain.JobStatus{domain.JobStatusInProgress, domain.JobStatusQueued},
			want:     domain.JobStatusInProgress,
		},
		{
			name:     "失敗後に処理中が来ても失敗のまま",
			sequence: []domain.JobStatus{domain.JobStatusFailed, domain.JobStatusInProgress},
			want:     domain.JobStatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			reports := make([]*domain.StatusReport, 0, len(tt.sequence))
			for _, s := range tt.sequence {
				reports = append(reports, testutil.Report(s, nil))
			}
			compute := &testutil.MockComputeClient{StatusFunc: testutil.StatusSequence(reports...)}
			registry := application.NewRegistry(compute, testutil.NopLogger())
			_, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
			require.NoError(t, err)

			// Execute
			var job *domain.JobRecord
			for range tt.sequence {
				job, err = registry.Refresh(context.Background(), "J1")
				require.NoError(t, err)
			}

			// Assert
			assert.Equal(t, tt.want, job.Status)
		})
	}
}

func TestRegistry_Refresh_KeepsOutputWhenReportHasNone(t *testing.T) {
	compute := &testutil.MockComputeClient{StatusFunc: testutil.StatusSequence(
		testutil.Report(domain.JobStatusCompleted, testutil.TestOutput()),
		testutil.Report(domain.JobStatusCompleted, nil),
	)}
	registry := application.NewRegistry(compute, testutil.NopLogger())
	_, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
	require.NoError(t, err)

	_, err = registry.Refresh(context.Background(), "J1")
	require.NoError(t, err)
	job, err := registry.Refresh(context.Background(), "J1")
	require.NoError(t, err)

	require.NotNil(t, job.Output)
	assert.Equal(t, testutil.TestTXT, job.Output.TXT)
}

func TestRegistry_Refresh_FailurePreservesState(t *testing.T) {
	// Setup
	networkErr := errors.New("connection reset")
	calls := 0
	compute := &testutil.MockComputeClient{
		StatusFunc: func(ctx context.Context, jobID string) (*domain.StatusReport, error) {
			calls++
			if calls == 1 {
				return testutil.Report(domain.JobStatusInProgress, nil), nil
			}
			return nil, networkErr
		},
	}
	registry := application.NewRegistry(compute, testutil.NopLogger())
	_, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
	require.NoError(t, err)
	_, err = registry.Refresh(context.Background(), "J1")
	require.NoError(t, err)

	// Execute
	job, err := registry.Refresh(context.Background(), "J1")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPollingFailure)
	assert.ErrorIs(t, err, networkErr)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobStatusInProgress, job.Status)

	stored, err := registry.Get("J1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, stored.Status)
}

func TestRegistry_ListAll_NewestFirst(t *testing.T) {
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	registry.Restore(&domain.JobRecord{JobID: "old", CreatedAt: base})
	registry.Restore(&domain.JobRecord{JobID: "new", CreatedAt: base.Add(time.Hour)})
	registry.Restore(&domain.JobRecord{JobID: "mid", CreatedAt: base.Add(time.Minute)})

	jobs := registry.ListAll()

	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{jobs[0].JobID, jobs[1].JobID, jobs[2].JobID})
}

func TestRegistry_MarkPersisted_Once(t *testing.T) {
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())
	_, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
	require.NoError(t, err)

	first, err := registry.MarkPersisted("J1", map[string]string{domain.ArtifactMeta: "s3://b/meta.json"})
	require.NoError(t, err)
	second, err := registry.MarkPersisted("J1", map[string]string{domain.ArtifactMeta: "s3://b/other.json"})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	job, err := registry.Get("J1")
	require.NoError(t, err)
	assert.Equal(t, "s3://b/meta.json", job.PersistedLocations[domain.ArtifactMeta])

	_, err = registry.MarkPersisted("missing", nil)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRegistry_SnapshotsAreIndependent(t *testing.T) {
	registry := application.NewRegistry(&testutil.MockComputeClient{}, testutil.NopLogger())
	job, err := registry.Create("J1", "talk.mp3", testSource, domain.DefaultOptions())
	require.NoError(t, err)

	job.Status = domain.JobStatusCompleted

	stored, err := registry.Get("J1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, stored.Status)
}
