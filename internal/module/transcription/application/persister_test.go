package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/srt-generator/internal/module/transcription/adapter/memstore"
	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	testutil "github.com/jinford/srt-generator/internal/module/transcription/testing"
)

func completedJob() *domain.JobRecord {
	opts := domain.DefaultOptions()
	opts.Extension = "mp3"
	opts.EditorName = "alice"
	return &domain.JobRecord{
		JobID:     "J1",
		Filename:  "talk.mp3",
		Source:    testSource,
		Status:    domain.JobStatusCompleted,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Options:   opts,
	}
}

func TestArtifactPersister_Persist(t *testing.T) {
	// Setup
	store := memstore.New(testutil.TestBucket)
	layout := domain.NewLayout(domain.DefaultRootPrefix)
	persister := application.NewArtifactPersister(store, layout, testutil.NopLogger())
	output := testutil.TestOutput()

	// Execute
	result := persister.Persist(context.Background(), completedJob(), output)

	// Assert
	assert.Empty(t, result.Warnings)
	assert.Equal(t, map[string]string{
		domain.ArtifactMeta:       "s3://test-volume/Srt-model/transcriptions/talk_J1/meta.json",
		domain.ArtifactOutputJSON: "s3://test-volume/Srt-model/transcriptions/talk_J1/output.json",
		domain.ArtifactSRT:        "s3://test-volume/Srt-model/transcriptions/talk_J1/talk.srt",
		domain.ArtifactTXT:        "s3://test-volume/Srt-model/transcriptions/talk_J1/talk.txt",
	}, result.Locations)

	srt, ok := store.Object("Srt-model/transcriptions/talk_J1/talk.srt")
	require.True(t, ok)
	assert.Equal(t, testutil.TestSRT, string(srt.Data))
	assert.Equal(t, "text/plain; charset=utf-8", srt.ContentType)

	meta, ok := store.Object("Srt-model/transcriptions/talk_J1/meta.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", meta.ContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(meta.Data, &decoded))
	assert.Equal(t, "J1", decoded["job_id"])
	assert.Equal(t, "talk.mp3", decoded["filename"])
	assert.Equal(t, "COMPLETED", decoded["status"])
	assert.Equal(t, testutil.TestBucket, decoded["source_bucket"])
	assert.Equal(t, "Srt-model/uploads/u1_talk.mp3", decoded["source_key"])
	assert.EqualValues(t, 1714564800, decoded["created_at"])
	opts := decoded["options"].(map[string]any)
	assert.Equal(t, "True", opts["generate_srt"])
	assert.Equal(t, "alice", opts["editor_name"])
	sizes := decoded["sizes"].(map[string]any)
	assert.EqualValues(t, len(testutil.TestTXT), sizes["txt_len"])
	assert.EqualValues(t, len(testutil.TestSRT), sizes["srt_len"])

	outputJSON, ok := store.Object("Srt-model/transcriptions/talk_J1/output.json")
	require.True(t, ok)
	assert.JSONEq(t, string(output.RawJSON()), string(outputJSON.Data))
}

func TestArtifactPersister_Persist_Idempotent(t *testing.T) {
	// Setup
	store := memstore.New(testutil.TestBucket)
	persister := application.NewArtifactPersister(store, domain.NewLayout(domain.DefaultRootPrefix), testutil.NopLogger())
	job := completedJob()
	output := testutil.TestOutput()

	// Execute
	first := persister.Persist(context.Background(), job, output)
	snapshot := make(map[string][]byte)
	for _, key := range store.Keys() {
		obj, _ := store.Object(key)
		snapshot[key] = obj.Data
	}
	second := persister.Persist(context.Background(), job, output)

	// Assert
	assert.Equal(t, first.Locations, second.Locations)
	require.Len(t, store.Keys(), len(snapshot))
	for key, data := range snapshot {
		obj, ok := store.Object(key)
		require.True(t, ok)
		assert.Equal(t, data, obj.Data, key)
	}
}

func TestArtifactPersister_Persist_SkipsBlankTranscripts(t *testing.T) {
	store := memstore.New(testutil.TestBucket)
	persister := application.NewArtifactPersister(store, domain.NewLayout(domain.DefaultRootPrefix), testutil.NopLogger())

	result := persister.Persist(context.Background(), completedJob(), &domain.Output{TXT: "only text", SRT: "  "})

	assert.Contains(t, result.Locations, domain.ArtifactTXT)
	assert.NotContains(t, result.Locations, domain.ArtifactSRT)
	assert.Len(t, result.Locations, 3)
}

func TestArtifactPersister_Persist_WarningOnWriteFailure(t *testing.T) {
	// Setup
	store := memstore.New(testutil.TestBucket)
	writeErr := errors.New("disk quota exceeded")
	store.PutErr = func(key string) error {
		if strings.HasSuffix(key, ".srt") {
			return writeErr
		}
		return nil
	}
	persister := application.NewArtifactPersister(store, domain.NewLayout(domain.DefaultRootPrefix), testutil.NopLogger())

	// Execute
	result := persister.Persist(context.Background(), completedJob(), testutil.TestOutput())

	// Assert
	require.Len(t, result.Warnings, 1)
	assert.ErrorIs(t, result.Warnings[0], domain.ErrPersistence)
	assert.ErrorIs(t, result.Warnings[0], writeErr)

	var warning *domain.PersistenceWarning
	require.ErrorAs(t, result.Warnings[0], &warning)
	assert.Equal(t, domain.ArtifactSRT, warning.Artifact)

	assert.Len(t, result.Locations, 3)
	_, ok := store.Object("Srt-model/transcriptions/talk_J1/talk.txt")
	assert.True(t, ok)
}

func TestArtifactPersister_Persist_LegacyLayout(t *testing.T) {
	store := memstore.New(testutil.TestBucket)
	persister := application.NewArtifactPersister(store, domain.NewLayout(""), testutil.NopLogger())

	result := persister.Persist(context.Background(), completedJob(), testutil.TestOutput())

	assert.Equal(t, "s3://test-volume/transcriptions/talk_J1/talk.txt", result.Locations[domain.ArtifactTXT])
}
