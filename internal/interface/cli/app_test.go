package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/srt-generator/internal/interface/cli"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	testutil "github.com/jinford/srt-generator/internal/module/transcription/testing"
)

// fakeRunPod は /run と /status を返すテスト用サーバ
type fakeRunPod struct {
	status   string
	submits  atomic.Int32
	lastBody map[string]any
}

func (f *fakeRunPod) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ep/run", func(w http.ResponseWriter, r *http.Request) {
		f.submits.Add(1)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"J1","status":"IN_QUEUE"}`))
	})
	mux.HandleFunc("GET /ep/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"id": r.PathValue("id"), "status": f.status}
		if f.status == "COMPLETED" {
			body["output"] = map[string]string{"txt": testutil.TestTXT, "srt": testutil.TestSRT}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

func setupEnv(t *testing.T, runpodURL string) string {
	t.Helper()
	env := map[string]string{
		"RUNPOD_API_KEY":        "test-key",
		"RUNPOD_ENDPOINT_ID":    "ep",
		"RUNPOD_BASE_URL":       runpodURL,
		"STORAGE_DRIVER":        "memory",
		"RUNPOD_S3_BUCKET":      testutil.TestBucket,
		"POLL_INTERVAL_SECONDS": "0.01",
		"POLL_MAX_WAIT_SECONDS": "5",
		"LOG_LEVEL":             "error",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return filepath.Join(t.TempDir(), "missing.env")
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := cli.NewApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"srt-generator"}, args...))
	return buf.String(), err
}

func TestJobSubmit_WaitsForCompletion(t *testing.T) {
	// Setup
	fake := &fakeRunPod{status: "COMPLETED"}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	envFile := setupEnv(t, srv.URL)
	audio := writeAudio(t, "talk.mp3")

	// Execute
	out, err := run(t, "job", "submit", "--env", envFile, "--file", audio, "--editor", "alice", "--max-words", "5", "--vad=false")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "ジョブを投入しました: J1")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "s3://test-volume/Srt-model/transcriptions/talk_J1/talk.srt")
	assert.EqualValues(t, 1, fake.submits.Load())

	input := fake.lastBody["input"].(map[string]any)
	assert.Equal(t, testutil.TestBucket, input["bucket"])
	assert.Equal(t, "mp3", input["extension"])
	assert.Equal(t, false, input["vad_filter"])
	assert.Equal(t, "True", input["generate_srt"])
	assert.Equal(t, "True", input["generate_txt"])
	assert.EqualValues(t, 5, input["max_words_per_line"])
}

func TestJobSubmit_NoWait(t *testing.T) {
	fake := &fakeRunPod{status: "IN_PROGRESS"}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	envFile := setupEnv(t, srv.URL)

	out, err := run(t, "job", "submit", "--env", envFile, "--file", writeAudio(t, "talk.wav"), "--editor", "alice", "--no-wait")

	require.NoError(t, err)
	assert.Contains(t, out, "J1")
	assert.NotContains(t, out, "Status:")
}

func TestJobSubmit_PollingTimeout(t *testing.T) {
	fake := &fakeRunPod{status: "IN_PROGRESS"}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	envFile := setupEnv(t, srv.URL)
	t.Setenv("POLL_MAX_WAIT_SECONDS", "0.05")

	_, err := run(t, "job", "submit", "--env", envFile, "--file", writeAudio(t, "talk.mp3"), "--editor", "alice")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPollingTimeout)
	assert.Contains(t, err.Error(), "job status --job-id J1")
}

func TestJobSubmit_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "単語数が範囲外", args: []string{"--editor", "alice", "--max-words", "99"}},
		{name: "編集者名が空白", args: []string{"--editor", "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRunPod{status: "COMPLETED"}
			srv := httptest.NewServer(fake.handler(t))
			t.Cleanup(srv.Close)
			envFile := setupEnv(t, srv.URL)

			args := append([]string{"job", "submit", "--env", envFile, "--file", writeAudio(t, "talk.mp3")}, tt.args...)
			_, err := run(t, args...)

			assert.Error(t, err)
			assert.Zero(t, fake.submits.Load())
		})
	}
}

func TestJobStatus_RestoresUnknownJob(t *testing.T) {
	fake := &fakeRunPod{status: "COMPLETED"}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	envFile := setupEnv(t, srv.URL)

	t.Run("ファイル名なしは見つからない", func(t *testing.T) {
		_, err := run(t, "job", "status", "--env", envFile, "--job-id", "J9")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("ファイル名ありなら追跡を再開して保存する", func(t *testing.T) {
		out, err := run(t, "job", "status", "--env", envFile, "--job-id", "J9", "--filename", "abc.wav")

		require.NoError(t, err)
		assert.Contains(t, out, "COMPLETED")
		assert.Contains(t, out, "Srt-model/transcriptions/abc_J9/abc.srt")
	})
}

func TestNewAppContext_MissingConfiguration(t *testing.T) {
	envFile := setupEnv(t, "http://127.0.0.1:1")
	t.Setenv("RUNPOD_API_KEY", "")

	_, err := run(t, "library", "list", "--env", envFile)

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "RUNPOD_API_KEY")
}

func TestLibraryAndStorage_EmptyMemoryStore(t *testing.T) {
	envFile := setupEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "library", "list", "--env", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "文字起こしはありません")

	out, err = run(t, "storage", "list", "--env", envFile, "--section", "uploads")
	require.NoError(t, err)
	assert.Contains(t, out, "オブジェクトはありません")

	_, err = run(t, "storage", "delete", "--env", envFile, "--section", "nope", "--dry-run")
	assert.Error(t, err)
}

func TestFeedback(t *testing.T) {
	envFile := setupEnv(t, "http://127.0.0.1:1")

	t.Run("記録して場所を表示する", func(t *testing.T) {
		out, err := run(t, "feedback", "record", "--env", envFile, "--filename", "talk.mp3", "--user", "Bob", "--text", "good")

		require.NoError(t, err)
		assert.True(t, strings.Contains(out, "s3://test-volume/Srt-model/feedback/"), out)
	})

	t.Run("必須項目の不足", func(t *testing.T) {
		_, err := run(t, "feedback", "record", "--env", envFile, "--filename", "talk.mp3")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "user, text")
	})

	t.Run("不正な並び順", func(t *testing.T) {
		_, err := run(t, "feedback", "list", "--env", envFile, "--sort", "size")
		assert.Error(t, err)
	})

	t.Run("空の一覧", func(t *testing.T) {
		out, err := run(t, "feedback", "list", "--env", envFile)

		require.NoError(t, err)
		assert.Contains(t, out, "フィードバックはありません")
	})
}
