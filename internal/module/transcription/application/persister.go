package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// PersistResult は成果物保存の結果です
type PersistResult struct {
	// Locations は実際に書き込んだ成果物名と保存先
	Locations map[string]string
	// Warnings は書き込みに失敗した成果物（*domain.PersistenceWarning）
	Warnings []error
}

// Complete は全ての成果物を書き込めたかを返します
func (r *PersistResult) Complete() bool {
	return len(r.Warnings) == 0 && len(r.Locations) > 0
}

// ArtifactPersister は終端状態に達したジョブの成果物をストレージに書き込みます。
// 重複排除は行わないため、同じ入力で呼ぶと同じキーを同じ内容で上書きします。
type ArtifactPersister struct {
	store  domain.ObjectStore
	layout domain.Layout
	log    *slog.Logger
}

// NewArtifactPersister は新しい ArtifactPersister を作成します
func NewArtifactPersister(store domain.ObjectStore, layout domain.Layout, log *slog.Logger) *ArtifactPersister {
	if log == nil {
		log = slog.Default()
	}
	return &ArtifactPersister{
		store:  store,
		layout: layout,
		log:    log,
	}
}

type artifactWrite struct {
	name        string
	key         string
	contentType string
	body        func() ([]byte, error)
}

// Persist は meta.json, output.json, <basename>.srt, <basename>.txt を順に書き込みます。
// 個々の失敗は警告として返し、書き込み済みの成果物は取り消しません。
func (p *ArtifactPersister) Persist(ctx context.Context, job *domain.JobRecord, output *domain.Output) *PersistResult {
	dir := p.layout.ArtifactDir(job.Filename, job.JobID)
	keys := domain.ArtifactKeys(dir, job.Filename)

	writes := []artifactWrite{
		{
			name:        domain.ArtifactMeta,
			key:         keys[domain.ArtifactMeta],
			contentType: contentTypeJSON,
			body: func() ([]byte, error) {
				return encodeJSON(domain.NewMetaDocument(job, output))
			},
		},
		{
			name:        domain.ArtifactOutputJSON,
			key:         keys[domain.ArtifactOutputJSON],
			contentType: contentTypeJSON,
			body: func() ([]byte, error) {
				return indentJSON(output.RawJSON())
			},
		},
	}
	if output != nil && strings.TrimSpace(output.SRT) != "" {
		writes = append(writes, artifactWrite{
			name:        domain.ArtifactSRT,
			key:         keys[domain.ArtifactSRT],
			contentType: contentTypeText,
			body:        func() ([]byte, error) { return []byte(output.SRT), nil },
		})
	}
	if output != nil && strings.TrimSpace(output.TXT) != "" {
		writes = append(writes, artifactWrite{
			name:        domain.ArtifactTXT,
			key:         keys[domain.ArtifactTXT],
			contentType: contentTypeText,
			body:        func() ([]byte, error) { return []byte(output.TXT), nil },
		})
	}

	result := &PersistResult{Locations: make(map[string]string, len(writes))}
	for _, w := range writes {
		location, err := p.write(ctx, w)
		if err != nil {
			warning := &domain.PersistenceWarning{Artifact: w.name, Key: w.key, Err: err}
			p.log.Warn("Failed to persist artifact",
				"jobID", job.JobID,
				"artifact", w.name,
				"key", w.key,
				"error", err,
			)
			result.Warnings = append(result.Warnings, warning)
			continue
		}
		result.Locations[w.name] = location
	}

	p.log.Info("Artifacts persisted",
		"jobID", job.JobID,
		"dir", dir,
		"written", len(result.Locations),
		"warnings", len(result.Warnings),
	)

	return result
}

func (p *ArtifactPersister) write(ctx context.Context, w artifactWrite) (string, error) {
	body, err := w.body()
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", w.name, err)
	}
	return p.store.Put(ctx, w.key, body, w.contentType)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func indentJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
