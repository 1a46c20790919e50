package application

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// DeleteReport はストレージ削除の結果です
type DeleteReport struct {
	Requested int
	Deleted   int
	Errors    []domain.DeleteError
	DryRun    bool
}

// StorageMaintenance は領域ごとのオブジェクト一覧と一括削除を提供します
type StorageMaintenance struct {
	store  domain.ObjectStore
	layout domain.Layout
	log    *slog.Logger
}

// NewStorageMaintenance は新しい StorageMaintenance を作成します
func NewStorageMaintenance(store domain.ObjectStore, layout domain.Layout, log *slog.Logger) *StorageMaintenance {
	if log == nil {
		log = slog.Default()
	}
	return &StorageMaintenance{store: store, layout: layout, log: log}
}

// List は領域内のオブジェクトを新しい順に返します。name はキー末尾の名前に対する部分一致です。
func (m *StorageMaintenance) List(ctx context.Context, section domain.Section, name string) ([]domain.ObjectInfo, error) {
	needle := strings.ToLower(strings.TrimSpace(name))

	var objects []domain.ObjectInfo
	for _, prefix := range m.layout.SectionPrefixes(section) {
		err := m.store.Walk(ctx, prefix, func(obj domain.ObjectInfo) error {
			if strings.HasSuffix(obj.Key, "/") {
				return nil
			}
			if needle != "" && !matchName(obj.Key, needle) {
				return nil
			}
			objects = append(objects, obj)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Delete はキーをまとめて削除します。dryRun の場合は何も削除しません。
func (m *StorageMaintenance) Delete(ctx context.Context, keys []string, dryRun bool) (*DeleteReport, error) {
	report := &DeleteReport{Requested: len(keys), DryRun: dryRun}
	if dryRun || len(keys) == 0 {
		return report, nil
	}

	deleted, errs, err := m.store.DeleteMany(ctx, keys)
	report.Deleted = deleted
	report.Errors = errs
	if err != nil {
		m.log.Error("Failed to delete objects",
			"requested", len(keys),
			"deleted", deleted,
			"error", err,
		)
		return report, fmt.Errorf("failed to delete objects: %w", err)
	}

	m.log.Info("Objects deleted",
		"requested", len(keys),
		"deleted", deleted,
		"errors", len(errs),
	)
	return report, nil
}

// matchName はキーのファイル名部分（成果物ディレクトリの場合はディレクトリ名も）を照合します
func matchName(key, needle string) bool {
	if strings.Contains(strings.ToLower(path.Base(key)), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(path.Base(path.Dir(key))), needle)
}
