package domain

import (
	"fmt"
	"strings"
)

// DefaultRootPrefix は全オブジェクトを格納するルート名前空間です
const DefaultRootPrefix = "Srt-model/"

const (
	uploadsDir        = "uploads/"
	transcriptionsDir = "transcriptions/"
	feedbackDir       = "feedback/"
	metaFileName      = "meta.json"
	outputFileName    = "output.json"
)

// Section はストレージ保守で扱う領域です
type Section string

const (
	SectionUploads        Section = "uploads"
	SectionTranscriptions Section = "transcriptions"
	SectionFeedback       Section = "feedback"
)

// ParseSection は領域名を検証します
func ParseSection(s string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(s))) {
	case SectionUploads:
		return SectionUploads, nil
	case SectionTranscriptions:
		return SectionTranscriptions, nil
	case SectionFeedback:
		return SectionFeedback, nil
	default:
		return "", fmt.Errorf("unknown section %q (uploads/transcriptions/feedback)", s)
	}
}

// Layout は永続化キーの配置規則です
type Layout struct {
	root string
}

// NewLayout はルートプレフィックスを正規化して Layout を作成します。
// 空文字はルート名前空間なし（旧レイアウト）を意味します。
func NewLayout(root string) Layout {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root != "" {
		root += "/"
	}
	return Layout{root: root}
}

// Root はルートプレフィックスを返します
func (l Layout) Root() string { return l.root }

func (l Layout) UploadsPrefix() string        { return l.root + uploadsDir }
func (l Layout) TranscriptionsPrefix() string { return l.root + transcriptionsDir }
func (l Layout) FeedbackPrefix() string       { return l.root + feedbackDir }

// SectionPrefixes は現行と旧レイアウトのプレフィックスを重複なしで返します
func (l Layout) SectionPrefixes(section Section) []string {
	var dir string
	switch section {
	case SectionUploads:
		dir = uploadsDir
	case SectionTranscriptions:
		dir = transcriptionsDir
	case SectionFeedback:
		dir = feedbackDir
	default:
		return nil
	}
	if l.root == "" {
		return []string{dir}
	}
	return []string{l.root + dir, dir}
}

// UploadKey はアップロード音声のキーを返します
func (l Layout) UploadKey(id, filename string) string {
	return fmt.Sprintf("%s%s_%s", l.UploadsPrefix(), id, SafeObjectName(filename))
}

// ArtifactDir はジョブ成果物のディレクトリ（末尾スラッシュなし）を返します
func (l Layout) ArtifactDir(filename, jobID string) string {
	return fmt.Sprintf("%s%s_%s", l.TranscriptionsPrefix(), SlugifyName(filename), jobID)
}

// FeedbackKey はフィードバックの決定的なキーを返します
func (l Layout) FeedbackKey(filename, username string) string {
	return fmt.Sprintf("%s%s-%s", l.FeedbackPrefix(), SlugifyName(filename), SlugifyUser(username))
}

// ArtifactKeys はディレクトリ配下の成果物キーを命名規則から組み立てます
func ArtifactKeys(dir, filename string) map[string]string {
	basename := Basename(filename)
	return map[string]string{
		ArtifactMeta:       dir + "/" + metaFileName,
		ArtifactOutputJSON: dir + "/" + outputFileName,
		ArtifactSRT:        dir + "/" + basename + ".srt",
		ArtifactTXT:        dir + "/" + basename + ".txt",
	}
}

// ArtifactLocations は成果物キーを locate で完全修飾された場所に変換します
func ArtifactLocations(locate func(key string) string, keys map[string]string) map[string]string {
	locations := make(map[string]string, len(keys))
	for name, key := range keys {
		locations[name] = locate(key)
	}
	return locations
}

// IsMetaKey は meta.json のキーかどうかを返します
func IsMetaKey(key string) bool {
	return key == metaFileName || strings.HasSuffix(key, "/"+metaFileName)
}

// KeyFromLocation は s3://bucket/key 形式からキーを取り出します
func KeyFromLocation(location string) string {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return location
	}
	_, key, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return key
}
