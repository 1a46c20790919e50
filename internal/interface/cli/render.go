package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// renderJobsTable はジョブ一覧をテーブル形式で表示します
func renderJobsTable(w io.Writer, jobs []*domain.JobRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Filename", "Status", "Editor", "Created At", "Persisted")

	for _, job := range jobs {
		persisted := "no"
		if job.IsPersisted() {
			persisted = "yes"
		}
		table.Append(
			job.JobID,
			job.Filename,
			string(job.Status),
			job.Options.EditorName,
			formatTime(job.CreatedAt),
			persisted,
		)
	}

	table.Render()
}

// renderJobDetail はジョブの詳細を表示します
func renderJobDetail(w io.Writer, job *domain.JobRecord) {
	fmt.Fprintf(w, "Job ID:     %s\n", job.JobID)
	fmt.Fprintf(w, "Filename:   %s\n", job.Filename)
	fmt.Fprintf(w, "Status:     %s\n", job.Status)
	fmt.Fprintf(w, "Created At: %s\n", formatTime(job.CreatedAt))
	if job.Options.EditorName != "" {
		fmt.Fprintf(w, "Editor:     %s\n", job.Options.EditorName)
	}
	if job.Source.Key != "" {
		fmt.Fprintf(w, "Source:     %s\n", job.Source.URI())
	}

	if len(job.PersistedLocations) > 0 {
		fmt.Fprintln(w, "Artifacts:")
		names := make([]string, 0, len(job.PersistedLocations))
		for name := range job.PersistedLocations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-12s %s\n", name, job.PersistedLocations[name])
		}
	}
}

// renderFeedbackTable はフィードバック一覧をテーブル形式で表示します
func renderFeedbackTable(w io.Writer, records []*domain.FeedbackRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Filename", "Username", "Feedback", "Job ID", "Created At")

	for _, r := range records {
		table.Append(
			r.Filename,
			r.Username,
			truncate(r.Feedback, 60),
			r.JobID,
			formatTime(r.CreatedAt),
		)
	}

	table.Render()
}

// renderObjectsTable はストレージのオブジェクト一覧を表示します
func renderObjectsTable(w io.Writer, objects []domain.ObjectInfo) {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Size", "Last Modified")

	for _, obj := range objects {
		table.Append(
			obj.Key,
			strconv.FormatInt(obj.Size, 10),
			formatTime(obj.LastModified),
		)
	}

	table.Render()
}

// renderDeleteReport は削除結果を表示します
func renderDeleteReport(w io.Writer, report *application.DeleteReport) {
	if report.DryRun {
		fmt.Fprintf(w, "ドライラン: %d 件が削除対象です\n", report.Requested)
		return
	}
	fmt.Fprintf(w, "✓ %d / %d 件を削除しました\n", report.Deleted, report.Requested)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  ✗ %s: %s %s\n", e.Key, e.Code, e.Message)
	}
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
