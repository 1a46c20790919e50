package testing

import (
	"context"
	"sync"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// MockComputeClient はテスト用のモック ComputeClient です
type MockComputeClient struct {
	SubmitFunc func(ctx context.Context, input domain.JobInput) (string, error)
	StatusFunc func(ctx context.Context, jobID string) (*domain.StatusReport, error)

	mu          sync.Mutex
	submits     []domain.JobInput
	statusCalls int
}

func (m *MockComputeClient) Submit(ctx context.Context, input domain.JobInput) (string, error) {
	m.mu.Lock()
	m.submits = append(m.submits, input)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, input)
	}
	return "", nil
}

func (m *MockComputeClient) Status(ctx context.Context, jobID string) (*domain.StatusReport, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()

	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, jobID)
	}
	return &domain.StatusReport{JobID: jobID, Status: domain.JobStatusUnknown}, nil
}

// Submits は受け取った投入内容を返します
func (m *MockComputeClient) Submits() []domain.JobInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobInput(nil), m.submits...)
}

// StatusCalls は Status の呼び出し回数を返します
func (m *MockComputeClient) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// StatusSequence は呼ばれるたびに reports を順に返す StatusFunc を作ります。
// 末尾に達した後は最後の要素を返し続けます。
func StatusSequence(reports ...*domain.StatusReport) func(ctx context.Context, jobID string) (*domain.StatusReport, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(ctx context.Context, jobID string) (*domain.StatusReport, error) {
		mu.Lock()
		defer mu.Unlock()
		r := *reports[min(i, len(reports)-1)]
		i++
		r.JobID = jobID
		return &r, nil
	}
}
