// Package runpod は RunPod サーバーレスエンドポイントの ComputeClient 実装です
package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const (
	DefaultBaseURL       = "https://api.runpod.ai/v2"
	DefaultSubmitTimeout = 60 * time.Second
	DefaultStatusTimeout = 30 * time.Second
)

// ClientConfig は RunPod クライアントの設定です
type ClientConfig struct {
	APIKey        string
	EndpointID    string
	BaseURL       string
	SubmitTimeout time.Duration
	StatusTimeout time.Duration
	// HTTPClient は省略時 http.DefaultClient を使います
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client は RunPod の /run と /status を呼び出します
type Client struct {
	apiKey        string
	endpointURL   string
	submitTimeout time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	log           *slog.Logger
}

var _ domain.ComputeClient = (*Client)(nil)

// NewClient は新しい Client を作成します
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" || cfg.EndpointID == "" {
		return nil, fmt.Errorf("%w: runpod api key and endpoint id are required", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		apiKey:        cfg.APIKey,
		endpointURL:   strings.TrimRight(cfg.BaseURL, "/") + "/" + url.PathEscape(cfg.EndpointID),
		submitTimeout: cfg.SubmitTimeout,
		statusTimeout: cfg.StatusTimeout,
		httpClient:    cfg.HTTPClient,
		log:           cfg.Logger,
	}, nil
}

type runInput struct {
	Bucket          string      `json:"bucket"`
	Key             string      `json:"key"`
	Extension       string      `json:"extension"`
	Language        string      `json:"language"`
	VADFilter       bool        `json:"vad_filter"`
	MaxWordsPerLine int         `json:"max_words_per_line"`
	GenerateSRT     domain.Flag `json:"generate_srt"`
	GenerateTXT     domain.Flag `json:"generate_txt"`
}

type runRequest struct {
	Input runInput `json:"input"`
}

type runResponse struct {
	ID    string `json:"id"`
	JobID string `json:"jobId"`
	Job   string `json:"job_id"`
}

func (r runResponse) jobID() string {
	for _, id := range []string{r.ID, r.JobID, r.Job} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// Submit は /run にジョブを投入し、ジョブIDを返します
func (c *Client) Submit(ctx context.Context, input domain.JobInput) (string, error) {
	body := runRequest{Input: runInput{
		Bucket:          input.Source.Bucket,
		Key:             input.Source.Key,
		Extension:       input.Extension,
		Language:        input.Language,
		VADFilter:       input.VADFilter,
		MaxWordsPerLine: input.MaxWordsPerLine,
		GenerateSRT:     input.GenerateSRT,
		GenerateTXT:     input.GenerateTXT,
	}}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	var res runResponse
	if err := c.call(ctx, http.MethodPost, "/run", body, &res); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}

	jobID := res.jobID()
	if jobID == "" {
		return "", fmt.Errorf("%w: response has no job id", domain.ErrSubmission)
	}

	c.log.Debug("RunPod job submitted", "jobID", jobID, "key", input.Source.Key)
	return jobID, nil
}

// Status は /status/<id> で現在の状態を取得します
func (c *Client) Status(ctx context.Context, jobID string) (*domain.StatusReport, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, domain.ErrInvalidJobID
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	var res statusResponse
	if err := c.call(ctx, http.MethodGet, "/status/"+url.PathEscape(jobID), nil, &res); err != nil {
		return nil, err
	}

	output, err := domain.ParseOutput(res.Output)
	if err != nil {
		// 結果が壊れていても状態だけは反映する
		c.log.Warn("Ignoring malformed job output", "jobID", jobID, "error", err)
		output = nil
	}

	return &domain.StatusReport{
		JobID:     jobID,
		Status:    domain.ParseJobStatus(res.Status),
		RawStatus: res.Status,
		Output:    output,
		Error:     errorText(res.Error),
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode >= 400 {
		apiErr := &APIError{Status: res.StatusCode, Body: string(resBody)}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, apiErr)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(resBody, out); err != nil {
			return fmt.Errorf("%w: invalid response body: %v", domain.ErrParse, err)
		}
	}
	return nil
}

// errorText はエラーフィールドを文字列化します。文字列以外は JSON のまま返します。
func errorText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
