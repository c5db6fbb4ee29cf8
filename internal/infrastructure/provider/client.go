// Package provider 提供生成式视频供应商客户端
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"adcraft-api/internal/application/render"
	"adcraft-api/internal/config"
)

var tracer = otel.Tracer("provider")

// Client 供应商 HTTP 客户端，实现 render.Provider
type Client struct {
	baseURL    string
	apiKey     string
	engine     string
	httpClient *http.Client
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type pollResponse struct {
	// Status pending | running | succeeded | failed
	Status      string  `json:"status"`
	ArtifactURL string  `json:"artifact_url"`
	Error       string  `json:"error"`
	DurationSec float64 `json:"duration_sec"`
}

// NewClient 创建供应商客户端
func NewClient(cfg *config.ProviderConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		engine:  cfg.Engine,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit 提交渲染作业
func (c *Client) Submit(ctx context.Context, req *render.SubmitRequest) (*render.SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "provider.Submit",
		trace.WithAttributes(
			attribute.String("run_id", req.RunID),
			attribute.String("engine", req.Engine),
			attribute.String("tier", string(req.Tier)),
		))
	defer span.End()

	if req.Engine == "" {
		req.Engine = c.engine
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/renders", req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("provider returned empty job id")
	}

	return &render.SubmitResult{JobID: resp.JobID}, nil
}

// Poll 查询作业状态
func (c *Client) Poll(ctx context.Context, jobID string) (*render.JobStatus, error) {
	ctx, span := tracer.Start(ctx, "provider.Poll",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	var resp pollResponse
	if err := c.do(ctx, http.MethodGet, "/v1/renders/"+jobID, nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	status := &render.JobStatus{
		ArtifactURL: resp.ArtifactURL,
		Error:       resp.Error,
		DurationSec: resp.DurationSec,
	}
	switch resp.Status {
	case "succeeded":
		status.Done = true
		status.Succeeded = true
	case "failed":
		status.Done = true
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("provider base url is empty")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal provider request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
		return fmt.Errorf("provider request failed: status=%d body=%s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
