// Package vision 提供视觉分析服务客户端
package vision

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

	"adcraft-api/internal/application/quality"
	"adcraft-api/internal/config"
)

var tracer = otel.Tracer("vision")

// Client 视觉分析 HTTP 客户端，实现 quality.VisionAnalyzer
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type analyzeRequest struct {
	ArtifactURL string `json:"artifact_url"`
}

type detectTextRequest struct {
	ArtifactURL string  `json:"artifact_url"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
}

type detectTextResponse struct {
	Texts []string `json:"texts"`
}

// NewClient 创建视觉分析客户端
func NewClient(cfg *config.VisionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AnalyzeArtifact 分析渲染产物
func (c *Client) AnalyzeArtifact(ctx context.Context, artifactURL string) (*quality.ArtifactAnalysis, error) {
	ctx, span := tracer.Start(ctx, "vision.AnalyzeArtifact")
	defer span.End()

	var analysis quality.ArtifactAnalysis
	if err := c.do(ctx, "/v1/analyze", &analyzeRequest{ArtifactURL: artifactURL}, &analysis); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("frame_count", len(analysis.FrameEmbeddings)),
		attribute.Bool("motion_defects", analysis.MotionDefects),
	)
	return &analysis, nil
}

// DetectText 检测时间窗内出现的屏幕文字
func (c *Client) DetectText(ctx context.Context, artifactURL string, start, end float64) ([]string, error) {
	ctx, span := tracer.Start(ctx, "vision.DetectText",
		trace.WithAttributes(
			attribute.Float64("start_sec", start),
			attribute.Float64("end_sec", end),
		))
	defer span.End()

	var resp detectTextResponse
	if err := c.do(ctx, "/v1/detect-text", &detectTextRequest{
		ArtifactURL: artifactURL,
		StartSec:    start,
		EndSec:      end,
	}, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp.Texts, nil
}

func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	if c.endpoint == "" {
		return fmt.Errorf("vision endpoint is empty")
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal vision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create vision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("vision request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
		return fmt.Errorf("vision request failed: status=%d body=%s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vision response: %w", err)
	}
	return nil
}
