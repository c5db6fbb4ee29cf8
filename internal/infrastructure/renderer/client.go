// Package renderer 提供字幕烧录服务客户端
package renderer

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

	"adcraft-api/internal/application/overlay"
	"adcraft-api/internal/config"
)

var tracer = otel.Tracer("renderer")

// Client 烧录服务 HTTP 客户端，实现 overlay.Renderer
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type burnRequest struct {
	InputURL string             `json:"input_url"`
	Specs    []overlay.BurnSpec `json:"specs"`
	LogoURL  string             `json:"logo_url,omitempty"`
}

type burnResponse struct {
	OutputURL string `json:"output_url"`
}

// NewClient 创建烧录服务客户端
func NewClient(cfg *config.RendererConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		// 烧录是同步操作，留足转码时间
		timeout = 2 * time.Minute
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Render 烧录字幕，返回新产物地址
func (c *Client) Render(ctx context.Context, inputURL string, specs []overlay.BurnSpec, logoURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "renderer.Render",
		trace.WithAttributes(attribute.Int("spec_count", len(specs))))
	defer span.End()

	if c.endpoint == "" {
		return "", fmt.Errorf("renderer endpoint is empty")
	}

	reqBody, err := json.Marshal(&burnRequest{
		InputURL: inputURL,
		Specs:    specs,
		LogoURL:  logoURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal burn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/burn", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create burn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("burn request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
		return "", fmt.Errorf("burn request failed: status=%d body=%s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}

	var resp burnResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode burn response: %w", err)
	}
	if resp.OutputURL == "" {
		return "", fmt.Errorf("renderer returned empty output url")
	}
	return resp.OutputURL, nil
}
