// Package embedding 提供图像 Embedding 服务客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adcraft-api/internal/config"
)

// Client 图像向量客户端，实现 quality.ImageEmbedder
type Client struct {
	endpoint   string
	model      string
	batchSize  int
	httpClient *http.Client
}

type embedRequest struct {
	Images []string `json:"images"`
	Model  string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewClient(cfg *config.EmbeddingConfig) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	model := cfg.Model
	if model == "" {
		model = "clip-vit-base-patch32"
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		model:     model,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// EmbedImages 批量生成图像向量，返回顺序与输入一致
func (c *Client) EmbedImages(ctx context.Context, urls []string) ([][]float32, error) {
	if len(urls) == 0 {
		return [][]float32{}, nil
	}

	var all [][]float32
	for i := 0; i < len(urls); i += c.batchSize {
		end := i + c.batchSize
		if end > len(urls) {
			end = len(urls)
		}

		resp, err := c.doBatchEmbed(ctx, urls[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Embeddings...)
	}

	if len(all) != len(urls) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(all), len(urls))
	}
	return all, nil
}

func (c *Client) doBatchEmbed(ctx context.Context, images []string) (*embedResponse, error) {
	reqBody, err := json.Marshal(&embedRequest{
		Images: images,
		Model:  c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/embed/images"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding request failed: status=%d", httpResp.StatusCode)
	}

	var resp embedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return &resp, nil
}
