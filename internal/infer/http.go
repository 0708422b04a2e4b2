// Package infer 提供推理执行器的抽象与实现。
package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/telemetry"
)

// HTTPExecutor 通过本机推理服务的 HTTP 端点执行推理。
// 帧数据以请求体上传，模型标识和阈值走请求头，
// 客户端带追踪传输层，推理耗时出现在触发链路的追踪里。
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExecutor 创建 HTTP 推理执行器。
func NewHTTPExecutor(cfg config.InferConfig) *HTTPExecutor {
	client := telemetry.InstrumentedHTTPClient()
	client.Timeout = cfg.Timeout
	return &HTTPExecutor{
		endpoint: cfg.Endpoint,
		client:   client,
	}
}

// inferResponse 推理服务的响应体。
type inferResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	MaskPath   string  `json:"mask_path,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Run 上传帧数据并解析推理结果。
func (e *HTTPExecutor) Run(ctx context.Context, frame *domain.RawFrame, cfg *domain.FeatureConfig) (*domain.InferenceOutcome, error) {
	url := fmt.Sprintf("%s/v1/models/%s/infer", e.endpoint, cfg.ModelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frame.Data))
	if err != nil {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Format", frame.Format)
	if cfg.Threshold > 0 {
		req.Header.Set("X-Threshold", fmt.Sprintf("%g", cfg.Threshold))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.InferenceError{
			ModelID: cfg.ModelID,
			Err:     fmt.Errorf("inference service returned %d: %s", resp.StatusCode, body),
		}
	}

	var out inferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: err}
	}
	if out.Error != "" {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: fmt.Errorf("%s", out.Error)}
	}

	return &domain.InferenceOutcome{
		Label:      out.Label,
		Confidence: out.Confidence,
		Score:      out.Score,
		MaskPath:   out.MaskPath,
	}, nil
}
