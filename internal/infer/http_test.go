// Package infer 提供推理执行器的抽象与实现。
package infer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
)

// TestHTTPExecutor_Run 测试正常推理路径：帧数据上传、结果解析。
func TestHTTPExecutor_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/defect-v3/infer" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "frame-bytes" {
			t.Errorf("body = %q, want frame-bytes", body)
		}
		if r.Header.Get("X-Threshold") != "0.8" {
			t.Errorf("X-Threshold = %q, want 0.8", r.Header.Get("X-Threshold"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label":"anomaly","confidence":0.92,"score":0.77,"mask_path":"/out/mask.png"}`))
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(config.InferConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	out, err := exec.Run(context.Background(),
		&domain.RawFrame{Data: []byte("frame-bytes"), Format: "jpeg"},
		&domain.FeatureConfig{Executor: "http", ModelID: "defect-v3", Threshold: 0.8})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Label != "anomaly" || out.Confidence != 0.92 || out.Score != 0.77 {
		t.Errorf("outcome = %+v", out)
	}
	if out.MaskPath != "/out/mask.png" {
		t.Errorf("MaskPath = %q", out.MaskPath)
	}
}

// TestHTTPExecutor_ServiceError 测试非 200 响应包装为 InferenceError。
func TestHTTPExecutor_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(config.InferConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	_, err := exec.Run(context.Background(),
		&domain.RawFrame{Data: []byte("x")},
		&domain.FeatureConfig{ModelID: "defect-v3"})

	var infErr *domain.InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("error = %v, want *domain.InferenceError", err)
	}
	if infErr.ModelID != "defect-v3" {
		t.Errorf("ModelID = %q, want defect-v3", infErr.ModelID)
	}
}

// TestHTTPExecutor_ErrorPayload 测试响应体中的业务错误字段。
func TestHTTPExecutor_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"frame too small"}`))
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(config.InferConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	_, err := exec.Run(context.Background(),
		&domain.RawFrame{Data: []byte("x")},
		&domain.FeatureConfig{ModelID: "defect-v3"})
	if err == nil {
		t.Fatal("Run() should surface payload error")
	}
}
