// Package infer 提供推理执行器的抽象与实现。
package infer

import (
	"context"
	"sync"

	"github.com/oriys/lumen/internal/domain"
)

// StubExecutor 固定结果的推理执行器，用于测试和无模型环境。
type StubExecutor struct {
	mu sync.Mutex
	// Outcome 每次 Run 返回的结果
	Outcome domain.InferenceOutcome
	// Err 非 nil 时 Run 总是失败
	Err error

	runs int
}

// NewStubExecutor 创建固定返回 "ok" 标签的执行器。
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{
		Outcome: domain.InferenceOutcome{Label: "ok", Confidence: 1.0},
	}
}

// Run 返回预置结果，记录调用次数。
func (e *StubExecutor) Run(ctx context.Context, frame *domain.RawFrame, cfg *domain.FeatureConfig) (*domain.InferenceOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, &domain.InferenceError{ModelID: cfg.ModelID, Err: e.Err}
	}
	e.runs++
	out := e.Outcome
	return &out, nil
}

// Runs 返回累计调用次数。
func (e *StubExecutor) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}
