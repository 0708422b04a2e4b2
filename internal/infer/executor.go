// Package infer 提供推理执行器的抽象与实现。
// 推理执行器是不透明的协作方：流水线只关心给帧、拿结构化结果。
package infer

import (
	"context"

	"github.com/oriys/lumen/internal/domain"
)

// Executor 推理执行器。
// 失败以 *domain.InferenceError 返回，流水线将其归入执行失败。
type Executor interface {
	// Run 对一帧执行推理，返回结构化结果
	Run(ctx context.Context, frame *domain.RawFrame, cfg *domain.FeatureConfig) (*domain.InferenceOutcome, error)
}
