// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"time"
)

// ==================== 帧与采集记录 ====================

// RawFrame 一帧原始图像数据。
// 由帧源适配器在触发时刻同步采集，之后在流水线中只读传递。
type RawFrame struct {
	// CameraID 采集该帧的相机标识（文件夹回放时为空）
	CameraID string `json:"camera_id,omitempty"`
	// SourcePath 源文件路径（仅文件夹回放时有值）
	SourcePath string `json:"source_path,omitempty"`
	// Data 原始图像字节
	Data []byte `json:"-"`
	// Format 图像格式标识（如 "jpeg"、"raw8"）
	Format string `json:"format"`
	// CapturedAt 采集时间
	CapturedAt time.Time `json:"captured_at"`
}

// InferenceOutcome 一次推理的结构化结果
type InferenceOutcome struct {
	// Label 分类/异常判定标签
	Label string `json:"label"`
	// Confidence 置信度（0.0 - 1.0）
	Confidence float64 `json:"confidence"`
	// Score 异常分数
	Score float64 `json:"score"`
	// MaskPath 可选的定位掩码产物路径
	MaskPath string `json:"mask_path,omitempty"`
}

// CaptureRecord 一次成功流水线执行的持久化输出。
// 创建后不可变。Outcome 与 CaptureOnly 互斥：
// 配置了推理执行器的工作流产出 Outcome，未配置的产出仅采集标记。
type CaptureRecord struct {
	// ID 采集记录唯一标识符，同时作为输出产物的文件名主干，
	// 使产物与元数据仅凭命名约定即可关联
	ID string `json:"id"`
	// WorkflowID 所属工作流
	WorkflowID string `json:"workflow_id"`
	// ArtifactPath 输出图像产物路径
	ArtifactPath string `json:"artifact_path"`
	// Outcome 推理结果，仅采集模式下为 nil
	Outcome *InferenceOutcome `json:"outcome,omitempty"`
	// CaptureOnly 仅采集标记，与 Outcome 互斥
	CaptureOnly bool `json:"capture_only,omitempty"`
	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at"`
}

// Validate 校验记录的互斥不变量：
// Outcome 与 CaptureOnly 必须恰好设置其一。
func (r *CaptureRecord) Validate() error {
	if r.ID == "" || r.WorkflowID == "" {
		return ErrInvalidCaptureRecord
	}
	if (r.Outcome != nil) == r.CaptureOnly {
		return ErrInvalidCaptureRecord
	}
	return nil
}

// ==================== 存储接口 ====================

// CaptureRepository 采集记录存储接口
type CaptureRepository interface {
	// StoreCaptureRecord 持久化采集记录
	StoreCaptureRecord(rec *CaptureRecord) error
	// GetLatestCapture 获取工作流最近一条采集记录
	GetLatestCapture(workflowID string) (*CaptureRecord, error)
	// ListCaptures 分页列出工作流的采集记录
	ListCaptures(workflowID string, offset, limit int) ([]*CaptureRecord, int, error)
	// DeleteCapturesBefore 删除指定时间之前的采集记录，返回删除条数
	DeleteCapturesBefore(cutoff time.Time) (int64, error)
}
