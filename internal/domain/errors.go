// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"errors"
	"fmt"
)

// 领域错误定义
// 这些错误用于在应用程序的不同层之间传递业务逻辑相关的错误信息。

var (
	// ========== 工作流相关错误 ==========

	// ErrWorkflowNotFound 表示请求的工作流不存在
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrWorkflowExists 表示尝试创建的工作流已经存在（名称冲突）
	ErrWorkflowExists = errors.New("workflow already exists")
	// ErrInvalidWorkflowName 表示工作流名称无效（为空或过长）
	ErrInvalidWorkflowName = errors.New("invalid workflow name")
	// ErrInvalidImageSource 表示图像源描述符无效
	ErrInvalidImageSource = errors.New("invalid image source")
	// ErrInvalidOutputPath 表示输出目录配置无效
	ErrInvalidOutputPath = errors.New("invalid output path")

	// ========== 触发器相关错误 ==========

	// ErrInvalidTriggerPin 表示 GPIO 引脚编号无效
	ErrInvalidTriggerPin = errors.New("invalid trigger pin")
	// ErrInvalidTriggerPolarity 表示触发极性无效
	ErrInvalidTriggerPolarity = errors.New("invalid trigger polarity: must be rising or falling")
	// ErrInvalidDebounce 表示去抖间隔超出有效范围（必须在 0 到 60000 毫秒之间）
	ErrInvalidDebounce = errors.New("invalid debounce: must be between 0 and 60000 milliseconds")
	// ErrTriggerSourceUnsupported 表示图像源不支持触发采集（文件夹源仅支持回放）
	ErrTriggerSourceUnsupported = errors.New("image source does not support triggered acquisition")
	// ErrMonitorNotRunning 表示指定工作流没有正在运行的触发监视器
	ErrMonitorNotRunning = errors.New("trigger monitor not running")

	// ========== 采集/健康相关错误 ==========

	// ErrCaptureNotFound 表示请求的采集记录不存在
	ErrCaptureNotFound = errors.New("capture record not found")
	// ErrInvalidCaptureRecord 表示采集记录违反不变量（Outcome 与 CaptureOnly 必须互斥）
	ErrInvalidCaptureRecord = errors.New("invalid capture record")
	// ErrHealthNotFound 表示从未有监视器为该工作流上报过健康状态
	ErrHealthNotFound = errors.New("health status not found")
	// ErrCameraNotFound 表示请求的相机配置不存在
	ErrCameraNotFound = errors.New("camera not found")

	// ========== 存储相关错误 ==========

	// ErrStorageConnection 表示存储连接错误（如数据库连接失败）
	ErrStorageConnection = errors.New("storage connection error")
	// ErrStorageQuery 表示存储查询错误（如 SQL 查询失败）
	ErrStorageQuery = errors.New("storage query error")
)

// ==================== 带载荷的类型化错误 ====================

// AcquisitionError 帧源采集失败。
// 监视器不重试：该次触发视为失败，健康状态置为 error，不产出采集记录。
type AcquisitionError struct {
	// CameraID 发生故障的相机
	CameraID string
	// Err 底层错误
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("frame acquisition failed on camera %s: %v", e.CameraID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// PipelineExecutionError 推理/处理流水线失败。
// 对文件夹源，SourcePath 携带肇事文件路径，供调用方将其移入 failed/ 隔离目录；
// 相机源没有可隔离的文件，仅记录日志并置健康状态为 error。
type PipelineExecutionError struct {
	// WorkflowID 所属工作流
	WorkflowID string
	// SourcePath 肇事源文件路径（仅文件夹源有值）
	SourcePath string
	// Err 底层错误
	Err error
}

func (e *PipelineExecutionError) Error() string {
	if e.SourcePath != "" {
		return fmt.Sprintf("pipeline execution failed for workflow %s (source %s): %v", e.WorkflowID, e.SourcePath, e.Err)
	}
	return fmt.Sprintf("pipeline execution failed for workflow %s: %v", e.WorkflowID, e.Err)
}

func (e *PipelineExecutionError) Unwrap() error { return e.Err }

// DriverFault GPIO 初始化或读取失败。
// 这是唯一触发"永久重试"的条件：监视器以固定间隔退避后重新初始化，
// 因为它代表设备无法绕开的基础设施。
type DriverFault struct {
	// Pin 发生故障的引脚
	Pin int
	// Err 底层错误
	Err error
}

func (e *DriverFault) Error() string {
	return fmt.Sprintf("gpio driver fault on pin %d: %v", e.Pin, e.Err)
}

func (e *DriverFault) Unwrap() error { return e.Err }

// InferenceError 推理执行器失败
type InferenceError struct {
	// ModelID 执行失败的模型
	ModelID string
	// Err 底层错误
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for model %s: %v", e.ModelID, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
