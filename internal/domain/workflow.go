// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"time"
)

// ==================== 工作流状态类型 ====================

// WorkflowStatus 表示工作流的状态
type WorkflowStatus string

const (
	// WorkflowStatusActive 工作流处于活跃状态，可以被触发执行
	WorkflowStatusActive WorkflowStatus = "active"
	// WorkflowStatusInactive 工作流处于非活跃状态，暂停触发
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// TriggerPolarity 表示数字输入触发器的触发极性
type TriggerPolarity string

const (
	// PolarityRising 上升沿触发：信号电平变为高时触发
	PolarityRising TriggerPolarity = "rising"
	// PolarityFalling 下降沿触发：信号电平变为低时触发
	PolarityFalling TriggerPolarity = "falling"
)

// ==================== 图像源类型 ====================

// ImageSourceType 表示图像源的类型（判别联合的判别字段）
type ImageSourceType string

const (
	// SourceTypeCamera 工业相机图像源，支持触发采集
	SourceTypeCamera ImageSourceType = "camera"
	// SourceTypeFolder 文件夹回放图像源，仅支持回放、不支持触发采集
	SourceTypeFolder ImageSourceType = "folder"
	// SourceTypeSmartCamera 智能相机图像源（本机设备节点），支持触发采集
	SourceTypeSmartCamera ImageSourceType = "smart_camera"
)

// CropRect 图像裁剪区域
type CropRect struct {
	// X 裁剪区域左上角横坐标（像素）
	X int `json:"x"`
	// Y 裁剪区域左上角纵坐标（像素）
	Y int `json:"y"`
	// Width 裁剪区域宽度（像素）
	Width int `json:"width"`
	// Height 裁剪区域高度（像素）
	Height int `json:"height"`
}

// AcquisitionConfig 相机采集参数配置。
// 这些参数在采集时刻一次性下发给相机，流水线执行单元不会重新采集。
type AcquisitionConfig struct {
	// GainDB 相机增益（dB）
	GainDB float64 `json:"gain_db,omitempty"`
	// ExposureUS 曝光时间（微秒）
	ExposureUS int `json:"exposure_us,omitempty"`
	// Crop 可选的裁剪区域，nil 表示全幅
	Crop *CropRect `json:"crop,omitempty"`
}

// ImageSource 图像源描述符（判别联合）。
// Type 决定哪些字段有效：
//   - camera: CameraID + Acquisition
//   - folder: DirectoryPath
//   - smart_camera: DevicePath
type ImageSource struct {
	// Type 图像源类型
	Type ImageSourceType `json:"type"`
	// CameraID 相机标识符（camera 类型）
	CameraID string `json:"camera_id,omitempty"`
	// Acquisition 采集参数（camera 类型）
	Acquisition AcquisitionConfig `json:"acquisition,omitempty"`
	// DirectoryPath 回放目录路径（folder 类型）
	DirectoryPath string `json:"directory_path,omitempty"`
	// DevicePath 设备节点路径（smart_camera 类型）
	DevicePath string `json:"device_path,omitempty"`
}

// SupportsTriggeredAcquisition 返回该图像源是否支持数字输入触发采集。
// 只有 camera 和 smart_camera 类型支持触发采集；
// folder 类型仅用于回放，由独立的文件夹轮询器驱动。
func (s *ImageSource) SupportsTriggeredAcquisition() bool {
	return s.Type == SourceTypeCamera || s.Type == SourceTypeSmartCamera
}

// ==================== 触发器与推理配置 ====================

// InputTriggerConfig 数字输入触发器配置
type InputTriggerConfig struct {
	// Pin GPIO 引脚编号
	Pin int `json:"pin"`
	// Polarity 触发极性（rising/falling）
	Polarity TriggerPolarity `json:"polarity"`
	// DebounceMS 去抖间隔（毫秒），保证相邻两次触发起始时刻的最小间距
	DebounceMS int `json:"debounce_ms"`
}

// TriggerLevel 返回触发电平：上升沿触发对应高电平（true），
// 下降沿触发对应低电平（false）。
func (c *InputTriggerConfig) TriggerLevel() bool {
	return c.Polarity == PolarityRising
}

// Debounce 返回去抖间隔的时间表示。
func (c *InputTriggerConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// FeatureConfig 推理配置：引用一个推理执行器及其模型标识。
// 为 nil 时工作流退化为仅采集模式（capture-only）。
type FeatureConfig struct {
	// Executor 推理执行器标识符
	Executor string `json:"executor"`
	// ModelID 模型标识符
	ModelID string `json:"model_id"`
	// Threshold 判定阈值（可选，0 表示使用执行器默认值）
	Threshold float64 `json:"threshold,omitempty"`
}

// ==================== 工作流定义 ====================

// WorkflowDefinition 工作流定义。
// 由持久化层拥有；触发监视器在每次触发时重新读取快照，
// 不跨触发缓存（配置可能在两次触发之间被修改）。
type WorkflowDefinition struct {
	// ID 工作流唯一标识符
	ID string `json:"id"`
	// Name 工作流名称（唯一）
	Name string `json:"name"`
	// Status 工作流状态
	Status WorkflowStatus `json:"status"`
	// Trigger 数字输入触发器配置，nil 表示无触发器
	Trigger *InputTriggerConfig `json:"trigger,omitempty"`
	// Feature 推理配置，nil 表示仅采集
	Feature *FeatureConfig `json:"feature,omitempty"`
	// Source 图像源描述符
	Source ImageSource `json:"source"`
	// OutputPath 输出产物目录
	OutputPath string `json:"output_path"`
	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt 更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTrigger 返回该工作流是否配置了数字输入触发器。
func (w *WorkflowDefinition) HasTrigger() bool {
	return w.Trigger != nil
}

// ==================== 请求/响应结构体 ====================

// CreateWorkflowRequest 创建工作流请求
type CreateWorkflowRequest struct {
	// Name 工作流名称
	Name string `json:"name"`
	// Trigger 数字输入触发器配置（可选）
	Trigger *InputTriggerConfig `json:"trigger,omitempty"`
	// Feature 推理配置（可选）
	Feature *FeatureConfig `json:"feature,omitempty"`
	// Source 图像源描述符
	Source ImageSource `json:"source"`
	// OutputPath 输出产物目录
	OutputPath string `json:"output_path"`
}

// Validate 验证创建工作流请求。
// 会为缺省字段填充默认值（去抖间隔默认 200ms）。
func (r *CreateWorkflowRequest) Validate() error {
	if r.Name == "" || len(r.Name) > 64 {
		return ErrInvalidWorkflowName
	}
	switch r.Source.Type {
	case SourceTypeCamera:
		if r.Source.CameraID == "" {
			return ErrInvalidImageSource
		}
	case SourceTypeFolder:
		if r.Source.DirectoryPath == "" {
			return ErrInvalidImageSource
		}
	case SourceTypeSmartCamera:
		if r.Source.DevicePath == "" {
			return ErrInvalidImageSource
		}
	default:
		return ErrInvalidImageSource
	}
	if r.Trigger != nil {
		// 文件夹源仅支持回放，拒绝触发采集
		if !r.Source.SupportsTriggeredAcquisition() {
			return ErrTriggerSourceUnsupported
		}
		if r.Trigger.Pin < 0 {
			return ErrInvalidTriggerPin
		}
		if r.Trigger.Polarity != PolarityRising && r.Trigger.Polarity != PolarityFalling {
			return ErrInvalidTriggerPolarity
		}
		if r.Trigger.DebounceMS < 0 || r.Trigger.DebounceMS > 60000 {
			return ErrInvalidDebounce
		}
		if r.Trigger.DebounceMS == 0 {
			r.Trigger.DebounceMS = 200
		}
	}
	if r.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	return nil
}

// UpdateWorkflowRequest 更新工作流请求。
// 所有字段均为可选，nil 表示保持不变。
type UpdateWorkflowRequest struct {
	// Status 工作流状态
	Status *WorkflowStatus `json:"status,omitempty"`
	// Trigger 数字输入触发器配置
	Trigger *InputTriggerConfig `json:"trigger,omitempty"`
	// RemoveTrigger 为 true 时移除触发器配置
	RemoveTrigger bool `json:"remove_trigger,omitempty"`
	// Feature 推理配置
	Feature *FeatureConfig `json:"feature,omitempty"`
	// OutputPath 输出产物目录
	OutputPath *string `json:"output_path,omitempty"`
}

// ==================== 存储接口 ====================

// WorkflowRepository 工作流存储接口
type WorkflowRepository interface {
	// CreateWorkflow 创建工作流
	CreateWorkflow(wf *WorkflowDefinition) error
	// GetWorkflowByID 根据 ID 获取工作流
	GetWorkflowByID(id string) (*WorkflowDefinition, error)
	// ListWorkflows 分页列出工作流
	ListWorkflows(offset, limit int) ([]*WorkflowDefinition, int, error)
	// ListWorkflowsWithTriggers 列出所有配置了数字输入触发器的工作流
	ListWorkflowsWithTriggers() ([]*WorkflowDefinition, error)
	// UpdateWorkflow 更新工作流
	UpdateWorkflow(wf *WorkflowDefinition) error
	// DeleteWorkflow 删除工作流
	DeleteWorkflow(id string) error
	// GetCameraConfig 根据图像源标识获取相机配置
	GetCameraConfig(sourceID string) (*ImageSource, error)
}
