// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 API 客户端，用于与边缘守护进程的管理 API 进行通信。
//
// Client 封装了所有与守护进程的交互逻辑，包括：
//   - 工作流的 CRUD 操作（创建、读取、更新、删除）
//   - 工作流健康状态查询
//   - 手动执行工作流
//   - 拍摄记录查询
//   - 系统统计查询
//
// 客户端使用 HTTP/JSON 协议与守护进程通信，支持错误处理和超时控制。
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// Client 是边缘守护进程的 API 客户端。
// 封装了与管理 API 通信的所有方法，使用 HTTP/JSON 协议。
type Client struct {
	baseURL    string       // 守护进程 API 的基础 URL
	httpClient *http.Client // HTTP 客户端，用于发送请求
}

// NewClient 创建一个新的 API 客户端实例。
// 从 viper 配置中读取 api_url，如果未配置则使用默认值 http://localhost:8080。
// HTTP 客户端默认超时时间为 60 秒。
//
// 返回值：
//   - *Client: 新创建的客户端实例
func NewClient() *Client {
	baseURL := viper.GetString("api_url")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ====== 领域模型定义 ======

// CropRect 图像裁剪区域。
type CropRect struct {
	X      int `json:"x"`      // 左上角 X 坐标
	Y      int `json:"y"`      // 左上角 Y 坐标
	Width  int `json:"width"`  // 宽度（像素）
	Height int `json:"height"` // 高度（像素）
}

// AcquisitionConfig 采集参数。
type AcquisitionConfig struct {
	GainDB     float64   `json:"gain_db,omitempty"`     // 增益（dB）
	ExposureUS int       `json:"exposure_us,omitempty"` // 曝光时间（微秒）
	Crop       *CropRect `json:"crop,omitempty"`        // 裁剪区域
}

// ImageSource 工作流的图像来源。
type ImageSource struct {
	Type          string            `json:"type"`                     // 来源类型：camera、smart_camera 或 folder
	CameraID      string            `json:"camera_id,omitempty"`      // 相机标识（camera 类型）
	Acquisition   AcquisitionConfig `json:"acquisition,omitempty"`    // 采集参数
	DirectoryPath string            `json:"directory_path,omitempty"` // 回放目录（folder 类型）
	DevicePath    string            `json:"device_path,omitempty"`    // 设备节点路径（smart_camera 类型）
}

// TriggerConfig 数字输入触发器配置。
type TriggerConfig struct {
	Pin        int    `json:"pin"`         // GPIO 引脚编号
	Polarity   string `json:"polarity"`    // 触发极性：rising 或 falling
	DebounceMS int    `json:"debounce_ms"` // 去抖时间（毫秒）
}

// FeatureConfig 推理功能配置。
type FeatureConfig struct {
	Executor  string  `json:"executor"`            // 推理执行器标识
	ModelID   string  `json:"model_id"`            // 模型标识
	Threshold float64 `json:"threshold,omitempty"` // 判定阈值
}

// Workflow 表示一个工作流的完整信息。
type Workflow struct {
	ID         string         `json:"id"`                // 工作流唯一标识符
	Name       string         `json:"name"`              // 工作流名称
	Status     string         `json:"status"`            // 状态：active 或 inactive
	Trigger    *TriggerConfig `json:"trigger,omitempty"` // 触发器配置（可选）
	Feature    *FeatureConfig `json:"feature,omitempty"` // 推理功能配置（可选）
	Source     ImageSource    `json:"source"`            // 图像来源
	OutputPath string         `json:"output_path"`       // 输出产物目录
	CreatedAt  time.Time      `json:"created_at"`        // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`        // 更新时间
}

// CreateWorkflowRequest 表示创建工作流的 API 请求体。
type CreateWorkflowRequest struct {
	Name       string         `json:"name"`              // 工作流名称，需唯一
	Trigger    *TriggerConfig `json:"trigger,omitempty"` // 触发器配置
	Feature    *FeatureConfig `json:"feature,omitempty"` // 推理功能配置
	Source     ImageSource    `json:"source"`            // 图像来源
	OutputPath string         `json:"output_path"`       // 输出产物目录
}

// UpdateWorkflowRequest 表示更新工作流的 API 请求体。
// 所有字段都是可选的，只有提供的字段会被更新。
type UpdateWorkflowRequest struct {
	Status        *string        `json:"status,omitempty"`
	Trigger       *TriggerConfig `json:"trigger,omitempty"`
	RemoveTrigger bool           `json:"remove_trigger,omitempty"`
	Feature       *FeatureConfig `json:"feature,omitempty"`
	OutputPath    *string        `json:"output_path,omitempty"`
}

// HealthStatus 工作流健康状态。
type HealthStatus struct {
	WorkflowID string    `json:"workflow_id"` // 工作流标识
	State      string    `json:"state"`       // 状态：starting、running 或 error
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"` // 最近一次状态更新时间
}

// InferenceOutcome 一次推理的结构化结果。
type InferenceOutcome struct {
	Label      string  `json:"label"`               // 分类/异常判定标签
	Confidence float64 `json:"confidence"`          // 置信度（0.0 - 1.0）
	Score      float64 `json:"score"`               // 异常分数
	MaskPath   string  `json:"mask_path,omitempty"` // 定位掩码产物路径
}

// CaptureRecord 一次流水线执行的持久化输出。
type CaptureRecord struct {
	ID           string            `json:"id"`                     // 记录标识
	WorkflowID   string            `json:"workflow_id"`            // 所属工作流
	ArtifactPath string            `json:"artifact_path"`          // 输出图像产物路径
	Outcome      *InferenceOutcome `json:"outcome,omitempty"`      // 推理结果
	CaptureOnly  bool              `json:"capture_only,omitempty"` // 仅采集标记
	CreatedAt    time.Time         `json:"created_at"`             // 创建时间
}

// ListWorkflowsResponse 工作流列表响应。
type ListWorkflowsResponse struct {
	Workflows []Workflow `json:"workflows"` // 工作流列表
	Total     int        `json:"total"`     // 总数
	Offset    int        `json:"offset"`    // 分页偏移
	Limit     int        `json:"limit"`     // 分页大小
}

// ListCapturesResponse 拍摄记录列表响应。
type ListCapturesResponse struct {
	Captures []CaptureRecord `json:"captures"` // 拍摄记录列表
	Total    int             `json:"total"`    // 总数
	Offset   int             `json:"offset"`   // 分页偏移
	Limit    int             `json:"limit"`    // 分页大小
}

// Stats 系统统计信息。
type Stats struct {
	Workflows          int `json:"workflows"`           // 工作流总数
	TriggeredWorkflows int `json:"triggered_workflows"` // 带触发器的工作流数
}

// APIError 表示守护进程返回的 API 错误。
type APIError struct {
	Message   string `json:"error"`                // 错误消息
	RequestID string `json:"request_id,omitempty"` // 请求追踪标识
	Status    int    `json:"-"`                    // HTTP 状态码
}

// Error 实现 error 接口。
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id: %s)", e.Message, e.RequestID)
	}
	return e.Message
}

// ====== HTTP 辅助方法 ======

// do 执行 HTTP 请求并解析响应。
// 统一处理请求体序列化、错误响应解析和结果反序列化。
//
// 参数：
//   - method: HTTP 方法（GET、POST、PUT、DELETE）
//   - path: API 路径
//   - body: 请求体对象，nil 表示无请求体
//   - result: 响应结果的接收对象，nil 表示忽略响应体
func (c *Client) do(method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			apiErr.Status = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// ====== 工作流操作 ======

// CreateWorkflow 创建一个新工作流。
func (c *Client) CreateWorkflow(req *CreateWorkflowRequest) (*Workflow, error) {
	var wf Workflow
	if err := c.do("POST", "/api/v1/workflows", req, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows 列出工作流。
func (c *Client) ListWorkflows(offset, limit int) (*ListWorkflowsResponse, error) {
	var resp ListWorkflowsResponse
	path := fmt.Sprintf("/api/v1/workflows?offset=%d&limit=%d", offset, limit)
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWorkflow 获取单个工作流详情。
func (c *Client) GetWorkflow(id string) (*Workflow, error) {
	var wf Workflow
	if err := c.do("GET", "/api/v1/workflows/"+id, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpdateWorkflow 更新工作流配置。
func (c *Client) UpdateWorkflow(id string, req *UpdateWorkflowRequest) (*Workflow, error) {
	var wf Workflow
	if err := c.do("PUT", "/api/v1/workflows/"+id, req, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// DeleteWorkflow 删除工作流。
func (c *Client) DeleteWorkflow(id string) error {
	return c.do("DELETE", "/api/v1/workflows/"+id, nil, nil)
}

// WorkflowHealth 查询工作流的健康状态。
func (c *Client) WorkflowHealth(id string) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do("GET", "/api/v1/workflows/"+id+"/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RunWorkflow 手动执行一次工作流，返回产生的拍摄记录。
func (c *Client) RunWorkflow(id string) (*CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.do("POST", "/api/v1/workflows/"+id+"/run", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ====== 拍摄记录操作 ======

// ListCaptures 列出工作流的拍摄记录。
func (c *Client) ListCaptures(workflowID string, offset, limit int) (*ListCapturesResponse, error) {
	var resp ListCapturesResponse
	path := fmt.Sprintf("/api/v1/workflows/%s/captures?offset=%d&limit=%d", workflowID, offset, limit)
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestCapture 获取工作流最近一条拍摄记录。
func (c *Client) LatestCapture(workflowID string) (*CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.do("GET", "/api/v1/workflows/"+workflowID+"/captures/latest", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ====== 系统操作 ======

// GetStats 获取系统统计信息。
func (c *Client) GetStats() (*Stats, error) {
	var stats Stats
	if err := c.do("GET", "/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
