// Package api 提供边缘视觉推理设备的 HTTP API 处理程序。
// 该包实现了 RESTful API 接口，用于管理工作流的创建、查询、更新、删除，
// 以及软件触发执行、健康查询、拍摄记录查询和相机预览。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/camera"
	"github.com/oriys/lumen/internal/domain"
)

// ==================== 协作方接口 ====================

// Monitors 执行单元托管方的生命周期接口。
// 触发监视器的监督器和文件夹轮询器的管理器都实现该接口。
type Monitors interface {
	// Reconcile 根据工作流的最新定义调整执行单元状态
	Reconcile(def *domain.WorkflowDefinition) error
	// Remove 工作流被删除后停掉其执行单元（若有）
	Remove(workflowID string) error
	// Health 读取工作流执行单元的健康状态
	Health(workflowID string) (*domain.HealthStatus, error)
}

// Pipeline 软件触发执行需要的流水线能力。
type Pipeline interface {
	// Execute 对一帧图像执行完整流水线
	Execute(ctx context.Context, workflowID string, frame *domain.RawFrame) (*domain.CaptureRecord, error)
	// ExecuteOldest 回放目录中最旧的一个文件
	ExecuteOldest(ctx context.Context, workflowID, dir string) (*domain.CaptureRecord, error)
}

// CaptureCache 最新拍摄记录的缓存能力（可选协作方）。
type CaptureCache interface {
	// GetCachedLatestCapture 读取缓存的最新拍摄记录
	GetCachedLatestCapture(ctx context.Context, workflowID string) (*domain.CaptureRecord, error)
	// InvalidateLatestCapture 工作流删除后清掉缓存条目
	InvalidateLatestCapture(ctx context.Context, workflowID string) error
}

// Pinger 就绪探针使用的存储连通性检查。
type Pinger interface {
	Ping() error
}

// ==================== 处理器 ====================

// Handler API 请求处理器。
// 封装了存储层、执行单元托管方和流水线的依赖，处理所有 HTTP 请求。
type Handler struct {
	workflows domain.WorkflowRepository
	captures  domain.CaptureRepository
	cache     CaptureCache
	monitors  Monitors
	folders   Monitors
	pipeline  Pipeline
	frames    camera.FrameSource
	pinger    Pinger
	logger    *logrus.Logger
}

// NewHandler 创建处理器。cache 和 pinger 允许为 nil。
func NewHandler(workflows domain.WorkflowRepository, captures domain.CaptureRepository,
	cache CaptureCache, monitors, folders Monitors, pipeline Pipeline,
	frames camera.FrameSource, pinger Pinger, logger *logrus.Logger) *Handler {
	return &Handler{
		workflows: workflows,
		captures:  captures,
		cache:     cache,
		monitors:  monitors,
		folders:   folders,
		pipeline:  pipeline,
		frames:    frames,
		pinger:    pinger,
		logger:    logger,
	}
}

// ==================== 工作流 CRUD ====================

// CreateWorkflow 处理创建工作流的请求。
// HTTP端点: POST /api/v1/workflows
//
// 功能说明：
//   - 解析并验证请求体中的工作流配置
//   - 持久化工作流定义
//   - 为活跃的带触发器工作流拉起监视器，为文件夹工作流拉起轮询器
//
// 请求体格式: domain.CreateWorkflowRequest (JSON)
// 响应格式: 成功返回201和完整的工作流定义
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	def := &domain.WorkflowDefinition{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Status:     domain.WorkflowStatusActive,
		Trigger:    req.Trigger,
		Feature:    req.Feature,
		Source:     req.Source,
		OutputPath: req.OutputPath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.workflows.CreateWorkflow(def); err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	h.reconcile(def)

	h.logger.WithFields(logrus.Fields{
		"workflow_id": def.ID,
		"name":        def.Name,
		"source_type": def.Source.Type,
		"triggered":   def.HasTrigger(),
	}).Info("Workflow created")
	writeJSON(w, http.StatusCreated, def)
}

// ListWorkflows 处理获取工作流列表的请求。
// HTTP端点: GET /api/v1/workflows?offset=0&limit=50
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	defs, total, err := h.workflows.ListWorkflows(offset, limit)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": defs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

// GetWorkflow 处理获取单个工作流的请求。
// HTTP端点: GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, err := h.workflows.GetWorkflowByID(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// UpdateWorkflow 处理更新工作流的请求。
// HTTP端点: PUT /api/v1/workflows/{id}
//
// 功能说明：
//   - 按请求体中的非空字段增量更新工作流定义
//   - 更新后同步调整监视器/轮询器的生命周期：
//     触发器被移除或工作流停用时监视器随之停止
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	def, err := h.workflows.GetWorkflowByID(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	if req.Status != nil {
		def.Status = *req.Status
	}
	if req.RemoveTrigger {
		def.Trigger = nil
	} else if req.Trigger != nil {
		def.Trigger = req.Trigger
	}
	if req.Feature != nil {
		def.Feature = req.Feature
	}
	if req.OutputPath != nil {
		def.OutputPath = *req.OutputPath
	}

	// 借用创建请求的校验（含去抖默认值填充）
	check := domain.CreateWorkflowRequest{
		Name:       def.Name,
		Trigger:    def.Trigger,
		Feature:    def.Feature,
		Source:     def.Source,
		OutputPath: def.OutputPath,
	}
	if err := check.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	def.UpdatedAt = time.Now()
	if err := h.workflows.UpdateWorkflow(def); err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	h.reconcile(def)

	h.logger.WithField("workflow_id", def.ID).Info("Workflow updated")
	writeJSON(w, http.StatusOK, def)
}

// DeleteWorkflow 处理删除工作流的请求。
// HTTP端点: DELETE /api/v1/workflows/{id}
//
// 功能说明：
//   - 先停掉工作流的执行单元（监视器或轮询器）
//   - 删除持久化定义并清掉最新拍摄记录缓存
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.workflows.GetWorkflowByID(id); err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	if err := h.monitors.Remove(id); err != nil {
		h.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to stop monitor for deleted workflow")
	}
	if err := h.folders.Remove(id); err != nil {
		h.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to stop folder watcher for deleted workflow")
	}

	if err := h.workflows.DeleteWorkflow(id); err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateLatestCapture(r.Context(), id); err != nil {
			h.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to invalidate capture cache")
		}
	}

	h.logger.WithField("workflow_id", id).Info("Workflow deleted")
	w.WriteHeader(http.StatusNoContent)
}

// reconcile 调整工作流在两类托管方的执行单元状态。
// 两边都走一遍：图像源类型改变时，不再匹配的一方会把旧单元停掉。
func (h *Handler) reconcile(def *domain.WorkflowDefinition) {
	if err := h.monitors.Reconcile(def); err != nil {
		h.logger.WithError(err).WithField("workflow_id", def.ID).Error("Failed to reconcile trigger monitor")
	}
	if err := h.folders.Reconcile(def); err != nil {
		h.logger.WithError(err).WithField("workflow_id", def.ID).Error("Failed to reconcile folder watcher")
	}
}

// ==================== 健康与执行 ====================

// WorkflowHealth 处理查询工作流健康状态的请求。
// HTTP端点: GET /api/v1/workflows/{id}/health
//
// 返回值：
//   - 200: 当前健康状态（starting/running/error）
//   - 404: 工作流不存在，或没有运行中的执行单元
func (h *Handler) WorkflowHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, err := h.workflows.GetWorkflowByID(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	host := h.monitors
	if def.Source.Type == domain.SourceTypeFolder {
		host = h.folders
	}
	status, err := host.Health(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RunWorkflow 处理软件触发执行的请求。
// HTTP端点: POST /api/v1/workflows/{id}/run
//
// 功能说明：
//   - 文件夹工作流：回放目录中最旧的一个文件
//   - 相机工作流：同步抓取一帧并执行完整流水线，
//     与数字输入触发共享同一相机串行化点
//
// 返回值：
//   - 200: 本次执行产出的拍摄记录
//   - 404: 工作流不存在，或回放目录为空
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	def, err := h.workflows.GetWorkflowByID(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}

	if def.Source.Type == domain.SourceTypeFolder {
		rec, err := h.pipeline.ExecuteOldest(r.Context(), id, def.Source.DirectoryPath)
		if err != nil {
			writeError(w, r, statusFromError(err), err.Error())
			return
		}
		if rec == nil {
			writeError(w, r, http.StatusNotFound, "replay directory is empty")
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	var cameraID string
	switch def.Source.Type {
	case domain.SourceTypeCamera:
		cameraID = def.Source.CameraID
	case domain.SourceTypeSmartCamera:
		cameraID = def.Source.DevicePath
	default:
		writeError(w, r, http.StatusBadRequest, domain.ErrInvalidImageSource.Error())
		return
	}

	frame, err := h.frames.AcquireFrame(r.Context(), cameraID, def.Source.Acquisition)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	rec, err := h.pipeline.Execute(r.Context(), id, frame)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ==================== 拍摄记录 ====================

// LatestCapture 处理查询最新拍摄记录的请求。
// HTTP端点: GET /api/v1/workflows/{id}/captures/latest
//
// 功能说明：
//   - 优先读缓存，未命中时回落到持久化存储
func (h *Handler) LatestCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		if rec, err := h.cache.GetCachedLatestCapture(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := h.captures.GetLatestCapture(id)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListCaptures 处理查询拍摄记录列表的请求。
// HTTP端点: GET /api/v1/workflows/{id}/captures?offset=0&limit=50
func (h *Handler) ListCaptures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	offset, limit := pagination(r)

	recs, total, err := h.captures.ListCaptures(id, offset, limit)
	if err != nil {
		writeError(w, r, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"captures": recs,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

// ==================== 相机预览 ====================

// PreviewCamera 处理相机预览的请求。
// HTTP端点: POST /api/v1/cameras/{id}/preview
//
// 功能说明：
//   - 可选请求体携带采集参数（domain.AcquisitionConfig）
//   - 与触发路径共享同一相机串行化点：预览期间触发抓帧会排队等待
//   - 直接返回图像字节，Content-Type 按帧格式设置
func (h *Handler) PreviewCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cfg domain.AcquisitionConfig
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	frame, err := h.frames.AcquireFrame(r.Context(), id, cfg)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypeForFormat(frame.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame.Data)
}

// ==================== 健康检查与统计 ====================

// Health 处理基本健康检查请求。
// HTTP端点: GET /health
//
// 返回值：{"status": "healthy"}
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready 处理就绪探针请求。
// HTTP端点: GET /health/ready
//
// 返回值：
//   - 200: 服务就绪
//   - 503: 数据库连接失败
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live 处理存活探针请求。
// HTTP端点: GET /health/live
//
// 返回值：{"status": "alive"}
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Stats 处理获取系统统计信息的请求。
// HTTP端点: GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if counter, ok := h.workflows.(interface {
		CountWorkflows() (int, int, error)
	}); ok {
		total, triggered, err := counter.CountWorkflows()
		if err == nil {
			stats["workflows"] = total
			stats["triggered_workflows"] = triggered
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// ==================== 辅助函数 ====================

// pagination 解析 offset/limit 查询参数，limit 缺省为 50。
func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	return offset, limit
}

// statusFromError 把领域错误映射为 HTTP 状态码。
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrWorkflowNotFound),
		errors.Is(err, domain.ErrCaptureNotFound),
		errors.Is(err, domain.ErrHealthNotFound),
		errors.Is(err, domain.ErrCameraNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWorkflowExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidWorkflowName),
		errors.Is(err, domain.ErrInvalidImageSource),
		errors.Is(err, domain.ErrInvalidOutputPath),
		errors.Is(err, domain.ErrInvalidTriggerPin),
		errors.Is(err, domain.ErrInvalidTriggerPolarity),
		errors.Is(err, domain.ErrInvalidDebounce),
		errors.Is(err, domain.ErrTriggerSourceUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageConnection),
		errors.Is(err, domain.ErrStorageQuery):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// contentTypeForFormat 把帧格式映射为 MIME 类型。
func contentTypeForFormat(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ErrorResponse 统一的错误响应结构体。
type ErrorResponse struct {
	// Error 错误消息
	Error string `json:"error"`
	// RequestID 请求ID，用于关联日志
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应。
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以统一的 JSON 格式写入 HTTP 响应，
// 并附带请求上下文中的 request_id 便于关联日志。
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
