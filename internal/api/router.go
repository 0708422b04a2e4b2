// Package api 提供边缘视觉推理设备的 HTTP API 处理程序。
// 该文件负责配置 HTTP 路由器和中间件，将 HTTP 请求映射到相应的处理器方法。
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/telemetry"
)

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler API处理器
	Handler *Handler
	// Logger 日志记录器
	Logger *logrus.Logger
}

// NewRouter 创建并配置 HTTP 路由器。
//
// 路由结构：
//
//	/health                                  - 基本健康检查
//	/health/ready                            - 就绪探针
//	/health/live                             - 存活探针
//	/metrics                                 - Prometheus指标端点
//	/api/v1/workflows                        - 工作流管理API
//	/api/v1/workflows/{id}/health            - 工作流健康查询
//	/api/v1/workflows/{id}/run               - 软件触发执行
//	/api/v1/workflows/{id}/captures          - 拍摄记录查询
//	/api/v1/cameras/{id}/preview             - 相机预览
//	/api/v1/stats                            - 系统统计API
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	r := chi.NewRouter()

	// 中间件按照添加顺序执行，形成洋葱模型

	// 遥测中间件：记录HTTP请求的追踪信息
	r.Use(telemetry.HTTPMiddleware("lumen-edged"))

	// RequestID中间件：为每个请求生成唯一ID，便于日志追踪
	r.Use(middleware.RequestID)

	// RealIP中间件：从X-Forwarded-For等头部获取真实客户端IP
	r.Use(middleware.RealIP)

	// Logger中间件：记录请求日志
	r.Use(middleware.Logger)

	// Recoverer中间件：捕获panic并返回500错误，防止服务崩溃
	r.Use(middleware.Recoverer)

	// Timeout中间件：设置请求超时时间为60秒
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS中间件：处理跨域请求
	r.Use(corsMiddleware)

	// 健康检查端点 - 用于负载均衡器和探针
	r.Get("/health", h.Health)      // 基本健康检查
	r.Get("/health/ready", h.Ready) // 就绪探针
	r.Get("/health/live", h.Live)   // 存活探针

	// Prometheus指标端点 - 暴露应用程序指标供监控系统采集
	r.Handle("/metrics", promhttp.Handler())

	// API v1 路由组
	r.Route("/api/v1", func(r chi.Router) {
		// 工作流管理路由组
		r.Route("/workflows", func(r chi.Router) {
			// POST /api/v1/workflows - 创建新工作流
			r.Post("/", h.CreateWorkflow)
			// GET /api/v1/workflows - 获取工作流列表
			r.Get("/", h.ListWorkflows)

			// 单个工作流的操作路由组
			r.Route("/{id}", func(r chi.Router) {
				// GET /api/v1/workflows/{id} - 获取工作流详情
				r.Get("/", h.GetWorkflow)
				// PUT /api/v1/workflows/{id} - 更新工作流
				r.Put("/", h.UpdateWorkflow)
				// DELETE /api/v1/workflows/{id} - 删除工作流
				r.Delete("/", h.DeleteWorkflow)
				// GET /api/v1/workflows/{id}/health - 查询执行单元健康状态
				r.Get("/health", h.WorkflowHealth)
				// POST /api/v1/workflows/{id}/run - 软件触发执行
				r.Post("/run", h.RunWorkflow)
				// GET /api/v1/workflows/{id}/captures - 获取拍摄记录列表
				r.Get("/captures", h.ListCaptures)
				// GET /api/v1/workflows/{id}/captures/latest - 获取最新拍摄记录
				r.Get("/captures/latest", h.LatestCapture)
			})
		})

		// 相机路由组
		r.Route("/cameras", func(r chi.Router) {
			// POST /api/v1/cameras/{id}/preview - 抓取一帧预览图像
			r.Post("/{id}/preview", h.PreviewCamera)
		})

		// GET /api/v1/stats - 系统统计
		r.Get("/stats", h.Stats)
	})

	return r
}

// corsMiddleware 处理跨域请求。
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// 预检请求直接放行
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
