// Package main 是边缘视觉推理守护进程的入口点。
// 守护进程托管工作流的触发监视器和文件夹轮询器，并暴露管理 API。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/api"
	"github.com/oriys/lumen/internal/camera"
	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/events"
	"github.com/oriys/lumen/internal/folderwatch"
	"github.com/oriys/lumen/internal/gpio"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/infer"
	"github.com/oriys/lumen/internal/metrics"
	"github.com/oriys/lumen/internal/pipeline"
	"github.com/oriys/lumen/internal/retention"
	"github.com/oriys/lumen/internal/storage"
	"github.com/oriys/lumen/internal/telemetry"
	"github.com/oriys/lumen/internal/trigger"
)

func main() {
	// 解析命令行参数，获取配置文件路径
	configPath := flag.String("config", "/etc/lumen/config.yaml", "Path to config file")
	flag.Parse()

	// 使用 JSON 格式输出日志，便于日志收集和分析
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.WithField("mode", cfg.Runner.Mode).Info("Starting Lumen edge daemon")

	// 初始化遥测系统 (OpenTelemetry)
	if cfg.Telemetry.Enabled {
		telCfg := telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRate:  cfg.Telemetry.SampleRate,
			Environment: cfg.Telemetry.Environment,
		}
		tel, err := telemetry.New(context.Background(), telCfg)
		if err != nil {
			// 遥测初始化失败不影响主服务运行
			logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		} else {
			defer tel.Shutdown(context.Background())
			logger.AddHook(telemetry.NewLogrusHook())
			logger.WithFields(logrus.Fields{
				"endpoint":    cfg.Telemetry.Endpoint,
				"sample_rate": cfg.Telemetry.SampleRate,
			}).Info("Telemetry initialized")
		}
	}

	// PostgreSQL 持久化工作流定义和拍摄记录
	pgStore, err := storage.NewPostgresStore(cfg.Storage.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer pgStore.Close()

	// Redis 缓存最新拍摄记录并分配拍摄序号
	redisStore, err := storage.NewRedisStore(cfg.Storage.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisStore.Close()

	// NATS 事件总线（可选）：发布拍摄完成和健康转换事件
	var bus *events.EventBus
	if cfg.Events.NatsURL != "" {
		bus, err = events.NewEventBus(cfg.Events.NatsURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, continuing without events")
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	// Prometheus 指标收集器
	var m *metrics.Metrics
	var metricsCancel context.CancelFunc
	if cfg.Metrics.Enabled {
		namespace := cfg.Metrics.Namespace
		if namespace == "" {
			namespace = "lumen"
		}
		m = metrics.NewMetrics(namespace)

		ctx, cancel := context.WithCancel(context.Background())
		metricsCancel = cancel

		// 定期从数据库刷新工作流计数指标
		updateCounts := func() {
			total, triggered, err := pgStore.CountWorkflows()
			if err == nil {
				m.WorkflowsTotal.Set(float64(total))
				m.TriggeredWorkflows.Set(float64(triggered))
			}
		}
		updateCounts()
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					updateCounts()
				}
			}
		}()
	}

	// 相机注册表：按图像源标识建立相机句柄。
	// 以 / 开头的标识按设备节点打开，其余标识查相机配置表解析。
	registry := camera.NewRegistry(func(cameraID string) (camera.Camera, error) {
		if strings.HasPrefix(cameraID, "/") {
			return camera.NewDeviceCamera(cameraID)
		}
		source, err := pgStore.GetCameraConfig(cameraID)
		if err != nil {
			return nil, err
		}
		if source.DevicePath == "" {
			return nil, domain.ErrCameraNotFound
		}
		return camera.NewDeviceCamera(source.DevicePath)
	})
	defer registry.Close()

	// 进程模式下触发抓帧在 monitord 子进程里，预览/手动执行在这里，
	// 相机锁必须跨进程才能覆盖双方
	if cfg.Runner.Mode == "process" {
		registry.EnableProcessLock(cfg.Runner.ShmDir)
	}

	// 推理执行器与流水线执行单元
	inferExec := infer.NewHTTPExecutor(cfg.Infer)
	var publisher pipeline.Publisher
	if bus != nil {
		publisher = bus
	}
	pipe := pipeline.NewExecutor(pgStore, pgStore, inferExec, redisStore, publisher, m, logger)

	// 触发监视器的执行宿主：进程模式走共享内存健康通道，
	// 线程模式走进程内内存通道
	monCfg := trigger.MonitorConfig{
		PollInterval:       cfg.Trigger.PollInterval,
		Capacity:           cfg.Trigger.Capacity,
		DriverRetryBackoff: cfg.Trigger.DriverRetryBackoff,
		StopTimeout:        cfg.Runner.StopTimeout,
	}
	var runner trigger.MonitorRunner
	if cfg.Runner.Mode == "process" {
		shm := health.NewShmChannel(cfg.Runner.ShmDir)
		runner = trigger.NewProcessRunner(cfg.Runner.MonitordPath, *configPath,
			cfg.Runner.StopTimeout, shm, m, logger)
		logger.Info("Using process runner mode")
	} else {
		runner = trigger.NewThreadRunner(gpio.NewSysfsDriver(), registry, pipe,
			health.NewMemoryChannel(), m, logger, monCfg)
		logger.Info("Using thread runner mode")
	}

	// 触发监视器监督器：开机拉起持久化的带触发器工作流
	var healthPublisher trigger.HealthPublisher
	if bus != nil {
		healthPublisher = bus
	}
	supervisor := trigger.NewSupervisor(pgStore, runner, healthPublisher, logger)
	if err := supervisor.StartAll(context.Background()); err != nil {
		logger.WithError(err).Error("Failed to start trigger supervisor")
	}
	defer supervisor.Shutdown()

	// 文件夹回放轮询器管理器
	folderMgr := folderwatch.NewManager(pipe, health.NewMemoryChannel(), m, logger, cfg.Folder.ScanInterval)
	if err := folderMgr.StartAll(pgStore); err != nil {
		logger.WithError(err).Error("Failed to start folder watch manager")
	}
	defer folderMgr.Shutdown()

	// 保留策略：定时清理过期的拍摄记录与产物
	retentionMgr := retention.NewManager(pgStore, cfg.Retention, logger)
	if err := retentionMgr.Start(); err != nil {
		logger.WithError(err).Error("Failed to start retention manager")
	}
	defer retentionMgr.Stop()

	// API 处理器和路由
	handler := api.NewHandler(pgStore, pgStore, redisStore, supervisor, folderMgr,
		pipe, registry, pgStore, logger)
	router := api.NewRouter(&api.RouterConfig{
		Handler: handler,
		Logger:  logger,
	})

	// 指标端口与主服务端口不同时，单独启动指标服务器
	var metricsServer *http.Server
	if cfg.Metrics.Enabled && cfg.Server.MetricsPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.WithField("port", cfg.Server.MetricsPort).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("Metrics server failed")
			}
		}()
	}

	// 主 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Server.HTTPPort).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// 等待关闭信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down daemon...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	if metricsCancel != nil {
		metricsCancel()
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown error")
		}
	}

	logger.Info("Daemon stopped")
}
