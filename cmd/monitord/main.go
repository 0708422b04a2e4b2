// Package main 是单工作流触发监视器子进程的入口点。
// 进程模式下由守护进程为每个带触发器的工作流拉起一个 monitord 实例，
// 健康状态通过共享内存段回传，子进程崩溃不影响守护进程。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/camera"
	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/events"
	"github.com/oriys/lumen/internal/gpio"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/infer"
	"github.com/oriys/lumen/internal/pipeline"
	"github.com/oriys/lumen/internal/storage"
	"github.com/oriys/lumen/internal/trigger"
)

// drainTimeout 停止后等待在途执行完成的时间
const drainTimeout = 10 * time.Second

func main() {
	// 先清掉从父进程继承的信号处置，本进程自己决定如何响应
	signal.Reset()

	configPath := flag.String("config", "/etc/lumen/config.yaml", "Path to config file")
	workflowID := flag.String("workflow", "", "Workflow ID to monitor")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	if *workflowID == "" {
		logger.Fatal("--workflow is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	pgStore, err := storage.NewPostgresStore(cfg.Storage.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer pgStore.Close()

	redisStore, err := storage.NewRedisStore(cfg.Storage.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisStore.Close()

	def, err := pgStore.GetWorkflowByID(*workflowID)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load workflow definition")
	}
	if !def.HasTrigger() {
		logger.Fatal("Workflow has no input trigger")
	}

	// 事件总线（可选）
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

	// 与守护进程的预览/手动执行共享同一跨进程相机锁
	registry.EnableProcessLock(cfg.Runner.ShmDir)

	inferExec := infer.NewHTTPExecutor(cfg.Infer)
	var publisher pipeline.Publisher
	if bus != nil {
		publisher = bus
	}
	pipe := pipeline.NewExecutor(pgStore, pgStore, inferExec, redisStore, publisher, nil, logger)

	// 共享内存段由父进程分配，这里只更新
	channel := health.NewShmChannel(cfg.Runner.ShmDir)

	mon := trigger.NewMonitor(def, gpio.NewSysfsDriver(), registry, pipe, channel, nil, logger,
		trigger.MonitorConfig{
			PollInterval:       cfg.Trigger.PollInterval,
			Capacity:           cfg.Trigger.Capacity,
			DriverRetryBackoff: cfg.Trigger.DriverRetryBackoff,
			StopTimeout:        cfg.Runner.StopTimeout,
		})
	mon.Start()

	logger.WithFields(logrus.Fields{
		"pin":      def.Trigger.Pin,
		"polarity": def.Trigger.Polarity,
	}).Info("Monitor process started")

	// 等待停止信号；SIGTERM 由守护进程在停止监视器时发出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping monitor...")
	mon.Stop()

	// 在途执行继续完成并持久化，超时则放弃等待
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := mon.Drain(ctx); err != nil {
		logger.WithError(err).Warn("In-flight executions did not finish before shutdown")
	}

	logger.Info("Monitor process stopped")
}
