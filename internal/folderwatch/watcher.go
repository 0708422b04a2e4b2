// Package folderwatch 托管文件夹图像源工作流的回放轮询器。
// 每个文件夹工作流一个轮询器：监听文件系统创建事件并周期性重扫，
// 按最旧优先把落盘文件逐个喂给流水线。
package folderwatch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// Pipeline 文件夹回放需要的流水线能力。
type Pipeline interface {
	ExecuteOldest(ctx context.Context, workflowID, dir string) (*domain.CaptureRecord, error)
}

// Watcher 单个文件夹工作流的回放轮询器。
// 文件系统事件只是唤醒信号，真正的选取始终走目录重扫，
// 因此事件丢失最多把处理推迟到下一个扫描周期。
type Watcher struct {
	def          *domain.WorkflowDefinition
	pipeline     Pipeline
	channel      health.Channel
	metrics      *metrics.Metrics
	logger       *logrus.Logger
	scanInterval time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewWatcher 创建文件夹回放轮询器。
func NewWatcher(def *domain.WorkflowDefinition, pipeline Pipeline, channel health.Channel,
	m *metrics.Metrics, logger *logrus.Logger, scanInterval time.Duration) *Watcher {
	if scanInterval <= 0 {
		scanInterval = 2 * time.Second
	}
	return &Watcher{
		def:          def,
		pipeline:     pipeline,
		channel:      channel,
		metrics:      m,
		logger:       logger,
		scanInterval: scanInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start 启动轮询协程。
func (w *Watcher) Start() {
	go w.run()
}

// Stop 停止轮询器并等待协程退出。幂等。
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)

	dir := w.def.Source.DirectoryPath
	entry := w.logger.WithFields(logrus.Fields{
		"workflow_id": w.def.ID,
		"folder":      dir,
	})

	// 文件系统事件加速响应，创建失败时退化为纯周期扫描
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(dir); err == nil {
			events = watcher.Events
		} else {
			entry.WithError(err).Warn("Failed to watch folder, falling back to periodic scans")
			_ = watcher.Close()
			watcher = nil
		}
	} else {
		entry.WithError(err).Warn("Failed to create fs watcher, falling back to periodic scans")
	}
	if watcher != nil {
		defer watcher.Close()
	}

	entry.Info("Folder watcher started")

	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	// 启动时先清一遍积压
	w.drain()

	for {
		select {
		case <-w.stop:
			entry.Info("Folder watcher stopped")
			return
		case <-ticker.C:
			w.drain()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.drain()
			}
		}
	}
}

// drain 逐个回放目录里的文件，最旧优先。
// 单个文件失败时流水线已把它隔离进 failed/，置 error 后停下本轮，
// 等下一个扫描周期再试后续文件。
func (w *Watcher) drain() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		record, err := w.pipeline.ExecuteOldest(context.Background(), w.def.ID, w.def.Source.DirectoryPath)
		if err != nil {
			w.logger.WithError(err).WithField("workflow_id", w.def.ID).Error("Folder replay failed")
			w.updateHealth(domain.HealthError, err.Error())
			return
		}
		if record == nil {
			// 目录空了
			return
		}
		w.updateHealth(domain.HealthRunning, "")
	}
}

func (w *Watcher) updateHealth(state domain.HealthState, detail string) {
	if err := w.channel.Update(w.def.ID, state, detail); err != nil {
		w.logger.WithError(err).WithField("workflow_id", w.def.ID).Warn("Failed to update health")
	}
}
