// Package trigger 提供数字输入触发监视器及其执行宿主。
// 监视器轮询一条 GPIO 线路，在去抖约束下点火：同步抓帧、
// 受容量限制地提交流水线执行，并把结果写入健康通道。
package trigger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/camera"
	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/gpio"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// PipelineExecutor 监视器需要的流水线能力。
type PipelineExecutor interface {
	Execute(ctx context.Context, workflowID string, frame *domain.RawFrame) (*domain.CaptureRecord, error)
}

// MonitorConfig 监视器运行参数。
type MonitorConfig struct {
	// PollInterval 数字输入轮询间隔，默认 1 毫秒
	PollInterval time.Duration
	// Capacity 并发执行槽位数，默认 2
	Capacity int
	// DriverRetryBackoff 驱动故障后重新初始化前的固定退避，默认 10 秒
	DriverRetryBackoff time.Duration
	// StopTimeout Stop 等待主循环退出的上限，默认 10 秒。
	// 超时后 Stop 直接返回，主循环在当前阻塞点（如挂死的抓帧）
	// 解除后自行退出
	StopTimeout time.Duration
}

// applyDefaults 为未设置的参数填充默认值。
func (c *MonitorConfig) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = time.Millisecond
	}
	if c.Capacity == 0 {
		c.Capacity = 2
	}
	if c.DriverRetryBackoff == 0 {
		c.DriverRetryBackoff = 10 * time.Second
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 10 * time.Second
	}
}

// Monitor 单个工作流的数字输入触发监视器。
//
// 状态机（每个实例独立）：
//   - 等待复位（初始）：读到与触发电平不同的电平后武装
//   - 已武装：读到触发电平即点火，点火后回到等待复位
//
// 开机时刻信号恰好停在触发电平不会立即点火，必须先观察到一次复位。
type Monitor struct {
	def      *domain.WorkflowDefinition
	driver   gpio.Driver
	frames   camera.FrameSource
	pipeline PipelineExecutor
	health   health.Channel
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	cfg      MonitorConfig

	stop    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	// slots 在途执行槽位信号量；提交前非阻塞获取，满了就丢弃本次触发
	slots chan struct{}
	// inFlight 跟踪已提交的流水线任务，Drain 用
	inFlight sync.WaitGroup
	// sawSuccess 是否已有过成功执行；健康状态一旦离开 starting 不再回去
	sawSuccess atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor 创建触发监视器。
// def 必须携带触发器配置且图像源支持触发采集，由调用方保证。
func NewMonitor(def *domain.WorkflowDefinition, driver gpio.Driver, frames camera.FrameSource,
	pipeline PipelineExecutor, healthCh health.Channel, m *metrics.Metrics,
	logger *logrus.Logger, cfg MonitorConfig) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		def:      def,
		driver:   driver,
		frames:   frames,
		pipeline: pipeline,
		health:   healthCh,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		slots:    make(chan struct{}, cfg.Capacity),
	}
}

// Start 启动监视器主循环（幂等）。
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Stop 请求监视器停止并等待主循环退出，最多等待 StopTimeout。
// 主循环通常在一个轮询间隔内观察到停止标志；点火路径卡在同步抓帧
// （相机挂死）时主循环无法退出，超时后 Stop 直接返回，循环在抓帧
// 解除后自行退出。在途流水线执行不被打断，它们会继续完成并持久化，
// 但不再写健康通道。
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.stop)
	})
	select {
	case <-m.done:
	case <-time.After(m.cfg.StopTimeout):
		m.logger.WithFields(logrus.Fields{
			"workflow_id": m.def.ID,
			"timeout":     m.cfg.StopTimeout,
		}).Warn("Monitor did not exit within stop timeout, proceeding")
	}
}

// Drain 等待所有在途流水线执行完成，或 ctx 超时。
func (m *Monitor) Drain(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isStopped 返回是否已请求停止。
func (m *Monitor) isStopped() bool {
	return m.stopped.Load()
}

// sleep 可被停止打断的睡眠，返回 false 表示停止被请求。
func (m *Monitor) sleep(d time.Duration) bool {
	if d <= 0 {
		return !m.isStopped()
	}
	select {
	case <-m.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// run 监视器外层循环：打开线路、轮询，驱动故障后固定退避重试。
// GPIO 是设备无法绕开的基础设施，重试永不放弃。
func (m *Monitor) run() {
	defer close(m.done)

	pin := m.def.Trigger.Pin
	for {
		if m.isStopped() {
			return
		}

		line, err := m.driver.Open(pin)
		if err != nil {
			m.reportDriverFault(&domain.DriverFault{Pin: pin, Err: err})
			if !m.sleep(m.cfg.DriverRetryBackoff) {
				return
			}
			continue
		}

		m.logger.WithFields(logrus.Fields{
			"workflow_id": m.def.ID,
			"pin":         pin,
		}).Info("Trigger monitor polling started")

		err = m.poll(line)
		_ = line.Close()
		if m.isStopped() {
			return
		}

		// 轮询循环异常退出：上报、退避、重新初始化
		m.reportDriverFault(err)
		if m.metrics != nil {
			m.metrics.MonitorRestartsTotal.WithLabelValues(m.def.ID, "driver_fault").Inc()
		}
		if !m.sleep(m.cfg.DriverRetryBackoff) {
			return
		}
	}
}

// reportDriverFault 记录驱动故障并置健康状态为 error。
func (m *Monitor) reportDriverFault(err error) {
	m.logger.WithError(err).WithField("workflow_id", m.def.ID).Error("Trigger driver fault")
	if updateErr := m.health.Update(m.def.ID, domain.HealthError, err.Error()); updateErr != nil {
		m.logger.WithError(updateErr).WithField("workflow_id", m.def.ID).Warn("Failed to report health")
	}
}

// poll 轮询主循环，运行状态机直到停止或读取出错。
func (m *Monitor) poll(line gpio.Line) (err error) {
	// 状态机或点火路径的任何逃逸 panic 都转成错误，由外层退避重试
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger monitor panic: %v", r)
		}
	}()

	triggerLevel := m.def.Trigger.TriggerLevel()
	armed := false

	for {
		select {
		case <-m.stop:
			return nil
		default:
		}

		level, readErr := line.Read()
		if readErr != nil {
			return &domain.DriverFault{Pin: m.def.Trigger.Pin, Err: readErr}
		}

		if !armed {
			// 等待复位：观察到非触发电平才武装
			if level != triggerLevel {
				armed = true
			}
			if !m.sleep(m.cfg.PollInterval) {
				return nil
			}
			continue
		}

		if level != triggerLevel {
			if !m.sleep(m.cfg.PollInterval) {
				return nil
			}
			continue
		}

		// 已武装且读到触发电平：点火
		armed = false
		fireStart := time.Now()
		m.fire()

		// 去抖从点火判定时刻起算，覆盖抓帧与提交的耗时，
		// 睡掉剩余部分后再恢复轮询
		if !m.sleep(m.def.Trigger.Debounce() - time.Since(fireStart)) {
			return nil
		}
	}
}

// fire 点火路径：先占执行槽位，再同步抓帧并提交流水线执行。
// 槽位检查在抓帧之前，注定被丢弃的点火不付出硬件采集的代价。
// 抓帧在轮询协程内同步完成，保证帧内容对应触发时刻。
func (m *Monitor) fire() {
	if m.metrics != nil {
		m.metrics.TriggerFiresTotal.WithLabelValues(m.def.ID).Inc()
	}

	// 非阻塞获取执行槽位：满容量的点火被丢弃，绝不排队
	select {
	case m.slots <- struct{}{}:
	default:
		m.logger.WithFields(logrus.Fields{
			"workflow_id": m.def.ID,
			"capacity":    m.cfg.Capacity,
		}).Warn("Trigger fire dropped: execution slots exhausted")
		if m.metrics != nil {
			m.metrics.TriggerDropsTotal.WithLabelValues(m.def.ID).Inc()
		}
		return
	}

	// 定义每次点火重新读取，配置可能已被修改
	frame, err := m.acquire()
	if err != nil {
		<-m.slots
		m.logger.WithError(err).WithField("workflow_id", m.def.ID).Error("Frame acquisition failed")
		m.updateHealth(domain.HealthError, err.Error())
		return
	}

	m.inFlight.Add(1)
	if m.metrics != nil {
		m.metrics.InFlightExecutions.WithLabelValues(m.def.ID).Inc()
	}
	go m.runPipeline(frame)
}

// acquire 按当前定义同步抓取一帧。
func (m *Monitor) acquire() (*domain.RawFrame, error) {
	start := time.Now()
	var cameraID string
	switch m.def.Source.Type {
	case domain.SourceTypeCamera:
		cameraID = m.def.Source.CameraID
	case domain.SourceTypeSmartCamera:
		cameraID = m.def.Source.DevicePath
	default:
		return nil, &domain.AcquisitionError{
			Err: fmt.Errorf("source type %s cannot supply trigger frames", m.def.Source.Type),
		}
	}

	frame, err := m.frames.AcquireFrame(context.Background(), cameraID, m.def.Source.Acquisition)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.AcquisitionDuration.WithLabelValues(m.def.ID).
			Observe(float64(time.Since(start).Milliseconds()))
	}
	return frame, nil
}

// runPipeline 执行包装器：所有失败都在任务边界被捕获并转成健康错误，
// 不会传播回轮询循环。
func (m *Monitor) runPipeline(frame *domain.RawFrame) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(logrus.Fields{
				"workflow_id": m.def.ID,
				"panic":       r,
			}).Error("Pipeline execution panicked")
			m.updateHealth(domain.HealthError, fmt.Sprintf("pipeline panic: %v", r))
		}
		<-m.slots
		if m.metrics != nil {
			m.metrics.InFlightExecutions.WithLabelValues(m.def.ID).Dec()
		}
		m.inFlight.Done()
	}()

	if _, err := m.pipeline.Execute(context.Background(), m.def.ID, frame); err != nil {
		m.logger.WithError(err).WithField("workflow_id", m.def.ID).Error("Pipeline execution failed")
		m.updateHealth(domain.HealthError, err.Error())
		return
	}

	m.sawSuccess.Store(true)
	m.updateHealth(domain.HealthRunning, "")
}

// updateHealth 写健康通道。
// 停止之后不再写入：通道条目可能已被宿主释放，迟到的写入会复活它。
func (m *Monitor) updateHealth(state domain.HealthState, detail string) {
	if m.isStopped() {
		return
	}
	if err := m.health.Update(m.def.ID, state, detail); err != nil {
		m.logger.WithError(err).WithField("workflow_id", m.def.ID).Warn("Failed to update health")
	}
}
