//go:build linux

// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// ProcessRunner 子进程托管的执行宿主。
// 每个监视器是一个独立的 monitord 子进程，健康状态走共享内存通道，
// 单个监视器崩溃不影响守护进程和其他监视器。子进程在自己的进程组里
// 运行，父子的信号处置互不干扰。
type ProcessRunner struct {
	// monitordPath monitord 可执行文件路径
	monitordPath string
	// configPath 传递给子进程的配置文件路径
	configPath string
	// stopTimeout SIGTERM 之后等待子进程退出的时间，超时后 SIGKILL
	stopTimeout time.Duration

	channel health.Channel
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu    sync.Mutex
	procs map[string]*childProc
}

// childProc 一个托管中的 monitord 子进程。
type childProc struct {
	cmd *exec.Cmd
	// exited 在子进程退出后关闭
	exited chan struct{}
}

// NewProcessRunner 创建子进程执行宿主。
func NewProcessRunner(monitordPath, configPath string, stopTimeout time.Duration,
	channel health.Channel, m *metrics.Metrics, logger *logrus.Logger) *ProcessRunner {
	if stopTimeout == 0 {
		stopTimeout = 10 * time.Second
	}
	return &ProcessRunner{
		monitordPath: monitordPath,
		configPath:   configPath,
		stopTimeout:  stopTimeout,
		channel:      channel,
		metrics:      m,
		logger:       logger,
		procs:        make(map[string]*childProc),
	}
}

// Start 为工作流拉起 monitord 子进程，已在运行时先隐式停止旧实例。
func (r *ProcessRunner) Start(def *domain.WorkflowDefinition) error {
	if err := validateTriggerDef(def); err != nil {
		return err
	}

	if r.IsRunning(def.ID) {
		if err := r.Stop(def.ID); err != nil {
			return err
		}
	}

	// 共享内存段由父进程分配，子进程只更新
	if err := r.channel.Allocate(def.ID); err != nil {
		return err
	}

	cmd := exec.Command(r.monitordPath, "--config", r.configPath, "--workflow", def.ID)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// 子进程放入独立进程组：发给守护进程组的信号不会波及监视器，
	// 停止监视器的信号也不会波及守护进程
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = r.channel.Release(def.ID)
		return err
	}

	proc := &childProc{cmd: cmd, exited: make(chan struct{})}
	r.mu.Lock()
	r.procs[def.ID] = proc
	r.mu.Unlock()

	// 收割协程：子进程退出后记录并关闭退出通知
	go func() {
		err := cmd.Wait()
		close(proc.exited)
		entry := r.logger.WithFields(logrus.Fields{
			"workflow_id": def.ID,
			"pid":         cmd.Process.Pid,
		})
		if err != nil {
			entry.WithError(err).Warn("Monitor process exited")
		} else {
			entry.Info("Monitor process exited")
		}
	}()

	if r.metrics != nil {
		r.metrics.MonitorsRunning.Inc()
	}
	r.logger.WithFields(logrus.Fields{
		"workflow_id": def.ID,
		"pid":         cmd.Process.Pid,
		"pin":         def.Trigger.Pin,
	}).Info("Monitor started in process mode")
	return nil
}

// Stop 停止工作流的监视器子进程。
// 先发 SIGTERM 给子进程优雅退出的机会；超时后 SIGKILL 并继续，
// 最后释放共享内存段。
func (r *ProcessRunner) Stop(workflowID string) error {
	r.mu.Lock()
	proc, ok := r.procs[workflowID]
	if ok {
		delete(r.procs, workflowID)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrMonitorNotRunning
	}

	if err := proc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// 进程可能已经死了，继续走释放流程
		r.logger.WithError(err).WithField("workflow_id", workflowID).Debug("SIGTERM delivery failed")
	}

	select {
	case <-proc.exited:
	case <-time.After(r.stopTimeout):
		r.logger.WithFields(logrus.Fields{
			"workflow_id": workflowID,
			"timeout":     r.stopTimeout,
		}).Warn("Monitor process did not exit in time, sending SIGKILL")
		_ = proc.cmd.Process.Kill()
		<-proc.exited
	}

	if err := r.channel.Release(workflowID); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.MonitorsRunning.Dec()
	}
	r.logger.WithField("workflow_id", workflowID).Info("Monitor stopped")
	return nil
}

// IsRunning 返回工作流是否有存活的监视器子进程。
// 子进程自行崩溃的存活性检测是监督器的职责，这里只看托管表。
func (r *ProcessRunner) IsRunning(workflowID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[workflowID]
	return ok
}

// Health 读取工作流监视器的健康状态（跨进程共享内存）。
func (r *ProcessRunner) Health(workflowID string) (*domain.HealthStatus, error) {
	return r.channel.Read(workflowID)
}

// Shutdown 停止所有监视器子进程。
func (r *ProcessRunner) Shutdown() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.Stop(id); err != nil && err != domain.ErrMonitorNotRunning {
			r.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to stop monitor during shutdown")
		}
	}
	return nil
}
