// Package pipeline 提供流水线执行单元。
// 一次执行消费一帧，产出恰好一条采集记录或一个类型化失败；
// 工作流定义在每次执行时重新读取，不跨触发缓存。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/infer"
	"github.com/oriys/lumen/internal/metrics"
	"github.com/oriys/lumen/internal/telemetry"
)

// failedDirName 文件夹回放中隔离毒文件的子目录名
const failedDirName = "failed"

// Cache 流水线使用的缓存能力：最近采集缓存和采集序号分配。
// 两者都是尽力而为，失败只记警告，不影响执行结果。
type Cache interface {
	CacheLatestCapture(ctx context.Context, rec *domain.CaptureRecord) error
	NextCaptureSeq(ctx context.Context, workflowID string) (int64, error)
}

// Publisher 采集完成事件的发布能力。
type Publisher interface {
	PublishCaptureCompleted(ctx context.Context, rec *domain.CaptureRecord) error
}

// Executor 流水线执行单元。
// 串起推理、产物落盘和记录持久化；持久化失败视为整次执行失败。
type Executor struct {
	workflows domain.WorkflowRepository
	captures  domain.CaptureRepository
	inferExec infer.Executor
	cache     Cache
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewExecutor 创建流水线执行单元。
// cache、publisher 和 m 允许为 nil（相应能力被跳过）。
func NewExecutor(workflows domain.WorkflowRepository, captures domain.CaptureRepository,
	inferExec infer.Executor, cache Cache, publisher Publisher,
	m *metrics.Metrics, logger *logrus.Logger) *Executor {
	return &Executor{
		workflows: workflows,
		captures:  captures,
		inferExec: inferExec,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Execute 对一帧执行完整流水线。
// 成功返回恰好一条已持久化的采集记录；任何失败都包装为
// *domain.PipelineExecutionError（帧携带源文件路径时一并携带）。
func (e *Executor) Execute(ctx context.Context, workflowID string, frame *domain.RawFrame) (*domain.CaptureRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.execute")
	defer span.End()
	start := time.Now()

	rec, err := e.execute(ctx, workflowID, frame)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		telemetry.RecordError(ctx, err)
		if e.metrics != nil {
			e.metrics.PipelineDuration.WithLabelValues(workflowID, "error").Observe(elapsed)
			e.metrics.PipelineErrors.WithLabelValues(workflowID, errorType(err)).Inc()
		}
		return nil, &domain.PipelineExecutionError{
			WorkflowID: workflowID,
			SourcePath: frame.SourcePath,
			Err:        err,
		}
	}

	if e.metrics != nil {
		e.metrics.PipelineDuration.WithLabelValues(workflowID, "ok").Observe(elapsed)
	}
	return rec, nil
}

// execute 流水线主体：重取定义、推理、落盘、持久化。
func (e *Executor) execute(ctx context.Context, workflowID string, frame *domain.RawFrame) (*domain.CaptureRecord, error) {
	// 定义每次执行重新读取：配置可能在两次触发之间被修改
	def, err := e.workflows.GetWorkflowByID(workflowID)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow definition: %w", err)
	}

	captureID := e.newCaptureID(ctx, workflowID)

	rec := &domain.CaptureRecord{
		ID:         captureID,
		WorkflowID: workflowID,
		CreatedAt:  time.Now(),
	}

	if def.Feature != nil {
		outcome, err := e.inferExec.Run(ctx, frame, def.Feature)
		if err != nil {
			return nil, err
		}
		rec.Outcome = outcome
	} else {
		rec.CaptureOnly = true
	}

	artifactPath, err := e.writeArtifact(def.OutputPath, captureID, frame)
	if err != nil {
		return nil, err
	}
	rec.ArtifactPath = artifactPath

	// 持久化失败即执行失败：没有记录的产物对上位系统不存在
	if err := e.captures.StoreCaptureRecord(rec); err != nil {
		return nil, fmt.Errorf("persist capture record: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.CacheLatestCapture(ctx, rec); err != nil {
			e.logger.WithError(err).WithField("workflow_id", workflowID).Warn("Failed to cache latest capture")
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishCaptureCompleted(ctx, rec); err != nil {
			e.logger.WithError(err).WithField("workflow_id", workflowID).Warn("Failed to publish capture event")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"workflow_id":  workflowID,
		"capture_id":   rec.ID,
		"capture_only": rec.CaptureOnly,
	}).Info("Pipeline execution completed")

	return rec, nil
}

// newCaptureID 生成采集记录 ID：工作流 ID + 单调序号 + UUID 片段。
// 序号服务不可用时退化为时间戳，ID 仍然唯一（UUID 片段兜底）。
func (e *Executor) newCaptureID(ctx context.Context, workflowID string) string {
	var seq int64
	if e.cache != nil {
		s, err := e.cache.NextCaptureSeq(ctx, workflowID)
		if err == nil {
			seq = s
		} else {
			e.logger.WithError(err).Warn("Capture sequence unavailable, falling back to timestamp")
			seq = time.Now().UnixMilli()
		}
	} else {
		seq = time.Now().UnixMilli()
	}
	return fmt.Sprintf("%s-%d-%s", workflowID, seq, uuid.NewString()[:8])
}

// writeArtifact 将帧数据写入输出目录，文件名主干为采集记录 ID。
func (e *Executor) writeArtifact(outputPath, captureID string, frame *domain.RawFrame) (string, error) {
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(outputPath, captureID+artifactExt(frame.Format))
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// artifactExt 由帧格式推导产物扩展名。
func artifactExt(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	default:
		return ".bin"
	}
}

// errorType 将执行错误归类为指标标签。
func errorType(err error) string {
	var infErr *domain.InferenceError
	if errors.As(err, &infErr) {
		return "inference"
	}
	if errors.Is(err, domain.ErrWorkflowNotFound) {
		return "workflow_missing"
	}
	if errors.Is(err, domain.ErrStorageQuery) || errors.Is(err, domain.ErrStorageConnection) {
		return "storage"
	}
	return "internal"
}

// ExecuteOldest 文件夹回放：处理目录中最老的一个文件。
// 目录为空时返回 (nil, nil)。成功后删除源文件；执行失败时将源文件
// 移入 failed/ 子目录隔离，保证文件要么在原位置要么在 failed/，
// 绝不两处都有或两处都无。
func (e *Executor) ExecuteOldest(ctx context.Context, workflowID, dir string) (*domain.CaptureRecord, error) {
	path, modTime, err := oldestFile(dir)
	if err != nil {
		return nil, &domain.PipelineExecutionError{WorkflowID: workflowID, Err: err}
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		e.quarantine(workflowID, dir, path)
		return nil, &domain.PipelineExecutionError{WorkflowID: workflowID, SourcePath: path, Err: err}
	}

	frame := &domain.RawFrame{
		SourcePath: path,
		Data:       data,
		Format:     formatFromExt(path),
		CapturedAt: modTime,
	}

	rec, err := e.Execute(ctx, workflowID, frame)
	if err != nil {
		e.quarantine(workflowID, dir, path)
		if e.metrics != nil {
			e.metrics.ReplayProcessedTotal.WithLabelValues(workflowID, "failed").Inc()
		}
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		return nil, &domain.PipelineExecutionError{WorkflowID: workflowID, SourcePath: path, Err: err}
	}
	if e.metrics != nil {
		e.metrics.ReplayProcessedTotal.WithLabelValues(workflowID, "ok").Inc()
	}
	return rec, nil
}

// quarantine 将毒文件移入 failed/ 子目录。
// 移动是同文件系统内的原子重命名，不会出现半拷贝状态。
func (e *Executor) quarantine(workflowID, dir, path string) {
	failedDir := filepath.Join(dir, failedDirName)
	if err := os.MkdirAll(failedDir, 0o755); err != nil {
		e.logger.WithError(err).WithField("workflow_id", workflowID).Error("Failed to create quarantine directory")
		return
	}
	dest := filepath.Join(failedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"workflow_id": workflowID,
			"source":      path,
		}).Error("Failed to quarantine file")
		return
	}
	e.logger.WithFields(logrus.Fields{
		"workflow_id": workflowID,
		"source":      path,
		"quarantined": dest,
	}).Warn("Poison file quarantined")
}

// oldestFile 返回目录中修改时间最早的普通文件。
// failed/ 子目录和其他目录被跳过；目录为空时返回空路径。
func oldestFile(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("scan replay directory: %w", err)
	}

	type candidate struct {
		name string
		mod  time.Time
	}
	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: entry.Name(), mod: info.ModTime()})
	}
	if len(files) == 0 {
		return "", time.Time{}, nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].name < files[j].name
		}
		return files[i].mod.Before(files[j].mod)
	})
	return filepath.Join(dir, files[0].name), files[0].mod, nil
}

// formatFromExt 由文件扩展名推导帧格式。
func formatFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	default:
		return "raw"
	}
}
