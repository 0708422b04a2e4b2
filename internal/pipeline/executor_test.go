// Package pipeline 提供流水线执行单元。
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/infer"
)

// ==================== 测试替身 ====================

// fakeWorkflowRepo 内存工作流存储。
type fakeWorkflowRepo struct {
	mu        sync.Mutex
	workflows map[string]*domain.WorkflowDefinition
}

func newFakeWorkflowRepo(defs ...*domain.WorkflowDefinition) *fakeWorkflowRepo {
	repo := &fakeWorkflowRepo{workflows: make(map[string]*domain.WorkflowDefinition)}
	for _, def := range defs {
		repo.workflows[def.ID] = def
	}
	return repo
}

func (r *fakeWorkflowRepo) CreateWorkflow(wf *domain.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[wf.ID] = wf
	return nil
}

func (r *fakeWorkflowRepo) GetWorkflowByID(id string) (*domain.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	copied := *wf
	return &copied, nil
}

func (r *fakeWorkflowRepo) ListWorkflows(offset, limit int) ([]*domain.WorkflowDefinition, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.WorkflowDefinition
	for _, wf := range r.workflows {
		all = append(all, wf)
	}
	return all, len(all), nil
}

func (r *fakeWorkflowRepo) ListWorkflowsWithTriggers() ([]*domain.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.WorkflowDefinition
	for _, wf := range r.workflows {
		if wf.HasTrigger() {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (r *fakeWorkflowRepo) UpdateWorkflow(wf *domain.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[wf.ID]; !ok {
		return domain.ErrWorkflowNotFound
	}
	r.workflows[wf.ID] = wf
	return nil
}

func (r *fakeWorkflowRepo) DeleteWorkflow(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workflows, id)
	return nil
}

func (r *fakeWorkflowRepo) GetCameraConfig(sourceID string) (*domain.ImageSource, error) {
	return nil, domain.ErrCameraNotFound
}

// fakeCaptureRepo 内存采集记录存储，可注入持久化故障。
type fakeCaptureRepo struct {
	mu       sync.Mutex
	records  []*domain.CaptureRecord
	storeErr error
}

func (r *fakeCaptureRepo) StoreCaptureRecord(rec *domain.CaptureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storeErr != nil {
		return r.storeErr
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeCaptureRepo) GetLatestCapture(workflowID string) (*domain.CaptureRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].WorkflowID == workflowID {
			return r.records[i], nil
		}
	}
	return nil, domain.ErrCaptureNotFound
}

func (r *fakeCaptureRepo) ListCaptures(workflowID string, offset, limit int) ([]*domain.CaptureRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CaptureRecord
	for _, rec := range r.records {
		if rec.WorkflowID == workflowID {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

func (r *fakeCaptureRepo) DeleteCapturesBefore(cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeCaptureRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// newTestExecutor 组装一个使用内存替身的执行单元。
func newTestExecutor(repo *fakeWorkflowRepo, captures *fakeCaptureRepo, inferExec infer.Executor) *Executor {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewExecutor(repo, captures, inferExec, nil, nil, nil, logger)
}

func cameraWorkflow(id, outputPath string, feature *domain.FeatureConfig) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:     id,
		Name:   "wf-" + id,
		Status: domain.WorkflowStatusActive,
		Source: domain.ImageSource{
			Type:     domain.SourceTypeCamera,
			CameraID: "cam-01",
		},
		Feature:    feature,
		OutputPath: outputPath,
	}
}

// ==================== 测试 ====================

// TestExecutor_Execute_WithInference 测试配置了推理的工作流产出带结果的记录。
func TestExecutor_Execute_WithInference(t *testing.T) {
	out := t.TempDir()
	repo := newFakeWorkflowRepo(cameraWorkflow("wf-1", out,
		&domain.FeatureConfig{Executor: "stub", ModelID: "m1"}))
	captures := &fakeCaptureRepo{}
	stub := infer.NewStubExecutor()
	stub.Outcome = domain.InferenceOutcome{Label: "anomaly", Confidence: 0.9, Score: 0.8}

	exec := newTestExecutor(repo, captures, stub)
	rec, err := exec.Execute(context.Background(), "wf-1",
		&domain.RawFrame{Data: []byte("img"), Format: "jpeg", CapturedAt: time.Now()})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if rec.Outcome == nil || rec.Outcome.Label != "anomaly" {
		t.Errorf("Outcome = %+v, want anomaly", rec.Outcome)
	}
	if rec.CaptureOnly {
		t.Error("CaptureOnly should be false when outcome is present")
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("record violates invariant: %v", err)
	}

	// 产物以采集记录 ID 为文件名主干写入输出目录
	if !strings.HasPrefix(filepath.Base(rec.ArtifactPath), rec.ID) {
		t.Errorf("artifact %q should be named after capture id %q", rec.ArtifactPath, rec.ID)
	}
	data, err := os.ReadFile(rec.ArtifactPath)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(data) != "img" {
		t.Errorf("artifact content = %q", data)
	}
	if captures.count() != 1 {
		t.Errorf("persisted records = %d, want 1", captures.count())
	}
}

// TestExecutor_Execute_CaptureOnly 测试未配置推理的工作流产出仅采集记录。
func TestExecutor_Execute_CaptureOnly(t *testing.T) {
	out := t.TempDir()
	repo := newFakeWorkflowRepo(cameraWorkflow("wf-1", out, nil))
	captures := &fakeCaptureRepo{}

	exec := newTestExecutor(repo, captures, infer.NewStubExecutor())
	rec, err := exec.Execute(context.Background(), "wf-1",
		&domain.RawFrame{Data: []byte("img"), Format: "jpeg"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !rec.CaptureOnly {
		t.Error("CaptureOnly should be true without feature config")
	}
	if rec.Outcome != nil {
		t.Errorf("Outcome = %+v, want nil", rec.Outcome)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("record violates invariant: %v", err)
	}
}

// TestExecutor_Execute_PersistenceFailure 测试持久化失败视为执行失败。
func TestExecutor_Execute_PersistenceFailure(t *testing.T) {
	out := t.TempDir()
	repo := newFakeWorkflowRepo(cameraWorkflow("wf-1", out, nil))
	captures := &fakeCaptureRepo{storeErr: errors.New("disk full")}

	exec := newTestExecutor(repo, captures, infer.NewStubExecutor())
	_, err := exec.Execute(context.Background(), "wf-1",
		&domain.RawFrame{Data: []byte("img"), Format: "jpeg"})

	var pipeErr *domain.PipelineExecutionError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("error = %v, want *domain.PipelineExecutionError", err)
	}
	if pipeErr.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %q, want wf-1", pipeErr.WorkflowID)
	}
}

// TestExecutor_Execute_RefetchesDefinition 测试每次执行重新读取工作流定义：
// 两次执行之间移除推理配置，第二次产出仅采集记录。
func TestExecutor_Execute_RefetchesDefinition(t *testing.T) {
	out := t.TempDir()
	def := cameraWorkflow("wf-1", out, &domain.FeatureConfig{Executor: "stub", ModelID: "m1"})
	repo := newFakeWorkflowRepo(def)
	captures := &fakeCaptureRepo{}

	exec := newTestExecutor(repo, captures, infer.NewStubExecutor())
	frame := &domain.RawFrame{Data: []byte("img"), Format: "jpeg"}

	rec1, err := exec.Execute(context.Background(), "wf-1", frame)
	if err != nil {
		t.Fatal(err)
	}
	if rec1.Outcome == nil {
		t.Fatal("first execution should carry an outcome")
	}

	// 移除推理配置
	updated := *def
	updated.Feature = nil
	if err := repo.UpdateWorkflow(&updated); err != nil {
		t.Fatal(err)
	}

	rec2, err := exec.Execute(context.Background(), "wf-1", frame)
	if err != nil {
		t.Fatal(err)
	}
	if !rec2.CaptureOnly {
		t.Error("second execution should be capture-only after config change")
	}
}

// TestExecutor_Execute_UnknownWorkflow 测试定义缺失时执行失败。
func TestExecutor_Execute_UnknownWorkflow(t *testing.T) {
	exec := newTestExecutor(newFakeWorkflowRepo(), &fakeCaptureRepo{}, infer.NewStubExecutor())
	_, err := exec.Execute(context.Background(), "wf-ghost",
		&domain.RawFrame{Data: []byte("img")})
	if err == nil {
		t.Fatal("Execute() should fail for unknown workflow")
	}
	if !errors.Is(err, domain.ErrWorkflowNotFound) {
		t.Errorf("error = %v, want wrapped ErrWorkflowNotFound", err)
	}
}

// TestExecutor_ExecuteOldest_Success 测试文件夹回放按最老优先处理并在成功后删除源文件。
func TestExecutor_ExecuteOldest_Success(t *testing.T) {
	out := t.TempDir()
	replay := t.TempDir()
	repo := newFakeWorkflowRepo(cameraWorkflow("wf-1", out, nil))
	captures := &fakeCaptureRepo{}

	// 先写较老的文件再写较新的
	oldPath := filepath.Join(replay, "a.jpg")
	newPath := filepath.Join(replay, "b.jpg")
	writeFileWithTime(t, oldPath, "old-frame", time.Now().Add(-time.Hour))
	writeFileWithTime(t, newPath, "new-frame", time.Now())

	exec := newTestExecutor(repo, captures, infer.NewStubExecutor())
	rec, err := exec.ExecuteOldest(context.Background(), "wf-1", replay)
	if err != nil {
		t.Fatalf("ExecuteOldest() error = %v", err)
	}
	if rec == nil {
		t.Fatal("ExecuteOldest() should process a file")
	}

	// 最老的被处理并删除，较新的保留
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("oldest file should be deleted after success")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("newer file should remain untouched")
	}
	data, err := os.ReadFile(rec.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old-frame" {
		t.Errorf("artifact content = %q, want old-frame", data)
	}
}

// TestExecutor_ExecuteOldest_QuarantinesPoisonFile 测试执行失败的文件恰好
// 出现在 failed/ 子目录中：不在原位置，不丢失。
func TestExecutor_ExecuteOldest_QuarantinesPoisonFile(t *testing.T) {
	out := t.TempDir()
	replay := t.TempDir()
	repo := newFakeWorkflowRepo(cameraWorkflow("wf-1", out,
		&domain.FeatureConfig{Executor: "stub", ModelID: "m1"}))
	captures := &fakeCaptureRepo{}

	poison := filepath.Join(replay, "poison.jpg")
	writeFileWithTime(t, poison, "bad-frame", time.Now().Add(-time.Minute))

	stub := infer.NewStubExecutor()
	stub.Err = errors.New("inference exploded")

	exec := newTestExecutor(repo, captures, stub)
	_, err := exec.ExecuteOldest(context.Background(), "wf-1", replay)

	var pipeErr *domain.PipelineExecutionError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("error = %v, want *domain.PipelineExecutionError", err)
	}
	if pipeErr.SourcePath != poison {
		t.Errorf("SourcePath = %q, want %q", pipeErr.SourcePath, poison)
	}

	// 恰好一处：原位置消失，failed/ 中出现
	if _, err := os.Stat(poison); !os.IsNotExist(err) {
		t.Error("poison file should be removed from original location")
	}
	quarantined := filepath.Join(replay, failedDirName, "poison.jpg")
	if _, err := os.Stat(quarantined); err != nil {
		t.Errorf("poison file should be in failed/: %v", err)
	}
	if captures.count() != 0 {
		t.Error("failed execution should not persist a record")
	}
}

// TestExecutor_ExecuteOldest_EmptyDir 测试空目录无事发生。
func TestExecutor_ExecuteOldest_EmptyDir(t *testing.T) {
	exec := newTestExecutor(newFakeWorkflowRepo(), &fakeCaptureRepo{}, infer.NewStubExecutor())
	rec, err := exec.ExecuteOldest(context.Background(), "wf-1", t.TempDir())
	if err != nil {
		t.Fatalf("ExecuteOldest() error = %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for empty directory", rec)
	}
}

// TestExecutor_ExecuteOldest_SkipsFailedDir 测试 failed/ 子目录不参与扫描。
func TestExecutor_ExecuteOldest_SkipsFailedDir(t *testing.T) {
	replay := t.TempDir()
	if err := os.MkdirAll(filepath.Join(replay, failedDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFileWithTime(t, filepath.Join(replay, failedDirName, "old-poison.jpg"), "x", time.Now().Add(-time.Hour))

	exec := newTestExecutor(newFakeWorkflowRepo(), &fakeCaptureRepo{}, infer.NewStubExecutor())
	rec, err := exec.ExecuteOldest(context.Background(), "wf-1", replay)
	if err != nil {
		t.Fatalf("ExecuteOldest() error = %v", err)
	}
	if rec != nil {
		t.Error("quarantined files must not be reprocessed")
	}
}

// writeFileWithTime 写入文件并设置修改时间。
func writeFileWithTime(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}
