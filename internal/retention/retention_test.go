// Package retention 定期清理过期的拍摄记录与落盘产物。
package retention

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/config"
)

// fakeStore 内存存储替身。
type fakeStore struct {
	paths     []string
	listErr   error
	deleteErr error
	deleted   int64
	cutoffs   []time.Time
}

func (s *fakeStore) ListArtifactPathsBefore(cutoff time.Time) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.paths, nil
}

func (s *fakeStore) DeleteCapturesBefore(cutoff time.Time) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.deleted, nil
}

func newTestManager(store Store) *Manager {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewManager(store, config.RetentionConfig{
		Enabled:  true,
		Schedule: "0 3 * * *",
		MaxAge:   168 * time.Hour,
	}, logger)
}

// TestSweep_RemovesArtifactsAndRecords 测试一轮清理删掉产物文件和记录。
func TestSweep_RemovesArtifactsAndRecords(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cap-1.jpg")
	if err := os.WriteFile(existing, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	// 已经不存在的产物不算失败
	gone := filepath.Join(dir, "cap-2.jpg")

	store := &fakeStore{paths: []string{existing, gone}, deleted: 2}
	mgr := newTestManager(store)

	removed, failed, deleted, err := mgr.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 2 || failed != 0 {
		t.Errorf("removed = %d, failed = %d, want 2, 0", removed, failed)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Error("expired artifact should be removed from disk")
	}
	if len(store.cutoffs) != 1 {
		t.Errorf("DeleteCapturesBefore called %d times, want 1", len(store.cutoffs))
	}
}

// TestSweep_ListFailureAborts 测试列产物失败时整轮中止，不删记录。
func TestSweep_ListFailureAborts(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	mgr := newTestManager(store)

	if _, _, _, err := mgr.Sweep(time.Now()); err == nil {
		t.Fatal("Sweep() error = nil, want list error")
	}
	if len(store.cutoffs) != 0 {
		t.Error("records should not be deleted when listing artifacts fails")
	}
}

// TestSweep_DeleteFailurePropagates 测试删记录失败向上冒泡，
// 已删掉的产物数仍然返回。
func TestSweep_DeleteFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "cap-1.jpg")
	if err := os.WriteFile(artifact, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{paths: []string{artifact}, deleteErr: errors.New("db down")}
	mgr := newTestManager(store)

	removed, _, _, err := mgr.Sweep(time.Now())
	if err == nil {
		t.Fatal("Sweep() error = nil, want delete error")
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

// TestStart_DisabledIsNoop 测试策略未启用时 Start 不注册任务。
func TestStart_DisabledIsNoop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	mgr := NewManager(&fakeStore{}, config.RetentionConfig{Enabled: false}, logger)

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mgr.Stop()
}

// TestStart_InvalidScheduleFails 测试非法 cron 表达式启动报错。
func TestStart_InvalidScheduleFails(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	mgr := NewManager(&fakeStore{}, config.RetentionConfig{
		Enabled:  true,
		Schedule: "not a schedule",
		MaxAge:   time.Hour,
	}, logger)

	if err := mgr.Start(); err == nil {
		t.Fatal("Start() error = nil, want schedule parse error")
	}
}
