// Package storage 提供了边缘视觉推理设备的持久化存储实现。
// PostgreSQL 负责工作流定义、相机配置和采集记录的持久化，
// Redis 负责最近采集缓存和采集序号分配。
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
)

// PostgresStore PostgreSQL 存储实现。
// 实现 domain.WorkflowRepository 和 domain.CaptureRepository 接口。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgreSQL 存储并确保表结构存在。
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageConnection, err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageConnection, err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureSchema 创建应用所需的表结构（幂等）。
func (s *PostgresStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS workflows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	status      TEXT NOT NULL,
	trigger     JSONB,
	feature     JSONB,
	source      JSONB NOT NULL,
	output_path TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cameras (
	id     TEXT PRIMARY KEY,
	source JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS captures (
	id            TEXT PRIMARY KEY,
	workflow_id   TEXT NOT NULL,
	artifact_path TEXT NOT NULL,
	outcome       JSONB,
	capture_only  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_workflow_created
	ON captures (workflow_id, created_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return nil
}

// Ping 检查数据库连接是否可用。
func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}

// Close 关闭数据库连接。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ==================== 工作流存储 ====================

// CreateWorkflow 创建工作流，名称冲突返回 ErrWorkflowExists。
func (s *PostgresStore) CreateWorkflow(wf *domain.WorkflowDefinition) error {
	trigger, feature, source, err := marshalWorkflowFields(wf)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO workflows (id, name, status, trigger, feature, source, output_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wf.ID, wf.Name, wf.Status, trigger, feature, source, wf.OutputPath, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique_violation
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrWorkflowExists
		}
		return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return nil
}

// GetWorkflowByID 根据 ID 获取工作流。
func (s *PostgresStore) GetWorkflowByID(id string) (*domain.WorkflowDefinition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, trigger, feature, source, output_path, created_at, updated_at
		FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// ListWorkflows 分页列出工作流。limit <= 0 表示不限制。
func (s *PostgresStore) ListWorkflows(offset, limit int) ([]*domain.WorkflowDefinition, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM workflows`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}

	// LIMIT NULL 等价于不限制
	rows, err := s.db.Query(`
		SELECT id, name, status, trigger, feature, source, output_path, created_at, updated_at
		FROM workflows ORDER BY created_at DESC OFFSET $1 LIMIT NULLIF($2, 0)`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	defer rows.Close()

	workflows, err := scanWorkflows(rows)
	if err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}

// ListWorkflowsWithTriggers 列出所有配置了数字输入触发器的工作流。
// 守护进程启动时用它决定要启动哪些监视器。
func (s *PostgresStore) ListWorkflowsWithTriggers() ([]*domain.WorkflowDefinition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, status, trigger, feature, source, output_path, created_at, updated_at
		FROM workflows WHERE trigger IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	defer rows.Close()
	return scanWorkflows(rows)
}

// UpdateWorkflow 更新工作流。
func (s *PostgresStore) UpdateWorkflow(wf *domain.WorkflowDefinition) error {
	trigger, feature, source, err := marshalWorkflowFields(wf)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE workflows
		SET name = $2, status = $3, trigger = $4, feature = $5, source = $6, output_path = $7, updated_at = $8
		WHERE id = $1`,
		wf.ID, wf.Name, wf.Status, trigger, feature, source, wf.OutputPath, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

// DeleteWorkflow 删除工作流。
func (s *PostgresStore) DeleteWorkflow(id string) error {
	res, err := s.db.Exec(`DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

// GetCameraConfig 根据图像源标识获取相机配置。
func (s *PostgresStore) GetCameraConfig(sourceID string) (*domain.ImageSource, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT source FROM cameras WHERE id = $1`, sourceID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCameraNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	source := &domain.ImageSource{}
	if err := json.Unmarshal(raw, source); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return source, nil
}

// CountWorkflows 统计工作流总数和带触发器的工作流数，供指标上报使用。
func (s *PostgresStore) CountWorkflows() (total int, triggered int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COUNT(trigger) FROM workflows`).Scan(&total, &triggered)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return total, triggered, nil
}

// ==================== 采集记录存储 ====================

// StoreCaptureRecord 持久化采集记录。
// 持久化失败视为整次执行失败，由调用方上报健康错误。
func (s *PostgresStore) StoreCaptureRecord(rec *domain.CaptureRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var outcome []byte
	if rec.Outcome != nil {
		var err error
		outcome, err = json.Marshal(rec.Outcome)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO captures (id, workflow_id, artifact_path, outcome, capture_only, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.WorkflowID, rec.ArtifactPath, outcome, rec.CaptureOnly, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return nil
}

// GetLatestCapture 获取工作流最近一条采集记录。
func (s *PostgresStore) GetLatestCapture(workflowID string) (*domain.CaptureRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow_id, artifact_path, outcome, capture_only, created_at
		FROM captures WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT 1`, workflowID)
	rec, err := scanCapture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCaptureNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListCaptures 分页列出工作流的采集记录。
func (s *PostgresStore) ListCaptures(workflowID string, offset, limit int) ([]*domain.CaptureRecord, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM captures WHERE workflow_id = $1`, workflowID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}

	rows, err := s.db.Query(`
		SELECT id, workflow_id, artifact_path, outcome, capture_only, created_at
		FROM captures WHERE workflow_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		workflowID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	defer rows.Close()

	var records []*domain.CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// ListArtifactPathsBefore 列出截止时间之前所有采集记录的产物路径。
// 保留策略清理任务先删除产物文件，再删除记录本身。
func (s *PostgresStore) ListArtifactPathsBefore(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT artifact_path FROM captures WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteCapturesBefore 删除截止时间之前的采集记录，返回删除条数。
func (s *PostgresStore) DeleteCapturesBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM captures WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ==================== 行扫描辅助 ====================

// rowScanner 抽象 sql.Row 和 sql.Rows 的 Scan 方法。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// marshalWorkflowFields 序列化工作流的 JSONB 字段。
func marshalWorkflowFields(wf *domain.WorkflowDefinition) (trigger, feature, source []byte, err error) {
	if wf.Trigger != nil {
		if trigger, err = json.Marshal(wf.Trigger); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}
	if wf.Feature != nil {
		if feature, err = json.Marshal(wf.Feature); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}
	if source, err = json.Marshal(wf.Source); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return trigger, feature, source, nil
}

// scanWorkflow 扫描单行工作流记录。
func scanWorkflow(row rowScanner) (*domain.WorkflowDefinition, error) {
	wf := &domain.WorkflowDefinition{}
	var trigger, feature, source []byte
	err := row.Scan(&wf.ID, &wf.Name, &wf.Status, &trigger, &feature, &source,
		&wf.OutputPath, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}

	if len(trigger) > 0 {
		wf.Trigger = &domain.InputTriggerConfig{}
		if err := json.Unmarshal(trigger, wf.Trigger); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}
	if len(feature) > 0 {
		wf.Feature = &domain.FeatureConfig{}
		if err := json.Unmarshal(feature, wf.Feature); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}
	if err := json.Unmarshal(source, &wf.Source); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return wf, nil
}

// scanWorkflows 扫描多行工作流记录。
func scanWorkflows(rows *sql.Rows) ([]*domain.WorkflowDefinition, error) {
	var workflows []*domain.WorkflowDefinition
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// scanCapture 扫描单行采集记录。
func scanCapture(row rowScanner) (*domain.CaptureRecord, error) {
	rec := &domain.CaptureRecord{}
	var outcome []byte
	err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.ArtifactPath, &outcome, &rec.CaptureOnly, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	if len(outcome) > 0 {
		rec.Outcome = &domain.InferenceOutcome{}
		if err := json.Unmarshal(outcome, rec.Outcome); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
		}
	}
	return rec, nil
}
