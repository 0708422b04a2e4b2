// Package storage 提供了边缘视觉推理设备的持久化存储实现。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oriys/lumen/internal/config"
	"github.com/oriys/lumen/internal/domain"
)

// latestCaptureTTL 最近采集缓存的过期时间。
// 缓存未命中时 API 回退到 PostgreSQL。
const latestCaptureTTL = time.Hour

// RedisStore Redis 存储实现。
// 承担两个职责：最近采集记录缓存（API 读路径不落库）
// 和按工作流递增的采集序号分配（拼入采集记录 ID）。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储并验证连通性。
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageConnection, err)
	}
	return &RedisStore{client: client}, nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// latestCaptureKey 最近采集缓存的键。
func latestCaptureKey(workflowID string) string {
	return "lumen:capture:latest:" + workflowID
}

// captureSeqKey 采集序号计数器的键。
func captureSeqKey(workflowID string) string {
	return "lumen:capture:seq:" + workflowID
}

// CacheLatestCapture 缓存工作流最近一条采集记录。
// 缓存失败只影响读性能，不影响正确性，调用方按警告处理。
func (s *RedisStore) CacheLatestCapture(ctx context.Context, rec *domain.CaptureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, latestCaptureKey(rec.WorkflowID), data, latestCaptureTTL).Err()
}

// GetCachedLatestCapture 读取工作流最近采集缓存。
// 缓存未命中返回 domain.ErrCaptureNotFound，调用方回退到数据库。
func (s *RedisStore) GetCachedLatestCapture(ctx context.Context, workflowID string) (*domain.CaptureRecord, error) {
	data, err := s.client.Get(ctx, latestCaptureKey(workflowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCaptureNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	rec := &domain.CaptureRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return rec, nil
}

// NextCaptureSeq 分配工作流的下一个采集序号（单调递增）。
func (s *RedisStore) NextCaptureSeq(ctx context.Context, workflowID string) (int64, error) {
	seq, err := s.client.Incr(ctx, captureSeqKey(workflowID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageQuery, err)
	}
	return seq, nil
}

// InvalidateLatestCapture 删除工作流的最近采集缓存，工作流删除时调用。
func (s *RedisStore) InvalidateLatestCapture(ctx context.Context, workflowID string) error {
	return s.client.Del(ctx, latestCaptureKey(workflowID), captureSeqKey(workflowID)).Err()
}
