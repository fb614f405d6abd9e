package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/z-wentao/ytscribe/pkg/models"
)

const (
	redisKeyPrefix = "ytscribe:job:"
	redisIndexKey  = "ytscribe:jobs:index"
)

// RedisJobStore Redis 任务存储，任务随 TTL 自动过期
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobStore 连接 Redis 并创建任务存储
func NewRedisJobStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewRedisJobStoreWithClient(client, ttl), nil
}

// NewRedisJobStoreWithClient 使用已有客户端
func NewRedisJobStoreWithClient(client *redis.Client, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{client: client, ttl: ttl}
}

func jobKey(jobID string) string {
	return redisKeyPrefix + jobID
}

// Save 保存任务到 Redis，并把 JobID 写入按创建时间排序的索引
func (rs *RedisJobStore) Save(ctx context.Context, job *models.TranscriptionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.JobID), data, rs.ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(job.CreatedAt.Unix()),
		Member: job.JobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}
	return nil
}

// Get 从 Redis 获取任务
func (rs *RedisJobStore) Get(ctx context.Context, jobID string) (*models.TranscriptionJob, error) {
	data, err := rs.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var job models.TranscriptionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("反序列化任务失败: %w", err)
	}
	return &job, nil
}

// Update 读取、修改、写回；保留剩余的过期时间
// TODO: 多实例同时更新同一任务时改用 WATCH 乐观锁
func (rs *RedisJobStore) Update(ctx context.Context, jobID string, updateFn func(*models.TranscriptionJob)) error {
	job, err := rs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	updateFn(job)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	if err := rs.client.SetArgs(ctx, jobKey(jobID), data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}
	return nil
}

// List 列出所有任务（按时间倒序），已过期的任务从索引中移除
func (rs *RedisJobStore) List(ctx context.Context) ([]*models.TranscriptionJob, error) {
	jobIDs, err := rs.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取任务索引失败: %w", err)
	}

	jobs := make([]*models.TranscriptionJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := rs.Get(ctx, jobID)
		if errors.Is(err, ErrNotFound) {
			rs.client.ZRem(ctx, redisIndexKey, jobID)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Delete 删除任务
func (rs *RedisJobStore) Delete(ctx context.Context, jobID string) error {
	deleted, err := rs.client.Del(ctx, jobKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	rs.client.ZRem(ctx, redisIndexKey, jobID)
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}

// Close 关闭 Redis 连接
func (rs *RedisJobStore) Close() error {
	return rs.client.Close()
}
