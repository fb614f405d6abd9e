package storage

import (
	"context"
	"errors"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// ErrNotFound 任务不存在或已过期
var ErrNotFound = errors.New("任务不存在")

// Store 会话级任务存储，任务带过期时间，不做长期持久化
type Store interface {
	// Save 保存任务
	Save(ctx context.Context, job *models.TranscriptionJob) error

	// Get 获取任务副本
	Get(ctx context.Context, jobID string) (*models.TranscriptionJob, error)

	// Update 更新任务（使用回调函数模式）
	Update(ctx context.Context, jobID string, updateFn func(*models.TranscriptionJob)) error

	// List 按创建时间倒序列出未过期的任务
	List(ctx context.Context) ([]*models.TranscriptionJob, error)

	// Delete 删除任务
	Delete(ctx context.Context, jobID string) error

	// Close 关闭存储连接
	Close() error
}
