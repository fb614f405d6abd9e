package storage

import (
	"context"
	"fmt"

	"github.com/z-wentao/ytscribe/pkg/config"
)

// New 按配置创建任务存储
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewJobStore(cfg.Redis.TTL()), nil
	case "redis":
		return NewRedisJobStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL())
	default:
		return nil, fmt.Errorf("未知的存储类型: %s", cfg.Type)
	}
}
