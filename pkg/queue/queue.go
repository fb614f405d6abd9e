package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/z-wentao/ytscribe/pkg/config"
)

var (
	ErrClosed = errors.New("队列已关闭")
	ErrFull   = errors.New("队列已满")
)

// Task 队列中的转录请求，任务状态本身保存在 storage 中
type Task struct {
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	PreferredLang string `json:"preferred_lang,omitempty"`
}

// Delivery 取出的一条消息，处理完必须 Ack 或 Nack
type Delivery struct {
	Task Task

	ack  func() error
	nack func(requeue bool) error
}

// Ack 确认消息（任务处理完成，无论成功失败）
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack 拒绝消息；requeue 为 true 时重新入队
func (d *Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Queue 任务队列接口
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(ctx context.Context, task Task) error

	// Dequeue 从队列取出任务（阻塞），队列关闭后返回 ErrClosed
	Dequeue(ctx context.Context) (*Delivery, error)

	// Close 关闭队列
	Close() error
}

// New 按配置创建队列；prefetch 对应 worker 数量
func New(cfg config.QueueConfig, prefetch int, logger *slog.Logger) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryQueue(cfg.BufferSize), nil
	case "rabbitmq":
		return NewRabbitMQQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, prefetch, logger)
	default:
		return nil, fmt.Errorf("未知的队列类型: %s", cfg.Type)
	}
}
