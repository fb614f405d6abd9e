package queue

import (
	"context"
	"sync"
)

// MemoryQueue 基于 Channel 的内存队列实现
type MemoryQueue struct {
	queue     chan Task
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	return &MemoryQueue{
		queue:  make(chan Task, bufferSize),
		closed: make(chan struct{}),
	}
}

// Enqueue 将任务加入队列，队列满时立即返回 ErrFull
func (mq *MemoryQueue) Enqueue(_ context.Context, task Task) error {
	select {
	case <-mq.closed:
		return ErrClosed
	default:
	}
	select {
	case mq.queue <- task:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue 从队列取出任务（阻塞等待）
func (mq *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-mq.closed:
		return nil, ErrClosed
	case task := <-mq.queue:
		return &Delivery{
			Task: task,
			nack: func(requeue bool) error {
				if requeue {
					return mq.Enqueue(context.Background(), task)
				}
				return nil
			},
		}, nil
	}
}

// Close 关闭队列，未处理的任务被丢弃
func (mq *MemoryQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.closed) })
	return nil
}
