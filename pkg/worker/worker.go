package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/pipeline"
	"github.com/z-wentao/ytscribe/pkg/queue"
	"github.com/z-wentao/ytscribe/pkg/storage"
)

// Transcriber 由 pipeline.Pipeline 实现
type Transcriber interface {
	Transcribe(ctx context.Context, rawURL, preferredLang string, report pipeline.Reporter) (*models.TranscriptResult, error)
}

// Pool 多个 goroutine 共享同一个队列，每个任务在自己的 goroutine 中串行执行
type Pool struct {
	queue   queue.Queue
	store   storage.Store
	engine  Transcriber
	size    int
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool 创建 Worker 池
func NewPool(q queue.Queue, store storage.Store, engine Transcriber, size int, timeout time.Duration, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:   q,
		store:   store,
		engine:  engine,
		size:    size,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动所有 Worker
func (p *Pool) Start() {
	for i := range p.size {
		p.wg.Add(1)
		go p.run(i + 1)
	}
	p.logger.Info("✓ Worker 池已启动", slog.Int("workers", p.size))
}

// Stop 停止接收新任务，并等待正在处理的任务结束
func (p *Pool) Stop() {
	p.logger.Info("正在停止 Worker 池...")
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	logger := p.logger.With(slog.Int("worker", id))

	for {
		d, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				logger.Info("Worker 已停止")
				return
			}
			logger.Warn("⚠️ 从队列获取任务失败", slog.Any("error", err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.process(logger, d)
	}
}

func (p *Pool) process(logger *slog.Logger, d *queue.Delivery) {
	task := d.Task
	logger = logger.With(slog.String("job_id", task.JobID))

	// 任务在存储中已过期或被删除时不再处理
	if _, err := p.store.Get(p.ctx, task.JobID); err != nil {
		logger.Warn("⚠️ 任务不存在，丢弃消息", slog.Any("error", err))
		d.Ack()
		return
	}

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, p.timeout)
		defer cancel()
	}

	logger.Info("📝 开始处理任务", slog.String("url", task.URL))
	start := time.Now()

	report := func(status models.JobStatus, progress int) {
		// 完成状态只在结果写入后设置
		if status == models.StatusCompleted || status == models.StatusFailed {
			return
		}
		err := p.store.Update(p.ctx, task.JobID, func(j *models.TranscriptionJob) {
			j.Status = status
			if progress > j.Progress {
				j.Progress = progress
			}
		})
		if err != nil {
			logger.Warn("⚠️ 更新进度失败", slog.Any("error", err))
		}
	}

	result, err := p.engine.Transcribe(ctx, task.URL, task.PreferredLang, report)
	if err != nil {
		if p.ctx.Err() != nil {
			// 服务关闭导致的中断，交还给队列
			logger.Warn("任务被中断，重新入队")
			d.Nack(true)
			return
		}
		logger.Error("❌ 任务失败", slog.Any("error", err))
		updateErr := p.store.Update(context.Background(), task.JobID, func(j *models.TranscriptionJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.ErrorKind = models.ErrorKind(err)
			j.CompletedAt = time.Now()
		})
		if updateErr != nil {
			logger.Error("❌ 保存任务状态失败", slog.Any("error", updateErr))
		}
		d.Ack()
		return
	}

	logger.Info("🎉 任务完成",
		slog.String("origin", string(result.Origin)),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("chars", len(result.Text)))

	err = p.store.Update(context.Background(), task.JobID, func(j *models.TranscriptionJob) {
		j.ApplyTranscript(result)
		j.Status = models.StatusCompleted
		j.Progress = 100
		j.CompletedAt = time.Now()
	})
	if err != nil {
		logger.Error("❌ 保存任务状态失败", slog.Any("error", err))
	}
	d.Ack()
}
