package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// JobStore 任务存储（内存实现），过期任务在读取时清理
type JobStore struct {
	jobs map[string]*models.TranscriptionJob
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

// NewJobStore 创建任务存储；ttl <= 0 表示不过期
func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.TranscriptionJob),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Save 保存任务
func (js *JobStore) Save(_ context.Context, job *models.TranscriptionJob) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	js.jobs[job.JobID] = cloneJob(job)
	return nil
}

// Get 获取任务
func (js *JobStore) Get(_ context.Context, jobID string) (*models.TranscriptionJob, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, ok := js.jobs[jobID]
	if !ok || js.expired(job) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return cloneJob(job), nil
}

// Update 更新任务状态
func (js *JobStore) Update(_ context.Context, jobID string, updateFn func(*models.TranscriptionJob)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, ok := js.jobs[jobID]
	if !ok || js.expired(job) {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	updateFn(job)
	return nil
}

// List 列出所有任务，顺带清理过期任务
func (js *JobStore) List(_ context.Context) ([]*models.TranscriptionJob, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	jobs := make([]*models.TranscriptionJob, 0, len(js.jobs))
	for id, job := range js.jobs {
		if js.expired(job) {
			delete(js.jobs, id)
			continue
		}
		jobs = append(jobs, cloneJob(job))
	}
	sortNewestFirst(jobs)
	return jobs, nil
}

// Delete 删除任务
func (js *JobStore) Delete(_ context.Context, jobID string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, ok := js.jobs[jobID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	delete(js.jobs, jobID)
	return nil
}

// Close 关闭存储（内存存储无需关闭）
func (js *JobStore) Close() error {
	return nil
}

func (js *JobStore) expired(job *models.TranscriptionJob) bool {
	return js.ttl > 0 && js.now().Sub(job.CreatedAt) > js.ttl
}

func cloneJob(job *models.TranscriptionJob) *models.TranscriptionJob {
	c := *job
	c.Cues = slices.Clone(job.Cues)
	c.Translations = maps.Clone(job.Translations)
	return &c
}

func sortNewestFirst(jobs []*models.TranscriptionJob) {
	slices.SortFunc(jobs, func(a, b *models.TranscriptionJob) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
