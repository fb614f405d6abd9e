package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/z-wentao/ytscribe/pkg/models"
)

func newJob(created time.Time) *models.TranscriptionJob {
	return &models.TranscriptionJob{
		JobID:     uuid.NewString(),
		URL:       "https://youtu.be/dQw4w9WgXcQ",
		Status:    models.StatusPending,
		CreatedAt: created,
	}
}

// exerciseStore 内存和 Redis 实现共用的行为测试
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	older := newJob(now.Add(-time.Minute))
	newer := newJob(now)
	for _, j := range []*models.TranscriptionJob{older, newer} {
		if err := s.Save(ctx, j); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	err := s.Update(ctx, newer.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusCompleted
		j.Progress = 100
		j.Translations = map[string]string{"fr": "bonjour"}
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, newer.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Translations["fr"] != "bonjour" {
		t.Fatalf("update not persisted: %+v", got)
	}

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) < 2 || jobs[0].JobID != newer.JobID {
		t.Fatalf("expected newest first, got %d jobs", len(jobs))
	}

	if err := s.Delete(ctx, older.JobID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, older.JobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, older.JobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
	if err := s.Update(ctx, "missing", func(*models.TranscriptionJob) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v", err)
	}
	s.Delete(ctx, newer.JobID)
}

func TestJobStore(t *testing.T) {
	exerciseStore(t, NewJobStore(time.Hour))
}

func TestJobStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore(0)
	job := newJob(time.Now())
	s.Save(ctx, job)

	got, _ := s.Get(ctx, job.JobID)
	got.Status = models.StatusFailed
	again, _ := s.Get(ctx, job.JobID)
	if again.Status != models.StatusPending {
		t.Fatal("mutating a returned job must not change the stored one")
	}
}

func TestJobStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	job := newJob(now.Add(-2 * time.Hour))
	s.Save(ctx, job)

	if _, err := s.Get(ctx, job.JobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired job should be gone, got %v", err)
	}
	jobs, _ := s.List(ctx)
	if len(jobs) != 0 {
		t.Fatalf("expired job listed: %v", jobs)
	}
}

// 设置 YTSCRIBE_TEST_REDIS=localhost:6379 时才运行
func TestRedisJobStore(t *testing.T) {
	addr := os.Getenv("YTSCRIBE_TEST_REDIS")
	if addr == "" {
		t.Skip("YTSCRIBE_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	s := NewRedisJobStoreWithClient(client, time.Minute)
	defer s.Close()
	exerciseStore(t, s)
}
