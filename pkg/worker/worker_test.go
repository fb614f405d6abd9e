package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/pipeline"
	"github.com/z-wentao/ytscribe/pkg/queue"
	"github.com/z-wentao/ytscribe/pkg/storage"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, rawURL, lang string, report pipeline.Reporter) (*models.TranscriptResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL+"|"+lang)
	f.mu.Unlock()

	report(models.StatusCaptions, 5)
	if f.err != nil {
		return nil, f.err
	}
	report(models.StatusTranscribing, 60)
	return &models.TranscriptResult{
		Text:           "hello world",
		SourceLanguage: "en",
		Origin:         models.OriginAI,
		Cues:           []models.Cue{{Start: 0, End: 1, Text: "hello world"}},
	}, nil
}

func waitFor(t *testing.T, store storage.Store, jobID string, want models.JobStatus) *models.TranscriptionJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func setup(t *testing.T, tr Transcriber) (*queue.MemoryQueue, *storage.JobStore, *Pool) {
	t.Helper()
	q := queue.NewMemoryQueue(10)
	store := storage.NewJobStore(time.Hour)
	pool := NewPool(q, store, tr, 2, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	pool.Start()
	t.Cleanup(func() {
		pool.Stop()
		q.Close()
	})
	return q, store, pool
}

func submit(t *testing.T, q queue.Queue, store storage.Store, id, lang string) {
	t.Helper()
	ctx := context.Background()
	job := &models.TranscriptionJob{
		JobID:         id,
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		PreferredLang: lang,
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}
	if err := store.Save(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, queue.Task{JobID: id, URL: job.URL, PreferredLang: lang}); err != nil {
		t.Fatal(err)
	}
}

func TestPoolCompletesJob(t *testing.T) {
	tr := &fakeTranscriber{}
	q, store, _ := setup(t, tr)

	submit(t, q, store, "job-1", "fr")
	job := waitFor(t, store, "job-1", models.StatusCompleted)

	if job.Result != "hello world" || job.SourceLanguage != "en" || job.Origin != models.OriginAI {
		t.Fatalf("result not stored: %+v", job)
	}
	if job.Progress != 100 || len(job.Cues) != 1 || job.CompletedAt.IsZero() {
		t.Fatalf("unexpected job state: %+v", job)
	}
	if tr.calls[0] != "https://youtu.be/dQw4w9WgXcQ|fr" {
		t.Fatalf("transcriber called with %v", tr.calls)
	}
}

func TestPoolRecordsFailureKind(t *testing.T) {
	tr := &fakeTranscriber{err: &models.DownloadError{Kind: models.FailureBotDetected, Attempts: 3}}
	q, store, _ := setup(t, tr)

	submit(t, q, store, "job-2", "")
	job := waitFor(t, store, "job-2", models.StatusFailed)
	if job.ErrorKind != "bot_detected" || job.Error == "" {
		t.Fatalf("failure not recorded: %+v", job)
	}
}

func TestPoolSkipsDeletedJob(t *testing.T) {
	tr := &fakeTranscriber{}
	q, store, _ := setup(t, tr)

	q.Enqueue(context.Background(), queue.Task{JobID: "gone", URL: "https://youtu.be/dQw4w9WgXcQ"})
	submit(t, q, store, "job-3", "")
	waitFor(t, store, "job-3", models.StatusCompleted)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.calls) != 1 {
		t.Fatalf("deleted job should not be processed, calls = %v", tr.calls)
	}
	if _, err := store.Get(context.Background(), "gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("unexpected job")
	}
}

// earlyCompleter 在返回结果前就上报完成，并记录当时存储里的状态
type earlyCompleter struct {
	store storage.Store
	seen  chan models.JobStatus
}

func (e *earlyCompleter) Transcribe(ctx context.Context, _, _ string, report pipeline.Reporter) (*models.TranscriptResult, error) {
	report(models.StatusTranscribing, 50)
	report(models.StatusCompleted, 100)
	job, err := e.store.Get(ctx, "job-4")
	if err != nil {
		return nil, err
	}
	e.seen <- job.Status
	return &models.TranscriptResult{Text: "done", SourceLanguage: "en", Origin: models.OriginCaption}, nil
}

func TestPoolOwnsCompletedTransition(t *testing.T) {
	tr := &earlyCompleter{seen: make(chan models.JobStatus, 1)}
	q, store, _ := setup(t, tr)
	tr.store = store

	submit(t, q, store, "job-4", "")
	select {
	case status := <-tr.seen:
		if status != models.StatusTranscribing {
			t.Fatalf("status before result saved = %s", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcriber never ran")
	}
	job := waitFor(t, store, "job-4", models.StatusCompleted)
	if job.Result != "done" {
		t.Fatalf("result not stored: %+v", job)
	}
}

// finalWriteFailStore 对终态写入返回错误
type finalWriteFailStore struct {
	storage.Store
}

func (s *finalWriteFailStore) Update(ctx context.Context, id string, fn func(*models.TranscriptionJob)) error {
	scratch := &models.TranscriptionJob{}
	fn(scratch)
	if scratch.Status == models.StatusCompleted || scratch.Status == models.StatusFailed {
		return errors.New("store unavailable")
	}
	return s.Store.Update(ctx, id, fn)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPoolLogsFinalUpdateFailure(t *testing.T) {
	q := queue.NewMemoryQueue(10)
	store := &finalWriteFailStore{Store: storage.NewJobStore(time.Hour)}
	var logs lockedBuffer
	pool := NewPool(q, store, &fakeTranscriber{}, 1, time.Minute, slog.New(slog.NewTextHandler(&logs, nil)))
	pool.Start()
	t.Cleanup(func() {
		pool.Stop()
		q.Close()
	})

	submit(t, q, store, "job-5", "")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(logs.String(), "store unavailable") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("final update failure not logged:\n%s", logs.String())
}
