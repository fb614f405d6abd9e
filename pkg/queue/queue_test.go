package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	q.Enqueue(ctx, Task{JobID: "a", URL: "u1"})
	q.Enqueue(ctx, Task{JobID: "b", URL: "u2"})
	if err := q.Enqueue(ctx, Task{JobID: "c"}); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil || d.Task.JobID != "a" {
		t.Fatalf("Dequeue = %+v, %v", d, err)
	}
	if err := d.Ack(); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryQueueNackRequeue(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	q.Enqueue(ctx, Task{JobID: "a", URL: "u"})

	d, _ := q.Dequeue(ctx)
	if err := d.Nack(true); err != nil {
		t.Fatal(err)
	}
	again, err := q.Dequeue(ctx)
	if err != nil || again.Task.JobID != "a" {
		t.Fatalf("requeued task not delivered: %+v, %v", again, err)
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)
	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		done <- err
	}()

	q.Close()
	q.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
	if err := q.Enqueue(context.Background(), Task{JobID: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Enqueue after close = %v", err)
	}
}

func TestMemoryQueueContextCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDecodeTask(t *testing.T) {
	task, err := decodeTask([]byte(`{"job_id":"j1","url":"https://youtu.be/x","preferred_lang":"fr"}`))
	if err != nil || task.PreferredLang != "fr" {
		t.Fatalf("decodeTask = %+v, %v", task, err)
	}
	for _, body := range []string{`not json`, `{"job_id":"j1"}`} {
		if _, err := decodeTask([]byte(body)); err == nil {
			t.Errorf("decodeTask(%s) should fail", body)
		}
	}
}
