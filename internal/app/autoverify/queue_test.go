package autoverify

import (
	"context"
	"testing"
	"time"

	"polyboard/internal/domain/model"
)

func TestQueueEnqueueDedup(t *testing.T) {
	q := NewQueue()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(1) // already queued, keeps position

	got := q.Snapshot()
	want := []model.SolveID{1, 2}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}

	pos, ok := q.IndexOf(1)
	if !ok || pos != 0 {
		t.Errorf("IndexOf(1) = %d, %v; want 0, true", pos, ok)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(3)
	q.Enqueue(1)
	q.Enqueue(2)

	ctx := context.Background()
	for _, want := range []model.SolveID{3, 1, 2} {
		got, err := q.WaitForNext(ctx)
		if err != nil {
			t.Fatalf("WaitForNext() error: %v", err)
		}
		if got != want {
			t.Fatalf("WaitForNext() = %d, want %d", got, want)
		}
		q.PopNext()
	}

	if snap := q.Snapshot(); len(snap) != 0 {
		t.Errorf("queue not empty after draining: %v", snap)
	}
}

func TestQueueHeadVisibleUntilPop(t *testing.T) {
	q := NewQueue()
	q.Enqueue(7)

	head, err := q.WaitForNext(context.Background())
	if err != nil {
		t.Fatalf("WaitForNext() error: %v", err)
	}
	if head != 7 {
		t.Fatalf("WaitForNext() = %d, want 7", head)
	}

	// Still queued while "processing".
	if pos, ok := q.IndexOf(7); !ok || pos != 0 {
		t.Errorf("IndexOf(7) during processing = %d, %v; want 0, true", pos, ok)
	}

	q.PopNext()
	if _, ok := q.IndexOf(7); ok {
		t.Error("solve still queued after PopNext")
	}
}

func TestQueueWaitBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue()

	done := make(chan model.SolveID)
	go func() {
		id, err := q.WaitForNext(context.Background())
		if err != nil {
			t.Errorf("WaitForNext() error: %v", err)
		}
		done <- id
	}()

	select {
	case id := <-done:
		t.Fatalf("WaitForNext returned %d on empty queue", id)
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(42)

	select {
	case id := <-done:
		if id != 42 {
			t.Fatalf("WaitForNext() = %d, want 42", id)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForNext did not wake after Enqueue")
	}
}

func TestQueueWaitCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		_, err := q.WaitForNext(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("WaitForNext() = nil error after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForNext did not return after context cancel")
	}
}

func TestQueuePopNextOnEmpty(t *testing.T) {
	q := NewQueue()
	q.PopNext() // must not panic
	if snap := q.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot() = %v, want empty", snap)
	}
}
