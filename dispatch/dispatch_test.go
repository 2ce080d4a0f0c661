package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunKeepsSubmissionOrder(t *testing.T) {
	// Release tasks in reverse submission order to prove ordering does not
	// depend on completion order.
	release := []chan struct{}{
		make(chan struct{}),
		make(chan struct{}),
		make(chan struct{}),
	}
	values := []string{"a", "b", "c"}

	tasks := make([]Task[string], 3)
	for i := range tasks {
		ch := release[i]
		value := values[i]
		tasks[i] = func(ctx context.Context) (string, error) {
			<-ch
			return value, nil
		}
	}

	go func() {
		close(release[2])
		time.Sleep(10 * time.Millisecond)
		close(release[0])
		time.Sleep(10 * time.Millisecond)
		close(release[1])
	}()

	results := Run(context.Background(), tasks)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range values {
		if results[i].Err != nil {
			t.Fatalf("task %d failed: %v", i, results[i].Err)
		}
		if results[i].Value != want {
			t.Fatalf("result %d: expected %q, got %q", i, want, results[i].Value)
		}
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) { return 3, nil },
	}

	results := Run(context.Background(), tasks)
	if results[0].Err != nil || results[0].Value != 1 {
		t.Fatalf("task 0: expected (1, nil), got (%d, %v)", results[0].Value, results[0].Err)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Fatalf("task 1: expected boom, got %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Value != 3 {
		t.Fatalf("task 2: expected (3, nil), got (%d, %v)", results[2].Value, results[2].Err)
	}
}

func TestRunDeadlineReachesPendingTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "fast", nil },
		func(ctx context.Context) (string, error) {
			select {
			case <-time.After(time.Second):
				return "slow", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}

	results := Run(ctx, tasks)
	if results[0].Err != nil {
		t.Fatalf("fast task failed: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, context.DeadlineExceeded) {
		t.Fatalf("slow task: expected deadline exceeded, got %v", results[1].Err)
	}
}

func TestRunCapturesPanics(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { panic("bad task") },
		func(ctx context.Context) (int, error) { return 7, nil },
	}

	results := Run(context.Background(), tasks)
	if results[0].Err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if results[1].Err != nil || results[1].Value != 7 {
		t.Fatalf("sibling task: expected (7, nil), got (%d, %v)", results[1].Value, results[1].Err)
	}
}

func TestRunEmptyTasks(t *testing.T) {
	results := Run[int](context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
