package systems

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestNewJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("NewJobSystem(0, 1):\nhave %v\nwant %v", err, ErrNoWorkers)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("NewJobSystem(1, -1):\nhave %v\nwant %v", err, ErrNegativeChannelSize)
	}
}

func TestDispatchCoversRange(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatalf("NewJobSystem: %v", err)
	}
	defer js.Shutdown()

	for _, tc := range []struct{ n, chunk int }{{0, 4}, {1, 4}, {1000, 128}, {1000, 1}, {7, 0}} {
		hits := make([]int32, tc.n)
		var calls atomic.Int32
		js.Dispatch(tc.n, tc.chunk, func(start, end int) {
			calls.Add(1)
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("Dispatch(%d, %d): index %d visited %d times", tc.n, tc.chunk, i, h)
			}
		}
		if tc.chunk > 0 && tc.n > 0 {
			if want := int32((tc.n + tc.chunk - 1) / tc.chunk); calls.Load() != want {
				t.Fatalf("Dispatch(%d, %d) ranges:\nhave %d\nwant %d", tc.n, tc.chunk, calls.Load(), want)
			}
		}
	}
}

func TestJobCallbacks(t *testing.T) {
	js, _ := NewJobSystem(1, 0)

	done := make(chan string, 4)
	js.Submit(JobTask{
		OnStart:              func() error { return errors.New("boom") },
		OnFailure:            func(error) { done <- "failure" },
		OnComplete:           func() { done <- "complete" },
		OnCompletionCallback: func() { done <- "callback" },
	})
	if err := js.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	close(done)

	var order []string
	for s := range done {
		order = append(order, s)
	}
	if len(order) != 2 || order[0] != "failure" || order[1] != "callback" {
		t.Fatalf("callbacks:\nhave %v\nwant [failure callback]", order)
	}

	if err := js.Submit(JobTask{OnStart: func() error { return nil }}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("Submit after Shutdown:\nhave %v\nwant %v", err, ErrJobSystemClosed)
	}
	ran := false
	js.Dispatch(3, 1, func(start, end int) { ran = true })
	if !ran {
		t.Fatal("Dispatch after Shutdown did not run inline")
	}
}
