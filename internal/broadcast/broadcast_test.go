package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunReportsCounts(t *testing.T) {
	pool := NewPool(3)
	ids := []int64{1, 2, 3, 4, 5}

	var delivered sync.Map
	report := pool.Run(context.Background(), ids, func(_ context.Context, chatID int64) error {
		delivered.Store(chatID, true)
		return nil
	})

	if report.Attempted != 5 || report.Succeeded != 5 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	for _, id := range ids {
		if _, ok := delivered.Load(id); !ok {
			t.Fatalf("chat %d never delivered", id)
		}
	}
}

func TestRunCollectsFailures(t *testing.T) {
	pool := NewPool(2)
	report := pool.Run(context.Background(), []int64{1, 2, 3, 4}, func(_ context.Context, chatID int64) error {
		if chatID%2 == 0 {
			return errors.New("blocked")
		}
		return nil
	})

	if report.Attempted != 4 || report.Succeeded != 2 || len(report.Failed) != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, f := range report.Failed {
		if f.ChatID%2 != 0 {
			t.Fatalf("unexpected failure for chat %d", f.ChatID)
		}
		if f.Reason == "" {
			t.Fatal("failure without reason")
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 3
	pool := NewPool(workers)

	var current, peak int64
	barrier := make(chan struct{})
	go func() {
		// Release all deliveries after a moment so the peak is observable.
		close(barrier)
	}()

	ids := make([]int64, 32)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	report := pool.Run(context.Background(), ids, func(_ context.Context, _ int64) error {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		<-barrier
		atomic.AddInt64(&current, -1)
		return nil
	})

	if report.Succeeded != len(ids) {
		t.Fatalf("succeeded = %d, want %d", report.Succeeded, len(ids))
	}
	if got := atomic.LoadInt64(&peak); got > workers {
		t.Fatalf("peak concurrency = %d, limit %d", got, workers)
	}
}

func TestRunEmptyRecipientList(t *testing.T) {
	pool := NewPool(4)
	called := false
	report := pool.Run(context.Background(), nil, func(context.Context, int64) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("send called with no recipients")
	}
	if report.Attempted != 0 || report.Succeeded != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestNewPoolDefaultsWorkers(t *testing.T) {
	for _, n := range []int{0, -1} {
		if p := NewPool(n); p.workers <= 0 {
			t.Fatalf("NewPool(%d).workers = %d", n, p.workers)
		}
	}
}
