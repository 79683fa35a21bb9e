// Package broadcast fans a message out to many recipients through a
// bounded worker pool and aggregates the outcome.
package broadcast

import (
	"context"
	"sync"

	"log/slog"

	"tadbirbot/internal/logger"
)

// Failure records one recipient that could not be reached.
type Failure struct {
	ChatID int64
	Reason string
}

// Report aggregates the outcome of one fan-out run.
type Report struct {
	Attempted int
	Succeeded int
	Failed    []Failure
}

// Pool runs fan-outs with a bounded number of concurrent senders.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency; values below one
// fall back to a sane default.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{workers: workers}
}

// Run delivers to every chat id via send and reports the aggregate.
// Per-recipient failures are collected and logged, never aborting the
// remaining fan-out. Run blocks until all deliveries finish.
func (p *Pool) Run(ctx context.Context, chatIDs []int64, send func(ctx context.Context, chatID int64) error) Report {
	report := Report{Attempted: len(chatIDs)}
	if len(chatIDs) == 0 {
		return report
	}

	workers := p.workers
	if workers > len(chatIDs) {
		workers = len(chatIDs)
	}

	jobs := make(chan int64)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for chatID := range jobs {
				err := send(ctx, chatID)
				mu.Lock()
				if err != nil {
					report.Failed = append(report.Failed, Failure{
						ChatID: chatID,
						Reason: logger.ErrText(err),
					})
				} else {
					report.Succeeded++
				}
				mu.Unlock()
				if err != nil {
					logger.Error(ctx, logger.BCAST, "broadcast.send.fail",
						slog.Int64("recipient", chatID),
						slog.String("err", logger.ErrText(err)),
					)
				}
			}
		}()
	}

	for _, id := range chatIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	logger.Info(ctx, logger.BCAST, "broadcast.done",
		slog.Int("attempted", report.Attempted),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", len(report.Failed)),
	)
	return report
}
