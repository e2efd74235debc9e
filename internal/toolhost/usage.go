package toolhost

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/vines90/mcp-prompt-server/internal/metrics"
)

// UsageStore increments a prompt's usage counter in the backing store.
type UsageStore interface {
	IncrementUsage(ctx context.Context, id string) error
}

// UsageRecorder reports usage asynchronously. At most `limit` reports are in
// flight; extra reports are dropped rather than queued.
type UsageRecorder struct {
	st      UsageStore
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// NewUsageRecorder creates a recorder. limit <= 0 means 1.
func NewUsageRecorder(logger *log.Logger, st UsageStore, limit int, timeout time.Duration) *UsageRecorder {
	if limit <= 0 {
		limit = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &UsageRecorder{
		st:      st,
		sem:     semaphore.NewWeighted(int64(limit)),
		timeout: timeout,
		logger:  logger,
	}
}

// Report increments usage for id in the background.
func (u *UsageRecorder) Report(id string) {
	if !u.sem.TryAcquire(1) {
		metrics.RecordUsageReport("dropped")
		u.logger.Debug("usage report dropped", "id", id)
		return
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer u.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()
		if err := u.st.IncrementUsage(ctx, id); err != nil {
			metrics.RecordUsageReport("error")
			u.logger.Warn("usage report failed", "id", id, "error", err)
			return
		}
		metrics.RecordUsageReport("ok")
	}()
}

// Wait blocks until in-flight reports finish.
func (u *UsageRecorder) Wait() {
	u.wg.Wait()
}
