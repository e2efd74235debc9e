package reload

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
)

// Reloader rebuilds the prompt catalog.
type Reloader interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

// Start runs catalog reloads until ctx is done. A reload happens on every
// tick of a positive interval and on every value received from triggers; the
// value names the trigger in logs. A nil triggers channel is never ready.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, reloader Reloader, triggers <-chan string) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			run(ctx, logger, reloader, "interval")
		case reason, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			run(ctx, logger, reloader, reason)
		}
	}
}

func run(ctx context.Context, logger *log.Logger, reloader Reloader, reason string) {
	snap, err := reloader.Reload(ctx)
	if err != nil {
		logger.Warn("prompt reload failed", "trigger", reason, "error", err)
		return
	}
	logger.Info("prompt catalog reloaded", "trigger", reason, "generation", snap.Generation, "prompts", snap.Len())
}

// Merge fans several trigger channels into one. The returned channel closes
// once every input has closed or ctx is done.
func Merge(ctx context.Context, inputs ...<-chan string) <-chan string {
	out := make(chan string)
	done := make(chan struct{}, len(inputs))
	live := 0
	for _, in := range inputs {
		if in == nil {
			continue
		}
		live++
		go func(in <-chan string) {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}
	go func() {
		for i := 0; i < live; i++ {
			<-done
		}
		close(out)
	}()
	return out
}
