package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Service rebuilds the catalog on demand and publishes each generation.
// Reloads are serialized; reads go through the Holder and never wait.
type Service struct {
	builder *Builder
	holder  *Holder
	ownerID string
	logger  *log.Logger

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewService creates a catalog service. ownerID may be empty, in which case
// only the public catalog is built.
func NewService(logger *log.Logger, builder *Builder, ownerID string) *Service {
	return &Service{
		builder: builder,
		holder:  NewHolder(),
		ownerID: ownerID,
		logger:  logger,
	}
}

// OwnerID returns the identity the catalog is built for.
func (s *Service) OwnerID() string { return s.ownerID }

// Snapshot returns the current catalog generation.
func (s *Service) Snapshot() *Snapshot { return s.holder.Load() }

// OnSwap registers fn to run after every published generation. Listeners run
// on the reloading goroutine, in registration order.
func (s *Service) OnSwap(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload builds a new generation and swaps it in. The previous generation is
// kept when ctx ends before the build completes.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.builder.Build(ctx, s.ownerID)
	if err := ctx.Err(); err != nil {
		return s.holder.Load(), err
	}

	prev := s.holder.Load()
	next := newSnapshot(prev.Generation+1, res, time.Now().UTC())
	s.holder.swap(next)
	s.logger.Info("prompt catalog loaded",
		"generation", next.Generation,
		"source", next.Source,
		"prompts", next.Len(),
		"records", next.Total,
	)

	for _, fn := range s.listeners {
		fn(next)
	}
	return next, nil
}
