package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// Source yields the raw records of one catalog build. Sources are tried in
// order until one succeeds.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ownerID string) ([]types.RawRecord, error)
}

// FailureReason classifies why a source produced no catalog.
type FailureReason string

const (
	ReasonUnavailable FailureReason = "unavailable"
	ReasonTimeout     FailureReason = "timeout"
	ReasonEmpty       FailureReason = "empty"
	ReasonInvalid     FailureReason = "invalid"
)

var (
	// ErrNoRecords is returned by sources that have nothing to offer, such as
	// a missing prompt directory.
	ErrNoRecords = errors.New("no records")
	// ErrInvalidRecords marks payloads that could not be decoded.
	ErrInvalidRecords = errors.New("invalid records")
)

// SourceError is a typed failure of one source in the chain.
type SourceError struct {
	Source string
	Reason FailureReason
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s %s: %v", e.Source, e.Reason, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func classify(source string, err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	reason := ReasonUnavailable
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(err, ErrNoRecords):
		reason = ReasonEmpty
	case errors.Is(err, ErrInvalidRecords), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		reason = ReasonInvalid
	}
	return &SourceError{Source: source, Reason: reason, Err: err}
}

// RecordFetcher is the read contract shared by the relational and HTTP
// backing stores.
type RecordFetcher interface {
	FetchActivePrompts(ctx context.Context) ([]types.RawRecord, error)
	FetchForOwner(ctx context.Context, ownerID string) ([]types.RawRecord, error)
}

type fetcherSource struct {
	name    string
	fetcher RecordFetcher
	timeout time.Duration
}

// NewFetcherSource adapts a backing store into a Source. A positive timeout
// bounds each fetch.
func NewFetcherSource(name string, fetcher RecordFetcher, timeout time.Duration) Source {
	return &fetcherSource{name: name, fetcher: fetcher, timeout: timeout}
}

func (s *fetcherSource) Name() string { return s.name }

func (s *fetcherSource) Fetch(ctx context.Context, ownerID string) ([]types.RawRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var (
		records []types.RawRecord
		err     error
	)
	if ownerID != "" {
		records, err = s.fetcher.FetchForOwner(ctx, ownerID)
	} else {
		records, err = s.fetcher.FetchActivePrompts(ctx)
	}
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = types.SourceStore
		}
	}
	return records, nil
}
