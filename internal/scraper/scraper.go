// Package scraper caches the build source token discovered while polling the
// first function operation in a changeset, so later builds in the same
// changeset can warm-start from the same source.
package scraper

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/fnforge/fnforge/internal/poller"
)

// operationMetadata is the slice of gen1 operation metadata the scraper
// cares about.
type operationMetadata struct {
	SourceToken string `json:"sourceToken"`
}

// SourceTokenScraper is a single-assignment future with first-completion-wins
// semantics. One instance serves one changeset: the first polled operation
// that reports a token resolves it, and every later build reads the same
// value. An operation that finishes without ever reporting a token resolves
// the future to empty so waiters are never stranded.
type SourceTokenScraper struct {
	firstCall atomic.Bool
	once      sync.Once
	resolved  chan struct{}
	token     string
}

// New creates an unresolved scraper.
func New() *SourceTokenScraper {
	return &SourceTokenScraper{resolved: make(chan struct{})}
}

// OnPoll feeds one polled operation state into the scraper. Safe for
// concurrent use from multiple poll loops.
func (s *SourceTokenScraper) OnPoll(op *poller.Operation) {
	if op == nil {
		return
	}

	var md operationMetadata
	if len(op.Metadata) > 0 {
		// Metadata that does not decode carries no token; treat like empty.
		_ = json.Unmarshal(op.Metadata, &md)
	}

	switch {
	case md.SourceToken != "":
		s.resolve(md.SourceToken)
	case op.Done:
		s.resolve("")
	}
}

// Token returns the cached token for a build to warm-start from. The first
// caller proceeds immediately without a token; it is the build whose polling
// is expected to resolve the future. Later callers block until it does, or
// until ctx ends.
func (s *SourceTokenScraper) Token(ctx context.Context) (string, error) {
	if s.firstCall.CompareAndSwap(false, true) {
		return "", nil
	}
	select {
	case <-s.resolved:
		return s.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Abandon resolves the future to empty if nothing has resolved it yet.
// Called when the first build fails before reporting a token, so waiting
// siblings build without one instead of hanging.
func (s *SourceTokenScraper) Abandon() {
	s.resolve("")
}

func (s *SourceTokenScraper) resolve(token string) {
	s.once.Do(func() {
		s.token = token
		close(s.resolved)
	})
}
