package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGetter implements Getter for testing
type mockGetter struct {
	getOperationFunc func(ctx context.Context, name string) (*Operation, error)
}

func (m *mockGetter) GetOperation(ctx context.Context, name string) (*Operation, error) {
	return m.getOperationFunc(ctx, name)
}

func fastOptions(name string) Options {
	return Options{
		Name:           name,
		PollerName:     "test",
		MasterTimeout:  time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func newTestPoller(g Getter) *Poller {
	return New(g, slog.New(slog.DiscardHandler))
}

func TestPoll_ResolvesTerminalResource(t *testing.T) {
	polls := 0
	resource := json.RawMessage(`{"name":"fn"}`)
	p := newTestPoller(&mockGetter{
		getOperationFunc: func(_ context.Context, name string) (*Operation, error) {
			polls++
			if polls < 3 {
				return &Operation{Name: name}, nil
			}
			return &Operation{Name: name, Done: true, Response: resource}, nil
		},
	})

	got, err := p.Poll(context.Background(), fastOptions("op/1"))

	require.NoError(t, err)
	assert.JSONEq(t, string(resource), string(got))
	assert.Equal(t, 3, polls)
}

func TestPoll_TerminalOperationError(t *testing.T) {
	p := newTestPoller(&mockGetter{
		getOperationFunc: func(context.Context, string) (*Operation, error) {
			return &Operation{Done: true, Error: &OperationError{Code: 9, Message: "build failed"}}, nil
		},
	})

	_, err := p.Poll(context.Background(), fastOptions("op/1"))

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, int64(9), opErr.Code)
}

func TestPoll_MasterTimeout(t *testing.T) {
	p := newTestPoller(&mockGetter{
		getOperationFunc: func(_ context.Context, name string) (*Operation, error) {
			return &Operation{Name: name}, nil
		},
	})

	opts := fastOptions("op/1")
	opts.MasterTimeout = 20 * time.Millisecond

	_, err := p.Poll(context.Background(), opts)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "did not complete within")
}

func TestPoll_FetchErrorIsTerminal(t *testing.T) {
	boom := errors.New("permission denied")
	p := newTestPoller(&mockGetter{
		getOperationFunc: func(context.Context, string) (*Operation, error) {
			return nil, boom
		},
	})

	_, err := p.Poll(context.Background(), fastOptions("op/1"))
	assert.ErrorIs(t, err, boom)
}

func TestPoll_OnPollSeesEveryState(t *testing.T) {
	polls := 0
	p := newTestPoller(&mockGetter{
		getOperationFunc: func(context.Context, string) (*Operation, error) {
			polls++
			return &Operation{Done: polls == 2, Metadata: json.RawMessage(`{"tick":true}`)}, nil
		},
	})

	var seen []*Operation
	opts := fastOptions("op/1")
	opts.OnPoll = func(op *Operation) { seen = append(seen, op) }

	_, err := p.Poll(context.Background(), opts)

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.True(t, seen[1].Done)
}
