package fabricator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialQueue_NeverOverlaps(t *testing.T) {
	q := newSerialQueue()
	defer q.close()

	var mu sync.Mutex
	running := 0
	peak := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Submit(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
}

func TestSerialQueue_ReturnsTaskError(t *testing.T) {
	q := newSerialQueue()
	defer q.close()

	err := q.Submit(context.Background(), func(ctx context.Context) error {
		return fmt.Errorf("backend rejected write")
	})
	require.EqualError(t, err, "backend rejected write")
}

func TestSerialQueue_CanceledSubmitterBailsOut(t *testing.T) {
	q := newSerialQueue()
	defer q.close()

	release := make(chan struct{})
	go func() {
		_ = q.Submit(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Submit(ctx, func(ctx context.Context) error { return nil })
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
}

func TestSerialQueue_PreservesSubmissionOrder(t *testing.T) {
	q := newSerialQueue()
	defer q.close()

	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Submit(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	<-started

	// With the first task held open, later submitters park in submission
	// order; staggered launches pin that order down.
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Submit(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
