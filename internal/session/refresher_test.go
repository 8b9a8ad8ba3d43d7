package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"steadystream/internal/feeds"
	"steadystream/internal/logging"
	"steadystream/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingComposer blocks every compose until release is signalled
type blockingComposer struct {
	started chan struct{}
	release chan struct{}
	err     error

	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
}

func newBlockingComposer() *blockingComposer {
	return &blockingComposer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}, 16),
	}
}

func (c *blockingComposer) ComposeFeed(ctx context.Context, viewerID uuid.UUID) ([]feeds.FeedItem, error) {
	n := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		peak := c.maxSeen.Load()
		if n <= peak || c.maxSeen.CompareAndSwap(peak, n) {
			break
		}
	}
	c.calls.Add(1)
	c.started <- struct{}{}

	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if c.err != nil {
		return nil, c.err
	}
	return []feeds.FeedItem{{Post: models.Post{ID: uuid.New()}}}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	feeds  [][]feeds.FeedItem
	errs   []error
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) Feed(items []feeds.FeedItem) {
	s.mu.Lock()
	s.feeds = append(s.feeds, items)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) Error(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds), len(s.errs)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestRefresher_CoalescesTriggersDuringCompose(t *testing.T) {
	composer := newBlockingComposer()
	sink := newRecordingSink()
	r := NewRefresher(uuid.New(), composer, sink, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.True(t, r.Trigger(TriggerMount))
	waitFor(t, composer.started, "first compose")

	for _, trigger := range []Trigger{TriggerThrowReceived, TriggerFocus, TriggerVisible, TriggerThrowReceived} {
		assert.True(t, r.Trigger(trigger))
	}

	composer.release <- struct{}{}
	waitFor(t, sink.notify, "first result")

	waitFor(t, composer.started, "coalesced compose")
	composer.release <- struct{}{}
	waitFor(t, sink.notify, "second result")

	// nothing else was queued
	select {
	case <-composer.started:
		t.Fatal("unexpected third compose")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, int32(2), composer.calls.Load())
	assert.Equal(t, int32(1), composer.maxSeen.Load())
	feedCount, errCount := sink.counts()
	assert.Equal(t, 2, feedCount)
	assert.Equal(t, 0, errCount)
}

func TestRefresher_TriggerNeverBlocks(t *testing.T) {
	r := NewRefresher(uuid.New(), newBlockingComposer(), newRecordingSink(), logging.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Trigger(TriggerFocus)
		}
		close(done)
	}()

	waitFor(t, done, "triggers without a running worker")
	assert.Len(t, r.pending, 1)
}

func TestRefresher_ReportsErrors(t *testing.T) {
	composer := newBlockingComposer()
	composer.err = errors.New("posts query failed")
	sink := newRecordingSink()
	r := NewRefresher(uuid.New(), composer, sink, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Trigger(TriggerMount)
	composer.release <- struct{}{}
	waitFor(t, sink.notify, "error result")

	feedCount, errCount := sink.counts()
	assert.Equal(t, 0, feedCount)
	assert.Equal(t, 1, errCount)
}

func TestRefresher_CloseDiscardsInFlightResult(t *testing.T) {
	composer := newBlockingComposer()
	sink := newRecordingSink()
	r := NewRefresher(uuid.New(), composer, sink, logging.Discard())

	go r.Run(context.Background())

	r.Trigger(TriggerMount)
	waitFor(t, composer.started, "compose")

	r.Close()
	assert.False(t, r.Trigger(TriggerFocus))

	composer.release <- struct{}{}
	waitFor(t, r.Done(), "worker exit")

	feedCount, errCount := sink.counts()
	assert.Equal(t, 0, feedCount)
	assert.Equal(t, 0, errCount)
	assert.Equal(t, int32(1), composer.calls.Load())
}

func TestRefresher_StopsOnContextCancel(t *testing.T) {
	r := NewRefresher(uuid.New(), newBlockingComposer(), newRecordingSink(), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	cancel()

	waitFor(t, r.Done(), "worker exit")
	assert.False(t, r.Trigger(TriggerVisible))
}
