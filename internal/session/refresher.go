// Package session runs the feed recompute loop of a connected viewer
package session

import (
	"context"
	"sync/atomic"

	"steadystream/internal/feeds"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Trigger names the reason a recompute was requested
type Trigger string

const (
	TriggerMount         Trigger = "mount"
	TriggerThrowReceived Trigger = "throw_received"
	TriggerFocus         Trigger = "focus"
	TriggerVisible       Trigger = "visible"
)

// Composer builds a viewer's feed
type Composer interface {
	ComposeFeed(ctx context.Context, viewerID uuid.UUID) ([]feeds.FeedItem, error)
}

// Sink receives the outcome of each recompute
type Sink interface {
	Feed(items []feeds.FeedItem)
	Error(err error)
}

// Refresher recomposes one viewer's feed on demand. Triggers go through a queue of
// capacity one where the newest trigger replaces a pending one, and a single
// worker drains it, so at most one compose runs at a time and any number of
// triggers arriving during a compose collapse into one more.
type Refresher struct {
	viewerID uuid.UUID
	composer Composer
	sink     Sink
	log      logrus.FieldLogger

	pending chan Trigger
	alive   atomic.Bool
	done    chan struct{}
}

// NewRefresher creates a refresher for viewerID delivering results to sink
func NewRefresher(viewerID uuid.UUID, composer Composer, sink Sink, log logrus.FieldLogger) *Refresher {
	r := &Refresher{
		viewerID: viewerID,
		composer: composer,
		sink:     sink,
		log:      log.WithField("viewer_id", viewerID),
		pending:  make(chan Trigger, 1),
		done:     make(chan struct{}),
	}
	r.alive.Store(true)
	return r
}

// Trigger requests a recompute. It never blocks and reports false once the
// refresher is closed.
func (r *Refresher) Trigger(t Trigger) bool {
	if !r.alive.Load() {
		return false
	}

	for {
		select {
		case r.pending <- t:
			return true
		default:
		}
		// replace the queued trigger with the newer one
		select {
		case <-r.pending:
		default:
		}
	}
}

// Run processes triggers until ctx is done or Close is called
func (r *Refresher) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.alive.Store(false)
			return
		case t := <-r.pending:
			if !r.alive.Load() {
				return
			}
			r.refresh(ctx, t)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, t Trigger) {
	items, err := r.composer.ComposeFeed(ctx, r.viewerID)

	// the session may have ended while composing
	if !r.alive.Load() {
		return
	}

	if err != nil {
		r.log.WithError(err).WithField("trigger", t).Error("Feed refresh failed")
		r.sink.Error(err)
		return
	}

	r.log.WithFields(logrus.Fields{
		"trigger": t,
		"items":   len(items),
	}).Debug("Feed refreshed")
	r.sink.Feed(items)
}

// Close stops delivering results. A compose in flight finishes but its result is discarded.
func (r *Refresher) Close() {
	if r.alive.Swap(false) {
		// wake the worker if it is idle
		select {
		case r.pending <- TriggerMount:
		default:
		}
	}
}

// Done is closed when Run returns
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}
