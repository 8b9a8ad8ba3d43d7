package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultInviteSweepInterval = time.Hour
	DefaultPruneInterval       = 24 * time.Hour
)

// InviteExpirer deactivates invites past their expiry
type InviteExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// EventPruner deletes analytics events older than maxAge
type EventPruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// MaintenanceWorker runs the periodic housekeeping jobs: the invite expiry
// sweep and the analytics retention prune
type MaintenanceWorker struct {
	invites InviteExpirer
	events  EventPruner
	log     logrus.FieldLogger

	InviteSweepInterval time.Duration
	PruneInterval       time.Duration
	MaxEventAge         time.Duration

	mu       sync.Mutex
	stats    MaintenanceStats
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// MaintenanceStats reports what the last runs did
type MaintenanceStats struct {
	LastInviteSweep time.Time `json:"last_invite_sweep"`
	InvitesExpired  int64     `json:"invites_expired"`
	LastPrune       time.Time `json:"last_prune"`
	EventsPruned    int64     `json:"events_pruned"`
}

// NewMaintenanceWorker creates a worker with the default schedule
func NewMaintenanceWorker(invites InviteExpirer, events EventPruner, maxEventAge time.Duration, log logrus.FieldLogger) *MaintenanceWorker {
	return &MaintenanceWorker{
		invites:             invites,
		events:              events,
		log:                 log,
		InviteSweepInterval: DefaultInviteSweepInterval,
		PruneInterval:       DefaultPruneInterval,
		MaxEventAge:         maxEventAge,
		stopChan:            make(chan struct{}),
		done:                make(chan struct{}),
	}
}

// Start runs both jobs once and then on their tickers until ctx is done or Stop is called
func (w *MaintenanceWorker) Start(ctx context.Context) {
	w.log.WithFields(logrus.Fields{
		"invite_sweep_interval": w.InviteSweepInterval,
		"prune_interval":        w.PruneInterval,
		"max_event_age":         w.MaxEventAge,
	}).Info("Starting maintenance worker")

	inviteTicker := time.NewTicker(w.InviteSweepInterval)
	pruneTicker := time.NewTicker(w.PruneInterval)

	go func() {
		defer close(w.done)
		defer inviteTicker.Stop()
		defer pruneTicker.Stop()

		w.sweepInvites(ctx)
		w.pruneEvents(ctx)

		for {
			select {
			case <-ctx.Done():
				w.log.Info("Maintenance worker stopping due to context cancellation")
				return
			case <-w.stopChan:
				w.log.Info("Maintenance worker stopping")
				return
			case <-inviteTicker.C:
				w.sweepInvites(ctx)
			case <-pruneTicker.C:
				w.pruneEvents(ctx)
			}
		}
	}()
}

// Stop stops the worker and waits for a running job to finish
func (w *MaintenanceWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.done
}

func (w *MaintenanceWorker) sweepInvites(ctx context.Context) {
	if w.invites == nil {
		return
	}

	expired, err := w.invites.ExpireStale(ctx)
	if err != nil {
		w.log.WithError(err).Error("Invite expiry sweep failed")
		return
	}

	w.mu.Lock()
	w.stats.LastInviteSweep = time.Now()
	w.stats.InvitesExpired += expired
	w.mu.Unlock()

	if expired > 0 {
		w.log.WithField("expired", expired).Info("Expired stale invites")
	}
}

func (w *MaintenanceWorker) pruneEvents(ctx context.Context) {
	if w.events == nil {
		return
	}

	pruned, err := w.events.Prune(ctx, w.MaxEventAge)
	if err != nil {
		w.log.WithError(err).Error("Analytics prune failed")
		return
	}

	w.mu.Lock()
	w.stats.LastPrune = time.Now()
	w.stats.EventsPruned += pruned
	w.mu.Unlock()

	if pruned > 0 {
		w.log.WithField("pruned", pruned).Info("Pruned old analytics events")
	}
}

// GetStats returns the totals since start
func (w *MaintenanceWorker) GetStats() MaintenanceStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
