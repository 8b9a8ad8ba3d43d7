package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PGChannel is the NOTIFY channel written by the throws insert trigger
const PGChannel = "throw_inserted"

// PGListener receives throw notifications from PostgreSQL LISTEN/NOTIFY
type PGListener struct {
	dsn    string
	broker *Broker
	log    logrus.FieldLogger

	MinReconnect time.Duration
	MaxReconnect time.Duration
	PingInterval time.Duration
}

// NewPGListener creates a listener for the database at dsn
func NewPGListener(dsn string, broker *Broker, log logrus.FieldLogger) *PGListener {
	return &PGListener{
		dsn:          dsn,
		broker:       broker,
		log:          log,
		MinReconnect: 10 * time.Second,
		MaxReconnect: time.Minute,
		PingInterval: 90 * time.Second,
	}
}

// Run listens until ctx is done. pq.Listener reconnects on its own; a nil
// notification marks a reconnect, after which a recompute may have been missed.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.MinReconnect, l.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.log.WithError(err).WithField("event", ev).Warn("PostgreSQL listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(PGChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", PGChannel, err)
	}
	l.log.WithField("channel", PGChannel).Info("Listening for PostgreSQL throw notifications")

	ticker := time.NewTicker(l.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n == nil {
				l.log.Info("PostgreSQL listener reconnected")
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				l.log.WithError(err).Warn("Dropping malformed throw notification")
				continue
			}
			l.broker.Publish(ctx, ev)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.WithError(err).Warn("PostgreSQL listener ping failed")
				}
			}()
		}
	}
}
