package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/service"
)

// ChannelCollectionChanged is a postgres notification channel filled by triggers.
const ChannelCollectionChanged = "collection_changed"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ErrDisconnected is returned by Listener's Ping when connection is lost.
var ErrDisconnected = errors.New("listener is disconnected")

// Listener forwards postgres notifications to notifier.
// It lets every instance know about changes made by others.
type Listener struct {
	dsn string
	n   service.Notifier

	connected int32
}

// NewListener ...
func NewListener(dsn string, n service.Notifier) *Listener {
	return &Listener{
		dsn: dsn,
		n:   n,
	}
}

// Run listens until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	pl := pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, l.onEvent)
	defer func() {
		if err := pl.Close(); err != nil {
			log.WithError(err).Error("failed to close listener")
		}
	}()

	if err := pl.Listen(ChannelCollectionChanged); err != nil {
		return fmt.Errorf("failed to listen %s: %w", ChannelCollectionChanged, err)
	}
	atomic.StoreInt32(&l.connected, 1)

	log.Info("listener started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-pl.Notify:
			l.handle(ctx, n)
		case <-time.After(pingInterval):
			go func() {
				if err := pl.Ping(); err != nil {
					log.WithError(err).Warn("failed to ping listener connection")
				}
			}()
		}
	}
}

// Ping implements health.Pinger.
func (l *Listener) Ping(_ context.Context) error {
	if atomic.LoadInt32(&l.connected) == 0 {
		return ErrDisconnected
	}

	return nil
}

func (l *Listener) handle(ctx context.Context, n *pq.Notification) {
	// nil notification is sent after reconnect, notifications could be lost meanwhile
	if n == nil {
		for _, c := range entities.Collections {
			l.notify(ctx, c)
		}
		return
	}

	c := entities.Collection(n.Extra)
	if !c.Valid() {
		log.WithField("payload", n.Extra).Warn("skip notification of unknown collection")
		return
	}

	l.notify(ctx, c)
}

func (l *Listener) notify(ctx context.Context, c entities.Collection) {
	if err := l.n.Notify(ctx, c); err != nil {
		log.WithError(err).WithField("collection", c).Error("failed to forward notification")
	}
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		atomic.StoreInt32(&l.connected, 1)
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		atomic.StoreInt32(&l.connected, 0)
	}

	if err != nil {
		log.WithError(err).WithField("event", ev).Warn("listener connection event")
	}
}
