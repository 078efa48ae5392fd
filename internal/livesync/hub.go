// Package livesync delivers live snapshots of collections to subscribers.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/metrics"
	"github.com/Decentr-net/agora/internal/storage"
)

var log = logrus.WithField("layer", "livesync").WithField("package", "livesync")

// TopicCollectionChanged is a bus topic; message payload is a collection name.
const TopicCollectionChanged = "collection.changed"

var (
	// ErrClosed is returned when hub is stopped.
	ErrClosed = errors.New("hub is closed")
	// ErrNotRunning is returned by Ping when hub doesn't consume changes yet.
	ErrNotRunning = errors.New("hub is not running")
	// ErrUnknownCollection ...
	ErrUnknownCollection = errors.New("unknown collection")
)

// Source loads collection contents.
type Source interface {
	ListItems(ctx context.Context, p *storage.ListItemsParams) ([]*entities.Item, error)
}

// PubSub is an event bus, e.g. watermill's gochannel.
type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Hub holds standing subscriptions and reloads snapshots on every change.
type Hub struct {
	src   Source
	bus   PubSub
	limit uint16

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.Mutex
	seq    uint64
	subs   map[entities.Collection]map[*Subscription]struct{}
	closed bool
}

// NewHub returns new hub. Limit caps snapshot size, 0 means whole collection.
func NewHub(src Source, bus PubSub, limit uint16) *Hub {
	return &Hub{
		src:   src,
		bus:   bus,
		limit: limit,
		ready: make(chan struct{}),
		subs:  make(map[entities.Collection]map[*Subscription]struct{}),
	}
}

// Ready is closed when hub starts consuming changes.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Notify publishes change of collection.
func (h *Hub) Notify(_ context.Context, c entities.Collection) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return ErrClosed
	}

	if err := h.bus.Publish(TopicCollectionChanged, message.NewMessage(watermill.NewUUID(), []byte(c))); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	return nil
}

// Subscribe registers subscription and delivers the first snapshot to it.
func (h *Hub) Subscribe(ctx context.Context, c entities.Collection) (*Subscription, error) {
	if !c.Valid() {
		return nil, ErrUnknownCollection
	}

	s := newSubscription(h, c)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[c] == nil {
		h.subs[c] = make(map[*Subscription]struct{})
	}
	h.subs[c][s] = struct{}{}
	h.mu.Unlock()

	metrics.Subscriptions.WithLabelValues(string(c)).Inc()

	snapshot, err := h.load(ctx, c)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.deliver(snapshot)

	return s, nil
}

// Run consumes change events until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	messages, err := h.bus.Subscribe(ctx, TopicCollectionChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicCollectionChanged, err)
	}

	h.readyOnce.Do(func() { close(h.ready) })
	log.Info("hub started")

	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			msg.Ack()

			c := entities.Collection(msg.Payload)
			if !c.Valid() {
				log.WithField("payload", string(msg.Payload)).Warn("skip change of unknown collection")
				continue
			}

			h.refresh(ctx, c)
		}
	}
}

// Ping implements health.Pinger.
func (h *Hub) Ping(_ context.Context) error {
	select {
	case <-h.ready:
	default:
		return ErrNotRunning
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	return nil
}

func (h *Hub) refresh(ctx context.Context, c entities.Collection) {
	subs := h.subscriptions(c)
	if len(subs) == 0 {
		return
	}

	snapshot, err := h.load(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		log.WithError(err).WithField("collection", c).Error("failed to load snapshot")
		for _, s := range h.subscriptions(c) {
			s.terminate(err)
		}
		return
	}

	for _, s := range h.subscriptions(c) {
		s.deliver(snapshot)
	}
}

func (h *Hub) load(ctx context.Context, c entities.Collection) (*entities.Snapshot, error) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	items, err := h.src.ListItems(ctx, &storage.ListItemsParams{
		Collection: c,
		Limit:      h.limit,
	})
	if err != nil {
		metrics.Snapshots.WithLabelValues(string(c), "error").Inc()
		return nil, fmt.Errorf("failed to load %s snapshot: %w", c, err)
	}
	metrics.Snapshots.WithLabelValues(string(c), "ok").Inc()

	if items == nil {
		items = []*entities.Item{}
	}

	return &entities.Snapshot{
		Collection: c,
		Seq:        seq,
		Items:      items,
	}, nil
}

func (h *Hub) subscriptions(c entities.Collection) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Subscription, 0, len(h.subs[c]))
	for s := range h.subs[c] {
		out = append(out, s)
	}

	return out
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.subs[s.c]; ok {
		delete(m, s)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true

	var all []*Subscription
	for _, m := range h.subs {
		for s := range m {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.terminate(ErrClosed)
	}

	log.Info("hub stopped")
}

// Subscription is a standing subscription on a collection.
type Subscription struct {
	c   entities.Collection
	hub *Hub

	ch   chan *entities.Snapshot
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	lastSeq uint64
	err     error
}

func newSubscription(h *Hub, c entities.Collection) *Subscription {
	return &Subscription{
		c:    c,
		hub:  h,
		ch:   make(chan *entities.Snapshot, 1),
		done: make(chan struct{}),
	}
}

// Collection ...
func (s *Subscription) Collection() entities.Collection {
	return s.c
}

// Snapshots returns channel of snapshots. Only the latest undelivered snapshot is kept.
func (s *Subscription) Snapshots() <-chan *entities.Snapshot {
	return s.ch
}

// Done is closed when subscription is closed or terminated.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns terminal error; it is nil when subscription was closed by the owner.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Close releases subscription. It is safe to call it more than once.
func (s *Subscription) Close() {
	s.finish(nil)
}

func (s *Subscription) terminate(err error) {
	s.finish(err)
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		close(s.done)
		s.mu.Unlock()

		s.hub.remove(s)
		metrics.Subscriptions.WithLabelValues(string(s.c)).Dec()
	})
}

func (s *Subscription) deliver(snapshot *entities.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	if snapshot.Seq <= s.lastSeq {
		return
	}

	// drop stale snapshot
	select {
	case <-s.ch:
	default:
	}

	s.ch <- snapshot
	s.lastSeq = snapshot.Seq
}
