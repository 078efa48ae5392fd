package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/storage"
)

const wait = 5 * time.Second

type source struct {
	mu    sync.Mutex
	items map[entities.Collection][]*entities.Item
	err   error
	calls int
}

func (s *source) ListItems(_ context.Context, p *storage.ListItemsParams) ([]*entities.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	return s.items[p.Collection], nil
}

func (s *source) set(c entities.Collection, items ...*entities.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items == nil {
		s.items = map[entities.Collection][]*entities.Item{}
	}
	s.items[c] = items
}

func (s *source) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

func startHub(t *testing.T, src Source) (*Hub, context.CancelFunc) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	h := NewHub(src, bus, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.Run(ctx))
	}()

	select {
	case <-h.Ready():
	case <-time.After(wait):
		t.Fatal("hub is not ready")
	}

	return h, func() {
		cancel()
		<-done
		_ = bus.Close()
	}
}

func receive(t *testing.T, s *Subscription) *entities.Snapshot {
	select {
	case snapshot := <-s.Snapshots():
		return snapshot
	case <-time.After(wait):
		t.Fatal("snapshot is not received")
		return nil
	}
}

func TestHub_Subscribe(t *testing.T) {
	src := &source{}
	src.set(entities.PostsCollection, &entities.Item{ID: "2"}, &entities.Item{ID: "1"})

	h, stop := startHub(t, src)
	defer stop()

	s, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)
	defer s.Close()

	snapshot := receive(t, s)
	assert.Equal(t, entities.PostsCollection, snapshot.Collection)
	require.Len(t, snapshot.Items, 2)
	assert.Equal(t, "2", snapshot.Items[0].ID)
}

func TestHub_Subscribe_EmptyCollection(t *testing.T) {
	h, stop := startHub(t, &source{})
	defer stop()

	s, err := h.Subscribe(context.Background(), entities.ShortsCollection)
	require.NoError(t, err)
	defer s.Close()

	snapshot := receive(t, s)
	assert.NotNil(t, snapshot.Items)
	assert.Empty(t, snapshot.Items)
}

func TestHub_Subscribe_UnknownCollection(t *testing.T) {
	h, stop := startHub(t, &source{})
	defer stop()

	_, err := h.Subscribe(context.Background(), "stories")
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestHub_Subscribe_LoadFailure(t *testing.T) {
	src := &source{}
	src.fail(errors.New("permission denied"))

	h, stop := startHub(t, src)
	defer stop()

	_, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.Error(t, err)
	assert.Empty(t, h.subscriptions(entities.PostsCollection))
}

func TestHub_Notify(t *testing.T) {
	src := &source{}
	src.set(entities.PostsCollection, &entities.Item{ID: "1"})

	h, stop := startHub(t, src)
	defer stop()

	posts, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)
	defer posts.Close()
	first := receive(t, posts)

	shorts, err := h.Subscribe(context.Background(), entities.ShortsCollection)
	require.NoError(t, err)
	defer shorts.Close()
	receive(t, shorts)

	src.set(entities.PostsCollection, &entities.Item{ID: "2"}, &entities.Item{ID: "1"})
	require.NoError(t, h.Notify(context.Background(), entities.PostsCollection))

	second := receive(t, posts)
	assert.Greater(t, second.Seq, first.Seq)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "2", second.Items[0].ID)

	select {
	case <-shorts.Snapshots():
		t.Fatal("unexpected shorts snapshot")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_LoadFailureTerminatesSubscriptions(t *testing.T) {
	src := &source{}

	h, stop := startHub(t, src)
	defer stop()

	a, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)
	b, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)

	src.fail(errors.New("permission denied"))
	require.NoError(t, h.Notify(context.Background(), entities.PostsCollection))

	for _, s := range []*Subscription{a, b} {
		select {
		case <-s.Done():
		case <-time.After(wait):
			t.Fatal("subscription is not terminated")
		}
		require.Error(t, s.Err())
		assert.Contains(t, s.Err().Error(), "permission denied")
	}
}

func TestHub_ShutdownTerminatesSubscriptions(t *testing.T) {
	h, stop := startHub(t, &source{})

	s, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)

	require.NoError(t, h.Ping(context.Background()))

	stop()

	<-s.Done()
	require.ErrorIs(t, s.Err(), ErrClosed)
	require.ErrorIs(t, h.Ping(context.Background()), ErrClosed)
	require.ErrorIs(t, h.Notify(context.Background(), entities.PostsCollection), ErrClosed)

	_, err = h.Subscribe(context.Background(), entities.PostsCollection)
	require.ErrorIs(t, err, ErrClosed)
}

func TestHub_Ping_NotRunning(t *testing.T) {
	h := NewHub(&source{}, gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), 0)

	require.ErrorIs(t, h.Ping(context.Background()), ErrNotRunning)
}

func TestSubscription_Close(t *testing.T) {
	h, stop := startHub(t, &source{})
	defer stop()

	s, err := h.Subscribe(context.Background(), entities.PostsCollection)
	require.NoError(t, err)

	s.Close()
	s.Close()

	<-s.Done()
	assert.NoError(t, s.Err())
	assert.Empty(t, h.subscriptions(entities.PostsCollection))
}

func TestSubscription_deliver(t *testing.T) {
	s := newSubscription(NewHub(&source{}, nil, 0), entities.PostsCollection)

	s.deliver(&entities.Snapshot{Seq: 1})
	s.deliver(&entities.Snapshot{Seq: 3})
	s.deliver(&entities.Snapshot{Seq: 2})

	snapshot := <-s.Snapshots()
	assert.EqualValues(t, 3, snapshot.Seq, "stale snapshot must be replaced")

	s.deliver(&entities.Snapshot{Seq: 2})
	select {
	case <-s.Snapshots():
		t.Fatal("older snapshot is delivered after newer one")
	default:
	}

	s.Close()
	s.deliver(&entities.Snapshot{Seq: 4})
	select {
	case <-s.Snapshots():
		t.Fatal("snapshot is delivered after close")
	default:
	}
}

type notifier struct {
	calls []entities.Collection
}

func (n *notifier) Notify(_ context.Context, c entities.Collection) error {
	n.calls = append(n.calls, c)
	return nil
}

func TestListener_handle(t *testing.T) {
	n := &notifier{}
	l := NewListener("", n)

	l.handle(context.Background(), &pq.Notification{Channel: ChannelCollectionChanged, Extra: "shorts"})
	l.handle(context.Background(), &pq.Notification{Channel: ChannelCollectionChanged, Extra: "unknown"})
	assert.Equal(t, []entities.Collection{entities.ShortsCollection}, n.calls)

	n.calls = nil
	l.handle(context.Background(), nil)
	assert.Equal(t, entities.Collections, n.calls)
}

func TestListener_Ping(t *testing.T) {
	l := NewListener("", &notifier{})
	require.ErrorIs(t, l.Ping(context.Background()), ErrDisconnected)

	l.onEvent(pq.ListenerEventConnected, nil)
	require.NoError(t, l.Ping(context.Background()))

	l.onEvent(pq.ListenerEventDisconnected, errors.New("eof"))
	require.ErrorIs(t, l.Ping(context.Background()), ErrDisconnected)
}
