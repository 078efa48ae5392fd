package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/schema"
)

// ErrFeedClosed is returned by Feed.Err when server closed the stream without an error.
var ErrFeedClosed = errors.New("feed closed by server")

const feedReadTimeout = 2 * time.Minute

// SubscriptionError is a terminal error sent by server.
type SubscriptionError struct {
	Message string
}

func (e *SubscriptionError) Error() string {
	return "subscription failed: " + e.Message
}

// Feed is a local projection of a collection kept up to date by the live subscription.
// Every delivered snapshot replaces the whole list.
type Feed struct {
	collection entities.Collection
	conn       *websocket.Conn

	mu    sync.RWMutex
	items []*entities.Item
	seq   uint64
	err   error

	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closing   chan struct{}
}

// Subscribe opens live subscription of collection.
func (c *Client) Subscribe(ctx context.Context, col entities.Collection) (*Feed, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += fmt.Sprintf("/v1/%s/subscribe", col)
	u.RawQuery = url.Values{"token": []string{c.token}}.Encode()

	conn, res, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if res != nil {
			defer res.Body.Close() // nolint:errcheck
			if res.StatusCode >= http.StatusBadRequest {
				return nil, readError(res)
			}
		}
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	f := newFeed(col, conn)
	go f.run()

	return f, nil
}

func newFeed(col entities.Collection, conn *websocket.Conn) *Feed {
	return &Feed{
		collection: col,
		conn:       conn,
		items:      []*entities.Item{},
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		closing:    make(chan struct{}),
	}
}

// Collection ...
func (f *Feed) Collection() entities.Collection {
	return f.collection
}

// Items returns current list, newest first.
func (f *Feed) Items() []*entities.Item {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*entities.Item, len(f.items))
	copy(out, f.items)

	return out
}

// Updates signals that list was changed. Signals are coalesced.
func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

// Done is closed when the feed is terminated.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Err returns terminal error. It's nil when feed was closed by Close.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.err
}

// Close terminates the feed. Repeated calls are no-op.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.closing)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = f.conn.Close()
	})
	<-f.done
}

// ApplyLike patches item after acknowledged like toggle.
func (f *Feed) ApplyLike(id, userID string, liked bool) {
	f.patch(id, func(i *entities.Item) {
		if i.IsLikedBy(userID) != liked {
			i.LikedBy, _ = entities.ToggleLike(i.LikedBy, userID)
		}
	})
}

// ApplyComment patches item after acknowledged comment.
func (f *Feed) ApplyComment(id string, c entities.Comment) {
	f.patch(id, func(i *entities.Item) {
		for _, v := range i.Comments {
			if v.ID == c.ID {
				return
			}
		}
		i.Comments = entities.AppendComment(i.Comments, c)
	})
}

func (f *Feed) patch(id string, fn func(i *entities.Item)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for n, v := range f.items {
		if v.ID != id {
			continue
		}

		item := *v
		fn(&item)
		f.items[n] = &item
		f.signal()

		return
	}
}

func (f *Feed) signal() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}

func (f *Feed) run() {
	err := f.read()

	select {
	case <-f.closing:
		err = nil
	default:
	}

	f.mu.Lock()
	f.err = err
	f.mu.Unlock()

	_ = f.conn.Close()
	close(f.done)
}

func (f *Feed) read() error {
	_ = f.conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
	f.conn.SetPingHandler(func(data string) error {
		_ = f.conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		return f.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var msg schema.Snapshot
		if err := f.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrFeedClosed
			}
			return fmt.Errorf("failed to read snapshot: %w", err)
		}

		if msg.Error != "" {
			return &SubscriptionError{Message: msg.Error}
		}

		f.replace(msg.Entity())
	}
}

// replace swaps the list unless snapshot is older than the current one.
func (f *Feed) replace(s *entities.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.Seq != 0 && s.Seq <= f.seq {
		log.WithField("seq", s.Seq).Debug("stale snapshot skipped")
		return
	}

	f.seq = s.Seq
	f.items = s.Items
	f.signal()
}
