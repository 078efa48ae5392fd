package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/livesync"
	"github.com/Decentr-net/agora/internal/schema"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func (s server) subscribe(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /{collection}/subscribe Items Subscribe
	//
	// Upgrades connection to websocket and streams full snapshots of collection.
	// The first message contains current contents, then a new snapshot follows every change.
	// Subscription failure is sent as a message with error followed by close frame.
	//
	// ---
	// parameters:
	// - name: token
	//   description: access token, used when Authorization header can't be set
	//   in: query
	//   required: false
	// responses:
	//   '101':
	//     description: switching protocols
	//     schema:
	//       "$ref": "#/definitions/Snapshot"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	sub, err := s.hub.Subscribe(r.Context(), c)
	if err != nil {
		if errors.Is(err, livesync.ErrClosed) {
			api.WriteError(w, http.StatusServiceUnavailable, "service is shutting down")
			return
		}
		api.WriteInternalErrorf(r.Context(), w, "failed to subscribe: %s", err.Error())
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.GetLogger(r.Context()).WithError(err).Debug("failed to upgrade connection")
		return
	}
	defer conn.Close() // nolint:errcheck

	l := api.GetLogger(r.Context()).WithField("collection", c)

	// read loop handles control frames and detects closed connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)

		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			l.Debug("subscriber disconnected")
			return
		case <-sub.Done():
			msg := schema.Snapshot{Collection: c}
			if err := sub.Err(); err != nil {
				msg.Error = err.Error()
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(msg)
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription terminated"))
			return
		case snapshot := <-sub.Snapshots():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(schema.NewSnapshot(snapshot)); err != nil {
				l.WithError(err).Debug("failed to write snapshot")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
