package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/service"
)

var testCreatedAt = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "token", time.Second)
	require.NoError(t, err)

	return c
}

func TestClient_SignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/session", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"uid":"u1","displayName":"Ann","email":"a@b.c","photoURL":"p","createdAt":"2021-03-01T12:00:00Z"}`))
	})

	p, err := c.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &entities.Profile{
		ID:          "u1",
		DisplayName: "Ann",
		Email:       "a@b.c",
		PhotoURL:    "p",
		CreatedAt:   testCreatedAt,
	}, p)
}

func TestClient_Errors(t *testing.T) {
	tt := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":"unauthorized"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:   "validation",
			status: http.StatusBadRequest,
			body:   `{"error":"must not be empty","field":"text"}`,
			check: func(t *testing.T, err error) {
				var verr *service.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "text", verr.Field)
				assert.Equal(t, "must not be empty", verr.Message)
			},
		},
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   `{"error":"duplicate submission"}`,
			check: func(t *testing.T, err error) {
				var aerr *Error
				require.True(t, errors.As(err, &aerr))
				assert.Equal(t, http.StatusConflict, aerr.StatusCode)
				assert.Equal(t, "duplicate submission", aerr.Message)
			},
		},
		{
			name:   "no body",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var aerr *Error
				require.True(t, errors.As(err, &aerr))
				assert.Equal(t, "Bad Gateway", aerr.Message)
			},
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.AddComment(context.Background(), entities.PostsCollection, "1", "text", "key")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestClient_ListItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/shorts", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("author"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "", r.URL.Query().Get("after"))

		_, _ = w.Write([]byte(`{"shorts":[{"id":"s1","authorId":"u1","videoUrl":"v","caption":"c","createdAt":"2021-03-01T12:00:00Z","likedBy":["u2"],"comments":[]}]}`))
	})

	items, err := c.ListItems(context.Background(), entities.ShortsCollection, ListOptions{AuthorID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].ID)
	assert.Equal(t, entities.ShortsCollection, items[0].Collection)
	assert.Equal(t, "v", items[0].MediaURL)
	assert.Equal(t, []string{"u2"}, items[0].LikedBy)
}

func TestClient_AddComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/posts/p1/comments", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		b, err := ioutil.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hi"}`, string(b))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c1","authorId":"u1","authorName":"Ann","authorAvatar":"","text":"hi","createdAt":"2021-03-01T12:00:00Z"}`))
	})

	comment, err := c.AddComment(context.Background(), entities.PostsCollection, "p1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, &entities.Comment{
		ID:        "c1",
		Author:    entities.Author{ID: "u1", Name: "Ann"},
		Text:      "hi",
		CreatedAt: testCreatedAt,
	}, comment)
}

func TestClient_CreatePost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/posts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1024))

		assert.Equal(t, "hello", r.FormValue("text"))

		f, h, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close() // nolint:errcheck

		assert.Equal(t, "pic.png", h.Filename)
		assert.Equal(t, "image/png", h.Header.Get("Content-Type"))
		b, err := ioutil.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(b))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","authorId":"u1","text":"hello","imageUrl":"https://cdn/p.png","createdAt":"2021-03-01T12:00:00Z","likedBy":[],"comments":[]}`))
	})

	var sent, total int64
	item, err := c.CreatePost(context.Background(), " hello ", &Upload{
		Name:        "pic.png",
		ContentType: "image/png",
		Size:        10,
		Body:        strings.NewReader("0123456789"),
	}, func(s, n int64) {
		sent, total = s, n
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", item.ID)
	assert.Equal(t, entities.PostsCollection, item.Collection)
	assert.Equal(t, "https://cdn/p.png", item.MediaURL)
	assert.Equal(t, int64(10), sent)
	assert.Equal(t, int64(10), total)
}

func TestClient_CreatePost_Invalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request is not expected")
	})

	_, err := c.CreatePost(context.Background(), "   ", nil, nil)

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "text", verr.Field)
}

func TestClient_CreateShort_NoVideo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request is not expected")
	})

	for _, v := range []*Upload{nil, {Name: "empty.webm", Body: strings.NewReader("")}} {
		_, err := c.CreateShort(context.Background(), "caption", v, nil)

		var verr *service.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "video", verr.Field)
		assert.Equal(t, service.NoVideoMessage, verr.Message)
	}
}

func TestClient_UpdateProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/profiles/me", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]interface{}{"bio": "about"}, req)

		_, _ = w.Write([]byte(`{"uid":"u1","displayName":"Ann","bio":"about","createdAt":"2021-03-01T12:00:00Z"}`))
	})

	bio := "about"
	p, err := c.UpdateProfile(context.Background(), nil, &bio)
	require.NoError(t, err)
	assert.Equal(t, "about", p.Bio)
}

func TestClient_DeleteItem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/shorts/s1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteItem(context.Background(), entities.ShortsCollection, "s1"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(10, 0))
	assert.Equal(t, 50, Percent(5, 10))
	assert.Equal(t, 100, Percent(11, 10))
}
