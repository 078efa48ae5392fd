package impl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/agora/internal/blob"
	blobmock "github.com/Decentr-net/agora/internal/blob/mock"
	"github.com/Decentr-net/agora/internal/entities"
	inflightmock "github.com/Decentr-net/agora/internal/inflight/mock"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/storage"
	storagemock "github.com/Decentr-net/agora/internal/storage/mock"
)

var ts = time.Unix(1600000000, 0).UTC()

var profile = &entities.Profile{
	ID:          "user",
	DisplayName: "John",
	PhotoURL:    "https://cdn/avatar.png",
}

type notifier struct {
	calls []entities.Collection
	err   error
}

func (n *notifier) Notify(_ context.Context, c entities.Collection) error {
	n.calls = append(n.calls, c)
	return n.err
}

type mocks struct {
	s *storagemock.MockStorage
	b *blobmock.MockStore
	g *inflightmock.MockGuard
	n *notifier
}

func newTestService(t *testing.T) (srv, mocks) {
	ctrl := gomock.NewController(t)

	m := mocks{
		s: storagemock.NewMockStorage(ctrl),
		b: blobmock.NewMockStore(ctrl),
		g: inflightmock.NewMockGuard(ctrl),
		n: &notifier{},
	}

	return srv{
		s:        m.s,
		b:        m.b,
		g:        m.g,
		n:        m.n,
		now:      func() time.Time { return ts },
		dedupTTL: DefaultDedupTTL,
	}, m
}

func TestSrv_SignIn(t *testing.T) {
	s, m := newTestService(t)

	u := &entities.User{ID: "user", Name: "John", Email: "john@example.com"}

	m.s.EXPECT().CreateProfile(gomock.Any(), &entities.Profile{
		ID:          "user",
		DisplayName: "John",
		Email:       "john@example.com",
		CreatedAt:   ts,
	}).Return(nil)
	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)

	p, err := s.SignIn(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, profile, p)
}

func TestSrv_GetProfile(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(nil, storage.ErrNotFound)
	_, err := s.GetProfile(context.Background(), "user")
	require.ErrorIs(t, err, service.ErrNotFound)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(nil, context.Canceled)
	_, err = s.GetProfile(context.Background(), "user")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualError(t, err, "failed to get profile on storage side: context canceled")
}

func TestSrv_UpdateProfile(t *testing.T) {
	s, m := newTestService(t)

	name, bio := "  Jane ", " hello "

	m.s.EXPECT().UpdateProfile(gomock.Any(), "user", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, p *storage.UpdateProfileParams) (*entities.Profile, error) {
			assert.Equal(t, "Jane", *p.DisplayName)
			assert.Equal(t, "hello", *p.Bio)
			assert.Nil(t, p.PhotoURL)
			return profile, nil
		})

	_, err := s.UpdateProfile(context.Background(), "user", &storage.UpdateProfileParams{
		DisplayName: &name,
		Bio:         &bio,
	})
	require.NoError(t, err)

	empty := " "
	_, err = s.UpdateProfile(context.Background(), "user", &storage.UpdateProfileParams{DisplayName: &empty})
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "displayName", verr.Field)
}

func TestSrv_SetProfileImage(t *testing.T) {
	s, m := newTestService(t)

	old := *profile
	old.CoverImageURL = "https://cdn/old_cover.png"

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(&old, nil)
	m.b.EXPECT().Put(gomock.Any(), "covers/user/1600000000000_cover.png", gomock.Any(), "image/png").
		Return("https://cdn/new_cover.png", nil)
	m.s.EXPECT().UpdateProfile(gomock.Any(), "user", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, p *storage.UpdateProfileParams) (*entities.Profile, error) {
			assert.Equal(t, "https://cdn/new_cover.png", *p.CoverImageURL)
			assert.Nil(t, p.PhotoURL)
			return profile, nil
		})
	m.b.EXPECT().Delete(gomock.Any(), "https://cdn/old_cover.png").Return(nil)

	_, err := s.SetProfileImage(context.Background(), "user", service.CoverImage, &service.File{
		Name:        "cover.png",
		ContentType: "image/png",
		Size:        3,
		Body:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
}

func TestSrv_SetProfileImage_WrongType(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.SetProfileImage(context.Background(), "user", service.AvatarImage, &service.File{
		Name:        "a.mp4",
		ContentType: "video/mp4",
	})

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "avatar", verr.Field)
}

func TestSrv_CreatePost(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.b.EXPECT().Put(gomock.Any(), "posts/user/1600000000000_a.png", gomock.Any(), "image/png").DoAndReturn(
		func(_ context.Context, _ string, r io.Reader, _ string) (string, error) {
			b, err := ioutil.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "png", string(b))
			return "https://cdn/posts/user/1600000000000_a.png", nil
		})
	m.s.EXPECT().CreateItem(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *storage.CreateItemParams) error {
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, entities.PostsCollection, p.Collection)
		assert.Equal(t, entities.AuthorFromProfile(profile), p.Author)
		assert.Equal(t, "hello", p.Text)
		assert.Equal(t, "https://cdn/posts/user/1600000000000_a.png", p.MediaURL)
		assert.Equal(t, ts, p.CreatedAt)
		return nil
	})

	i, err := s.CreatePost(context.Background(), "user", " hello ", &service.File{
		Name:        "a.png",
		ContentType: "image/png",
		Size:        3,
		Body:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", i.Text)
	assert.Empty(t, i.LikedBy)
	assert.Empty(t, i.Comments)
	assert.Equal(t, []entities.Collection{entities.PostsCollection}, m.n.calls)
}

func TestSrv_CreatePost_WithoutImage(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.s.EXPECT().CreateItem(gomock.Any(), gomock.Any()).Return(nil)

	i, err := s.CreatePost(context.Background(), "user", "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, i.MediaURL)
}

func TestSrv_CreatePost_Invalid(t *testing.T) {
	s, m := newTestService(t)

	_, err := s.CreatePost(context.Background(), "user", "   ", nil)

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, m.n.calls)
}

func TestSrv_CreatePost_NoProfile(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(nil, storage.ErrNotFound)

	_, err := s.CreatePost(context.Background(), "user", "hello", nil)
	require.ErrorIs(t, err, service.ErrProfileRequired)
}

func TestSrv_CreateShort(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.b.EXPECT().Put(gomock.Any(), "shorts/user/1600000000000_clip.webm", gomock.Any(), "video/webm").
		Return("https://cdn/shorts/clip.webm", nil)
	m.s.EXPECT().CreateItem(gomock.Any(), gomock.Any()).Return(nil)

	i, err := s.CreateShort(context.Background(), "user", "caption", &service.File{
		Name:        "clip.webm",
		ContentType: "video/webm",
		Size:        5,
		Body:        bytes.NewReader([]byte("video")),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ShortsCollection, i.Collection)
	assert.Equal(t, "https://cdn/shorts/clip.webm", i.MediaURL)
	assert.Equal(t, []entities.Collection{entities.ShortsCollection}, m.n.calls)
}

func TestSrv_CreateShort_NoVideo(t *testing.T) {
	s, _ := newTestService(t)

	for _, f := range []*service.File{nil, {Name: "empty.webm", ContentType: "video/webm"}} {
		_, err := s.CreateShort(context.Background(), "user", "caption", f)

		var verr *service.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, service.NoVideoMessage, verr.Message)
	}
}

func TestSrv_CreateShort_StorageFailureRemovesBlob(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.b.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("https://cdn/shorts/clip.webm", nil)
	m.s.EXPECT().CreateItem(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)
	m.b.EXPECT().Delete(gomock.Any(), "https://cdn/shorts/clip.webm").Return(nil)

	_, err := s.CreateShort(context.Background(), "user", "", &service.File{
		Name: "clip.webm",
		Size: 5,
		Body: bytes.NewReader([]byte("video")),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualError(t, err, "failed to create item on storage side: context deadline exceeded")
	assert.Empty(t, m.n.calls)
}

func TestSrv_DeleteItem(t *testing.T) {
	tt := []struct {
		name        string
		requestedBy string
		mediaURL    string
		deleteErr   error
		err         error
	}{
		{name: "success", requestedBy: "user", mediaURL: "https://cdn/a.png"},
		{name: "foreign_media", requestedBy: "user", mediaURL: "https://other/a.png", deleteErr: blob.ErrForeignURL},
		{name: "without_media", requestedBy: "user"},
		{name: "not_owner", requestedBy: "other", mediaURL: "https://cdn/a.png", err: service.ErrForbidden},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			s, m := newTestService(t)

			m.s.EXPECT().GetItem(gomock.Any(), entities.PostsCollection, "id").Return(&entities.Item{
				ID:       "id",
				Author:   entities.Author{ID: "user"},
				MediaURL: tc.mediaURL,
			}, nil)

			if tc.err == nil {
				m.s.EXPECT().DeleteItem(gomock.Any(), entities.PostsCollection, "id", ts).Return(nil)
				if tc.mediaURL != "" {
					m.b.EXPECT().Delete(gomock.Any(), tc.mediaURL).Return(tc.deleteErr)
				}
			}

			err := s.DeleteItem(context.Background(), entities.PostsCollection, "id", tc.requestedBy)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				assert.Empty(t, m.n.calls)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, []entities.Collection{entities.PostsCollection}, m.n.calls)
		})
	}
}

func TestSrv_DeleteItem_NotFound(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetItem(gomock.Any(), entities.PostsCollection, "id").Return(nil, storage.ErrNotFound)

	require.ErrorIs(t, s.DeleteItem(context.Background(), entities.PostsCollection, "id", "user"), service.ErrNotFound)
}

func TestSrv_ToggleLike(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().ToggleLike(gomock.Any(), entities.ShortsCollection, "id", "user", ts).Return(true, nil)
	liked, err := s.ToggleLike(context.Background(), entities.ShortsCollection, "id", "user")
	require.NoError(t, err)
	assert.True(t, liked)

	m.s.EXPECT().ToggleLike(gomock.Any(), entities.ShortsCollection, "id", "user", ts).Return(false, nil)
	liked, err = s.ToggleLike(context.Background(), entities.ShortsCollection, "id", "user")
	require.NoError(t, err)
	assert.False(t, liked)

	m.s.EXPECT().ToggleLike(gomock.Any(), entities.ShortsCollection, "id", "user", ts).Return(false, storage.ErrNotFound)
	_, err = s.ToggleLike(context.Background(), entities.ShortsCollection, "id", "user")
	require.ErrorIs(t, err, service.ErrNotFound)

	assert.Len(t, m.n.calls, 2)
}

func TestSrv_ToggleLike_NotifyErrorIsIgnored(t *testing.T) {
	s, m := newTestService(t)
	m.n.err = errors.New("bus is closed")

	m.s.EXPECT().ToggleLike(gomock.Any(), entities.PostsCollection, "id", "user", ts).Return(true, nil)

	liked, err := s.ToggleLike(context.Background(), entities.PostsCollection, "id", "user")
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestSrv_AddComment(t *testing.T) {
	s, m := newTestService(t)

	m.g.EXPECT().Acquire(gomock.Any(), "comment:user:key", DefaultDedupTTL).Return(true, nil)
	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.s.EXPECT().AddComment(gomock.Any(), entities.PostsCollection, "id", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ entities.Collection, _ string, c *entities.Comment) error {
			assert.NotEmpty(t, c.ID)
			assert.Equal(t, "nice", c.Text)
			assert.Equal(t, entities.AuthorFromProfile(profile), c.Author)
			assert.Equal(t, ts, c.CreatedAt)
			return nil
		})

	c, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", " nice ", "key")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Text)
	assert.Equal(t, []entities.Collection{entities.PostsCollection}, m.n.calls)
}

func TestSrv_AddComment_Duplicate(t *testing.T) {
	s, m := newTestService(t)

	m.g.EXPECT().Acquire(gomock.Any(), "comment:user:key", DefaultDedupTTL).Return(false, nil)

	_, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", "nice", "key")
	require.ErrorIs(t, err, service.ErrDuplicateSubmission)
}

func TestSrv_AddComment_FailureReleasesKey(t *testing.T) {
	s, m := newTestService(t)

	m.g.EXPECT().Acquire(gomock.Any(), "comment:user:key", DefaultDedupTTL).Return(true, nil)
	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.s.EXPECT().AddComment(gomock.Any(), entities.PostsCollection, "id", gomock.Any()).Return(storage.ErrNotFound)
	m.g.EXPECT().Release(gomock.Any(), "comment:user:key").Return(nil)

	_, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", "nice", "key")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestSrv_AddComment_WithoutKey(t *testing.T) {
	s, m := newTestService(t)

	m.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	m.s.EXPECT().AddComment(gomock.Any(), entities.PostsCollection, "id", gomock.Any()).Return(nil)

	_, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", "nice", "")
	require.NoError(t, err)
}

func TestSrv_AddComment_Invalid(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", "  ", "key")

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestNew_WithoutOptionalDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := storagemock.NewMockStorage(ctrl)

	s := New(st, blobmock.NewMockStore(ctrl), nil, nil)

	st.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)
	st.EXPECT().AddComment(gomock.Any(), entities.PostsCollection, "id", gomock.Any()).Return(nil)

	_, err := s.AddComment(context.Background(), entities.PostsCollection, "id", "user", "nice", "key")
	require.NoError(t, err)
}
