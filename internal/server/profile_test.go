package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/storage"
)

var profile = &entities.Profile{
	ID:          "user",
	DisplayName: "John",
	Email:       "john@example.com",
	CreatedAt:   timestamp,
}

const profileJSON = `{
	"uid": "user",
	"displayName": "John",
	"email": "john@example.com",
	"photoURL": "",
	"createdAt": "2021-02-15T18:39:49Z"
}`

func Test_signIn(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.s.EXPECT().SignIn(gomock.Any(), user).Return(profile, nil)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/v1/session", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, profileJSON, w.Body.String())
}

func Test_signOut(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.a.EXPECT().SignOut(gomock.Any(), "token").Return(nil)

	w := ts.do(httptest.NewRequest(http.MethodDelete, "/v1/session", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func Test_getMe(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/v1/profiles/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, profileJSON, w.Body.String())
}

func Test_getProfile_Cached(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.s.EXPECT().GetProfile(gomock.Any(), "user").Return(profile, nil).Times(1)
	ts.s.EXPECT().GetProfile(gomock.Any(), "unknown").Return(nil, service.ErrNotFound).Times(2)

	for i := 0; i < 2; i++ {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/v1/profiles/user", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, profileJSON, w.Body.String())

		w = ts.do(httptest.NewRequest(http.MethodGet, "/v1/profiles/unknown", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func Test_updateMe(t *testing.T) {
	ts := newTestServer(t, nil)
	_ = ts.cache.Set(context.Background(), "/v1/profiles/user", []byte(`{}`), 0)

	ts.s.EXPECT().UpdateProfile(gomock.Any(), "user", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, p *storage.UpdateProfileParams) (*entities.Profile, error) {
			assert.Equal(t, "Jane", *p.DisplayName)
			assert.Nil(t, p.Bio)
			assert.Nil(t, p.PhotoURL)
			return profile, nil
		})

	w := ts.do(httptest.NewRequest(http.MethodPut, "/v1/profiles/me", strings.NewReader(`{"displayName":"Jane"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, ts.cache.m, "/v1/profiles/user")
}

func Test_setProfileImage(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.s.EXPECT().SetProfileImage(gomock.Any(), "user", service.AvatarImage, gomock.Any()).Return(profile, nil)

	w := ts.do(multipartRequest(t, "/v1/profiles/me/avatar", nil, "image", "a.png", "png"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(multipartRequest(t, "/v1/profiles/me/avatar", nil, "", "", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(multipartRequest(t, "/v1/profiles/me/banner", nil, "image", "a.png", "png"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func Test_profileRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.s.EXPECT().ToggleLike(gomock.Any(), entities.PostsCollection, itemID, "user").Return(false, service.ErrProfileRequired)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/v1/posts/"+itemID+"/like", nil))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
