package reel

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/reel/mock"
)

func testItems() []*entities.Item {
	return []*entities.Item{
		{ID: "a", Collection: entities.ShortsCollection},
		{ID: "b", Collection: entities.ShortsCollection},
		{ID: "c", Collection: entities.ShortsCollection},
	}
}

func newTestReel(t *testing.T) (*Reel, *mock.MockPlayer, []*entities.Item) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockPlayer(ctrl)

	items := testItems()
	r := New(p)
	r.SetItems(items)

	return r, p, items
}

func TestReel_Observe(t *testing.T) {
	r, p, items := newTestReel(t)

	assert.Equal(t, -1, r.Active())

	// below threshold
	r.Observe(0, 0.59)
	assert.Equal(t, -1, r.Active())

	p.EXPECT().Play(items[0]).Return(nil)
	r.Observe(0, 0.6)
	assert.Equal(t, 0, r.Active())
	assert.True(t, r.IsPlaying(0))

	// repeated report doesn't restart
	r.Observe(0, 0.9)

	gomock.InOrder(
		p.EXPECT().Pause(items[0]).Return(nil),
		p.EXPECT().Rewind(items[0]).Return(nil),
		p.EXPECT().Play(items[1]).Return(nil),
	)
	r.Observe(1, 0.7)
	assert.Equal(t, 1, r.Active())
	assert.False(t, r.IsPlaying(0))
	assert.True(t, r.IsPlaying(1))

	// inactive item leaving viewport is ignored
	r.Observe(0, 0)

	p.EXPECT().Pause(items[1]).Return(nil)
	p.EXPECT().Rewind(items[1]).Return(nil)
	r.Observe(1, 0.3)
	assert.Equal(t, -1, r.Active())
	assert.False(t, r.IsPlaying(1))

	r.Observe(10, 1)
	assert.Equal(t, -1, r.Active())
}

func TestReel_Tap(t *testing.T) {
	r, p, items := newTestReel(t)

	p.EXPECT().Play(items[2]).Return(nil)
	assert.Equal(t, TogglePlayback, r.Tap(2, Surface))
	assert.True(t, r.IsPlaying(2))

	// controls don't toggle playback
	assert.Equal(t, Like, r.Tap(2, LikeControl))
	assert.Equal(t, Comment, r.Tap(2, CommentControl))
	assert.True(t, r.IsPlaying(2))

	p.EXPECT().Pause(items[2]).Return(nil)
	assert.Equal(t, TogglePlayback, r.Tap(2, Surface))
	assert.False(t, r.IsPlaying(2))

	assert.Equal(t, NoAction, r.Tap(-1, Surface))
}

func TestReel_PlayFailure(t *testing.T) {
	r, p, items := newTestReel(t)

	p.EXPECT().Play(items[0]).Return(errors.New("autoplay blocked"))
	r.Observe(0, 1)

	assert.Equal(t, 0, r.Active())
	assert.False(t, r.IsPlaying(0))
}

func TestReel_SetItems(t *testing.T) {
	r, p, items := newTestReel(t)

	p.EXPECT().Play(items[1]).Return(nil)
	r.Observe(1, 1)

	// active item moves after new item is prepended
	next := append([]*entities.Item{{ID: "new"}}, items...)
	r.SetItems(next)
	assert.Equal(t, 2, r.Active())
	assert.True(t, r.IsPlaying(2))
	assert.Len(t, r.Items(), 4)

	// active item is removed, so it is stopped
	gomock.InOrder(
		p.EXPECT().Pause(items[1]).Return(nil),
		p.EXPECT().Rewind(items[1]).Return(nil),
	)
	r.SetItems(items[2:])
	assert.Equal(t, -1, r.Active())
	assert.False(t, r.IsPlaying(0))
}
