// Package reel tracks the single active short of a vertical feed and drives its playback.
package reel

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/entities"
)

//go:generate mockgen -destination=./mock/reel.go -package=mock -source=reel.go

var log = logrus.WithField("layer", "reel").WithField("package", "reel")

// VisibilityThreshold is a minimal visible ratio of active item.
const VisibilityThreshold = 0.6

// Player plays item's video.
type Player interface {
	Play(item *entities.Item) error
	Pause(item *entities.Item) error
	// Rewind seeks to the start.
	Rewind(item *entities.Item) error
}

// Target is a tapped element of an item.
type Target int

const (
	// Surface is the video itself.
	Surface Target = iota
	// LikeControl ...
	LikeControl
	// CommentControl ...
	CommentControl
)

// Action is an action requested by tap.
type Action int

const (
	// NoAction ...
	NoAction Action = iota
	// TogglePlayback means the tap toggled play/pause.
	TogglePlayback
	// Like ...
	Like
	// Comment ...
	Comment
)

// Reel ...
type Reel struct {
	p Player

	mu      sync.Mutex
	items   []*entities.Item
	active  string
	playing map[string]bool
}

// New ...
func New(p Player) *Reel {
	return &Reel{
		p:       p,
		playing: map[string]bool{},
	}
}

// SetItems replaces items. Active item stays active if it's still present.
func (r *Reel) SetItems(items []*entities.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make(map[string]bool, len(items))
	for _, v := range items {
		present[v.ID] = true
	}

	if r.active != "" && !present[r.active] {
		if prev := r.byID(r.active); prev != nil {
			r.deactivate(prev)
		}
		r.active = ""
	}

	for id := range r.playing {
		if !present[id] {
			delete(r.playing, id)
		}
	}

	r.items = items
}

// Items ...
func (r *Reel) Items() []*entities.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.items
}

// Observe handles visibility report of item at index.
func (r *Reel) Observe(index int, ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.item(index)
	if item == nil {
		return
	}

	switch {
	case ratio >= VisibilityThreshold && r.active != item.ID:
		if prev := r.byID(r.active); prev != nil {
			r.deactivate(prev)
		}
		r.active = item.ID
		r.play(item)
	case ratio < VisibilityThreshold && r.active == item.ID:
		r.active = ""
		r.deactivate(item)
	}
}

// Active returns index of active item or -1.
func (r *Reel) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range r.items {
		if v.ID == r.active {
			return i
		}
	}

	return -1
}

// IsPlaying ...
func (r *Reel) IsPlaying(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.item(index)
	if item == nil {
		return false
	}

	return r.playing[item.ID]
}

// Tap handles tap on item. Controls never toggle playback.
func (r *Reel) Tap(index int, t Target) Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.item(index)
	if item == nil {
		return NoAction
	}

	switch t {
	case LikeControl:
		return Like
	case CommentControl:
		return Comment
	case Surface:
		if r.playing[item.ID] {
			r.pause(item)
		} else {
			r.play(item)
		}
		return TogglePlayback
	default:
		return NoAction
	}
}

func (r *Reel) item(index int) *entities.Item {
	if index < 0 || index >= len(r.items) {
		return nil
	}

	return r.items[index]
}

func (r *Reel) byID(id string) *entities.Item {
	if id == "" {
		return nil
	}

	for _, v := range r.items {
		if v.ID == id {
			return v
		}
	}

	return nil
}

func (r *Reel) play(item *entities.Item) {
	if err := r.p.Play(item); err != nil {
		log.WithError(err).WithField("id", item.ID).Warn("failed to play")
		return
	}
	r.playing[item.ID] = true
}

func (r *Reel) pause(item *entities.Item) {
	if err := r.p.Pause(item); err != nil {
		log.WithError(err).WithField("id", item.ID).Warn("failed to pause")
	}
	r.playing[item.ID] = false
}

func (r *Reel) deactivate(item *entities.Item) {
	r.pause(item)

	if err := r.p.Rewind(item); err != nil {
		log.WithError(err).WithField("id", item.ID).Warn("failed to rewind")
	}
}
