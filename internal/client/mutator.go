package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/service"
)

//go:generate mockgen -destination=./mock/mutator.go -package=mock -source=mutator.go

// ErrInFlight is returned when a submission for the same target is not finished yet.
var ErrInFlight = errors.New("submission is in flight")

// Notifier shows transient notifications.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc ...
type NotifierFunc func(message string)

// Notify ...
func (f NotifierFunc) Notify(message string) {
	f(message)
}

// Interactor sends interactions to server.
type Interactor interface {
	ToggleLike(ctx context.Context, c entities.Collection, id string) (bool, error)
	AddComment(ctx context.Context, c entities.Collection, id, text, idempotencyKey string) (*entities.Comment, error)
}

// Projection is a local list patched after acknowledged mutations.
type Projection interface {
	ApplyLike(id, userID string, liked bool)
	ApplyComment(id string, c entities.Comment)
}

// Mutator performs likes and comments of one user.
// Failures are reported to notifier and local state stays untouched.
type Mutator struct {
	api    Interactor
	p      Projection
	n      Notifier
	userID string

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMutator ...
func NewMutator(api Interactor, p Projection, n Notifier, userID string) *Mutator {
	return &Mutator{
		api:      api,
		p:        p,
		n:        n,
		userID:   userID,
		inflight: map[string]struct{}{},
	}
}

// ToggleLike toggles like of item and returns membership after the call.
func (m *Mutator) ToggleLike(ctx context.Context, c entities.Collection, id string) (bool, error) {
	release, err := m.acquire("like:" + id)
	if err != nil {
		return false, err
	}
	defer release()

	liked, err := m.api.ToggleLike(ctx, c, id)
	if err != nil {
		m.report("Could not update like", err)
		return false, err
	}

	m.p.ApplyLike(id, m.userID, liked)

	return liked, nil
}

// IsInFlight returns true if submission for target is running.
func (m *Mutator) IsInFlight(kind, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.inflight[kind+":"+id]
	return ok
}

// AddComment appends comment to item. Empty text is rejected without request.
func (m *Mutator) AddComment(ctx context.Context, c entities.Collection, id, text string) (*entities.Comment, error) {
	text, err := service.ValidateComment(text)
	if err != nil {
		return nil, err
	}

	release, err := m.acquire("comment:" + id)
	if err != nil {
		return nil, err
	}
	defer release()

	comment, err := m.api.AddComment(ctx, c, id, text, uuid.New().String())
	if err != nil {
		m.report("Could not add comment", err)
		return nil, err
	}

	m.p.ApplyComment(id, *comment)

	return comment, nil
}

func (m *Mutator) acquire(key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inflight[key]; ok {
		return nil, ErrInFlight
	}
	m.inflight[key] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
	}, nil
}

func (m *Mutator) report(msg string, err error) {
	log.WithError(err).Warn(msg)

	if m.n != nil {
		m.n.Notify(msg)
	}
}
