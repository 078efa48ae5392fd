package client

import (
	"context"
	"sync"

	"github.com/Decentr-net/agora/internal/entities"
)

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

// AuthState is the current authentication state.
type AuthState struct {
	User    *entities.Profile
	Loading bool
}

// Decision is what a protected view should do.
type Decision int

const (
	// Block means nothing is rendered until the check completes.
	Block Decision = iota
	// Redirect means the user goes to LoginPath.
	Redirect
	// Render means the protected view is shown.
	Render
)

func (d Decision) String() string {
	switch d {
	case Block:
		return "block"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decide evaluates auth state.
func Decide(s AuthState) Decision {
	switch {
	case s.Loading:
		return Block
	case s.User == nil:
		return Redirect
	default:
		return Render
	}
}

// Session signs the current token in.
type Session interface {
	SignIn(ctx context.Context) (*entities.Profile, error)
}

// Gate guards protected views.
type Gate struct {
	s Session

	mu    sync.RWMutex
	state AuthState
}

// NewGate returns gate in loading state.
func NewGate(s Session) *Gate {
	return &Gate{
		s:     s,
		state: AuthState{Loading: true},
	}
}

// State ...
func (g *Gate) State() AuthState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state
}

// Decide evaluates current state.
func (g *Gate) Decide() Decision {
	return Decide(g.State())
}

// Resolve completes the check. Any failure is treated as no user.
func (g *Gate) Resolve(ctx context.Context) AuthState {
	p, err := g.s.SignIn(ctx)
	if err != nil {
		log.WithError(err).Debug("session check failed")
		p = nil
	}

	g.mu.Lock()
	g.state = AuthState{User: p}
	g.mu.Unlock()

	return g.State()
}

// SignedOut drops the user.
func (g *Gate) SignedOut() {
	g.mu.Lock()
	g.state = AuthState{}
	g.mu.Unlock()
}
