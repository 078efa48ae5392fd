package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Decentr-net/agora/internal/entities"
)

type sessionFunc func(ctx context.Context) (*entities.Profile, error)

func (f sessionFunc) SignIn(ctx context.Context) (*entities.Profile, error) {
	return f(ctx)
}

func TestDecide(t *testing.T) {
	tt := []struct {
		name  string
		state AuthState
		want  Decision
	}{
		{name: "loading", state: AuthState{Loading: true}, want: Block},
		{name: "loading with user", state: AuthState{Loading: true, User: &entities.Profile{}}, want: Block},
		{name: "no user", state: AuthState{}, want: Redirect},
		{name: "user", state: AuthState{User: &entities.Profile{ID: "1"}}, want: Render},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.state))
		})
	}
}

func TestGate(t *testing.T) {
	p := &entities.Profile{ID: "1"}

	g := NewGate(sessionFunc(func(context.Context) (*entities.Profile, error) {
		return p, nil
	}))

	assert.Equal(t, Block, g.Decide())

	assert.Equal(t, AuthState{User: p}, g.Resolve(context.Background()))
	assert.Equal(t, Render, g.Decide())

	g.SignedOut()
	assert.Equal(t, Redirect, g.Decide())
}

func TestGate_Failure(t *testing.T) {
	calls := 0
	g := NewGate(sessionFunc(func(context.Context) (*entities.Profile, error) {
		calls++
		return nil, errors.New("network")
	}))

	assert.Equal(t, AuthState{}, g.Resolve(context.Background()))
	assert.Equal(t, Redirect, g.Decide())
	assert.Equal(t, 1, calls)
	assert.Equal(t, "redirect", g.Decide().String())
}
