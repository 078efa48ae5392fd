// Package auth contains an interface of identity provider.
package auth

import (
	"context"
	"errors"

	"github.com/Decentr-net/agora/internal/entities"
)

//go:generate mockgen -destination=./mock/auth.go -package=mock -source=auth.go

// ErrUnauthorized is returned when token is missing, invalid or expired.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves users by access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entities.User, error)
	SignOut(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}
