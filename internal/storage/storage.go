// Package storage contains a storage interface.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Decentr-net/agora/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// ErrNotFound ...
var ErrNotFound = fmt.Errorf("not found")

// Storage provides methods for interacting with database.
type Storage interface {
	CreateProfile(ctx context.Context, p *entities.Profile) error
	GetProfile(ctx context.Context, id string) (*entities.Profile, error)
	UpdateProfile(ctx context.Context, id string, p *UpdateProfileParams) (*entities.Profile, error)

	CreateItem(ctx context.Context, p *CreateItemParams) error
	GetItem(ctx context.Context, c entities.Collection, id string) (*entities.Item, error)
	ListItems(ctx context.Context, p *ListItemsParams) ([]*entities.Item, error)
	DeleteItem(ctx context.Context, c entities.Collection, id string, timestamp time.Time) error

	// ToggleLike atomically removes user's like if it exists or adds it otherwise.
	// It returns true if item is liked by user after the call.
	ToggleLike(ctx context.Context, c entities.Collection, id string, userID string, timestamp time.Time) (bool, error)
	AddComment(ctx context.Context, c entities.Collection, itemID string, comment *entities.Comment) error

	// InTx runs f within a transaction, everything f does is committed or rolled back together.
	InTx(ctx context.Context, f func(s Storage) error) error

	Ping(ctx context.Context) error
}

// ListItemsParams ...
type ListItemsParams struct {
	Collection entities.Collection
	// Limit 0 means no limit.
	Limit    uint16
	AuthorID *string
	// After sets not-including bound by item id.
	After *string
}

// CreateItemParams ...
type CreateItemParams struct {
	ID         string
	Collection entities.Collection
	Author     entities.Author
	Text       string
	MediaURL   string
	CreatedAt  time.Time
}

// UpdateProfileParams contains fields to be updated; nil fields stay untouched.
type UpdateProfileParams struct {
	DisplayName   *string
	PhotoURL      *string
	CoverImageURL *string
	Bio           *string
}
