// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/storage"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

var (
	// ErrNotFound is returned when requested item or profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProfileRequired is returned when user acts before the first sign in.
	ErrProfileRequired = errors.New("profile is required, sign in first")
	// ErrForbidden is returned when user tries to modify someone else's content.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateSubmission is returned when the same submission is already in flight.
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// ValidationError is returned when input is rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// File is an uploaded file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageKind is a kind of profile image.
type ImageKind string

const (
	// AvatarImage ...
	AvatarImage ImageKind = "avatar"
	// CoverImage ...
	CoverImage ImageKind = "cover"
)

// Notifier is notified when collection is changed.
type Notifier interface {
	Notify(ctx context.Context, c entities.Collection) error
}

// Service ...
type Service interface {
	// SignIn creates profile on the first sign in and returns stored profile.
	SignIn(ctx context.Context, u *entities.User) (*entities.Profile, error)
	GetProfile(ctx context.Context, id string) (*entities.Profile, error)
	UpdateProfile(ctx context.Context, id string, p *storage.UpdateProfileParams) (*entities.Profile, error)
	SetProfileImage(ctx context.Context, id string, kind ImageKind, f *File) (*entities.Profile, error)

	CreatePost(ctx context.Context, userID string, text string, image *File) (*entities.Item, error)
	CreateShort(ctx context.Context, userID string, caption string, video *File) (*entities.Item, error)
	GetItem(ctx context.Context, c entities.Collection, id string) (*entities.Item, error)
	ListItems(ctx context.Context, p *storage.ListItemsParams) ([]*entities.Item, error)
	DeleteItem(ctx context.Context, c entities.Collection, id string, requestedBy string) error

	ToggleLike(ctx context.Context, c entities.Collection, id string, userID string) (bool, error)
	AddComment(ctx context.Context, c entities.Collection, id string, userID string, text string, idempotencyKey string) (*entities.Comment, error)
}
