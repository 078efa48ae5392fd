// Package blob contains an interface of remote blob storage.
package blob

import (
	"context"
	"errors"
	"io"
)

//go:generate mockgen -destination=./mock/blob.go -package=mock -source=blob.go

// ErrForeignURL is returned when url does not belong to the store.
var ErrForeignURL = errors.New("url does not belong to the store")

// Store writes bytes by key and resolves public urls.
type Store interface {
	// Put writes body by key and returns publicly fetchable url.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// Delete removes blob by its public url.
	Delete(ctx context.Context, url string) error
	Ping(ctx context.Context) error
}
