// Package impl is implementation of service interface.
package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/blob"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/inflight"
	"github.com/Decentr-net/agora/internal/metrics"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/storage"
)

var log = logrus.WithField("layer", "service").WithField("package", "impl")

// DefaultDedupTTL is a window while the same idempotency key is rejected.
const DefaultDedupTTL = time.Minute

const (
	postsFolder   = "posts"
	shortsFolder  = "shorts"
	avatarsFolder = "avatars"
	coversFolder  = "covers"
)

// service ...
type srv struct {
	s storage.Storage
	b blob.Store
	g inflight.Guard
	n service.Notifier

	now      func() time.Time
	dedupTTL time.Duration
}

// New creates new instance of service.
// Guard and notifier are optional.
func New(s storage.Storage, b blob.Store, g inflight.Guard, n service.Notifier) service.Service {
	return srv{
		s:        s,
		b:        b,
		g:        g,
		n:        n,
		now:      func() time.Time { return time.Now().UTC() },
		dedupTTL: DefaultDedupTTL,
	}
}

func (s srv) SignIn(ctx context.Context, u *entities.User) (*entities.Profile, error) {
	if err := s.s.CreateProfile(ctx, &entities.Profile{
		ID:          u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create profile on storage side: %w", err)
	}

	return s.GetProfile(ctx, u.ID)
}

func (s srv) GetProfile(ctx context.Context, id string) (*entities.Profile, error) {
	p, err := s.s.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile on storage side: %w", err)
	}

	return p, nil
}

func (s srv) UpdateProfile(ctx context.Context, id string, p *storage.UpdateProfileParams) (*entities.Profile, error) {
	params := *p

	if params.DisplayName != nil {
		v, err := service.ValidateDisplayName(*params.DisplayName)
		if err != nil {
			return nil, err
		}
		params.DisplayName = &v
	}

	if params.Bio != nil {
		v, err := service.ValidateBio(*params.Bio)
		if err != nil {
			return nil, err
		}
		params.Bio = &v
	}

	out, err := s.s.UpdateProfile(ctx, id, &params)
	metrics.ObserveMutation("profile", err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile on storage side: %w", err)
	}

	return out, nil
}

func (s srv) SetProfileImage(ctx context.Context, id string, kind service.ImageKind, f *service.File) (*entities.Profile, error) {
	if err := service.ValidateMedia(string(kind), "image", f); err != nil {
		return nil, err
	}

	old, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		params  storage.UpdateProfileParams
		folder  string
		prevURL string
	)

	switch kind {
	case service.AvatarImage:
		folder, prevURL = avatarsFolder, old.PhotoURL
	case service.CoverImage:
		folder, prevURL = coversFolder, old.CoverImageURL
	default:
		return nil, &service.ValidationError{Field: "kind", Message: "Unknown image kind."}
	}

	url, err := s.upload(ctx, folder, id, f)
	if err != nil {
		return nil, err
	}

	if kind == service.AvatarImage {
		params.PhotoURL = &url
	} else {
		params.CoverImageURL = &url
	}

	p, err := s.s.UpdateProfile(ctx, id, &params)
	metrics.ObserveMutation("profile", err)
	if err != nil {
		s.deleteBlob(ctx, url)
		return nil, fmt.Errorf("failed to update profile on storage side: %w", err)
	}

	if prevURL != "" {
		s.deleteBlob(ctx, prevURL)
	}

	return p, nil
}

func (s srv) CreatePost(ctx context.Context, userID string, text string, image *service.File) (*entities.Item, error) {
	text, err := service.ValidatePost(text)
	if err != nil {
		return nil, err
	}

	if image != nil {
		if err := service.ValidateMedia("image", "image", image); err != nil {
			return nil, err
		}
	}

	return s.createItem(ctx, entities.PostsCollection, userID, text, postsFolder, image)
}

func (s srv) CreateShort(ctx context.Context, userID string, caption string, video *service.File) (*entities.Item, error) {
	var size int64
	if video != nil {
		size = video.Size
	}

	caption, err := service.ValidateShort(caption, size)
	if err != nil {
		return nil, err
	}

	if err := service.ValidateMedia("video", "video", video); err != nil {
		return nil, err
	}

	return s.createItem(ctx, entities.ShortsCollection, userID, caption, shortsFolder, video)
}

func (s srv) createItem(ctx context.Context, c entities.Collection, userID, text, folder string, f *service.File) (*entities.Item, error) {
	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	var mediaURL string
	if f != nil {
		if mediaURL, err = s.upload(ctx, folder, userID, f); err != nil {
			return nil, err
		}
	}

	p := &storage.CreateItemParams{
		ID:         uuid.New().String(),
		Collection: c,
		Author:     author,
		Text:       text,
		MediaURL:   mediaURL,
		CreatedAt:  s.now(),
	}

	err = s.s.CreateItem(ctx, p)
	metrics.ObserveMutation("create_"+string(c), err)
	if err != nil {
		if mediaURL != "" {
			s.deleteBlob(ctx, mediaURL)
		}
		return nil, fmt.Errorf("failed to create item on storage side: %w", err)
	}

	s.notify(ctx, c)

	return &entities.Item{
		ID:         p.ID,
		Collection: c,
		Author:     author,
		Text:       text,
		MediaURL:   mediaURL,
		CreatedAt:  p.CreatedAt,
		LikedBy:    []string{},
		Comments:   []entities.Comment{},
	}, nil
}

func (s srv) GetItem(ctx context.Context, c entities.Collection, id string) (*entities.Item, error) {
	i, err := s.s.GetItem(ctx, c, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item on storage side: %w", err)
	}

	return i, nil
}

func (s srv) ListItems(ctx context.Context, p *storage.ListItemsParams) ([]*entities.Item, error) {
	items, err := s.s.ListItems(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to list items on storage side: %w", err)
	}

	return items, nil
}

func (s srv) DeleteItem(ctx context.Context, c entities.Collection, id string, requestedBy string) error {
	i, err := s.GetItem(ctx, c, id)
	if err != nil {
		return err
	}

	if i.Author.ID != requestedBy {
		return service.ErrForbidden
	}

	err = s.s.DeleteItem(ctx, c, id, s.now())
	metrics.ObserveMutation("delete_"+string(c), err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return service.ErrNotFound
		}
		return fmt.Errorf("failed to delete item on storage side: %w", err)
	}

	if i.MediaURL != "" {
		s.deleteBlob(ctx, i.MediaURL)
	}

	s.notify(ctx, c)

	return nil
}

func (s srv) ToggleLike(ctx context.Context, c entities.Collection, id string, userID string) (bool, error) {
	liked, err := s.s.ToggleLike(ctx, c, id, userID, s.now())
	metrics.ObserveMutation("like", err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, service.ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle like on storage side: %w", err)
	}

	s.notify(ctx, c)

	return liked, nil
}

func (s srv) AddComment(ctx context.Context, c entities.Collection, id string, userID string, text string,
	idempotencyKey string) (*entities.Comment, error) {
	text, err := service.ValidateComment(text)
	if err != nil {
		return nil, err
	}

	var key string
	if idempotencyKey != "" && s.g != nil {
		key = fmt.Sprintf("comment:%s:%s", userID, idempotencyKey)

		ok, err := s.g.Acquire(ctx, key, s.dedupTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire submission: %w", err)
		}

		if !ok {
			return nil, service.ErrDuplicateSubmission
		}
	}

	comment, err := s.addComment(ctx, c, id, userID, text)
	if err != nil && key != "" {
		if err := s.g.Release(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Error("failed to release submission")
		}
	}

	return comment, err
}

func (s srv) addComment(ctx context.Context, c entities.Collection, id string, userID string, text string) (*entities.Comment, error) {
	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := &entities.Comment{
		ID:        uuid.New().String(),
		Author:    author,
		Text:      text,
		CreatedAt: s.now(),
	}

	err = s.s.AddComment(ctx, c, id, comment)
	metrics.ObserveMutation("comment", err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to add comment on storage side: %w", err)
	}

	s.notify(ctx, c)

	return comment, nil
}

// author returns snapshot of user's profile.
func (s srv) author(ctx context.Context, userID string) (entities.Author, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return entities.Author{}, service.ErrProfileRequired
		}
		return entities.Author{}, err
	}

	return entities.AuthorFromProfile(p), nil
}

func (s srv) upload(ctx context.Context, folder, userID string, f *service.File) (string, error) {
	key := service.UploadKey(folder, userID, s.now(), f.Name)
	body := &countingReader{r: f.Body}

	url, err := s.b.Put(ctx, key, body, f.ContentType)
	metrics.UploadedBytes.WithLabelValues(folder).Add(float64(body.n))
	if err != nil {
		return "", fmt.Errorf("failed to put blob: %w", err)
	}

	log.WithFields(logrus.Fields{
		"key":  key,
		"size": body.n,
	}).Debug("file uploaded")

	return url, nil
}

func (s srv) deleteBlob(ctx context.Context, url string) {
	if err := s.b.Delete(ctx, url); err != nil {
		if errors.Is(err, blob.ErrForeignURL) {
			log.WithField("url", url).Debug("skip deleting foreign blob")
			return
		}
		log.WithError(err).WithField("url", url).Error("failed to delete blob")
	}
}

func (s srv) notify(ctx context.Context, c entities.Collection) {
	if s.n == nil {
		return
	}

	if err := s.n.Notify(ctx, c); err != nil {
		log.WithError(err).WithField("collection", c).Error("failed to notify about changes")
	}
}

// countingReader counts bytes actually read by uploader.
type countingReader struct {
	r io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)

	return n, err
}
