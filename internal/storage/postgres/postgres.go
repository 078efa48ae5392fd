// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")

const invalidTextRepresentation = "22P02"

type pg struct {
	ext sqlx.ExtContext
}

type profileDTO struct {
	ID            string    `db:"id"`
	DisplayName   string    `db:"display_name"`
	Email         string    `db:"email"`
	PhotoURL      string    `db:"photo_url"`
	CoverImageURL string    `db:"cover_image_url"`
	Bio           string    `db:"bio"`
	CreatedAt     time.Time `db:"created_at"`
}

type itemDTO struct {
	ID           string    `db:"id"`
	Collection   string    `db:"collection"`
	AuthorID     string    `db:"author_id"`
	AuthorName   string    `db:"author_name"`
	AuthorAvatar string    `db:"author_avatar"`
	Text         string    `db:"text"`
	MediaURL     string    `db:"media_url"`
	CreatedAt    time.Time `db:"created_at"`
}

type likeDTO struct {
	ItemID string `db:"item_id"`
	UserID string `db:"user_id"`
}

type commentDTO struct {
	ID           string    `db:"id"`
	ItemID       string    `db:"item_id"`
	AuthorID     string    `db:"author_id"`
	AuthorName   string    `db:"author_name"`
	AuthorAvatar string    `db:"author_avatar"`
	Text         string    `db:"text"`
	CreatedAt    time.Time `db:"created_at"`
}

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func (s pg) Ping(ctx context.Context) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return nil
	}

	return db.PingContext(ctx)
}

// inReadTx runs f within read-only repeatable read transaction, so all queries made by f see the same state.
func (s pg) inReadTx(ctx context.Context, f func(s pg) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return f(s)
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

// InTx runs f within read committed transaction. Nested calls reuse the outer transaction.
func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	return s.inTx(ctx, func(s pg) error {
		return f(s)
	})
}

func (s pg) inTx(ctx context.Context, f func(s pg) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return f(s)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) CreateProfile(ctx context.Context, p *entities.Profile) error {
	profile := profileDTO{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		PhotoURL:      p.PhotoURL,
		CoverImageURL: p.CoverImageURL,
		Bio:           p.Bio,
		CreatedAt:     p.CreatedAt.UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO profile(id, display_name, email, photo_url, cover_image_url, bio, created_at)
			VALUES(:id, :display_name, :email, :photo_url, :cover_image_url, :bio, :created_at)
			ON CONFLICT(id) DO NOTHING
		`, profile,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetProfile(ctx context.Context, id string) (*entities.Profile, error) {
	var p profileDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT id, display_name, email, photo_url, cover_image_url, bio, created_at
			FROM profile
			WHERE id = $1
		`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toProfile(&p), nil
}

func (s pg) UpdateProfile(ctx context.Context, id string, p *storage.UpdateProfileParams) (*entities.Profile, error) {
	var out profileDTO

	if err := sqlx.GetContext(ctx, s.ext, &out, `
			UPDATE profile SET
				display_name = COALESCE($2, display_name),
				photo_url = COALESCE($3, photo_url),
				cover_image_url = COALESCE($4, cover_image_url),
				bio = COALESCE($5, bio)
			WHERE id = $1
			RETURNING id, display_name, email, photo_url, cover_image_url, bio, created_at
		`,
		id, p.DisplayName, p.PhotoURL, p.CoverImageURL, p.Bio,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toProfile(&out), nil
}

func (s pg) CreateItem(ctx context.Context, p *storage.CreateItemParams) error {
	item := itemDTO{
		ID:           p.ID,
		Collection:   string(p.Collection),
		AuthorID:     p.Author.ID,
		AuthorName:   p.Author.Name,
		AuthorAvatar: p.Author.Avatar,
		Text:         p.Text,
		MediaURL:     p.MediaURL,
		CreatedAt:    p.CreatedAt.UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO item(id, collection, author_id, author_name, author_avatar, text, media_url, created_at)
			VALUES(:id, :collection, :author_id, :author_name, :author_avatar, :text, :media_url, :created_at)
		`, item,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetItem(ctx context.Context, c entities.Collection, id string) (*entities.Item, error) {
	var out *entities.Item

	if err := s.inReadTx(ctx, func(s pg) error {
		var i itemDTO

		if err := sqlx.GetContext(ctx, s.ext, &i, `
				SELECT id, collection, author_id, author_name, author_avatar, text, media_url, created_at
				FROM item
				WHERE id = $1 AND collection = $2 AND deleted_at IS NULL
			`, id, string(c),
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
				return storage.ErrNotFound
			}

			return fmt.Errorf("failed to query: %w", err)
		}

		items, err := s.fillItems(ctx, []*itemDTO{&i})
		if err != nil {
			return err
		}

		out = items[0]

		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (s pg) ListItems(ctx context.Context, p *storage.ListItemsParams) ([]*entities.Item, error) {
	conditions := []string{"collection = $1", "deleted_at IS NULL"}
	args := []interface{}{string(p.Collection)}

	if p.AuthorID != nil {
		args = append(args, *p.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}

	if p.After != nil {
		args = append(args, *p.After)
		conditions = append(conditions, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM item WHERE id = $%d)", len(args),
		))
	}

	query := fmt.Sprintf(`
		SELECT id, collection, author_id, author_name, author_avatar, text, media_url, created_at
		FROM item
		WHERE %s
		ORDER BY created_at DESC, id DESC
	`, strings.Join(conditions, " AND "))

	if p.Limit > 0 {
		query += fmt.Sprintf("LIMIT %d", p.Limit)
	}

	var out []*entities.Item

	if err := s.inReadTx(ctx, func(s pg) error {
		var items []*itemDTO

		if err := sqlx.SelectContext(ctx, s.ext, &items, query, args...); err != nil {
			if isInvalidID(err) {
				return storage.ErrNotFound
			}

			return fmt.Errorf("failed to query: %w", err)
		}

		var err error
		out, err = s.fillItems(ctx, items)

		return err
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// fillItems loads likes and comments of items and converts them to entities keeping the order.
func (s pg) fillItems(ctx context.Context, items []*itemDTO) ([]*entities.Item, error) {
	out := make([]*entities.Item, len(items))
	if len(items) == 0 {
		return out, nil
	}

	ids := make([]string, len(items))
	m := make(map[string]*entities.Item, len(items))

	for i, v := range items {
		ids[i] = v.ID
		out[i] = &entities.Item{
			ID:         v.ID,
			Collection: entities.Collection(v.Collection),
			Author: entities.Author{
				ID:     v.AuthorID,
				Name:   v.AuthorName,
				Avatar: v.AuthorAvatar,
			},
			Text:      v.Text,
			MediaURL:  v.MediaURL,
			CreatedAt: v.CreatedAt,
			LikedBy:   []string{},
			Comments:  []entities.Comment{},
		}
		m[v.ID] = out[i]
	}

	var likes []likeDTO
	if err := sqlx.SelectContext(ctx, s.ext, &likes, `
			SELECT item_id, user_id FROM "like"
			WHERE item_id = ANY($1::uuid[])
			ORDER BY liked_at, user_id
		`, pq.Array(ids),
	); err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}

	for _, v := range likes {
		if i, ok := m[v.ItemID]; ok {
			i.LikedBy = append(i.LikedBy, v.UserID)
		}
	}

	var comments []commentDTO
	if err := sqlx.SelectContext(ctx, s.ext, &comments, `
			SELECT id, item_id, author_id, author_name, author_avatar, text, created_at FROM comment
			WHERE item_id = ANY($1::uuid[])
			ORDER BY created_at, seq
		`, pq.Array(ids),
	); err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	for _, v := range comments {
		if i, ok := m[v.ItemID]; ok {
			i.Comments = append(i.Comments, entities.Comment{
				ID: v.ID,
				Author: entities.Author{
					ID:     v.AuthorID,
					Name:   v.AuthorName,
					Avatar: v.AuthorAvatar,
				},
				Text:      v.Text,
				CreatedAt: v.CreatedAt,
			})
		}
	}

	return out, nil
}

func (s pg) DeleteItem(ctx context.Context, c entities.Collection, id string, timestamp time.Time) error {
	res, err := s.ext.ExecContext(ctx,
		`UPDATE item SET deleted_at=$3 WHERE id=$1 AND collection=$2 AND deleted_at IS NULL`,
		id, string(c), timestamp.UTC(),
	)

	if err != nil {
		if isInvalidID(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) ToggleLike(ctx context.Context, c entities.Collection, id string, userID string, timestamp time.Time) (bool, error) {
	var liked bool

	err := s.inTx(ctx, func(tx pg) error {
		// item row lock serializes toggles of the item, so every statement below sees the previous toggle
		var target string
		if err := sqlx.GetContext(ctx, tx.ext, &target,
			`SELECT id FROM item WHERE id = $1 AND collection = $2 AND deleted_at IS NULL FOR UPDATE`,
			id, string(c),
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("failed to lock item: %w", err)
		}

		res, err := tx.ext.ExecContext(ctx, `DELETE FROM "like" WHERE item_id = $1 AND user_id = $2`, target, userID)
		if err != nil {
			return fmt.Errorf("failed to delete like: %w", err)
		}

		if n, _ := res.RowsAffected(); n > 0 {
			liked = false
			return nil
		}

		if _, err := tx.ext.ExecContext(ctx,
			`INSERT INTO "like"(item_id, user_id, liked_at) VALUES($1, $2, $3)`,
			target, userID, timestamp.UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert like: %w", err)
		}

		liked = true
		return nil
	})

	if err != nil {
		if isInvalidID(err) {
			return false, storage.ErrNotFound
		}
		return false, err
	}

	return liked, nil
}

func (s pg) AddComment(ctx context.Context, c entities.Collection, itemID string, comment *entities.Comment) error {
	res, err := s.ext.ExecContext(ctx, `
			INSERT INTO comment(id, item_id, author_id, author_name, author_avatar, text, created_at)
			SELECT $1, id, $4, $5, $6, $7, $8 FROM item
			WHERE id = $2 AND collection = $3 AND deleted_at IS NULL
		`,
		comment.ID, itemID, string(c),
		comment.Author.ID, comment.Author.Name, comment.Author.Avatar,
		comment.Text, comment.CreatedAt.UTC(),
	)

	if err != nil {
		if isInvalidID(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func toProfile(p *profileDTO) *entities.Profile {
	return &entities.Profile{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		PhotoURL:      p.PhotoURL,
		CoverImageURL: p.CoverImageURL,
		Bio:           p.Bio,
		CreatedAt:     p.CreatedAt,
	}
}

// isInvalidID returns true if postgres failed to parse uuid.
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
