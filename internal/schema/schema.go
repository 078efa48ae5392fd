// Package schema contains http api models shared by server and client.
package schema

import (
	"time"

	"github.com/Decentr-net/agora/internal/entities"
)

// Profile ...
// swagger:model
type Profile struct {
	UID           string    `json:"uid"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	PhotoURL      string    `json:"photoURL"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UpdateProfileRequest contains fields to be changed; omitted fields stay untouched.
// swagger:model
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// Comment ...
// swagger:model
type Comment struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateCommentRequest ...
// swagger:model
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// LikeResponse ...
// swagger:model
type LikeResponse struct {
	Liked bool `json:"liked"`
}

// Post ...
// swagger:model
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Text         string    `json:"text"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LikedBy      []string  `json:"likedBy"`
	Comments     []Comment `json:"comments"`
}

// Short ...
// swagger:model
type Short struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	VideoURL     string    `json:"videoUrl"`
	Caption      string    `json:"caption"`
	CreatedAt    time.Time `json:"createdAt"`
	LikedBy      []string  `json:"likedBy"`
	Comments     []Comment `json:"comments"`
}

// Items holds items of one collection, only the field of that collection is set.
// swagger:model
type Items struct {
	Posts  []Post  `json:"posts,omitempty"`
	Shorts []Short `json:"shorts,omitempty"`
}

// Snapshot is a websocket message with full collection contents.
// Error is set in the last message of terminated subscription.
// swagger:model
type Snapshot struct {
	Collection entities.Collection `json:"collection"`
	Seq        uint64              `json:"seq,omitempty"`
	Items
	Error string `json:"error,omitempty"`
}

// ToProfile ...
func ToProfile(p *entities.Profile) Profile {
	return Profile{
		UID:           p.ID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		PhotoURL:      p.PhotoURL,
		CoverImageURL: p.CoverImageURL,
		Bio:           p.Bio,
		CreatedAt:     p.CreatedAt,
	}
}

// Entity ...
func (p Profile) Entity() *entities.Profile {
	return &entities.Profile{
		ID:            p.UID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		PhotoURL:      p.PhotoURL,
		CoverImageURL: p.CoverImageURL,
		Bio:           p.Bio,
		CreatedAt:     p.CreatedAt,
	}
}

// ToComment ...
func ToComment(c entities.Comment) Comment {
	return Comment{
		ID:           c.ID,
		AuthorID:     c.Author.ID,
		AuthorName:   c.Author.Name,
		AuthorAvatar: c.Author.Avatar,
		Text:         c.Text,
		CreatedAt:    c.CreatedAt,
	}
}

// Entity ...
func (c Comment) Entity() entities.Comment {
	return entities.Comment{
		ID:        c.ID,
		Author:    entities.Author{ID: c.AuthorID, Name: c.AuthorName, Avatar: c.AuthorAvatar},
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// ToPost ...
func ToPost(i *entities.Item) Post {
	return Post{
		ID:           i.ID,
		AuthorID:     i.Author.ID,
		AuthorName:   i.Author.Name,
		AuthorAvatar: i.Author.Avatar,
		Text:         i.Text,
		ImageURL:     i.MediaURL,
		CreatedAt:    i.CreatedAt,
		LikedBy:      likedBy(i.LikedBy),
		Comments:     toComments(i.Comments),
	}
}

// Entity ...
func (p Post) Entity() *entities.Item {
	return &entities.Item{
		ID:         p.ID,
		Collection: entities.PostsCollection,
		Author:     entities.Author{ID: p.AuthorID, Name: p.AuthorName, Avatar: p.AuthorAvatar},
		Text:       p.Text,
		MediaURL:   p.ImageURL,
		CreatedAt:  p.CreatedAt,
		LikedBy:    likedBy(p.LikedBy),
		Comments:   fromComments(p.Comments),
	}
}

// ToShort ...
func ToShort(i *entities.Item) Short {
	return Short{
		ID:           i.ID,
		AuthorID:     i.Author.ID,
		AuthorName:   i.Author.Name,
		AuthorAvatar: i.Author.Avatar,
		VideoURL:     i.MediaURL,
		Caption:      i.Text,
		CreatedAt:    i.CreatedAt,
		LikedBy:      likedBy(i.LikedBy),
		Comments:     toComments(i.Comments),
	}
}

// Entity ...
func (s Short) Entity() *entities.Item {
	return &entities.Item{
		ID:         s.ID,
		Collection: entities.ShortsCollection,
		Author:     entities.Author{ID: s.AuthorID, Name: s.AuthorName, Avatar: s.AuthorAvatar},
		Text:       s.Caption,
		MediaURL:   s.VideoURL,
		CreatedAt:  s.CreatedAt,
		LikedBy:    likedBy(s.LikedBy),
		Comments:   fromComments(s.Comments),
	}
}

// NewItems converts items of collection c.
func NewItems(c entities.Collection, items []*entities.Item) Items {
	var out Items

	switch c {
	case entities.PostsCollection:
		out.Posts = make([]Post, len(items))
		for i, v := range items {
			out.Posts[i] = ToPost(v)
		}
	case entities.ShortsCollection:
		out.Shorts = make([]Short, len(items))
		for i, v := range items {
			out.Shorts[i] = ToShort(v)
		}
	}

	return out
}

// Entities converts items back, the result is never nil.
func (i Items) Entities() []*entities.Item {
	out := make([]*entities.Item, 0, len(i.Posts)+len(i.Shorts))

	for _, v := range i.Posts {
		out = append(out, v.Entity())
	}

	for _, v := range i.Shorts {
		out = append(out, v.Entity())
	}

	return out
}

// NewSnapshot ...
func NewSnapshot(s *entities.Snapshot) Snapshot {
	return Snapshot{
		Collection: s.Collection,
		Seq:        s.Seq,
		Items:      NewItems(s.Collection, s.Items),
	}
}

// Entity ...
func (s Snapshot) Entity() *entities.Snapshot {
	return &entities.Snapshot{
		Collection: s.Collection,
		Seq:        s.Seq,
		Items:      s.Items.Entities(),
	}
}

func likedBy(v []string) []string {
	if v == nil {
		return []string{}
	}

	return v
}

func toComments(v []entities.Comment) []Comment {
	out := make([]Comment, len(v))
	for i := range v {
		out[i] = ToComment(v[i])
	}

	return out
}

func fromComments(v []Comment) []entities.Comment {
	out := make([]entities.Comment, len(v))
	for i := range v {
		out[i] = v[i].Entity()
	}

	return out
}
