// Package entities contains main entities of service.
package entities

import (
	"time"
)

// Collection is a name of items collection.
type Collection string

const (
	// PostsCollection ...
	PostsCollection Collection = "posts"
	// ShortsCollection ...
	ShortsCollection Collection = "shorts"
)

// Collections lists every known collection.
var Collections = []Collection{PostsCollection, ShortsCollection} // nolint:gochecknoglobals

// Valid returns true if collection is known.
func (c Collection) Valid() bool {
	return c == PostsCollection || c == ShortsCollection
}

// User is an authenticated identity returned by auth provider.
type User struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// Profile ...
type Profile struct {
	ID            string
	DisplayName   string
	Email         string
	PhotoURL      string
	CoverImageURL string
	Bio           string
	CreatedAt     time.Time
}

// Author is a snapshot of profile fields captured when content is created.
type Author struct {
	ID     string
	Name   string
	Avatar string
}

// AuthorFromProfile ...
func AuthorFromProfile(p *Profile) Author {
	return Author{
		ID:     p.ID,
		Name:   p.DisplayName,
		Avatar: p.PhotoURL,
	}
}

// Comment ...
type Comment struct {
	ID        string
	Author    Author
	Text      string
	CreatedAt time.Time
}

// Item is a post or a short.
// Text holds post's text or short's caption, MediaURL holds post's image or short's video.
type Item struct {
	ID         string
	Collection Collection
	Author     Author
	Text       string
	MediaURL   string
	CreatedAt  time.Time
	LikedBy    []string
	Comments   []Comment
}

// IsLikedBy ...
func (i *Item) IsLikedBy(userID string) bool {
	for _, v := range i.LikedBy {
		if v == userID {
			return true
		}
	}

	return false
}

// Snapshot is a full, ordered result set of a collection at some moment.
type Snapshot struct {
	Collection Collection
	Seq        uint64
	Items      []*Item
}

// ToggleLike removes userID from likedBy if present or appends it otherwise.
// It returns new set and new membership. Input slice is not modified.
func ToggleLike(likedBy []string, userID string) ([]string, bool) {
	out := make([]string, 0, len(likedBy)+1)
	found := false

	for _, v := range likedBy {
		if v == userID {
			found = true
			continue
		}
		out = append(out, v)
	}

	if !found {
		out = append(out, userID)
	}

	return out, !found
}

// AppendComment returns comments with c appended. Input slice is not modified.
func AppendComment(comments []Comment, c Comment) []Comment {
	out := make([]Comment, len(comments), len(comments)+1)
	copy(out, comments)

	return append(out, c)
}
