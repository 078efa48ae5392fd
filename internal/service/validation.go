package service

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxPostTextLength ...
	MaxPostTextLength = 500
	// MaxCaptionLength ...
	MaxCaptionLength = 150
	// MaxCommentLength ...
	MaxCommentLength = 500
	// MaxDisplayNameLength ...
	MaxDisplayNameLength = 50
	// MaxBioLength ...
	MaxBioLength = 300
)

// NoVideoMessage is a message of short validation failure without video.
const NoVideoMessage = "no video selected or recorded"

// ValidatePost checks post's text and returns trimmed text.
func ValidatePost(text string) (string, error) {
	text = strings.TrimSpace(text)

	if text == "" {
		return "", &ValidationError{Field: "text", Message: "Post cannot be empty."}
	}

	if utf8.RuneCountInString(text) > MaxPostTextLength {
		return "", &ValidationError{Field: "text", Message: "Post can't exceed 500 characters."}
	}

	return text, nil
}

// ValidateShort checks short's caption and video presence and returns trimmed caption.
func ValidateShort(caption string, videoSize int64) (string, error) {
	caption = strings.TrimSpace(caption)

	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return "", &ValidationError{Field: "caption", Message: "Caption can't exceed 150 characters."}
	}

	if videoSize <= 0 {
		return "", &ValidationError{Field: "video", Message: NoVideoMessage}
	}

	return caption, nil
}

// ValidateComment checks comment's text and returns trimmed text.
func ValidateComment(text string) (string, error) {
	text = strings.TrimSpace(text)

	if text == "" {
		return "", &ValidationError{Field: "text", Message: "Comment cannot be empty."}
	}

	if utf8.RuneCountInString(text) > MaxCommentLength {
		return "", &ValidationError{Field: "text", Message: "Comment can't exceed 500 characters."}
	}

	return text, nil
}

// ValidateDisplayName ...
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", &ValidationError{Field: "displayName", Message: "Display name cannot be empty."}
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", &ValidationError{Field: "displayName", Message: "Display name can't exceed 50 characters."}
	}

	return name, nil
}

// ValidateBio ...
func ValidateBio(bio string) (string, error) {
	bio = strings.TrimSpace(bio)

	if utf8.RuneCountInString(bio) > MaxBioLength {
		return "", &ValidationError{Field: "bio", Message: "Bio can't exceed 300 characters."}
	}

	return bio, nil
}

// ValidateMedia checks that content type belongs to expected media family, e.g. "image".
func ValidateMedia(field, family string, f *File) error {
	if f.ContentType != "" && !strings.HasPrefix(f.ContentType, family+"/") {
		return &ValidationError{Field: field, Message: "Only " + family + " files are allowed."}
	}

	return nil
}

// UploadKey builds blob key of uploaded file: {folder}/{userID}/{unix millis}_{file name}.
func UploadKey(folder, userID string, t time.Time, name string) string {
	return fmt.Sprintf("%s/%s/%d_%s", folder, userID, t.UnixNano()/int64(time.Millisecond), sanitizeFileName(name))
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}

	return name
}
