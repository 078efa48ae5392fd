package capture

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileDevice provides a file or a named pipe as a camera with a single video track.
type FileDevice struct {
	Path string
	// ContentType is detected by extension when empty.
	ContentType string
}

// Request opens the file.
func (d FileDevice) Request(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermission, err.Error())
		}
		return nil, fmt.Errorf("failed to open %s: %w", d.Path, err)
	}

	return &fileStream{
		File:        f,
		contentType: d.contentType(),
		track:       &fileTrack{f: f},
	}, nil
}

// nolint:gochecknoglobals
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func (d FileDevice) contentType() string {
	if d.ContentType != "" {
		return d.ContentType
	}

	ext := strings.ToLower(filepath.Ext(d.Path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "video/webm"
}

type fileStream struct {
	*os.File
	contentType string
	track       *fileTrack
}

func (s *fileStream) ContentType() string {
	return s.contentType
}

func (s *fileStream) Tracks() []Track {
	return []Track{s.track}
}

type fileTrack struct {
	f    *os.File
	once sync.Once
}

func (t *fileTrack) Kind() string {
	return "video"
}

func (t *fileTrack) Stop() {
	t.once.Do(func() {
		if err := t.f.Close(); err != nil {
			log.WithError(err).Debug("failed to close device file")
		}
	})
}
