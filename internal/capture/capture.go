// Package capture contains camera capture state machine which records device stream into a local blob.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("layer", "capture").WithField("package", "capture")

const chunkSize = 32 * 1024

var (
	// ErrPermission is returned by Device when access is not granted.
	ErrPermission = errors.New("permission denied")
	// ErrDenied is returned when capture is disabled after permission denial.
	ErrDenied = errors.New("camera access denied, capture is disabled")
	// ErrInvalidState is returned when action is not allowed in current state.
	ErrInvalidState = errors.New("invalid capture state")
	// ErrReleased is returned by Stop when session was left while recording was finalizing.
	ErrReleased = errors.New("device released during stop")
)

// State is a state of capture session.
type State int

const (
	// Idle ...
	Idle State = iota
	// PermissionRequested ...
	PermissionRequested
	// Ready means device stream is acquired.
	Ready
	// Denied is terminal.
	Denied
	// Recording ...
	Recording
	// Stopped means recording is finalized into a blob.
	Stopped
	// Stopping means recorder is finishing pending read.
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PermissionRequested:
		return "permission-requested"
	case Ready:
		return "ready"
	case Denied:
		return "denied"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Track is an acquired device track.
type Track interface {
	Kind() string
	Stop()
}

// Stream is an acquired device stream, reading it yields recorded data.
type Stream interface {
	io.Reader
	ContentType() string
	Tracks() []Track
}

// Device gives access to camera stream.
type Device interface {
	Request(ctx context.Context) (Stream, error)
}

// Blob is a finalized recording stored in a local file.
type Blob struct {
	Path        string
	Size        int64
	ContentType string
	// URL is a locally previewable url of the blob.
	URL string
}

// Open ...
func (b *Blob) Open() (*os.File, error) {
	return os.Open(b.Path)
}

// Remove deletes local file.
func (b *Blob) Remove() error {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}

	return nil
}

// acquired owns a device stream and stops its tracks once.
type acquired struct {
	Stream
	once sync.Once
}

func (a *acquired) release() {
	a.once.Do(func() {
		for _, t := range a.Tracks() {
			t.Stop()
		}
	})
}

type recorder struct {
	f    *os.File
	size int64
	err  error
	stop chan struct{}
	done chan struct{}
}

func (r *recorder) run(src io.Reader) {
	defer close(r.done)

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := r.f.Write(buf[:n]); werr != nil {
				r.err = fmt.Errorf("failed to write chunk: %w", werr)
				return
			}
			r.size += int64(n)
		}

		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			r.err = fmt.Errorf("failed to read chunk: %w", err)
			return
		}
	}
}

// Session is a camera mode of a single view.
type Session struct {
	d   Device
	dir string

	mu     sync.Mutex
	state  State
	stream *acquired
	rec    *recorder
	blob   *Blob
}

// NewSession returns idle session which stores recordings in dir; empty dir means os.TempDir.
func NewSession(d Device, dir string) *Session {
	return &Session{
		d:   d,
		dir: dir,
	}
}

// State ...
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Blob returns the last finalized recording or nil.
func (s *Session) Blob() *Blob {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.blob
}

// Enter requests device access. Denial makes session terminally denied.
func (s *Session) Enter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Denied:
		return ErrDenied
	case Idle:
	default:
		return fmt.Errorf("%w: can't enter camera mode in %s", ErrInvalidState, s.state)
	}

	s.state = PermissionRequested

	stream, err := s.d.Request(ctx)
	if err != nil {
		if errors.Is(err, ErrPermission) || errors.Is(err, os.ErrPermission) {
			log.WithError(err).Info("camera access denied")
			s.state = Denied
			return ErrDenied
		}

		s.state = Idle
		return fmt.Errorf("failed to request device: %w", err)
	}

	s.stream = &acquired{Stream: stream}
	s.state = Ready

	return nil
}

// Start starts recording. Recording again from stopped state discards the previous blob.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready && s.state != Stopped {
		return fmt.Errorf("%w: can't start recording in %s", ErrInvalidState, s.state)
	}

	if s.stream == nil {
		return fmt.Errorf("%w: stream is released", ErrInvalidState)
	}

	f, err := os.CreateTemp(s.dir, "capture-*")
	if err != nil {
		s.releaseLocked()
		return fmt.Errorf("failed to create blob file: %w", err)
	}

	s.discardBlobLocked()

	s.rec = &recorder{
		f:    f,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.rec.run(s.stream)

	s.state = Recording

	return nil
}

// Stop finalizes recording into a blob. When ctx is done before the recorder
// finishes pending read, the device is released and the recording is dropped.
// Session may be left or closed while Stop waits, then Stop returns ErrReleased.
func (s *Session) Stop(ctx context.Context) (*Blob, error) {
	s.mu.Lock()

	if s.state != Recording {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: can't stop recording in %s", ErrInvalidState, s.state)
	}

	rec := s.rec
	s.rec = nil
	s.state = Stopping

	close(rec.stop)
	s.mu.Unlock()

	select {
	case <-rec.done:
	case <-ctx.Done():
		s.mu.Lock()
		if s.state == Stopping {
			s.releaseLocked()
			s.state = Idle
		}
		s.mu.Unlock()

		<-rec.done
		dropRecording(rec)
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Stopping {
		dropRecording(rec)
		return nil, ErrReleased
	}

	if rec.err != nil {
		s.releaseLocked()
		dropRecording(rec)
		s.state = Idle
		return nil, rec.err
	}

	if err := rec.f.Close(); err != nil {
		s.releaseLocked()
		dropRecording(rec)
		s.state = Idle
		return nil, fmt.Errorf("failed to close blob file: %w", err)
	}

	path, err := filepath.Abs(rec.f.Name())
	if err != nil {
		path = rec.f.Name()
	}

	s.blob = &Blob{
		Path:        path,
		Size:        rec.size,
		ContentType: s.stream.ContentType(),
		URL:         (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
	}
	s.state = Stopped

	return s.blob, nil
}

// Leave releases device tracks. Finalized blob is kept. Repeated calls are no-op.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveLocked()
}

// Close releases device tracks and removes finalized blob.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveLocked()
	s.discardBlobLocked()
}

// leaveLocked doesn't wait for Stop in progress: releasing the device unblocks its read and Stop drops the recording.
func (s *Session) leaveLocked() {
	if s.rec != nil {
		close(s.rec.stop)
		s.releaseLocked()
		<-s.rec.done
		dropRecording(s.rec)
		s.rec = nil
	}

	s.releaseLocked()

	if s.state != Denied {
		s.state = Idle
	}
}

func (s *Session) releaseLocked() {
	if s.stream == nil {
		return
	}

	s.stream.release()
	s.stream = nil
}

func (s *Session) discardBlobLocked() {
	if s.blob == nil {
		return
	}

	if err := s.blob.Remove(); err != nil {
		log.WithError(err).Warn("failed to remove blob")
	}
	s.blob = nil
}

func dropRecording(r *recorder) {
	_ = r.f.Close()
	if err := os.Remove(r.f.Name()); err != nil {
		log.WithError(err).Warn("failed to remove recording")
	}
}
