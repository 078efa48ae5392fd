package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/capture"
	"github.com/Decentr-net/agora/internal/client"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/reel"
	"github.com/Decentr-net/agora/internal/schema"
	"github.com/Decentr-net/agora/internal/service"
)

var errNotSignedIn = errors.New("not signed in, obtain a token at " + client.LoginPath)

func registerCommands(p *flags.Parser) {
	add := func(name, short string, data interface{}) {
		if _, err := p.AddCommand(name, short, short, data); err != nil {
			panic(err)
		}
	}

	add("whoami", "Sign in and print current profile", &whoamiCommand{})
	add("signout", "Revoke current token", &signoutCommand{})
	add("profile", "Print profile", &profileCommand{})
	add("profile-update", "Update current profile", &profileUpdateCommand{})
	add("profile-image", "Upload avatar or cover", &profileImageCommand{})
	add("list", "List items of collection", &listCommand{})
	add("post", "Create a post", &postCommand{})
	add("short", "Create a short from file or recorded camera stream", &shortCommand{})
	add("like", "Toggle like of item", &likeCommand{})
	add("comment", "Comment item", &commentCommand{})
	add("delete", "Delete own item", &deleteCommand{})
	add("watch", "Print live snapshots of collection", &watchCommand{})
	add("shorts", "Browse shorts feed", &shortsCommand{})
}

type collectionArg struct {
	Collection string `positional-arg-name:"collection" required:"yes" description:"posts or shorts"`
}

func (a collectionArg) collection() (entities.Collection, error) {
	c := entities.Collection(a.Collection)
	if !c.Valid() {
		return "", fmt.Errorf("unknown collection %q", a.Collection)
	}

	return c, nil
}

type itemArgs struct {
	Collection string `positional-arg-name:"collection" required:"yes" description:"posts or shorts"`
	ID         string `positional-arg-name:"id" required:"yes"`
}

func (a itemArgs) collection() (entities.Collection, error) {
	return collectionArg{Collection: a.Collection}.collection()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func printItem(i *entities.Item) error {
	if i.Collection == entities.ShortsCollection {
		return printJSON(schema.ToShort(i))
	}

	return printJSON(schema.ToPost(i))
}

func printProgress(name string) client.ProgressFunc {
	last := -1

	return func(sent, total int64) {
		if p := client.Percent(sent, total); p != last {
			last = p
			fmt.Fprintf(os.Stderr, "\ruploading %s: %3d%%", name, p)
			if p == 100 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
}

// openUpload opens local file for upload, empty path means no file.
func openUpload(path, contentType string) (*client.Upload, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return &client.Upload{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Size:        info.Size(),
			Body:        f,
		}, func() {
			_ = f.Close()
		}, nil
}

type whoamiCommand struct{}

func (whoamiCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	g := client.NewGate(c)
	g.Resolve(ctx)

	if g.Decide() != client.Render {
		return errNotSignedIn
	}

	return printJSON(schema.ToProfile(g.State().User))
}

type signoutCommand struct{}

func (signoutCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return c.SignOut(ctx)
}

type profileCommand struct {
	Args struct {
		ID string `positional-arg-name:"id" description:"profile id, current user by default"`
	} `positional-args:"yes"`
}

func (cmd profileCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	id := cmd.Args.ID
	if id == "" {
		id = "me"
	}

	p, err := c.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	return printJSON(schema.ToProfile(p))
}

type profileUpdateCommand struct {
	Name *string `long:"name" description:"display name"`
	Bio  *string `long:"bio" description:"bio"`
}

func (cmd profileUpdateCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := c.UpdateProfile(ctx, cmd.Name, cmd.Bio)
	if err != nil {
		return err
	}

	return printJSON(schema.ToProfile(p))
}

type profileImageCommand struct {
	Args struct {
		Kind string `positional-arg-name:"kind" required:"yes" description:"avatar or cover"`
	} `positional-args:"yes"`
	File        string `long:"file" required:"yes" description:"image file"`
	ContentType string `long:"content-type" description:"image content type"`
}

func (cmd profileImageCommand) Execute([]string) error {
	kind := service.ImageKind(cmd.Args.Kind)
	if kind != service.AvatarImage && kind != service.CoverImage {
		return fmt.Errorf("unknown image kind %q", cmd.Args.Kind)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	u, closeFn, err := openUpload(cmd.File, cmd.ContentType)
	if err != nil {
		return err
	}
	defer closeFn()

	p, err := c.SetProfileImage(ctx, kind, u, printProgress(u.Name))
	if err != nil {
		return err
	}

	return printJSON(schema.ToProfile(p))
}

type listCommand struct {
	Args   collectionArg `positional-args:"yes"`
	Author string        `long:"author" description:"author id"`
	After  string        `long:"after" description:"id of the last item of previous page"`
	Limit  uint16        `long:"limit" description:"page size"`
}

func (cmd listCommand) Execute([]string) error {
	col, err := cmd.Args.collection()
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	items, err := c.ListItems(ctx, col, client.ListOptions{AuthorID: cmd.Author, After: cmd.After, Limit: cmd.Limit})
	if err != nil {
		return err
	}

	return printJSON(schema.NewItems(col, items))
}

type postCommand struct {
	Text        string `long:"text" required:"yes" description:"post text"`
	Image       string `long:"image" description:"image file"`
	ContentType string `long:"content-type" description:"image content type"`
}

func (cmd postCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	u, closeFn, err := openUpload(cmd.Image, cmd.ContentType)
	if err != nil {
		return err
	}
	defer closeFn()

	var progress client.ProgressFunc
	if u != nil {
		progress = printProgress(u.Name)
	}

	item, err := c.CreatePost(ctx, cmd.Text, u, progress)
	if err != nil {
		return err
	}

	return printItem(item)
}

type shortCommand struct {
	Caption     string        `long:"caption" description:"short caption"`
	Video       string        `long:"video" description:"video file"`
	Camera      string        `long:"camera" description:"camera device, a file or a named pipe to record from"`
	Duration    time.Duration `long:"duration" default:"15s" description:"recording duration in camera mode"`
	ContentType string        `long:"content-type" description:"video content type"`
}

func (cmd shortCommand) Execute([]string) error {
	if cmd.Video != "" && cmd.Camera != "" {
		return errors.New("--video and --camera are mutually exclusive")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var (
		u       *client.Upload
		closeFn = func() {}
	)

	if cmd.Camera != "" {
		s := capture.NewSession(capture.FileDevice{Path: cmd.Camera, ContentType: cmd.ContentType}, "")
		defer s.Close()

		b, err := record(ctx, s, cmd.Duration)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "recorded %d bytes, preview: %s\n", b.Size, b.URL)

		f, err := b.Open()
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close() // nolint:errcheck

		u = &client.Upload{Name: filepath.Base(cmd.Camera), ContentType: b.ContentType, Size: b.Size, Body: f}
	} else {
		u, closeFn, err = openUpload(cmd.Video, cmd.ContentType)
		if err != nil {
			return err
		}
	}
	defer closeFn()

	var progress client.ProgressFunc
	if u != nil {
		progress = printProgress(u.Name)
	}

	item, err := c.CreateShort(ctx, cmd.Caption, u, progress)
	if err != nil {
		return err
	}

	return printItem(item)
}

// record captures device stream for d and leaves camera mode.
func record(ctx context.Context, s *capture.Session, d time.Duration) (*capture.Blob, error) {
	defer s.Leave()

	if err := s.Enter(ctx); err != nil {
		return nil, err
	}

	if err := s.Start(); err != nil {
		return nil, err
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.Stop(stopCtx)
}

type likeCommand struct {
	Args itemArgs `positional-args:"yes"`
}

func (cmd likeCommand) Execute([]string) error {
	col, err := cmd.Args.collection()
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	liked, err := c.ToggleLike(ctx, col, cmd.Args.ID)
	if err != nil {
		return err
	}

	return printJSON(schema.LikeResponse{Liked: liked})
}

type commentCommand struct {
	Args struct {
		Collection string   `positional-arg-name:"collection" required:"yes" description:"posts or shorts"`
		ID         string   `positional-arg-name:"id" required:"yes"`
		Text       []string `positional-arg-name:"text" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd commentCommand) Execute([]string) error {
	col, err := collectionArg{Collection: cmd.Args.Collection}.collection()
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	m := client.NewMutator(c, noProjection{}, stderrNotifier, "")

	comment, err := m.AddComment(ctx, col, cmd.Args.ID, strings.Join(cmd.Args.Text, " "))
	if err != nil {
		return err
	}

	return printJSON(schema.ToComment(*comment))
}

type deleteCommand struct {
	Args itemArgs `positional-args:"yes"`
}

func (cmd deleteCommand) Execute([]string) error {
	col, err := cmd.Args.collection()
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return c.DeleteItem(ctx, col, cmd.Args.ID)
}

type watchCommand struct {
	Args collectionArg `positional-args:"yes"`
}

func (cmd watchCommand) Execute([]string) error {
	col, err := cmd.Args.collection()
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	f, err := c.Subscribe(ctx, col)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.Done():
			return f.Err()
		case <-f.Updates():
			if err := printJSON(schema.NewItems(col, f.Items())); err != nil {
				return err
			}
		}
	}
}

type shortsCommand struct {
	Play  bool          `long:"play" description:"play shorts one by one"`
	Dwell time.Duration `long:"dwell" default:"3s" description:"time spent on every short"`
}

func (cmd shortsCommand) Execute([]string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	f, err := c.Subscribe(ctx, entities.ShortsCollection)
	if err != nil {
		return err
	}
	defer f.Close()

	select {
	case <-ctx.Done():
		return nil
	case <-f.Done():
		return f.Err()
	case <-f.Updates():
	}

	if !cmd.Play {
		return printJSON(schema.NewItems(entities.ShortsCollection, f.Items()))
	}

	return playShorts(ctx, f, reel.New(stdoutPlayer{}), cmd.Dwell)
}

// snapshotFeed is a live feed of collection snapshots.
type snapshotFeed interface {
	Items() []*entities.Item
	Updates() <-chan struct{}
	Done() <-chan struct{}
	Err() error
}

// playShorts plays shorts one by one, each for dwell. Snapshot updates keep the active short and its dwell.
func playShorts(ctx context.Context, f snapshotFeed, r *reel.Reel, dwell time.Duration) error {
	r.SetItems(f.Items())

	for i := 0; i < len(r.Items()); i++ {
		r.Observe(i, 1)

		next, err := dwellOn(ctx, f, r, dwell, &i)
		if !next {
			return err
		}
	}

	if a := r.Active(); a >= 0 {
		r.Observe(a, 0)
	}

	return nil
}

// dwellOn waits until the short at *i was shown for dwell, false means playback is over.
// *i follows the short through snapshot updates.
// When the short is removed *i points before the one which took its place.
func dwellOn(ctx context.Context, f snapshotFeed, r *reel.Reel, dwell time.Duration, i *int) (bool, error) {
	timer := time.NewTimer(dwell)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-f.Done():
			return false, f.Err()
		case <-f.Updates():
			r.SetItems(f.Items())
			if a := r.Active(); a >= 0 {
				*i = a
				continue
			}
			*i--
			return true, nil
		case <-timer.C:
			return true, nil
		}
	}
}

// stdoutPlayer prints playback instead of playing.
type stdoutPlayer struct{}

func (stdoutPlayer) Play(i *entities.Item) error {
	fmt.Printf("> %s @%s: %s\n", i.MediaURL, i.Author.Name, i.Text)
	return nil
}

func (stdoutPlayer) Pause(i *entities.Item) error {
	logrus.WithField("id", i.ID).Debug("paused")
	return nil
}

func (stdoutPlayer) Rewind(i *entities.Item) error {
	logrus.WithField("id", i.ID).Debug("rewound")
	return nil
}

type noProjection struct{}

func (noProjection) ApplyLike(string, string, bool) {}

func (noProjection) ApplyComment(string, entities.Comment) {}

// nolint:gochecknoglobals
var stderrNotifier = client.NotifierFunc(func(msg string) {
	fmt.Fprintln(os.Stderr, msg)
})
