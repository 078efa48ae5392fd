// Package client is a client of agora http api.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/schema"
	"github.com/Decentr-net/agora/internal/service"
)

var log = logrus.WithField("layer", "client").WithField("package", "client")

// ErrUnauthorized is returned when server rejects the token.
var ErrUnauthorized = errors.New("unauthorized")

// Error is an error returned by server.
type Error struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d: %s: %s", e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Upload is a file to be uploaded.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ListOptions ...
type ListOptions struct {
	AuthorID string
	After    string
	Limit    uint16
}

// Client ...
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

// New creates client of server with base url, e.g. https://agora.example.com.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}, nil
}

// SignIn creates profile on the first sign in.
func (c *Client) SignIn(ctx context.Context) (*entities.Profile, error) {
	var p schema.Profile
	if err := c.do(ctx, http.MethodPost, "/v1/session", nil, nil, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// SignOut revokes tokens of the user.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/session", nil, nil, nil)
}

// GetProfile returns profile by id, "me" means current user.
func (c *Client) GetProfile(ctx context.Context, id string) (*entities.Profile, error) {
	var p schema.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// UpdateProfile changes non-nil fields of current user's profile.
func (c *Client) UpdateProfile(ctx context.Context, displayName, bio *string) (*entities.Profile, error) {
	var p schema.Profile
	if err := c.doJSON(ctx, http.MethodPut, "/v1/profiles/me", nil, schema.UpdateProfileRequest{
		DisplayName: displayName,
		Bio:         bio,
	}, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// SetProfileImage uploads avatar or cover.
func (c *Client) SetProfileImage(ctx context.Context, kind service.ImageKind, f *Upload, progress ProgressFunc) (*entities.Profile, error) {
	var p schema.Profile
	if err := c.upload(ctx, "/v1/profiles/me/"+string(kind), nil, "image", f, progress, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// ListItems returns a page of collection.
func (c *Client) ListItems(ctx context.Context, col entities.Collection, o ListOptions) ([]*entities.Item, error) {
	q := url.Values{}
	if o.AuthorID != "" {
		q.Set("author", o.AuthorID)
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if o.Limit != 0 {
		q.Set("limit", strconv.Itoa(int(o.Limit)))
	}

	var items schema.Items
	if err := c.do(ctx, http.MethodGet, "/v1/"+string(col), q, nil, &items); err != nil {
		return nil, err
	}

	return items.Entities(), nil
}

// GetItem ...
func (c *Client) GetItem(ctx context.Context, col entities.Collection, id string) (*entities.Item, error) {
	path := fmt.Sprintf("/v1/%s/%s", col, url.PathEscape(id))

	if col == entities.ShortsCollection {
		var s schema.Short
		if err := c.do(ctx, http.MethodGet, path, nil, nil, &s); err != nil {
			return nil, err
		}
		return s.Entity(), nil
	}

	var p schema.Post
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// CreatePost publishes a post, image is optional.
func (c *Client) CreatePost(ctx context.Context, text string, image *Upload, progress ProgressFunc) (*entities.Item, error) {
	text, err := service.ValidatePost(text)
	if err != nil {
		return nil, err
	}

	var p schema.Post
	if err := c.upload(ctx, "/v1/posts", map[string]string{"text": text}, "image", image, progress, &p); err != nil {
		return nil, err
	}

	return p.Entity(), nil
}

// CreateShort publishes a short. Missing or empty video is rejected before any request.
func (c *Client) CreateShort(ctx context.Context, caption string, video *Upload, progress ProgressFunc) (*entities.Item, error) {
	var size int64
	if video != nil {
		size = video.Size
	}

	caption, err := service.ValidateShort(caption, size)
	if err != nil {
		return nil, err
	}

	var s schema.Short
	if err := c.upload(ctx, "/v1/shorts", map[string]string{"caption": caption}, "video", video, progress, &s); err != nil {
		return nil, err
	}

	return s.Entity(), nil
}

// ToggleLike returns like state after the call.
func (c *Client) ToggleLike(ctx context.Context, col entities.Collection, id string) (bool, error) {
	var resp schema.LikeResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%s/%s/like", col, url.PathEscape(id)), nil, nil, &resp); err != nil {
		return false, err
	}

	return resp.Liked, nil
}

// AddComment appends comment. Empty key is replaced by a random one.
func (c *Client) AddComment(ctx context.Context, col entities.Collection, id, text, idempotencyKey string) (*entities.Comment, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	var resp schema.Comment
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/%s/%s/comments", col, url.PathEscape(id)),
		http.Header{"Idempotency-Key": []string{idempotencyKey}},
		schema.CreateCommentRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	comment := resp.Entity()

	return &comment, nil
}

// DeleteItem ...
func (c *Client) DeleteItem(ctx context.Context, col entities.Collection, id string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/%s/%s", col, url.PathEscape(id)), nil, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, h http.Header, req, resp interface{}) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")

	return c.send(ctx, method, path, nil, h, bytes.NewReader(b), resp)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, resp interface{}) error {
	return c.send(ctx, method, path, q, nil, body, resp)
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, h http.Header, body io.Reader, resp interface{}) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range h {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do request: %w", err)
	}
	defer res.Body.Close() // nolint:errcheck

	if res.StatusCode >= http.StatusBadRequest {
		return readError(res)
	}

	if resp == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func readError(res *http.Response) error {
	if res.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var e api.Error
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil || e.Error == "" {
		e.Error = http.StatusText(res.StatusCode)
	}

	if e.Field != "" && res.StatusCode == http.StatusBadRequest {
		return &service.ValidationError{Field: e.Field, Message: e.Error}
	}

	return &Error{
		StatusCode: res.StatusCode,
		Message:    e.Error,
		Field:      e.Field,
	}
}

// upload streams multipart form through pipe, so memory usage doesn't depend on file size.
func (c *Client) upload(ctx context.Context, path string, fields map[string]string, fileField string, f *Upload,
	progress ProgressFunc, resp interface{}) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, fileField, f, progress))
	}()

	h := http.Header{}
	h.Set("Content-Type", mw.FormDataContentType())

	err := c.send(ctx, http.MethodPost, path, nil, h, pr, resp)
	_ = pr.Close()

	return err
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, fileField string, f *Upload, progress ProgressFunc) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	if f != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, escapeQuotes(f.Name)))
		if f.ContentType != "" {
			h.Set("Content-Type", f.ContentType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}

		w, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create part: %w", err)
		}

		if _, err := io.Copy(w, newProgressReader(f.Body, f.Size, progress)); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}

	return mw.Close()
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
