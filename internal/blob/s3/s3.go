// Package s3 is implementation of blob store over AWS S3.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/blob"
)

var log = logrus.WithField("layer", "blob").WithField("package", "s3")

// Config ...
type Config struct {
	Region string
	Bucket string
	// Endpoint overrides AWS endpoint, e.g. for minio.
	Endpoint string
	// PublicURL is a prefix of public urls, e.g. cdn address. Defaults to bucket virtual-host address.
	PublicURL string
}

type store struct {
	bucket    string
	publicURL string
	uploader  *s3manager.Uploader
	svc       *s3.S3
}

// New creates new instance of s3 store.
func New(c Config) (blob.Store, error) {
	cfg := &aws.Config{
		Region: aws.String(c.Region),
	}

	if c.Endpoint != "" {
		cfg.Endpoint = aws.String(c.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	publicURL := c.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", c.Bucket, c.Region)
	}

	return &store{
		bucket:    c.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/") + "/",
		uploader:  s3manager.NewUploader(sess),
		svc:       s3.New(sess),
	}, nil
}

func (s *store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	in := &s3manager.UploadInput{
		ACL:    aws.String("public-read"),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}

	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.UploadWithContext(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload: %w", err)
	}

	log.WithField("key", key).Debug("blob uploaded")

	return s.urlFromKey(key), nil
}

func (s *store) Delete(ctx context.Context, u string) error {
	key, err := s.keyFromURL(u)
	if err != nil {
		return err
	}

	if _, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *store) Ping(ctx context.Context) error {
	if _, err := s.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("failed to head bucket: %w", err)
	}

	return nil
}

func (s *store) urlFromKey(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}

	return s.publicURL + strings.Join(parts, "/")
}

func (s *store) keyFromURL(u string) (string, error) {
	if !strings.HasPrefix(u, s.publicURL) {
		return "", fmt.Errorf("%w: %s", blob.ErrForeignURL, u)
	}

	key, err := url.PathUnescape(strings.TrimPrefix(u, s.publicURL))
	if err != nil || key == "" {
		return "", fmt.Errorf("%w: %s", blob.ErrForeignURL, u)
	}

	return key, nil
}
