package adapter

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"google.golang.org/api/option"
)

// Blob is path-addressed file storage whose objects are publicly readable.
type Blob interface {
	// NewWriter returns a writer that stores the object at path. The object
	// becomes visible when the writer is closed without error.
	NewWriter(ctx context.Context, path, contentType string) (io.WriteCloser, error)
	// URL returns the public URL of the object at path.
	URL(path string) string
	// Delete removes the object. It returns model.ErrNotFound if the object
	// does not exist.
	Delete(ctx context.Context, path string) error
}

// StorageConfig selects the Cloud Storage bucket for uploads
type StorageConfig struct {
	Bucket          string
	CredentialsFile string
	// PublicURLBase is prepended to object paths. Defaults to
	// https://storage.googleapis.com/<bucket>/
	PublicURLBase string
}

// GCSBlob implements Blob using Cloud Storage
type GCSBlob struct {
	bucketName string
	urlBase    string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, cfg StorageConfig) (*GCSBlob, error) {
	if cfg.Bucket == "" {
		return nil, goerr.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrBackendUnavailable, err), "failed to create storage client",
			goerr.V("bucket", cfg.Bucket))
	}

	base := cfg.PublicURLBase
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket + "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &GCSBlob{
		bucketName: cfg.Bucket,
		urlBase:    base,
		client:     client,
	}, nil
}

func (s *GCSBlob) NewWriter(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(path)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	return writer, nil
}

func (s *GCSBlob) URL(path string) string {
	return s.urlBase + escapePath(path)
}

func (s *GCSBlob) Delete(ctx context.Context, path string) error {
	obj := s.client.Bucket(s.bucketName).Object(path)
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return goerr.Wrap(model.ErrNotFound, "object does not exist", goerr.V("path", path))
		}
		return goerr.Wrap(err, "failed to delete object", goerr.V("path", path))
	}
	return nil
}

func (s *GCSBlob) Close() error {
	if err := s.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage client")
	}
	return nil
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
