package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"google.golang.org/api/iterator"
)

const gcsPublicBase = "https://storage.googleapis.com"

// GCSUploader writes objects to a Google Cloud Storage bucket.
type GCSUploader struct {
	cl         *gcs.Client
	projectID  string
	bucketName string
	publicURL  string
}

// NewGCSUploader uses application default credentials
// (GOOGLE_APPLICATION_CREDENTIALS).
func NewGCSUploader(ctx context.Context, cfg config.Storage) (*GCSUploader, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = gcsPublicBase
	}

	return &GCSUploader{
		cl:         client,
		projectID:  cfg.GCSProjectID,
		bucketName: cfg.Bucket,
		publicURL:  publicURL,
	}, nil
}

func (c *GCSUploader) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if c == nil || c.cl == nil {
		return "", errors.New("storage: gcs uploader not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	// Upload an object with storage.Writer.
	wc := c.cl.Bucket(c.bucketName).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=604800"
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("storage: io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("storage: Writer.Close: %w", err)
	}

	return publicObjectURL(c.publicURL, c.bucketName, key), nil
}

func (c *GCSUploader) ListBuckets(ctx context.Context) ([]string, error) {
	if c == nil || c.cl == nil {
		return nil, errors.New("storage: gcs uploader not configured")
	}

	var names []string
	it := c.cl.Buckets(ctx, c.projectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list buckets: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (c *GCSUploader) Close() error {
	if c == nil || c.cl == nil {
		return nil
	}
	return c.cl.Close()
}
