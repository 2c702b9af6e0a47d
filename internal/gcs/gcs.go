// Package gcs reads and writes source spreadsheets in Google Cloud Storage.
// Application Default Credentials are assumed.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Storage abstracts object storage so handlers and workers can be tested
// without a live bucket.
type Storage interface {
	// Fetch downloads the object bytes behind a gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Save uploads data under the given object name and returns its URI.
	Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Client is the Google Cloud Storage implementation of Storage, bound to a
// single bucket.
type Client struct {
	bucket string
}

// NewClient creates a storage client for the given bucket.
func NewClient(bucket string) *Client {
	return &Client{bucket: bucket}
}

// Fetch downloads the object bytes behind a gs:// URI. The URI may point at
// any bucket, not only the client's default one.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: open %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Save uploads data to the client's bucket and returns the object's URI.
func (c *Client) Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("gcs: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: finalize %s: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", c.bucket, objectName), nil
}

// ParseURI splits a gs://bucket/object URI into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("gcs: invalid URI %q", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("gcs: URI %q has no object path", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the base filename from a gs:// URI, used to
// derive the file kind of a stored spreadsheet.
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ Storage = (*Client)(nil)
