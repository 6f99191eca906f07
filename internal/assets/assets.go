// Package assets resolves pdf_gcs_uri values returned in a
// DocumentContext into short-lived signed download URLs, so a caller never
// needs direct GCS credentials to fetch the source PDF a context was
// extracted from. It is trimmed from the teacher's StorageAdapter down to
// the read-only download path: this system never writes to GCS, so Upload
// and the generic read/write SignedURL are dropped.
package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Resolver wraps a single long-lived *storage.Client shared across
// requests, mirroring how searchstore.Client shares one Elasticsearch
// connection rather than reopening one per call.
type Resolver struct {
	client *storage.Client
}

// New constructs a Resolver using application default credentials.
func New(ctx context.Context) (*Resolver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("assets.New: %w", err)
	}
	return &Resolver{client: client}, nil
}

// SignedDownloadURL generates a time-limited GET URL for gcsURI (a
// "gs://bucket/object" string, as stored in ChunkMetadata.GCSUri /
// DocumentContext.PDFGCSUri). expiry is measured from the call time.
func (r *Resolver) SignedDownloadURL(ctx context.Context, gcsURI string, expiry time.Duration) (string, error) {
	bucket, object, err := parseGCSURI(gcsURI)
	if err != nil {
		return "", fmt.Errorf("assets.SignedDownloadURL: %w", err)
	}

	url, err := r.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("assets.SignedDownloadURL: %w", err)
	}
	return url, nil
}

// Close releases the underlying client's connections.
func (r *Resolver) Close() error {
	return r.client.Close()
}

func parseGCSURI(uri string) (bucket, object string, err error) {
	const prefix = "gs://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	trimmed := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed gs:// uri: %q", uri)
	}
	return parts[0], parts[1], nil
}
