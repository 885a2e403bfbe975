package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/researchdigest/internal/gcp"
)

// GCS stores objects in a single Cloud Storage bucket (MEDIA_BUCKET).
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

func (g *GCS) Fetch(ctx context.Context, ref, destPath string) error {
	err := gcp.StreamObject(ctx, g.client, g.bucket, objectName(ref), destPath)
	return mapGCSError(err)
}

func (g *GCS) Put(ctx context.Context, ref string, data []byte, contentType string) error {
	return gcp.WriteObject(ctx, g.client, g.bucket, objectName(ref), data, contentType)
}

func (g *GCS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(objectName(ref)).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(fmt.Errorf("open gs://%s/%s: %w", g.bucket, ref, err))
	}
	return r, nil
}

// objectName accepts both bare object names and gs://bucket/object references.
func objectName(ref string) string {
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		if _, obj, found := strings.Cut(rest, "/"); found {
			return obj
		}
	}
	return strings.TrimPrefix(ref, "/")
}

func mapGCSError(err error) error {
	if err != nil && errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

var _ Store = (*GCS)(nil)
