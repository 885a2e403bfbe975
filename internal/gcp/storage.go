package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

const (
	uploadMaxRetries   = 4
	uploadWriteTimeout = 50 * time.Second
)

// StreamObject copies gs://bucket/object into a local file at destPath.
// A missing object yields an error wrapping storage.ErrObjectNotExist.
func StreamObject(ctx context.Context, client *storage.Client, bucket, object, destPath string) error {
	gcsReader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return localFile.Close()
}

// WriteObject uploads data to gs://bucket/object, overwriting any existing
// object. Failed attempts are retried with a doubling backoff.
func WriteObject(ctx context.Context, client *storage.Client, bucket, object string, data []byte, contentType string) error {
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < uploadMaxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, uploadWriteTimeout)
			defer cancel()

			gcsWriter := client.Bucket(bucket).Object(object).NewWriter(writeCtx)
			gcsWriter.ContentType = contentType

			if _, err := io.Copy(gcsWriter, bytes.NewReader(data)); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		if i == uploadMaxRetries-1 {
			break
		}
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", uploadMaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}
