// Package gcs concatenates chunks into a series of Google Cloud Storage objects, rolling
// to a new object once the current one has received its quota of chunks.
package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// ObjectWriterFunc opens a writer for the named object. Cancelling ctx before the writer
// is closed must abandon the upload, as storage.Writer does.
type ObjectWriterFunc func(ctx context.Context, name string) io.WriteCloser

// BucketWriter opens object writers in the given bucket
func BucketWriter(client *storage.Client, bucket, contentType string) ObjectWriterFunc {
	return func(ctx context.Context, name string) io.WriteCloser {
		writer := client.Bucket(bucket).Object(name).NewWriter(ctx)
		if contentType != "" {
			writer.ContentType = contentType
		}

		return writer
	}
}
