package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// BlobStore writes clean recipient lists to any Go CDK bucket
// Keys ending in .gz are gzip compressed and keys ending in .zst are zstd compressed.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

// NewBlobStore opens the bucket at bucketURL, e.g. file:///var/exports or s3://bucket?region=eu-west-1
func NewBlobStore(ctx context.Context, bucketURL, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BlobStore{bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Publish writes data under key and returns the object path
func (s *BlobStore) Publish(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("publish: empty key")
	}
	objectPath := s.objectPath(key)

	payload, contentType, err := encode(key, data)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", objectPath, err)
	}

	w, err := s.bucket.NewWriter(ctx, objectPath, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", objectPath, err)
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return "", fmt.Errorf("write data to %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", objectPath, err)
	}

	return objectPath, nil
}

// Fetch reads the object at key and returns its decompressed content
func (s *BlobStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	objectPath := s.objectPath(key)

	raw, err := s.bucket.ReadAll(ctx, objectPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objectPath, err)
	}

	switch {
	case strings.HasSuffix(key, ".gz"):
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", objectPath, err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case strings.HasSuffix(key, ".zst"):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(raw, nil)
	}
	return raw, nil
}

// Close releases the bucket
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) objectPath(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func encode(key string, data []byte) ([]byte, string, error) {
	switch {
	case strings.HasSuffix(key, ".gz"):
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, "", err
		}
		if err := zw.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/gzip", nil
	case strings.HasSuffix(key, ".zst"):
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, "", err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), "application/zstd", nil
	}
	return data, "text/csv", nil
}
