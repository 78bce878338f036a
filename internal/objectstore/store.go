// Package objectstore persists the gallery blob in an S3-compatible bucket (MinIO, S3, R2).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

const contentType = "application/octet-stream"

// GalleryStore keeps the encoded gallery as a single object.
type GalleryStore struct {
	client   *minio.Client
	bucket   string
	object   string
	compress bool
}

// New creates a store from the MinIO configuration. It does not contact the server.
func New(cfg *config.MinioConfig, compress bool) (*GalleryStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("MinIO endpoint is required")
	}
	if cfg.Bucket == "" || cfg.Object == "" {
		return nil, errors.New("MinIO bucket and object name are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MinIO client: %w", err)
	}

	return &GalleryStore{
		client:   client,
		bucket:   cfg.Bucket,
		object:   cfg.Object,
		compress: compress,
	}, nil
}

// Location returns the bucket/object path of the blob.
func (s *GalleryStore) Location() string {
	return s.bucket + "/" + s.object
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *GalleryStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have created it in the meantime.
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Load downloads and decodes the blob. A missing object is an empty gallery.
func (s *GalleryStore) Load(ctx context.Context) (gallery.Gallery, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return gallery.Empty(), nil
		}
		return gallery.Gallery{}, fmt.Errorf("getting %s: %w", s.Location(), err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return gallery.Empty(), nil
		}
		return gallery.Gallery{}, fmt.Errorf("reading %s: %w", s.Location(), err)
	}

	g, err := gallery.Decode(data)
	if err != nil {
		return gallery.Gallery{}, fmt.Errorf("decoding %s: %w", s.Location(), err)
	}
	return g, nil
}

// Save uploads the whole blob in one PutObject. S3 replaces objects atomically.
func (s *GalleryStore) Save(ctx context.Context, g gallery.Gallery) error {
	data, err := gallery.Encode(g, s.compress)
	if err != nil {
		return fmt.Errorf("encoding gallery: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("putting %s: %w", s.Location(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
