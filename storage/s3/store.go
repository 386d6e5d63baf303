// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3 implements blob storage on any S3-compatible object store. The
// first segment of a location is the bucket, the remainder is the object key.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/storage"
)

var (
	// Error is the default s3 error class.
	Error = errs.Class("s3")

	mon = monkit.Package()
)

var _ storage.Provider = (*Store)(nil)

// Store is a blob store backed by an S3-compatible service.
type Store struct {
	client *minio.Client
}

// Open creates a store talking to the given endpoint.
func Open(endpoint, accessKey, secretKey string) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: true,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Store{client: client}, nil
}

func split(location string) (bucket, key string, err error) {
	bucket, key, found := strings.Cut(location, "/")
	if !found || bucket == "" || key == "" {
		return "", "", Error.New("location %q does not name a bucket and key", location)
	}
	return bucket, key, nil
}

// WriteBlob implements storage.Provider.
func (store *Store) WriteBlob(ctx context.Context, location string, content []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	bucket, key, err := split(location)
	if err != nil {
		return err
	}

	_, err = store.client.PutObject(ctx, bucket, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return Error.Wrap(err)
}

// ReadBlob implements storage.Provider.
func (store *Store) ReadBlob(ctx context.Context, location string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	bucket, key, err := split(location)
	if err != nil {
		return nil, err
	}

	object, err := store.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(object.Close())) }()

	content, err := io.ReadAll(object)
	if err != nil {
		var response minio.ErrorResponse
		if errors.As(err, &response) && response.Code == "NoSuchKey" {
			return nil, storage.ErrBlobNotFound.New("%q", location)
		}
		return nil, Error.Wrap(err)
	}
	return content, nil
}
