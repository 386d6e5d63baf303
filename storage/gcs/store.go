// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package gcs implements blob storage on Google Cloud Storage. The first
// segment of a location is the bucket, the remainder is the object name.
package gcs

import (
	"context"
	"errors"
	"io"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/storage"
)

var (
	// Error is the default gcs error class.
	Error = errs.Class("gcs")

	mon = monkit.Package()
)

var _ storage.Provider = (*Store)(nil)

// Store is a blob store backed by Google Cloud Storage.
type Store struct {
	client *gstorage.Client
}

// Open creates a store using ambient application credentials.
func Open(ctx context.Context) (*Store, error) {
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Store{client: client}, nil
}

func split(location string) (bucket, object string, err error) {
	bucket, object, found := strings.Cut(location, "/")
	if !found || bucket == "" || object == "" {
		return "", "", Error.New("location %q does not name a bucket and object", location)
	}
	return bucket, object, nil
}

// WriteBlob implements storage.Provider.
func (store *Store) WriteBlob(ctx context.Context, location string, content []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	bucket, object, err := split(location)
	if err != nil {
		return err
	}

	writer := store.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	if _, err := writer.Write(content); err != nil {
		return errs.Combine(Error.Wrap(err), writer.Close())
	}
	return Error.Wrap(writer.Close())
}

// ReadBlob implements storage.Provider.
func (store *Store) ReadBlob(ctx context.Context, location string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	bucket, object, err := split(location)
	if err != nil {
		return nil, err
	}

	reader, err := store.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return nil, storage.ErrBlobNotFound.New("%q", location)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(reader.Close())) }()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return content, nil
}

// Close releases the underlying client.
func (store *Store) Close() error {
	return Error.Wrap(store.client.Close())
}
