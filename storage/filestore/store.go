// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package filestore implements blob storage on the local filesystem.
package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/storage"
)

var (
	// Error is the default filestore error class.
	Error = errs.Class("filestore")

	mon = monkit.Package()
)

var _ storage.Provider = (*Store)(nil)

// Store is a blob store backed by a directory tree. Writes go through a
// temporary file and a rename so readers never observe partial content.
type Store struct {
	root string
}

// New creates a store rooted at the process working directory.
func New() *Store {
	return &Store{}
}

// NewAt creates a store that resolves relative locations under root.
func NewAt(root string) *Store {
	return &Store{root: root}
}

func (store *Store) resolve(location string) string {
	if store.root == "" || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(store.root, location)
}

// WriteBlob implements storage.Provider.
func (store *Store) WriteBlob(ctx context.Context, location string, content []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	path := store.resolve(location)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Error.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, os.Remove(tmp.Name()))
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return errs.Combine(Error.Wrap(err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(os.Rename(tmp.Name(), path))
}

// ReadBlob implements storage.Provider.
func (store *Store) ReadBlob(ctx context.Context, location string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	content, err := os.ReadFile(store.resolve(location))
	if os.IsNotExist(err) {
		return nil, storage.ErrBlobNotFound.New("%q", location)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return content, nil
}
