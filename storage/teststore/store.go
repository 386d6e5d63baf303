// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package teststore implements an in-memory blob store for tests.
package teststore

import (
	"context"
	"sync"

	"github.com/mabel-dev/tarchia/storage"
)

var _ storage.Provider = (*Store)(nil)

// Store is an in-memory blob store.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{blobs: map[string][]byte{}}
}

// WriteBlob implements storage.Provider.
func (store *Store) WriteBlob(ctx context.Context, location string, content []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.blobs[location] = append([]byte(nil), content...)
	return nil
}

// ReadBlob implements storage.Provider.
func (store *Store) ReadBlob(ctx context.Context, location string) ([]byte, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	content, ok := store.blobs[location]
	if !ok {
		return nil, storage.ErrBlobNotFound.New("%q", location)
	}
	return append([]byte(nil), content...), nil
}

// Len reports how many blobs have been written.
func (store *Store) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.blobs)
}
