// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"

	"github.com/mabel-dev/tarchia/storage"
	"github.com/mabel-dev/tarchia/storage/filestore"
)

func TestWriteRead(t *testing.T) {
	ctx := testcontext.New(t)
	store := filestore.NewAt(t.TempDir())

	err := store.WriteBlob(ctx, "owner/table/metadata/commits/commit-abc.json", []byte(`{"a":1}`))
	require.NoError(t, err)

	content, err := store.ReadBlob(ctx, "owner/table/metadata/commits/commit-abc.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":1}`), content)
}

func TestOverwrite(t *testing.T) {
	ctx := testcontext.New(t)
	store := filestore.NewAt(t.TempDir())

	require.NoError(t, store.WriteBlob(ctx, "blob", []byte("one")))
	require.NoError(t, store.WriteBlob(ctx, "blob", []byte("two")))

	content, err := store.ReadBlob(ctx, "blob")
	require.NoError(t, err)
	require.Equal(t, []byte("two"), content)
}

func TestReadMissing(t *testing.T) {
	ctx := testcontext.New(t)
	store := filestore.NewAt(t.TempDir())

	_, err := store.ReadBlob(ctx, "does/not/exist")
	require.True(t, storage.ErrBlobNotFound.Has(err))
}

func TestAbsolutePath(t *testing.T) {
	ctx := testcontext.New(t)
	dir := t.TempDir()
	store := filestore.NewAt(filepath.Join(dir, "unused"))

	abs := filepath.Join(dir, "abs-blob")
	require.NoError(t, store.WriteBlob(ctx, abs, []byte("content")))

	content, err := store.ReadBlob(ctx, abs)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), content)
}
