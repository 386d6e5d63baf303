// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"

	"github.com/mabel-dev/tarchia/manifest"
	"github.com/mabel-dev/tarchia/storage/teststore"
)

func dataEntry(path string, lo, hi int64) manifest.Entry {
	return manifest.Entry{
		FilePath:       path,
		FileFormat:     "parquet",
		FileType:       manifest.EntryTypeData,
		RecordCount:    100,
		FileSize:       4096,
		SHA256Checksum: strings.Repeat("ab", 32),
		LowerBounds:    map[string]int64{"integer": lo},
		UpperBounds:    map[string]int64{"integer": hi},
	}
}

func TestRoundTrip(t *testing.T) {
	entries := []manifest.Entry{
		dataEntry("gs://bucket/file-1.parquet", -10, 10),
		dataEntry("gs://bucket/file-2.parquet", 11, 20),
	}

	encoded, err := manifest.Encode(entries)
	require.NoError(t, err)

	decoded, err := manifest.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, entries, decoded)
}

func TestRoundTripEmpty(t *testing.T) {
	encoded, err := manifest.Encode(nil)
	require.NoError(t, err)

	decoded, err := manifest.Decode(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestReadTree(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	leaf1 := dataEntry("data/file-1.parquet", -10, 10)
	leaf2 := dataEntry("data/file-2.parquet", 50, 90)
	require.NoError(t, manifest.Write(ctx, store, "meta/child.avro", []manifest.Entry{leaf2}))

	child := manifest.Entry{
		FilePath:    "meta/child.avro",
		FileFormat:  "parquet",
		FileType:    manifest.EntryTypeManifest,
		LowerBounds: map[string]int64{"integer": 50},
		UpperBounds: map[string]int64{"integer": 90},
	}
	require.NoError(t, manifest.Write(ctx, store, "meta/root.avro", []manifest.Entry{leaf1, child}))

	// no filters: full tree flattened to data entries
	entries, err := manifest.ReadTree(ctx, store, "meta/root.avro", nil)
	require.NoError(t, err)
	require.Equal(t, []manifest.Entry{leaf1, leaf2}, entries)

	// a filter disjoint with the child manifest's bounds prunes the whole
	// subtree without reading it
	entries, err = manifest.ReadTree(ctx, store, "meta/root.avro", []manifest.Filter{
		{Column: "integer", Op: "=", Value: 0},
	})
	require.NoError(t, err)
	require.Equal(t, []manifest.Entry{leaf1}, entries)

	entries, err = manifest.ReadTree(ctx, store, "meta/root.avro", []manifest.Filter{
		{Column: "integer", Op: ">", Value: 40},
	})
	require.NoError(t, err)
	require.Equal(t, []manifest.Entry{leaf2}, entries)
}

func TestReadTreeDepthCap(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	// a manifest that points at itself must not recurse forever
	self := manifest.Entry{
		FilePath: "meta/loop.avro",
		FileType: manifest.EntryTypeManifest,
	}
	require.NoError(t, manifest.Write(ctx, store, "meta/loop.avro", []manifest.Entry{self}))

	_, err := manifest.ReadTree(ctx, store, "meta/loop.avro", nil)
	require.True(t, manifest.ErrData.Has(err))
	require.Contains(t, err.Error(), "depth")
}
