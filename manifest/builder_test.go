// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/manifest"
	"github.com/mabel-dev/tarchia/storage/teststore"
)

type planet struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

func writeParquet(t *testing.T, rows []planet) []byte {
	var buf bytes.Buffer
	require.NoError(t, parquet.Write(&buf, rows))
	return buf.Bytes()
}

func TestBuildEntry(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	content := writeParquet(t, []planet{
		{ID: -10, Name: "mercury"},
		{ID: 3, Name: "earth"},
		{ID: 10, Name: "neptune"},
	})
	require.NoError(t, store.WriteBlob(ctx, "data/planets.parquet", content))

	schema := catalog.Schema{Columns: []catalog.Column{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeVarchar},
	}}

	entry, err := manifest.BuildEntry(ctx, store, "data/planets.parquet", schema)
	require.NoError(t, err)

	require.Equal(t, "data/planets.parquet", entry.FilePath)
	require.Equal(t, "parquet", entry.FileFormat)
	require.Equal(t, manifest.EntryTypeData, entry.FileType)
	require.Equal(t, int64(3), entry.RecordCount)
	require.Equal(t, int64(len(content)), entry.FileSize)

	checksum := sha256.Sum256(content)
	require.Equal(t, hex.EncodeToString(checksum[:]), entry.SHA256Checksum)

	require.Equal(t, int64(-10), entry.LowerBounds["id"])
	require.Equal(t, int64(10), entry.UpperBounds["id"])

	lo, _ := manifest.ToInt("earth")
	hi, _ := manifest.ToInt("neptune")
	require.Equal(t, lo, entry.LowerBounds["name"])
	require.Equal(t, hi, entry.UpperBounds["name"])
}

func TestBuildEntryMissingColumn(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	content := writeParquet(t, []planet{{ID: 1, Name: "venus"}})
	require.NoError(t, store.WriteBlob(ctx, "data/planets.parquet", content))

	demanding := catalog.Schema{Columns: []catalog.Column{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeVarchar},
		{Name: "king", Type: catalog.TypeVarchar},
	}}

	_, err := manifest.BuildEntry(ctx, store, "data/planets.parquet", demanding)
	require.True(t, manifest.ErrData.Has(err))
	require.Contains(t, err.Error(), "missing column 'king'")

	// a default makes the column optional
	demanding.Columns[2].Default = "x"
	_, err = manifest.BuildEntry(ctx, store, "data/planets.parquet", demanding)
	require.NoError(t, err)
}

func TestBuildEntryAliasSatisfiesColumn(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	content := writeParquet(t, []planet{{ID: 1, Name: "venus"}})
	require.NoError(t, store.WriteBlob(ctx, "data/planets.parquet", content))

	schema := catalog.Schema{Columns: []catalog.Column{
		{Name: "identifier", Type: catalog.TypeInteger, Aliases: []string{"id"}},
	}}

	_, err := manifest.BuildEntry(ctx, store, "data/planets.parquet", schema)
	require.NoError(t, err)
}

func TestBuildEntryUnreadableBlob(t *testing.T) {
	ctx := testcontext.New(t)
	store := teststore.New()

	_, err := manifest.BuildEntry(ctx, store, "data/absent.parquet", catalog.Schema{})
	require.True(t, manifest.ErrUnableToReadBlob.Has(err))
}
