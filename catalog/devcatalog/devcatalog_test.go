// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package devcatalog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/testcontext"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/catalog/devcatalog"
)

func tableEntry(owner, name, id string) *catalog.TableCatalogEntry {
	return &catalog.TableCatalogEntry{
		Name:    name,
		Owner:   owner,
		TableID: id,
		CurrentSchema: catalog.Schema{Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeInteger},
		}},
		Visibility:  catalog.VisibilityPrivate,
		Disposition: catalog.DispositionSnapshot,
	}
}

func TestTableRoundTrip(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cat, err := devcatalog.Open("")
	require.NoError(t, err)
	defer ctx.Check(cat.Close)

	_, err = cat.GetTable(ctx, "mabel", "planets")
	require.True(t, catalog.ErrTableNotFound.Has(err))

	require.NoError(t, cat.UpdateTable(ctx, "t1", tableEntry("mabel", "planets", "t1")))
	require.NoError(t, cat.UpdateTable(ctx, "t2", tableEntry("mabel", "moons", "t2")))
	require.NoError(t, cat.UpdateTable(ctx, "t3", tableEntry("other", "planets", "t3")))

	entry, err := cat.GetTable(ctx, "mabel", "planets")
	require.NoError(t, err)
	require.Equal(t, "t1", entry.TableID)

	entries, err := cat.ListTables(ctx, "mabel")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, cat.DeleteTable(ctx, "t1"))
	_, err = cat.GetTable(ctx, "mabel", "planets")
	require.True(t, catalog.ErrTableNotFound.Has(err))
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cat, err := devcatalog.Open("")
	require.NoError(t, err)
	defer ctx.Check(cat.Close)

	require.NoError(t, cat.UpdateTable(ctx, "t1", tableEntry("mabel", "planets", "t1")))

	entry, err := cat.GetTable(ctx, "mabel", "planets")
	require.NoError(t, err)
	entry.Name = "mutated"

	fresh, err := cat.GetTable(ctx, "mabel", "planets")
	require.NoError(t, err)
	require.Equal(t, "planets", fresh.Name)
}

func TestCompareAndSwap(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cat, err := devcatalog.Open("")
	require.NoError(t, err)
	defer ctx.Check(cat.Close)

	require.NoError(t, cat.UpdateTable(ctx, "t1", tableEntry("mabel", "planets", "t1")))

	first := "a1"
	updated := tableEntry("mabel", "planets", "t1")
	updated.CurrentCommitSHA = &first
	require.NoError(t, cat.CompareAndSwapTable(ctx, "t1", nil, updated))

	// swapping against the stale nil expectation now fails
	err = cat.CompareAndSwapTable(ctx, "t1", nil, tableEntry("mabel", "planets", "t1"))
	require.True(t, catalog.ErrValueChanged.Has(err))

	second := "b2"
	next := tableEntry("mabel", "planets", "t1")
	next.CurrentCommitSHA = &second
	require.NoError(t, cat.CompareAndSwapTable(ctx, "t1", &first, next))

	err = cat.CompareAndSwapTable(ctx, "missing", nil, updated)
	require.True(t, catalog.ErrTableNotFound.Has(err))
}

func TestPersistence(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	path := filepath.Join(t.TempDir(), "catalog.json")

	cat, err := devcatalog.Open(path)
	require.NoError(t, err)
	require.NoError(t, cat.UpdateTable(ctx, "t1", tableEntry("mabel", "planets", "t1")))
	require.NoError(t, cat.UpdateOwner(ctx, &catalog.OwnerEntry{
		Name: "mabel", OwnerID: "o1", Type: catalog.OwnerTypeOrganization, Steward: "joocer",
	}))
	require.NoError(t, cat.Close())

	reopened, err := devcatalog.Open(path)
	require.NoError(t, err)
	defer ctx.Check(reopened.Close)

	entry, err := reopened.GetTable(ctx, "mabel", "planets")
	require.NoError(t, err)
	require.Equal(t, "t1", entry.TableID)

	owner, err := reopened.GetOwner(ctx, "mabel")
	require.NoError(t, err)
	require.Equal(t, "o1", owner.OwnerID)
}

func TestViews(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cat, err := devcatalog.Open("")
	require.NoError(t, err)
	defer ctx.Check(cat.Close)

	_, err = cat.GetView(ctx, "mabel", "recent")
	require.True(t, catalog.ErrViewNotFound.Has(err))

	require.NoError(t, cat.UpdateView(ctx, "v1", &catalog.ViewCatalogEntry{
		Name: "recent", ViewID: "v1", Owner: "mabel",
		Statement: "SELECT * FROM mabel.planets",
	}))

	view, err := cat.GetView(ctx, "mabel", "recent")
	require.NoError(t, err)
	require.Equal(t, "v1", view.ViewID)

	views, err := cat.ListViews(ctx, "mabel")
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NoError(t, cat.DeleteView(ctx, "v1"))
	_, err = cat.GetView(ctx, "mabel", "recent")
	require.True(t, catalog.ErrViewNotFound.Has(err))
}
