// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/manifest"
)

func testSchema() catalog.Schema {
	return catalog.Schema{Columns: []catalog.Column{
		{Name: "integer", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeVarchar},
		{Name: "observed", Type: catalog.TypeTimestamp},
	}}
}

func TestParseFilters(t *testing.T) {
	filters, err := manifest.ParseFilters("integer=10", testSchema())
	require.NoError(t, err)
	require.Equal(t, []manifest.Filter{{Column: "integer", Op: "=", Value: 10}}, filters)

	filters, err = manifest.ParseFilters("integer>3, name='bob'", testSchema())
	require.NoError(t, err)
	require.Len(t, filters, 2)
	require.Equal(t, "integer", filters[0].Column)
	require.Equal(t, ">", filters[0].Op)
	require.Equal(t, "name", filters[1].Column)

	name, ok := manifest.ToInt("bob")
	require.True(t, ok)
	require.Equal(t, name, filters[1].Value)
}

func TestParseFiltersTimestamp(t *testing.T) {
	filters, err := manifest.ParseFilters("observed>2024-01-01", testSchema())
	require.NoError(t, err)
	require.Len(t, filters, 1)
	require.Equal(t, int64(1704067200), filters[0].Value)
}

func TestParseFiltersErrors(t *testing.T) {
	_, err := manifest.ParseFilters("integer~10", testSchema())
	require.True(t, manifest.ErrInvalidFilter.Has(err))

	_, err = manifest.ParseFilters("integer=ten", testSchema())
	require.True(t, manifest.ErrInvalidFilter.Has(err))

	// unknown columns never prune, the conjunct is dropped
	filters, err := manifest.ParseFilters("unknown=10", testSchema())
	require.NoError(t, err)
	require.Empty(t, filters)

	filters, err = manifest.ParseFilters("", testSchema())
	require.NoError(t, err)
	require.Nil(t, filters)
}

func TestPruneCusps(t *testing.T) {
	entry := manifest.Entry{
		LowerBounds: map[string]int64{"integer": -10},
		UpperBounds: map[string]int64{"integer": 10},
	}

	tests := []struct {
		filter string
		pruned bool
	}{
		{"integer=11", true},
		{"integer=-11", true},
		{"integer=-10", false},
		{"integer=0", false},
		{"integer=10", false},
		{"integer>10", false}, // equality at the upper bound is retained
		{"integer>11", true},
		{"integer<-10", false},
		{"integer<-11", true},
		{"integer>=10", false},
		{"integer<=-10", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			filters, err := manifest.ParseFilters(tt.filter, testSchema())
			require.NoError(t, err)
			require.Equal(t, tt.pruned, manifest.Prune(entry, filters))
		})
	}
}

func TestPruneMissingBounds(t *testing.T) {
	filters, err := manifest.ParseFilters("integer=999", testSchema())
	require.NoError(t, err)

	// no bounds at all
	require.False(t, manifest.Prune(manifest.Entry{}, filters))

	// one-sided bounds never prune
	require.False(t, manifest.Prune(manifest.Entry{
		LowerBounds: map[string]int64{"integer": 0},
	}, filters))
}

func TestPruneConjunction(t *testing.T) {
	entry := manifest.Entry{
		LowerBounds: map[string]int64{"integer": 0, "other": 0},
		UpperBounds: map[string]int64{"integer": 10, "other": 10},
	}

	schema := catalog.Schema{Columns: []catalog.Column{
		{Name: "integer", Type: catalog.TypeInteger},
		{Name: "other", Type: catalog.TypeInteger},
	}}

	// any failing conjunct prunes the entry
	filters, err := manifest.ParseFilters("integer=5, other=11", schema)
	require.NoError(t, err)
	require.True(t, manifest.Prune(entry, filters))

	filters, err = manifest.ParseFilters("integer=5, other=5", schema)
	require.NoError(t, err)
	require.False(t, manifest.Prune(entry, filters))
}
