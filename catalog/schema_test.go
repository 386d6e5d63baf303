// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabel-dev/tarchia/catalog"
)

func columns(cols ...catalog.Column) catalog.Schema {
	return catalog.Schema{Columns: cols}
}

func TestValidateSchemaUpdate(t *testing.T) {
	current := columns(
		catalog.Column{Name: "id", Type: catalog.TypeInteger},
		catalog.Column{Name: "name", Type: catalog.TypeVarchar},
	)

	tests := []struct {
		name     string
		proposed catalog.Schema
		ok       bool
	}{
		{
			name:     "unchanged",
			proposed: current,
			ok:       true,
		},
		{
			name: "widen integer to double",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeDouble},
				catalog.Column{Name: "name", Type: catalog.TypeVarchar},
			),
			ok: true,
		},
		{
			name: "narrow not allowed",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeBoolean},
				catalog.Column{Name: "name", Type: catalog.TypeVarchar},
			),
			ok: false,
		},
		{
			name: "added column with default",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeInteger},
				catalog.Column{Name: "name", Type: catalog.TypeVarchar},
				catalog.Column{Name: "mass", Type: catalog.TypeDouble, Default: 0.0},
			),
			ok: true,
		},
		{
			name: "added column without default",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeInteger},
				catalog.Column{Name: "name", Type: catalog.TypeVarchar},
				catalog.Column{Name: "mass", Type: catalog.TypeDouble},
			),
			ok: false,
		},
		{
			name: "rename via alias",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeInteger},
				catalog.Column{Name: "title", Type: catalog.TypeVarchar, Aliases: []string{"name"}},
			),
			ok: true,
		},
		{
			name: "alias claims two existing columns",
			proposed: columns(
				catalog.Column{Name: "id", Type: catalog.TypeInteger, Aliases: []string{"name"}},
			),
			ok: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := catalog.ValidateSchemaUpdate(current, test.proposed)
			if test.ok {
				require.NoError(t, err)
			} else {
				require.True(t, catalog.ErrInvalidSchemaTransition.Has(err))
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"planets", "_private", "a", "Table_1", "snake_case_name"}
	for _, name := range valid {
		require.True(t, catalog.ValidIdentifier(name), name)
	}

	invalid := []string{"", "$owner", "1planets", "has space", "dash-ed", "dot.ted", "owner/table", "naïve"}
	for _, name := range invalid {
		require.False(t, catalog.ValidIdentifier(name), name)
	}
}
