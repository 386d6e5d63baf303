// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

// allowedTypeChanges lists the type transitions a schema update may make
// without rewriting data files. Everything else is rejected.
var allowedTypeChanges = map[ColumnType]ColumnType{
	TypeInteger: TypeDouble,
	TypeBoolean: TypeInteger,
	TypeDate:    TypeTimestamp,
}

// ValidateSchemaUpdate decides whether proposed can replace current. Added
// columns must carry a default so existing files stay readable. A renamed
// column must list its previous name as an alias and may not claim more than
// one existing column. Type changes are limited to allowedTypeChanges.
func ValidateSchemaUpdate(current, proposed Schema) error {
	if err := proposed.Validate(); err != nil {
		return ErrInvalidSchemaTransition.Wrap(err)
	}

	existing := make(map[string]ColumnType, len(current.Columns))
	for _, col := range current.Columns {
		existing[col.Name] = col.Type
	}

	for _, col := range proposed.Columns {
		var sources []string
		for _, name := range append([]string{col.Name}, col.Aliases...) {
			if _, ok := existing[name]; ok {
				sources = append(sources, name)
			}
		}

		switch len(sources) {
		case 0:
			if col.Default == nil {
				return ErrInvalidSchemaTransition.New("added column %q must have a default value", col.Name)
			}
		case 1:
			from, to := existing[sources[0]], col.Type
			if from != to && allowedTypeChanges[from] != to {
				return ErrInvalidSchemaTransition.New("column %q cannot change type from %s to %s", col.Name, from, to)
			}
		default:
			return ErrInvalidSchemaTransition.New("column %q maps to multiple existing columns %v", col.Name, sources)
		}
	}
	return nil
}
