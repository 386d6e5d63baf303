// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package catalog defines the entities tracked by the metadata catalog and
// the provider contract used to persist them.
package catalog

import (
	"regexp"

	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/eventing"
)

var (
	// Error is the default error class for the catalog package.
	Error = errs.Class("catalog")

	// ErrTableNotFound is returned when a table reference cannot be resolved.
	ErrTableNotFound = errs.Class("table not found")
	// ErrOwnerNotFound is returned when an owner reference cannot be resolved.
	ErrOwnerNotFound = errs.Class("owner not found")
	// ErrViewNotFound is returned when a view reference cannot be resolved.
	ErrViewNotFound = errs.Class("view not found")
	// ErrAlreadyExists is returned when creating an entity whose name is taken.
	ErrAlreadyExists = errs.Class("already exists")
	// ErrValueChanged is returned by compare-and-swap updates when the stored
	// entry no longer matches the expected state.
	ErrValueChanged = errs.Class("value changed")
	// ErrDataEntry is returned when a request payload fails validation.
	ErrDataEntry = errs.Class("data entry error")
	// ErrInvalidSchemaTransition is returned when a proposed schema cannot be
	// reached from the current one.
	ErrInvalidSchemaTransition = errs.Class("invalid schema transition")
)

var identifierRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as an owner, table, view or
// column identifier.
func ValidIdentifier(name string) bool {
	return identifierRx.MatchString(name)
}

// OwnerType distinguishes organizational namespaces from personal ones.
type OwnerType string

// Possible owner types.
const (
	OwnerTypeOrganization OwnerType = "ORGANIZATION"
	OwnerTypeIndividual   OwnerType = "INDIVIDUAL"
)

// TableVisibility controls who can discover a table.
type TableVisibility string

// Possible visibilities.
const (
	VisibilityPrivate  TableVisibility = "PRIVATE"
	VisibilityInternal TableVisibility = "INTERNAL"
	VisibilityPublic   TableVisibility = "PUBLIC"
)

// TableDisposition describes how the table's data is maintained.
type TableDisposition string

// Possible dispositions.
const (
	DispositionSnapshot   TableDisposition = "SNAPSHOT"
	DispositionContinuous TableDisposition = "CONTINUOUS"
	DispositionExternal   TableDisposition = "EXTERNAL"
)

// RolePermission is the level of access granted to a role.
type RolePermission string

// Possible permissions.
const (
	PermissionRead  RolePermission = "READ"
	PermissionWrite RolePermission = "WRITE"
	PermissionOwn   RolePermission = "OWN"
)

// ColumnType is the logical type of a column. The set mirrors the types the
// statistics packer understands; anything else is stored but never pruned on.
type ColumnType string

// Recognized column types.
const (
	TypeVarchar   ColumnType = "VARCHAR"
	TypeInteger   ColumnType = "INTEGER"
	TypeDouble    ColumnType = "DOUBLE"
	TypeDecimal   ColumnType = "DECIMAL"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeDate      ColumnType = "DATE"
	TypeTime      ColumnType = "TIME"
	TypeBlob      ColumnType = "BLOB"
)

// Column describes one column of a table schema. Aliases allow a column to
// be matched under previous names after a rename.
type Column struct {
	Name        string     `json:"name"`
	Default     any        `json:"default"`
	Type        ColumnType `json:"type"`
	Description string     `json:"description,omitempty"`
	Aliases     []string   `json:"aliases,omitempty"`
}

// Matches reports whether the column answers to name, either directly or via
// an alias.
func (c Column) Matches(name string) bool {
	if c.Name == name {
		return true
	}
	for _, alias := range c.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Column finds a column by name or alias.
func (s Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Matches(name) {
			return col, true
		}
	}
	return Column{}, false
}

// Normalize fills in defaults for fields the client may omit.
func (s *Schema) Normalize() {
	for i := range s.Columns {
		if s.Columns[i].Type == "" {
			s.Columns[i].Type = TypeVarchar
		}
	}
}

// Validate checks that every column name and alias is a valid identifier and
// that the combined set of names and aliases has no duplicates.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		names := append([]string{col.Name}, col.Aliases...)
		for _, name := range names {
			if !ValidIdentifier(name) {
				return ErrDataEntry.New("column name %q is not a valid identifier", name)
			}
			if seen[name] {
				return ErrDataEntry.New("column name %q appears more than once", name)
			}
			seen[name] = true
		}
	}
	return nil
}

// EncryptionDetails records how the table's data files are encrypted.
type EncryptionDetails struct {
	Algorithm string   `json:"algorithm"`
	KeyID     string   `json:"key_id"`
	Fields    []string `json:"fields"`
}

// DatasetPermissions grants a role a level of access to a table.
type DatasetPermissions struct {
	Role       string         `json:"role"`
	Permission RolePermission `json:"permission"`
}

// OwnerEntry is the catalog document for a namespace.
type OwnerEntry struct {
	Name          string                  `json:"name"`
	OwnerID       string                  `json:"owner_id"`
	Type          OwnerType               `json:"type"`
	Steward       string                  `json:"steward"`
	Description   string                  `json:"description,omitempty"`
	Memberships   []string                `json:"memberships"`
	CreatedAt     int64                   `json:"created_at"`
	Subscriptions []eventing.Subscription `json:"subscriptions,omitempty"`
}

// Validate checks the invariants of an owner document.
func (o *OwnerEntry) Validate() error {
	if !ValidIdentifier(o.Name) {
		return ErrDataEntry.New("owner name %q is not a valid identifier", o.Name)
	}
	switch o.Type {
	case OwnerTypeOrganization, OwnerTypeIndividual:
	default:
		return ErrDataEntry.New("unknown owner type %q", o.Type)
	}
	return nil
}

// TableCatalogEntry is the catalog document for a table. The current commit
// and history pointers are null until the first commit lands.
type TableCatalogEntry struct {
	Name                string                  `json:"name"`
	Steward             string                  `json:"steward"`
	Owner               string                  `json:"owner"`
	TableID             string                  `json:"table_id"`
	Description         string                  `json:"description,omitempty"`
	Location            string                  `json:"location,omitempty"`
	Partitioning        []string                `json:"partitioning,omitempty"`
	LastUpdatedMS       int64                   `json:"last_updated_ms"`
	Permissions         []DatasetPermissions    `json:"permissions"`
	Visibility          TableVisibility         `json:"visibility"`
	CurrentSchema       Schema                  `json:"current_schema"`
	CurrentCommitSHA    *string                 `json:"current_commit_sha"`
	CurrentHistory      *string                 `json:"current_history"`
	FormatVersion       int                     `json:"format_version"`
	Disposition         TableDisposition        `json:"disposition"`
	Metadata            map[string]any          `json:"metadata"`
	FreshnessLifeInDays int64                   `json:"freshness_life_in_days"`
	RetentionInDays     int64                   `json:"retention_in_days"`
	Encryption          *EncryptionDetails      `json:"encryption,omitempty"`
	Subscriptions       []eventing.Subscription `json:"subscriptions,omitempty"`
}

// Validate checks the invariants of a table document.
func (t *TableCatalogEntry) Validate() error {
	if !ValidIdentifier(t.Name) {
		return ErrDataEntry.New("table name %q is not a valid identifier", t.Name)
	}
	if !ValidIdentifier(t.Owner) {
		return ErrDataEntry.New("owner name %q is not a valid identifier", t.Owner)
	}
	return t.CurrentSchema.Validate()
}

// Ref returns the fully qualified table reference.
func (t *TableCatalogEntry) Ref() string {
	return t.Owner + "." + t.Name
}

// ViewCatalogEntry is the catalog document for a view.
type ViewCatalogEntry struct {
	Name          string         `json:"name"`
	ViewID        string         `json:"view_id"`
	Owner         string         `json:"owner"`
	Steward       string         `json:"steward,omitempty"`
	Statement     string         `json:"statement"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	LastUpdatedMS int64          `json:"last_updated_ms"`
}
