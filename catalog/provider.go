// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"context"
)

// Config selects and configures the catalog backend.
type Config struct {
	Provider string `help:"catalog backend to use (DEVELOPMENT, REDIS, FIRESTORE)" default:"DEVELOPMENT"`
	Name     string `help:"catalog name: file path, key prefix or collection name" default:"catalog.json"`
	Address  string `help:"address of the catalog backend, where applicable" default:"localhost:6379"`
	Password string `help:"password for the REDIS provider" default:""`
	Database int    `help:"database number for the REDIS provider" default:"0"`
	Project  string `help:"cloud project for the FIRESTORE provider" default:""`
}

// Provider is the document store holding table, owner and view entries.
//
// Implementations must serialize updates per document: CompareAndSwapTable
// succeeds only when the stored entry's current_commit_sha still equals
// expectCommitSHA (nil matches a table with no commits) and returns
// ErrValueChanged otherwise. A backend that can only offer last-writer-wins
// upserts cannot host the commit engine.
type Provider interface {
	// GetTable returns the entry for owner.table, or ErrTableNotFound.
	GetTable(ctx context.Context, owner, table string) (*TableCatalogEntry, error)
	// ListTables returns all table entries under the owner.
	ListTables(ctx context.Context, owner string) ([]*TableCatalogEntry, error)
	// UpdateTable creates or replaces the entry stored for tableID.
	UpdateTable(ctx context.Context, tableID string, entry *TableCatalogEntry) error
	// CompareAndSwapTable replaces the entry stored for tableID only if its
	// current_commit_sha equals expectCommitSHA.
	CompareAndSwapTable(ctx context.Context, tableID string, expectCommitSHA *string, entry *TableCatalogEntry) error
	// DeleteTable removes the entry stored for tableID.
	DeleteTable(ctx context.Context, tableID string) error

	// GetOwner returns the owner entry by name, or ErrOwnerNotFound.
	GetOwner(ctx context.Context, name string) (*OwnerEntry, error)
	// UpdateOwner creates or replaces the entry stored for entry.OwnerID.
	UpdateOwner(ctx context.Context, entry *OwnerEntry) error
	// DeleteOwner removes the entry stored for ownerID.
	DeleteOwner(ctx context.Context, ownerID string) error

	// GetView returns the entry for owner.view, or ErrViewNotFound.
	GetView(ctx context.Context, owner, view string) (*ViewCatalogEntry, error)
	// ListViews returns all view entries under the owner.
	ListViews(ctx context.Context, owner string) ([]*ViewCatalogEntry, error)
	// UpdateView creates or replaces the entry stored for viewID.
	UpdateView(ctx context.Context, viewID string, entry *ViewCatalogEntry) error
	// DeleteView removes the entry stored for viewID.
	DeleteView(ctx context.Context, viewID string) error

	// Close releases any resources held by the provider.
	Close() error
}
