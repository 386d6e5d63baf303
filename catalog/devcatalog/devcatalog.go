// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package devcatalog is the development catalog backend: a single JSON
// document on local disk, rewritten atomically on every change. With an
// empty path the catalog lives in memory only, which is what the tests use.
package devcatalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/catalog"
)

// Error is the default error class for the devcatalog package.
var Error = errs.Class("devcatalog")

type documents struct {
	Tables map[string]*catalog.TableCatalogEntry `json:"tables"`
	Owners map[string]*catalog.OwnerEntry        `json:"owners"`
	Views  map[string]*catalog.ViewCatalogEntry  `json:"views"`
}

// Catalog is a catalog.Provider over one JSON file. A process-wide mutex
// serializes every operation, which makes compare-and-swap trivial and is
// plenty for a development deployment.
type Catalog struct {
	mu   sync.Mutex
	path string
	docs documents
}

// Open loads the catalog file at path, creating an empty catalog if the file
// does not exist yet. An empty path keeps the catalog in memory.
func Open(path string) (*Catalog, error) {
	cat := &Catalog{
		path: path,
		docs: documents{
			Tables: map[string]*catalog.TableCatalogEntry{},
			Owners: map[string]*catalog.OwnerEntry{},
			Views:  map[string]*catalog.ViewCatalogEntry{},
		},
	}
	if path == "" {
		return cat, nil
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cat, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := json.Unmarshal(content, &cat.docs); err != nil {
		return nil, Error.New("catalog file %q is corrupt: %v", path, err)
	}
	return cat, nil
}

// persist rewrites the catalog file. Callers hold the mutex.
func (cat *Catalog) persist() error {
	if cat.path == "" {
		return nil
	}
	content, err := json.MarshalIndent(cat.docs, "", "  ")
	if err != nil {
		return Error.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cat.path), ".catalog-*")
	if err != nil {
		return Error.Wrap(err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Error.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Error.Wrap(err)
	}
	return Error.Wrap(os.Rename(tmp.Name(), cat.path))
}

// clone isolates stored documents from caller mutation.
func clone[T any](in *T) *T {
	content, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(content, out); err != nil {
		panic(err)
	}
	return out
}

// GetTable implements catalog.Provider.
func (cat *Catalog) GetTable(ctx context.Context, owner, table string) (*catalog.TableCatalogEntry, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for _, entry := range cat.docs.Tables {
		if entry.Owner == owner && entry.Name == table {
			return clone(entry), nil
		}
	}
	return nil, catalog.ErrTableNotFound.New("%s.%s", owner, table)
}

// ListTables implements catalog.Provider.
func (cat *Catalog) ListTables(ctx context.Context, owner string) ([]*catalog.TableCatalogEntry, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	var entries []*catalog.TableCatalogEntry
	for _, entry := range cat.docs.Tables {
		if entry.Owner == owner {
			entries = append(entries, clone(entry))
		}
	}
	return entries, nil
}

// UpdateTable implements catalog.Provider.
func (cat *Catalog) UpdateTable(ctx context.Context, tableID string, entry *catalog.TableCatalogEntry) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	cat.docs.Tables[tableID] = clone(entry)
	return cat.persist()
}

// CompareAndSwapTable implements catalog.Provider.
func (cat *Catalog) CompareAndSwapTable(ctx context.Context, tableID string, expectCommitSHA *string, entry *catalog.TableCatalogEntry) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	stored, ok := cat.docs.Tables[tableID]
	if !ok {
		return catalog.ErrTableNotFound.New("table id %q", tableID)
	}
	if !shaEqual(stored.CurrentCommitSHA, expectCommitSHA) {
		return catalog.ErrValueChanged.New("table %s moved past the expected commit", stored.Ref())
	}
	cat.docs.Tables[tableID] = clone(entry)
	return cat.persist()
}

func shaEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DeleteTable implements catalog.Provider.
func (cat *Catalog) DeleteTable(ctx context.Context, tableID string) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	delete(cat.docs.Tables, tableID)
	return cat.persist()
}

// GetOwner implements catalog.Provider.
func (cat *Catalog) GetOwner(ctx context.Context, name string) (*catalog.OwnerEntry, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for _, entry := range cat.docs.Owners {
		if entry.Name == name {
			return clone(entry), nil
		}
	}
	return nil, catalog.ErrOwnerNotFound.New("%s", name)
}

// UpdateOwner implements catalog.Provider.
func (cat *Catalog) UpdateOwner(ctx context.Context, entry *catalog.OwnerEntry) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	cat.docs.Owners[entry.OwnerID] = clone(entry)
	return cat.persist()
}

// DeleteOwner implements catalog.Provider.
func (cat *Catalog) DeleteOwner(ctx context.Context, ownerID string) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	delete(cat.docs.Owners, ownerID)
	return cat.persist()
}

// GetView implements catalog.Provider.
func (cat *Catalog) GetView(ctx context.Context, owner, view string) (*catalog.ViewCatalogEntry, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	for _, entry := range cat.docs.Views {
		if entry.Owner == owner && entry.Name == view {
			return clone(entry), nil
		}
	}
	return nil, catalog.ErrViewNotFound.New("%s.%s", owner, view)
}

// ListViews implements catalog.Provider.
func (cat *Catalog) ListViews(ctx context.Context, owner string) ([]*catalog.ViewCatalogEntry, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	var entries []*catalog.ViewCatalogEntry
	for _, entry := range cat.docs.Views {
		if entry.Owner == owner {
			entries = append(entries, clone(entry))
		}
	}
	return entries, nil
}

// UpdateView implements catalog.Provider.
func (cat *Catalog) UpdateView(ctx context.Context, viewID string, entry *catalog.ViewCatalogEntry) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	cat.docs.Views[viewID] = clone(entry)
	return cat.persist()
}

// DeleteView implements catalog.Provider.
func (cat *Catalog) DeleteView(ctx context.Context, viewID string) error {
	cat.mu.Lock()
	defer cat.mu.Unlock()

	delete(cat.docs.Views, viewID)
	return cat.persist()
}

// Close persists any in-memory state a final time.
func (cat *Catalog) Close() error {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	return cat.persist()
}

var _ catalog.Provider = (*Catalog)(nil)
