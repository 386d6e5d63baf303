// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package firestorecatalog is the Firestore catalog backend. All documents
// live in one collection: tables, owners and views are distinguished by a
// relation field and keyed as table-<id>, owner-<id> and view-<id>.
// Compare-and-swap uses a Firestore transaction, which aborts on concurrent
// modification of the read document.
package firestorecatalog

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/firestore"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mabel-dev/tarchia/catalog"
)

var (
	// Error is the default error class for the firestorecatalog package.
	Error = errs.Class("firestorecatalog")

	mon = monkit.Package()
)

const (
	relationTable = "table"
	relationOwner = "owner"
	relationView  = "view"
)

// Catalog is a catalog.Provider over one Firestore collection.
type Catalog struct {
	client     *firestore.Client
	collection string
}

// Open connects to Firestore in the given project, storing documents in the
// named collection.
func Open(ctx context.Context, project, collection string) (*Catalog, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if collection == "" {
		collection = "tarchia"
	}
	return &Catalog{client: client, collection: collection}, nil
}

// encode flattens an entry to a Firestore document through its JSON form, so
// the queryable field names match the wire names.
func encode(entry any, relation string) (map[string]any, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, Error.Wrap(err)
	}
	doc["relation"] = relation
	return doc, nil
}

func decode(doc map[string]any, entry any) error {
	delete(doc, "relation")
	raw, err := json.Marshal(doc)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(json.Unmarshal(raw, entry))
}

func (cat *Catalog) docs() *firestore.CollectionRef {
	return cat.client.Collection(cat.collection)
}

// one runs the query and decodes the single matching document into entry.
func (cat *Catalog) one(ctx context.Context, query firestore.Query, entry any) (bool, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, Error.Wrap(err)
	}
	return true, decode(snap.Data(), entry)
}

// GetTable implements catalog.Provider.
func (cat *Catalog) GetTable(ctx context.Context, owner, table string) (_ *catalog.TableCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	query := cat.docs().
		Where("relation", "==", relationTable).
		Where("owner", "==", owner).
		Where("name", "==", table)

	var entry catalog.TableCatalogEntry
	found, err := cat.one(ctx, query, &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, catalog.ErrTableNotFound.New("%s.%s", owner, table)
	}
	return &entry, nil
}

// ListTables implements catalog.Provider.
func (cat *Catalog) ListTables(ctx context.Context, owner string) (_ []*catalog.TableCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	iter := cat.docs().
		Where("relation", "==", relationTable).
		Where("owner", "==", owner).
		Documents(ctx)
	defer iter.Stop()

	var entries []*catalog.TableCatalogEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return entries, nil
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}
		var entry catalog.TableCatalogEntry
		if err := decode(snap.Data(), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
}

// UpdateTable implements catalog.Provider.
func (cat *Catalog) UpdateTable(ctx context.Context, tableID string, entry *catalog.TableCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	doc, err := encode(entry, relationTable)
	if err != nil {
		return err
	}
	_, err = cat.docs().Doc("table-"+tableID).Set(ctx, doc)
	return Error.Wrap(err)
}

// CompareAndSwapTable implements catalog.Provider.
func (cat *Catalog) CompareAndSwapTable(ctx context.Context, tableID string, expectCommitSHA *string, entry *catalog.TableCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	doc, err := encode(entry, relationTable)
	if err != nil {
		return err
	}
	ref := cat.docs().Doc("table-" + tableID)

	return cat.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return catalog.ErrTableNotFound.New("table id %q", tableID)
		}
		if err != nil {
			return Error.Wrap(err)
		}

		var current catalog.TableCatalogEntry
		if err := decode(snap.Data(), &current); err != nil {
			return err
		}
		if !shaEqual(current.CurrentCommitSHA, expectCommitSHA) {
			return catalog.ErrValueChanged.New("table %s moved past the expected commit", current.Ref())
		}
		return Error.Wrap(tx.Set(ref, doc))
	})
}

func shaEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DeleteTable implements catalog.Provider.
func (cat *Catalog) DeleteTable(ctx context.Context, tableID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	_, err = cat.docs().Doc("table-" + tableID).Delete(ctx)
	return Error.Wrap(err)
}

// GetOwner implements catalog.Provider.
func (cat *Catalog) GetOwner(ctx context.Context, name string) (_ *catalog.OwnerEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	query := cat.docs().
		Where("relation", "==", relationOwner).
		Where("name", "==", name)

	var entry catalog.OwnerEntry
	found, err := cat.one(ctx, query, &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, catalog.ErrOwnerNotFound.New("%s", name)
	}
	return &entry, nil
}

// UpdateOwner implements catalog.Provider.
func (cat *Catalog) UpdateOwner(ctx context.Context, entry *catalog.OwnerEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	doc, err := encode(entry, relationOwner)
	if err != nil {
		return err
	}
	_, err = cat.docs().Doc("owner-"+entry.OwnerID).Set(ctx, doc)
	return Error.Wrap(err)
}

// DeleteOwner implements catalog.Provider.
func (cat *Catalog) DeleteOwner(ctx context.Context, ownerID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	_, err = cat.docs().Doc("owner-" + ownerID).Delete(ctx)
	return Error.Wrap(err)
}

// GetView implements catalog.Provider.
func (cat *Catalog) GetView(ctx context.Context, owner, view string) (_ *catalog.ViewCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	query := cat.docs().
		Where("relation", "==", relationView).
		Where("owner", "==", owner).
		Where("name", "==", view)

	var entry catalog.ViewCatalogEntry
	found, err := cat.one(ctx, query, &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, catalog.ErrViewNotFound.New("%s.%s", owner, view)
	}
	return &entry, nil
}

// ListViews implements catalog.Provider.
func (cat *Catalog) ListViews(ctx context.Context, owner string) (_ []*catalog.ViewCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	iter := cat.docs().
		Where("relation", "==", relationView).
		Where("owner", "==", owner).
		Documents(ctx)
	defer iter.Stop()

	var entries []*catalog.ViewCatalogEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return entries, nil
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}
		var entry catalog.ViewCatalogEntry
		if err := decode(snap.Data(), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
}

// UpdateView implements catalog.Provider.
func (cat *Catalog) UpdateView(ctx context.Context, viewID string, entry *catalog.ViewCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	doc, err := encode(entry, relationView)
	if err != nil {
		return err
	}
	_, err = cat.docs().Doc("view-"+viewID).Set(ctx, doc)
	return Error.Wrap(err)
}

// DeleteView implements catalog.Provider.
func (cat *Catalog) DeleteView(ctx context.Context, viewID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	_, err = cat.docs().Doc("view-" + viewID).Delete(ctx)
	return Error.Wrap(err)
}

// Close closes the client.
func (cat *Catalog) Close() error {
	return cat.client.Close()
}

var _ catalog.Provider = (*Catalog)(nil)
