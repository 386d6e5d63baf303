// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package rediscatalog is the Redis catalog backend. Documents are JSON
// values keyed by entity id under a shared prefix; compare-and-swap rides on
// redis WATCH so a table update only lands if the watched document did not
// move underneath it.
package rediscatalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/catalog"
)

var (
	// Error is the default error class for the rediscatalog package.
	Error = errs.Class("rediscatalog")

	mon = monkit.Package()
)

// Catalog is a catalog.Provider over a Redis database.
type Catalog struct {
	db     *redis.Client
	prefix string
}

// Open connects to Redis at address and verifies the connection. The prefix
// namespaces this catalog's keys, so several catalogs can share a database.
func Open(ctx context.Context, address, password string, db int, prefix string) (*Catalog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}
	if prefix == "" {
		prefix = "tarchia"
	}
	return &Catalog{db: client, prefix: prefix}, nil
}

func (cat *Catalog) tableKey(tableID string) string { return cat.prefix + "/table/" + tableID }
func (cat *Catalog) ownerKey(ownerID string) string { return cat.prefix + "/owner/" + ownerID }
func (cat *Catalog) viewKey(viewID string) string   { return cat.prefix + "/view/" + viewID }

// scan walks every key under match and hands the stored JSON to fn.
func (cat *Catalog) scan(ctx context.Context, match string, fn func(raw []byte) error) error {
	it := cat.db.Scan(ctx, 0, match, 0).Iterator()

	var lastKey string
	var lastOk bool
	for it.Next(ctx) {
		key := it.Val()
		// redis may return duplicates
		if lastOk && key == lastKey {
			continue
		}
		lastKey, lastOk = key, true

		raw, err := cat.db.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Error.Wrap(err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return Error.Wrap(it.Err())
}

// GetTable implements catalog.Provider.
func (cat *Catalog) GetTable(ctx context.Context, owner, table string) (_ *catalog.TableCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	var found *catalog.TableCatalogEntry
	err = cat.scan(ctx, cat.tableKey("*"), func(raw []byte) error {
		var entry catalog.TableCatalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Error.Wrap(err)
		}
		if entry.Owner == owner && entry.Name == table {
			found = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, catalog.ErrTableNotFound.New("%s.%s", owner, table)
	}
	return found, nil
}

// ListTables implements catalog.Provider.
func (cat *Catalog) ListTables(ctx context.Context, owner string) (_ []*catalog.TableCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	var entries []*catalog.TableCatalogEntry
	err = cat.scan(ctx, cat.tableKey("*"), func(raw []byte) error {
		var entry catalog.TableCatalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Error.Wrap(err)
		}
		if entry.Owner == owner {
			entries = append(entries, &entry)
		}
		return nil
	})
	return entries, err
}

// UpdateTable implements catalog.Provider.
func (cat *Catalog) UpdateTable(ctx context.Context, tableID string, entry *catalog.TableCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	raw, err := json.Marshal(entry)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(cat.db.Set(ctx, cat.tableKey(tableID), raw, 0).Err())
}

// CompareAndSwapTable implements catalog.Provider.
func (cat *Catalog) CompareAndSwapTable(ctx context.Context, tableID string, expectCommitSHA *string, entry *catalog.TableCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	key := cat.tableKey(tableID)
	raw, err := json.Marshal(entry)
	if err != nil {
		return Error.Wrap(err)
	}

	txf := func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return catalog.ErrTableNotFound.New("table id %q", tableID)
		}
		if err != nil {
			return Error.Wrap(err)
		}

		var current catalog.TableCatalogEntry
		if err := json.Unmarshal(stored, &current); err != nil {
			return Error.Wrap(err)
		}
		if !shaEqual(current.CurrentCommitSHA, expectCommitSHA) {
			return catalog.ErrValueChanged.New("table %s moved past the expected commit", current.Ref())
		}

		// runs only if the watched key remains unchanged
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return pipe.Set(ctx, key, raw, 0).Err()
		})
		return Error.Wrap(err)
	}

	err = cat.db.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return catalog.ErrValueChanged.New("table id %q", tableID)
	}
	return err
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
	return Error.Wrap(cat.db.Del(ctx, cat.tableKey(tableID)).Err())
}

// GetOwner implements catalog.Provider.
func (cat *Catalog) GetOwner(ctx context.Context, name string) (_ *catalog.OwnerEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	var found *catalog.OwnerEntry
	err = cat.scan(ctx, cat.ownerKey("*"), func(raw []byte) error {
		var entry catalog.OwnerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Error.Wrap(err)
		}
		if entry.Name == name {
			found = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, catalog.ErrOwnerNotFound.New("%s", name)
	}
	return found, nil
}

// UpdateOwner implements catalog.Provider.
func (cat *Catalog) UpdateOwner(ctx context.Context, entry *catalog.OwnerEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	raw, err := json.Marshal(entry)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(cat.db.Set(ctx, cat.ownerKey(entry.OwnerID), raw, 0).Err())
}

// DeleteOwner implements catalog.Provider.
func (cat *Catalog) DeleteOwner(ctx context.Context, ownerID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(cat.db.Del(ctx, cat.ownerKey(ownerID)).Err())
}

// GetView implements catalog.Provider.
func (cat *Catalog) GetView(ctx context.Context, owner, view string) (_ *catalog.ViewCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	var found *catalog.ViewCatalogEntry
	err = cat.scan(ctx, cat.viewKey("*"), func(raw []byte) error {
		var entry catalog.ViewCatalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Error.Wrap(err)
		}
		if entry.Owner == owner && entry.Name == view {
			found = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, catalog.ErrViewNotFound.New("%s.%s", owner, view)
	}
	return found, nil
}

// ListViews implements catalog.Provider.
func (cat *Catalog) ListViews(ctx context.Context, owner string) (_ []*catalog.ViewCatalogEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	var entries []*catalog.ViewCatalogEntry
	err = cat.scan(ctx, cat.viewKey("*"), func(raw []byte) error {
		var entry catalog.ViewCatalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Error.Wrap(err)
		}
		if entry.Owner == owner {
			entries = append(entries, &entry)
		}
		return nil
	})
	return entries, err
}

// UpdateView implements catalog.Provider.
func (cat *Catalog) UpdateView(ctx context.Context, viewID string, entry *catalog.ViewCatalogEntry) (err error) {
	defer mon.Task()(&ctx)(&err)

	raw, err := json.Marshal(entry)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(cat.db.Set(ctx, cat.viewKey(viewID), raw, 0).Err())
}

// DeleteView implements catalog.Provider.
func (cat *Catalog) DeleteView(ctx context.Context, viewID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(cat.db.Del(ctx, cat.viewKey(viewID)).Err())
}

// Close closes the client.
func (cat *Catalog) Close() error {
	return cat.db.Close()
}

var _ catalog.Provider = (*Catalog)(nil)
