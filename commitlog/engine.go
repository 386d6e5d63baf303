// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package commitlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"storj.io/common/uuid"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/eventing"
	"github.com/mabel-dev/tarchia/history"
	"github.com/mabel-dev/tarchia/manifest"
	"github.com/mabel-dev/tarchia/storage"
	"github.com/mabel-dev/tarchia/transaction"
)

var mon = monkit.Package()

// Config tunes the commit engine.
type Config struct {
	MetadataRoot string `help:"blob location under which table metadata is written" default:"metadata"`
}

// Engine drives table mutations: it issues signed transactions, stages file
// additions and deletions against them, and turns a committed transaction
// into a manifest, a commit record, an advanced history tree and finally a
// compare-and-swap update of the catalog entry. The catalog swap is the only
// linearization point; everything written before it is immutable and becomes
// garbage if the swap loses.
type Engine struct {
	log     *zap.Logger
	catalog catalog.Provider
	store   storage.Provider
	signer  *transaction.Signer
	events  *eventing.Dispatcher
	layout  Layout
	nowFn   func() time.Time
}

// NewEngine assembles the commit engine.
func NewEngine(log *zap.Logger, cat catalog.Provider, store storage.Provider, signer *transaction.Signer, events *eventing.Dispatcher, config Config) *Engine {
	return &Engine{
		log:     log,
		catalog: cat,
		store:   store,
		signer:  signer,
		events:  events,
		layout:  Layout{MetadataRoot: config.MetadataRoot},
		nowFn:   time.Now,
	}
}

// SetNow allows tests to control the engine clock.
func (engine *Engine) SetNow(nowFn func() time.Time) {
	engine.nowFn = nowFn
}

// Layout exposes the engine's blob path layout.
func (engine *Engine) Layout() Layout { return engine.layout }

// Start opens a transaction against the table's state at snapshot, which is
// either a commit SHA or "head". The returned envelope freezes the parent
// commit and the schema and encryption recorded in it. Starting at head of a
// table with no commits yields an initial transaction with no parent and the
// schema of the live catalog entry.
func (engine *Engine) Start(ctx context.Context, owner, table, snapshot string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	entry, err := engine.catalog.GetTable(ctx, owner, table)
	if err != nil {
		return "", err
	}

	// stamped with the issue time; the expiry comparison in VerifyAndDecode
	// only rejects envelopes stamped in the future
	tx := &transaction.Transaction{
		ExpiresAt:  engine.nowFn().Unix(),
		Owner:      entry.Owner,
		Table:      entry.Name,
		TableID:    entry.TableID,
		Additions:  []string{},
		Deletions:  []string{},
		Encryption: entry.Encryption,
	}

	id, err := uuid.New()
	if err != nil {
		return "", Error.Wrap(err)
	}
	tx.TransactionID = id.String()

	if snapshot == "" || snapshot == "head" {
		tx.ParentCommitSHA = entry.CurrentCommitSHA
		tx.TableSchema = entry.CurrentSchema
		if entry.CurrentCommitSHA != nil {
			parent, err := engine.readCommit(ctx, entry, *entry.CurrentCommitSHA)
			if err != nil {
				if ErrCommitNotFound.Has(err) {
					return "", transaction.Error.New("parent commit %q missing for table %s", *entry.CurrentCommitSHA, entry.Ref())
				}
				return "", err
			}
			tx.TableSchema = parent.TableSchema
			tx.Encryption = parent.Encryption
		}
	} else {
		commit, err := engine.readCommit(ctx, entry, snapshot)
		if err != nil {
			return "", err
		}
		tx.ParentCommitSHA = &commit.CommitSHA
		tx.TableSchema = commit.TableSchema
		tx.Encryption = commit.Encryption
	}

	return engine.signer.EncodeAndSign(tx)
}

// Stage appends staged file additions to the transaction and returns the
// re-signed envelope. The files are not read until commit.
func (engine *Engine) Stage(ctx context.Context, envelope string, paths []string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := engine.signer.VerifyAndDecode(envelope)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", catalog.ErrDataEntry.New("no paths provided to stage")
	}
	tx.Additions = append(tx.Additions, paths...)
	return engine.signer.EncodeAndSign(tx)
}

// Unstage records file deletions on the transaction: at commit the files are
// removed from the inherited manifest by path.
func (engine *Engine) Unstage(ctx context.Context, envelope string, paths []string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := engine.signer.VerifyAndDecode(envelope)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", catalog.ErrDataEntry.New("no paths provided to remove")
	}
	tx.Deletions = append(tx.Deletions, paths...)
	return engine.signer.EncodeAndSign(tx)
}

// Truncate marks the transaction to discard the inherited file set and
// resets any staged deletions, which the truncate subsumes. It is only legal
// before any additions are staged.
func (engine *Engine) Truncate(ctx context.Context, envelope string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := engine.signer.VerifyAndDecode(envelope)
	if err != nil {
		return "", err
	}
	if len(tx.Additions) > 0 {
		return "", transaction.Error.New("cannot truncate a transaction with staged files")
	}
	tx.Truncate = true
	tx.Additions = []string{}
	tx.Deletions = []string{}
	return engine.signer.EncodeAndSign(tx)
}

// Abort verifies and discards the transaction. Envelopes are stateless, so
// there is nothing to release; the call exists so clients can confirm the
// envelope they are abandoning was valid.
func (engine *Engine) Abort(ctx context.Context, envelope string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = engine.signer.VerifyAndDecode(envelope)
	return err
}

// CommitResult reports a successful commit back to the caller.
type CommitResult struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction"`
	CommitSHA     string `json:"commit"`
	URL           string `json:"url"`
}

// Commit materializes the transaction: it builds the new manifest from the
// inherited file set plus the staged additions minus the staged deletions,
// writes the manifest, commit record and history tree, and advances the
// catalog entry by compare-and-swap. A lost swap surfaces as "commit out of
// date" and nothing the loser wrote is reachable.
func (engine *Engine) Commit(ctx context.Context, envelope, message, user, baseURL string) (_ *CommitResult, err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := engine.signer.VerifyAndDecode(envelope)
	if err != nil {
		return nil, err
	}

	entry, err := engine.catalog.GetTable(ctx, tx.Owner, tx.Table)
	if err != nil {
		return nil, err
	}
	expect := entry.CurrentCommitSHA

	// TODO: a nil parent or a nil head skips the fast-forward check, so an
	// initial transaction can race a concurrent first commit all the way to
	// the catalog swap. The swap still serializes them; tighten this check
	// once envelopes always carry a parent.
	if tx.ParentCommitSHA != nil && entry.CurrentCommitSHA != nil &&
		*tx.ParentCommitSHA != *entry.CurrentCommitSHA {
		return nil, transaction.Error.New("commit out of date")
	}

	entries, err := engine.inheritedEntries(ctx, entry, tx)
	if err != nil {
		return nil, err
	}
	entries = removeByPath(entries, tx.Deletions)

	// an addition already in the inherited set, staged twice, or also listed
	// for deletion is skipped rather than written as a duplicate entry
	present := make(map[string]bool, len(entries)+len(tx.Deletions))
	for _, fileEntry := range entries {
		present[fileEntry.FilePath] = true
	}
	for _, path := range tx.Deletions {
		present[path] = true
	}

	added := make([]string, 0, len(tx.Additions))
	for _, path := range tx.Additions {
		if present[path] {
			continue
		}
		present[path] = true

		built, err := manifest.BuildEntry(ctx, engine.store, path, tx.TableSchema)
		if err != nil {
			return nil, err
		}
		entries = append(entries, built)
		added = append(added, path)
	}

	id, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	manifestPath := engine.layout.ManifestPath(entry.Owner, entry.TableID, id.String())
	if err := manifest.Write(ctx, engine.store, manifestPath, entries); err != nil {
		return nil, err
	}

	checksums := make([]string, 0, len(entries))
	for _, fileEntry := range entries {
		checksums = append(checksums, fileEntry.SHA256Checksum)
	}
	dataHash, err := XORFold(checksums)
	if err != nil {
		return nil, err
	}

	commit := &Commit{
		DataHash:        dataHash,
		User:            user,
		Message:         message,
		Branch:          history.MainBranch,
		ParentCommitSHA: tx.ParentCommitSHA,
		LastUpdatedMS:   engine.nowFn().UnixMilli(),
		ManifestPath:    &manifestPath,
		TableSchema:     tx.TableSchema,
		Encryption:      tx.Encryption,
		AddedFiles:      added,
		RemovedFiles:    tx.Deletions,
	}
	commit.CommitSHA = commit.CalculateSHA()

	record, err := json.Marshal(commit)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	commitPath := engine.layout.CommitPath(entry.Owner, entry.TableID, commit.CommitSHA)
	if err := engine.store.WriteBlob(ctx, commitPath, record); err != nil {
		return nil, err
	}

	tree, err := engine.History(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := tree.Commit(commit.HistoryEntry()); err != nil {
		return nil, Error.Wrap(err)
	}
	saved, err := tree.SaveAvro()
	if err != nil {
		return nil, err
	}
	historyID := id.String()
	historyPath := engine.layout.HistoryPath(entry.Owner, entry.TableID, historyID)
	if err := engine.store.WriteBlob(ctx, historyPath, saved); err != nil {
		return nil, err
	}

	// the swap advances only the commit pointer, history pointer and
	// timestamp; the working schema belongs to PatchSchema and must survive
	// commits that raced it
	updated := *entry
	updated.CurrentCommitSHA = &commit.CommitSHA
	updated.CurrentHistory = &historyID
	updated.LastUpdatedMS = commit.LastUpdatedMS

	if err := engine.catalog.CompareAndSwapTable(ctx, entry.TableID, expect, &updated); err != nil {
		if catalog.ErrValueChanged.Has(err) {
			return nil, transaction.Error.New("commit out of date")
		}
		return nil, err
	}

	commitURL := fmt.Sprintf("%s/v1/tables/%s/%s/commits/%s", baseURL, entry.Owner, entry.Name, commit.CommitSHA)
	if err := engine.events.Trigger(ctx, eventing.TableEvents, eventing.EventNewCommit, entry.Subscriptions, map[string]any{
		"event":  string(eventing.EventNewCommit),
		"table":  entry.Ref(),
		"commit": commit.CommitSHA,
		"url":    commitURL,
	}); err != nil {
		engine.log.Warn("commit notification failed",
			zap.String("table", entry.Ref()),
			zap.String("commit", commit.CommitSHA),
			zap.Error(err))
	}

	return &CommitResult{
		Message:       "Transaction committed successfully",
		TransactionID: tx.TransactionID,
		CommitSHA:     commit.CommitSHA,
		URL:           commitURL,
	}, nil
}

// inheritedEntries returns the data-file entries the transaction builds on:
// nothing for a truncating or initial transaction, otherwise the flattened
// manifest tree of the parent commit.
func (engine *Engine) inheritedEntries(ctx context.Context, entry *catalog.TableCatalogEntry, tx *transaction.Transaction) ([]manifest.Entry, error) {
	if tx.Truncate || tx.ParentCommitSHA == nil {
		return []manifest.Entry{}, nil
	}
	parent, err := engine.readCommit(ctx, entry, *tx.ParentCommitSHA)
	if err != nil {
		return nil, err
	}
	if parent.ManifestPath == nil {
		return []manifest.Entry{}, nil
	}
	return manifest.ReadTree(ctx, engine.store, *parent.ManifestPath, nil)
}

func removeByPath(entries []manifest.Entry, paths []string) []manifest.Entry {
	if len(paths) == 0 {
		return entries
	}
	drop := make(map[string]bool, len(paths))
	for _, path := range paths {
		drop[path] = true
	}
	kept := entries[:0]
	for _, entry := range entries {
		if !drop[entry.FilePath] {
			kept = append(kept, entry)
		}
	}
	return kept
}

// ReadCommit resolves sha, which may be "head", to the commit record of the
// table. A table with no commits has no head.
func (engine *Engine) ReadCommit(ctx context.Context, entry *catalog.TableCatalogEntry, sha string) (_ *Commit, err error) {
	defer mon.Task()(&ctx)(&err)

	if sha == "head" {
		if entry.CurrentCommitSHA == nil {
			return nil, ErrTableHasNoData.New("table %s has no commits", entry.Ref())
		}
		sha = *entry.CurrentCommitSHA
	}
	return engine.readCommit(ctx, entry, sha)
}

func (engine *Engine) readCommit(ctx context.Context, entry *catalog.TableCatalogEntry, sha string) (*Commit, error) {
	content, err := engine.store.ReadBlob(ctx, engine.layout.CommitPath(entry.Owner, entry.TableID, sha))
	if err != nil {
		if storage.ErrBlobNotFound.Has(err) {
			return nil, ErrCommitNotFound.New("commit %q not found for table %s", sha, entry.Ref())
		}
		return nil, err
	}
	var commit Commit
	if err := json.Unmarshal(content, &commit); err != nil {
		return nil, Error.Wrap(err)
	}
	return &commit, nil
}

// CommitEntries returns the data-file entries of a commit after pruning with
// filters. A commit without a manifest has no entries.
func (engine *Engine) CommitEntries(ctx context.Context, commit *Commit, filters []manifest.Filter) (_ []manifest.Entry, err error) {
	defer mon.Task()(&ctx)(&err)

	if commit.ManifestPath == nil {
		return []manifest.Entry{}, nil
	}
	return manifest.ReadTree(ctx, engine.store, *commit.ManifestPath, filters)
}

// History loads the table's commit tree, or an empty tree for a table with
// no commits.
func (engine *Engine) History(ctx context.Context, entry *catalog.TableCatalogEntry) (_ *history.Tree, err error) {
	defer mon.Task()(&ctx)(&err)

	if entry.CurrentHistory == nil {
		return history.NewTree(history.MainBranch), nil
	}
	content, err := engine.store.ReadBlob(ctx, engine.layout.HistoryPath(entry.Owner, entry.TableID, *entry.CurrentHistory))
	if err != nil {
		return nil, err
	}
	return history.LoadAvro(content, history.MainBranch)
}

// PatchSchema replaces the table's working schema after checking the change
// is a legal evolution of the current one. Existing commits keep the schema
// they were written with.
func (engine *Engine) PatchSchema(ctx context.Context, owner, table string, proposed catalog.Schema) (err error) {
	defer mon.Task()(&ctx)(&err)

	entry, err := engine.catalog.GetTable(ctx, owner, table)
	if err != nil {
		return err
	}
	proposed.Normalize()
	if err := proposed.Validate(); err != nil {
		return err
	}
	if err := catalog.ValidateSchemaUpdate(entry.CurrentSchema, proposed); err != nil {
		return err
	}

	updated := *entry
	updated.CurrentSchema = proposed
	updated.LastUpdatedMS = engine.nowFn().UnixMilli()
	return engine.catalog.UpdateTable(ctx, entry.TableID, &updated)
}
