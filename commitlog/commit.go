// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package commitlog implements the commit engine: the transactional state
// machine that turns staged file additions and deletions into a new
// manifest, a new immutable commit record and an advanced history tree.
package commitlog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/history"
)

var (
	// Error is the default error class for the commitlog package.
	Error = errs.Class("commitlog")

	// ErrCommitNotFound is returned when a commit SHA cannot be resolved.
	ErrCommitNotFound = errs.Class("commit not found")

	// ErrTableHasNoData is returned when resolving head on a table with no
	// commits.
	ErrTableHasNoData = errs.Class("table has no data")
)

// Commit is one immutable snapshot of a table's file set. It is written once
// to the table's commit root and never mutated.
type Commit struct {
	DataHash        string                     `json:"data_hash"`
	User            string                     `json:"user"`
	Message         string                     `json:"message"`
	Branch          string                     `json:"branch"`
	ParentCommitSHA *string                    `json:"parent_commit_sha"`
	LastUpdatedMS   int64                      `json:"last_updated_ms"`
	ManifestPath    *string                    `json:"manifest_path"`
	TableSchema     catalog.Schema             `json:"table_schema"`
	Encryption      *catalog.EncryptionDetails `json:"encryption"`
	CommitSHA       string                     `json:"commit_sha"`
	AddedFiles      []string                   `json:"added_files"`
	RemovedFiles    []string                   `json:"removed_files"`
}

// CalculateSHA derives the commit identity from the fields that define it.
func (commit *Commit) CalculateSHA() string {
	hasher := sha256.New()
	hasher.Write([]byte(commit.DataHash))
	hasher.Write([]byte(commit.Message))
	hasher.Write([]byte(commit.User))
	hasher.Write([]byte(commit.Branch))
	hasher.Write([]byte(strconv.FormatInt(commit.LastUpdatedMS, 10)))
	if commit.ParentCommitSHA != nil {
		hasher.Write([]byte(*commit.ParentCommitSHA))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// HistoryEntry projects the commit into its slim history form.
func (commit *Commit) HistoryEntry() *history.Entry {
	return &history.Entry{
		SHA:       commit.CommitSHA,
		Branch:    commit.Branch,
		Message:   commit.Message,
		User:      commit.User,
		Timestamp: commit.LastUpdatedMS,
		ParentSHA: commit.ParentCommitSHA,
	}
}

// XORFold folds hex-encoded SHA-256 checksums into a single 64-character
// digest by XOR. An empty set folds to all zeros.
func XORFold(checksums []string) (string, error) {
	folded := make([]byte, sha256.Size)
	for _, checksum := range checksums {
		raw, err := hex.DecodeString(checksum)
		if err != nil || len(raw) != sha256.Size {
			return "", Error.New("checksum %q is not a sha256 digest", checksum)
		}
		for i := range folded {
			folded[i] ^= raw[i]
		}
	}
	return hex.EncodeToString(folded), nil
}

// Layout derives the blob paths owned by one table under the metadata root.
type Layout struct {
	MetadataRoot string
}

func (layout Layout) tableRoot(owner, tableID string) string {
	return fmt.Sprintf("%s/%s/%s", layout.MetadataRoot, owner, tableID)
}

// MarkerPath is the existence marker written at table creation.
func (layout Layout) MarkerPath(owner, tableID, name string) string {
	return layout.tableRoot(owner, tableID) + "/" + name
}

// TombstonePath is the deletion marker preserving the final catalog entry.
func (layout Layout) TombstonePath(owner, tableID string) string {
	return layout.tableRoot(owner, tableID) + "/deleted.json"
}

// CommitPath locates the JSON record of one commit.
func (layout Layout) CommitPath(owner, tableID, sha string) string {
	return layout.tableRoot(owner, tableID) + "/metadata/commits/commit-" + sha + ".json"
}

// ManifestPath locates one manifest container.
func (layout Layout) ManifestPath(owner, tableID, id string) string {
	return layout.tableRoot(owner, tableID) + "/metadata/manifests/manifest-" + id + ".avro"
}

// HistoryPath locates one persisted history tree.
func (layout Layout) HistoryPath(owner, tableID, id string) string {
	return layout.tableRoot(owner, tableID) + "/metadata/history/history-" + id + ".avro"
}
