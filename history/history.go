// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package history maintains the per-table commit DAG. The tree is an arena
// of slim commit projections; branch heads index into the arena and walks
// follow parent pointers. Once loaded a tree is only appended to, so walks
// are stable against unrelated commits.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/zeebo/errs"
)

// Error is the default error class for the history package.
var Error = errs.Class("history")

// MainBranch is the trunk; the commit engine only ever writes to it.
const MainBranch = "main"

// Entry is the slim projection of a commit kept in the history tree.
type Entry struct {
	SHA       string  `json:"sha" avro:"sha"`
	Branch    string  `json:"branch" avro:"branch"`
	Message   string  `json:"message" avro:"message"`
	User      string  `json:"user" avro:"user"`
	Timestamp int64   `json:"timestamp" avro:"timestamp"`
	ParentSHA *string `json:"parent_sha" avro:"parent_sha"`
}

// Tree is the in-memory commit DAG for one table.
type Tree struct {
	trunk    string
	commits  []*Entry
	branches map[string]*Entry
	deleted  map[string]bool
}

// NewTree creates an empty tree with the given trunk branch.
func NewTree(trunk string) *Tree {
	if trunk == "" {
		trunk = MainBranch
	}
	return &Tree{
		trunk:    trunk,
		branches: map[string]*Entry{trunk: nil},
		deleted:  map[string]bool{},
	}
}

// FromEntries rebuilds a tree from persisted entries: commits are ordered by
// descending timestamp and each branch head is the first entry seen for it.
func FromEntries(entries []*Entry, trunk string) *Tree {
	tree := NewTree(trunk)
	tree.commits = append(tree.commits, entries...)
	sort.SliceStable(tree.commits, func(i, k int) bool {
		return tree.commits[i].Timestamp > tree.commits[k].Timestamp
	})
	for _, entry := range tree.commits {
		if tree.branches[entry.Branch] == nil {
			tree.branches[entry.Branch] = entry
		}
	}
	return tree
}

// Commit appends an entry and moves its branch head to it.
func (tree *Tree) Commit(entry *Entry) error {
	if tree.deleted[entry.Branch] {
		return Error.New("cannot add commit to deleted branch %q", entry.Branch)
	}
	tree.commits = append([]*Entry{entry}, tree.commits...)
	tree.branches[entry.Branch] = entry
	return nil
}

// Head returns the branch head, or nil for unknown or deleted branches.
func (tree *Tree) Head(branch string) *Entry {
	if tree.deleted[branch] {
		return nil
	}
	return tree.branches[branch]
}

// Branches lists the live branches.
func (tree *Tree) Branches() []string {
	var names []string
	for name := range tree.branches {
		if !tree.deleted[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Lookup finds a commit by SHA.
func (tree *Tree) Lookup(sha string) *Entry {
	for _, entry := range tree.commits {
		if entry.SHA == sha {
			return entry
		}
	}
	return nil
}

// Len reports the number of commits in the tree.
func (tree *Tree) Len() int {
	return len(tree.commits)
}

// WalkBranch walks from the branch head towards the initial commit. The walk
// is finite: it stops at a null parent or a parent missing from the arena.
func (tree *Tree) WalkBranch(branch string) *Walker {
	return &Walker{tree: tree, current: tree.Head(branch)}
}

// Walker iterates a chain of commits by parent pointer.
type Walker struct {
	tree    *Tree
	current *Entry
}

// Next returns the next commit in the walk, or nil when exhausted.
func (walker *Walker) Next() *Entry {
	entry := walker.current
	if entry == nil {
		return nil
	}
	walker.current = nil
	if entry.ParentSHA != nil {
		walker.current = walker.tree.Lookup(*entry.ParentSHA)
	}
	return entry
}

// MerkleRoot hashes the commit SHAs pairwise, duplicating the last node on
// odd levels, until a single root remains. An empty tree has an empty root.
func (tree *Tree) MerkleRoot() string {
	if len(tree.commits) == 0 {
		return ""
	}
	nodes := make([]string, 0, len(tree.commits))
	for _, entry := range tree.commits {
		nodes = append(nodes, entry.SHA)
	}
	for len(nodes) > 1 {
		if len(nodes)%2 != 0 {
			nodes = append(nodes, nodes[len(nodes)-1])
		}
		level := make([]string, 0, len(nodes)/2)
		for i := 0; i < len(nodes); i += 2 {
			level = append(level, hashPair(nodes[i], nodes[i+1]))
		}
		nodes = level
	}
	return nodes[0]
}

func hashPair(left, right string) string {
	hasher := sha256.New()
	hasher.Write([]byte(left))
	hasher.Write([]byte(right))
	return hex.EncodeToString(hasher.Sum(nil))
}
