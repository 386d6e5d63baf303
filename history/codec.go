// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package history

import (
	"bytes"
	"sort"

	"github.com/hamba/avro/v2/ocf"
)

const entrySchema = `{
	"type": "record",
	"name": "history_entry",
	"fields": [
		{"name": "sha", "type": "string"},
		{"name": "branch", "type": "string"},
		{"name": "message", "type": "string"},
		{"name": "user", "type": "string"},
		{"name": "timestamp", "type": "long"},
		{"name": "parent_sha", "type": ["null", "string"], "default": null}
	]
}`

// SaveAvro serializes the tree as a zstd-compressed Avro container ordered
// by descending timestamp.
func (tree *Tree) SaveAvro() ([]byte, error) {
	entries := append([]*Entry(nil), tree.commits...)
	sort.SliceStable(entries, func(i, k int) bool {
		return entries[i].Timestamp > entries[k].Timestamp
	})

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(entrySchema, &buf, ocf.WithCodec(ocf.ZStandard))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

// LoadAvro rebuilds a tree from a persisted container; branch heads are the
// first entry seen per branch in descending-timestamp order.
func LoadAvro(content []byte, trunk string) (*Tree, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(content))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	var entries []*Entry
	for dec.HasNext() {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, Error.Wrap(err)
		}
		entries = append(entries, &entry)
	}
	if err := dec.Error(); err != nil {
		return nil, Error.Wrap(err)
	}
	return FromEntries(entries, trunk), nil
}
