// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package manifest builds, serializes and prunes the per-commit list of data
// files. Manifests are Avro container files; an entry may point at a data
// file or at a child manifest, so a commit's file set is a bounded tree.
package manifest

import (
	"bytes"
	"context"

	"github.com/hamba/avro/v2/ocf"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/mabel-dev/tarchia/storage"
)

var (
	// Error is the default error class for the manifest package.
	Error = errs.Class("manifest")

	// ErrData is returned when a data file cannot satisfy the table schema.
	ErrData = errs.Class("data error")

	// ErrUnableToReadBlob is returned when a staged data file cannot be read.
	ErrUnableToReadBlob = errs.Class("unable to read blob")

	// ErrInvalidFilter is returned when a filter expression cannot be parsed.
	ErrInvalidFilter = errs.Class("invalid filter")

	mon = monkit.Package()
)

// MaxDepth caps manifest tree recursion to defend against malformed trees.
const MaxDepth = 16

// EntryType distinguishes data files from child manifests.
type EntryType string

// Possible entry types.
const (
	EntryTypeManifest EntryType = "Manifest"
	EntryTypeData     EntryType = "Data"
)

// Entry describes one file referenced by a manifest. Bounds map column names
// to packed orderable integers used for pruning.
type Entry struct {
	FilePath       string           `json:"file_path" avro:"file_path"`
	FileFormat     string           `json:"file_format" avro:"file_format"`
	FileType       EntryType        `json:"file_type" avro:"file_type"`
	RecordCount    int64            `json:"record_count" avro:"record_count"`
	FileSize       int64            `json:"file_size" avro:"file_size"`
	SHA256Checksum string           `json:"sha256_checksum" avro:"sha256_checksum"`
	LowerBounds    map[string]int64 `json:"lower_bounds" avro:"lower_bounds"`
	UpperBounds    map[string]int64 `json:"upper_bounds" avro:"upper_bounds"`
}

const entrySchema = `{
	"type": "record",
	"name": "manifest_entry",
	"fields": [
		{"name": "file_path", "type": "string"},
		{"name": "file_format", "type": "string"},
		{"name": "file_type", "type": "string"},
		{"name": "record_count", "type": "long"},
		{"name": "file_size", "type": "long"},
		{"name": "sha256_checksum", "type": "string"},
		{"name": "lower_bounds", "type": {"type": "map", "values": "long"}},
		{"name": "upper_bounds", "type": {"type": "map", "values": "long"}}
	]
}`

// Encode serializes entries as a zstd-compressed Avro container.
func Encode(entries []Entry) ([]byte, error) {
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

// Decode parses a single Avro container into entries.
func Decode(content []byte) ([]Entry, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(content))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	entries := []Entry{}
	for dec.HasNext() {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, Error.Wrap(err)
		}
		entries = append(entries, entry)
	}
	return entries, Error.Wrap(dec.Error())
}

// Write serializes entries and stores them as one blob at location.
func Write(ctx context.Context, store storage.Provider, location string, entries []Entry) (err error) {
	defer mon.Task()(&ctx)(&err)

	content, err := Encode(entries)
	if err != nil {
		return err
	}
	return store.WriteBlob(ctx, location, content)
}

// ReadTree reads the manifest at location and recursively descends into
// child manifests, returning the data-file entries. Filters are applied
// during descent: an entry whose bounds cannot satisfy every conjunct is
// dropped without reading the file it points to.
func ReadTree(ctx context.Context, store storage.Provider, location string, filters []Filter) (_ []Entry, err error) {
	defer mon.Task()(&ctx)(&err)
	return readTree(ctx, store, location, filters, MaxDepth)
}

func readTree(ctx context.Context, store storage.Provider, location string, filters []Filter, depth int) ([]Entry, error) {
	if depth <= 0 {
		return nil, ErrData.New("manifest tree exceeds depth %d at %q", MaxDepth, location)
	}

	content, err := store.ReadBlob(ctx, location)
	if err != nil {
		return nil, err
	}
	entries, err := Decode(content)
	if err != nil {
		return nil, err
	}

	collected := []Entry{}
	for _, entry := range entries {
		if Prune(entry, filters) {
			continue
		}
		if entry.FileType == EntryTypeManifest {
			children, err := readTree(ctx, store, entry.FilePath, filters, depth-1)
			if err != nil {
				return nil, err
			}
			collected = append(collected, children...)
			continue
		}
		collected = append(collected, entry)
	}
	return collected, nil
}
