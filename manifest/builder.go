// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/storage"
)

// BuildEntry reads the Parquet file at path and constructs its manifest
// entry: size, checksum, record count and per-column bounds folded from the
// row-group statistics. Every column the schema requires must be present in
// the file, under its name or one of its aliases, unless it has a default.
func BuildEntry(ctx context.Context, store storage.Provider, path string, schema catalog.Schema) (_ Entry, err error) {
	defer mon.Task()(&ctx)(&err)

	content, err := store.ReadBlob(ctx, path)
	if err != nil {
		if storage.ErrBlobNotFound.Has(err) {
			return Entry{}, ErrUnableToReadBlob.New("unable to read %q", path)
		}
		return Entry{}, err
	}

	checksum := sha256.Sum256(content)
	entry := Entry{
		FilePath:       path,
		FileFormat:     "parquet",
		FileType:       EntryTypeData,
		FileSize:       int64(len(content)),
		SHA256Checksum: hex.EncodeToString(checksum[:]),
		LowerBounds:    map[string]int64{},
		UpperBounds:    map[string]int64{},
	}

	file, err := parquet.OpenFile(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Entry{}, ErrData.Wrap(err)
	}
	entry.RecordCount = file.NumRows()

	present := map[string]bool{}
	for _, field := range file.Schema().Fields() {
		present[field.Name()] = true
	}
	for _, column := range schema.Columns {
		if column.Default != nil {
			continue
		}
		found := present[column.Name]
		for _, alias := range column.Aliases {
			found = found || present[alias]
		}
		if !found {
			return Entry{}, ErrData.New(
				"File '%s' is missing column '%s'. To avoid this error, ensure this column has a default value or is present in all files.",
				path, column.Name)
		}
	}

	foldStatistics(file, &entry)
	return entry, nil
}

// foldStatistics accumulates per-file bounds from the per-row-group column
// statistics. Columns with no usable statistics are left out of the bounds
// and can never be pruned on.
func foldStatistics(file *parquet.File, entry *Entry) {
	fields := file.Schema().Fields()

	for _, rowGroup := range file.RowGroups() {
		for i, chunk := range rowGroup.ColumnChunks() {
			if i >= len(fields) {
				break
			}
			name := fields[i].Name()
			logical := fields[i].Type().LogicalType()

			index, err := chunk.ColumnIndex()
			if err != nil || index == nil {
				continue
			}
			for page := 0; page < index.NumPages(); page++ {
				if index.NullPage(page) {
					continue
				}
				foldBound(entry.LowerBounds, name, index.MinValue(page), logical, lesser)
				foldBound(entry.UpperBounds, name, index.MaxValue(page), logical, greater)
			}
		}
	}
}

func lesser(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func greater(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func foldBound(bounds map[string]int64, name string, value parquet.Value, logical *format.LogicalType, pick func(int64, int64) int64) {
	packed, ok := packValue(value, logical)
	if !ok {
		return
	}
	if current, exists := bounds[name]; exists {
		packed = pick(current, packed)
	}
	bounds[name] = packed
}

// packValue converts a parquet statistics value to its orderable integer,
// honoring the logical type: dates become UNIX seconds at midnight UTC,
// timestamps become UNIX seconds, times-of-day become seconds since
// midnight, strings pack their first 8 bytes.
func packValue(value parquet.Value, logical *format.LogicalType) (int64, bool) {
	if value.IsNull() {
		return 0, false
	}

	switch value.Kind() {
	case parquet.Boolean:
		return ToInt(value.Boolean())

	case parquet.Int32:
		if logical != nil {
			switch {
			case logical.Date != nil:
				return ToInt(int64(value.Int32()) * 86400)
			case logical.Time != nil:
				return ToInt(timeOfDaySeconds(int64(value.Int32()), logical.Time.Unit))
			}
		}
		return ToInt(int64(value.Int32()))

	case parquet.Int64:
		if logical != nil {
			switch {
			case logical.Timestamp != nil:
				return ToInt(timestampSeconds(value.Int64(), logical.Timestamp.Unit))
			case logical.Time != nil:
				return ToInt(timeOfDaySeconds(value.Int64(), logical.Time.Unit))
			}
		}
		return ToInt(value.Int64())

	case parquet.Float:
		return ToInt(float64(value.Float()))

	case parquet.Double:
		return ToInt(value.Double())

	case parquet.ByteArray, parquet.FixedLenByteArray:
		if logical != nil && logical.UTF8 != nil {
			return ToInt(string(value.ByteArray()))
		}
		return ToInt(value.ByteArray())

	case parquet.Int96:
		// deprecated 96-bit timestamps carry no usable ordering here
		return 0, false

	default:
		return 0, false
	}
}

func timestampSeconds(value int64, unit format.TimeUnit) int64 {
	switch {
	case unit.Millis != nil:
		return roundDiv(value, int64(time.Second/time.Millisecond))
	case unit.Micros != nil:
		return roundDiv(value, int64(time.Second/time.Microsecond))
	case unit.Nanos != nil:
		return roundDiv(value, int64(time.Second))
	default:
		return value
	}
}

func timeOfDaySeconds(value int64, unit format.TimeUnit) int64 {
	return timestampSeconds(value, unit)
}

// roundDiv divides rounding to nearest, keeping negative timestamps ordered.
func roundDiv(value, divisor int64) int64 {
	half := divisor / 2
	if value >= 0 {
		return (value + half) / divisor
	}
	return (value - half) / divisor
}
