// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest

import (
	"encoding/binary"
	"math"
	"time"
)

// ToInt reduces a value to a single comparable signed 64-bit integer so that
// heterogeneous column statistics can be compared for pruning. The result is
// clamped to the signed 64-bit range. Ordering is preserved for values of the
// same type; strings and byte slices compare on their first 8 bytes only.
// The second return is false for values with no orderable representation.
func ToInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(v), true
	case float32:
		return roundFloat(float64(v))
	case float64:
		return roundFloat(v)
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case time.Time:
		return v.Unix(), true
	case time.Duration:
		return int64(v / time.Second), true
	case string:
		return packBytes([]byte(v)), true
	case []byte:
		return packBytes(v), true
	default:
		return 0, false
	}
}

// roundFloat rounds half to even and clamps to the signed 64-bit range.
func roundFloat(v float64) (int64, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	rounded := math.RoundToEven(v)
	if rounded >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if rounded <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(rounded), true
}

// packBytes interprets the first 8 bytes, right-padded with NUL, as a
// big-endian 64-bit integer clamped to the signed range. Clamping rather
// than wrapping keeps values with a high first byte ordered after ASCII.
func packBytes(b []byte) int64 {
	var padded [8]byte
	copy(padded[:], b)
	packed := binary.BigEndian.Uint64(padded[:])
	if packed > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(packed)
}
