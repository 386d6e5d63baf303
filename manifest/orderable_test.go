// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package manifest_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabel-dev/tarchia/manifest"
)

func TestToInt(t *testing.T) {
	epoch := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	tests := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{"int", 42, 42, true},
		{"negative int", -42, -42, true},
		{"int64", int64(math.MaxInt64), math.MaxInt64, true},
		{"float rounds half to even", 2.5, 2, true},
		{"float rounds half to even up", 3.5, 4, true},
		{"float overflow clamps", math.MaxFloat64, math.MaxInt64, true},
		{"float underflow clamps", -math.MaxFloat64, math.MinInt64, true},
		{"nan is unpackable", math.NaN(), 0, false},
		{"bool true", true, 1, true},
		{"bool false", false, 0, true},
		{"timestamp", epoch, epoch.Unix(), true},
		{"duration", 90 * time.Second, 90, true},
		{"empty string", "", 0, true},
		{"nil is unpackable", nil, 0, false},
		{"struct is unpackable", struct{}{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := manifest.ToInt(tt.value)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.expected, value)
			}
		})
	}
}

func TestToIntStringMonotonic(t *testing.T) {
	ordered := []string{"", "a", "aa", "ab", "b", "ba", "zzzzzzzz", "zzzzzzzzz"}
	for i := 0; i < len(ordered)-1; i++ {
		left, ok := manifest.ToInt(ordered[i])
		require.True(t, ok)
		right, ok := manifest.ToInt(ordered[i+1])
		require.True(t, ok)
		require.LessOrEqual(t, left, right, "%q vs %q", ordered[i], ordered[i+1])
	}

	// ordering is not required past the 8-byte truncation, but ties must hold
	left, _ := manifest.ToInt("deadbeef-1")
	right, _ := manifest.ToInt("deadbeef-2")
	require.Equal(t, left, right)
}

func TestToIntIntMonotonic(t *testing.T) {
	ordered := []int64{math.MinInt64, -1000, -1, 0, 1, 1000, math.MaxInt64}
	for i := 0; i < len(ordered)-1; i++ {
		left, _ := manifest.ToInt(ordered[i])
		right, _ := manifest.ToInt(ordered[i+1])
		require.Less(t, left, right)
	}
}

func TestToIntBytesHighBitClamped(t *testing.T) {
	ascii, _ := manifest.ToInt([]byte{0x61})
	high, _ := manifest.ToInt([]byte{0xC3, 0xA9})
	require.Less(t, ascii, high)
}
