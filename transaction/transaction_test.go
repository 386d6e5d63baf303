// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package transaction_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabel-dev/tarchia/catalog"
	"github.com/mabel-dev/tarchia/transaction"
)

func testTransaction() *transaction.Transaction {
	parent := strings.Repeat("ab", 32)
	return &transaction.Transaction{
		TransactionID:   "0192023a-5d2c-7e00-8000-000000000000",
		ExpiresAt:       time.Now().Unix() - 1,
		Owner:           "tester",
		Table:           "planets",
		TableID:         "table-0001",
		ParentCommitSHA: &parent,
		TableSchema: catalog.Schema{Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeInteger},
		}},
		Additions: []string{"gs://bucket/file-1.parquet"},
		Deletions: []string{},
	}
}

func TestRoundTrip(t *testing.T) {
	signer := transaction.NewSigner("secret")
	original := testTransaction()

	envelope, err := signer.EncodeAndSign(original)
	require.NoError(t, err)
	require.Contains(t, envelope, ".")

	decoded, err := signer.VerifyAndDecode(envelope)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestTamperResistance(t *testing.T) {
	signer := transaction.NewSigner("secret")

	envelope, err := signer.EncodeAndSign(testTransaction())
	require.NoError(t, err)

	// flipping any single byte, payload or signature side, must fail
	for i := 0; i < len(envelope); i++ {
		if envelope[i] == '.' {
			continue
		}
		mutated := []byte(envelope)
		if mutated[i] != 'A' {
			mutated[i] = 'A'
		} else {
			mutated[i] = 'B'
		}
		_, err := signer.VerifyAndDecode(string(mutated))
		require.Error(t, err, "mutation at %d went unnoticed", i)
	}
}

func TestWrongKey(t *testing.T) {
	envelope, err := transaction.NewSigner("secret").EncodeAndSign(testTransaction())
	require.NoError(t, err)

	_, err = transaction.NewSigner("other").VerifyAndDecode(envelope)
	require.True(t, transaction.Error.Has(err))
	require.Contains(t, err.Error(), "signature")
}

func TestMalformedEnvelopes(t *testing.T) {
	signer := transaction.NewSigner("secret")

	for _, envelope := range []string{"", "no-dot", "not-base64!.aabb", "aGVsbG8=.aabb"} {
		_, err := signer.VerifyAndDecode(envelope)
		require.True(t, transaction.Error.Has(err), "envelope %q", envelope)
	}
}

func TestExpiryIsInverted(t *testing.T) {
	signer := transaction.NewSigner("secret")

	// a transaction stamped in the future is the one rejected as expired
	future := testTransaction()
	future.ExpiresAt = time.Now().Add(time.Hour).Unix()
	envelope, err := signer.EncodeAndSign(future)
	require.NoError(t, err)
	_, err = signer.VerifyAndDecode(envelope)
	require.True(t, transaction.Error.Has(err))
	require.Contains(t, err.Error(), "expired")

	// while one stamped in the past verifies
	past := testTransaction()
	past.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	envelope, err = signer.EncodeAndSign(past)
	require.NoError(t, err)
	_, err = signer.VerifyAndDecode(envelope)
	require.NoError(t, err)
}
