package core

import (
	"encoding/json"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignedTx(t *testing.T, amount Money, nonce uint64) *Transaction {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	tx := &Transaction{Dst: Address{1, 2, 3}, Amount: amount, Fee: 1, Nonce: nonce}
	tx.Sign(priv)
	return tx
}

func TestTransactionSignVerify(t *testing.T) {
	tx := newSignedTx(t, 100, 1)
	assert.NoError(t, tx.VerifySignature())

	// Tampering with any signed field invalidates the signature.
	tx.Amount = 101
	assert.Error(t, tx.VerifySignature())
}

func TestTransactionIDIgnoresSignature(t *testing.T) {
	tx := newSignedTx(t, 100, 1)
	before := tx.ID()
	tx.Sig = nil
	assert.Equal(t, before, tx.ID())
}

func TestTransactionIDUniqueness(t *testing.T) {
	a := newSignedTx(t, 100, 1)
	b := newSignedTx(t, 100, 1)
	// Different senders, same fields otherwise.
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTransactionVerifyMissingParts(t *testing.T) {
	tx := &Transaction{}
	assert.ErrorIs(t, tx.VerifySignature(), ErrMalformedTx)

	tx = newSignedTx(t, 5, 1)
	tx.Sig = []byte("not a der signature")
	assert.Error(t, tx.VerifySignature())
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	tx := newSignedTx(t, 42, 7)
	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var got Transaction
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, tx.ID(), got.ID())
	assert.NoError(t, got.VerifySignature())
}

func TestSrcAddressDeterministic(t *testing.T) {
	tx := newSignedTx(t, 1, 1)
	a1, err := tx.SrcAddress()
	require.NoError(t, err)
	a2, err := AddressFromPubKey(tx.From)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, Address{}, a1)
}

func TestBlockHashCoversTransactions(t *testing.T) {
	blk := &Block{Header: Header{Number: 1, Timestamp: 1700000000}}
	empty := blk.Hash()
	blk.Transactions = append(blk.Transactions, *newSignedTx(t, 9, 1))
	assert.NotEqual(t, empty, blk.Hash())
}
