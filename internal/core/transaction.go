package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
)

var (
	ErrInvalidSignature = errors.New("invalid transaction signature")
	ErrMalformedTx      = errors.New("malformed transaction")
)

// Transaction moves Amount from the account owning From to Dst and deducts
// Fee from the sender on top of it; the fee is not credited to any account.
// From is a compressed secp256k1 public key; the sender address is derived
// from it.
type Transaction struct {
	From   HexBytes `json:"from"`
	Dst    Address  `json:"dst"`
	Amount Money    `json:"amount"`
	Fee    Money    `json:"fee"`
	Nonce  uint64   `json:"nonce"`
	Sig    HexBytes `json:"sig,omitempty"`
}

// signingPayload is the deterministic byte encoding covered by the signature
// and by the transaction id.
func (tx *Transaction) signingPayload() []byte {
	var buf bytes.Buffer
	buf.Write(tx.From)
	buf.Write(tx.Dst[:])
	binary.Write(&buf, binary.BigEndian, uint64(tx.Amount))
	binary.Write(&buf, binary.BigEndian, uint64(tx.Fee))
	binary.Write(&buf, binary.BigEndian, tx.Nonce)
	return buf.Bytes()
}

// ID is the canonical identifier of the transaction: the blake2b hash of its
// signed fields. Two transactions with equal ids are the same transaction.
func (tx *Transaction) ID() Hash {
	return blake2b.Sum256(tx.signingPayload())
}

// SrcAddress derives the sender address from the embedded public key.
func (tx *Transaction) SrcAddress() (Address, error) {
	return AddressFromPubKey(tx.From)
}

// Sign fills tx.Sig with a DER-encoded ECDSA signature over the transaction
// id, and stamps From with the signer's compressed public key.
func (tx *Transaction) Sign(priv *secp256k1.PrivateKey) {
	tx.From = priv.PubKey().SerializeCompressed()
	id := tx.ID()
	tx.Sig = ecdsa.Sign(priv, id[:]).Serialize()
}

// VerifySignature checks the signature against the embedded public key.
func (tx *Transaction) VerifySignature() error {
	if len(tx.From) == 0 || len(tx.Sig) == 0 {
		return fmt.Errorf("%w: missing key or signature", ErrMalformedTx)
	}
	pub, err := secp256k1.ParsePubKey(tx.From)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	sig, err := ecdsa.ParseDERSignature(tx.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	id := tx.ID()
	if !sig.Verify(id[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}

// AddressFromPubKey maps a compressed public key to an account address:
// ripemd160 over the blake2b hash of the key bytes.
func AddressFromPubKey(pub []byte) (Address, error) {
	if _, err := secp256k1.ParsePubKey(pub); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	sum := blake2b.Sum256(pub)
	ripe := ripemd160.New()
	ripe.Write(sum[:])
	var addr Address
	copy(addr[:], ripe.Sum(nil))
	return addr, nil
}
