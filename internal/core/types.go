package core

import (
	"encoding/hex"
	"fmt"
)

// Money is an amount of the native token, in its smallest unit.
type Money uint64

// Hash is a 32-byte blake2b content hash, used for transaction ids, block
// hashes and contract ids.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(h) {
		return fmt.Errorf("invalid hash length %d", len(raw))
	}
	copy(h[:], raw)
	return nil
}

// ContractID identifies a deployed contract. The MPN rollup contract is the
// only one the node core ever references, and only by id.
type ContractID = Hash

// HexBytes is a byte slice that JSON-encodes as a hex string, used for keys
// and signatures in wire messages.
type HexBytes []byte

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *HexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// Address is a 20-byte account address derived from a public key.
type Address [20]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(a[:])), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(a) {
		return fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(a[:], raw)
	return nil
}

// Account is the on-chain state of a regular address.
type Account struct {
	Balance Money  `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// MpnAccount is the state of a slot inside the MPN rollup contract. The node
// core treats it as opaque data served to clients.
type MpnAccount struct {
	Index   uint64 `json:"index"`
	Nonce   uint64 `json:"nonce"`
	Balance Money  `json:"balance"`
}
