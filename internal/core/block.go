package core

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Header carries the chain-linking fields of a block.
type Header struct {
	ParentHash Hash   `json:"parent_hash"`
	Number     uint64 `json:"number"`
	Timestamp  uint64 `json:"timestamp"`
}

// Block is a header plus the transactions it confirms. Validation semantics
// live behind the Blockchain capability; the node core only moves blocks
// around and hashes them.
type Block struct {
	Header       Header        `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// Hash is the blake2b hash of the header fields and the ids of the contained
// transactions, in order.
func (b *Block) Hash() Hash {
	var buf bytes.Buffer
	buf.Write(b.Header.ParentHash[:])
	binary.Write(&buf, binary.BigEndian, b.Header.Number)
	binary.Write(&buf, binary.BigEndian, b.Header.Timestamp)
	for i := range b.Transactions {
		id := b.Transactions[i].ID()
		buf.Write(id[:])
	}
	return blake2b.Sum256(buf.Bytes())
}
