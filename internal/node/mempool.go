package node

import (
	"errors"

	"github.com/ziesha/bazuka/internal/core"
)

var ErrMempoolFull = errors.New("mempool is full")

// TransactionStats is the node-side bookkeeping attached to each mempool
// transaction.
type TransactionStats struct {
	FirstSeen uint64 `json:"first_seen"`
}

type mempoolEntry struct {
	Tx    core.Transaction
	Stats TransactionStats
}

// Mempool is the in-memory set of unconfirmed transactions, keyed by their
// canonical id. It is context-owned: the node's reader-writer lock guards
// every call.
type Mempool struct {
	capacity int
	entries  map[core.Hash]mempoolEntry
}

func NewMempool(capacity int) *Mempool {
	return &Mempool{
		capacity: capacity,
		entries:  make(map[core.Hash]mempoolEntry),
	}
}

// Add admits tx, stamping FirstSeen = now on first observation. Re-adding a
// known transaction keeps the original stats.
func (m *Mempool) Add(tx core.Transaction, now uint64) error {
	id := tx.ID()
	if _, ok := m.entries[id]; ok {
		return nil
	}
	if len(m.entries) >= m.capacity {
		return ErrMempoolFull
	}
	m.entries[id] = mempoolEntry{Tx: tx, Stats: TransactionStats{FirstSeen: now}}
	return nil
}

// Contains reports whether the transaction with the given id is pending.
func (m *Mempool) Contains(id core.Hash) bool {
	_, ok := m.entries[id]
	return ok
}

// FirstSeen returns the admission timestamp of a pending transaction.
func (m *Mempool) FirstSeen(id core.Hash) (uint64, bool) {
	e, ok := m.entries[id]
	return e.Stats.FirstSeen, ok
}

// ReapIncluded removes every transaction confirmed by blk.
func (m *Mempool) ReapIncluded(blk *core.Block) {
	for i := range blk.Transactions {
		delete(m.entries, blk.Transactions[i].ID())
	}
}

// ReapOlderThan evicts entries first seen before cutoff.
func (m *Mempool) ReapOlderThan(cutoff uint64) {
	for id, e := range m.entries {
		if e.Stats.FirstSeen < cutoff {
			delete(m.entries, id)
		}
	}
}

// Snapshot copies the pending transactions with their ids.
func (m *Mempool) Snapshot() map[core.Hash]core.Transaction {
	out := make(map[core.Hash]core.Transaction, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.Tx
	}
	return out
}

// Len reports the number of pending transactions.
func (m *Mempool) Len() int {
	return len(m.entries)
}
