// Package blockchain defines the ledger capability the node core consumes,
// together with a minimal key-value backed implementation. Validation
// semantics are intentionally thin; the node only needs height bookkeeping,
// nonce/balance accounting and block linkage.
package blockchain

import (
	"errors"

	"github.com/ziesha/bazuka/internal/core"
)

var (
	ErrBlockNotFound      = errors.New("block not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidBlockNumber = errors.New("block number does not extend the chain")
	ErrInvalidParentHash  = errors.New("parent hash does not match chain tip")
	ErrInvalidNonce       = errors.New("transaction nonce out of order")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrStore              = errors.New("blockchain store failure")
)

// Blockchain is the capability set the node core consumes. Implementations
// must be safe for concurrent use.
type Blockchain interface {
	GetHeight() (uint64, error)
	GetBlock(number uint64) (*core.Block, error)
	GetBlocks(since uint64, count uint64) ([]core.Block, error)
	GetAccount(addr core.Address) (core.Account, error)
	GetMpnAccount(index uint64) (core.MpnAccount, error)
	ApplyBlock(b *core.Block) error
	CheckTx(tx *core.Transaction) error
	MpnContractID() (core.ContractID, error)
}
