package blockchain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/ziesha/bazuka/internal/core"
	"github.com/ziesha/bazuka/internal/store"
)

// KvChain is a Blockchain over a KvStore. State layout:
//
//	height          -> big-endian uint64
//	blk:<number>    -> JSON block
//	acc:<address>   -> JSON account
//	mpn:<index>     -> JSON MPN slot
type KvChain struct {
	mu      sync.RWMutex
	db      store.KvStore
	network string
}

// NewKvChain opens a chain on db, writing the genesis block and initial
// allocation for network if the store is empty. The allocation is ignored on
// an already-initialized store.
func NewKvChain(db store.KvStore, network string, alloc map[core.Address]core.Money) (*KvChain, error) {
	chain := &KvChain{db: db, network: network}
	_, err := db.Get([]byte("height"))
	if errors.Is(err, store.ErrNotFound) {
		genesis := &core.Block{Header: core.Header{Number: 0, Timestamp: 0}}
		accounts := make(map[core.Address]core.Account, len(alloc))
		for addr, balance := range alloc {
			accounts[addr] = core.Account{Balance: balance}
		}
		if err := chain.writeBlock(genesis, accounts); err != nil {
			return nil, err
		}
		return chain, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return chain, nil
}

func blockKey(number uint64) []byte {
	return []byte(fmt.Sprintf("blk:%020d", number))
}

func accountKey(addr core.Address) []byte {
	return []byte("acc:" + addr.String())
}

func mpnKey(index uint64) []byte {
	return []byte(fmt.Sprintf("mpn:%d", index))
}

func encodeHeight(h uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return buf[:]
}

func (c *KvChain) GetHeight() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height()
}

func (c *KvChain) height() (uint64, error) {
	raw, err := c.db.Get([]byte("height"))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (c *KvChain) GetBlock(number uint64) (*core.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block(number)
}

func (c *KvChain) block(number uint64) (*core.Block, error) {
	raw, err := c.db.Get(blockKey(number))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var blk core.Block
	if err := json.Unmarshal(raw, &blk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return &blk, nil
}

func (c *KvChain) GetBlocks(since uint64, count uint64) ([]core.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	height, err := c.height()
	if err != nil {
		return nil, err
	}
	blocks := make([]core.Block, 0, count)
	for n := since; n < height && uint64(len(blocks)) < count; n++ {
		blk, err := c.block(n)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *blk)
	}
	return blocks, nil
}

func (c *KvChain) GetAccount(addr core.Address) (core.Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account(addr)
}

func (c *KvChain) account(addr core.Address) (core.Account, error) {
	raw, err := c.db.Get(accountKey(addr))
	if errors.Is(err, store.ErrNotFound) {
		return core.Account{}, nil // untouched accounts are empty, not errors
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var acc core.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return core.Account{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return acc, nil
}

func (c *KvChain) GetMpnAccount(index uint64) (core.MpnAccount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, err := c.db.Get(mpnKey(index))
	if errors.Is(err, store.ErrNotFound) {
		return core.MpnAccount{Index: index}, nil
	}
	if err != nil {
		return core.MpnAccount{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var acc core.MpnAccount
	if err := json.Unmarshal(raw, &acc); err != nil {
		return core.MpnAccount{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return acc, nil
}

// MpnContractID derives the rollup contract id from the network tag, so every
// node on the same network agrees on it without extra configuration.
func (c *KvChain) MpnContractID() (core.ContractID, error) {
	return blake2b.Sum256([]byte("mpn-contract:" + c.network)), nil
}

// CheckTx verifies a transaction against current state: signature, nonce
// ordering and spendable balance.
func (c *KvChain) CheckTx(tx *core.Transaction) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkTx(tx, nil)
}

// checkTx validates tx against state overlaid with pending, the in-block
// account mutations accumulated so far during ApplyBlock.
func (c *KvChain) checkTx(tx *core.Transaction, pending map[core.Address]core.Account) error {
	if err := tx.VerifySignature(); err != nil {
		return err
	}
	src, err := tx.SrcAddress()
	if err != nil {
		return err
	}
	acc, ok := pending[src]
	if !ok {
		if acc, err = c.account(src); err != nil {
			return err
		}
	}
	if tx.Nonce != acc.Nonce+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidNonce, tx.Nonce, acc.Nonce+1)
	}
	if acc.Balance < tx.Amount+tx.Fee {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyBlock appends b to the chain. The block must extend the current tip by
// exactly one and every transaction must pass CheckTx against the state the
// block builds up.
func (c *KvChain) ApplyBlock(b *core.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	height, err := c.height()
	if err != nil {
		return err
	}
	if b.Header.Number != height {
		return fmt.Errorf("%w: got %d, tip %d", ErrInvalidBlockNumber, b.Header.Number, height)
	}
	tip, err := c.block(height - 1)
	if err != nil {
		return err
	}
	if b.Header.ParentHash != tip.Hash() {
		return ErrInvalidParentHash
	}
	if b.Header.Timestamp < tip.Header.Timestamp {
		return fmt.Errorf("%w: timestamp %d behind parent", ErrInvalidBlockNumber, b.Header.Timestamp)
	}

	pending := make(map[core.Address]core.Account)
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		if err := c.checkTx(tx, pending); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		src, _ := tx.SrcAddress()
		srcAcc, ok := pending[src]
		if !ok {
			if srcAcc, err = c.account(src); err != nil {
				return err
			}
		}
		dstAcc, ok := pending[tx.Dst]
		if !ok {
			if dstAcc, err = c.account(tx.Dst); err != nil {
				return err
			}
		}
		srcAcc.Balance -= tx.Amount + tx.Fee
		srcAcc.Nonce = tx.Nonce
		dstAcc.Balance += tx.Amount
		pending[src] = srcAcc
		pending[tx.Dst] = dstAcc
	}

	return c.writeBlock(b, pending)
}

func (c *KvChain) writeBlock(b *core.Block, accounts map[core.Address]core.Account) error {
	ops := make([]store.WriteOp, 0, len(accounts)+2)
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	ops = append(ops,
		store.Put(blockKey(b.Header.Number), raw),
		store.Put([]byte("height"), encodeHeight(b.Header.Number+1)),
	)
	for addr, acc := range accounts {
		accRaw, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		ops = append(ops, store.Put(accountKey(addr), accRaw))
	}
	if err := c.db.WriteBatch(ops); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}
