package node

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/ziesha/bazuka/internal/blockchain"
	"github.com/ziesha/bazuka/internal/client"
	"github.com/ziesha/bazuka/internal/core"
	"github.com/ziesha/bazuka/internal/store"
)

const testGenesisTime = int64(1600000000)

type testEnv struct {
	t      *testing.T
	n      *Node
	chain  *blockchain.KvChain
	srv    *httptest.Server
	mock   *clock.Mock
	ctx    context.Context
	faucet *secp256k1.PrivateKey
	addr   core.Address
}

// newBareTestNode builds a node over an in-memory chain with a mock clock.
// No loops run; tests drive the pieces they exercise.
func newBareTestNode(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Unix(testGenesisTime, 0))

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	faucetAddr, err := core.AddressFromPubKey(priv.PubKey().SerializeCompressed())
	require.NoError(t, err)

	chain, err := blockchain.NewKvChain(store.NewMemStore(), "test",
		map[core.Address]core.Money{faucetAddr: 1_000_000})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Network = "test"
	// Keep the firewall out of the way unless a test opts in.
	opts.Firewall.MaxRequestsPerMinute = 100000
	if mutate != nil {
		mutate(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testEnv{
		t:      t,
		n:      New(opts, chain, mock),
		chain:  chain,
		mock:   mock,
		ctx:    ctx,
		faucet: priv,
		addr:   faucetAddr,
	}
}

// startTestNode additionally runs the dispatcher and the real client loop,
// and mounts the RPC surface on an httptest server.
func startTestNode(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	e := newBareTestNode(t, mutate)

	dispatcherStopped := make(chan struct{})
	clientStopped := make(chan struct{})
	go func() {
		defer close(dispatcherStopped)
		e.n.runDispatcher(e.ctx)
	}()
	go func() {
		defer close(clientStopped)
		e.n.outgoing.RunLoop(e.ctx)
	}()

	e.srv = httptest.NewServer(e.n.Router())
	t.Cleanup(func() {
		e.srv.Close()
	})
	return e
}

// post sends a JSON body and returns the status code and raw response body.
func (e *testEnv) post(path string, body any) (int, []byte) {
	e.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	return e.postRaw(path, raw)
}

func (e *testEnv) postRaw(path string, raw []byte) (int, []byte) {
	e.t.Helper()
	resp, err := e.srv.Client().Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, out
}

func (e *testEnv) get(path string) (int, []byte) {
	e.t.Helper()
	resp, err := e.srv.Client().Get(e.srv.URL + path)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, out
}

// fundedTx builds a valid spend from the faucet account.
func (e *testEnv) fundedTx(amount core.Money, nonce uint64) core.Transaction {
	tx := core.Transaction{Dst: core.Address{0xaa}, Amount: amount, Fee: 1, Nonce: nonce}
	tx.Sign(e.faucet)
	return tx
}

// nextBlock builds a block extending the current tip.
func (e *testEnv) nextBlock(txs ...core.Transaction) *core.Block {
	e.t.Helper()
	height, err := e.chain.GetHeight()
	require.NoError(e.t, err)
	tip, err := e.chain.GetBlock(height - 1)
	require.NoError(e.t, err)
	return &core.Block{
		Header: core.Header{
			ParentHash: tip.Hash(),
			Number:     height,
			Timestamp:  tip.Header.Timestamp + 10,
		},
		Transactions: txs,
	}
}

// serveOutgoing replaces the real client loop for heartbeat tests: it drains
// the node's outgoing channel and lets the test synthesize each reply. Only
// valid on a bare env.
func (e *testEnv) serveOutgoing(handler func(url string, body []byte) (any, error)) {
	go func() {
		for {
			req, err := e.n.outgoing.Pop(e.ctx)
			if err != nil {
				return
			}
			resp, err := handler(req.URL, req.Body)
			if err != nil {
				req.Resp <- client.OutgoingResult{Err: err}
				continue
			}
			raw, err := json.Marshal(resp)
			req.Resp <- client.OutgoingResult{Body: raw, Err: err}
		}
	}()
}

// seedPeer installs a peer directly into the manager.
func (e *testEnv) seedPeer(addr string, height, power uint64) {
	e.n.mu.Lock()
	defer e.n.mu.Unlock()
	now := e.n.ctx.LocalTimestamp()
	e.n.ctx.PeerManager.AddPeer(now, client.Peer{
		Address: netip.MustParseAddrPort(addr),
		Info:    client.PeerInfo{Height: height, Power: power},
		Stats:   client.PeerStats{LastSeen: now, Power: power},
	})
}

func (e *testEnv) localNow() uint64 {
	return uint64(e.mock.Now().Unix())
}
