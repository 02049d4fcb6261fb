package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ziesha/bazuka/internal/client"
)

// runDispatcher reads from the inbound channel and routes by path. Every
// request that reaches it produces exactly one value on its Resp channel.
func (n *Node) runDispatcher(ctx context.Context) error {
	defer close(n.dispatcherDone)
	for {
		req, err := n.inbound.Pop(ctx)
		if err != nil {
			if errors.Is(err, client.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		resp := n.dispatch(req)
		outcome := "ok"
		if resp.Err != nil {
			outcome = "error"
		}
		rpcServed.WithLabelValues(req.Path, outcome).Inc()
		req.Resp <- resp
	}
}

func (n *Node) dispatch(req *NodeRequest) NodeResponse {
	var body any
	var err error
	switch req.Path {
	case "/peers":
		body, err = n.handlePeers(req)
	case "/stats":
		body, err = n.handleStats(req)
	case "/transact":
		body, err = n.handleTransact(req)
	case "/block":
		body, err = n.handleBlock(req)
	case "/blocks":
		body, err = n.handleBlocks(req)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownPath, req.Path)
	}
	if err != nil {
		return NodeResponse{Err: err}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return NodeResponse{Err: fmt.Errorf("%w: %v", client.ErrSerialization, err)}
	}
	return NodeResponse{Body: raw}
}

// handlePeers answers a handshake: register the caller as a candidate when
// it advertises an inbound address, and return our time, info and a peer
// sample. A malformed body is a protocol violation and punishes the caller.
func (n *Node) handlePeers(req *NodeRequest) (client.HandshakeResponse, error) {
	var hs client.HandshakeRequest
	if err := json.Unmarshal(req.Body, &hs); err != nil {
		n.mu.Lock()
		n.ctx.Punish(req.SocketAddr, uint64(n.opts.ViolationPunishment.Seconds()))
		n.mu.Unlock()
		return client.HandshakeResponse{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if hs.Node != nil {
		n.ctx.PeerManager.AddCandidate(n.ctx.LocalTimestamp(), *hs.Node)
	}
	info, err := n.ctx.GetInfo()
	if err != nil {
		return client.HandshakeResponse{}, err
	}
	sample := n.ctx.PeerManager.GetRankedPeers(n.opts.NumPeers)
	addrs := make([]client.PeerAddress, 0, len(sample))
	for _, p := range sample {
		addrs = append(addrs, p.Address)
	}
	return client.HandshakeResponse{
		Timestamp: n.ctx.NetworkTimestamp(),
		Info:      info,
		Peers:     addrs,
	}, nil
}

// handleStats is a read-only snapshot.
func (n *Node) handleStats(*NodeRequest) (client.StatsResponse, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	info, err := n.ctx.GetInfo()
	if err != nil {
		return client.StatsResponse{}, err
	}
	return client.StatsResponse{
		Height:      info.Height,
		PeerCount:   len(n.ctx.PeerManager.GetPeers()),
		MempoolSize: n.ctx.Mempool.Len(),
		Timestamp:   n.ctx.NetworkTimestamp(),
	}, nil
}

// handleTransact validates a signed transaction and admits it to the
// mempool, stamping first-seen with the network timestamp.
func (n *Node) handleTransact(req *NodeRequest) (client.TransactResponse, error) {
	var tr client.TransactRequest
	if err := json.Unmarshal(req.Body, &tr); err != nil {
		return client.TransactResponse{}, fmt.Errorf("%w: %v", client.ErrSerialization, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ctx.Blockchain.CheckTx(&tr.Tx); err != nil {
		return client.TransactResponse{
			Accepted:    false,
			Error:       err.Error(),
			MempoolSize: n.ctx.Mempool.Len(),
		}, nil
	}
	if err := n.ctx.Mempool.Add(tr.Tx, n.ctx.NetworkTimestamp()); err != nil {
		return client.TransactResponse{
			Accepted:    false,
			Error:       err.Error(),
			MempoolSize: n.ctx.Mempool.Len(),
		}, nil
	}
	return client.TransactResponse{Accepted: true, MempoolSize: n.ctx.Mempool.Len()}, nil
}

// handleBlock hands a block to the chain and reaps the mempool on success.
func (n *Node) handleBlock(req *NodeRequest) (client.PostBlockResponse, error) {
	var pb client.PostBlockRequest
	if err := json.Unmarshal(req.Body, &pb); err != nil {
		return client.PostBlockResponse{}, fmt.Errorf("%w: %v", client.ErrSerialization, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ctx.Blockchain.ApplyBlock(&pb.Block); err != nil {
		return client.PostBlockResponse{Accepted: false, Error: err.Error()}, nil
	}
	n.ctx.Mempool.ReapIncluded(&pb.Block)
	return client.PostBlockResponse{Accepted: true}, nil
}

// handleBlocks serves a bounded block range to syncing peers.
func (n *Node) handleBlocks(req *NodeRequest) (client.GetBlocksResponse, error) {
	var gb client.GetBlocksRequest
	if err := json.Unmarshal(req.Body, &gb); err != nil {
		return client.GetBlocksResponse{}, fmt.Errorf("%w: %v", client.ErrSerialization, err)
	}
	count := gb.Count
	if count > n.opts.MaxBlocksPerRequest {
		count = n.opts.MaxBlocksPerRequest
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	blocks, err := n.ctx.Blockchain.GetBlocks(gb.Since, count)
	if err != nil {
		return client.GetBlocksResponse{}, err
	}
	return client.GetBlocksResponse{Blocks: blocks}, nil
}
