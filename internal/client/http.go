package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// JSONPost serializes req, queues it on out, and decodes the reply into Resp.
// Limit semantics are enforced by the client loop; a closed loop surfaces as
// ErrQueueClosed.
func JSONPost[Req any, Resp any](ctx context.Context, out *Outgoing, url string, req Req, limit Limit) (Resp, error) {
	var decoded Resp
	body, err := json.Marshal(req)
	if err != nil {
		return decoded, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	outReq := &OutgoingRequest{
		Method: http.MethodPost,
		URL:    url,
		Body:   body,
		Limit:  limit,
		Resp:   make(chan OutgoingResult, 1),
	}
	if err := out.Queue(outReq); err != nil {
		return decoded, err
	}

	select {
	case <-ctx.Done():
		return decoded, ctx.Err()
	case result := <-outReq.Resp:
		if result.Err != nil {
			return decoded, result.Err
		}
		if err := json.Unmarshal(result.Body, &decoded); err != nil {
			return decoded, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return decoded, nil
	}
}

// GroupResult pairs a peer with the outcome of its request.
type GroupResult[Resp any] struct {
	Peer Peer
	Resp Resp
	Err  error
}

// GroupRequest fans the same request out to every peer concurrently and
// collects the outcomes in peer order.
func GroupRequest[Resp any](peers []Peer, f func(p Peer) (Resp, error)) []GroupResult[Resp] {
	results := make([]GroupResult[Resp], len(peers))
	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func(i int, p Peer) {
			defer wg.Done()
			resp, err := f(p)
			results[i] = GroupResult[Resp]{Peer: p, Resp: resp, Err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}

// PeerURL builds the endpoint URL for a peer address and path.
func PeerURL(addr PeerAddress, path string) string {
	return fmt.Sprintf("http://%s%s", addr, path)
}
